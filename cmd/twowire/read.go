package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twowire/busctx"
	"github.com/mklimuk/twowire/cmd/twowire/console"
	"github.com/mklimuk/twowire/config"
	"github.com/mklimuk/twowire/relay"
	"github.com/mklimuk/twowire/sink"
)

var addrFlag = &cli.StringFlag{
	Name:    "addr",
	Aliases: []string{"a"},
	Usage:   "7-bit device address",
	Value:   "0x78",
}

var readCmd = cli.Command{
	Name:  "read",
	Usage: "read bytes from a device",
	Flags: []cli.Flag{
		addrFlag,
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "number of bytes to read",
			Value:   1,
		},
		&cli.StringFlag{
			Name:  "respond",
			Usage: "hex bytes the simulated device answers with",
		},
		&cli.StringFlag{
			Name:  "relay",
			Usage: "serial port the received bytes are relayed to",
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "print the simulated bus trace",
		},
	},
	Action: func(c *cli.Context) error {
		addr, err := parseAddress(c.String("addr"))
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		s, err := openSession(settings)
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		defer s.Close()
		if resp := c.String("respond"); resp != "" {
			data, err := config.ParseHex(resp)
			if err != nil {
				return console.Exit(1, "%s", err)
			}
			if err := s.respond(addr, data); err != nil {
				return console.Exit(1, "%s", err)
			}
		}
		ctx := busctx.SetVerbose(c.Context, c.Bool("verbose"))
		q := sink.NewQueue(settings.Bus.SinkCapacity)
		readErr := s.read(ctx, addr, c.Int("count"), q)
		if c.Bool("trace") {
			printTrace(console.Writer(), s)
		}
		if readErr != nil {
			return console.Exit(1, "read failed: %s", console.Red(readErr))
		}
		if port := c.String("relay"); port != "" {
			return relayOnce(q, port)
		}
		data := make([]byte, q.Len())
		q.Drain(data)
		console.Print(hex.Dump(data))
		return nil
	},
}

var writeCmd = cli.Command{
	Name:      "write",
	Usage:     "write bytes to a device",
	ArgsUsage: "<hex bytes>",
	Flags: []cli.Flag{
		addrFlag,
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation on hardware backends",
		},
	},
	Action: func(c *cli.Context) error {
		addr, err := parseAddress(c.String("addr"))
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		data, err := config.ParseHex(c.Args().First())
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		if settings.Bus.Backend != config.BackendSim && !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("write %d bytes to 0x%02x?", len(data), addr))
			if err != nil {
				return console.Exit(1, "%s", err)
			}
			if !ok {
				return nil
			}
		}
		s, err := openSession(settings)
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		defer s.Close()
		ctx := busctx.SetVerbose(c.Context, c.Bool("verbose"))
		if err := s.bus.WriteToAddr(ctx, addr, data); err != nil {
			return console.Exit(1, "write failed: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "%d bytes written to 0x%02x", len(data), addr)
		return nil
	},
}

func relayOnce(q *sink.Queue, port string) error {
	link, err := relay.OpenSerial(port, settings.Relay.Baud)
	if err != nil {
		return console.Exit(1, "%s", err)
	}
	defer link.Close()
	r := relay.New(q, link)
	if err := r.Flush(); err != nil {
		return console.Exit(1, "%s", err)
	}
	console.Infof("%d bytes relayed to %s", r.Sent(), port)
	return nil
}

func printTrace(w io.Writer, s *session) {
	for i, e := range s.trace() {
		_, _ = fmt.Fprintf(w, "%4d  %s\n", i, e)
	}
}
