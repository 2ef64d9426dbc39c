package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/cmd/twowire/console"
	"github.com/mklimuk/twowire/relay"
	"github.com/mklimuk/twowire/sink"
)

var relayCmd = cli.Command{
	Name:  "relay",
	Usage: "read a device repeatedly and relay the bytes to a serial port",
	Flags: []cli.Flag{
		addrFlag,
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Value:   2,
		},
		&cli.StringFlag{
			Name:     "port",
			Aliases:  []string{"p"},
			Usage:    "serial port, e.g. /dev/ttyUSB0",
			Required: true,
		},
		&cli.DurationFlag{
			Name:  "every",
			Usage: "read period",
			Value: time.Second,
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
		link, err := relay.OpenSerial(c.String("port"), settings.Relay.Baud)
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		defer link.Close()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()
		q := sink.NewQueue(settings.Bus.SinkCapacity)
		r := relay.New(q, link, relay.WithInterval(settings.Relay.Interval))
		done := make(chan error, 1)
		go func() {
			done <- r.Run(ctx)
		}()
		pollErr := poll(ctx, s, addr, c.Int("count"), c.Duration("every"), q)
		stop()
		if err := <-done; err != nil {
			return console.Exit(1, "relay stopped: %s", console.Red(err))
		}
		console.PInfof(console.PictoStop, "%d bytes relayed", r.Sent())
		if pollErr != nil && !errors.Is(pollErr, context.Canceled) {
			return console.Exit(1, "%s", console.Red(pollErr))
		}
		return nil
	},
}

// poll reads n bytes every period until ctx is done. A full queue means the
// link is slower than the device; the read is skipped rather than queued.
func poll(ctx context.Context, s *session, addr uint8, n int, every time.Duration, q *sink.Queue) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		err := s.read(ctx, addr, n, q)
		switch {
		case errors.Is(err, twowire.ErrOverflowRequest):
			slog.Warn("relay queue full, read skipped", "queued", q.Len())
		case err != nil:
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
