package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twowire/busctx"
	"github.com/mklimuk/twowire/cmd/twowire/console"
	"github.com/mklimuk/twowire/config"
	"github.com/mklimuk/twowire/sink"
)

var errExit = errors.New("exit")

const shellHelp = `read <addr> <n>       read n bytes
write <addr> <hex>    write bytes
scan                  list answering addresses
temp [addr]           read a TMP102
sensor <part>         read a tc74, shtc3 or hih6021
trace                 print and reset the simulated bus trace
exit`

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("read"),
	readline.PcItem("write"),
	readline.PcItem("scan"),
	readline.PcItem("temp"),
	readline.PcItem("sensor",
		readline.PcItem("tc74"),
		readline.PcItem("shtc3"),
		readline.PcItem("hih6021"),
	),
	readline.PcItem("trace"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

var shellCmd = cli.Command{
	Name:  "shell",
	Usage: "interactive bus shell",
	Action: func(c *cli.Context) error {
		s, err := openSession(settings)
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		defer s.Close()
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          fmt.Sprintf("%s> ", settings.Bus.Name),
			AutoComplete:    shellCompleter,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		defer rl.Close()
		ctx := busctx.SetVerbose(c.Context, c.Bool("verbose"))
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if err != nil {
				return nil
			}
			err = execLine(ctx, s, line, rl.Stdout())
			if errors.Is(err, errExit) {
				return nil
			}
			if err != nil {
				_, _ = fmt.Fprint(rl.Stderr(), console.Format(err))
			}
		}
	},
}

func execLine(ctx context.Context, s *session, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "exit", "quit":
		return errExit
	case "help":
		_, _ = fmt.Fprintln(out, shellHelp)
	case "read":
		if len(args) != 2 {
			return errors.New("usage: read <addr> <n>")
		}
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid count %q", args[1])
		}
		q := sink.NewQueue(settings.Bus.SinkCapacity)
		if err := s.read(ctx, addr, n, q); err != nil {
			return err
		}
		data := make([]byte, q.Len())
		q.Drain(data)
		_, _ = fmt.Fprint(out, hex.Dump(data))
	case "write":
		if len(args) < 2 {
			return errors.New("usage: write <addr> <hex>")
		}
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		data, err := config.ParseHex(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if err := s.bus.WriteToAddr(ctx, addr, data); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%d bytes written\n", len(data))
	case "scan":
		found, err := s.scan(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, formatScan(found))
	case "temp":
		addr := uint8(0x48)
		if len(args) > 0 {
			a, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			addr = a
		}
		milli, err := readTemperature(s, addr)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, formatMilli(milli))
	case "sensor":
		if len(args) != 1 {
			return fmt.Errorf("usage: sensor <part>")
		}
		reading, err := measure(ctx, s, args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, reading)
	case "trace":
		printTrace(out, s)
		if s.sim != nil {
			s.sim.ResetTrace()
		}
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return nil
}
