package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twowire/busctx"
	"github.com/mklimuk/twowire/cmd/twowire/console"
)

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "list the addresses that answer on the bus",
	Action: func(c *cli.Context) error {
		s, err := openSession(settings)
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		defer s.Close()
		found, err := s.scan(busctx.SetVerbose(c.Context, c.Bool("verbose")))
		if err != nil {
			return console.Exit(1, "scan failed: %s", console.Red(err))
		}
		console.Print(formatScan(found))
		return nil
	},
}

func formatScan(found []uint8) string {
	if len(found) == 0 {
		return "no devices found"
	}
	parts := make([]string, len(found))
	for i, a := range found {
		parts[i] = fmt.Sprintf("0x%02x", a)
	}
	return fmt.Sprintf("%s %s", console.PictoPin, strings.Join(parts, " "))
}
