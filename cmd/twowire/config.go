package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twowire/cmd/twowire/console"
)

var configCmd = cli.Command{
	Name:  "config",
	Usage: "print the effective configuration",
	Action: func(c *cli.Context) error {
		if err := settings.Write(console.Writer()); err != nil {
			return console.Exit(1, "%s", err)
		}
		return nil
	},
}
