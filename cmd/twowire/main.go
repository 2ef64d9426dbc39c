package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twowire/config"
)

var version string
var commit string
var date string

// settings is loaded once before any command runs.
var settings = config.Default()

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := newApp()
	err := app.Run(args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "twowire"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "I2C master driver tool"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging and register tracing",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"TWOWIRE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "bus",
			Usage: "bus backend: sim, periph or mcp2221 (overrides config)",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "host bus name for the periph backend (overrides config)",
		},
	}
	app.Before = func(c *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))

		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		if b := c.String("bus"); b != "" {
			cfg.Bus.Backend = b
		}
		if d := c.String("device"); d != "" {
			cfg.Bus.Device = d
		}
		if err := cfg.Validate(); err != nil {
			return cli.Exit(err.Error(), 2)
		}
		settings = cfg
		return nil
	}
	app.Commands = cli.Commands{
		&readCmd,
		&writeCmd,
		&scanCmd,
		&tempCmd,
		&shellCmd,
		&relayCmd,
		&configCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	return app
}
