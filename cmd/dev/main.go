package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/mklimuk/twowire/cmd/dev/cmd"
)

var debug bool

func main() {
	root := &cobra.Command{
		Use:              "dev",
		Short:            "build, test and flash tasks for twowire",
		PersistentPreRun: func(*cobra.Command, []string) { setupLogging() },
		SilenceUsage:     true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.AddCommand(
		cmd.BuildCmd(),
		cmd.FirmwareCmd(),
		cmd.TestCmd(),
		cmd.LintCmd(),
		cmd.SequencerCmd(),
		cmd.ChangelogCmd(),
	)
	if err := root.Execute(); err != nil {
		slog.Error("task failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging() {
	charm := log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "twi",
	})
	charm.SetColorProfile(termenv.TrueColor)
	charm.SetLevel(log.InfoLevel)
	if debug {
		charm.SetLevel(log.DebugLevel)
		charm.SetReportCaller(true)
	}
	slog.SetDefault(slog.New(charm))
}
