package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	return taskCmd("test", "Run unit tests", test.Test)
}

func LintCmd() *cobra.Command {
	return taskCmd("lint", "Run linting", test.Lint)
}

func taskCmd(use, short string, task func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := task(); err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			return nil
		},
	}
}

// SequencerCmd runs the read/write sequencer tests against the simulated
// controller with the race detector on.
func SequencerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequencer",
		Short: "Run the sequencer tests on the simulated controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := cmd.Flags().GetInt("count")
			if err != nil {
				return fmt.Errorf("could not get count flag: %w", err)
			}
			goTest := exec.CommandContext(cmd.Context(), "go", "test", "-race", fmt.Sprintf("-count=%d", count),
				"./master/...", "./sim/...", "./irq/...", "./sensor/...")
			goTest.Stdout = os.Stdout
			goTest.Stderr = os.Stderr
			if err := goTest.Run(); err != nil {
				return fmt.Errorf("sequencer tests failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 1, "number of runs, more shake out ordering issues")
	return cmd
}
