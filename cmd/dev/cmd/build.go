package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the twowire tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			os := cmd.Flag("os").Value.String()
			arch := cmd.Flag("arch").Value.String()
			version := cmd.Flag("version").Value.String()
			crossOs := cmd.Flag("cross-os").Value.String()
			crossArch := cmd.Flag("cross-arch").Value.String()

			// if this is a native build, use go build
			if os == runtime.GOOS && arch == runtime.GOARCH {
				if crossOs != "" && crossArch != "" {
					os = crossOs
					arch = crossArch
				}
				// cgo is needed by the hid bindings
				return build.GoBuild("dist/twowire", "./cmd/twowire", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "main",
					EnableCgo:     true,
					Arch:          arch,
					OS:            os,
				})
			}

			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", os, arch), []string{"build", "--version", version, "--cross-os", crossOs, "--cross-arch", crossArch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   "gophertribe/gobuild:1.25-bookworm",
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")

	return cmd
}

// FirmwareCmd builds (and optionally flashes) the relay firmware with TinyGo.
func FirmwareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firmware",
		Short: "Build the STM32F103 relay firmware with TinyGo",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := cmd.Flags().GetString("target")
			if err != nil {
				return fmt.Errorf("could not get target flag: %w", err)
			}
			flash, err := cmd.Flags().GetBool("flash")
			if err != nil {
				return fmt.Errorf("could not get flash flag: %w", err)
			}
			if _, err := exec.LookPath("tinygo"); err != nil {
				return fmt.Errorf("tinygo not installed: %w", err)
			}
			tinygoArgs := []string{"build", "-target=" + target, "-o", "dist/twowire-" + target + ".hex", "./cmd/firmware"}
			if flash {
				tinygoArgs = []string{"flash", "-target=" + target, "./cmd/firmware"}
			}
			slog.Info("running tinygo", "args", tinygoArgs)
			tinygo := exec.CommandContext(cmd.Context(), "tinygo", tinygoArgs...)
			tinygo.Stdout = os.Stdout
			tinygo.Stderr = os.Stderr
			if err := tinygo.Run(); err != nil {
				return fmt.Errorf("tinygo %s failed: %w", tinygoArgs[0], err)
			}
			return nil
		},
	}
	cmd.Flags().String("target", "bluepill", "tinygo target board")
	cmd.Flags().Bool("flash", false, "flash the board instead of writing a hex file")
	return cmd
}
