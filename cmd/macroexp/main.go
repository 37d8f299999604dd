package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"macroexp/internal/config"
	"macroexp/internal/observ"
	"macroexp/internal/prof"
	"macroexp/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "macroexp",
	Short: "Macro implementation bindings toolbox",
	Long:  `macroexp encodes, inspects and verifies the persisted bindings between macro definitions and their implementations`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if getFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
		colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		switch colorFlag {
		case "on":
			useColor = true
		case "off":
			useColor = false
		case "auto":
			useColor = isTerminal(os.Stdout)
		default:
			return fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
		}
		color.NoColor = !useColor
		timer = nil
		if getFlag(cmd, "timings") {
			timer = observ.NewTimer()
		}
		return startProfiling(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if timer.Len() > 0 {
			fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
		}
		return profiler.Stop()
	},
	SilenceUsage: true,
}

var (
	useColor bool
	// timer is nil unless --timings is set
	timer    *observ.Timer
	profiler *prof.Profiler
)

func init() {
	// Устанавливаем версию для автоматического флага --version
	rootCmd.Version = version.Version

	rootCmd.AddCommand(bindingCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to the given file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to the given file")
	rootCmd.PersistentFlags().String("config", "", "path to macroexp.toml (default: discovered from the working directory)")
}

// main runs the root command.
// If command execution returns an error, the process exits with status code 1.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		log.WithError(err).Debugf("flag %s", flag)
		return false
	}
	return r
}

// loadConfig reads --config, or discovers macroexp.toml from the working
// directory.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	err := timer.Measure("config", func() error {
		path, err := cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return err
		}
		if path != "" {
			cfg, err = config.Load(path)
			return err
		}
		cfg, err = config.Discover(".")
		return err
	})
	return cfg, err
}

// startProfiling enables the profilers requested by the persistent flags.
func startProfiling(cmd *cobra.Command) error {
	root := cmd.Root()
	cpuProfile, err := root.PersistentFlags().GetString("cpu-profile")
	if err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	memProfile, err := root.PersistentFlags().GetString("mem-profile")
	if err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	profiler, err = prof.Start(prof.Options{CPU: cpuProfile, Mem: memProfile})
	return err
}
