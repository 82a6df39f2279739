// ============================================================================
// procsim CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra command tree of the processor simulator
//
// Command Structure:
//   procsim                        # Root command
//   ├── run                        # Execute a job order
//   │   ├── --job-order, -j        # Job order XML
//   │   └── --resume               # Skip products already journalled
//   ├── segments                   # Segment an acquisition window
//   ├── locate                     # Grid cell holding an instant
//   ├── classify                   # Theoretical bounds of a slice
//   ├── inventory list             # Catalogued products
//   ├── status                     # Last run summary
//   ├── --config, -c               # Scenario file (default configs/default.yaml)
//   ├── --log-level                # debug|info|warn|error
//   └── --log-format               # text|json
//
// Configuration:
//   The scenario YAML is loaded and validated before any subcommand runs.
//   Relative paths inside it resolve against the file's directory.
//
// Signal Handling:
//   run cancels its context on SIGINT/SIGTERM. Products in progress fail,
//   are journalled as FAILED and the run summary is still written, so
//   `run --resume` picks up where the run stopped.
//
// Output:
//   Tables and summaries go to stdout, rendered with lipgloss. Logs go to
//   stderr through log/slog.
//
// ============================================================================

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/ChuLiYu/procsim/internal/config"
	"github.com/spf13/cobra"
)

// Version is the simulator version reported by --version
const Version = "1.0.0"

// app carries what every subcommand shares
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func BuildCLI() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "procsim",
		Short: "procsim: an EO processor simulator",
		Long: `procsim simulates an Earth-observation ground processor:
- slices acquisitions into level-0 products on an ANX-relative grid
- frames level-0 slices into level-1 products
- journals every product for resumable runs
- catalogues products in a SQLite inventory`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "scenario config file path")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(a.buildRunCommand())
	rootCmd.AddCommand(a.buildSegmentsCommand())
	rootCmd.AddCommand(a.buildLocateCommand())
	rootCmd.AddCommand(a.buildClassifyCommand())
	rootCmd.AddCommand(a.buildInventoryCommand())
	rootCmd.AddCommand(a.buildStatusCommand())

	return rootCmd
}

// setup loads the scenario and installs the default logger
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	level := a.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level, a.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// newLogger builds a slog logger writing to w
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: want text or json", format)
	}
}

// summaryPath is where run summaries are kept
func (a *app) summaryPath() string {
	return filepath.Join(a.cfg.Resolve(a.cfg.OutputDir), "run.json")
}
