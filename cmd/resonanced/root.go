// Command resonanced runs and inspects resonance coordination webs: run a
// task to completion in-process, serve the HTTP/websocket API, or watch a
// running web's event stream from a terminal. Command wiring and styling
// follow a cobra CLI convention: persistent flags bound through viper-backed
// config loading, fatih/color status lines, glamour for the final rendered
// answer.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/logging"
)

var (
	statusColor = color.New(color.FgCyan).SprintFunc()
	okColor     = color.New(color.FgGreen).SprintFunc()
	warnColor   = color.New(color.FgYellow).SprintFunc()
	errColor    = color.New(color.FgRed, color.Bold).SprintFunc()
)

// cli holds state shared by every subcommand, populated from persistent
// flags in PersistentPreRunE.
type cli struct {
	cfgPaths    []string
	logLevel    string
	httpAddr    string
	maxAgents   int
	maxDepth    int
	telemetry   bool
	cfg         config.RuntimeConfig
	logger      logging.Logger
}

func (c *cli) load() error {
	overrides := config.Overrides{}
	if c.httpAddr != "" {
		overrides.HTTPBindAddr = &c.httpAddr
	}
	if c.maxAgents > 0 {
		overrides.MaxAgents = &c.maxAgents
	}
	if c.maxDepth > 0 {
		overrides.MaxDepth = &c.maxDepth
	}
	if c.logLevel != "" {
		overrides.LogLevel = &c.logLevel
	}
	overrides.TelemetryEnable = &c.telemetry

	cfg, _, err := config.Load(c.cfgPaths, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.logger = logging.NewComponent("resonanced", parseLevel(cfg.LogLevel))
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "resonanced",
		Short:         "Run and inspect resonance coordination webs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	root.PersistentFlags().StringSliceVar(&c.cfgPaths, "config-dir", []string{"."}, "directories searched for arachnid.yaml")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug|info|warn|error")
	root.PersistentFlags().StringVar(&c.httpAddr, "http-addr", "", "HTTP bind address (serve only)")
	root.PersistentFlags().IntVar(&c.maxAgents, "max-agents", 0, "override max_agents")
	root.PersistentFlags().IntVar(&c.maxDepth, "max-depth", 0, "override max_depth")
	root.PersistentFlags().BoolVar(&c.telemetry, "telemetry", false, "enable OpenTelemetry tracing/metrics export")

	root.AddCommand(newRunCommand(c))
	root.AddCommand(newServeCommand(c))
	root.AddCommand(newWatchCommand(c))
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errColor("resonanced: "+err.Error()))
		os.Exit(1)
	}
}
