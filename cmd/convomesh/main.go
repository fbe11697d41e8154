// Command convomesh runs the conversational assistant: the realtime voice
// surface, the text chat surface and the maintenance commands around their
// storage.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/convomesh/config"
	"github.com/hupe1980/convomesh/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger logging.Logger = logging.NoOpLogger{}
	// syncLogger flushes buffered log output, set for the zap backend.
	syncLogger func() error
)

var rootCmd = &cobra.Command{
	Use:   "convomesh",
	Short: "convomesh - conversational assistant with memory and tools",
	Long: `convomesh serves a conversational assistant over a realtime voice
websocket and a text chat with streamed replies.

Sessions remember facts across conversations, replay persisted history and
call tools for memory, knowledge search, directory counts and the camera.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, syncLogger, err = newLogger(cfg.Logging, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if syncLogger != nil {
			_ = syncLogger()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "convomesh.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, migrateCmd, factsCmd, ingestCmd)
}

// newLogger builds the process logger. The slog backend writes to out; the
// zap backend uses its production encoder on stderr.
func newLogger(c config.LoggingConfig, out io.Writer) (logging.Logger, func() error, error) {
	level := logging.ParseLevel(c.Level)
	switch c.Backend {
	case "zap":
		z, err := logging.NewZapProduction(level)
		if err != nil {
			return nil, nil, err
		}
		adapter := logging.NewZapAdapter(z)
		return adapter, adapter.Sync, nil
	case "", "slog":
		return logging.NewLogger(&logging.LoggerConfig{
			Level:     level,
			Format:    c.Format,
			Output:    out,
			Component: "convomesh",
		}), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", c.Backend)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
