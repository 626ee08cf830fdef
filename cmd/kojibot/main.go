package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CentOS/ansible-role-kojibot/internal/config"
)

var (
	// Global flags
	cfgPath string
	hubURL  string
	verbose bool
	timeout time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kojibot",
	Short: "kojibot - Koji configuration extractor",
	Long: `kojibot extracts the full configuration of a Koji hub (tags, their
inheritance, package ownership, external repository bindings, and build
targets) and synthesizes a declarative task document that koji-ansible can
replay to reproduce that state.

Queries run in bounded multiCall batches: thousands of individual round
trips would never finish, and one failed call aborts the whole run rather
than emitting a partially-correct document.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if hubURL != "" {
			cfg.Hub.URL = hubURL
		}
		if timeout > 0 {
			cfg.Hub.Timeout = timeout.String()
		}

		// Initialize logger. Diagnostics go to stderr; stdout is reserved
		// for the document.
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		level, err := zapcore.ParseLevel(cfg.Logging.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)

		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logger.With(zap.String("run_id", uuid.NewString()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Hub coordinates may live in a .env next to the config file.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "kojibot.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVarP(&hubURL, "server", "s", "", "Koji hub XML-RPC endpoint (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "hub round-trip timeout (overrides config)")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
