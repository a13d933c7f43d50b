package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rizal/memdex/internal/config"
	"github.com/rizal/memdex/internal/logger"
	"github.com/rizal/memdex/internal/tracing"
	"github.com/rizal/memdex/pkg/retrieval"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memdex",
	Short: "Memdex - retrieval memory engine",
	Long: `Memdex stores memories in a local database and retrieves them with
hybrid vector and keyword search. Memories are chunked, embedded, scored for
importance, and cleaned up on a schedule.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.memdex/memdex.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// newEngine loads config, builds the logger, and wires a retrieval engine.
// The returned closer releases both.
func newEngine() (*retrieval.Engine, func(), error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
		MaxSize: cfg.Logging.MaxSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	if err := tracing.Init("memdex", version); err != nil {
		lg.Close()
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	engine, err := retrieval.New(cfg, lg.Zerolog())
	if err != nil {
		tracing.Shutdown(context.Background())
		lg.Close()
		return nil, nil, err
	}

	closer := func() {
		engine.Close()
		tracing.Shutdown(context.Background())
		lg.Close()
	}
	return engine, closer, nil
}
