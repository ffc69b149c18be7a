package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eventflow-io/eventflow/cmd/eventflow/internal/config"
	"github.com/eventflow-io/eventflow/pkg/capture"
)

var (
	// Global flags
	verbose  bool
	storeDir string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "eventflow",
	Short: "Record, inspect, and replay binary event streams",
	Long: `eventflow - A toolbox for binary event streams.

Streams are recorded from websocket endpoints into a local capture
store, then inspected frame by frame or replayed through the stream
transformer exactly as a client would consume them live.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/eventflow/
  Linux:   ~/.config/eventflow/
  Windows: %AppData%/eventflow/

Examples:
  # Record a stream, then look at what arrived
  eventflow record wss://api.example.com/v1/stream
  eventflow inspect
  eventflow inspect 2f1c... --jq .payload.text

  # Replay a capture through the transformer
  eventflow replay 2f1c...`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "capture store directory (default: config dir)")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// openStore opens the capture store, honoring the --store flag.
func openStore() (*capture.Store, error) {
	dir := storeDir
	if dir == "" {
		cfg, err := GetConfig()
		if err != nil {
			return nil, err
		}
		dir, err = cfg.ResolveStoreDir()
		if err != nil {
			return nil, err
		}
	}
	return capture.Open(capture.Options{Dir: dir})
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
