package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"whiterabbit/internal/adb"
	"whiterabbit/internal/config"
	"whiterabbit/internal/dynamic"
	"whiterabbit/internal/logging"
	"whiterabbit/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool
	adbPath    string
	adbSerial  string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "whiterabbit",
	Short: "whiterabbit - hybrid Android malware analysis sandbox",
	Long: `whiterabbit monitors an Android app's runtime behavior on a connected
device or emulator and fuses the observed behavior with a static
classifier verdict into one calibrated classification.

A run verifies host and device tooling, installs and launches the
target package, then captures four channels in sequence - system logs,
system calls, filesystem events, and network traffic - each for a
fixed observation window. Parsed features are persisted per run and
can be fused with a static (classification, confidence) pair.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		// Flags win over file and environment.
		if adbPath != "" {
			cfg.ADB.Path = adbPath
		}
		if adbSerial != "" {
			cfg.ADB.Serial = adbSerial
		}

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return logging.Initialize(logging.Options{
			Dir:        cfg.Analysis.OutputRoot,
			DebugMode:  cfg.Logging.DebugMode || verbose,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newBridge builds the device bridge from the loaded configuration.
func newBridge() *adb.Bridge {
	return adb.New(cfg.ADB.Path, cfg.ADB.Serial, cfg.ADB.Timeout())
}

// newGate builds the dependency gate over the given bridge.
func newGate(bridge *adb.Bridge) *dynamic.Gate {
	return dynamic.NewGate(bridge, dynamic.GateConfig{
		HostTools:     cfg.Analysis.HostTools,
		DeviceTools:   cfg.Analysis.DeviceTools,
		ToolSourceDir: cfg.Analysis.ToolSourceDir,
		DeviceToolDir: cfg.Analysis.DeviceToolDir,
		RuntimeLib:    cfg.Analysis.RuntimeLib,
	})
}

// openStore opens the run database at the configured path.
func openStore() (*store.Store, error) {
	return store.Open(cfg.Storage.DatabasePath)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "whiterabbit.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&adbPath, "adb", "", "adb binary path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&adbSerial, "device", "", "Device serial for adb -s (overrides config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(dynamicCmd)
	rootCmd.AddCommand(fuseCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(emulatorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
