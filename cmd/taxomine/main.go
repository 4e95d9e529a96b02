// Command taxomine discovers concept hierarchies in text with p-adic
// geometry and reports them as verified forests.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kittclouds/taxomine/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
	hostFS = osfs.NewFS()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "taxomine",
	Short: "p-adic hierarchy discovery",
	Long: `taxomine reads text, extracts co-occurring entities and places them in
p-adic coordinates under several primes. Overlapping windows of the relation
stream are glued only where they agree; every disagreement is reported as a
logic cut. Each glued section is assembled into a forest of concepts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.DefaultConfig()
		if configPath != "" {
			name, err := hostPath(configPath)
			if err != nil {
				return err
			}
			if cfg, err = config.LoadFromFile(hostFS, name); err != nil {
				return err
			}
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		var err error
		logger, err = newLogger(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	rootCmd.AddCommand(analyzeCmd, runsCmd, showCmd, crtCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// hostPath converts a command line path into a path on hostFS.
func hostPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return hostFS.FromOSPath(abs)
}

func readHostFile(p string) ([]byte, error) {
	name, err := hostPath(p)
	if err != nil {
		return nil, err
	}
	return hackpadfs.ReadFile(hostFS, name)
}

func writeHostFile(p string, data []byte) error {
	name, err := hostPath(p)
	if err != nil {
		return err
	}
	return hackpadfs.WriteFullFile(hostFS, name, data, 0644)
}
