package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/mllab/internal/config"
	"github.com/yyyoichi/mllab/internal/runstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mllab",
	Short: "mllab - low-rank image compression and tiny spam classifiers",
	Long: `mllab is a workbench for two classic machine learning exercises.

Image compression: a picture is factorized once with the singular value
decomposition, then reconstructed from its top-k triplets at any rank,
reporting the storage ratio, PSNR and retained spectral energy.

Spam filtering: a small embedding network (dense or 1-D convolutional)
is trained on cleaned e-mail text and used to score new mail.

Every sweep and training run is recorded in SQLite and can be rendered
as interactive HTML charts with the report command.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose || cfg.Logging.Level == "debug" {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
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
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "mllab.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(spectrumCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(spamCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore opens the run database configured in store.path.
func openStore() (*runstore.Store, error) {
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return runstore.Open(cfg.Store.Path)
}

// artifactPath joins elem under the configured data directory.
func artifactPath(elem ...string) string {
	return filepath.Join(append([]string{cfg.DataDir}, elem...)...)
}

// writeChart renders one chart into path.
func writeChart(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	if err := render(f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// imageName derives the registry name from a file path.
func imageName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
