package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/mllab/internal/webui"
	"github.com/yyyoichi/mllab/spamfilter"
	"go.uber.org/zap"
)

var (
	serveAddr  string
	serveModel string
	serveGray  bool
)

// serveCmd starts the interactive lab page
var serveCmd = &cobra.Command{
	Use:   "serve [image files...]",
	Short: "Serve the interactive lab page",
	Long: `Starts a local web server with a rank slider over the registered
images and, when a trained model is available, a spam check form.

Example:
  mllab serve photos/lenna.png photos/baboon.png
  mllab serve --addr :9000 --model data/models/spam.json scan.jpg`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: config)")
	serveCmd.Flags().StringVarP(&serveModel, "model", "m", "", "Pipeline to serve (default: <data>/models/spam.json if present)")
	serveCmd.Flags().BoolVar(&serveGray, "gray", false, "Convert images to grayscale")
}

func runServe(cmd *cobra.Command, args []string) error {
	comp, err := newCompressor()
	if err != nil {
		return err
	}
	for _, path := range args {
		name := imageName(path)
		if serveGray {
			err = comp.AddGrayFile(name, path)
		} else {
			err = comp.AddFile(name, path)
		}
		if err != nil {
			return err
		}
	}
	if len(args) == 0 {
		logger.Warn("no images registered, the compression panel will be empty")
	}

	pipe, err := loadServedPipeline()
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	wcfg := webui.DefaultConfig()
	wcfg.Address = addr
	srv := webui.New(wcfg, comp, pipe, logger)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	fmt.Printf("serving on http://localhost%s\n", addr)
	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("received shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}

// loadServedPipeline loads the classifier, tolerating a missing default
// model but not a missing explicit one.
func loadServedPipeline() (*spamfilter.Pipeline, error) {
	path := serveModel
	if path == "" {
		path = artifactPath("models", "spam.json")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Info("no classifier model found, classify endpoint disabled",
				zap.String("path", path))
			return nil, nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()
	return spamfilter.LoadPipeline(f)
}
