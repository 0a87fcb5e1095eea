package main

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/mllab/internal/fetch"
	"go.uber.org/zap"
)

var (
	fetchOut    string
	fetchImages int
	fetchNoCSV  bool
)

// fetchCmd downloads the sample data both exercises run on
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download sample photos and a labeled spam corpus",
	Long: `Downloads a small set of photos for the compression sweep and the SMS
spam collection CSV for classifier training. Requests go through a rate
limited, disk cached HTTP client, so repeated fetches are served from
the cache instead of hitting the mirrors again.

Example:
  mllab fetch
  mllab fetch --out samples --images 3`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "Output directory (default: <data>/samples)")
	fetchCmd.Flags().IntVar(&fetchImages, "images", 0, "Number of sample photos (default: all)")
	fetchCmd.Flags().BoolVar(&fetchNoCSV, "no-csv", false, "Skip the spam corpus")
}

func runFetch(cmd *cobra.Command, args []string) error {
	out := fetchOut
	if out == "" {
		out = artifactPath("samples")
	}
	client := fetch.New(cfg.Fetch.CacheDir, cfg.GetFetchInterval(), logger)

	urls := fetch.SampleURLs()
	if fetchImages > 0 && fetchImages < len(urls) {
		urls = urls[:fetchImages]
	}
	for _, uri := range urls {
		dest := filepath.Join(out, remoteName(uri))
		n, err := client.File(uri, dest)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", uri, err)
		}
		logger.Info("fetched photo", zap.String("url", uri), zap.Int64("bytes", n))
		fmt.Printf("%s (%d bytes)\n", dest, n)
	}

	if !fetchNoCSV {
		dest := filepath.Join(out, "spam.csv")
		n, err := client.File(fetch.SpamDatasetURL, dest)
		if err != nil {
			return fmt.Errorf("failed to fetch spam corpus: %w", err)
		}
		logger.Info("fetched corpus", zap.String("url", fetch.SpamDatasetURL), zap.Int64("bytes", n))
		fmt.Printf("%s (%d bytes)\n", dest, n)
	}

	fmt.Printf("samples ready under %s\n", out)
	return nil
}

// remoteName derives a local file name from the URL path.
func remoteName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "sample.bin"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return "sample.bin"
	}
	return base
}
