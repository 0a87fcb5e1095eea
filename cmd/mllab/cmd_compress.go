package main

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/mllab/internal/chart"
	"github.com/yyyoichi/mllab/internal/runstore"
	"github.com/yyyoichi/mllab/svdimage"
	"go.uber.org/zap"
)

var (
	compressRanks []int
	compressGray  bool
	compressNote  string

	archiveRank int
	archiveGray bool
	archiveOut  string

	restoreOut string
)

// compressCmd sweeps rank-k reconstructions over one or more images
var compressCmd = &cobra.Command{
	Use:   "compress [image files...]",
	Short: "Sweep rank-k reconstructions over one or more images",
	Long: `Factorizes each image once, reconstructs it at every configured rank
and records ratio, PSNR and retained energy per point. Reconstructions
are written as JPEG files and per-image spectrum, energy and ratio
charts as HTML under the data directory.

Example:
  mllab compress photos/lenna.png --ranks 5,10,20,50
  mllab compress --gray scans/*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompress,
}

// archiveCmd packs a single rank-k approximation into a .svz file
var archiveCmd = &cobra.Command{
	Use:   "archive [image file]",
	Short: "Pack a rank-k approximation into a compact .svz file",
	Long: `Stores only the top-k singular triplets of the image, quantized to
the configured number of bits per coefficient.

Example:
  mllab archive photos/lenna.png -k 30 -o lenna.svz`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

// restoreCmd reconstructs the image stored in a .svz file
var restoreCmd = &cobra.Command{
	Use:   "restore [archive.svz]",
	Short: "Reconstruct the image stored in a .svz archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func init() {
	compressCmd.Flags().IntSliceVar(&compressRanks, "ranks", nil, "Ranks to sweep (default: config)")
	compressCmd.Flags().BoolVar(&compressGray, "gray", false, "Convert to grayscale before compressing")
	compressCmd.Flags().StringVar(&compressNote, "note", "", "Note to record with the run")

	archiveCmd.Flags().IntVarP(&archiveRank, "rank", "k", 20, "Rank of the stored approximation")
	archiveCmd.Flags().BoolVar(&archiveGray, "gray", false, "Convert to grayscale before archiving")
	archiveCmd.Flags().StringVarP(&archiveOut, "out", "o", "", "Output path (default: <image>.svz)")

	restoreCmd.Flags().StringVarP(&restoreOut, "out", "o", "", "Output path (default: <archive>.png)")
}

func newCompressor() (*svdimage.Compressor, error) {
	return svdimage.New(
		svdimage.WithMaxDimension(cfg.Compress.MaxDimension),
		svdimage.WithQuantBits(cfg.Compress.QuantBits),
	)
}

func runCompress(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	comp, err := newCompressor()
	if err != nil {
		return err
	}

	gray := compressGray || cfg.Compress.Gray
	var names []string
	for _, path := range args {
		name := imageName(path)
		if gray {
			err = comp.AddGrayFile(name, path)
		} else {
			err = comp.AddFile(name, path)
		}
		if err != nil {
			return err
		}
		names = append(names, name)
	}

	ranks := compressRanks
	if len(ranks) == 0 {
		ranks = cfg.Compress.Ranks
	}
	sort.Ints(ranks)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.CreateRun(runstore.KindCompress, compressNote)
	if err != nil {
		return err
	}
	logger.Info("starting sweep",
		zap.String("run", run.ID),
		zap.Strings("images", names),
		zap.Ints("ranks", ranks))

	// ranks usable by every image, for the shared heatmap grid
	commonMax := math.MaxInt
	for _, name := range names {
		info, err := comp.Info(name)
		if err != nil {
			return err
		}
		commonMax = min(commonMax, info.MaxRank)
	}
	var commonRanks []int
	for _, k := range ranks {
		if k <= commonMax {
			commonRanks = append(commonRanks, k)
		}
	}

	fmt.Printf("run %s\n", run.ID)
	fmt.Printf("%-20s %5s %10s %10s %8s\n", "image", "k", "ratio", "psnr", "energy")

	heat := make([][]float64, len(names))
	for i, name := range names {
		info, err := comp.Info(name)
		if err != nil {
			return err
		}

		for _, k := range ranks {
			if k > info.MaxRank {
				logger.Warn("rank exceeds image",
					zap.String("image", name), zap.Int("k", k), zap.Int("maxRank", info.MaxRank))
				continue
			}
			res, err := comp.Compress(ctx, name, k)
			if err != nil {
				return err
			}

			out := artifactPath("compress", fmt.Sprintf("%s_k%03d.jpg", name, k))
			if err := saveJPEG(out, res.Image); err != nil {
				return err
			}
			if err := store.AddCompression(runstore.Compression{
				RunID:  run.ID,
				Image:  name,
				Width:  res.Width,
				Height: res.Height,
				K:      k,
				Ratio:  res.Ratio,
				PSNR:   res.PSNR,
				Energy: res.Energy,
			}); err != nil {
				return err
			}

			fmt.Printf("%-20s %5d %10.2f %10.2f %7.1f%%\n", name, k, res.Ratio, res.PSNR, res.Energy*100)
			if k <= commonMax {
				psnr := res.PSNR
				if math.IsInf(psnr, 1) {
					psnr = 99 // lossless cells would break the chart encoder
				}
				heat[i] = append(heat[i], psnr)
			}
		}

		if err := writeImageCharts(comp, name, ranks, info.MaxRank); err != nil {
			return err
		}
	}

	if len(commonRanks) > 0 {
		p := artifactPath("charts", "psnr_heatmap.html")
		err := writeChart(p, func(w io.Writer) error {
			return chart.PSNRHeatmap(w, names, commonRanks, heat)
		})
		if err != nil {
			return err
		}
	}

	fmt.Printf("artifacts written under %s\n", cfg.DataDir)
	return nil
}

// writeImageCharts renders the spectrum, energy and ratio charts of one
// registered image.
func writeImageCharts(comp *svdimage.Compressor, name string, ranks []int, maxRank int) error {
	spec, err := comp.Spectrum(name)
	if err != nil {
		return err
	}
	energy, err := comp.Energy(name)
	if err != nil {
		return err
	}

	p := artifactPath("charts", name+"_spectrum.html")
	if err := writeChart(p, func(w io.Writer) error { return chart.Spectrum(w, name, spec) }); err != nil {
		return err
	}
	p = artifactPath("charts", name+"_energy.html")
	if err := writeChart(p, func(w io.Writer) error { return chart.Energy(w, name, energy) }); err != nil {
		return err
	}

	var ks []int
	var ratios []float64
	for _, k := range ranks {
		if k > maxRank {
			continue
		}
		r, err := comp.Ratio(name, k)
		if err != nil {
			return err
		}
		ks = append(ks, k)
		ratios = append(ratios, r)
	}
	p = artifactPath("charts", name+"_ratio.html")
	return writeChart(p, func(w io.Writer) error { return chart.Ratio(w, name, ks, ratios) })
}

func runArchive(cmd *cobra.Command, args []string) error {
	comp, err := newCompressor()
	if err != nil {
		return err
	}

	name := imageName(args[0])
	if archiveGray {
		err = comp.AddGrayFile(name, args[0])
	} else {
		err = comp.AddFile(name, args[0])
	}
	if err != nil {
		return err
	}

	out := archiveOut
	if out == "" {
		out = name + ".svz"
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	if err := comp.WriteArchive(f, name, archiveRank); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	st, err := os.Stat(out)
	if err != nil {
		return err
	}
	ratio, err := comp.Ratio(name, archiveRank)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes, k=%d, %d-bit, ratio %.2f)\n",
		out, st.Size(), archiveRank, cfg.Compress.QuantBits, ratio)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	a, err := svdimage.ReadArchive(f)
	if err != nil {
		return err
	}

	out := restoreOut
	if out == "" {
		out = strings.TrimSuffix(args[0], ".svz") + ".png"
	}
	g, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	defer g.Close()
	if err := png.Encode(g, a.Image()); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	fmt.Printf("restored %dx%d rank=%d %d-bit ratio=%.2f -> %s\n",
		a.Width, a.Height, a.Rank, a.QuantBits, a.Ratio(), out)
	return nil
}

func saveJPEG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 100}); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}
