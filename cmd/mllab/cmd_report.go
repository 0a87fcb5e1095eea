package main

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/mllab/internal/chart"
	"github.com/yyyoichi/mllab/internal/runstore"
	"go.uber.org/zap"
)

var (
	spectrumGray bool
	spectrumOut  string

	reportDB      string
	reportOut     string
	reportList    bool
	reportMinPSNR float64
)

// spectrumCmd charts the singular value diagnostics of images
var spectrumCmd = &cobra.Command{
	Use:   "spectrum [image files...]",
	Short: "Chart the singular value spectrum and retained energy of images",
	Long: `Factorizes each image and writes its singular value spectrum and its
cumulative retained-energy curve as HTML charts. The curves show how
much of the spectral mass a given rank keeps; they are diagnostic only,
picking k stays manual.

Example:
  mllab spectrum photos/lenna.png
  mllab spectrum --gray -o /tmp/charts scans/*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpectrum,
}

// reportCmd renders charts from recorded runs
var reportCmd = &cobra.Command{
	Use:   "report [run id]",
	Short: "Render charts from a recorded run",
	Long: `Reads a run from the database and renders its charts: ratio curves
and the PSNR heatmap for a compression sweep, training curves for a
classifier run. Without a run id the most recent run is used.

Example:
  mllab report --list
  mllab report 5f6e...-... -o /tmp/charts
  mllab report --min-psnr 30`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	spectrumCmd.Flags().BoolVar(&spectrumGray, "gray", false, "Convert to grayscale before factorizing")
	spectrumCmd.Flags().StringVarP(&spectrumOut, "out", "o", "", "Chart directory (default: <data>/charts)")

	reportCmd.Flags().StringVar(&reportDB, "db", "", "Run database (default: config)")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Chart directory (default: <data>/charts)")
	reportCmd.Flags().BoolVar(&reportList, "list", false, "List recorded runs instead of charting")
	reportCmd.Flags().Float64Var(&reportMinPSNR, "min-psnr", 0, "Also print the smallest rank reaching this PSNR per image")
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	comp, err := newCompressor()
	if err != nil {
		return err
	}

	out := spectrumOut
	if out == "" {
		out = artifactPath("charts")
	}

	for _, path := range args {
		name := imageName(path)
		if spectrumGray {
			err = comp.AddGrayFile(name, path)
		} else {
			err = comp.AddFile(name, path)
		}
		if err != nil {
			return err
		}

		info, err := comp.Info(name)
		if err != nil {
			return err
		}
		spec, err := comp.Spectrum(name)
		if err != nil {
			return err
		}
		energy, err := comp.Energy(name)
		if err != nil {
			return err
		}

		p := filepath.Join(out, name+"_spectrum.html")
		if err := writeChart(p, func(w io.Writer) error { return chart.Spectrum(w, name, spec) }); err != nil {
			return err
		}
		p = filepath.Join(out, name+"_energy.html")
		if err := writeChart(p, func(w io.Writer) error { return chart.Energy(w, name, energy) }); err != nil {
			return err
		}
		fmt.Printf("%-20s %dx%d, %d singular values\n", name, info.Width, info.Height, info.MaxRank)
	}

	fmt.Printf("charts written under %s\n", out)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	var store *runstore.Store
	var err error
	if reportDB != "" {
		store, err = runstore.Open(reportDB)
	} else {
		store, err = openStore()
	}
	if err != nil {
		return err
	}
	defer store.Close()

	if reportList {
		return listRuns(store)
	}

	var run runstore.Run
	if len(args) == 1 {
		run, err = store.Run(args[0])
		if err != nil {
			return err
		}
	} else {
		runs, err := store.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no recorded runs; compress or train first")
		}
		run = runs[0]
	}

	out := reportOut
	if out == "" {
		out = artifactPath("charts")
	}
	logger.Info("rendering report",
		zap.String("run", run.ID),
		zap.String("kind", run.Kind),
		zap.String("out", out))

	switch run.Kind {
	case runstore.KindCompress:
		return reportCompressRun(store, run, out)
	case runstore.KindTrain:
		return reportTrainRun(store, run, out)
	}
	return fmt.Errorf("run %s has unknown kind %q", run.ID, run.Kind)
}

func listRuns(store *runstore.Store) error {
	runs, err := store.Runs()
	if err != nil {
		return err
	}
	fmt.Printf("%-36s %-9s %-19s %s\n", "id", "kind", "created", "note")
	for _, r := range runs {
		fmt.Printf("%-36s %-9s %-19s %s\n", r.ID, r.Kind, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Note)
	}
	return nil
}

func reportCompressRun(store *runstore.Store, run runstore.Run, out string) error {
	points, err := store.Compressions(run.ID)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("run %s recorded no compressions", run.ID)
	}

	byImage := make(map[string][]runstore.Compression)
	var images []string
	for _, p := range points {
		if _, ok := byImage[p.Image]; !ok {
			images = append(images, p.Image)
		}
		byImage[p.Image] = append(byImage[p.Image], p)
	}
	sort.Strings(images)

	for _, name := range images {
		ps := byImage[name]
		ks := make([]int, len(ps))
		ratios := make([]float64, len(ps))
		for i, p := range ps {
			ks[i] = p.K
			ratios[i] = p.Ratio
		}
		p := filepath.Join(out, name+"_ratio.html")
		if err := writeChart(p, func(w io.Writer) error { return chart.Ratio(w, name, ks, ratios) }); err != nil {
			return err
		}
	}

	// heatmap over the ranks every image of the run was swept at
	common := sharedRanks(images, byImage)
	if len(common) > 0 {
		heat := make([][]float64, len(images))
		for i, name := range images {
			at := make(map[int]float64, len(byImage[name]))
			for _, p := range byImage[name] {
				at[p.K] = p.PSNR
			}
			for _, k := range common {
				psnr := at[k]
				if math.IsInf(psnr, 1) {
					psnr = 99 // lossless cells would break the chart encoder
				}
				heat[i] = append(heat[i], psnr)
			}
		}
		p := filepath.Join(out, "psnr_heatmap.html")
		if err := writeChart(p, func(w io.Writer) error { return chart.PSNRHeatmap(w, images, common, heat) }); err != nil {
			return err
		}
	}

	if reportMinPSNR > 0 {
		ranks, err := store.RankForQuality(run.ID, reportMinPSNR)
		if err != nil {
			return err
		}
		for _, name := range images {
			if k, ok := ranks[name]; ok {
				fmt.Printf("%-20s reaches %.1f dB at k=%d\n", name, reportMinPSNR, k)
			} else {
				fmt.Printf("%-20s never reaches %.1f dB in this sweep\n", name, reportMinPSNR)
			}
		}
	}

	fmt.Printf("charts for run %s written under %s\n", run.ID, out)
	return nil
}

// sharedRanks returns the sorted ranks present for every image.
func sharedRanks(images []string, byImage map[string][]runstore.Compression) []int {
	count := make(map[int]int)
	for _, name := range images {
		for _, p := range byImage[name] {
			count[p.K]++
		}
	}
	var common []int
	for k, n := range count {
		if n == len(images) {
			common = append(common, k)
		}
	}
	sort.Ints(common)
	return common
}

func reportTrainRun(store *runstore.Store, run runstore.Run, out string) error {
	epochs, err := store.Epochs(run.ID)
	if err != nil {
		return err
	}
	if len(epochs) == 0 {
		return fmt.Errorf("run %s recorded no epochs", run.ID)
	}

	points := make([]chart.EpochPoint, len(epochs))
	for i, e := range epochs {
		points[i] = chart.EpochPoint{
			Epoch:       e.Epoch,
			Loss:        e.Loss,
			Accuracy:    e.Accuracy,
			ValLoss:     e.ValLoss,
			ValAccuracy: e.ValAccuracy,
		}
	}
	title := fmt.Sprintf("spam classifier (%s)", run.CreatedAt.Local().Format("2006-01-02 15:04"))
	p := filepath.Join(out, "training_curves.html")
	if err := writeChart(p, func(w io.Writer) error { return chart.TrainingCurves(w, title, points) }); err != nil {
		return err
	}
	fmt.Printf("charts for run %s written under %s\n", run.ID, out)
	return nil
}
