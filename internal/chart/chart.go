// Package chart renders the html reports of the experiment harness
// with go-echarts: singular value spectra, retained energy curves,
// compression ratio sweeps, training histories and PSNR grids.
package chart

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var ErrNoSeries = errors.New("no data to chart")

// channelName labels a plane series: a single channel is luminance,
// three are red, green and blue.
func channelName(i, total int) string {
	if total == 1 {
		return "luminance"
	}
	return [3]string{"red", "green", "blue"}[i]
}

// Spectrum draws the singular values of every channel, largest first,
// over the rank index.
func Spectrum(w io.Writer, name string, channels [][]float64) error {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return ErrNoSeries
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Singular Value Spectrum: %s", name),
			Subtitle: "Magnitude of each singular value, largest first",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "rank index",
			Type: "category",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "singular value",
			Type: "value",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:  "slider",
			Start: 0,
			End:   100,
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "5%",
		}),
	)

	line.SetXAxis(rankLabels(len(channels[0])))
	for ch, values := range channels {
		data := make([]opts.LineData, len(values))
		for i, v := range values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(channelName(ch, len(channels)), data)
	}
	return line.Render(w)
}

// Energy draws the cumulative retained-energy curve of every channel
// on a fixed [0, 1] axis.
func Energy(w io.Writer, name string, channels [][]float64) error {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return ErrNoSeries
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Retained Energy: %s", name),
			Subtitle: "Cumulative singular value mass kept at each rank",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "rank",
			Type: "category",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "energy fraction",
			Type: "value",
			Min:  0,
			Max:  1,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "5%",
		}),
	)

	line.SetXAxis(rankLabels(len(channels[0])))
	for ch, curve := range channels {
		data := make([]opts.LineData, len(curve))
		for i, v := range curve {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(channelName(ch, len(channels)), data)
	}
	return line.Render(w)
}

// Ratio draws the compression ratio at each tried rank, with the
// break-even line at 1 readable from the axis.
func Ratio(w io.Writer, name string, ks []int, ratios []float64) error {
	if len(ks) == 0 {
		return ErrNoSeries
	}
	if len(ks) != len(ratios) {
		return fmt.Errorf("%d ranks against %d ratios", len(ks), len(ratios))
	}
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Compression Ratio: %s", name),
			Subtitle: "Original pixel count over stored factor count; above 1 saves space",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "rank k",
			Type: "value",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "ratio",
			Type: "value",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:     opts.Bool(true),
			Trigger:  "item",
			Position: "bottom",
		}),
	)

	data := make([]opts.ScatterData, len(ks))
	for i, k := range ks {
		data[i] = opts.ScatterData{
			Value:      []any{k, ratios[i]},
			Symbol:     "circle",
			SymbolSize: 10,
			Name:       fmt.Sprintf("k=%d ratio=%.2f", k, ratios[i]),
		}
	}
	scatter.AddSeries(name, data)
	return scatter.Render(w)
}

// EpochPoint is one row of a training history.
type EpochPoint struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// TrainingCurves draws loss on the left axis and accuracy on a second
// right axis, training and validation side by side.
func TrainingCurves(w io.Writer, title string, points []EpochPoint) error {
	if len(points) == 0 {
		return ErrNoSeries
	}

	var (
		xAxis   []string
		loss    []opts.LineData
		valLoss []opts.LineData
		acc     []opts.LineData
		valAcc  []opts.LineData
	)
	for _, p := range points {
		xAxis = append(xAxis, strconv.Itoa(p.Epoch))
		loss = append(loss, opts.LineData{Value: p.Loss})
		valLoss = append(valLoss, opts.LineData{Value: p.ValLoss})
		acc = append(acc, opts.LineData{Value: p.Accuracy * 100})
		valAcc = append(valAcc, opts.LineData{Value: p.ValAccuracy * 100})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Cross entropy per epoch with accuracy on the right axis",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "epoch",
			Type: "category",
			Data: xAxis,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "loss",
			Type: "value",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "5%",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
	)

	line.SetXAxis(xAxis)
	line.AddSeries("train loss", loss).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{
				Smooth: opts.Bool(true),
			}),
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)
	line.AddSeries("val loss", valLoss,
		charts.WithLineChartOpts(opts.LineChart{
			Smooth: opts.Bool(true),
		}),
	)

	// accuracy lives on the second axis, added after ExtendYAxis
	line.ExtendYAxis(opts.YAxis{
		Name: "accuracy (%)",
		Type: "value",
		Min:  0,
		Max:  100,
		AxisLabel: &opts.AxisLabel{
			Formatter: "{value}%",
		},
	})
	line.AddSeries("train accuracy (%)", acc,
		charts.WithLineChartOpts(opts.LineChart{
			Smooth:     opts.Bool(true),
			YAxisIndex: 1,
		}),
	)
	line.AddSeries("val accuracy (%)", valAcc,
		charts.WithLineChartOpts(opts.LineChart{
			Smooth:     opts.Bool(true),
			YAxisIndex: 1,
		}),
	)
	return line.Render(w)
}

// PSNRHeatmap draws reconstruction quality over an images-by-ranks
// grid. psnr[i][j] belongs to images[i] at ranks[j].
func PSNRHeatmap(w io.Writer, images []string, ranks []int, psnr [][]float64) error {
	if len(images) == 0 || len(ranks) == 0 {
		return ErrNoSeries
	}
	if len(psnr) != len(images) {
		return fmt.Errorf("%d psnr rows against %d images", len(psnr), len(images))
	}

	lo, hi := psnr[0][0], psnr[0][0]
	var data []opts.HeatMapData
	for i, row := range psnr {
		if len(row) != len(ranks) {
			return fmt.Errorf("psnr row %d has %d columns against %d ranks", i, len(row), len(ranks))
		}
		for j, v := range row {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
			data = append(data, opts.HeatMapData{
				Value: [3]any{j, i, v},
			})
		}
	}

	xLabels := make([]string, len(ranks))
	for j, k := range ranks {
		xLabels[j] = fmt.Sprintf("k=%d", k)
	}

	heatmap := charts.NewHeatMap()
	heatmap.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "PSNR by Image and Rank",
			Subtitle: "Reconstruction quality in dB",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "rank",
			Type:      "category",
			Data:      xLabels,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "image",
			Type:      "category",
			Data:      images,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Range:      []float32{float32(lo), float32(hi)},
			InRange:    &opts.VisualMapInRange{Color: []string{"#313695", "#74add1", "#fee090", "#f46d43", "#a50026"}},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	heatmap.AddSeries("PSNR", data)
	return heatmap.Render(w)
}

func rankLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	return labels
}
