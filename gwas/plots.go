package gwas

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GenomicInflation is the lambda statistic: the median association chi^2
// against the chi^2(1) null median. Values well above 1 suggest residual
// population stratification.
func GenomicInflation(pValues []float64) float64 {
	if len(pValues) == 0 {
		return math.NaN()
	}
	chi := distuv.ChiSquared{K: 1}
	chis := make([]float64, 0, len(pValues))
	for _, p := range pValues {
		if p <= 0 || p > 1 {
			continue
		}
		chis = append(chis, chi.Quantile(1-p))
	}
	if len(chis) == 0 {
		return math.NaN()
	}
	sort.Float64s(chis)
	return stat.Quantile(0.5, stat.Empirical, chis, nil) / chi.Quantile(0.5)
}

func qqChart(chrom string, pValues []float64) *charts.Scatter {
	sorted := append([]float64(nil), pValues...)
	sort.Float64s(sorted)

	var points []opts.ScatterData
	maxAxis := 1.0
	n := float64(len(sorted))
	for i, p := range sorted {
		if p <= 0 {
			continue
		}
		expected := -math.Log10((float64(i) + 0.5) / n)
		observed := -math.Log10(p)
		points = append(points, opts.ScatterData{Value: []interface{}{expected, observed}})
		maxAxis = math.Max(maxAxis, math.Max(expected, observed))
	}

	lambda := GenomicInflation(sorted)
	title := fmt.Sprintf("%s Q-Q plot", chrom)
	if !math.IsNaN(lambda) {
		title = fmt.Sprintf("%s Q-Q plot (lambda = %.3f)", chrom, lambda)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Expected -log10(p)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Observed -log10(p)", Type: "value"}),
	)
	scatter.AddSeries("observed", points)
	scatter.AddSeries("null", []opts.ScatterData{
		{Value: []interface{}{0.0, 0.0}},
		{Value: []interface{}{maxAxis, maxAxis}},
	})
	return scatter
}

func manhattanChart(trait string, rows []AssocRow) *charts.Scatter {
	scatter := charts.NewScatter()
	title := fmt.Sprintf("%s Manhattan plot (p < %g)", trait, ManhattanThreshold)
	if len(rows) == 0 {
		title += " - no variants below threshold"
	}
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Position (bp)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "-log10(p)", Type: "value"}),
	)

	chromRows := make(map[string][]AssocRow)
	for _, r := range rows {
		chromRows[r.Chrom] = append(chromRows[r.Chrom], r)
	}
	chroms := make([]string, 0, len(chromRows))
	for chrom := range chromRows {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)

	for _, chrom := range chroms {
		var points []opts.ScatterData
		for _, r := range chromRows[chrom] {
			if r.P <= 0 {
				continue
			}
			points = append(points, opts.ScatterData{Value: []interface{}{r.Pos, -math.Log10(r.P)}})
		}
		scatter.AddSeries(chrom, points)
	}
	return scatter
}

func renderChart(chart *charts.Scatter, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return chart.Render(f)
}

// PlotTrait renders one Q-Q plot per chromosome present in the merged rows
// and a single Manhattan plot across chromosomes, restricted to
// p < ManhattanThreshold. An empty row set still renders an empty Manhattan
// page.
func PlotTrait(summary TraitSummary, visualsDir string) error {
	chromPs := make(map[string][]float64)
	for _, r := range summary.Rows {
		chromPs[r.Chrom] = append(chromPs[r.Chrom], r.P)
	}
	chroms := make([]string, 0, len(chromPs))
	for chrom := range chromPs {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)

	for _, chrom := range chroms {
		outPath := filepath.Join(visualsDir, fmt.Sprintf("%s_%s_qq.html", summary.Trait, chrom))
		if err := renderChart(qqChart(chrom, chromPs[chrom]), outPath); err != nil {
			return err
		}
		fmt.Printf("Q-Q plot for %s %s saved at: %s\n", summary.Trait, chrom, outPath)
	}

	manhattan := manhattanChart(summary.Trait, FilterByP(summary.Rows, ManhattanThreshold))
	outPath := filepath.Join(visualsDir, summary.Trait+"_manhattan.html")
	if err := renderChart(manhattan, outPath); err != nil {
		return err
	}
	fmt.Printf("Manhattan plot for %s saved at: %s\n\n", summary.Trait, outPath)
	return nil
}
