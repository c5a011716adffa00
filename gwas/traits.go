package gwas

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"
)

// TraitTable is the parsed phenotype file: FID IID trait_1 ... trait_n,
// one row per sample. Missing values (-9, NA) are held as NaN.
type TraitTable struct {
	Path   string
	FIDs   []string
	IIDs   []string
	Traits []string
	Values [][]float64
}

func (t *TraitTable) SampleCount() int {
	return len(t.IIDs)
}

func isMissing(field string) bool {
	switch strings.ToUpper(field) {
	case "-9", "NA", "NAN", ".":
		return true
	}
	return false
}

// LoadTraitTable reads a whitespace-delimited trait file. Shape errors carry
// the file name and offending column so a bad phenotype sheet is easy to
// track down.
func LoadTraitTable(path string) (*TraitTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	t := &TraitTable{Path: path}
	scanner := bufio.NewScanner(file)

	if !scanner.Scan() {
		return nil, fmt.Errorf("trait file %s is empty", path)
	}
	header := strings.Fields(scanner.Text())
	if len(header) < 3 {
		return nil, fmt.Errorf("trait file %s: header needs FID, IID and at least one trait column, got %d columns", path, len(header))
	}
	if !strings.EqualFold(header[0], "FID") || !strings.EqualFold(header[1], "IID") {
		return nil, fmt.Errorf("trait file %s: header must start with FID IID, got %q %q", path, header[0], header[1])
	}
	t.Traits = header[2:]

	lineNo := 1
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(header) {
			return nil, fmt.Errorf("trait file %s line %d: expected %d columns, got %d", path, lineNo, len(header), len(fields))
		}

		row := make([]float64, len(t.Traits))
		for i, field := range fields[2:] {
			if isMissing(field) {
				row[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("trait file %s line %d: trait %s value %q is not numeric", path, lineNo, t.Traits[i], field)
			}
			row[i] = v
		}
		t.FIDs = append(t.FIDs, fields[0])
		t.IIDs = append(t.IIDs, fields[1])
		t.Values = append(t.Values, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(t.IIDs) == 0 {
		return nil, fmt.Errorf("trait file %s holds no sample rows", path)
	}
	return t, nil
}

// WideToLong reshapes the table to one row per sample-trait pair:
// {FID, IID, trait, value}. Every original cell appears exactly once;
// missing values come through as NaN.
func (t *TraitTable) WideToLong() dataframe.DataFrame {
	records := [][]string{{"FID", "IID", "trait", "value"}}
	for s := range t.IIDs {
		for k, trait := range t.Traits {
			records = append(records, []string{
				t.FIDs[s], t.IIDs[s], trait,
				strconv.FormatFloat(t.Values[s][k], 'g', -1, 64),
			})
		}
	}
	return dataframe.LoadRecords(records)
}

func fiveNumberSummary(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return []float64{
		sorted[0],
		stat.Quantile(0.25, stat.Empirical, sorted, nil),
		stat.Quantile(0.5, stat.Empirical, sorted, nil),
		stat.Quantile(0.75, stat.Empirical, sorted, nil),
		sorted[len(sorted)-1],
	}
}

// VisualizeTraits renders one boxplot per trait column, all facets on a
// single page with independent y scales, named after the trait file.
func VisualizeTraits(t *TraitTable, visualsDir string) (string, error) {
	fmt.Printf("Creating trait boxplots ...\n\n")

	long := t.WideToLong()
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	traitCol := long.Col("trait").Records()
	valueCol := long.Col("value").Float()

	freeScale := true
	for _, trait := range t.Traits {
		var values []float64
		for i, name := range traitCol {
			if name == trait && !math.IsNaN(valueCol[i]) {
				values = append(values, valueCol[i])
			}
		}

		box := charts.NewBoxPlot()
		box.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
			charts.WithTitleOpts(opts.Title{Title: trait}),
			charts.WithYAxisOpts(opts.YAxis{Name: trait, Scale: &freeScale}),
		)

		var data []opts.BoxPlotData
		if len(values) > 0 {
			data = append(data, opts.BoxPlotData{Value: fiveNumberSummary(values)})
		}
		box.SetXAxis([]string{trait}).AddSeries(trait, data)
		page.AddCharts(box)
	}

	base := strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
	outPath := filepath.Join(visualsDir, base+"_boxplot.html")
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return "", err
	}
	fmt.Printf("Trait boxplots saved at: %s\n\n", outPath)
	return outPath, nil
}
