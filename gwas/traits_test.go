package gwas

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTraitFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phenotypes.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Error writing trait file: %v", err)
	}
	return path
}

func TestLoadTraitTable(t *testing.T) {
	path := writeTraitFile(t, `FID IID height weight urate
0 NZ001 172.2 70.5 0.41
0 NZ002 -9 81.0 0.35
0 NZ003 168.9 NA 0.29
`)

	table, err := LoadTraitTable(path)
	if err != nil {
		t.Fatalf("LoadTraitTable failed: %v", err)
	}

	if table.SampleCount() != 3 {
		t.Errorf("SampleCount = %d, want 3", table.SampleCount())
	}
	if len(table.Traits) != 3 || table.Traits[0] != "height" || table.Traits[2] != "urate" {
		t.Errorf("Traits = %v, want [height weight urate]", table.Traits)
	}
	if table.IIDs[1] != "NZ002" {
		t.Errorf("IIDs[1] = %q, want NZ002", table.IIDs[1])
	}
	if table.Values[0][0] != 172.2 {
		t.Errorf("Values[0][0] = %v, want 172.2", table.Values[0][0])
	}
	if !math.IsNaN(table.Values[1][0]) {
		t.Errorf("-9 should load as NaN, got %v", table.Values[1][0])
	}
	if !math.IsNaN(table.Values[2][1]) {
		t.Errorf("NA should load as NaN, got %v", table.Values[2][1])
	}
}

func TestLoadTraitTableBadInputs(t *testing.T) {
	cases := []struct {
		name    string
		content string
		errPart string
	}{
		{"empty file", "", "empty"},
		{"no trait columns", "FID IID\n0 NZ001\n", "at least one trait"},
		{"wrong leading columns", "SAMPLE ID height\n0 NZ001 172.2\n", "must start with FID IID"},
		{"ragged row", "FID IID height\n0 NZ001 172.2\n0 NZ002\n", "expected 3 columns"},
		{"non-numeric value", "FID IID height\n0 NZ001 tall\n", "not numeric"},
		{"header only", "FID IID height\n", "no sample rows"},
	}

	for _, tc := range cases {
		path := writeTraitFile(t, tc.content)
		_, err := LoadTraitTable(path)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.errPart) {
			t.Errorf("%s: error %q should mention %q", tc.name, err, tc.errPart)
		}
	}
}

func TestWideToLong(t *testing.T) {
	path := writeTraitFile(t, `FID IID height weight
0 NZ001 172.2 70.5
0 NZ002 169.4 -9
`)
	table, err := LoadTraitTable(path)
	if err != nil {
		t.Fatalf("LoadTraitTable failed: %v", err)
	}

	long := table.WideToLong()
	rows, cols := long.Dims()
	if rows != 4 || cols != 4 {
		t.Fatalf("long shape = %dx%d, want 4x4 (samples x traits rows)", rows, cols)
	}

	traits := long.Col("trait").Records()
	values := long.Col("value").Float()
	found := false
	for i := range traits {
		if traits[i] == "height" && values[i] == 172.2 {
			found = true
		}
	}
	if !found {
		t.Error("cell (NZ001, height)=172.2 missing from long form")
	}

	nanCount := 0
	for _, v := range values {
		if math.IsNaN(v) {
			nanCount++
		}
	}
	if nanCount != 1 {
		t.Errorf("long form should carry exactly 1 NaN, got %d", nanCount)
	}
}

func TestVisualizeTraits(t *testing.T) {
	path := writeTraitFile(t, `FID IID height weight
0 NZ001 172.2 70.5
0 NZ002 169.4 81.0
0 NZ003 181.0 77.3
0 NZ004 165.5 -9
0 NZ005 170.1 69.8
`)
	table, err := LoadTraitTable(path)
	if err != nil {
		t.Fatalf("LoadTraitTable failed: %v", err)
	}

	visualsDir := t.TempDir()
	page, err := VisualizeTraits(table, visualsDir)
	if err != nil {
		t.Fatalf("VisualizeTraits failed: %v", err)
	}

	if filepath.Base(page) != "phenotypes_boxplot.html" {
		t.Errorf("page name = %s, want phenotypes_boxplot.html", filepath.Base(page))
	}
	info, statErr := os.Stat(page)
	if statErr != nil {
		t.Fatalf("boxplot page was not written: %v", statErr)
	}
	if info.Size() == 0 {
		t.Error("boxplot page is empty")
	}
}

func TestFiveNumberSummary(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}
	summary := fiveNumberSummary(values)
	if summary[0] != 1 || summary[4] != 5 {
		t.Errorf("min/max = %v/%v, want 1/5", summary[0], summary[4])
	}
	if summary[2] != 3 {
		t.Errorf("median = %v, want 3", summary[2])
	}
}
