package gwas

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/exp/rand"
)

// writeAssocFile fabricates an association output file in the external tool's
// column layout, one ADD row plus one covariate row per variant.
func writeAssocFile(t *testing.T, dir, name string, chrCode int, positions []int, pValues []float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("CHR SNP BP A1 TEST NMISS BETA STAT P\n")
	for i, pos := range positions {
		fmt.Fprintf(&b, "%d rs%d %d A ADD 980 0.051 2.1 %g\n", chrCode, pos, pos, pValues[i])
		fmt.Fprintf(&b, "%d rs%d %d A COV1 980 0.009 0.4 0.71\n", chrCode, pos, pos)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Error writing association file: %v", err)
	}
	return path
}

func TestReadAssocFile(t *testing.T) {
	dir := t.TempDir()
	content := `CHR SNP BP A1 TEST NMISS BETA STAT P
1 rs101 1200 A ADD 980 0.05 2.1 0.002
1 rs101 1200 A COV1 980 0.01 0.4 0.71
1 rs102 3400 G ADD 975 -0.02 -0.9 NA
1 rs103 5600 T ADD 981 0.11 3.3 4.1e-05
`
	path := filepath.Join(dir, "assoc.height.assoc.linear")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Error writing association file: %v", err)
	}

	rows, err := ReadAssocFile(path, "chr1")
	if err != nil {
		t.Fatalf("ReadAssocFile failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("parsed %d rows, want 3 (NA p-value dropped)", len(rows))
	}
	if rows[0].Chrom != "chr1" || rows[0].SNP != "rs101" || rows[0].Pos != 1200 || rows[0].P != 0.002 {
		t.Errorf("first row parsed wrong: %+v", rows[0])
	}
	if rows[1].Test != "COV1" {
		t.Errorf("covariate rows must survive parsing, got %+v", rows[1])
	}
	if rows[2].P != 4.1e-05 {
		t.Errorf("scientific notation p = %v, want 4.1e-05", rows[2].P)
	}
}

func TestReadAssocFileBadHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assoc.height.assoc.linear")
	if err := os.WriteFile(path, []byte("SNP P\nrs1 0.1\n"), 0644); err != nil {
		t.Fatalf("Error writing association file: %v", err)
	}
	if _, err := ReadAssocFile(path, "chr1"); err == nil {
		t.Error("expected error for a malformed header")
	}
}

func TestAdditiveOnly(t *testing.T) {
	rows := []AssocRow{
		{SNP: "rs1", Test: "ADD"},
		{SNP: "rs1", Test: "COV1"},
		{SNP: "rs2", Test: "ADD"},
		{SNP: "rs2", Test: "DOMDEV"},
	}
	kept := AdditiveOnly(rows)
	if len(kept) != 2 {
		t.Fatalf("kept %d rows, want 2", len(kept))
	}
	for _, r := range kept {
		if r.Test != "ADD" {
			t.Errorf("non-additive row survived: %+v", r)
		}
	}
}

func TestSortRowsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var rows []AssocRow
	for _, chrom := range []string{"chr1", "chr2", "chr3"} {
		for i := 0; i < 20; i++ {
			rows = append(rows, AssocRow{Chrom: chrom, Pos: int(rng.Intn(1_000_000)), P: rng.Float64()})
		}
	}

	a := append([]AssocRow(nil), rows...)
	b := append([]AssocRow(nil), rows...)
	// reverse one copy so the inputs arrive in different orders
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}

	SortRows(a)
	SortRows(b)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sort is input-order dependent at index %d: %+v vs %+v", i, a[i], b[i])
		}
	}
	for i := 1; i < len(a); i++ {
		if a[i-1].Chrom > a[i].Chrom || (a[i-1].Chrom == a[i].Chrom && a[i-1].Pos > a[i].Pos) {
			t.Fatalf("rows out of order at index %d", i)
		}
	}
}

func TestFilterByP(t *testing.T) {
	rows := []AssocRow{
		{SNP: "rs1", P: 0.0005},
		{SNP: "rs2", P: 0.001},
		{SNP: "rs3", P: 0.5},
	}
	kept := FilterByP(rows, ManhattanThreshold)
	if len(kept) != 1 || kept[0].SNP != "rs1" {
		t.Fatalf("FilterByP kept %+v, want only rs1 (threshold is exclusive)", kept)
	}

	again := FilterByP(kept, ManhattanThreshold)
	if len(again) != len(kept) {
		t.Error("filtering an already filtered set must change nothing")
	}
}

func TestAggregate(t *testing.T) {
	home := t.TempDir()
	layout := NewLayout(home)
	if err := layout.EnsureResultDirs(); err != nil {
		t.Fatalf("EnsureResultDirs failed: %v", err)
	}

	dir1 := layout.ChromScratch("chr1")
	dir2 := layout.ChromScratch("chr2")
	for _, d := range []string{dir1, dir2} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Error creating scratch: %v", err)
		}
	}

	chr1Height := writeAssocFile(t, dir1, "assoc.height.assoc.linear", 1,
		[]int{1200, 3400, 5600}, []float64{0.002, 0.04, 0.0002})
	chr2Height := writeAssocFile(t, dir2, "assoc.height.assoc.linear", 2,
		[]int{800, 9100, 22000}, []float64{0.9, 0.0001, 0.03})
	chr1Weight := writeAssocFile(t, dir1, "assoc.weight.assoc.linear", 1,
		[]int{1200, 3400}, []float64{0.5, 0.6})

	man := Manifest{
		Traits: []string{"height", "weight"},
		Results: []ChromosomeResult{
			{Chromosome: "chr1", AssocFiles: map[string]string{"height": chr1Height, "weight": chr1Weight}},
			{Chromosome: "chr2", AssocFiles: map[string]string{"height": chr2Height}},
			{Chromosome: "chr3", Err: fmt.Errorf("QC on chr3: exit 13")},
		},
	}

	summaries, err := Aggregate(man, layout, 2)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	height := summaries[0]
	if height.Trait != "height" {
		t.Fatalf("summaries out of trait order: %+v", height)
	}
	if height.Contributed != 2 || height.FailedChroms != 1 {
		t.Errorf("height contributed/failed = %d/%d, want 2/1", height.Contributed, height.FailedChroms)
	}
	if len(height.Rows) != 6 {
		t.Errorf("height merged %d rows, want 6 additive rows", len(height.Rows))
	}

	weight := summaries[1]
	if weight.Contributed != 1 || weight.FailedChroms != 2 {
		t.Errorf("weight contributed/failed = %d/%d, want 1/2 (chr2 has no weight output)", weight.Contributed, weight.FailedChroms)
	}
	for _, r := range weight.Rows {
		if r.Chrom == "chr2" {
			t.Errorf("weight picked up a chr2 row it has no output for: %+v", r)
		}
	}

	f, err := os.Open(height.MergedCSV)
	if err != nil {
		t.Fatalf("merged CSV was not written: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("merged CSV is not parseable: %v", err)
	}
	if len(records) != 7 {
		t.Fatalf("merged CSV has %d records, want header + 6 rows", len(records))
	}
	if records[0][0] != "CHR" || records[0][8] != "P" {
		t.Errorf("merged CSV header wrong: %v", records[0])
	}
	if records[1][0] != "chr1" || records[1][2] != "1200" {
		t.Errorf("merged CSV not sorted by chromosome then position: %v", records[1])
	}

	for _, name := range []string{
		"height_chr1_qq.html", "height_chr2_qq.html", "height_manhattan.html",
		"weight_chr1_qq.html", "weight_manhattan.html",
	} {
		if _, err := os.Stat(filepath.Join(layout.VisualsDir, name)); err != nil {
			t.Errorf("plot %s was not written: %v", name, err)
		}
	}
}

func TestRebuildManifest(t *testing.T) {
	home := t.TempDir()
	layout := NewLayout(home)
	if err := layout.EnsureResultDirs(); err != nil {
		t.Fatalf("EnsureResultDirs failed: %v", err)
	}

	dir1 := layout.ChromScratch("chr1")
	dir2 := layout.ChromScratch("chr2")
	for _, d := range []string{dir1, dir2, filepath.Join(layout.ScratchDir, "genome")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Error creating scratch: %v", err)
		}
	}
	writeAssocFile(t, dir1, "assoc.height.assoc.linear", 1, []int{1200}, []float64{0.01})

	trait := &TraitTable{Traits: []string{"height"}}
	man, err := RebuildManifest(layout, trait)
	if err != nil {
		t.Fatalf("RebuildManifest failed: %v", err)
	}
	if len(man.Results) != 2 {
		t.Fatalf("rebuilt %d chromosomes, want 2 (genome dir excluded)", len(man.Results))
	}
	if len(man.Surviving()) != 1 || man.Surviving()[0].Chromosome != "chr1" {
		t.Errorf("chr1 should survive, got %+v", man.Surviving())
	}
	if len(man.FailedChromosomes()) != 1 || man.FailedChromosomes()[0].Chromosome != "chr2" {
		t.Errorf("chr2 has no output and should be failed, got %+v", man.FailedChromosomes())
	}
}
