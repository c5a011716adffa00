package gwas

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// AssocRow is one variant's linear-regression result as emitted by the
// external tool (CHR SNP BP A1 TEST NMISS BETA STAT P). Chrom carries the
// pipeline's chromosome label rather than the tool's numeric CHR code.
type AssocRow struct {
	Chrom  string
	SNP    string
	Pos    int
	Allele string
	Test   string
	NMiss  int
	Beta   float64
	Stat   float64
	P      float64
}

const additiveTest = "ADD"

// ManhattanThreshold is the p-value cutoff applied to the Manhattan plot.
const ManhattanThreshold = 0.001

// ReadAssocFile parses a whitespace-delimited association output file.
// Rows with a non-numeric p-value (NA) are dropped.
func ReadAssocFile(path, chrom string) ([]AssocRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rows []AssocRow
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if lineNo == 1 {
			if len(fields) < 9 || fields[0] != "CHR" {
				return nil, fmt.Errorf("association file %s: unexpected header %q", path, strings.Join(fields, " "))
			}
			continue
		}
		if len(fields) < 9 {
			return nil, fmt.Errorf("association file %s line %d: expected 9 columns, got %d", path, lineNo, len(fields))
		}

		p, err := strconv.ParseFloat(fields[8], 64)
		if err != nil {
			continue
		}
		pos, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("association file %s line %d: bad position %q", path, lineNo, fields[2])
		}
		nmiss, _ := strconv.Atoi(fields[5])
		beta, _ := strconv.ParseFloat(fields[6], 64)
		stat, _ := strconv.ParseFloat(fields[7], 64)

		rows = append(rows, AssocRow{
			Chrom:  chrom,
			SNP:    fields[1],
			Pos:    pos,
			Allele: fields[3],
			Test:   fields[4],
			NMiss:  nmiss,
			Beta:   beta,
			Stat:   stat,
			P:      p,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// AdditiveOnly keeps the additive-effect test rows; covariate rows are noise
// downstream.
func AdditiveOnly(rows []AssocRow) []AssocRow {
	return lo.Filter(rows, func(r AssocRow, _ int) bool {
		return r.Test == additiveTest
	})
}

// SortRows orders by chromosome label, then position. Concatenation order
// upstream does not matter; content after this sort is deterministic.
func SortRows(rows []AssocRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Chrom != rows[j].Chrom {
			return rows[i].Chrom < rows[j].Chrom
		}
		return rows[i].Pos < rows[j].Pos
	})
}

// FilterByP keeps rows with p below the threshold.
func FilterByP(rows []AssocRow, threshold float64) []AssocRow {
	return lo.Filter(rows, func(r AssocRow, _ int) bool {
		return r.P < threshold
	})
}

// TraitSummary reports one trait's aggregation outcome.
type TraitSummary struct {
	Trait        string
	Contributed  int
	FailedChroms int
	MergedCSV    string
	Rows         []AssocRow
}

// Aggregate merges every surviving chromosome's additive rows per trait,
// writes the merged CSV under Results, and renders the Q-Q and Manhattan
// plots. Traits are independent and run on a bounded worker pool. A
// chromosome missing a trait's output is counted as failed; the remaining
// chromosomes still produce output.
func Aggregate(man Manifest, layout Layout, jobs int) ([]TraitSummary, error) {
	fmt.Printf("================================== Aggregation Start ======================================\n\n")

	summaries := make([]TraitSummary, len(man.Traits))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, trait := range man.Traits {
		g.Go(func() error {
			summary, err := aggregateTrait(man, layout, trait)
			summaries[i] = summary
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return summaries, err
	}

	fmt.Printf("================================== Aggregation End ======================================\n\n")
	return summaries, nil
}

func aggregateTrait(man Manifest, layout Layout, trait string) (TraitSummary, error) {
	fmt.Printf("Aggregating results for trait %s ...\n", trait)
	summary := TraitSummary{Trait: trait, FailedChroms: len(man.FailedChromosomes())}

	for _, res := range man.Surviving() {
		path, ok := res.AssocFiles[trait]
		if !ok {
			summary.FailedChroms++
			fmt.Printf("Chromosome %s has no association output for trait %s\n", res.Chromosome, trait)
			continue
		}
		rows, err := ReadAssocFile(path, res.Chromosome)
		if err != nil {
			summary.FailedChroms++
			fmt.Printf("Chromosome %s: %v\n", res.Chromosome, err)
			continue
		}
		summary.Rows = append(summary.Rows, AdditiveOnly(rows)...)
		summary.Contributed++
	}
	SortRows(summary.Rows)

	summary.MergedCSV = filepath.Join(layout.ResultsDir, trait+".assoc.csv")
	if err := WriteMergedCSV(summary.Rows, summary.MergedCSV); err != nil {
		return summary, fmt.Errorf("trait %s: %w", trait, err)
	}
	fmt.Printf("Merged results for %s saved at: %s (%d rows, %d chromosome(s) contributed, %d failed)\n\n",
		trait, summary.MergedCSV, len(summary.Rows), summary.Contributed, summary.FailedChroms)

	if err := PlotTrait(summary, layout.VisualsDir); err != nil {
		return summary, fmt.Errorf("plotting trait %s: %w", trait, err)
	}
	return summary, nil
}

// WriteMergedCSV persists the merged table: comma-separated, header row, no
// index column.
func WriteMergedCSV(rows []AssocRow, outputFile string) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"CHR", "SNP", "BP", "A1", "TEST", "NMISS", "BETA", "STAT", "P"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Chrom, r.SNP, strconv.Itoa(r.Pos), r.Allele, r.Test,
			strconv.Itoa(r.NMiss),
			strconv.FormatFloat(r.Beta, 'g', -1, 64),
			strconv.FormatFloat(r.Stat, 'g', -1, 64),
			strconv.FormatFloat(r.P, 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}
