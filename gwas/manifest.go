package gwas

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ChromosomeResult is one chromosome's entry in the run manifest: the
// artifacts its QC/PCA/association chain produced, or the failure that
// stopped it. Downstream stages read paths from here instead of re-globbing
// the scratch directory.
type ChromosomeResult struct {
	Chromosome   string
	GenotypeFile string
	QCPrefix     string
	Eigenvec     string
	AssocFiles   map[string]string
	Err          error
}

func (r ChromosomeResult) Failed() bool {
	return r.Err != nil
}

// Manifest is the typed handoff from the per-chromosome runner to the
// aggregator.
type Manifest struct {
	Traits  []string
	Results []ChromosomeResult
}

func (m Manifest) Surviving() []ChromosomeResult {
	var out []ChromosomeResult
	for _, r := range m.Results {
		if !r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

func (m Manifest) FailedChromosomes() []ChromosomeResult {
	var out []ChromosomeResult
	for _, r := range m.Results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// RebuildManifest reconstructs a manifest from an earlier run's scratch tree,
// so aggregation can run as a standalone pass. A chromosome directory missing
// any trait's association output is recorded as failed.
func RebuildManifest(layout Layout, trait *TraitTable) (Manifest, error) {
	man := Manifest{Traits: trait.Traits}

	entries, err := os.ReadDir(layout.ScratchDir)
	if err != nil {
		return man, fmt.Errorf("reading scratch directory %s: %w", layout.ScratchDir, err)
	}

	var chroms []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != "genome" {
			chroms = append(chroms, e.Name())
		}
	}
	sort.Strings(chroms)

	for _, chrom := range chroms {
		res := ChromosomeResult{
			Chromosome: chrom,
			QCPrefix:   filepath.Join(layout.ChromScratch(chrom), "qc"),
			AssocFiles: make(map[string]string, len(trait.Traits)),
		}
		assocPrefix := filepath.Join(layout.ChromScratch(chrom), "assoc")
		for _, t := range trait.Traits {
			path := fmt.Sprintf("%s.%s.assoc.linear", assocPrefix, t)
			if _, statErr := os.Stat(path); statErr != nil {
				res.Err = fmt.Errorf("chromosome %s: no association output for trait %s", chrom, t)
				break
			}
			res.AssocFiles[t] = path
		}
		man.Results = append(man.Results, res)
	}
	if len(man.Results) == 0 {
		return man, fmt.Errorf("scratch directory %s holds no chromosome results; run assoc first", layout.ScratchDir)
	}
	return man, nil
}
