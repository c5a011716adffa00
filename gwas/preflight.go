package gwas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MerrimanLab/GWASPipeline/utils"
)

// Layout is the on-disk shape of one pipeline run, rooted at the home
// directory. Traits/ and Genotypes/ are inputs; Results/ is durable output;
// Scratch/ holds per-run artifacts and may grow large.
type Layout struct {
	HomeDir      string
	TraitsDir    string
	GenotypesDir string
	ResultsDir   string
	VisualsDir   string
	ScratchDir   string
	LogFile      string
}

func NewLayout(homeDir string) Layout {
	return Layout{
		HomeDir:      homeDir,
		TraitsDir:    filepath.Join(homeDir, "Traits"),
		GenotypesDir: filepath.Join(homeDir, "Genotypes"),
		ResultsDir:   filepath.Join(homeDir, "Results"),
		VisualsDir:   filepath.Join(homeDir, "Results", "Visualisations"),
		ScratchDir:   filepath.Join(homeDir, "Scratch"),
		LogFile:      filepath.Join(homeDir, "gwas.log"),
	}
}

func (l Layout) EnsureResultDirs() error {
	for _, dir := range []string{l.ResultsDir, l.VisualsDir, l.ScratchDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

func (l Layout) ChromScratch(chrom string) string {
	return filepath.Join(l.ScratchDir, chrom)
}

// ChromosomeLabel derives the chromosome name from a genotype file: the base
// name up to the first period (chr1.vcf.gz -> chr1).
func ChromosomeLabel(genotypeFile string) string {
	base := filepath.Base(genotypeFile)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func isGenotypeFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".vcf") ||
		strings.HasSuffix(lower, ".vcf.gz") ||
		strings.HasSuffix(lower, ".bcf")
}

// ListGenotypeFiles enumerates the genotype inputs sorted by chromosome label
// so downstream ordering is deterministic.
func ListGenotypeFiles(genotypesDir string) ([]string, error) {
	entries, err := os.ReadDir(genotypesDir)
	if err != nil {
		return nil, fmt.Errorf("reading genotype directory %s: %w", genotypesDir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !isGenotypeFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(genotypesDir, e.Name()))
	}
	sort.Slice(files, func(i, j int) bool {
		return ChromosomeLabel(files[i]) < ChromosomeLabel(files[j])
	})
	return files, nil
}

// ResolveTraitFile picks the run's single trait file: the configured path if
// set, otherwise the sole file in Traits/.
func ResolveTraitFile(cfg utils.Config, l Layout) (string, error) {
	if cfg.TraitFile != "" {
		path := cfg.TraitFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.HomeDir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("trait file %s: %w", path, err)
		}
		return path, nil
	}

	entries, err := os.ReadDir(l.TraitsDir)
	if err != nil {
		return "", fmt.Errorf("reading trait directory %s: %w", l.TraitsDir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(l.TraitsDir, e.Name()))
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("trait directory %s is empty", l.TraitsDir)
	}
	if len(files) > 1 {
		return "", fmt.Errorf("trait directory %s holds %d files; set TraitFile to choose one", l.TraitsDir, len(files))
	}
	return files[0], nil
}

// Preflight validates the environment before any subprocess work starts.
// Every failure here is fatal: missing inputs or an unreachable external
// tool must halt the run before anything expensive happens.
func Preflight(ctx context.Context, cfg utils.Config) (Layout, []string, string, error) {
	layout := NewLayout(cfg.HomeDir)

	fmt.Printf("Checking output directories ...\n")
	if err := layout.EnsureResultDirs(); err != nil {
		return layout, nil, "", err
	}

	fmt.Printf("Probing external tool %s ...\n", cfg.Plink)
	if err := utils.CheckDeps(ctx, cfg.Plink); err != nil {
		return layout, nil, "", err
	}

	traitFile, err := ResolveTraitFile(cfg, layout)
	if err != nil {
		return layout, nil, "", err
	}

	genotypes, err := ListGenotypeFiles(layout.GenotypesDir)
	if err != nil {
		return layout, nil, "", err
	}
	if len(genotypes) == 0 {
		return layout, nil, "", fmt.Errorf("genotype directory %s holds no vcf/bcf files", layout.GenotypesDir)
	}

	fmt.Printf("Found %d genotype file(s), trait file %s\n\n", len(genotypes), traitFile)
	return layout, genotypes, traitFile, nil
}
