package gwas

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MerrimanLab/GWASPipeline/utils"
)

// Runner drives the per-chromosome QC -> structure -> association chain.
// Chromosomes are independent and run on a bounded worker pool; each one
// writes only under its own scratch subdirectory, so no two jobs ever touch
// the same artifact. A chromosome failure is recorded in the manifest and
// does not stop the others.
type Runner struct {
	Cfg    utils.Config
	Layout Layout
	Plink  Plink
	Log    *slog.Logger

	logged []utils.LogEntry
}

func NewRunner(cfg utils.Config, layout Layout, logger *slog.Logger) *Runner {
	return &Runner{
		Cfg:    cfg,
		Layout: layout,
		Plink:  Plink{Exe: cfg.Plink},
		Log:    logger,
		logged: utils.ParseLogFile(layout.LogFile),
	}
}

// Run executes the association chain for every genotype file and returns the
// manifest of produced artifacts. The only non-nil error returns are
// cancellation and setup failures that affect every chromosome; per-unit
// failures live in the manifest.
func (r *Runner) Run(ctx context.Context, trait *TraitTable, genotypeFiles []string) (Manifest, error) {
	man := Manifest{
		Traits:  trait.Traits,
		Results: make([]ChromosomeResult, len(genotypeFiles)),
	}

	keepFile := filepath.Join(r.Layout.ScratchDir, "keep.txt")
	if err := WriteKeepFile(trait, keepFile); err != nil {
		return man, fmt.Errorf("writing sample keep list: %w", err)
	}

	fmt.Printf("================================== GWAS Start ======================================\n\n")
	fmt.Printf("Running %d chromosome(s) on %d worker(s), structure scope %q ...\n\n",
		len(genotypeFiles), r.Cfg.Jobs, r.Cfg.PopStructScope)
	runStart := time.Now()

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.Cfg.Jobs)
	for i, genotype := range genotypeFiles {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, genotype string) {
			defer wg.Done()
			defer func() { <-sem }()
			man.Results[i] = r.runChromosome(ctx, genotype, trait, keepFile)
		}(i, genotype)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return man, ctx.Err()
	}

	if r.Cfg.PopStructScope == utils.ScopeGlobal {
		if err := r.globalStructure(ctx, trait, &man); err != nil {
			return man, err
		}
	}

	fmt.Printf("GWAS took %s\n", time.Since(runStart))
	for _, res := range man.Results {
		if res.Failed() {
			fmt.Printf("Chromosome %s FAILED: %v\n", res.Chromosome, res.Err)
		}
	}
	fmt.Printf("%d/%d chromosome(s) completed\n\n", len(man.Surviving()), len(man.Results))
	fmt.Printf("================================== GWAS End ======================================\n\n")
	return man, nil
}

func (r *Runner) runChromosome(ctx context.Context, genotype string, trait *TraitTable, keepFile string) ChromosomeResult {
	chrom := ChromosomeLabel(genotype)
	res := ChromosomeResult{Chromosome: chrom, GenotypeFile: genotype}

	dir := r.Layout.ChromScratch(chrom)
	if err := os.MkdirAll(dir, 0755); err != nil {
		res.Err = fmt.Errorf("creating scratch for %s: %w", chrom, err)
		return res
	}

	res.QCPrefix = filepath.Join(dir, "qc")
	qcArgs := r.Plink.QCArgs(genotype, r.Cfg.FileFormat, keepFile, r.Cfg.CallRate, r.Cfg.MAF, res.QCPrefix)
	if err := r.runStage(ctx, "QC", chrom, qcArgs); err != nil {
		res.Err = err
		return res
	}

	if r.Cfg.PopStructScope != utils.ScopePerChromosome {
		// structure and association happen after the genome-wide merge
		return res
	}

	pcaPrefix := filepath.Join(dir, "pca")
	if err := r.runStage(ctx, "PCA", chrom, r.Plink.PCAArgs(res.QCPrefix, r.Cfg.PopStructDims, pcaPrefix)); err != nil {
		res.Err = err
		return res
	}
	res.Eigenvec = pcaPrefix + ".eigenvec"

	return r.runAssociation(ctx, res, trait)
}

func (r *Runner) runAssociation(ctx context.Context, res ChromosomeResult, trait *TraitTable) ChromosomeResult {
	assocPrefix := filepath.Join(r.Layout.ChromScratch(res.Chromosome), "assoc")
	args := r.Plink.AssocArgs(res.QCPrefix, trait.Path, res.Eigenvec, assocPrefix)
	if err := r.runStage(ctx, "ASSOC", res.Chromosome, args); err != nil {
		res.Err = err
		return res
	}

	res.AssocFiles = make(map[string]string, len(trait.Traits))
	for _, t := range trait.Traits {
		path := fmt.Sprintf("%s.%s.assoc.linear", assocPrefix, t)
		if _, err := os.Stat(path); err != nil {
			res.Err = fmt.Errorf("chromosome %s: association output for trait %s was not produced: %w", res.Chromosome, t, err)
			return res
		}
		res.AssocFiles[t] = path
	}
	return res
}

// globalStructure merges the surviving QC'd sets, estimates structure once
// genome-wide, and runs every chromosome's association against the shared
// eigenvector table.
func (r *Runner) globalStructure(ctx context.Context, trait *TraitTable, man *Manifest) error {
	var prefixes []string
	for _, res := range man.Results {
		if !res.Failed() {
			prefixes = append(prefixes, res.QCPrefix)
		}
	}
	if len(prefixes) == 0 {
		return fmt.Errorf("no chromosome survived QC; cannot estimate population structure")
	}

	genomeDir := filepath.Join(r.Layout.ScratchDir, "genome")
	if err := os.MkdirAll(genomeDir, 0755); err != nil {
		return err
	}

	mergeList := filepath.Join(genomeDir, "merge_list.txt")
	if err := WriteMergeList(prefixes, mergeList); err != nil {
		return err
	}

	genomePrefix := filepath.Join(genomeDir, "qc")
	if err := r.runStage(ctx, "MERGE", "ALL", r.Plink.MergeArgs(mergeList, genomePrefix)); err != nil {
		return err
	}

	pcaPrefix := filepath.Join(genomeDir, "pca")
	if err := r.runStage(ctx, "PCA", "ALL", r.Plink.PCAArgs(genomePrefix, r.Cfg.PopStructDims, pcaPrefix)); err != nil {
		return err
	}
	eigenvec := pcaPrefix + ".eigenvec"

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.Cfg.Jobs)
	for i := range man.Results {
		if man.Results[i].Failed() {
			continue
		}
		man.Results[i].Eigenvec = eigenvec
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			man.Results[i] = r.runAssociation(ctx, man.Results[i], trait)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

// runStage launches one external-tool invocation, checkpointing completion in
// the JSON log so a re-run skips finished work.
func (r *Runner) runStage(ctx context.Context, stage, chrom string, args []string) error {
	if utils.StageHasCompleted(r.logged, stage, chrom, "ALL") {
		fmt.Printf("%s for %s has already completed. Skipping ...\n", stage, chrom)
		return nil
	}

	cmdLine := r.Plink.Exe + " " + strings.Join(args, " ")
	r.Log.Info("GWAS", "STAGE", stage, "CHROMOSOME", chrom, "TRAIT", "ALL", "STATUS", "STARTED", "CMD", cmdLine)

	result, err := utils.RunCommand(ctx, r.Plink.Exe, args...)
	if err != nil {
		r.Log.Error("GWAS", "STAGE", stage, "CHROMOSOME", chrom, "TRAIT", "ALL", "STATUS", fmt.Sprintf("FAILED - %v", err), "CMD", cmdLine)
		return fmt.Errorf("%s on %s: %w", stage, chrom, err)
	}
	if result.Failed() {
		r.Log.Error("GWAS", "STAGE", stage, "CHROMOSOME", chrom, "TRAIT", "ALL", "STATUS", fmt.Sprintf("FAILED - exit %d", result.ExitCode), "CMD", cmdLine)
		return fmt.Errorf("%s on %s: %w", stage, chrom, result.Error())
	}

	r.Log.Info("GWAS", "STAGE", stage, "CHROMOSOME", chrom, "TRAIT", "ALL", "STATUS", "COMPLETED", "CMD", cmdLine)
	return nil
}
