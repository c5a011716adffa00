/*
Copyright © 2025 Merriman Lab
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/MerrimanLab/GWASPipeline/gwas"
	"github.com/spf13/cobra"
)

// aggregateCmd represents the aggregate command
var aggregateCmd = &cobra.Command{
	Use:   "aggregate -H <home directory> [args]",
	Short: "Merges per-chromosome association results and renders plots",
	Long: `aggregate collects the association outputs left under Scratch/ by an
earlier assoc (or run) pass, keeps the additive-test rows, and writes per
trait:
1. A merged CSV under Results/
2. One Q-Q plot per chromosome with the genomic inflation factor
3. A Manhattan plot of variants with p < 0.001`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		layout := gwas.NewLayout(cfg.HomeDir)

		if dirErr := layout.EnsureResultDirs(); dirErr != nil {
			log.Fatalf("Error creating output directories: %v", dirErr)
		}

		traitFile, resErr := gwas.ResolveTraitFile(cfg, layout)
		if resErr != nil {
			log.Fatalf("Error resolving trait file: %v", resErr)
		}
		trait, traitErr := gwas.LoadTraitTable(traitFile)
		if traitErr != nil {
			log.Fatalf("Error reading trait file: %v", traitErr)
		}

		man, manErr := gwas.RebuildManifest(layout, trait)
		if manErr != nil {
			log.Fatalf("Error rebuilding run manifest: %v", manErr)
		}
		for _, res := range man.FailedChromosomes() {
			fmt.Printf("Skipping chromosome %s: %v\n", res.Chromosome, res.Err)
		}

		if _, aggErr := gwas.Aggregate(man, layout, cfg.Jobs); aggErr != nil {
			log.Fatalf("Aggregation failed: %v", aggErr)
		}
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
}
