/*
Copyright © 2025 Merriman Lab
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/MerrimanLab/GWASPipeline/gwas"
	"github.com/MerrimanLab/GWASPipeline/utils"
	"github.com/spf13/cobra"
)

// assocCmd represents the assoc command
var assocCmd = &cobra.Command{
	Use:   "assoc -c <config file> [args]",
	Short: "Runs per-chromosome QC, structure estimation and association only",
	Long: `assoc runs the subprocess stages of the pipeline (QC, PCA and linear
association per chromosome) without trait visualisation or aggregation.
Association outputs stay under Scratch/<chromosome>/ for a later aggregate
pass. A re-run skips stages the log records as completed.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Checking dependencies ...\n\n")
		layout, genotypes, traitFile, preErr := gwas.Preflight(ctx, cfg)
		if preErr != nil {
			log.Fatalf("Preflight failed: %v", preErr)
		}
		fmt.Printf("Dependencies OK\n\n----------------------------------------------------------\n\n")

		trait, traitErr := gwas.LoadTraitTable(traitFile)
		if traitErr != nil {
			log.Fatalf("Error reading trait file: %v", traitErr)
		}

		logger, closer, logErr := utils.NewPipelineLogger(layout.LogFile)
		if logErr != nil {
			log.Fatalf("Error opening pipeline log: %v", logErr)
		}
		defer closer.Close()

		runner := gwas.NewRunner(cfg, layout, logger)
		man, runErr := runner.Run(ctx, trait, genotypes)
		if runErr != nil {
			log.Fatalf("GWAS run failed: %v", runErr)
		}

		for _, res := range man.FailedChromosomes() {
			fmt.Printf("Chromosome %s failed; aggregate will run without it\n", res.Chromosome)
		}
	},
}

func init() {
	rootCmd.AddCommand(assocCmd)
}
