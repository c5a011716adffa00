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

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run -c <config file> [args]",
	Short: "Runs the full GWAS pipeline",
	Long: `run executes every pipeline stage in order:
1. Preflight checks (directories, external tool, inputs)
2. Trait distribution boxplots
3. Per-chromosome QC, structure estimation and association
4. Aggregation with Q-Q and Manhattan plots

A re-run of the same home directory skips stages the log records as
completed.`,
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

		// boxplots are advisory; a render failure must not stop the GWAS
		if _, visErr := gwas.VisualizeTraits(trait, layout.VisualsDir); visErr != nil {
			fmt.Printf("Error visualising traits: %v\n\n", visErr)
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

		if _, aggErr := gwas.Aggregate(man, layout, cfg.Jobs); aggErr != nil {
			log.Fatalf("Aggregation failed: %v", aggErr)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
