/*
Copyright © 2025 Merriman Lab
*/
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/MerrimanLab/GWASPipeline/gwas"
	"github.com/spf13/cobra"
)

// traitsCmd represents the traits command
var traitsCmd = &cobra.Command{
	Use:   "traits -H <home directory> [args]",
	Short: "Validates the trait file and renders distribution boxplots",
	Long: `traits reads the phenotype table (FID IID trait1 trait2 ...),
validates it, and writes one boxplot per trait to a single HTML page under
Results/Visualisations. Use it to eyeball trait distributions before
committing to a full run.`,
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
		fmt.Printf("Trait file %s: %d sample(s), %d trait(s)\n\n", traitFile, trait.SampleCount(), len(trait.Traits))

		page, visErr := gwas.VisualizeTraits(trait, layout.VisualsDir)
		if visErr != nil {
			fmt.Printf("Error visualising traits: %v\n", visErr)
			os.Exit(1)
		}
		fmt.Printf("Boxplots saved at: %s\n", page)
	},
}

func init() {
	rootCmd.AddCommand(traitsCmd)
}
