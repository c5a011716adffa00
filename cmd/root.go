/*
Copyright © 2025 Merriman Lab
*/
package cmd

import (
	"log"
	"os"

	"github.com/MerrimanLab/GWASPipeline/utils"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gwaspipeline",
	Short: "A per-chromosome GWAS batch pipeline",
	Long: `gwaspipeline orchestrates a genome-wide association study around an
external plink-compatible tool:
1.	Trait inspection: per-trait distribution boxplots
2.	Quality control: call-rate and minor-allele-frequency filtering
3.	Population structure: PCA covariates, per chromosome or genome-wide
4.	Association: linear regression per trait, per chromosome
5.	Aggregation: merged result tables, Q-Q and Manhattan plots
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cfgFile string
var homeDir string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file ")
	rootCmd.PersistentFlags().StringVarP(&homeDir, "home", "H", "", "path to pipeline home directory ")

	rootCmd.PersistentFlags().String("plink", "", "path to the plink executable")
	rootCmd.PersistentFlags().String("trait-file", "", "phenotype file under <home>/Traits")
	rootCmd.PersistentFlags().Float64("call-rate", 0, "maximum missing-call fraction per variant")
	rootCmd.PersistentFlags().Float64("maf", 0, "minimum minor-allele frequency")
	rootCmd.PersistentFlags().IntP("pca", "p", 0, "number of principal components for structure covariates")
	rootCmd.PersistentFlags().StringP("format", "f", "", "genotype file format (vcf or bcf)")
	rootCmd.PersistentFlags().String("scope", "", "structure estimation scope (per_chromosome or global)")
	rootCmd.PersistentFlags().IntP("jobs", "j", 0, "number of chromosomes to run in parallel")
}

// loadConfig builds the run configuration: defaults, then the config file if
// one was given, then any flags the user set explicitly.
func loadConfig(cmd *cobra.Command) utils.Config {
	cfg := utils.DefaultConfig()
	if cfgFile != "" {
		var cfgErr error
		cfg, cfgErr = utils.ReadConfig(cfgFile)
		if cfgErr != nil {
			log.Fatalf("Error reading config file: %v", cfgErr)
		}
	}

	if homeDir != "" {
		cfg.HomeDir = homeDir
	}

	flags := cmd.Flags()
	if flags.Changed("plink") {
		plink, plErr := flags.GetString("plink")
		if plErr != nil {
			log.Fatalf("Error getting plink flag: %v", plErr)
		}
		cfg.Plink = plink
	}
	if flags.Changed("trait-file") {
		traitFile, tfErr := flags.GetString("trait-file")
		if tfErr != nil {
			log.Fatalf("Error getting trait-file flag: %v", tfErr)
		}
		cfg.TraitFile = traitFile
	}
	if flags.Changed("call-rate") {
		callRate, crErr := flags.GetFloat64("call-rate")
		if crErr != nil {
			log.Fatalf("Error getting call-rate flag: %v", crErr)
		}
		cfg.CallRate = callRate
	}
	if flags.Changed("maf") {
		maf, mafErr := flags.GetFloat64("maf")
		if mafErr != nil {
			log.Fatalf("Error getting maf flag: %v", mafErr)
		}
		cfg.MAF = maf
	}
	if flags.Changed("pca") {
		dims, pcaErr := flags.GetInt("pca")
		if pcaErr != nil {
			log.Fatalf("Error getting pca flag: %v", pcaErr)
		}
		cfg.PopStructDims = dims
	}
	if flags.Changed("format") {
		format, fErr := flags.GetString("format")
		if fErr != nil {
			log.Fatalf("Error getting format flag: %v", fErr)
		}
		cfg.FileFormat = format
	}
	if flags.Changed("scope") {
		scope, scErr := flags.GetString("scope")
		if scErr != nil {
			log.Fatalf("Error getting scope flag: %v", scErr)
		}
		cfg.PopStructScope = scope
	}
	if flags.Changed("jobs") {
		jobs, jErr := flags.GetInt("jobs")
		if jErr != nil {
			log.Fatalf("Error getting jobs flag: %v", jErr)
		}
		cfg.Jobs = jobs
	}

	if valErr := cfg.Validate(); valErr != nil {
		log.Fatalf("Invalid configuration: %v", valErr)
	}
	return cfg
}
