package gwas

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/MerrimanLab/GWASPipeline/utils"
)

// Plink builds argument vectors for the external genetics tool. The tool owns
// all QC, PCA and regression arithmetic; this type only threads parameters.
type Plink struct {
	Exe string
}

// ConstFID is the synthesized family ID: all samples are treated as
// unrelated members of a single family.
const ConstFID = "0"

func formatFlag(fileFormat string) string {
	if fileFormat == utils.FormatBCF {
		return "--bcf"
	}
	return "--vcf"
}

// QCArgs filters a genotype file down to a clean binary set: variants with a
// missing-call fraction above callRate or a minor-allele frequency below maf
// are rejected.
func (p Plink) QCArgs(genotypeFile, fileFormat, keepFile string, callRate, maf float64, outPrefix string) []string {
	return []string{
		formatFlag(fileFormat), genotypeFile,
		"--const-fid", ConstFID,
		"--keep", keepFile,
		"--allow-no-sex",
		"--geno", strconv.FormatFloat(callRate, 'g', -1, 64),
		"--maf", strconv.FormatFloat(maf, 'g', -1, 64),
		"--make-bed",
		"--out", outPrefix,
	}
}

// PCAArgs estimates population structure from a QC'd binary set, emitting
// dims principal components per sample as an eigenvector table.
func (p Plink) PCAArgs(bfilePrefix string, dims int, outPrefix string) []string {
	return []string{
		"--bfile", bfilePrefix,
		"--pca", strconv.Itoa(dims),
		"--out", outPrefix,
	}
}

// AssocArgs runs a linear association test for every trait column in the
// phenotype file, adjusted for the structure covariates, with
// multiple-testing adjustment and no sex filtering.
func (p Plink) AssocArgs(bfilePrefix, phenoFile, covarFile, outPrefix string) []string {
	return []string{
		"--bfile", bfilePrefix,
		"--pheno", phenoFile,
		"--all-pheno",
		"--covar", covarFile,
		"--linear",
		"--adjust",
		"--allow-no-sex",
		"--out", outPrefix,
	}
}

// MergeArgs merges per-chromosome QC'd sets into one genome-wide binary set.
func (p Plink) MergeArgs(mergeListFile, outPrefix string) []string {
	return []string{
		"--merge-list", mergeListFile,
		"--make-bed",
		"--out", outPrefix,
	}
}

// WriteKeepFile writes the plink sample-keep list from the trait table's
// sample IDs, using the constant family ID.
func WriteKeepFile(t *TraitTable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, iid := range t.IIDs {
		fmt.Fprintf(w, "%s\t%s\n", ConstFID, iid)
	}
	return w.Flush()
}

// WriteMergeList writes one QC'd bfile prefix per line for --merge-list.
func WriteMergeList(prefixes []string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, prefix := range prefixes {
		fmt.Fprintln(w, prefix)
	}
	return w.Flush()
}
