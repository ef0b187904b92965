// SPDX-License-Identifier: MIT

// Command lfqstat turns a peptide evidence table from label-free
// quantitative mass spectrometry into protein-level differential-abundance
// statistics: median rollup to proteins, quality filtering, k-nearest-
// neighbour imputation, cyclic loess normalization and an empirical-Bayes
// moderated t-test per treatment group against the control group.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Program name and version, reported by -version
const progName = "lfqStat"

var progVersion = `Unknown`

// Format version of the matrix artifact, stored in the JSON output so old
// artifacts remain readable when the layout changes.
const artifactFormatVersion = "1.0"

const (
	infoDefault = iota
	infoSilent
	infoVerbose
)

// Layer names used across the pipeline.
const (
	layerRaw     = "raw"
	layerLog2    = "log2"
	layerImputed = "imputed"
	layerNorm    = "norm"
)

// Command line parameters
type params struct {
	evidenceFilename  *string // tab-separated evidence table (positional)
	resultsFilename   *string // differential-abundance results TSV
	matrixFilename    *string // layered matrix JSON artifact
	selectionFilename *string // effect-size / variance split TSV
	refFilename       *string // reference artifact for comparison
	control           *string // reference (control) group label
	excludeStr        *string // comma-separated experiments to drop
	exclude           map[string]bool
	minPeptides       *int     // protein rows need more than this many peptides
	maxMissing        *float64 // protein rows need a lower absent fraction
	knn               *int     // imputation neighbour count
	minOverlap        *int     // minimum shared columns for a neighbour distance
	dropOrphans       *bool    // drop rows that cannot be imputed instead of failing
	countPresent      *bool    // child counts ignore all-absent children
	cycles            *int     // normalization passes over all sample pairs
	span              *float64 // lowess span
	subsample         *float64 // fraction of points used as smoother anchors
	pCut              *float64 // p-value cutoff for the reported summary
	fcCut             *float64 // |log2 fold-change| cutoff for the reported summary
	gCut              *float64 // |Hedges' g| selection threshold
	verbosity         int
	args              []string
	debug             bool // extra debug output (environment variable LFQSTAT_DEBUG=1)
}

// sanitizeParams does some checks on parameters, and fills missing
// filenames if possible
func sanitizeParams(par *params) {
	exeName := filepath.Base(os.Args[0])

	if len(par.args) != 1 {
		fmt.Fprintf(os.Stderr, `Last argument must be name of evidence file.
Type %s --help for usage
`, exeName)
		os.Exit(2)
	}

	evidence := par.args[0]
	par.evidenceFilename = &evidence
	var extension = filepath.Ext(evidence)
	var startName = evidence[0 : len(evidence)-len(extension)]

	if *par.resultsFilename == "" {
		*par.resultsFilename = startName + "-results.tsv"
	}
	if *par.matrixFilename == "" {
		*par.matrixFilename = startName + "-protein.json"
	}
	if *par.selectionFilename == "" {
		*par.selectionFilename = startName + "-selection.tsv"
	}

	par.exclude = make(map[string]bool)
	for _, name := range strings.Split(*par.excludeStr, ",") {
		if name = strings.TrimSpace(name); name != "" {
			par.exclude[name] = true
		}
	}

	if *par.maxMissing < 0 || *par.maxMissing > 1 {
		fmt.Fprintf(os.Stderr, `Invalid value for parameter 'maxmissing', must be within 0:1.
Type %s --help for usage
`, exeName)
		os.Exit(2)
	}
	if *par.subsample <= 0 || *par.subsample > 1 {
		fmt.Fprintf(os.Stderr, `Invalid value for parameter 'subsample', must be within 0:1.
Type %s --help for usage
`, exeName)
		os.Exit(2)
	}
	if *par.knn < 1 || *par.cycles < 1 || *par.minOverlap < 1 {
		fmt.Fprintf(os.Stderr, `Parameters 'knn', 'cycles' and 'minoverlap' must be at least 1.
Type %s --help for usage
`, exeName)
		os.Exit(2)
	}
}

func usage() {
	exeName := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr,
		`USAGE:
  %s [options] <evidencefile>

  This program aggregates a tab-separated peptide evidence table into
  protein abundances and tests each treatment group for differential
  abundance against the control group, using k-nearest-neighbour
  imputation, cyclic loess normalization and empirical-Bayes moderated
  t-statistics. Reversed (decoy) and contaminant rows are removed before
  any processing.

  Experiment labels of the form <group>_<replicate> (e.g. Ampicillin_2)
  define the treatment groups; the group named by option -control is the
  reference level of every contrast.

OPTIONS:
`, exeName)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr,
		`
OUTPUT FILES:
  <base>-results.tsv    per-protein, per-contrast moderated statistics
                        (log2 fold-change, p-value, FDR-adjusted q-value)
  <base>-protein.json   the layered abundance matrices (raw, log2, imputed,
                        normalized) at each aggregation level
  <base>-selection.tsv  Hedges' g effect sizes and the technical/biological
                        variance split per protein

ENVIRONMENT VARIABLES:
    When environment variable LFQSTAT_DEBUG=1, extra information is printed
    that can help checking the behavior of %s.

USAGE EXAMPLES:
  %s evidence.txt
    Analyze evidence.txt with default settings, writing
    evidence-results.tsv, evidence-protein.json and evidence-selection.tsv.

  %s -control DMSO -exclude 'Blank_1,Blank_2' -minpep 2 evidence.txt
    Idem, but test against the DMSO group, ignore the two blank runs and
    keep proteins with more than 2 peptides.

NOTES:
    All data-quality decisions (dropped rows, imputation fallbacks,
    shrinkage fallbacks) are collected during the run and printed together
    before the program exits, so they can be audited.
`, exeName, exeName, exeName)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	var par params

	par.resultsFilename = flag.String("o",
		"",
		"`filename` of the differential abundance results TSV")
	par.matrixFilename = flag.String("matrix",
		"",
		"`filename` of the layered protein matrix JSON artifact")
	par.selectionFilename = flag.String("selection",
		"",
		"`filename` of the effect-size/variance TSV")
	par.refFilename = flag.String("ref",
		"",
		"`filename` of a previously computed reference artifact"+` (JSON with
samples, protein identifiers and a log2 matrix). The differential test is
run on it unchanged and its rows are tagged 'reference' in the results.`)
	par.control = flag.String("control",
		"Control",
		"`group` used as the reference level of all contrasts")
	par.excludeStr = flag.String("exclude",
		"",
		"comma-separated `experiments` whose rows are dropped before analysis")
	par.minPeptides = flag.Int("minpep",
		3,
		`protein rows supported by this many peptides or fewer are removed`)
	par.maxMissing = flag.Float64("maxmissing",
		0.5,
		`protein rows with this fraction of absent values or more are removed`)
	par.knn = flag.Int("knn",
		10,
		`number of neighbour proteins used to impute an absent value`)
	par.minOverlap = flag.Int("minoverlap",
		3,
		`minimum number of shared present samples for a neighbour distance`)
	par.dropOrphans = flag.Bool("droporphans", false,
		`drop protein rows that cannot be imputed (no informative neighbours)
instead of failing; every dropped row is reported`)
	par.countPresent = flag.Bool("countpresent", false,
		`count only children with at least one present value towards the
peptide support of a protein. The default counts all evidence rows.`)
	par.cycles = flag.Int("cycles",
		3,
		`number of cyclic loess passes over all sample pairs`)
	par.span = flag.Float64("span",
		0.7,
		`lowess span (fraction of points in each local window)`)
	par.subsample = flag.Float64("subsample",
		0.1,
		`fraction of points used as anchors by the fast loess smoother.
Never subsampled below 100 points; small matrices use every point.`)
	par.pCut = flag.Float64("pcut",
		0.005,
		`p-value cutoff for the candidate summary`)
	par.fcCut = flag.Float64("fccut",
		0.5,
		`absolute log2 fold-change cutoff for the candidate summary`)
	par.gCut = flag.Float64("gcut",
		0.5,
		`absolute Hedges' g threshold for feature selection`)
	version := flag.Bool("version", false,
		`Show software version`)
	verbose := flag.Bool("verbose", false,
		`Print more verbose progress information`)
	quiet := flag.Bool("quiet", false,
		`Don't print any output except for errors`)
	flag.Usage = usage
	flag.Parse()
	if *version {
		fmt.Fprintf(os.Stderr, "%s version %s\n", progName, progVersion)
		return
	}
	if *verbose {
		par.verbosity = infoVerbose
	}
	if *quiet {
		par.verbosity = infoSilent
	}
	par.args = flag.Args()
	// Check if debug output should be enabled
	par.debug = os.Getenv("LFQSTAT_DEBUG") == `1`

	sanitizeParams(&par)
	err := runPipeline(par)
	if err != nil {
		log.Fatalf("%s: %v", progName, err)
	}
}
