package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"lfqstat/internal/abundance"
	"lfqstat/internal/audit"
	"lfqstat/internal/diffabund"
	"lfqstat/internal/evidence"
	"lfqstat/internal/impute"
	"lfqstat/internal/normalize"
	"lfqstat/internal/variance"
)

// runPipeline glues together all processing stages:
// Read and filter the evidence table
// Roll up PSM -> peptide -> protein with median aggregation
// Quality-filter the protein matrix
// Impute absent values, normalize across samples
// Fit the moderated differential abundance model per contrast
// Decompose variance and compute effect sizes
// Write the matrix artifact, results and selection tables
// All accumulated data-quality warnings are printed before returning.
func runPipeline(par params) (err error) {
	aud := audit.New()
	defer func() {
		if par.verbosity != infoSilent || err != nil {
			aud.Flush(os.Stderr)
		}
	}()

	t := time.Now()
	progress := func(format string, args ...interface{}) {
		if par.verbosity == infoVerbose {
			fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
			t = time.Now()
			fmt.Fprintf(os.Stderr, format, args...)
		}
	}
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "Reading evidence from %s: ", *par.evidenceFilename)
	}

	f, err := os.Open(*par.evidenceFilename)
	if err != nil {
		return fmt.Errorf("open evidence file: %w", err)
	}
	defer f.Close()
	psm, err := evidence.Load(f, evidence.Options{Exclude: par.exclude})
	if err != nil {
		return fmt.Errorf("evidence loader: %w", err)
	}

	progress("Aggregating %d PSMs: ", psm.NumRows())

	rollOpt := abundance.RollupOptions{CountPresentOnly: *par.countPresent}
	peptide, err := abundance.Rollup(psm, layerRaw, func(r abundance.Row) string {
		return r.Protein + ":" + r.ModSeq
	}, rollOpt)
	if err != nil {
		return fmt.Errorf("PSM rollup: %w", err)
	}
	protein, err := abundance.Rollup(peptide, layerRaw, func(r abundance.Row) string {
		return r.Protein
	}, rollOpt)
	if err != nil {
		return fmt.Errorf("peptide rollup: %w", err)
	}
	if err := protein.Log2(layerRaw, layerLog2); err != nil {
		return err
	}

	progress("Filtering %d proteins: ", protein.NumRows())

	filt, drops, err := abundance.QualityFilter(protein, layerLog2, abundance.FilterPolicy{
		MinChildren: *par.minPeptides,
		MaxMissing:  *par.maxMissing,
	})
	if err != nil {
		return err
	}
	if par.debug {
		for _, d := range drops {
			fmt.Fprintf(os.Stderr, "dropped %s: %s\n", d.ID, d.Reason)
		}
	}

	progress("Imputing %d proteins (%d dropped by filter): ", filt.NumRows(), len(drops))

	logData, err := filt.Layer(layerLog2)
	if err != nil {
		return err
	}
	imputed, orphans, err := impute.KNN(logData, impute.Options{
		K:          *par.knn,
		MinOverlap: *par.minOverlap,
		DropRows:   *par.dropOrphans,
	})
	if err != nil {
		return fmt.Errorf("imputation: %w", err)
	}
	if len(orphans) > 0 {
		orphanSet := make(map[int]bool, len(orphans))
		for _, i := range orphans {
			orphanSet[i] = true
			aud.Warnf("impute", "protein %s dropped: no informative neighbors", filt.Rows[i].ID)
		}
		keep := make([]bool, filt.NumRows())
		dense := make([][]float64, 0, filt.NumRows()-len(orphans))
		for i := range keep {
			if !orphanSet[i] {
				keep[i] = true
				dense = append(dense, imputed[i])
			}
		}
		imputed = dense
		if filt, err = filt.Select(keep); err != nil {
			return err
		}
		if filt.NumRows() == 0 {
			return fmt.Errorf("imputation: %w", abundance.ErrEmptyResult)
		}
	}
	if err := filt.AddLayer(layerImputed, imputed); err != nil {
		return err
	}

	progress("Normalizing: ")

	normed, err := normalize.CyclicLoess(imputed, normalize.Options{
		Cycles:     *par.cycles,
		Span:       *par.span,
		Subsample:  *par.subsample,
		MinAnchors: 100,
	})
	if err != nil {
		return err
	}
	if err := filt.AddLayer(layerNorm, normed); err != nil {
		return err
	}

	progress("Testing differential abundance: ")

	results, err := analyze(normed, filt.Rows, filt.Samples, *par.control, "lfqstat", aud)
	if err != nil {
		return err
	}

	if *par.refFilename != "" {
		ref, err := loadReference(*par.refFilename)
		if err != nil {
			return fmt.Errorf("reference artifact: %w", err)
		}
		refResults, err := analyze(ref.data, ref.rows, ref.samples, *par.control, "reference", aud)
		if err != nil {
			return fmt.Errorf("reference artifact: %w", err)
		}
		results = append(results, refResults...)
	}

	progress("Computing effect sizes: ")

	decomp, err := variance.Decompose(normed, *par.span)
	if err != nil {
		return err
	}
	effects, err := variance.HedgesG(normed, filt.Rows, filt.Samples, *par.control, *par.gCut)
	if err != nil {
		return err
	}

	progress("Writing output files: ")

	if err := writeMatrixArtifact(*par.matrixFilename, peptide, protein, filt); err != nil {
		return err
	}
	if err := writeResults(*par.resultsFilename, results); err != nil {
		return err
	}
	if err := writeSelection(*par.selectionFilename, effects, decomp, filt.Rows); err != nil {
		return err
	}

	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
	}
	if par.verbosity != infoSilent {
		printSummary(results, *par.pCut, *par.fcCut)
	}
	return nil
}

// analyze runs the three phases of the moderated differential test on one
// matrix: independent per-protein fits, the shared prior estimate, and the
// per-protein moderated statistics.
func analyze(data [][]float64, rows []abundance.Row, samples []abundance.Sample,
	control, method string, aud *audit.Log) ([]diffabund.Result, error) {

	design, err := diffabund.NewDesign(samples, control)
	if err != nil {
		return nil, fmt.Errorf("%s design: %w", method, err)
	}
	fits, err := diffabund.FitProteins(data, rows, design)
	if err != nil {
		return nil, err
	}
	for _, fit := range fits {
		if !fit.Estimable {
			aud.Warnf(method, "protein %s not estimable: present samples do not cover the design", fit.Protein)
		}
	}
	prior := diffabund.EstimatePrior(fits)
	if prior.Fallback {
		aud.Warnf(method, "variance moment equation has no positive solution, no shrinkage applied (d0=0)")
	}
	return diffabund.Moderate(fits, design, prior, method), nil
}

func printSummary(results []diffabund.Result, pCut, fcCut float64) {
	counts := make(map[string]int)
	var order []string
	for _, r := range results {
		key := r.Method + " " + r.Contrast
		if _, ok := counts[key]; !ok {
			counts[key] = 0
			order = append(order, key)
		}
		if r.P < pCut && !math.IsNaN(r.Log2FC) && math.Abs(r.Log2FC) > fcCut {
			counts[key]++
		}
	}
	for _, key := range order {
		fmt.Fprintf(os.Stderr, "%s: %d candidates (p<%g, |log2fc|>%g)\n",
			key, counts[key], pCut, fcCut)
	}
}
