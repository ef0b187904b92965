// Package evidence reads peptide evidence tables as produced by instrument
// processing software (one row per peptide-spectrum match) and turns them
// into a PSM-level abundance matrix.
package evidence

import "errors"

var (
	// ErrMissingColumn is returned when the table header lacks one of the
	// required columns.
	ErrMissingColumn = errors.New("missing column")
	// ErrEmptyResult is returned when no usable rows remain after
	// filtering decoys, contaminants and excluded experiments.
	ErrEmptyResult = errors.New("no evidence rows left after filtering")
)

// The sentinel instrument software writes into flag columns to mark a hit.
const flagSet = "+"

// Required columns, by canonical header name. Header matching is
// case-insensitive.
const (
	colCharge      = "charge"
	colSequence    = "sequence"
	colModSeq      = "modified sequence"
	colProteinGrp  = "protein group ids"
	colLeadingProt = "leading razor protein"
	colExperiment  = "experiment"
	colReverse     = "reverse"
	colContaminant = "potential contaminant"
	colIntensity   = "intensity"
)

var requiredColumns = []string{
	colCharge, colSequence, colModSeq, colProteinGrp, colLeadingProt,
	colExperiment, colReverse, colContaminant, colIntensity,
}

// Record is one identified peptide-spectrum match.
type Record struct {
	ID          int // unique row identifier, assigned after filtering
	Charge      int
	Sequence    string
	ModSeq      string
	ProteinGrp  string
	Protein     string
	Experiment  string
	Intensity   float64 // absent if NaN
	NumPeptides int     // rows sharing (experiment, modified sequence, protein)
}
