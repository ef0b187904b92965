package evidence

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"lfqstat/internal/abundance"
)

// Options control which evidence rows are loaded.
type Options struct {
	// Exclude lists experiment labels whose rows are dropped entirely.
	Exclude map[string]bool
}

// Load reads a tab-separated evidence table and returns the PSM-level
// abundance matrix with a single "raw" layer. Each surviving evidence row
// becomes one matrix row with its intensity in the column of its own
// experiment and absent entries everywhere else; aggregation across rows is
// left to the rollup steps.
//
// Rows flagged as reversed (decoy) or contaminant are dropped before
// anything else, as are rows of excluded experiments. The per
// (experiment, modified sequence, protein) row count is attached to every
// row before pivoting, so it reflects the full evidence for the group.
func Load(r io.Reader, opt Options) (*abundance.Matrix, error) {
	// Vendor exports are not reliably UTF-8; sniff and convert first.
	dec, err := charset.NewReader(r, "text/plain")
	if err != nil {
		return nil, fmt.Errorf("evidence: detect encoding: %w", err)
	}

	tsv := csv.NewReader(dec)
	tsv.Comma = '\t'
	tsv.LazyQuotes = true
	tsv.FieldsPerRecord = -1

	header, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("evidence: read header: %w", err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	for line := 2; ; line++ {
		fields, err := tsv.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("evidence: line %d: %w", line, err)
		}
		rec, keep, err := parseRecord(fields, cols, opt)
		if err != nil {
			return nil, fmt.Errorf("evidence: line %d: %w", line, err)
		}
		if keep {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}

	// Peptide-evidence counts must be computed before pivoting: they count
	// rows, not matrix cells.
	counts := make(map[string]int)
	for _, rec := range records {
		counts[countKey(rec)]++
	}
	for i := range records {
		records[i].ID = i
		records[i].NumPeptides = counts[countKey(records[i])]
	}

	return pivot(records)
}

func countKey(rec Record) string {
	return rec.Experiment + "\x00" + rec.ModSeq + "\x00" + rec.Protein
}

// indexColumns resolves the required columns against the header,
// case-insensitively.
func indexColumns(header []string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make(map[string]int, len(requiredColumns))
	for _, name := range requiredColumns {
		i, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("evidence: %w: %q", ErrMissingColumn, name)
		}
		cols[name] = i
	}
	return cols, nil
}

func parseRecord(fields []string, cols map[string]int, opt Options) (Record, bool, error) {
	get := func(name string) string {
		i := cols[name]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	if get(colReverse) == flagSet || get(colContaminant) == flagSet {
		return Record{}, false, nil
	}
	experiment := get(colExperiment)
	if opt.Exclude[experiment] {
		return Record{}, false, nil
	}

	var rec Record
	rec.Experiment = experiment
	rec.Sequence = get(colSequence)
	rec.ModSeq = get(colModSeq)
	rec.ProteinGrp = get(colProteinGrp)
	rec.Protein = get(colLeadingProt)

	if s := get(colCharge); s != "" {
		charge, err := strconv.Atoi(s)
		if err != nil {
			return Record{}, false, fmt.Errorf("invalid charge %q", s)
		}
		rec.Charge = charge
	}

	rec.Intensity = abundance.Absent()
	if s := get(colIntensity); s != "" && s != "NaN" {
		intensity, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Record{}, false, fmt.Errorf("invalid intensity %q", s)
		}
		rec.Intensity = intensity
	}
	return rec, true, nil
}

// pivot turns the long-format records into a wide matrix with one column
// per experiment. Experiments appear in order of first occurrence.
func pivot(records []Record) (*abundance.Matrix, error) {
	sampleIdx := make(map[string]int)
	var samples []abundance.Sample
	for _, rec := range records {
		if _, ok := sampleIdx[rec.Experiment]; !ok {
			sampleIdx[rec.Experiment] = len(samples)
			group, replicate := ParseSampleName(rec.Experiment)
			samples = append(samples, abundance.Sample{
				Name:      rec.Experiment,
				Group:     group,
				Replicate: replicate,
			})
		}
	}

	rows := make([]abundance.Row, len(records))
	data := make([][]float64, len(records))
	for i, rec := range records {
		rows[i] = abundance.Row{
			ID:          strconv.Itoa(rec.ID),
			Protein:     rec.Protein,
			ProteinGrp:  rec.ProteinGrp,
			ModSeq:      rec.ModSeq,
			Charge:      rec.Charge,
			NumPeptides: rec.NumPeptides,
		}
		vals := make([]float64, len(samples))
		for j := range vals {
			vals[j] = abundance.Absent()
		}
		vals[sampleIdx[rec.Experiment]] = rec.Intensity
		data[i] = vals
	}

	m := abundance.New(rows, samples)
	if err := m.AddLayer("raw", data); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseSampleName splits an experiment label of the form
// "<group>_<replicate>" into its treatment group and replicate index.
// Labels without a trailing integer replicate form their own group.
func ParseSampleName(name string) (group string, replicate int) {
	i := strings.LastIndex(name, "_")
	if i <= 0 {
		return name, 0
	}
	rep, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return name, 0
	}
	return name[:i], rep
}
