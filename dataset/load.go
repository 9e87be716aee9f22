package dataset

import (
	"bytes"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/spektr-org/incidents/schema"
)

// Frame is the upstream CSV after column selection. All cells are strings;
// typing happens in Clean.
type Frame struct {
	df dataframe.DataFrame

	RowsBefore int      // rows read from the CSV
	RowsAfter  int      // rows after dropping columns
	Dropped    []string // excluded columns that were present and removed
	NotFound   []string // excluded columns that were already absent
}

// LoadOptions controls Load.
type LoadOptions struct {
	// DropColumns are removed after the required-column check.
	DropColumns []string
	// Required overrides RequiredColumns when non-nil.
	Required []string
}

// Load reads CSV bytes into a Frame, checks the required columns and drops
// the excluded ones. Dropping columns never changes the row count.
func Load(data []byte, opts LoadOptions) (*Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !bytes.ContainsRune(trimmed, '\n') {
		return nil, ErrNoRows
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read incidents CSV: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return nil, ErrNoRows
	}

	required := opts.Required
	if required == nil {
		required = RequiredColumns
	}
	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[name] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrMissingColumn, &schema.MissingColumnsError{Missing: missing})
	}

	f := &Frame{RowsBefore: df.Nrow()}
	for _, col := range opts.DropColumns {
		if present[col] {
			f.Dropped = append(f.Dropped, col)
		} else {
			f.NotFound = append(f.NotFound, col)
		}
	}
	if len(f.Dropped) > 0 {
		df = df.Drop(f.Dropped)
		if df.Err != nil {
			return nil, fmt.Errorf("drop columns %v: %w", f.Dropped, df.Err)
		}
	}

	f.df = df
	f.RowsAfter = df.Nrow()
	return f, nil
}

// Names returns the remaining column names.
func (f *Frame) Names() []string { return f.df.Names() }

// Nrow returns the number of rows.
func (f *Frame) Nrow() int { return f.df.Nrow() }

// Has reports whether a column is present.
func (f *Frame) Has(col string) bool {
	for _, n := range f.df.Names() {
		if n == col {
			return true
		}
	}
	return false
}

// Column returns the raw cells of col, or nil when the column is absent.
func (f *Frame) Column(col string) []string {
	if !f.Has(col) {
		return nil
	}
	return f.df.Col(col).Records()
}

// DataFrame exposes the underlying gota frame.
func (f *Frame) DataFrame() dataframe.DataFrame { return f.df }
