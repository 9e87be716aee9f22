package translator

import (
	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/schema"
)

// ============================================================================
// TRANSLATOR — Analysis definitions → QuerySpec
// ============================================================================
// Analyses are declared, not coded: a YAML or JSON document lists the
// groupings the report should show. The translator turns that document into
// engine QuerySpecs, fills defaults, normalises them, and checks every key
// against the dataset schema. It never sees raw data.
// ============================================================================

// Translator converts an analysis document into QuerySpecs.
type Translator interface {
	Translate(data []byte, sch schema.Config) ([]engine.QuerySpec, error)
}

// File is the top-level shape of an analyses document. A bare list of
// analyses is accepted as well.
type File struct {
	Analyses []engine.QuerySpec `json:"analyses" yaml:"analyses"`
}

// Defaults applied to every analysis that leaves a field empty.
const (
	DefaultIntent      = "chart"
	DefaultAggregation = "count"
	DefaultVisualize   = "bar"
)

// DocumentTranslator is the Translator for YAML/JSON analysis documents.
type DocumentTranslator struct{}

// Translate parses data and validates the result against sch.
func (DocumentTranslator) Translate(data []byte, sch schema.Config) ([]engine.QuerySpec, error) {
	specs, err := ParseAnalyses(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(specs, sch); err != nil {
		return nil, err
	}
	return specs, nil
}
