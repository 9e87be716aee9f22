package translator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/schema"
)

// ============================================================================
// DOCUMENT PARSER — Extracts QuerySpecs from an analyses file
// ============================================================================

// ErrNoAnalyses is returned when a document parses but defines nothing.
var ErrNoAnalyses = errors.New("no analyses defined")

// ParseAnalyses reads a YAML or JSON analyses document. Both a top-level
// list and an {"analyses": [...]} object are accepted. Missing fields get
// defaults, names are derived from titles when absent, and every spec goes
// through engine.NormalizeQuerySpec.
func ParseAnalyses(data []byte) ([]engine.QuerySpec, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoAnalyses
	}

	var specs []engine.QuerySpec
	var err error
	if trimmed[0] == '[' || trimmed[0] == '{' {
		specs, err = decodeJSON(trimmed)
	} else {
		specs, err = decodeYAML(trimmed)
	}
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, ErrNoAnalyses
	}

	seen := make(map[string]int, len(specs))
	for i := range specs {
		specs[i] = applyDefaults(specs[i], i)
		specs[i] = engine.NormalizeQuerySpec(specs[i])
		if prev, dup := seen[specs[i].Name]; dup {
			return nil, fmt.Errorf("analysis %d: duplicate name %q (also used by analysis %d)", i+1, specs[i].Name, prev+1)
		}
		seen[specs[i].Name] = i
	}
	return specs, nil
}

func decodeJSON(data []byte) ([]engine.QuerySpec, error) {
	if data[0] == '[' {
		var specs []engine.QuerySpec
		if err := json.Unmarshal(data, &specs); err != nil {
			return nil, fmt.Errorf("parse analyses JSON: %w", err)
		}
		return specs, nil
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse analyses JSON: %w", err)
	}
	return f.Analyses, nil
}

func decodeYAML(data []byte) ([]engine.QuerySpec, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse analyses YAML: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var specs []engine.QuerySpec
		if err := root.Decode(&specs); err != nil {
			return nil, fmt.Errorf("parse analyses YAML: %w", err)
		}
		return specs, nil
	}
	var f File
	if err := root.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse analyses YAML: %w", err)
	}
	return f.Analyses, nil
}

// Complete fills defaults into a single hand-built spec and normalises it,
// the same way ParseAnalyses treats each document entry.
func Complete(spec engine.QuerySpec) engine.QuerySpec {
	return engine.NormalizeQuerySpec(applyDefaults(spec, 0))
}

func applyDefaults(spec engine.QuerySpec, index int) engine.QuerySpec {
	if spec.Intent == "" {
		spec.Intent = DefaultIntent
	}
	if spec.Aggregation == "" {
		spec.Aggregation = DefaultAggregation
	}
	if spec.Measure == "" {
		spec.Measure = engine.DefaultMeasure
	}
	if spec.Visualize == "" {
		switch spec.Intent {
		case "chart":
			spec.Visualize = DefaultVisualize
		default:
			spec.Visualize = spec.Intent
		}
	}
	if spec.SortBy == "" && len(spec.GroupBy) > 0 {
		spec.SortBy = defaultSort(spec.GroupBy[0])
	}
	// Names become file names in the report directory.
	spec.Name = slug(spec.Name)
	if spec.Name == "" {
		spec.Name = slug(spec.Title)
	}
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("analysis_%d", index+1)
	}
	if spec.Title == "" {
		spec.Title = engine.LabelForAggregation(spec.Aggregation)
		if len(spec.GroupBy) > 0 {
			spec.Title += " by " + strings.ToLower(engine.LabelForDimension(spec.GroupBy[0]))
		}
	}
	return spec
}

// defaultSort picks a natural order for well-known dimensions.
func defaultSort(dim string) string {
	switch dim {
	case "month", "hour", "weekday":
		return "calendar"
	case "year", "date":
		return "chronological"
	}
	return "value_desc"
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// ============================================================================
// SCHEMA VALIDATION
// ============================================================================

// virtualDimensions are derived by the engine from a date dimension.
var virtualDimensions = map[string]bool{"year": true, "month": true}

// Validate checks that every groupBy, filter and measure key names a
// dimension or measure in sch. All problems are reported together.
func Validate(specs []engine.QuerySpec, sch schema.Config) error {
	var problems []string
	check := func(name, what, key string) {
		if virtualDimensions[key] || sch.HasKey(key) {
			return
		}
		problems = append(problems, fmt.Sprintf("%s: unknown %s %q", name, what, key))
	}

	for _, s := range specs {
		for _, g := range s.GroupBy {
			check(s.Name, "groupBy dimension", g)
		}
		for _, k := range sortedKeys(s.Filters.Dimensions) {
			check(s.Name, "filter dimension", k)
		}
		if s.CompareFilters != nil {
			for _, k := range sortedKeys(s.CompareFilters.Dimensions) {
				check(s.Name, "compare filter dimension", k)
			}
		}
		if s.Measure != "" {
			check(s.Name, "measure", s.Measure)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid analyses:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
