package engine

import "sort"

// ============================================================================
// RECORD VIEW — read access to incident rows
// ============================================================================
// The engine never copies incidents. Grouping and filtering work on index
// lists into whatever view the caller binds.
//
//   SliceView      — generic CSV rows (query --raw, ad-hoc callers)
//   DomainView[T]  — typed rows read through accessor functions
//   SubView        — a filtered or grouped subset of a parent view
//
// A view may also know the complete, ordered category set of a dimension
// (hours 00..23, weekdays Mon..Sun). Grouping uses it to keep empty
// categories on the axis; see CategoryView.
// ============================================================================

// BlankLabel is shown wherever a dimension value is empty.
const BlankLabel = "(blank)"

// DisplayLabel returns key, or BlankLabel when key is empty.
func DisplayLabel(key string) string {
	if key == "" {
		return BlankLabel
	}
	return key
}

// RecordView provides indexed access to a dataset.
// Dimension and Measure are called in tight loops.
type RecordView interface {
	Len() int
	Dimension(index int, key string) string
	Measure(index int, key string) float64
	DimensionKeys() []string
	MeasureKeys() []string
}

// CategoryView is implemented by views that know every value a dimension
// can take, in display order.
type CategoryView interface {
	Categories(key string) []string
}

// categoriesOf returns the declared categories of key, or nil.
func categoriesOf(view RecordView, key string) []string {
	if cv, ok := view.(CategoryView); ok {
		return cv.Categories(key)
	}
	return nil
}

// ── Slice view ──

// SliceView wraps []Record. Keys are collected once and sorted so table
// columns come out in a stable order.
type SliceView struct {
	records []Record
	dimKeys []string
	mesKeys []string
}

// NewSliceView creates a RecordView from a []Record slice.
func NewSliceView(records []Record) RecordView {
	v := &SliceView{records: records}
	dims := make(map[string]bool)
	mes := make(map[string]bool)
	for _, r := range records {
		for k := range r.Dimensions {
			dims[k] = true
		}
		for k := range r.Measures {
			mes[k] = true
		}
	}
	v.dimKeys = sortedSet(dims)
	v.mesKeys = sortedSet(mes)
	return v
}

func sortedSet(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (v *SliceView) Len() int { return len(v.records) }

func (v *SliceView) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.records) {
		return ""
	}
	return v.records[i].Dimensions[key]
}

func (v *SliceView) Measure(i int, key string) float64 {
	if i < 0 || i >= len(v.records) {
		return 0
	}
	return v.records[i].Measures[key]
}

func (v *SliceView) DimensionKeys() []string { return v.dimKeys }
func (v *SliceView) MeasureKeys() []string   { return v.mesKeys }

// ── Sub view ──

// SubView is a subset of a parent view held as indices into it.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Dimension(v.indices[i], key)
}

func (v *SubView) Measure(i int, key string) float64 {
	if i < 0 || i >= len(v.indices) {
		return 0
	}
	return v.parent.Measure(v.indices[i], key)
}

func (v *SubView) DimensionKeys() []string { return v.parent.DimensionKeys() }
func (v *SubView) MeasureKeys() []string   { return v.parent.MeasureKeys() }

// Categories delegates to the parent, so subsets keep the full axis.
func (v *SubView) Categories(key string) []string { return categoriesOf(v.parent, key) }

// ============================================================================
// DOMAIN ADAPTER
// ============================================================================
//
//	adapter := engine.NewDomainAdapter[Incident]().
//	    Dimension("borough", func(i Incident) string { return i.Borough }).
//	    Dimension("hour", hourOf).
//	    Categories("hour", hours...).
//	    Measure("incidents", func(Incident) float64 { return 1 })
//
//	result, _ := engine.Execute(spec, adapter.Bind(incidents))
// ============================================================================

// DomainAdapter builds views over typed rows. Declare once, bind many times.
type DomainAdapter[T any] struct {
	dimOrder []string
	mesOrder []string
	dims     map[string]func(T) string
	meas     map[string]func(T) float64
	cats     map[string][]string
}

// NewDomainAdapter creates a new adapter for type T.
func NewDomainAdapter[T any]() *DomainAdapter[T] {
	return &DomainAdapter[T]{
		dims: make(map[string]func(T) string),
		meas: make(map[string]func(T) float64),
		cats: make(map[string][]string),
	}
}

// Dimension registers a dimension accessor. Keys keep registration order.
func (a *DomainAdapter[T]) Dimension(key string, fn func(T) string) *DomainAdapter[T] {
	if _, exists := a.dims[key]; !exists {
		a.dimOrder = append(a.dimOrder, key)
	}
	a.dims[key] = fn
	return a
}

// Categories declares the complete value set of a dimension in display
// order. Values outside the set still group normally and sort after it.
func (a *DomainAdapter[T]) Categories(key string, values ...string) *DomainAdapter[T] {
	a.cats[key] = append([]string(nil), values...)
	return a
}

// Measure registers a measure accessor.
func (a *DomainAdapter[T]) Measure(key string, fn func(T) float64) *DomainAdapter[T] {
	if _, exists := a.meas[key]; !exists {
		a.mesOrder = append(a.mesOrder, key)
	}
	a.meas[key] = fn
	return a
}

// Bind returns a view over data. The slice is referenced, not copied.
func (a *DomainAdapter[T]) Bind(data []T) RecordView {
	return &DomainView[T]{adapter: a, data: data}
}

// DomainView reads typed rows through an adapter's accessors.
type DomainView[T any] struct {
	adapter *DomainAdapter[T]
	data    []T
}

func (v *DomainView[T]) Len() int { return len(v.data) }

func (v *DomainView[T]) Dimension(i int, key string) string {
	fn, ok := v.adapter.dims[key]
	if !ok || i < 0 || i >= len(v.data) {
		return ""
	}
	return fn(v.data[i])
}

func (v *DomainView[T]) Measure(i int, key string) float64 {
	fn, ok := v.adapter.meas[key]
	if !ok || i < 0 || i >= len(v.data) {
		return 0
	}
	return fn(v.data[i])
}

func (v *DomainView[T]) DimensionKeys() []string { return v.adapter.dimOrder }
func (v *DomainView[T]) MeasureKeys() []string   { return v.adapter.mesOrder }

func (v *DomainView[T]) Categories(key string) []string { return v.adapter.cats[key] }
