// Package dataset holds the in-memory representation of a labeled table.
//
// A Dataset is immutable once built. Cells are float64: numeric attributes
// store the value, nominal and string attributes store an index into
// Attribute.Labels, and a missing cell is NaN. Because rows are never written
// after Build, datasets derived from one another may share row slices.
package dataset

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// AttributeType is the declared type of an attribute.
type AttributeType int

const (
	// Numeric attributes hold real values.
	Numeric AttributeType = iota
	// Nominal attributes hold one label out of a finite set.
	Nominal
	// String attributes hold raw text; Labels acts as a dictionary in first-seen order.
	String
)

func (t AttributeType) String() string {
	switch t {
	case Numeric:
		return "numeric"
	case Nominal:
		return "nominal"
	case String:
		return "string"
	default:
		return fmt.Sprintf("AttributeType(%d)", int(t))
	}
}

// Attribute describes one column.
type Attribute struct {
	Name   string
	Type   AttributeType
	Labels []string
}

// NumericAttribute returns a numeric attribute.
func NumericAttribute(name string) Attribute {
	return Attribute{Name: name, Type: Numeric}
}

// NominalAttribute returns a nominal attribute with the given label set.
func NominalAttribute(name string, labels ...string) Attribute {
	return Attribute{Name: name, Type: Nominal, Labels: append([]string(nil), labels...)}
}

// StringAttribute returns a string attribute with an optional initial dictionary.
func StringAttribute(name string, dict ...string) Attribute {
	return Attribute{Name: name, Type: String, Labels: append([]string(nil), dict...)}
}

// HasLabels reports whether cells of this attribute are label indices.
func (a Attribute) HasLabels() bool {
	return a.Type == Nominal || a.Type == String
}

// LabelIndex returns the index of label, or -1.
func (a Attribute) LabelIndex(label string) int {
	for i, l := range a.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Label returns the text for a cell value, or "?" when missing or out of range.
func (a Attribute) Label(v float64) string {
	if IsMissing(v) {
		return "?"
	}
	if !a.HasLabels() {
		return fmt.Sprintf("%g", v)
	}
	i := int(v)
	if i < 0 || i >= len(a.Labels) {
		return "?"
	}
	return a.Labels[i]
}

// Equal reports whether two attributes have the same name, type and label set.
// Dictionaries of string attributes are not compared.
func (a Attribute) Equal(b Attribute) bool {
	if a.Name != b.Name || a.Type != b.Type {
		return false
	}
	if a.Type != Nominal {
		return true
	}
	if len(a.Labels) != len(b.Labels) {
		return false
	}
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			return false
		}
	}
	return true
}

func (a Attribute) clone() Attribute {
	a.Labels = append([]string(nil), a.Labels...)
	return a
}

// Missing returns the value used for a missing cell.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v marks a missing cell.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Dataset is an immutable table of rows aligned to a Header.
type Dataset struct {
	header Header
	rows   [][]float64
}

// New validates and copies its inputs into a new Dataset. classIndex may be -1.
func New(relation string, attrs []Attribute, rows [][]float64, classIndex int) (*Dataset, error) {
	b, err := NewBuilder(relation, attrs, classIndex)
	if err != nil {
		return nil, err
	}
	b.Grow(len(rows))
	for _, r := range rows {
		if err := b.Add(append([]float64(nil), r...)); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(relation string, attrs []Attribute, rows [][]float64, classIndex int) *Dataset {
	d, err := New(relation, attrs, rows, classIndex)
	if err != nil {
		panic(err)
	}
	return d
}

// Relation returns the relation name.
func (d *Dataset) Relation() string { return d.header.Relation }

// NumAttributes returns the number of attributes including the class.
func (d *Dataset) NumAttributes() int { return len(d.header.Attributes) }

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return len(d.rows) }

// NumFeatures returns the number of non-class attributes.
func (d *Dataset) NumFeatures() int {
	if d.header.ClassIndex >= 0 {
		return len(d.header.Attributes) - 1
	}
	return len(d.header.Attributes)
}

// Attribute returns a copy of attribute i.
func (d *Dataset) Attribute(i int) Attribute { return d.header.Attributes[i].clone() }

// Attributes returns a copy of the attribute list.
func (d *Dataset) Attributes() []Attribute { return d.Header().Attributes }

// AttributeIndex returns the index of the named attribute, or -1.
func (d *Dataset) AttributeIndex(name string) int { return d.header.AttributeIndex(name) }

// ClassIndex returns the class column, or -1 when unset.
func (d *Dataset) ClassIndex() int { return d.header.ClassIndex }

// ClassAttribute returns the class attribute and whether one is set.
func (d *Dataset) ClassAttribute() (Attribute, bool) {
	if d.header.ClassIndex < 0 {
		return Attribute{}, false
	}
	return d.Attribute(d.header.ClassIndex), true
}

// NumClasses returns the size of the class label set, or 0 for a non-nominal or unset class.
func (d *Dataset) NumClasses() int {
	a, ok := d.ClassAttribute()
	if !ok || a.Type != Nominal {
		return 0
	}
	return len(a.Labels)
}

// Header returns a deep copy of the schema.
func (d *Dataset) Header() Header { return d.header.Clone() }

// Value returns one cell.
func (d *Dataset) Value(row, col int) float64 { return d.rows[row][col] }

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []float64 { return append([]float64(nil), d.rows[i]...) }

// Column returns a copy of column j.
func (d *Dataset) Column(j int) []float64 {
	out := make([]float64, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[j]
	}
	return out
}

// ClassValue returns the class index of row i, or -1 when missing or unset.
func (d *Dataset) ClassValue(i int) int {
	if d.header.ClassIndex < 0 {
		return -1
	}
	v := d.rows[i][d.header.ClassIndex]
	if IsMissing(v) {
		return -1
	}
	return int(v)
}

// ClassCounts returns the number of rows per class label. Rows with a missing class are not counted.
func (d *Dataset) ClassCounts() ([]int, error) {
	a, ok := d.ClassAttribute()
	if !ok {
		return nil, errors.NewConfigurationError("ClassCounts", "", "class attribute is not set")
	}
	if a.Type != Nominal {
		return nil, errors.NewConfigurationError("ClassCounts", a.Name, "class attribute must be nominal")
	}
	counts := make([]int, len(a.Labels))
	for i := range d.rows {
		if c := d.ClassValue(i); c >= 0 {
			counts[c]++
		}
	}
	return counts, nil
}

// FeatureIndices returns the column indices of all non-class attributes in order.
func (d *Dataset) FeatureIndices() []int {
	out := make([]int, 0, d.NumFeatures())
	for j := range d.header.Attributes {
		if j != d.header.ClassIndex {
			out = append(out, j)
		}
	}
	return out
}

// Features returns the non-class cells of row i in FeatureIndices order.
func (d *Dataset) Features(i int) []float64 {
	out := make([]float64, 0, d.NumFeatures())
	for j, v := range d.rows[i] {
		if j != d.header.ClassIndex {
			out = append(out, v)
		}
	}
	return out
}

// Matrix returns the non-class cells as an n×d matrix and the class column as
// a vector of class indices. Label cells are returned as their index; missing
// cells stay NaN.
func (d *Dataset) Matrix() (*mat.Dense, *mat.VecDense, error) {
	if d.header.ClassIndex < 0 {
		return nil, nil, errors.NewConfigurationError("Matrix", "", "class attribute is not set")
	}
	n, f := len(d.rows), d.NumFeatures()
	if n == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "Matrix")
	}
	if f == 0 {
		return nil, nil, errors.Wrap(errors.ErrNoFeatures, "Matrix")
	}
	data := make([]float64, 0, n*f)
	y := make([]float64, n)
	for i := range d.rows {
		data = append(data, d.Features(i)...)
		y[i] = d.rows[i][d.header.ClassIndex]
	}
	return mat.NewDense(n, f, data), mat.NewVecDense(n, y), nil
}

// WithClassIndex returns a Dataset sharing rows with d but with another class column.
func (d *Dataset) WithClassIndex(i int) (*Dataset, error) {
	if i < -1 || i >= len(d.header.Attributes) {
		return nil, errors.NewValueError("WithClassIndex", fmt.Sprintf("class index %d out of range", i))
	}
	h := d.header.Clone()
	h.ClassIndex = i
	return &Dataset{header: h, rows: d.rows}, nil
}

// Project keeps the given columns in the given order. The class index follows
// its attribute and becomes -1 if the class column is dropped.
func (d *Dataset) Project(cols []int) (*Dataset, error) {
	h := Header{Relation: d.header.Relation, ClassIndex: -1}
	for k, j := range cols {
		if j < 0 || j >= len(d.header.Attributes) {
			return nil, errors.NewValueError("Project", fmt.Sprintf("column %d out of range", j))
		}
		h.Attributes = append(h.Attributes, d.header.Attributes[j].clone())
		if j == d.header.ClassIndex {
			h.ClassIndex = k
		}
	}
	rows := make([][]float64, len(d.rows))
	for i, r := range d.rows {
		nr := make([]float64, len(cols))
		for k, j := range cols {
			nr[k] = r[j]
		}
		rows[i] = nr
	}
	return &Dataset{header: h, rows: rows}, nil
}

// Append returns a Dataset holding the rows of d followed by extra. The rows
// of d are shared; extra rows are validated and copied.
func (d *Dataset) Append(extra [][]float64) (*Dataset, error) {
	rows := make([][]float64, len(d.rows), len(d.rows)+len(extra))
	copy(rows, d.rows)
	for _, r := range extra {
		if err := d.header.validateRow(r, len(rows)); err != nil {
			return nil, err
		}
		rows = append(rows, append([]float64(nil), r...))
	}
	return &Dataset{header: d.header.Clone(), rows: rows}, nil
}

// String returns a one-line description.
func (d *Dataset) String() string {
	class := "none"
	if a, ok := d.ClassAttribute(); ok {
		class = a.Name
	}
	return fmt.Sprintf("Dataset(relation=%q, rows=%d, attributes=%d, class=%s)",
		d.header.Relation, len(d.rows), len(d.header.Attributes), class)
}

// Describe renders the header one attribute per line, as shown by the inspect command.
func (d *Dataset) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@relation %s (%d rows)\n", d.header.Relation, len(d.rows))
	for j, a := range d.header.Attributes {
		marker := " "
		if j == d.header.ClassIndex {
			marker = "*"
		}
		switch a.Type {
		case Nominal:
			fmt.Fprintf(&sb, "%s %3d %-28s nominal {%s}\n", marker, j, a.Name, strings.Join(a.Labels, ","))
		case String:
			fmt.Fprintf(&sb, "%s %3d %-28s string (%d distinct)\n", marker, j, a.Name, len(a.Labels))
		default:
			fmt.Fprintf(&sb, "%s %3d %-28s numeric\n", marker, j, a.Name)
		}
	}
	return sb.String()
}

// Builder accumulates rows for a new Dataset.
type Builder struct {
	header Header
	rows   [][]float64
}

// NewBuilder validates the schema and returns an empty Builder.
func NewBuilder(relation string, attrs []Attribute, classIndex int) (*Builder, error) {
	h := Header{Relation: relation, ClassIndex: classIndex}
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if seen[a.Name] {
			return nil, errors.NewConfigurationError("NewBuilder", a.Name, "duplicate attribute name")
		}
		seen[a.Name] = true
		h.Attributes = append(h.Attributes, a.clone())
	}
	if classIndex < -1 || classIndex >= len(attrs) {
		return nil, errors.NewValueError("NewBuilder", fmt.Sprintf("class index %d out of range", classIndex))
	}
	return &Builder{header: h}, nil
}

// Grow reserves room for n more rows.
func (b *Builder) Grow(n int) {
	if cap(b.rows)-len(b.rows) < n {
		rows := make([][]float64, len(b.rows), len(b.rows)+n)
		copy(rows, b.rows)
		b.rows = rows
	}
}

// Add validates row and appends it. The Builder takes ownership of row.
func (b *Builder) Add(row []float64) error {
	if err := b.header.validateRow(row, len(b.rows)); err != nil {
		return err
	}
	b.rows = append(b.rows, row)
	return nil
}

// Build returns the Dataset. The Builder must not be used afterwards.
func (b *Builder) Build() *Dataset {
	d := &Dataset{header: b.header, rows: b.rows}
	b.rows = nil
	return d
}
