package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

// Header is the schema of a Dataset: relation name, attributes and class column.
type Header struct {
	Relation   string
	Attributes []Attribute
	ClassIndex int
}

// Clone returns a deep copy.
func (h Header) Clone() Header {
	out := Header{Relation: h.Relation, ClassIndex: h.ClassIndex}
	out.Attributes = make([]Attribute, len(h.Attributes))
	for i, a := range h.Attributes {
		out.Attributes[i] = a.clone()
	}
	return out
}

// AttributeIndex returns the index of the named attribute, or -1.
func (h Header) AttributeIndex(name string) int {
	for i, a := range h.Attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// FeatureNames returns the names of the non-class attributes in order.
func (h Header) FeatureNames() []string {
	out := make([]string, 0, len(h.Attributes))
	for i, a := range h.Attributes {
		if i != h.ClassIndex {
			out = append(out, a.Name)
		}
	}
	return out
}

// Compatible returns a SchemaMismatchError describing the first structural
// difference between h (the reference, e.g. the training schema) and other.
func (h Header) Compatible(other Header) error {
	const op = "Header.Compatible"
	if len(h.Attributes) != len(other.Attributes) {
		return errors.NewSchemaMismatchError(op, len(h.Attributes), len(other.Attributes),
			fmt.Sprintf("attribute count differs (missing or extra: %s)", attributeDiff(h, other)))
	}
	for i := range h.Attributes {
		a, b := h.Attributes[i], other.Attributes[i]
		if a.Name != b.Name {
			return errors.NewSchemaMismatchError(op, len(h.Attributes), len(other.Attributes),
				fmt.Sprintf("attribute %d is %q, expected %q", i, b.Name, a.Name))
		}
		if a.Type != b.Type {
			return errors.NewSchemaMismatchError(op, len(h.Attributes), len(other.Attributes),
				fmt.Sprintf("attribute %q is %s, expected %s", a.Name, b.Type, a.Type))
		}
		if !a.Equal(b) {
			return errors.NewSchemaMismatchError(op, len(h.Attributes), len(other.Attributes),
				fmt.Sprintf("attribute %q label set differs", a.Name))
		}
	}
	if h.ClassIndex != other.ClassIndex {
		return errors.NewSchemaMismatchError(op, len(h.Attributes), len(other.Attributes),
			fmt.Sprintf("class index is %d, expected %d", other.ClassIndex, h.ClassIndex))
	}
	return nil
}

// Equal reports whether the two headers are structurally identical.
func (h Header) Equal(other Header) bool {
	return h.Compatible(other) == nil
}

func attributeDiff(a, b Header) string {
	inB := make(map[string]bool, len(b.Attributes))
	for _, attr := range b.Attributes {
		inB[attr.Name] = true
	}
	inA := make(map[string]bool, len(a.Attributes))
	var diff []string
	for _, attr := range a.Attributes {
		inA[attr.Name] = true
		if !inB[attr.Name] {
			diff = append(diff, "-"+attr.Name)
		}
	}
	for _, attr := range b.Attributes {
		if !inA[attr.Name] {
			diff = append(diff, "+"+attr.Name)
		}
	}
	if len(diff) == 0 {
		return "none"
	}
	return strings.Join(diff, ", ")
}

func (h Header) validateRow(row []float64, index int) error {
	if len(row) != len(h.Attributes) {
		return errors.NewDimensionError(fmt.Sprintf("row %d", index), len(h.Attributes), len(row), 1)
	}
	for j, v := range row {
		if IsMissing(v) {
			continue
		}
		a := h.Attributes[j]
		if math.IsInf(v, 0) {
			return errors.NewValueError(fmt.Sprintf("row %d", index),
				fmt.Sprintf("attribute %q holds an infinite value", a.Name))
		}
		if a.HasLabels() {
			if v != math.Trunc(v) || v < 0 || int(v) >= len(a.Labels) {
				return errors.NewValueError(fmt.Sprintf("row %d", index),
					fmt.Sprintf("attribute %q: label index %v outside %d labels", a.Name, v, len(a.Labels)))
			}
		}
	}
	return nil
}
