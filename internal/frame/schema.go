package frame

import "fmt"

// Schema declares the features a run expects and their designated dtypes.
type Schema struct {
	Required    []string
	Categorical []string
	Numeric     []string
}

// Validate checks the frame and target against the schema. The first
// violation is returned as a *SchemaError naming the offending feature.
func (s Schema) Validate(f *Frame, target []int) error {
	for _, name := range s.Required {
		if !f.Has(name) {
			return &SchemaError{Feature: name, Reason: "required feature missing from input"}
		}
	}
	for _, name := range s.Categorical {
		c, ok := f.Column(name)
		if !ok {
			return &SchemaError{Feature: name, Reason: "configured categorical feature missing from input"}
		}
		if c.Kind != Categorical {
			return &SchemaError{Feature: name, Reason: "configured as categorical but observed numeric"}
		}
	}
	for _, name := range s.Numeric {
		c, ok := f.Column(name)
		if !ok {
			return &SchemaError{Feature: name, Reason: "configured numeric feature missing from input"}
		}
		if c.Kind != Numeric {
			return &SchemaError{Feature: name, Reason: "configured as numeric but observed categorical"}
		}
	}
	return ValidateTarget(target, f.Rows())
}

// ValidateTarget checks that the target is binary and aligned with the rows.
func ValidateTarget(target []int, rows int) error {
	if len(target) != rows {
		return &SchemaError{Reason: fmt.Sprintf("target has %d rows, features have %d", len(target), rows)}
	}
	for i, y := range target {
		if y != 0 && y != 1 {
			return &SchemaError{Reason: fmt.Sprintf("target row %d has label %d, want 0 or 1", i, y)}
		}
	}
	return nil
}
