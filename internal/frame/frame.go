// Package frame holds the column-oriented feature matrix and binary target
// that flow between pipeline stages.
package frame

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind is the dtype of a column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numerical"
}

// Column is a single named feature. Numeric columns use NaN for missing
// values, categorical columns use the empty string.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Cat  []string
}

// NewNumeric creates a numeric column.
func NewNumeric(name string, vals []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Num: vals}
}

// NewCategorical creates a categorical column.
func NewCategorical(name string, vals []string) *Column {
	return &Column{Name: name, Kind: Categorical, Cat: vals}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Cat)
	}
	return len(c.Num)
}

// IsMissing reports whether row i holds no value.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Categorical {
		return c.Cat[i] == ""
	}
	return math.IsNaN(c.Num[i])
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Categorical {
		out.Cat = make([]string, len(rows))
		for i, r := range rows {
			out.Cat[i] = c.Cat[r]
		}
		return out
	}
	out.Num = make([]float64, len(rows))
	for i, r := range rows {
		out.Num[i] = c.Num[r]
	}
	return out
}

// Frame is an ordered set of equally long, uniquely named columns.
// Frames are treated as immutable once built; stages derive new frames.
type Frame struct {
	cols  []*Column
	index map[string]int
}

// New builds a frame, rejecting duplicate names and ragged columns.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{cols: cols, index: make(map[string]int, len(cols))}
	rows := -1
	for i, c := range cols {
		if _, dup := f.index[c.Name]; dup {
			return nil, &SchemaError{Feature: c.Name, Reason: "duplicate column name"}
		}
		f.index[c.Name] = i
		if rows == -1 {
			rows = c.Len()
		} else if c.Len() != rows {
			return nil, &SchemaError{Feature: c.Name, Reason: "column length differs from the rest of the frame"}
		}
	}
	return f, nil
}

// Rows returns the number of samples.
func (f *Frame) Rows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.cols) }

// Names returns column names in frame order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in frame order.
func (f *Frame) Columns() []*Column { return f.cols }

// Column looks a column up by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// CategoricalNames returns the names of categorical columns in frame order.
func (f *Frame) CategoricalNames() []string {
	var names []string
	for _, c := range f.cols {
		if c.Kind == Categorical {
			names = append(names, c.Name)
		}
	}
	return names
}

// Select returns a frame holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, &SchemaError{Feature: n, Reason: "required feature missing from input"}
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	cols := make([]*Column, 0, len(f.cols))
	for _, c := range f.cols {
		if !skip[c.Name] {
			cols = append(cols, c)
		}
	}
	out, _ := New(cols...)
	return out
}

// Take returns a frame restricted to the given row indices.
func (f *Frame) Take(rows []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(rows)
	}
	out, _ := New(cols...)
	return out
}

// Matrix copies an all-numeric frame into a rows x columns dense matrix.
func (f *Frame) Matrix() (*mat.Dense, error) {
	n, p := f.Rows(), len(f.cols)
	if n == 0 || p == 0 {
		return nil, &SchemaError{Reason: "frame is empty"}
	}
	m := mat.NewDense(n, p, nil)
	for j, c := range f.cols {
		if c.Kind != Numeric {
			return nil, &SchemaError{Feature: c.Name, Reason: "expected numeric column"}
		}
		for i, v := range c.Num {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// TakeTarget returns the target values at the given rows.
func TakeTarget(target []int, rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = target[r]
	}
	return out
}
