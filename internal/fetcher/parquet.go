package fetcher

import (
	"errors"
	"io"
	"math"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"

	"github.com/jnsofini/auto-scorecard/internal/frame"
)

// pandasIndexPrefix marks index columns written by pandas.to_parquet.
const pandasIndexPrefix = "__index_level_"

type parquetColumn struct {
	name  string
	kind  frame.Kind
	index int
	num   []float64
	cat   []string
}

// ReadParquet reads a flat Parquet file into a frame. Byte-array columns are
// categorical, every other physical type is numeric.
func ReadParquet(path string) (*frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parquet: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	info, err := fh.Stat()
	if err != nil {
		return nil, eris.Wrapf(err, "parquet: stat %s", path)
	}

	pf, err := parquet.OpenFile(fh, info.Size())
	if err != nil {
		return nil, eris.Wrapf(err, "parquet: read footer %s", path)
	}

	schema := pf.Schema()
	byLeaf := make(map[int]*parquetColumn)
	var ordered []*parquetColumn
	for _, p := range schema.Columns() {
		if len(p) != 1 {
			return nil, &frame.SchemaError{Feature: strings.Join(p, "."), Reason: "nested parquet columns are not supported"}
		}
		leaf, ok := schema.Lookup(p...)
		if !ok {
			continue
		}
		col := &parquetColumn{name: p[0], index: leaf.ColumnIndex}
		switch leaf.Node.Type().Kind() {
		case parquet.ByteArray, parquet.FixedLenByteArray:
			col.kind = frame.Categorical
		case parquet.Int96:
			return nil, &frame.SchemaError{Feature: p[0], Reason: "int96 columns are not supported"}
		default:
			col.kind = frame.Numeric
		}
		byLeaf[leaf.ColumnIndex] = col
		ordered = append(ordered, col)
	}

	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, byLeaf); err != nil {
			return nil, eris.Wrapf(err, "parquet: read rows %s", path)
		}
	}

	cols := make([]*frame.Column, 0, len(ordered))
	for _, c := range ordered {
		if strings.HasPrefix(c.name, pandasIndexPrefix) {
			continue
		}
		if c.kind == frame.Categorical {
			cols = append(cols, frame.NewCategorical(c.name, c.cat))
		} else {
			cols = append(cols, frame.NewNumeric(c.name, c.num))
		}
	}
	return frame.New(cols...)
}

func readRowGroup(rg parquet.RowGroup, byLeaf map[int]*parquetColumn) error {
	rows := rg.Rows()
	defer rows.Close() //nolint:errcheck

	buf := make([]parquet.Row, 256)
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, v := range row {
				col, ok := byLeaf[v.Column()]
				if !ok {
					continue
				}
				appendValue(col, v)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func appendValue(col *parquetColumn, v parquet.Value) {
	if col.kind == frame.Categorical {
		if v.IsNull() {
			col.cat = append(col.cat, "")
			return
		}
		col.cat = append(col.cat, NormalizeLevel(string(v.ByteArray())))
		return
	}

	if v.IsNull() {
		col.num = append(col.num, math.NaN())
		return
	}
	var f float64
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			f = 1
		}
	case parquet.Int32:
		f = float64(v.Int32())
	case parquet.Int64:
		f = float64(v.Int64())
	case parquet.Float:
		f = float64(v.Float())
	default:
		f = v.Double()
	}
	col.num = append(col.num, f)
}
