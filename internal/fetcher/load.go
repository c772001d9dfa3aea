package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/frame"
)

// TargetOptions configures how the target file is turned into 0/1 labels.
type TargetOptions struct {
	// Column names the target column; empty selects the only column.
	Column string
	// PositiveLabel is the level mapped to 1 when the target is categorical.
	PositiveLabel string
}

// LoadFrame reads a tabular file into a frame, choosing the reader from the
// file extension (.parquet, .csv, .xlsx).
func LoadFrame(ctx context.Context, path string) (*frame.Frame, error) {
	var (
		f   *frame.Frame
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		f, err = ReadParquet(path)
	case ".csv":
		var fh *os.File
		fh, err = os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer fh.Close() //nolint:errcheck
		var (
			header []string
			rows   [][]string
		)
		header, rows, err = ReadCSVTable(ctx, fh)
		if err == nil {
			f, err = RowsToFrame(header, rows)
		}
	case ".xlsx":
		var (
			header []string
			rows   [][]string
		)
		header, rows, err = ReadXLSXTable(path, XLSXOptions{})
		if err == nil {
			f, err = RowsToFrame(header, rows)
		}
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: load %s", path)
	}

	zap.L().Debug("fetcher: loaded frame",
		zap.String("path", path),
		zap.Int("rows", f.Rows()),
		zap.Int("columns", f.Width()),
		zap.Strings("categorical", f.CategoricalNames()),
	)
	return f, nil
}

// LoadTarget reads the binary target vector from path.
func LoadTarget(ctx context.Context, path string, opts TargetOptions) ([]int, error) {
	f, err := LoadFrame(ctx, path)
	if err != nil {
		return nil, err
	}
	return TargetFromFrame(f, opts)
}

// TargetFromFrame extracts 0/1 labels from a single column of f.
func TargetFromFrame(f *frame.Frame, opts TargetOptions) ([]int, error) {
	var col *frame.Column
	switch {
	case opts.Column != "":
		c, ok := f.Column(opts.Column)
		if !ok {
			return nil, &frame.SchemaError{Feature: opts.Column, Reason: "target column missing from target file"}
		}
		col = c
	case f.Width() == 1:
		col = f.Columns()[0]
	default:
		return nil, &frame.SchemaError{Reason: fmt.Sprintf("target file has %d columns; set data.target", f.Width())}
	}

	target := make([]int, col.Len())
	for i := range target {
		if col.IsMissing(i) {
			return nil, &frame.SchemaError{Feature: col.Name, Reason: fmt.Sprintf("target row %d is missing", i)}
		}
		if col.Kind == frame.Categorical {
			if opts.PositiveLabel == "" {
				return nil, &frame.SchemaError{Feature: col.Name, Reason: "categorical target requires a positive label"}
			}
			if col.Cat[i] == opts.PositiveLabel {
				target[i] = 1
			}
			continue
		}
		v := col.Num[i]
		if v != 0 && v != 1 {
			return nil, &frame.SchemaError{Feature: col.Name, Reason: fmt.Sprintf("target row %d has value %v, want 0 or 1", i, v)}
		}
		target[i] = int(v)
	}
	return target, nil
}
