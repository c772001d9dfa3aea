package fetcher

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jnsofini/auto-scorecard/internal/frame"
)

// missingTokens are cell values read as "no value" in text sources.
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"null": true,
	"none": true,
}

func isMissingToken(s string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(s))]
}

// RowsToFrame builds a frame from a header and string rows. A column whose
// non-missing cells all parse as numbers is numeric; any other column is
// categorical with NFC-normalized levels. Short rows are padded as missing.
func RowsToFrame(header []string, rows [][]string) (*frame.Frame, error) {
	cols := make([]*frame.Column, 0, len(header))
	for j, name := range header {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		cols = append(cols, inferColumn(strings.TrimSpace(name), cells))
	}
	return frame.New(cols...)
}

func inferColumn(name string, cells []string) *frame.Column {
	nums := make([]float64, len(cells))
	numeric := true
	for i, s := range cells {
		if isMissingToken(s) {
			nums[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = v
	}
	if numeric {
		return frame.NewNumeric(name, nums)
	}

	levels := make([]string, len(cells))
	for i, s := range cells {
		if isMissingToken(s) {
			continue
		}
		levels[i] = NormalizeLevel(s)
	}
	return frame.NewCategorical(name, levels)
}

// NormalizeLevel canonicalizes a categorical level so that visually equal
// strings from different sources compare equal.
func NormalizeLevel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
