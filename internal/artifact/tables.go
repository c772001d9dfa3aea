package artifact

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/jnsofini/auto-scorecard/internal/model"
)

// Table is a header plus string rows, shared by the CSV and XLSX writers.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// round3 formats v rounded to three decimals; NaN becomes an empty cell.
func round3(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

func itoa(v int) string { return strconv.Itoa(v) }

func btoa(v bool) string { return strconv.FormatBool(v) }

// IVTable renders the information value summary.
func IVTable(rows []model.IVRow) Table {
	t := Table{Name: "iv", Header: []string{"name", "dtype", "n_bins", "iv", "gini", "selected"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Name, r.Dtype, itoa(r.NBins), round3(r.IV), round3(r.Gini), btoa(r.Selected)})
	}
	return t
}

// ClusterTable renders the cluster table with joined IV and selection flag.
func ClusterTable(rows []model.ClusterRow) Table {
	t := Table{Name: "clusters", Header: []string{"cluster", "variable", "rs_own", "rs_nc", "rs_ratio", "iv", "cluster_iv_selection"}}
	for _, r := range rows {
		iv := ""
		if r.HasIV {
			iv = round3(r.IV)
		}
		t.Rows = append(t.Rows, []string{itoa(r.Cluster), r.Variable, round3(r.RSOwn), round3(r.RSNC), round3(r.RSRatio), iv, btoa(r.Selected)})
	}
	return t
}

// BinTable renders the per-bin binning detail.
func BinTable(rows []model.BinRow) Table {
	t := Table{Name: "binning", Header: []string{"name", "bin", "count", "count_pct", "non_event", "event", "event_rate", "woe", "iv"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Name, r.Bin, itoa(r.Count), round3(r.CountPct), itoa(r.NonEvent), itoa(r.Event),
			round3(r.EventRate), round3(r.WoE), round3(r.IV),
		})
	}
	return t
}

// ScorecardTable renders the detailed scorecard.
func ScorecardTable(rows []model.ScorecardRow) Table {
	t := Table{Name: "scorecard", Header: []string{"variable", "bin", "count", "event_rate", "woe", "coefficient", "points"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Variable, r.Bin, itoa(r.Count), round3(r.EventRate), round3(r.WoE), round3(r.Coefficient), itoa(r.Points),
		})
	}
	return t
}

// WriteCSV writes a table as CSV with a header row.
func WriteCSV(path string, t Table) error {
	return WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Header); err != nil {
			return err
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return err
		}
		return cw.Error()
	})
}

// ScoresTable renders batch scoring output. ids may be nil, in which case
// the row number is used.
func ScoresTable(ids []string, scores []int, probs []float64) Table {
	t := Table{Name: "scores", Header: []string{"id", "score", "probability"}}
	for i, s := range scores {
		id := itoa(i)
		if ids != nil {
			id = ids[i]
		}
		t.Rows = append(t.Rows, []string{id, itoa(s), strconv.FormatFloat(probs[i], 'f', 6, 64)})
	}
	return t
}
