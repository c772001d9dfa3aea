package artifact

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteWorkbook writes each table to its own sheet. Cells that parse as
// numbers are stored as numbers.
func WriteWorkbook(path string, tables ...Table) error {
	wb := xlsx.NewFile()
	for _, t := range tables {
		sheet, err := wb.AddSheet(t.Name)
		if err != nil {
			return eris.Wrapf(err, "artifact: add sheet %s", t.Name)
		}
		header := sheet.AddRow()
		for _, h := range t.Header {
			header.AddCell().SetString(h)
		}
		for _, r := range t.Rows {
			row := sheet.AddRow()
			for _, v := range r {
				cell := row.AddCell()
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					cell.SetFloat(f)
				} else {
					cell.SetString(v)
				}
			}
		}
	}
	return WriteAtomic(path, func(w io.Writer) error {
		return wb.Write(w)
	})
}
