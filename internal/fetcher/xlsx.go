package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/facility-atlas/internal/model"
)

// XLSXOptions configures workbook parsing.
type XLSXOptions struct {
	// SheetIndex selects the sheet by position; ignored when SheetName is set.
	SheetIndex int
	// SheetName selects the sheet by name.
	SheetName string
	// SkipRows drops leading banner rows before the header. Legacy facility
	// workbooks carry one title row above the header.
	SkipRows int
}

// ReadXLSX loads every row of the selected sheet as strings.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open xlsx %s", path)
	}

	sheet, err := getSheet(file, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// ReadFacilitiesXLSX parses a facility snapshot workbook. The first row
// after SkipRows is the header; see mapHeader for column matching.
func ReadFacilitiesXLSX(path string, opts XLSXOptions) ([]model.FacilityRow, error) {
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cm, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}
	out := make([]model.FacilityRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		out = append(out, cm.row(cells))
	}
	return out, nil
}

func getSheet(file *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := file.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("fetcher: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(file.Sheets) {
		return nil, eris.Errorf("fetcher: sheet index %d out of range (%d sheets)", opts.SheetIndex, len(file.Sheets))
	}
	return file.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
