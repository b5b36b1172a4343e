// Package fetcher parses facility snapshots and excerpt exports into the
// raw shapes the registry consumes. Columns are matched by a normalized
// header key, so the legacy workbook headers ("Factory Name",
// "Country / Region") and snake_case exports both map without
// configuration.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/facility-atlas/internal/model"
)

// Options bundles the per-format knobs for ReadFacilities.
type Options struct {
	CSV  CSVOptions
	XLSX XLSXOptions
}

// ReadFacilities loads a facility snapshot from path, picking the parser by
// extension: ".xlsx" routes to the workbook reader, ".tsv" forces a tab
// delimiter, and everything else is read as comma-delimited text.
func ReadFacilities(ctx context.Context, path string, opts Options) ([]model.FacilityRow, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		return ReadFacilitiesXLSX(path, opts.XLSX)
	}
	if ext == ".tsv" && opts.CSV.Delimiter == 0 {
		opts.CSV.Delimiter = '\t'
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	defer f.Close()

	return ReadFacilitiesCSV(ctx, f, opts.CSV)
}

// columnMap holds the resolved cell index for each facility field, -1 when
// the source does not carry that column.
type columnMap struct {
	name    int
	ftype   int
	country int
	city    int
	workers int
	female  int
	migrant int
	product int
}

// mapHeader matches header cells to facility fields. The first matching
// column wins when a header repeats. A header with no recognizable facility
// column at all is an error; individual missing columns are not, since the
// registry rejects incomplete rows with a per-row reason.
func mapHeader(cells []string) (columnMap, error) {
	cm := columnMap{name: -1, ftype: -1, country: -1, city: -1, workers: -1, female: -1, migrant: -1, product: -1}
	for i, cell := range cells {
		switch headerKey(cell) {
		case "factoryname", "facilityname", "name":
			bind(&cm.name, i)
		case "factorytype", "facilitytype", "type":
			bind(&cm.ftype, i)
		case "countryregion", "country":
			bind(&cm.country, i)
		case "city":
			bind(&cm.city, i)
		case "totalworkers", "workers":
			bind(&cm.workers, i)
		case "femaleworkers", "pctfemale":
			bind(&cm.female, i)
		case "migrantworkers", "pctmigrant":
			bind(&cm.migrant, i)
		case "producttypetype", "producttype":
			bind(&cm.product, i)
		}
	}
	if cm.name < 0 && cm.ftype < 0 && cm.country < 0 {
		return cm, eris.Errorf("fetcher: no facility columns recognized in header %q", cells)
	}
	return cm, nil
}

func bind(dst *int, idx int) {
	if *dst < 0 {
		*dst = idx
	}
}

// headerKey folds a header cell to lowercase letters and digits, dropping
// spaces, punctuation, and the "%" the legacy export prefixes onto ratio
// columns.
func headerKey(cell string) string {
	var b strings.Builder
	for _, r := range cell {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// row extracts one facility row using the mapped column indices. Cells are
// trimmed; columns past the end of a ragged row read as empty.
func (cm columnMap) row(cells []string) model.FacilityRow {
	return model.FacilityRow{
		Name:         cellAt(cells, cm.name),
		Type:         cellAt(cells, cm.ftype),
		Country:      cellAt(cells, cm.country),
		City:         cellAt(cells, cm.city),
		TotalWorkers: cellAt(cells, cm.workers),
		PctFemale:    cellAt(cells, cm.female),
		PctMigrant:   cellAt(cells, cm.migrant),
		ProductType:  cellAt(cells, cm.product),
	}
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}
