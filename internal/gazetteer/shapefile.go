package gazetteer

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/facility-atlas/internal/model"
)

// ShapefileOptions maps DBF attribute names onto anchor fields.
type ShapefileOptions struct {
	NameField    string // default "name"
	CountryField string // default "country"
}

// ParseShapefile reads a point shapefile and converts each record to an
// anchor. Records with a country attribute get a "name, country" composite
// key; records without one become country-level anchors keyed by name.
// Non-point shapes are skipped and counted.
func ParseShapefile(path string, opts ShapefileOptions) ([]model.Anchor, error) {
	if opts.NameField == "" {
		opts.NameField = "name"
	}
	if opts.CountryField == "" {
		opts.CountryField = "country"
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gazetteer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	nameIdx, ok := fieldIdx[strings.ToLower(opts.NameField)]
	if !ok {
		return nil, eris.Errorf("gazetteer: shapefile %s has no %q attribute", path, opts.NameField)
	}
	countryIdx, hasCountry := fieldIdx[strings.ToLower(opts.CountryField)]

	var anchors []model.Anchor
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		point, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		name := attribute(reader, nameIdx)
		if name == "" {
			skipped++
			continue
		}

		var country string
		if hasCountry {
			country = attribute(reader, countryIdx)
		}

		key := NormalizeKey(name)
		if country != "" {
			key = CompositeKey(name, country)
		}

		anchors = append(anchors, model.Anchor{
			Key:     key,
			Name:    name,
			Country: country,
			Lat:     point.Y,
			Lon:     point.X,
			Source:  "shapefile",
		})
	}

	if skipped > 0 {
		zap.L().Debug("gazetteer: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return anchors, nil
}

func attribute(reader *shp.Reader, idx int) string {
	val := strings.TrimRight(reader.Attribute(idx), "\x00")
	return strings.TrimSpace(val)
}

// PointEWKB encodes a lat/lon pair as an EWKB point with SRID 4326 for
// PostGIS geometry columns.
func PointEWKB(lat, lon float64) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: encode point")
	}
	return data, nil
}
