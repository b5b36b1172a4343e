// Package gazetteer resolves facility locations to coordinates using an
// offline anchor table, and labels coordinates with their nearest anchor.
package gazetteer

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/facility-atlas/internal/model"
)

//go:embed anchors.csv
var embeddedAnchors []byte

// cellLevel sizes the S2 cells of the reverse-lookup index. Level 4 cells
// are roughly 550km across, so one neighbor ring around the query cell
// covers the default 500km labeling cutoff.
const cellLevel = 4

// earthRadiusKM is the mean Earth radius used to convert S2 angular
// distances to kilometers. Matches the radius used by the distance engine.
const earthRadiusKM = 6371.0088

// geohashPrecision is the cell size for geohash labels (~150m at 7 chars).
const geohashPrecision = 7

// defaultTable parses the embedded anchor table once.
var defaultTable = sync.OnceValues(func() ([]model.Anchor, error) {
	return ParseAnchors(bytes.NewReader(embeddedAnchors), "embedded")
})

// Resolver is a read-only coordinate lookup service. Safe for concurrent
// use once constructed.
type Resolver struct {
	byKey           map[string]model.Anchor
	ordered         []model.Anchor // sorted by key
	cellIndex       map[s2.CellID][]int
	reverseCutoffKM float64
}

// Option configures a Resolver during construction.
type Option func(*Resolver)

// WithAnchors merges additional anchors over the ones loaded so far.
// Later anchors win on key collisions.
func WithAnchors(anchors []model.Anchor) Option {
	return func(r *Resolver) {
		for _, a := range anchors {
			a.Key = NormalizeKey(a.Key)
			if a.Key == "" {
				continue
			}
			r.byKey[a.Key] = a
		}
	}
}

// WithReverseCutoffKM bounds nearest-anchor labeling. 0 means unbounded.
func WithReverseCutoffKM(km float64) Option {
	return func(r *Resolver) { r.reverseCutoffKM = km }
}

// New builds a Resolver over the embedded anchor table plus any options.
func New(opts ...Option) (*Resolver, error) {
	defaults, err := defaultTable()
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		byKey:           make(map[string]model.Anchor, len(defaults)),
		reverseCutoffKM: 500,
	}
	for _, a := range defaults {
		r.byKey[a.Key] = a
	}
	for _, opt := range opts {
		opt(r)
	}

	r.buildIndex()
	return r, nil
}

// buildIndex freezes the anchor set into a sorted slice and an S2 cell
// index for reverse lookups.
func (r *Resolver) buildIndex() {
	r.ordered = make([]model.Anchor, 0, len(r.byKey))
	for _, a := range r.byKey {
		r.ordered = append(r.ordered, a)
	}
	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].Key < r.ordered[j].Key })

	r.cellIndex = make(map[s2.CellID][]int)
	for i, a := range r.ordered {
		ll := s2.LatLngFromDegrees(a.Lat, a.Lon)
		cell := s2.CellIDFromLatLng(ll).Parent(cellLevel)
		r.cellIndex[cell] = append(r.cellIndex[cell], i)
	}
}

// Len returns the number of anchors in the table.
func (r *Resolver) Len() int { return len(r.ordered) }

// Anchors returns the anchor table ordered by key.
func (r *Resolver) Anchors() []model.Anchor {
	out := make([]model.Anchor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Resolve maps a (country, city) pair to coordinates. Lookup order: exact
// city-within-country key, then country centroid, then unresolved. Pure:
// identical inputs always produce identical output, so callers may cache
// or invoke concurrently.
func (r *Resolver) Resolve(country, city string) (model.Coordinates, bool) {
	ck := NormalizeKey(country)
	cy := NormalizeKey(city)
	if ck == "" && cy == "" {
		return model.Coordinates{}, false
	}

	if cy != "" {
		if a, ok := r.byKey[cy+", "+ck]; ok {
			return anchorCoords(a, model.MatchCity), true
		}
	}
	if a, ok := r.byKey[ck]; ok {
		return anchorCoords(a, model.MatchCountry), true
	}
	return model.Coordinates{}, false
}

func anchorCoords(a model.Anchor, match model.MatchLevel) model.Coordinates {
	return model.Coordinates{
		Lat:     a.Lat,
		Lon:     a.Lon,
		Match:   match,
		Geohash: Geohash(a.Lat, a.Lon),
	}
}

// reverseCandidate pairs an anchor index with its distance from the query.
type reverseCandidate struct {
	idx int
	km  float64
}

// Reverse returns the nearest anchor to the given coordinates, or false
// when no anchor lies within the cutoff or the inputs are not finite.
func (r *Resolver) Reverse(lat, lon float64) (model.Anchor, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) ||
		math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return model.Anchor{}, false
	}

	queryLL := s2.LatLngFromDegrees(lat, lon)
	queryCell := s2.CellIDFromLatLng(queryLL).Parent(cellLevel)

	var candidates []reverseCandidate
	for _, cell := range cellAndNeighbors(queryCell) {
		for _, idx := range r.cellIndex[cell] {
			a := r.ordered[idx]
			km := queryLL.Distance(s2.LatLngFromDegrees(a.Lat, a.Lon)).Radians() * earthRadiusKM
			candidates = append(candidates, reverseCandidate{idx: idx, km: km})
		}
	}
	if len(candidates) == 0 {
		return model.Anchor{}, false
	}

	// Distance, then anchor key, so ties never depend on index order.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].km != candidates[j].km {
			return candidates[i].km < candidates[j].km
		}
		return r.ordered[candidates[i].idx].Key < r.ordered[candidates[j].idx].Key
	})

	best := candidates[0]
	if r.reverseCutoffKM > 0 && best.km > r.reverseCutoffKM {
		return model.Anchor{}, false
	}
	return r.ordered[best.idx], true
}

// cellAndNeighbors returns the given cell plus its edge and corner
// neighbors, deduplicated.
func cellAndNeighbors(cell s2.CellID) []s2.CellID {
	cells := make([]s2.CellID, 0, 9)
	cells = append(cells, cell)

	edgeNeighbors := cell.EdgeNeighbors()
	for i := 0; i < 4; i++ {
		cells = append(cells, edgeNeighbors[i])
	}

	seen := make(map[s2.CellID]bool)
	for _, c := range cells {
		seen[c] = true
	}
	for i := 0; i < 4; i++ {
		for _, corner := range edgeNeighbors[i].EdgeNeighbors() {
			if !seen[corner] {
				cells = append(cells, corner)
				seen[corner] = true
			}
		}
	}
	return cells
}

// Geohash encodes coordinates into a 7-character geohash label.
func Geohash(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, geohashPrecision)
}

// NormalizeKey lowercases, trims, and collapses internal whitespace so
// lookups are insensitive to casing and spacing in source data.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// CompositeKey builds the "city, country" lookup key.
func CompositeKey(city, country string) string {
	return NormalizeKey(city) + ", " + NormalizeKey(country)
}

// ParseAnchors reads an anchor CSV (header row: key,name,country,lat,lon)
// and returns the anchors tagged with the given source.
func ParseAnchors(r io.Reader, source string) ([]model.Anchor, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: parse anchors csv")
	}
	if len(records) == 0 {
		return nil, eris.New("gazetteer: anchors csv is empty")
	}

	anchors := make([]model.Anchor, 0, len(records)-1)
	for i, rec := range records[1:] { // records[0] is the header
		key := NormalizeKey(rec[0])
		if key == "" {
			continue
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "gazetteer: row %d: bad lat %q", i+2, rec[3])
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "gazetteer: row %d: bad lon %q", i+2, rec[4])
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, eris.Errorf("gazetteer: row %d: coordinates out of range (%g, %g)", i+2, lat, lon)
		}

		anchors = append(anchors, model.Anchor{
			Key:     key,
			Name:    strings.TrimSpace(rec[1]),
			Country: strings.TrimSpace(rec[2]),
			Lat:     lat,
			Lon:     lon,
			Source:  source,
		})
	}
	return anchors, nil
}

// LoadCSVFile reads an anchor CSV from disk.
func LoadCSVFile(path string) ([]model.Anchor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gazetteer: open %s", path)
	}
	defer f.Close()
	return ParseAnchors(f, path)
}
