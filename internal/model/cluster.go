package model

// ClusterKey identifies a cluster by its (country, type) grouping.
type ClusterKey struct {
	Country string `json:"country"`
	Type    string `json:"type"`
}

// String renders the canonical "country/type" form used as a map key in
// serialized reports.
func (k ClusterKey) String() string { return k.Country + "/" + k.Type }

// Centroid is the mean position of a cluster's resolved members.
type Centroid struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Geohash       string  `json:"geohash,omitempty"`
	NearestAnchor string  `json:"nearest_anchor,omitempty"`
}

// Cluster aggregates the facilities sharing one (country, type) key.
// Member order follows input order. Average ratios exclude unknown values
// from the denominator; a nil average means no member had a known value.
type Cluster struct {
	Country       string    `json:"country"`
	Type          string    `json:"type"`
	Members       []string  `json:"members"`
	Count         int       `json:"count"`
	TotalWorkers  int       `json:"total_workers"`
	AvgPctFemale  *float64  `json:"avg_pct_female,omitempty"`
	AvgPctMigrant *float64  `json:"avg_pct_migrant,omitempty"`
	Centroid      *Centroid `json:"centroid,omitempty"`
}

// Key returns the cluster's grouping key.
func (c *Cluster) Key() ClusterKey { return ClusterKey{Country: c.Country, Type: c.Type} }

// DistanceEdge is one selected cross-type link. Endpoints always have
// different facility types and resolved coordinates.
type DistanceEdge struct {
	FacilityA  string  `json:"facility_a"`
	FacilityB  string  `json:"facility_b"`
	NameA      string  `json:"name_a,omitempty"`
	NameB      string  `json:"name_b,omitempty"`
	CountryA   string  `json:"country_a,omitempty"`
	CountryB   string  `json:"country_b,omitempty"`
	DistanceKM float64 `json:"distance_km"`
	Rank       int     `json:"rank"`
}

// DistanceStats summarizes the full cross product scanned during edge
// selection, not just the selected top K.
type DistanceStats struct {
	Pairs  int64   `json:"pairs"`
	MinKM  float64 `json:"min_km"`
	MaxKM  float64 `json:"max_km"`
	MeanKM float64 `json:"mean_km"`
}
