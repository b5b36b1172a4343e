// Package model defines the core entities shared across the triangulation
// engine: facility records, clusters, distance edges, excerpts, insights,
// and the assembled report.
package model

import "fmt"

// FacilityRow is the raw input shape consumed from upstream parsers.
// All fields arrive as strings; validation and canonicalization happen in
// the registry.
type FacilityRow struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Country      string `json:"country"`
	City         string `json:"city"`
	TotalWorkers string `json:"total_workers"`
	PctFemale    string `json:"pct_female"`
	PctMigrant   string `json:"pct_migrant"`
	ProductType  string `json:"product_type"`
}

// MatchLevel records how a facility's coordinates were resolved.
type MatchLevel string

const (
	MatchCity    MatchLevel = "city"    // exact city-within-country match
	MatchCountry MatchLevel = "country" // country centroid fallback
)

// Coordinates is a resolved lat/lon pair. A facility either carries a full
// Coordinates value or none at all.
type Coordinates struct {
	Lat     float64    `json:"lat"`
	Lon     float64    `json:"lon"`
	Match   MatchLevel `json:"match,omitempty"`
	Geohash string     `json:"geohash,omitempty"`
}

// Facility is a validated, canonical manufacturing-site record.
type Facility struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	Country      string       `json:"country"`
	City         string       `json:"city,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	TotalWorkers int          `json:"total_workers"`
	PctFemale    *float64     `json:"pct_female,omitempty"`  // ratio in [0,1]; nil = unknown
	PctMigrant   *float64     `json:"pct_migrant,omitempty"` // ratio in [0,1]; nil = unknown
	ProductType  string       `json:"product_type,omitempty"`
}

// Resolved reports whether the facility has coordinates.
func (f *Facility) Resolved() bool { return f.Coordinates != nil }

// FacilityID builds the stable identifier for the 1-based source row index.
// Rejected rows still consume their index, so ids never shift when earlier
// rows are dropped.
func FacilityID(rowIndex int) string {
	return fmt.Sprintf("f-%04d", rowIndex)
}

// RejectionReason classifies why a raw row was rejected.
type RejectionReason string

const (
	RejectMissingType      RejectionReason = "missing_type"
	RejectInvalidWorkforce RejectionReason = "invalid_workforce"
	RejectMissingCountry   RejectionReason = "missing_country"
	RejectUnknownType      RejectionReason = "unknown_type"
)

// Rejection records a dropped input row and the first rule it failed.
type Rejection struct {
	Row    int             `json:"row"` // 1-based source row index
	Reason RejectionReason `json:"reason"`
}

// ResolutionStats counts coordinate-resolution outcomes over one snapshot.
type ResolutionStats struct {
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// Excerpt is a keyword-tagged document snippet supplied by an external
// text-analysis collaborator. It is evidence only; nothing in the engine
// treats it as a hard constraint.
type Excerpt struct {
	DocumentID       string `json:"document_id"`
	Category         string `json:"category"`
	MatchedKeyword   string `json:"matched_keyword"`
	Snippet          string `json:"snippet"`
	MentionedCountry string `json:"mentioned_country"`
}

// ExcerptRef is the lightweight reference an annotation carries instead of
// the full snippet.
type ExcerptRef struct {
	DocumentID     string `json:"document_id"`
	Category       string `json:"category"`
	MatchedKeyword string `json:"matched_keyword"`
}

// Ref returns the reference form of an excerpt.
func (e Excerpt) Ref() ExcerptRef {
	return ExcerptRef{
		DocumentID:     e.DocumentID,
		Category:       e.Category,
		MatchedKeyword: e.MatchedKeyword,
	}
}

// Anchor is one entry in the offline gazetteer: a named point that city or
// country lookups resolve to.
type Anchor struct {
	Key     string  `json:"key"` // normalized lookup key, e.g. "vietnam" or "hanoi, vietnam"
	Name    string  `json:"name"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Source  string  `json:"source,omitempty"`
}
