package model

import "time"

// Severity orders insights from most to least urgent.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Weight returns the sort rank of a severity; higher sorts first.
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// InsightCategory names a rule family.
type InsightCategory string

const (
	InsightConcentrationRisk InsightCategory = "concentration_risk"
	InsightSpreadRisk        InsightCategory = "spread_risk"
	InsightMigrantDependency InsightCategory = "migrant_dependency"
)

// Insight is one derived risk finding. Insights are recomputed from the
// cluster set on every run and never persisted independently.
type Insight struct {
	Category  InsightCategory `json:"category"`
	Severity  Severity        `json:"severity"`
	Subject   string          `json:"subject"`
	Evidence  float64         `json:"evidence"`
	Narrative string          `json:"narrative"`
}

// RejectionSummary accumulates the rows dropped during registry validation.
type RejectionSummary struct {
	Total    int            `json:"total"`
	ByReason map[string]int `json:"by_reason,omitempty"`
	Rows     []Rejection    `json:"rows,omitempty"`
}

// CountryCount ranks a country within a facility type.
type CountryCount struct {
	Country    string `json:"country"`
	Facilities int    `json:"facilities"`
}

// TypeSummary aggregates one facility type across all countries.
type TypeSummary struct {
	Type         string         `json:"type"`
	Facilities   int            `json:"facilities"`
	TotalWorkers int            `json:"total_workers"`
	TopCountries []CountryCount `json:"top_countries,omitempty"`
}

// CompositionBuckets counts facilities by female-workforce share.
// Thresholds: > 0.6 primarily female, 0.4–0.6 balanced, < 0.4 primarily
// male; facilities with an unknown ratio land in Unknown.
type CompositionBuckets struct {
	PrimarilyFemale int `json:"primarily_female"`
	Balanced        int `json:"balanced"`
	PrimarilyMale   int `json:"primarily_male"`
	Unknown         int `json:"unknown"`
}

// MigrantBuckets counts facilities by migrant-workforce share.
// Thresholds: > 0.5 high, < 0.1 low, otherwise moderate.
type MigrantBuckets struct {
	High     int `json:"high"`
	Moderate int `json:"moderate"`
	Low      int `json:"low"`
	Unknown  int `json:"unknown"`
}

// WorkforceProfile is the facility-level workforce rollup for one snapshot.
type WorkforceProfile struct {
	AvgPctFemale      *float64           `json:"avg_pct_female,omitempty"`
	AvgPctMigrant     *float64           `json:"avg_pct_migrant,omitempty"`
	Composition       CompositionBuckets `json:"composition"`
	MigrantDependency MigrantBuckets     `json:"migrant_dependency"`
}

// ReportSchemaVersion identifies the report layout for downstream readers.
const ReportSchemaVersion = "1"

// Report is the single output of one engine run. It is assembled once,
// owns deep copies of everything it contains, and is never mutated after
// assembly.
type Report struct {
	SchemaVersion      string                  `json:"schema_version"`
	GeneratedAt        time.Time               `json:"generated_at"`
	SourceSnapshotSize int                     `json:"source_snapshot_size"`
	ResolutionStats    ResolutionStats         `json:"resolution_stats"`
	Rejections         RejectionSummary        `json:"rejections"`
	Clusters           []Cluster               `json:"clusters"`
	Edges              []DistanceEdge          `json:"edges"`
	Insights           []Insight               `json:"insights"`
	Annotations        map[string][]ExcerptRef `json:"annotations,omitempty"`
	DistanceStats      *DistanceStats          `json:"distance_stats,omitempty"`
	TypeSummaries      []TypeSummary           `json:"type_summaries"`
	Workforce          WorkforceProfile        `json:"workforce"`
}
