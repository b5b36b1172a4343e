// Package report assembles the immutable output of one engine run from the
// upstream stage results.
package report

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facility-atlas/internal/cluster"
	"github.com/sells-group/facility-atlas/internal/gazetteer"
	"github.com/sells-group/facility-atlas/internal/model"
)

// ErrEdgeMembership flags a distance edge whose endpoint is not a member of
// any cluster. Assembly treats it as fatal; no partial report is emitted.
var ErrEdgeMembership = eris.New("report: edge endpoint outside cluster membership")

// Labeler names the nearest gazetteer anchor for a coordinate. A nil labeler
// leaves centroid labels empty.
type Labeler func(lat, lon float64) (model.Anchor, bool)

// topCountryLimit caps the per-type country ranking in the summaries.
const topCountryLimit = 5

// AssembleInput carries the stage outputs one report is built from. The
// assembler deep-copies everything it keeps, so callers may reuse or mutate
// the input afterward without touching the published report.
type AssembleInput struct {
	GeneratedAt   time.Time
	SourceRows    int
	Rejections    []model.Rejection
	Stats         model.ResolutionStats
	Facilities    []model.Facility
	Set           *cluster.Set
	Edges         []model.DistanceEdge
	DistanceStats model.DistanceStats
	Insights      []model.Insight
	Annotations   map[string][]model.ExcerptRef
	Label         Labeler
}

// Assemble validates edge membership and builds the report. The same input
// always yields a byte-identical serialized report.
func Assemble(in AssembleInput) (*model.Report, error) {
	for _, e := range in.Edges {
		if _, ok := in.Set.Owner(e.FacilityA); !ok {
			return nil, eris.Wrapf(ErrEdgeMembership, "edge %s->%s endpoint %s", e.FacilityA, e.FacilityB, e.FacilityA)
		}
		if _, ok := in.Set.Owner(e.FacilityB); !ok {
			return nil, eris.Wrapf(ErrEdgeMembership, "edge %s->%s endpoint %s", e.FacilityA, e.FacilityB, e.FacilityB)
		}
	}

	rep := &model.Report{
		SchemaVersion:      model.ReportSchemaVersion,
		GeneratedAt:        in.GeneratedAt,
		SourceSnapshotSize: in.SourceRows,
		ResolutionStats:    in.Stats,
		Rejections:         summarizeRejections(in.Rejections),
		Clusters:           copyClusters(in.Set, in.Label),
		Edges:              append(make([]model.DistanceEdge, 0, len(in.Edges)), in.Edges...),
		Insights:           append(make([]model.Insight, 0, len(in.Insights)), in.Insights...),
		Annotations:        copyAnnotations(in.Annotations),
		TypeSummaries:      typeSummaries(in.Set),
		Workforce:          workforceProfile(in.Facilities),
	}
	if in.DistanceStats.Pairs > 0 {
		stats := in.DistanceStats
		rep.DistanceStats = &stats
	}

	zap.L().Info("report: assembled",
		zap.Int("source_rows", in.SourceRows),
		zap.Int("clusters", len(rep.Clusters)),
		zap.Int("edges", len(rep.Edges)),
		zap.Int("insights", len(rep.Insights)),
		zap.Int("rejections", rep.Rejections.Total),
	)
	return rep, nil
}

func summarizeRejections(rejections []model.Rejection) model.RejectionSummary {
	summary := model.RejectionSummary{Total: len(rejections)}
	if len(rejections) == 0 {
		return summary
	}
	summary.ByReason = make(map[string]int)
	summary.Rows = append(make([]model.Rejection, 0, len(rejections)), rejections...)
	for _, r := range rejections {
		summary.ByReason[string(r.Reason)]++
	}
	return summary
}

// copyClusters clones the cluster set and finishes each centroid with its
// geohash and nearest-anchor label.
func copyClusters(set *cluster.Set, label Labeler) []model.Cluster {
	src := set.Clusters()
	out := make([]model.Cluster, 0, len(src))
	for _, c := range src {
		cp := c
		cp.Members = append(make([]string, 0, len(c.Members)), c.Members...)
		cp.AvgPctFemale = cloneRatio(c.AvgPctFemale)
		cp.AvgPctMigrant = cloneRatio(c.AvgPctMigrant)
		if c.Centroid != nil {
			cen := model.Centroid{
				Lat:     c.Centroid.Lat,
				Lon:     c.Centroid.Lon,
				Geohash: gazetteer.Geohash(c.Centroid.Lat, c.Centroid.Lon),
			}
			if label != nil {
				if a, ok := label(cen.Lat, cen.Lon); ok {
					cen.NearestAnchor = a.Name
				}
			}
			cp.Centroid = &cen
		}
		out = append(out, cp)
	}
	return out
}

func copyAnnotations(src map[string][]model.ExcerptRef) map[string][]model.ExcerptRef {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]model.ExcerptRef, len(src))
	for key, refs := range src {
		out[key] = append(make([]model.ExcerptRef, 0, len(refs)), refs...)
	}
	return out
}

func cloneRatio(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// typeSummaries rolls each facility type up across countries, ranking the
// busiest hosts first.
func typeSummaries(set *cluster.Set) []model.TypeSummary {
	types := set.Types()
	out := make([]model.TypeSummary, 0, len(types))
	for _, ftype := range types {
		summary := model.TypeSummary{Type: ftype}
		var countries []model.CountryCount
		for _, c := range set.ByType(ftype) {
			summary.Facilities += c.Count
			summary.TotalWorkers += c.TotalWorkers
			countries = append(countries, model.CountryCount{Country: c.Country, Facilities: c.Count})
		}
		sort.Slice(countries, func(i, j int) bool {
			if countries[i].Facilities != countries[j].Facilities {
				return countries[i].Facilities > countries[j].Facilities
			}
			return countries[i].Country < countries[j].Country
		})
		if len(countries) > topCountryLimit {
			countries = countries[:topCountryLimit]
		}
		summary.TopCountries = countries
		out = append(out, summary)
	}
	return out
}

// workforceProfile buckets facilities by workforce composition and averages
// the known ratios.
func workforceProfile(facilities []model.Facility) model.WorkforceProfile {
	var profile model.WorkforceProfile
	var femaleSum, migrantSum float64
	var femaleN, migrantN int

	for _, f := range facilities {
		switch {
		case f.PctFemale == nil:
			profile.Composition.Unknown++
		case *f.PctFemale > 0.6:
			profile.Composition.PrimarilyFemale++
		case *f.PctFemale < 0.4:
			profile.Composition.PrimarilyMale++
		default:
			profile.Composition.Balanced++
		}
		if f.PctFemale != nil {
			femaleSum += *f.PctFemale
			femaleN++
		}

		switch {
		case f.PctMigrant == nil:
			profile.MigrantDependency.Unknown++
		case *f.PctMigrant > 0.5:
			profile.MigrantDependency.High++
		case *f.PctMigrant < 0.1:
			profile.MigrantDependency.Low++
		default:
			profile.MigrantDependency.Moderate++
		}
		if f.PctMigrant != nil {
			migrantSum += *f.PctMigrant
			migrantN++
		}
	}

	if femaleN > 0 {
		v := femaleSum / float64(femaleN)
		profile.AvgPctFemale = &v
	}
	if migrantN > 0 {
		v := migrantSum / float64(migrantN)
		profile.AvgPctMigrant = &v
	}
	return profile
}
