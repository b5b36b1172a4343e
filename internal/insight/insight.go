// Package insight derives strategic risk signals from the cluster set:
// workforce concentration, geographic spread, and migrant dependency.
package insight

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/facility-atlas/internal/cluster"
	"github.com/sells-group/facility-atlas/internal/model"
)

// Config carries the rule thresholds.
type Config struct {
	// ConcentrationThreshold is the workforce share a single country must
	// strictly exceed to flag concentration risk.
	ConcentrationThreshold float64
	// MinCountries is the spread floor; a type in fewer distinct countries
	// flags spread risk.
	MinCountries int
	// MigrantThreshold is the cluster average migrant ratio that flags
	// dependency when strictly exceeded.
	MigrantThreshold float64
}

// Generate runs every rule over the cluster set and returns insights in
// canonical order: severity descending, evidence descending, then subject
// and category ascending. The rules only read the set; no input ever makes
// generation fail.
func Generate(set *cluster.Set, cfg Config) []model.Insight {
	var insights []model.Insight
	insights = append(insights, concentration(set, cfg.ConcentrationThreshold)...)
	insights = append(insights, spread(set, cfg.MinCountries)...)
	insights = append(insights, migrantDependency(set, cfg.MigrantThreshold)...)

	sort.Slice(insights, func(i, j int) bool {
		a, b := insights[i], insights[j]
		if aw, bw := a.Severity.Weight(), b.Severity.Weight(); aw != bw {
			return aw > bw
		}
		if a.Evidence != b.Evidence {
			return a.Evidence > b.Evidence
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Category < b.Category
	})

	zap.L().Debug("insight: rules evaluated",
		zap.Int("clusters", set.Len()),
		zap.Int("insights", len(insights)),
	)
	return insights
}

// concentration flags countries whose share of a type's workforce strictly
// exceeds the threshold. Shares at exactly the threshold stay quiet; a share
// past twice the threshold escalates to high.
func concentration(set *cluster.Set, threshold float64) []model.Insight {
	totals := set.TypeTotals()
	var out []model.Insight
	for _, ftype := range set.Types() {
		total := totals[ftype]
		if total == 0 {
			continue
		}
		for _, c := range set.ByType(ftype) {
			share := float64(c.TotalWorkers) / float64(total)
			if share <= threshold {
				continue
			}
			severity := model.SeverityMedium
			if share > 2*threshold {
				severity = model.SeverityHigh
			}
			out = append(out, model.Insight{
				Category: model.InsightConcentrationRisk,
				Severity: severity,
				Subject:  c.Key().String(),
				Evidence: share,
				Narrative: fmt.Sprintf("%s represents %.1f%% of the %s workforce",
					c.Country, share*100, ftype),
			})
		}
	}
	return out
}

// spread flags types hosted in fewer than minCountries distinct countries.
// Evidence is the shortfall, so a narrower spread sorts as worse; a single
// country is high severity.
func spread(set *cluster.Set, minCountries int) []model.Insight {
	var out []model.Insight
	for _, ftype := range set.Types() {
		distinct := len(set.Countries(ftype))
		if distinct >= minCountries {
			continue
		}
		severity := model.SeverityMedium
		if distinct == 1 {
			severity = model.SeverityHigh
		}
		out = append(out, model.Insight{
			Category: model.InsightSpreadRisk,
			Severity: severity,
			Subject:  ftype,
			Evidence: float64(minCountries - distinct),
			Narrative: fmt.Sprintf("country spread for %s is %d, below the diversification minimum of %d",
				ftype, distinct, minCountries),
		})
	}
	return out
}

// migrantDependency flags clusters whose known migrant average strictly
// exceeds the threshold. Clusters with no known ratios are skipped.
func migrantDependency(set *cluster.Set, threshold float64) []model.Insight {
	var out []model.Insight
	for _, c := range set.Clusters() {
		if c.AvgPctMigrant == nil || *c.AvgPctMigrant <= threshold {
			continue
		}
		out = append(out, model.Insight{
			Category: model.InsightMigrantDependency,
			Severity: model.SeverityMedium,
			Subject:  c.Key().String(),
			Evidence: *c.AvgPctMigrant,
			Narrative: fmt.Sprintf("%s %s facilities average %.1f%% migrant workers",
				c.Country, c.Type, *c.AvgPctMigrant*100),
		})
	}
	return out
}
