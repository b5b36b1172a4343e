// Package cluster groups validated facilities by (country, type) and
// computes the per-cluster aggregates downstream stages consume.
package cluster

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/facility-atlas/internal/model"
)

// Set is an immutable collection of clusters in canonical order: facility
// count descending, then country ascending, then type ascending.
type Set struct {
	clusters []model.Cluster
	byKey    map[model.ClusterKey]int
	owner    map[string]model.ClusterKey
}

type agg struct {
	key        model.ClusterKey
	members    []string
	workers    int
	femaleSum  float64
	femaleN    int
	migrantSum float64
	migrantN   int
	latSum     float64
	lonSum     float64
	resolved   int
}

// Build partitions facilities into clusters keyed by (country, type).
// Membership lists preserve facility input order. Ratio averages run over
// known values only; a cluster where every member is unknown reports nil.
// The centroid is the mean position of resolved members, nil when none are.
func Build(facilities []model.Facility) *Set {
	aggs := make(map[model.ClusterKey]*agg)
	var order []model.ClusterKey

	for _, f := range facilities {
		key := model.ClusterKey{Country: f.Country, Type: f.Type}
		a, ok := aggs[key]
		if !ok {
			a = &agg{key: key}
			aggs[key] = a
			order = append(order, key)
		}
		a.members = append(a.members, f.ID)
		a.workers += f.TotalWorkers
		if f.PctFemale != nil {
			a.femaleSum += *f.PctFemale
			a.femaleN++
		}
		if f.PctMigrant != nil {
			a.migrantSum += *f.PctMigrant
			a.migrantN++
		}
		if f.Resolved() {
			a.latSum += f.Coordinates.Lat
			a.lonSum += f.Coordinates.Lon
			a.resolved++
		}
	}

	s := &Set{
		clusters: make([]model.Cluster, 0, len(order)),
		byKey:    make(map[model.ClusterKey]int, len(order)),
		owner:    make(map[string]model.ClusterKey, len(facilities)),
	}

	for _, key := range order {
		a := aggs[key]
		c := model.Cluster{
			Country:      key.Country,
			Type:         key.Type,
			Members:      a.members,
			Count:        len(a.members),
			TotalWorkers: a.workers,
		}
		if a.femaleN > 0 {
			v := a.femaleSum / float64(a.femaleN)
			c.AvgPctFemale = &v
		}
		if a.migrantN > 0 {
			v := a.migrantSum / float64(a.migrantN)
			c.AvgPctMigrant = &v
		}
		if a.resolved > 0 {
			c.Centroid = &model.Centroid{
				Lat: a.latSum / float64(a.resolved),
				Lon: a.lonSum / float64(a.resolved),
			}
		}
		s.clusters = append(s.clusters, c)
		for _, id := range a.members {
			s.owner[id] = key
		}
	}

	sort.Slice(s.clusters, func(i, j int) bool {
		a, b := s.clusters[i], s.clusters[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		return a.Type < b.Type
	})
	for i, c := range s.clusters {
		s.byKey[c.Key()] = i
	}

	zap.L().Debug("cluster: set built",
		zap.Int("facilities", len(facilities)),
		zap.Int("clusters", len(s.clusters)),
	)
	return s
}

// Len returns the number of clusters.
func (s *Set) Len() int { return len(s.clusters) }

// Clusters returns the clusters in canonical order. Callers must treat the
// slice as read-only; the assembler deep-copies before publishing.
func (s *Set) Clusters() []model.Cluster { return s.clusters }

// Get looks up a cluster by key.
func (s *Set) Get(key model.ClusterKey) (model.Cluster, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return model.Cluster{}, false
	}
	return s.clusters[i], true
}

// Owner returns the cluster key a facility id belongs to.
func (s *Set) Owner(facilityID string) (model.ClusterKey, bool) {
	key, ok := s.owner[facilityID]
	return key, ok
}

// Types returns the distinct facility types, ascending.
func (s *Set) Types() []string {
	seen := make(map[string]struct{})
	var types []string
	for _, c := range s.clusters {
		if _, ok := seen[c.Type]; !ok {
			seen[c.Type] = struct{}{}
			types = append(types, c.Type)
		}
	}
	sort.Strings(types)
	return types
}

// ByType returns the clusters of one type in canonical order.
func (s *Set) ByType(facilityType string) []model.Cluster {
	var out []model.Cluster
	for _, c := range s.clusters {
		if c.Type == facilityType {
			out = append(out, c)
		}
	}
	return out
}

// Countries returns the distinct countries hosting a type, ascending.
func (s *Set) Countries(facilityType string) []string {
	var out []string
	for _, c := range s.clusters {
		if c.Type == facilityType {
			out = append(out, c.Country)
		}
	}
	sort.Strings(out)
	return out
}

// TypeTotals sums total_workers per type.
func (s *Set) TypeTotals() map[string]int {
	totals := make(map[string]int)
	for _, c := range s.clusters {
		totals[c.Type] += c.TotalWorkers
	}
	return totals
}
