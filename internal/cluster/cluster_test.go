package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/facility-atlas/internal/model"
)

func ratio(v float64) *float64 { return &v }

func fac(id, country, ftype string, workers int) model.Facility {
	return model.Facility{
		ID:           id,
		Name:         "Facility " + id,
		Type:         ftype,
		Country:      country,
		TotalWorkers: workers,
	}
}

func located(f model.Facility, lat, lon float64) model.Facility {
	f.Coordinates = &model.Coordinates{Lat: lat, Lon: lon, Match: model.MatchCity}
	return f
}

func TestBuild_PartitionsEveryFacilityExactlyOnce(t *testing.T) {
	t.Parallel()

	facilities := []model.Facility{
		fac("f-0001", "Vietnam", "COMPONENTS", 10),
		fac("f-0002", "Vietnam", "COMPONENTS", 20),
		fac("f-0003", "Vietnam", "EQUIPMENT", 30),
		fac("f-0004", "China", "COMPONENTS", 40),
		fac("f-0005", "China", "COMPONENTS", 50),
		fac("f-0006", "China", "EQUIPMENT", 60),
		fac("f-0007", "India", "COMPONENTS", 70),
	}

	s := Build(facilities)

	total := 0
	seen := make(map[string]int)
	for _, c := range s.Clusters() {
		total += c.Count
		assert.Len(t, c.Members, c.Count)
		for _, id := range c.Members {
			seen[id]++
		}
	}
	assert.Equal(t, len(facilities), total)
	for _, f := range facilities {
		assert.Equal(t, 1, seen[f.ID], "facility %s must appear exactly once", f.ID)
		key, ok := s.Owner(f.ID)
		require.True(t, ok)
		assert.Equal(t, model.ClusterKey{Country: f.Country, Type: f.Type}, key)
	}
}

func TestBuild_CanonicalOrder(t *testing.T) {
	t.Parallel()

	facilities := []model.Facility{
		fac("f-0001", "Vietnam", "EQUIPMENT", 1),
		fac("f-0002", "China", "EQUIPMENT", 1),
		fac("f-0003", "China", "COMPONENTS", 1),
		fac("f-0004", "Vietnam", "COMPONENTS", 1),
		fac("f-0005", "Vietnam", "COMPONENTS", 1),
		fac("f-0006", "Vietnam", "COMPONENTS", 1),
	}

	s := Build(facilities)

	var got []model.ClusterKey
	for _, c := range s.Clusters() {
		got = append(got, c.Key())
	}
	want := []model.ClusterKey{
		{Country: "Vietnam", Type: "COMPONENTS"}, // count 3
		{Country: "China", Type: "COMPONENTS"},   // count 1, country tie broken by type
		{Country: "China", Type: "EQUIPMENT"},
		{Country: "Vietnam", Type: "EQUIPMENT"},
	}
	assert.Equal(t, want, got)
}

func TestBuild_Aggregates(t *testing.T) {
	t.Parallel()

	a := fac("f-0001", "Vietnam", "COMPONENTS", 100)
	a.PctFemale = ratio(0.4)
	b := fac("f-0002", "Vietnam", "COMPONENTS", 50)
	b.PctFemale = ratio(0.8)
	c := fac("f-0003", "Vietnam", "COMPONENTS", 25) // unknown ratios

	s := Build([]model.Facility{a, b, c})
	require.Equal(t, 1, s.Len())
	cl := s.Clusters()[0]

	assert.Equal(t, 3, cl.Count)
	assert.Equal(t, 175, cl.TotalWorkers)
	assert.Equal(t, []string{"f-0001", "f-0002", "f-0003"}, cl.Members)

	// Unknown ratios stay out of the denominator.
	require.NotNil(t, cl.AvgPctFemale)
	assert.InDelta(t, 0.6, *cl.AvgPctFemale, 1e-9)
	assert.Nil(t, cl.AvgPctMigrant)
}

func TestBuild_Centroid(t *testing.T) {
	t.Parallel()

	t.Run("mean of resolved members", func(t *testing.T) {
		s := Build([]model.Facility{
			located(fac("f-0001", "Vietnam", "COMPONENTS", 1), 10.0, 100.0),
			located(fac("f-0002", "Vietnam", "COMPONENTS", 1), 20.0, 110.0),
			fac("f-0003", "Vietnam", "COMPONENTS", 1), // unresolved, excluded
		})
		require.Equal(t, 1, s.Len())
		cen := s.Clusters()[0].Centroid
		require.NotNil(t, cen)
		assert.InDelta(t, 15.0, cen.Lat, 1e-9)
		assert.InDelta(t, 105.0, cen.Lon, 1e-9)
	})

	t.Run("no resolved members means no centroid", func(t *testing.T) {
		s := Build([]model.Facility{fac("f-0001", "Vietnam", "COMPONENTS", 1)})
		require.Equal(t, 1, s.Len())
		assert.Nil(t, s.Clusters()[0].Centroid)
	})
}

func TestSetHelpers(t *testing.T) {
	t.Parallel()

	s := Build([]model.Facility{
		fac("f-0001", "Vietnam", "COMPONENTS", 10),
		fac("f-0002", "China", "COMPONENTS", 20),
		fac("f-0003", "China", "EQUIPMENT", 30),
	})

	assert.Equal(t, []string{"COMPONENTS", "EQUIPMENT"}, s.Types())
	assert.Len(t, s.ByType("COMPONENTS"), 2)
	assert.Equal(t, []string{"China", "Vietnam"}, s.Countries("COMPONENTS"))
	assert.Equal(t, map[string]int{"COMPONENTS": 30, "EQUIPMENT": 30}, s.TypeTotals())

	c, ok := s.Get(model.ClusterKey{Country: "China", Type: "EQUIPMENT"})
	require.True(t, ok)
	assert.Equal(t, 30, c.TotalWorkers)

	_, ok = s.Get(model.ClusterKey{Country: "India", Type: "COMPONENTS"})
	assert.False(t, ok)
}

func TestBuild_Empty(t *testing.T) {
	t.Parallel()

	s := Build(nil)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Clusters())
	assert.Empty(t, s.Types())
	assert.Empty(t, s.TypeTotals())
}
