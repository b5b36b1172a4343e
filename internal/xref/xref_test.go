package xref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/facility-atlas/internal/model"
)

func TestNormalizeCountry(t *testing.T) {
	t.Parallel()

	a := New(nil)

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"uppercase and trim", "  vietnam ", "VIETNAM"},
		{"spaced variant aliased", "Viet Nam", "VIETNAM"},
		{"hyphenated variant aliased", "Viet-Nam", "VIETNAM"},
		{"dotted abbreviation aliased", "U.S.A.", "UNITED STATES"},
		{"long form aliased", "United States of America", "UNITED STATES"},
		{"historical name aliased", "Burma", "MYANMAR"},
		{"unknown passes through normalized", "Freedonia", "FREEDONIA"},
		{"empty stays empty", "  ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, a.NormalizeCountry(tc.in))
		})
	}
}

func TestNew_OverridesWinOverBuiltins(t *testing.T) {
	t.Parallel()

	a := New(map[string]string{
		"Burma":   "BURMA PROPER",
		"Siam":    "thailand",
		"Georgia": "",
	})

	assert.Equal(t, "BURMA PROPER", a.NormalizeCountry("burma"))
	assert.Equal(t, "THAILAND", a.NormalizeCountry("Siam"))
	// An empty target suppresses the name.
	assert.Equal(t, "", a.NormalizeCountry("Georgia"))
}

func clusterFixtures() []model.Cluster {
	return []model.Cluster{
		{Country: "Vietnam", Type: "COMPONENTS", Count: 3},
		{Country: "Vietnam", Type: "EQUIPMENT", Count: 1},
		{Country: "China", Type: "COMPONENTS", Count: 2},
	}
}

func excerpt(doc, country string) model.Excerpt {
	return model.Excerpt{
		DocumentID:       doc,
		Category:         "labor",
		MatchedKeyword:   "workforce",
		Snippet:          "…",
		MentionedCountry: country,
	}
}

func TestAnnotate(t *testing.T) {
	t.Parallel()

	a := New(nil)
	excerpts := []model.Excerpt{
		excerpt("doc-1", "Viet Nam"),
		excerpt("doc-2", "china"),
		excerpt("doc-3", "Atlantis"),
		excerpt("doc-4", "VIETNAM"),
	}

	got := a.Annotate(clusterFixtures(), excerpts)

	// Every cluster of a mentioned country is annotated.
	require.Contains(t, got, "Vietnam/COMPONENTS")
	require.Contains(t, got, "Vietnam/EQUIPMENT")
	require.Contains(t, got, "China/COMPONENTS")
	assert.Len(t, got, 3)

	// Lists keep excerpt input order.
	refs := got["Vietnam/COMPONENTS"]
	require.Len(t, refs, 2)
	assert.Equal(t, "doc-1", refs[0].DocumentID)
	assert.Equal(t, "doc-4", refs[1].DocumentID)

	// The unmatched mention is dropped silently.
	for _, list := range got {
		for _, ref := range list {
			assert.NotEqual(t, "doc-3", ref.DocumentID)
		}
	}
}

func TestAnnotate_EmptyInputs(t *testing.T) {
	t.Parallel()

	a := New(nil)

	assert.Empty(t, a.Annotate(clusterFixtures(), nil))
	assert.Empty(t, a.Annotate(nil, []model.Excerpt{excerpt("doc-1", "Vietnam")}))
}

// Country-name matching cannot tell Georgia the country from Georgia the US
// state; a state mention links to the country cluster. The alias table is
// the operator's escape hatch.
func TestAnnotate_GeorgiaCollision(t *testing.T) {
	t.Parallel()

	clusters := []model.Cluster{{Country: "Georgia", Type: "COMPONENTS", Count: 1}}
	excerpts := []model.Excerpt{excerpt("doc-atlanta", "Georgia")}

	t.Run("state mention links to the country cluster", func(t *testing.T) {
		got := New(nil).Annotate(clusters, excerpts)
		require.Contains(t, got, "Georgia/COMPONENTS")
	})

	t.Run("suppression override breaks the link", func(t *testing.T) {
		got := New(map[string]string{"Georgia": ""}).Annotate(clusters, excerpts)
		assert.Empty(t, got)
	})
}
