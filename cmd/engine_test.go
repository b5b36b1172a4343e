package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/facility-atlas/internal/model"
	"github.com/sells-group/facility-atlas/internal/store"
)

func TestInitEngine_Storeless(t *testing.T) {
	cfg = testConfig(t)

	env, err := initEngine(context.Background(), false, nil)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Store)
	require.NotNil(t, env.Resolver)
	assert.Positive(t, env.Resolver.Len())
	assert.NotNil(t, env.Pipeline)
}

func TestInitEngine_WithStore(t *testing.T) {
	cfg = testConfig(t)

	env, err := initEngine(context.Background(), true, nil)
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)

	// The store is migrated and usable.
	count, err := env.Store.CountAnchors(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInitEngine_ExtraAnchors(t *testing.T) {
	cfg = testConfig(t)

	extra := []model.Anchor{
		{Key: "strelsau, ruritania", Name: "Strelsau", Country: "Ruritania", Lat: 47.8, Lon: 14.3},
	}

	env, err := initEngine(context.Background(), false, extra)
	require.NoError(t, err)
	defer env.Close()

	coords, ok := env.Resolver.Resolve("Ruritania", "Strelsau")
	require.True(t, ok)
	assert.InDelta(t, 47.8, coords.Lat, 1e-9)
	assert.Equal(t, model.MatchCity, coords.Match)
}

func TestBuildResolver_FileAnchors(t *testing.T) {
	cfg = testConfig(t)

	path := filepath.Join(t.TempDir(), "anchors.csv")
	require.NoError(t, os.WriteFile(path, []byte(testAnchorsCSV), 0o644))
	cfg.Gazetteer.File = path

	resolver, err := buildResolver(context.Background(), nil, nil)
	require.NoError(t, err)

	coords, ok := resolver.Resolve("Ruritania", "")
	require.True(t, ok)
	assert.InDelta(t, 47.5, coords.Lat, 1e-9)
	assert.Equal(t, model.MatchCountry, coords.Match)
}

func TestBuildResolver_FileMissing(t *testing.T) {
	cfg = testConfig(t)
	cfg.Gazetteer.File = "/nonexistent/anchors.csv"

	_, err := buildResolver(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load gazetteer file")
}

func TestBuildResolver_FromStore(t *testing.T) {
	cfg = testConfig(t)
	cfg.Gazetteer.FromStore = true

	st, err := store.Open(context.Background(), cfg.Store)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	_, err = st.ReplaceAnchors(context.Background(), []model.Anchor{
		{Key: "zenda, ruritania", Name: "Zenda", Country: "Ruritania", Lat: 47.6, Lon: 14.4, Source: "import"},
	})
	require.NoError(t, err)

	resolver, err := buildResolver(context.Background(), st, nil)
	require.NoError(t, err)

	coords, ok := resolver.Resolve("Ruritania", "Zenda")
	require.True(t, ok)
	assert.InDelta(t, 47.6, coords.Lat, 1e-9)
}

func TestBuildResolver_ExtraOverridesEmbedded(t *testing.T) {
	cfg = testConfig(t)

	// The embedded table already knows Vietnam; a later layer wins.
	extra := []model.Anchor{
		{Key: "vietnam", Name: "Vietnam", Country: "Vietnam", Lat: 15.0, Lon: 107.0},
	}

	resolver, err := buildResolver(context.Background(), nil, extra)
	require.NoError(t, err)

	coords, ok := resolver.Resolve("Vietnam", "")
	require.True(t, ok)
	assert.InDelta(t, 15.0, coords.Lat, 1e-9)
}
