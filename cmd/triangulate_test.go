package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/facility-atlas/internal/model"
	"github.com/sells-group/facility-atlas/internal/pipeline"
	"github.com/sells-group/facility-atlas/internal/store"
)

const legacySnapshotCSV = `Factory Name,Factory Type,Country / Region,City,Total Workers,% Female Workers,% Migrant Workers,Product Type Type
Hanoi Assembly,FINISHED GOODS,Vietnam,Hanoi,"1,200",45%,10%,Apparel
Shenzhen Components,FINISHED GOODS - COMPONENTS,China,Shenzhen,800,52%,61%,Zippers
`

const testExcerptsJSON = `[
  {"document_id": "doc-1", "category": "labor", "matched_keyword": "overtime", "snippet": "overtime reported", "mentioned_country": "Viet Nam"}
]`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.csv")
	require.NoError(t, os.WriteFile(path, []byte(legacySnapshotCSV), 0o644))
	return path
}

func resetTriangulateFlags() {
	triangulateInput = ""
	triangulateExcerpts = ""
	triangulateAnchors = ""
	triangulateSheet = ""
	triangulateSkipRows = 0
	triangulateTopK = 0
	triangulateSave = false
}

func TestReadInput_CSV(t *testing.T) {
	cfg = testConfig(t)
	path := writeSnapshot(t)

	resetTriangulateFlags()
	triangulateInput = path
	defer resetTriangulateFlags()

	in, err := readInput(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, in.Source)
	require.Len(t, in.Rows, 2)
	assert.Equal(t, "Hanoi Assembly", in.Rows[0].Name)
	assert.Equal(t, "1,200", in.Rows[0].TotalWorkers)
	assert.Empty(t, in.Excerpts)
}

func TestReadInput_WithExcerpts(t *testing.T) {
	cfg = testConfig(t)
	path := writeSnapshot(t)

	excerptsPath := filepath.Join(t.TempDir(), "excerpts.json")
	require.NoError(t, os.WriteFile(excerptsPath, []byte(testExcerptsJSON), 0o644))

	resetTriangulateFlags()
	triangulateInput = path
	triangulateExcerpts = excerptsPath
	defer resetTriangulateFlags()

	in, err := readInput(context.Background())
	require.NoError(t, err)
	require.Len(t, in.Excerpts, 1)
	assert.Equal(t, "doc-1", in.Excerpts[0].DocumentID)
	assert.Equal(t, "Viet Nam", in.Excerpts[0].MentionedCountry)
}

func TestReadInput_MissingFile(t *testing.T) {
	cfg = testConfig(t)

	resetTriangulateFlags()
	triangulateInput = "/nonexistent/snapshot.csv"
	defer resetTriangulateFlags()

	_, err := readInput(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read facilities")
}

func TestRunTriangulation_Save(t *testing.T) {
	env := newTestEnv(t)

	in := pipeline.Input{Source: "unit", Rows: testSnapshotRows()}
	report, runID, err := runTriangulation(context.Background(), env, in, true)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.NotEmpty(t, runID)

	run, err := env.Store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "unit", run.Input.Source)
	assert.Equal(t, 2, run.Input.Facilities)
	require.NotNil(t, run.Report)
	assert.Len(t, run.Report.Clusters, 2)
}

func TestRunTriangulation_NoSave(t *testing.T) {
	env := newTestEnv(t)

	in := pipeline.Input{Source: "unit", Rows: testSnapshotRows()}
	report, runID, err := runTriangulation(context.Background(), env, in, false)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Empty(t, runID)

	runs, err := env.Store.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunTriangulation_FailureRecorded(t *testing.T) {
	env := newTestEnv(t)

	// Break the configuration after construction so the pipeline rejects it
	// at run time and the failure lands in the store.
	cfg.Distance.Workers = 0

	in := pipeline.Input{Source: "unit", Rows: testSnapshotRows()}
	_, runID, err := runTriangulation(context.Background(), env, in, true)
	require.Error(t, err)
	require.NotEmpty(t, runID)

	run, getErr := env.Store.GetRun(context.Background(), runID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "workers")
}

func TestRunInput_Summary(t *testing.T) {
	cfg = testConfig(t)

	in := pipeline.Input{
		Source:   "snapshot.csv",
		Rows:     testSnapshotRows(),
		Excerpts: []model.Excerpt{{DocumentID: "doc-1"}},
	}

	got := runInput(in)
	assert.Equal(t, "snapshot.csv", got.Source)
	assert.Equal(t, 2, got.Facilities)
	assert.Equal(t, 1, got.Excerpts)
	assert.Equal(t, "FINISHED GOODS", got.TypeA)
	assert.Equal(t, "FINISHED GOODS - COMPONENTS", got.TypeB)
	assert.Equal(t, 25, got.TopK)
}

func TestTriangulateCmd_RunE_SavesRun(t *testing.T) {
	cfg = testConfig(t)
	path := writeSnapshot(t)

	triangulateCmd.SetContext(context.Background())
	defer triangulateCmd.SetContext(context.TODO())

	resetTriangulateFlags()
	triangulateInput = path
	triangulateSave = true
	defer resetTriangulateFlags()

	require.NoError(t, triangulateCmd.RunE(triangulateCmd, nil))

	st, err := store.Open(context.Background(), cfg.Store)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 2, runs[0].Input.Facilities)
	require.NotNil(t, runs[0].Report)
	assert.Len(t, runs[0].Report.Clusters, 2)
}

func TestTriangulateCmd_Flags_Exist(t *testing.T) {
	for _, name := range []string{"input", "excerpts", "anchors", "sheet", "skip-rows", "top-k", "save"} {
		require.NotNil(t, triangulateCmd.Flags().Lookup(name), "flag %s", name)
	}
}
