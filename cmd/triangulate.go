package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/facility-atlas/internal/fetcher"
	"github.com/sells-group/facility-atlas/internal/gazetteer"
	"github.com/sells-group/facility-atlas/internal/model"
	"github.com/sells-group/facility-atlas/internal/pipeline"
)

var (
	triangulateInput    string
	triangulateExcerpts string
	triangulateAnchors  string
	triangulateSheet    string
	triangulateSkipRows int
	triangulateTopK     int
	triangulateSave     bool
)

var triangulateCmd = &cobra.Command{
	Use:   "triangulate",
	Short: "Run the triangulation engine over a facility snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if triangulateTopK > 0 {
			cfg.Distance.TopK = triangulateTopK
		}

		var extra []model.Anchor
		if triangulateAnchors != "" {
			anchors, err := gazetteer.LoadCSVFile(triangulateAnchors)
			if err != nil {
				return eris.Wrapf(err, "load anchors %s", triangulateAnchors)
			}
			extra = anchors
		}

		env, err := initEngine(ctx, triangulateSave, extra)
		if err != nil {
			return err
		}
		defer env.Close()

		in, err := readInput(ctx)
		if err != nil {
			return err
		}

		report, _, err := runTriangulation(ctx, env, in, triangulateSave)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// readInput parses the snapshot and optional excerpt files named on the
// command line.
func readInput(ctx context.Context) (pipeline.Input, error) {
	opts := fetcher.Options{
		CSV:  fetcher.CSVOptions{Charset: cfg.Ingest.Charset},
		XLSX: fetcher.XLSXOptions{SheetName: triangulateSheet, SkipRows: triangulateSkipRows},
	}

	rows, err := fetcher.ReadFacilities(ctx, triangulateInput, opts)
	if err != nil {
		return pipeline.Input{}, eris.Wrap(err, "read facilities")
	}

	in := pipeline.Input{Source: triangulateInput, Rows: rows}

	if triangulateExcerpts != "" {
		excerpts, err := fetcher.ReadExcerptsFile(ctx, triangulateExcerpts)
		if err != nil {
			return pipeline.Input{}, eris.Wrap(err, "read excerpts")
		}
		in.Excerpts = excerpts
	}

	return in, nil
}

// runTriangulation executes the pipeline and, when save is set, records the
// run in the store. The returned id is empty for unsaved runs.
func runTriangulation(ctx context.Context, env *engineEnv, in pipeline.Input, save bool) (*model.Report, string, error) {
	var run *model.Run
	if save && env.Store != nil {
		var err error
		run, err = env.Store.CreateRun(ctx, runInput(in))
		if err != nil {
			return nil, "", eris.Wrap(err, "create run")
		}
		if err := env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return nil, "", eris.Wrap(err, "mark run running")
		}
	}

	report, err := env.Pipeline.Run(ctx, in)
	if err != nil {
		if run != nil {
			if failErr := env.Store.FailRun(ctx, run.ID, err); failErr != nil {
				zap.L().Error("record run failure",
					zap.String("run_id", run.ID),
					zap.Error(failErr),
				)
			}
			return nil, run.ID, eris.Wrap(err, "pipeline run")
		}
		return nil, "", eris.Wrap(err, "pipeline run")
	}

	if run != nil {
		if err := env.Store.CompleteRun(ctx, run.ID, report); err != nil {
			return nil, run.ID, eris.Wrap(err, "complete run")
		}
		zap.L().Info("run saved", zap.String("run_id", run.ID))
		return report, run.ID, nil
	}

	return report, "", nil
}

// runInput summarizes the pipeline input for the run record.
func runInput(in pipeline.Input) model.RunInput {
	return model.RunInput{
		Source:     in.Source,
		Facilities: len(in.Rows),
		Excerpts:   len(in.Excerpts),
		TypeA:      cfg.Distance.TypeA,
		TypeB:      cfg.Distance.TypeB,
		TopK:       cfg.Distance.TopK,
	}
}

func init() {
	triangulateCmd.Flags().StringVar(&triangulateInput, "input", "", "facility snapshot file, .csv/.tsv/.xlsx (required)")
	triangulateCmd.Flags().StringVar(&triangulateExcerpts, "excerpts", "", "keyword excerpt JSON file")
	triangulateCmd.Flags().StringVar(&triangulateAnchors, "anchors", "", "anchor CSV merged over the embedded gazetteer")
	triangulateCmd.Flags().StringVar(&triangulateSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	triangulateCmd.Flags().IntVar(&triangulateSkipRows, "skip-rows", 0, "rows to skip above the XLSX header")
	triangulateCmd.Flags().IntVar(&triangulateTopK, "top-k", 0, "nearest cross-type pairs to keep (default from config)")
	triangulateCmd.Flags().BoolVar(&triangulateSave, "save", false, "persist the run in the configured store")
	_ = triangulateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(triangulateCmd)
}
