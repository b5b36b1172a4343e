// Package pipeline orchestrates one triangulation run: registry validation,
// clustering, distance selection, cross-referencing, insight generation, and
// report assembly.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/facility-atlas/internal/cluster"
	"github.com/sells-group/facility-atlas/internal/config"
	"github.com/sells-group/facility-atlas/internal/distance"
	"github.com/sells-group/facility-atlas/internal/gazetteer"
	"github.com/sells-group/facility-atlas/internal/insight"
	"github.com/sells-group/facility-atlas/internal/model"
	"github.com/sells-group/facility-atlas/internal/registry"
	"github.com/sells-group/facility-atlas/internal/report"
	"github.com/sells-group/facility-atlas/internal/xref"
)

// Input is one raw snapshot to triangulate. Excerpts are optional.
type Input struct {
	Source   string
	Rows     []model.FacilityRow
	Excerpts []model.Excerpt
}

// Pipeline wires the engine stages together.
type Pipeline struct {
	cfg      *config.Config
	resolver *gazetteer.Resolver
	now      func() time.Time
}

// Option adjusts pipeline construction.
type Option func(*Pipeline)

// WithClock replaces the wall clock. The clock stamps the report and times
// the phases, so tests that fix it get byte-identical output.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline over the given config and resolver.
func New(cfg *config.Config, resolver *gazetteer.Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, resolver: resolver, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage over the input and returns the assembled report.
// Configuration problems and invariant violations fail the run; per-row
// rejections and resolution misses never do.
func (p *Pipeline) Run(ctx context.Context, in Input) (*model.Report, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: configuration rejected")
	}

	log := zap.L().With(zap.String("source", in.Source))
	log.Info("pipeline: run starting",
		zap.Int("rows", len(in.Rows)),
		zap.Int("excerpts", len(in.Excerpts)),
	)

	phase := func(name string, fn func() error) error {
		start := p.now()
		if err := fn(); err != nil {
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", p.now().Sub(start).Milliseconds()),
				zap.Error(err),
			)
			return err
		}
		log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", p.now().Sub(start).Milliseconds()),
		)
		return nil
	}

	// ===== Phase 1: Registry =====
	var reg registry.Result
	_ = phase("1_registry", func() error {
		reg = registry.NewBuilder(p.resolver, p.cfg.Registry.AllowedTypes).Build(in.Rows)
		return nil
	})

	// ===== Phase 2: Clusters =====
	var set *cluster.Set
	_ = phase("2_cluster", func() error {
		set = cluster.Build(reg.Facilities)
		return nil
	})

	// ===== Phase 3: Distances and annotations in parallel =====
	// Both read the same immutable snapshot, so they share nothing mutable.
	var (
		dres        distance.Result
		annotations map[string][]model.ExcerptRef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return phase("3a_distance", func() error {
			popA := selectType(reg.Facilities, p.cfg.Distance.TypeA)
			popB := selectType(reg.Facilities, p.cfg.Distance.TypeB)
			var err error
			dres, err = distance.TopKCrossTypeEdges(gctx, popA, popB, distance.Options{
				K:       p.cfg.Distance.TopK,
				Workers: p.cfg.Distance.Workers,
			})
			return err
		})
	})
	g.Go(func() error {
		return phase("3b_xref", func() error {
			annotations = xref.New(p.cfg.Xref.Aliases).Annotate(set.Clusters(), in.Excerpts)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// ===== Phase 4: Insights =====
	var insights []model.Insight
	_ = phase("4_insight", func() error {
		insights = insight.Generate(set, insight.Config{
			ConcentrationThreshold: p.cfg.Insight.ConcentrationThreshold,
			MinCountries:           p.cfg.Insight.MinCountries,
			MigrantThreshold:       p.cfg.Insight.MigrantThreshold,
		})
		return nil
	})

	// ===== Phase 5: Assembly =====
	var rep *model.Report
	if err := phase("5_assemble", func() error {
		var err error
		rep, err = report.Assemble(report.AssembleInput{
			GeneratedAt:   p.now().UTC(),
			SourceRows:    len(in.Rows),
			Rejections:    reg.Rejections,
			Stats:         reg.Stats,
			Facilities:    reg.Facilities,
			Set:           set,
			Edges:         dres.Edges,
			DistanceStats: dres.Stats,
			Insights:      insights,
			Annotations:   annotations,
			Label:         p.resolver.Reverse,
		})
		return err
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: assemble report")
	}

	log.Info("pipeline: run complete",
		zap.Int("facilities", len(reg.Facilities)),
		zap.Int("rejections", len(reg.Rejections)),
		zap.Int("clusters", set.Len()),
		zap.Int("edges", len(rep.Edges)),
		zap.Int("insights", len(rep.Insights)),
	)
	return rep, nil
}

// selectType filters the snapshot down to one facility type, fold-insensitive.
func selectType(facilities []model.Facility, ftype string) []model.Facility {
	var out []model.Facility
	for _, f := range facilities {
		if strings.EqualFold(f.Type, ftype) {
			out = append(out, f)
		}
	}
	return out
}
