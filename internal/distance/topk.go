package distance

import (
	"container/heap"
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/facility-atlas/internal/model"
)

// Options tunes one top-K selection.
type Options struct {
	// K is the number of closest pairs to keep. Zero selects nothing.
	K int
	// Workers shards the scan of population A. Values below 2 run serially.
	Workers int
}

// Result carries the selected edges plus streaming statistics over the full
// cross product, not just the kept pairs.
type Result struct {
	Edges []model.DistanceEdge
	Stats model.DistanceStats
}

// candidate is one scored pair during the scan.
type candidate struct {
	km   float64
	a, b *model.Facility
}

// better reports whether x precedes y under the selection's total order:
// distance ascending, then the first facility id, then the second.
func better(x, y candidate) bool {
	if x.km != y.km {
		return x.km < y.km
	}
	if x.a.ID != y.a.ID {
		return x.a.ID < y.a.ID
	}
	return x.b.ID < y.b.ID
}

// boundedHeap is a max-heap over candidates: the root is the worst pair
// currently kept, so a better candidate replaces it in O(log k).
type boundedHeap struct {
	cands []candidate
}

func (h *boundedHeap) Len() int           { return len(h.cands) }
func (h *boundedHeap) Less(i, j int) bool { return better(h.cands[j], h.cands[i]) }
func (h *boundedHeap) Swap(i, j int)      { h.cands[i], h.cands[j] = h.cands[j], h.cands[i] }

func (h *boundedHeap) Push(x any) { h.cands = append(h.cands, x.(candidate)) }

func (h *boundedHeap) Pop() any {
	last := len(h.cands) - 1
	c := h.cands[last]
	h.cands = h.cands[:last]
	return c
}

func (h *boundedHeap) consider(c candidate, k int) {
	if len(h.cands) < k {
		heap.Push(h, c)
		return
	}
	if better(c, h.cands[0]) {
		h.cands[0] = c
		heap.Fix(h, 0)
	}
}

// statsAcc accumulates cross-product statistics without materializing pairs.
type statsAcc struct {
	pairs int64
	sum   float64
	min   float64
	max   float64
}

func newStatsAcc() statsAcc {
	return statsAcc{min: math.Inf(1), max: math.Inf(-1)}
}

func (s *statsAcc) add(km float64) {
	s.pairs++
	s.sum += km
	if km < s.min {
		s.min = km
	}
	if km > s.max {
		s.max = km
	}
}

func (s *statsAcc) merge(o statsAcc) {
	s.pairs += o.pairs
	s.sum += o.sum
	if o.min < s.min {
		s.min = o.min
	}
	if o.max > s.max {
		s.max = o.max
	}
}

func (s *statsAcc) stats() model.DistanceStats {
	if s.pairs == 0 {
		return model.DistanceStats{}
	}
	return model.DistanceStats{
		Pairs:  s.pairs,
		MinKM:  s.min,
		MaxKM:  s.max,
		MeanKM: s.sum / float64(s.pairs),
	}
}

// TopKCrossTypeEdges scores every pair between the resolved facilities of
// popA and popB and returns the K closest as ranked edges, ascending.
// Unresolved facilities are skipped. When K meets or exceeds the pair count,
// every pair comes back. The scan shards population A across Options.Workers
// goroutines; each shard keeps its own bounded heap over the full B
// population and the shard results merge under the same total order, so the
// outcome matches the serial scan.
func TopKCrossTypeEdges(ctx context.Context, popA, popB []model.Facility, opts Options) (Result, error) {
	a := resolvedOnly(popA)
	b := resolvedOnly(popB)
	if len(a) == 0 || len(b) == 0 {
		return Result{}, nil
	}
	k := opts.K
	if k < 0 {
		k = 0
	}

	workers := opts.Workers
	if workers > len(a) {
		workers = len(a)
	}

	var (
		cands []candidate
		acc   = newStatsAcc()
	)
	if workers < 2 {
		h := &boundedHeap{}
		if err := scan(ctx, a, b, k, h, &acc); err != nil {
			return Result{}, err
		}
		cands = h.cands
	} else {
		heaps := make([]*boundedHeap, workers)
		accs := make([]statsAcc, workers)
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			w := w
			lo := w * len(a) / workers
			hi := (w + 1) * len(a) / workers
			heaps[w] = &boundedHeap{}
			accs[w] = newStatsAcc()
			g.Go(func() error {
				return scan(gctx, a[lo:hi], b, k, heaps[w], &accs[w])
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
		for w := 0; w < workers; w++ {
			acc.merge(accs[w])
			cands = append(cands, heaps[w].cands...)
		}
	}

	sort.Slice(cands, func(i, j int) bool { return better(cands[i], cands[j]) })
	if len(cands) > k {
		cands = cands[:k]
	}

	edges := make([]model.DistanceEdge, len(cands))
	for i, c := range cands {
		edges[i] = model.DistanceEdge{
			FacilityA:  c.a.ID,
			FacilityB:  c.b.ID,
			NameA:      c.a.Name,
			NameB:      c.b.Name,
			CountryA:   c.a.Country,
			CountryB:   c.b.Country,
			DistanceKM: c.km,
			Rank:       i + 1,
		}
	}

	zap.L().Debug("distance: top-k scan complete",
		zap.Int("pop_a", len(a)),
		zap.Int("pop_b", len(b)),
		zap.Int64("pairs", acc.pairs),
		zap.Int("edges", len(edges)),
		zap.Int("workers", max(workers, 1)),
	)
	return Result{Edges: edges, Stats: acc.stats()}, nil
}

// scan walks the cross product of one A shard against all of B, feeding the
// heap and the statistics accumulator.
func scan(ctx context.Context, shard, popB []*model.Facility, k int, h *boundedHeap, acc *statsAcc) error {
	for _, fa := range shard {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "distance: scan canceled")
		}
		for _, fb := range popB {
			km := Haversine(fa.Coordinates.Lat, fa.Coordinates.Lon, fb.Coordinates.Lat, fb.Coordinates.Lon)
			acc.add(km)
			if k > 0 {
				h.consider(candidate{km: km, a: fa, b: fb}, k)
			}
		}
	}
	return nil
}

func resolvedOnly(pop []model.Facility) []*model.Facility {
	out := make([]*model.Facility, 0, len(pop))
	for i := range pop {
		if pop[i].Resolved() {
			out = append(out, &pop[i])
		}
	}
	return out
}
