package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tinytelemetry/distill/internal/model"
	"github.com/tinytelemetry/distill/internal/stats"
)

// slowPoolFloorMS is the latency floor for the dedicated slow-trace
// candidate pool. Traces above it are interesting regardless of how
// the rest of the pool is distributed.
const slowPoolFloorMS = 1000.0

// refinementFactor bounds the refined baseline: a same-root candidate
// qualifies only when at least 20% faster than the anomaly.
const refinementFactor = 0.8

// Selection methods reported on the exemplar result.
const (
	SelectionMethodPool    = "multi_strategy_pool"
	SelectionMethodRefined = "same_root_refined"
)

var (
	// ErrNoCandidates is returned when the trace source yields nothing.
	ErrNoCandidates = errors.New("trace source yielded no candidates")

	// ErrNoValidDurations is returned when no candidate in the merged
	// pool has a positive duration.
	ErrNoValidDurations = errors.New("no candidate has a positive duration")
)

// SelectOptions tunes one exemplar selection call.
type SelectOptions struct {
	// PreferErrors adds an error-only candidate pool to the merge.
	PreferErrors bool

	// MinSampleSize is the pool size below which the result is marked
	// sample-inadequate. Zero selects the default.
	MinSampleSize int

	// PoolLimit caps each candidate pool fetch. Zero selects the default.
	PoolLimit int
}

// Selector picks one baseline and one anomaly exemplar out of the
// candidate pools a trace source provides. Stateless; safe for
// concurrent use when the source is.
type Selector struct {
	source model.TraceQuerier
}

// NewSelector creates a Selector over the given trace source.
func NewSelector(source model.TraceQuerier) *Selector {
	return &Selector{source: source}
}

// Select gathers candidate traces, scores each against the pool's own
// statistics, and returns the highest-scoring trace as the anomaly
// exemplar alongside a near-median error-free baseline. When the
// anomaly carries a root operation name, a refinement pass looks for a
// clearly faster trace of the same operation as a better baseline.
func (s *Selector) Select(ctx context.Context, opts SelectOptions) (*model.ExemplarReport, error) {
	if opts.MinSampleSize <= 0 {
		opts.MinSampleSize = model.DefaultMinSampleSize
	}
	if opts.PoolLimit <= 0 {
		opts.PoolLimit = model.DefaultTracePoolLimit
	}

	pool, err := s.gather(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoCandidates
	}

	durations := make([]float64, len(pool))
	hasPositive := false
	errorsFound := 0
	for i, c := range pool {
		durations[i] = c.DurationMS
		if c.DurationMS > 0 {
			hasPositive = true
		}
		if c.HasError {
			errorsFound++
		}
	}
	if !hasPositive {
		return nil, ErrNoValidDurations
	}

	summary := stats.Describe(durations)

	anomaly := pickAnomaly(pool, summary)
	baseline := pickBaseline(pool, summary.Median)
	method := SelectionMethodPool

	if refined, ok := s.refineBaseline(ctx, anomaly.TraceSummary, opts.PoolLimit); ok {
		baseline = refined
		method = SelectionMethodRefined
	}

	return &model.ExemplarReport{
		Stats: model.ExemplarStats{
			Count:            summary.Count,
			P50MS:            summary.Median,
			MeanMS:           summary.Mean,
			StdevMS:          summary.Stdev,
			ErrorTracesFound: errorsFound,
		},
		Baseline: baseline,
		Anomaly:  anomaly,
		Validation: model.ExemplarValidation{
			BaselineValid:           baseline.DurationMS > 0 && !baseline.HasError,
			AnomalyValid:            anomaly.DurationMS > 0,
			SampleAdequate:          len(pool) >= opts.MinSampleSize,
			LatencyVarianceDetected: summary.Stdev > 0,
		},
		SelectionMethod: method,
	}, nil
}

// gather merges the recent, slow, and (optionally) error pools by
// trace id, keeping the first occurrence of each id. Error-pool
// members are force-tagged as erroneous on insert.
func (s *Selector) gather(ctx context.Context, opts SelectOptions) ([]model.TraceSummary, error) {
	recent, err := s.source.RecentTraces(ctx, opts.PoolLimit)
	if err != nil {
		return nil, fmt.Errorf("recent trace pool: %w", err)
	}
	slow, err := s.source.SlowTraces(ctx, slowPoolFloorMS, opts.PoolLimit)
	if err != nil {
		return nil, fmt.Errorf("slow trace pool: %w", err)
	}

	seen := make(map[string]struct{})
	pool := make([]model.TraceSummary, 0, len(recent)+len(slow))
	add := func(c model.TraceSummary) {
		if _, dup := seen[c.TraceID]; dup {
			return
		}
		seen[c.TraceID] = struct{}{}
		pool = append(pool, c)
	}

	for _, c := range recent {
		add(c)
	}
	for _, c := range slow {
		add(c)
	}

	if opts.PreferErrors {
		errTraces, err := s.source.ErrorTraces(ctx, opts.PoolLimit)
		if err != nil {
			return nil, fmt.Errorf("error trace pool: %w", err)
		}
		for _, c := range errTraces {
			c.HasError = true
			add(c)
		}
	}

	return pool, nil
}

// pickAnomaly returns the highest-scoring candidate. Ties keep the
// earliest pool entry, which makes selection order-stable.
func pickAnomaly(pool []model.TraceSummary, summary *stats.Summary) model.ExemplarTrace {
	best := 0
	bestScore := math.Inf(-1)
	for i, c := range pool {
		score := Score(c.DurationMS, summary.Mean, summary.Stdev, c.HasError)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return model.ExemplarTrace{
		TraceSummary:    pool[best],
		SelectionReason: fmt.Sprintf("highest composite anomaly score (%.2f)", bestScore),
	}
}

// pickBaseline returns the error-free candidate closest to the pool
// median, falling back to any candidate when every trace errored.
func pickBaseline(pool []model.TraceSummary, median float64) model.ExemplarTrace {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range pool {
		if c.HasError {
			continue
		}
		if d := math.Abs(c.DurationMS - median); d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		for i, c := range pool {
			if d := math.Abs(c.DurationMS - median); d < bestDist {
				best = i
				bestDist = d
			}
		}
	}
	return model.ExemplarTrace{
		TraceSummary:    pool[best],
		SelectionReason: "closest to median duration",
	}
}

// refineBaseline looks for traces sharing the anomaly's root operation
// name that ran at least 20% faster, and picks the middle of that
// subset sorted by duration. Returns false when no such trace exists
// or the anomaly has no name.
func (s *Selector) refineBaseline(ctx context.Context, anomaly model.TraceSummary, limit int) (model.ExemplarTrace, bool) {
	if anomaly.Name == "" {
		return model.ExemplarTrace{}, false
	}

	sameRoot, err := s.source.TracesByRootName(ctx, anomaly.Name, limit)
	if err != nil {
		// Refinement is best-effort; the pool baseline stands.
		return model.ExemplarTrace{}, false
	}

	faster := make([]model.TraceSummary, 0, len(sameRoot))
	for _, c := range sameRoot {
		if c.DurationMS > 0 && c.DurationMS < anomaly.DurationMS*refinementFactor {
			faster = append(faster, c)
		}
	}
	if len(faster) == 0 {
		return model.ExemplarTrace{}, false
	}

	sort.Slice(faster, func(i, j int) bool { return faster[i].DurationMS < faster[j].DurationMS })
	return model.ExemplarTrace{
		TraceSummary:    faster[len(faster)/2],
		SelectionReason: "same root span, ≥20% faster",
	}, true
}
