// Package evaluation scores a recommender against the references declared in
// a labeled dataset.
//
// An Evaluator loads one dataset at construction and keeps it immutable. Each
// Evaluate call asks the recommender for every record, keeps the first limit
// recommendations and scores the record as
//
//	|recommended ∩ references| / min(|references|, limit)
//
// Records without references get no score and do not count towards the mean.
// An Evaluator is not safe for concurrent use.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/refeval/internal/adapters/dataset"
	"github.com/okian/refeval/internal/domain/recommend"
	"github.com/okian/refeval/internal/domain/record"
	"github.com/okian/refeval/pkg/logger"
	"github.com/okian/refeval/pkg/metrics"
)

// DefaultLimit is the number of leading recommendations considered per record
// when the caller has no preference.
const DefaultLimit = 10

const (
	nanosecondsPerMillisecond = 1e6
	predictedSizeHint         = 64
)

// Evaluator holds a loaded dataset and the scores of the latest run.
type Evaluator struct {
	name    string
	source  dataset.Source
	logger  logger.Logger
	metrics *metrics.Manager

	order      []string
	records    map[string]record.Record
	references map[string]record.ReferenceSet
	scores     map[string]float64
}

// New loads the named dataset. Loading is all-or-nothing: a missing file, a
// malformed line or a record without control_number fails the whole call.
func New(ctx context.Context, name string, opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		name:       name,
		source:     dataset.NewFileSource(dataset.DefaultDir),
		logger:     logger.NewNop(),
		metrics:    metrics.Default(),
		records:    make(map[string]record.Record),
		references: make(map[string]record.ReferenceSet),
		scores:     make(map[string]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidDataset)
	}
	if err := e.load(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Evaluator) load(ctx context.Context) error {
	start := time.Now()
	path := e.source.Path(e.name)

	rc, err := e.source.Open(ctx, e.name)
	if err != nil {
		return fmt.Errorf("load dataset %q: %w", e.name, err)
	}
	defer rc.Close()

	skippedRefs := 0
	err = dataset.ReadLines(ctx, rc, func(lineNo int, line []byte) error {
		rec, err := record.Parse(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		refs, skipped := rec.References()
		skippedRefs += skipped

		if _, dup := e.records[rec.ID]; dup {
			e.logger.Warn(ctx, "duplicate control_number, keeping the later record",
				logger.String("dataset", e.name),
				logger.String("id", rec.ID),
				logger.Int("line", lineNo),
			)
		} else {
			e.order = append(e.order, rec.ID)
		}
		e.records[rec.ID] = rec
		e.references[rec.ID] = refs
		return nil
	})
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", path, err)
	}

	elapsed := time.Since(start)
	e.metrics.RecordDatasetLoaded(len(e.order), skippedRefs, float64(elapsed.Nanoseconds())/nanosecondsPerMillisecond)
	e.logger.Info(ctx, "dataset loaded",
		logger.String("dataset", e.name),
		logger.String("path", path),
		logger.Int("records", len(e.order)),
		logger.Int("evaluable", e.Evaluable()),
		logger.Int("skipped_reference_entries", skippedRefs),
		logger.Duration("duration", elapsed),
	)
	return nil
}

// Evaluate runs r over every record and returns the mean score of the records
// that have references. The score table is cleared first, so after the call it
// only holds scores from this run.
//
// limit must be positive. Errors from r stop the run and are returned wrapped
// with ErrRecommender and the record ID.
func (e *Evaluator) Evaluate(ctx context.Context, r recommend.Recommender, limit int) (float64, error) {
	start := time.Now()
	runID := uuid.NewString()
	clear(e.scores)

	finish := func(outcome string, score float64) {
		e.metrics.RecordEvaluation(outcome, score, float64(time.Since(start).Nanoseconds())/nanosecondsPerMillisecond)
	}

	if limit <= 0 {
		finish(metrics.OutcomeInvalidInput, 0)
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if isNil(r) {
		finish(metrics.OutcomeInvalidInput, 0)
		return 0, fmt.Errorf("%w: nil recommender", ErrRecommender)
	}

	unscored := 0
	for _, id := range e.order {
		if err := ctx.Err(); err != nil {
			finish(metrics.OutcomeCancelled, 0)
			return 0, fmt.Errorf("evaluation %s cancelled: %w", runID, err)
		}
		score, scored, err := e.scoreRecord(ctx, r, e.records[id], limit)
		if err != nil {
			e.metrics.RecordRecommenderError()
			outcome := metrics.OutcomeRecommender
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				outcome = metrics.OutcomeCancelled
			}
			finish(outcome, 0)
			e.logger.Error(ctx, "recommender failed",
				logger.String("run_id", runID),
				logger.String("id", id),
				logger.Error(err),
			)
			return 0, fmt.Errorf("%w on record %s: %w", ErrRecommender, id, err)
		}
		if !scored {
			unscored++
			e.metrics.RecordUnscored()
			continue
		}
		e.scores[id] = score
		e.metrics.RecordScore(score)
		e.logger.Debug(ctx, "record scored",
			logger.String("run_id", runID),
			logger.String("id", id),
			logger.Float64("score", score),
		)
	}

	if len(e.scores) == 0 {
		finish(metrics.OutcomeNoEvaluable, 0)
		return 0, fmt.Errorf("%w: dataset %q has %d records", ErrNoEvaluableRecords, e.name, len(e.order))
	}

	mean := e.mean()
	finish(metrics.OutcomeSuccess, mean)
	e.logger.Info(ctx, "evaluation finished",
		logger.String("run_id", runID),
		logger.String("dataset", e.name),
		logger.Int("limit", limit),
		logger.Int("scored", len(e.scores)),
		logger.Int("unscored", unscored),
		logger.Float64("score", mean),
		logger.Duration("duration", time.Since(start)),
	)
	return mean, nil
}

// scoreRecord asks r for rec and scores the first limit recommendations.
// scored is false when rec has no references.
func (e *Evaluator) scoreRecord(ctx context.Context, r recommend.Recommender, rec record.Record, limit int) (score float64, scored bool, err error) {
	start := time.Now()
	seq, err := r.Recommend(ctx, rec)
	if err != nil {
		return 0, false, err
	}
	predicted := make(record.ReferenceSet, min(limit, predictedSizeHint))
	for _, id := range recommend.Take(seq, limit) {
		predicted.Add(id)
	}
	e.metrics.RecordRecommenderLatency(float64(time.Since(start).Nanoseconds()) / nanosecondsPerMillisecond)

	refs := e.references[rec.ID]
	if refs.Len() == 0 {
		return 0, false, nil
	}
	k := min(refs.Len(), limit)
	return float64(refs.Overlap(predicted)) / float64(k), true, nil
}

func isNil(r recommend.Recommender) bool {
	if r == nil {
		return true
	}
	f, ok := r.(recommend.Func)
	return ok && f == nil
}

// mean sums in dataset order so repeated runs give bit-identical results.
func (e *Evaluator) mean() float64 {
	sum := 0.0
	for _, id := range e.order {
		if s, ok := e.scores[id]; ok {
			sum += s
		}
	}
	return sum / float64(len(e.scores))
}

// Name returns the dataset name.
func (e *Evaluator) Name() string { return e.name }

// Len returns the number of records.
func (e *Evaluator) Len() int { return len(e.order) }

// Evaluable returns the number of records with at least one reference.
func (e *Evaluator) Evaluable() int {
	n := 0
	for _, refs := range e.references {
		if refs.Len() > 0 {
			n++
		}
	}
	return n
}

// Record returns the record with the given identifier.
func (e *Evaluator) Record(id string) (record.Record, bool) {
	rec, ok := e.records[id]
	return rec, ok
}

// Records returns all records in dataset order.
func (e *Evaluator) Records() []record.Record {
	out := make([]record.Record, len(e.order))
	for i, id := range e.order {
		out[i] = e.records[id]
	}
	return out
}

// References returns a copy of the reference set of id.
func (e *Evaluator) References(id string) record.ReferenceSet {
	return e.references[id].Clone()
}

// Scores returns a copy of the score table of the latest run.
func (e *Evaluator) Scores() map[string]float64 {
	out := make(map[string]float64, len(e.scores))
	for id, s := range e.scores {
		out[id] = s
	}
	return out
}
