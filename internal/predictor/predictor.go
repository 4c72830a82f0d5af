package predictor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/salescast/salescast/internal/artifact"
	"github.com/salescast/salescast/internal/contracts"
	"github.com/salescast/salescast/internal/features"
)

// Request is one requested forecast row: an entity and period, optionally
// with partial exogenous data and event flags.
type Request struct {
	Entity     contracts.EntityKey
	Date       time.Time
	Exogenous  map[string]float64
	EventFlags map[string]int
}

// Predictor reconstructs feature vectors from the frozen artifact and applies
// the selected model. Entities fan out over a bounded worker pool; the only
// state shared between workers is the artifact, which is read-only after
// load, so no locking is needed.
type Predictor struct {
	bundle  *artifact.Bundle
	builder *features.Builder
	workers int
	strict  bool
	log     zerolog.Logger
}

// New creates a predictor over a loaded artifact. strict aborts the whole
// batch on the first row failure instead of collecting row errors.
func New(bundle *artifact.Bundle, workers int, strict bool, log zerolog.Logger) (*Predictor, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	builder := features.NewBuilder(bundle.Encoder, bundle.Means, bundle.ExogColumns, bundle.FlagColumns, log)
	if !builder.Schema().Equal(bundle.Schema) {
		return nil, &contracts.ArtifactConsistencyError{Detail: "rebuilt feature schema differs from artifact schema"}
	}

	return &Predictor{
		bundle:  bundle,
		builder: builder,
		workers: workers,
		strict:  strict,
		log:     log.With().Str("component", "predictor").Logger(),
	}, nil
}

// Predict scores a batch of requests. Requests for the same entity are
// processed in ascending date order regardless of input order, because later
// periods feed on earlier predicted volumes (chained lags). Row failures are
// collected per (entity, date) and never block independent entities.
func (p *Predictor) Predict(ctx context.Context, reqs []Request) ([]contracts.PredictionResult, []contracts.RowError, error) {
	groups := make(map[contracts.EntityKey][]Request)
	for _, r := range reqs {
		r.Date = contracts.Period(r.Date)
		groups[r.Entity] = append(groups[r.Entity], r)
	}

	entities := make([]contracts.EntityKey, 0, len(groups))
	for entity, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })
		entities = append(entities, entity)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Less(entities[j]) })

	perEntityResults := make([][]contracts.PredictionResult, len(entities))
	perEntityErrors := make([][]contracts.RowError, len(entities))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, entity := range entities {
		i, entity := i, entity
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			results, rowErrs := p.predictEntity(entity, groups[entity])
			perEntityResults[i] = results
			perEntityErrors[i] = rowErrs

			if p.strict && len(rowErrs) > 0 {
				return fmt.Errorf("strict mode: %w", rowErrs[0])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var results []contracts.PredictionResult
	var rowErrors []contracts.RowError
	for i := range entities {
		results = append(results, perEntityResults[i]...)
		rowErrors = append(rowErrors, perEntityErrors[i]...)
	}

	p.log.Info().
		Int("requested", len(reqs)).
		Int("predicted", len(results)).
		Int("failed", len(rowErrors)).
		Msg("batch prediction completed")

	return results, rowErrors, nil
}

// predictEntity folds over one entity's requested dates in order, carrying a
// working series forward. The series starts from the frozen history snapshot;
// every successful prediction is appended so the next period's lag_1 reads
// the model's own output, not stale history.
func (p *Predictor) predictEntity(entity contracts.EntityKey, reqs []Request) ([]contracts.PredictionResult, []contracts.RowError) {
	last := reqs[len(reqs)-1].Date
	seed := p.bundle.History.Lookup(entity, contracts.AddPeriods(last, 1))

	window := make([]features.HistoryPoint, len(seed))
	copy(window, seed)

	var results []contracts.PredictionResult
	var rowErrs []contracts.RowError

	for _, req := range reqs {
		row, err := p.builder.FeaturesAt(entity, req.Date, pointsBefore(window, req.Date), req.Exogenous, req.EventFlags)
		if err != nil {
			rowErrs = append(rowErrs, rowError(req, err))
			continue
		}

		yhat, err := p.bundle.Model.Predict(row.Values)
		if err != nil {
			rowErrs = append(rowErrs, rowError(req, err))
			continue
		}

		results = append(results, contracts.PredictionResult{
			Entity:          entity,
			Date:            req.Date,
			PredictedVolume: yhat,
			Degraded:        row.Degraded(),
		})
		window = insertPoint(window, features.HistoryPoint{
			Date:      req.Date,
			Volume:    yhat,
			Exogenous: req.Exogenous,
		})
	}

	return results, rowErrs
}

// rowError classifies a failure for the structured report.
func rowError(req Request, err error) contracts.RowError {
	reason := contracts.ReasonPredictionFailed

	var unknownCat *contracts.UnknownCategoryError
	var missingExog *contracts.MissingExogenousError
	switch {
	case errors.As(err, &unknownCat):
		reason = contracts.ReasonUnknownCategory
	case errors.As(err, &missingExog):
		if missingExog.IsColdStart() {
			reason = contracts.ReasonColdStart
		} else {
			reason = contracts.ReasonMissingExogenous
		}
	}

	return contracts.RowError{
		Entity: req.Entity,
		Date:   req.Date,
		Reason: reason,
		Err:    err,
	}
}

// pointsBefore returns the prefix of the ascending window strictly before d.
func pointsBefore(points []features.HistoryPoint, d time.Time) []features.HistoryPoint {
	cut := sort.Search(len(points), func(i int) bool { return !points[i].Date.Before(d) })
	return points[:cut]
}

// insertPoint keeps the window sorted and prefers an existing point (an
// observed value from history) over a new prediction for the same period.
func insertPoint(points []features.HistoryPoint, p features.HistoryPoint) []features.HistoryPoint {
	pos := sort.Search(len(points), func(i int) bool { return !points[i].Date.Before(p.Date) })
	if pos < len(points) && points[pos].Date.Equal(p.Date) {
		return points
	}
	points = append(points, features.HistoryPoint{})
	copy(points[pos+1:], points[pos:])
	points[pos] = p
	return points
}
