package labeler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Habitat/internal/hermes"
	"github.com/MikeSquared-Agency/Habitat/internal/layout"
	"github.com/MikeSquared-Agency/Habitat/internal/metrics"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

// Result is one labeled document.
type Result struct {
	Index    int                 `json:"index"`
	Vector   scoring.ScoreVector `json:"scores"`
	RecordID *uuid.UUID          `json:"record_id,omitempty"`
	Document *layout.Document    `json:"-"`
}

// Labeler feeds documents through the engine, persists rows when a store is
// configured and announces outcomes on the bus when a client is configured.
// Store, bus and metrics are all optional.
type Labeler struct {
	engine  *scoring.Engine
	store   store.Store
	hermes  hermes.Client
	metrics *metrics.Metrics
	workers int
	logger  *slog.Logger

	statsMu  sync.Mutex
	scored   int
	vetoed   int
	rejected int
	totalDur time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(e *scoring.Engine, s store.Store, h hermes.Client, m *metrics.Metrics, workers int, logger *slog.Logger) *Labeler {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Labeler{
		engine:  e,
		store:   s,
		hermes:  h,
		metrics: m,
		workers: workers,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Score runs the engine without persisting or publishing.
func (l *Labeler) Score(doc *layout.Document, weighted bool) (scoring.ScoreVector, error) {
	if doc == nil {
		return scoring.ScoreVector{}, &layout.ValidationError{Problems: []string{"nil document"}}
	}
	if weighted {
		return l.engine.ScoreWeighted(&doc.Layout, doc.Context)
	}
	return l.engine.Score(&doc.Layout, doc.Context)
}

// ScoreAndRecord scores doc, stores the row and publishes the outcome. A rejected
// document is announced on the bus and returned as an error; a veto is not an error.
func (l *Labeler) ScoreAndRecord(ctx context.Context, doc *layout.Document, weighted bool) (*Result, error) {
	start := time.Now()
	v, err := l.Score(doc, weighted)
	elapsed := time.Since(start)
	if err != nil {
		l.reject(doc, elapsed, err)
		return nil, err
	}

	res := &Result{Vector: v, Document: doc}
	if l.store != nil {
		rec, err := store.NewScoreRecord(doc, v)
		if err != nil {
			return nil, fmt.Errorf("build record for %s: %w", v.HabitatID, err)
		}
		if err := l.store.SaveScore(ctx, rec); err != nil {
			return nil, fmt.Errorf("save score for %s: %w", v.HabitatID, err)
		}
		id := rec.ID
		res.RecordID = &id
	}

	l.announce(res, elapsed)
	return res, nil
}

// LabelBatch scores docs on up to workers goroutines. Results are in input order.
// Nothing is persisted or announced as scored until every document has scored;
// the rows are then stored in one all-or-nothing write. The first failure
// cancels the remaining work and is returned with its index.
func (l *Labeler) LabelBatch(ctx context.Context, docs []layout.Document, weighted bool) ([]Result, error) {
	l.metrics.ObserveBatch(len(docs))
	results := make([]Result, len(docs))
	elapsed := make([]time.Duration, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			v, err := l.Score(&docs[i], weighted)
			elapsed[i] = time.Since(start)
			if err != nil {
				l.reject(&docs[i], elapsed[i], err)
				return fmt.Errorf("document %d (%s): %w", i, docs[i].Layout.ID, err)
			}
			results[i] = Result{Index: i, Vector: v, Document: &docs[i]}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if l.store != nil {
		records := make([]*store.ScoreRecord, len(results))
		for i := range results {
			rec, err := store.NewScoreRecord(results[i].Document, results[i].Vector)
			if err != nil {
				return nil, fmt.Errorf("document %d (%s): build record: %w", i, results[i].Vector.HabitatID, err)
			}
			records[i] = rec
		}
		if err := l.store.SaveScores(ctx, records); err != nil {
			return nil, fmt.Errorf("save batch of %d: %w", len(records), err)
		}
		for i, rec := range records {
			id := rec.ID
			results[i].RecordID = &id
		}
	}

	for i := range results {
		l.announce(&results[i], elapsed[i])
	}

	l.logger.Info("batch labeled", "count", len(docs), "workers", l.workers, "weighted", weighted)
	return results, nil
}

// announce counts a stored result and publishes it as scored or vetoed.
func (l *Labeler) announce(res *Result, elapsed time.Duration) {
	v := res.Vector
	evt := hermes.LayoutScoredEvent{
		HabitatID: v.HabitatID,
		Vetoed:    v.Vetoed,
		Scores:    v.Record(),
		Aggregate: v.Aggregate,
	}
	if res.RecordID != nil {
		evt.RecordID = res.RecordID.String()
	}
	if v.Vetoed {
		evt.Reason = v.Factors[0].Reason
		l.record(metrics.OutcomeVetoed, elapsed, nil)
		l.publish(hermes.SubjectLayoutVetoed(v.HabitatID), evt)
	} else {
		l.record(metrics.OutcomeScored, elapsed, v.Aggregate)
		l.publish(hermes.SubjectLayoutScored(v.HabitatID), evt)
	}
	l.logger.Debug("layout labeled", "habitat_id", v.HabitatID, "vetoed", v.Vetoed, "duration_ms", elapsed.Milliseconds())
}

func (l *Labeler) reject(doc *layout.Document, elapsed time.Duration, err error) {
	habitatID := ""
	if doc != nil {
		habitatID = doc.Layout.ID
	}
	l.record(metrics.OutcomeRejected, elapsed, nil)
	l.publish(hermes.SubjectLayoutRejected(habitatID), hermes.LayoutRejectedEvent{HabitatID: habitatID, Error: err.Error()})
}

// SetupSubscriptions listens for scoring requests on the bus.
func (l *Labeler) SetupSubscriptions() error {
	if l.hermes == nil {
		return nil
	}
	return l.hermes.Subscribe(hermes.SubjectLayoutRequest, func(_ string, data []byte) {
		l.handleRequest(context.Background(), data)
	})
}

func (l *Labeler) handleRequest(ctx context.Context, data []byte) {
	var req hermes.LayoutRequestEvent
	if err := json.Unmarshal(data, &req); err != nil {
		l.logger.Warn("invalid layout request event", "error", err)
		l.record(metrics.OutcomeRejected, 0, nil)
		l.publish(hermes.SubjectLayoutRejected(""), hermes.LayoutRejectedEvent{Error: err.Error()})
		return
	}
	doc, err := layout.DecodeDocument(req.Document)
	if err != nil {
		l.logger.Warn("rejected layout request", "source", req.Source, "error", err)
		l.record(metrics.OutcomeRejected, 0, nil)
		l.publish(hermes.SubjectLayoutRejected(""), hermes.LayoutRejectedEvent{Error: err.Error()})
		return
	}
	if _, err := l.ScoreAndRecord(ctx, doc, req.Weighted); err != nil {
		level := slog.LevelError
		if errors.Is(err, layout.ErrInvalidLayout) {
			level = slog.LevelWarn
		}
		l.logger.Log(ctx, level, "layout request failed", "habitat_id", doc.Layout.ID, "source", req.Source, "error", err)
	}
}

// Start publishes labeling statistics every interval until Stop or ctx ends.
func (l *Labeler) Start(ctx context.Context, interval time.Duration) {
	if l.hermes == nil || interval <= 0 {
		return
	}
	l.wg.Add(1)
	go l.statsLoop(ctx, interval)
}

func (l *Labeler) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.wg.Wait()
}

func (l *Labeler) statsLoop(ctx context.Context, interval time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.publish(hermes.SubjectLabelerStats, l.Stats())
		}
	}
}

// Stats reports counts since start.
func (l *Labeler) Stats() hermes.StatsEvent {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	evt := hermes.StatsEvent{
		Scored:    l.scored,
		Vetoed:    l.vetoed,
		Rejected:  l.rejected,
		Timestamp: time.Now().UTC(),
	}
	if n := l.scored + l.vetoed; n > 0 {
		evt.AvgMs = float64(l.totalDur.Microseconds()) / 1000 / float64(n)
	}
	return evt
}

func (l *Labeler) record(outcome string, elapsed time.Duration, aggregate *float64) {
	l.metrics.ObserveScore(outcome, elapsed, aggregate)

	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	switch outcome {
	case metrics.OutcomeScored:
		l.scored++
		l.totalDur += elapsed
	case metrics.OutcomeVetoed:
		l.vetoed++
		l.totalDur += elapsed
	case metrics.OutcomeRejected:
		l.rejected++
	}
}

func (l *Labeler) publish(subject string, data interface{}) {
	if l.hermes == nil {
		return
	}
	if err := l.hermes.Publish(subject, data); err != nil {
		l.metrics.PublishFailed()
		l.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}
