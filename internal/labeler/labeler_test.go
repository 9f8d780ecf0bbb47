package labeler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MikeSquared-Agency/Habitat/internal/hermes"
	"github.com/MikeSquared-Agency/Habitat/internal/layout"
	"github.com/MikeSquared-Agency/Habitat/internal/metrics"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

// --- Mock store ---

type mockStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*store.ScoreRecord
	failOn  string
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[uuid.UUID]*store.ScoreRecord)}
}

func (m *mockStore) SaveScore(_ context.Context, r *store.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && r.HabitatID == m.failOn {
		return errors.New("disk full")
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.records[r.ID] = r
	return nil
}
func (m *mockStore) SaveScores(_ context.Context, records []*store.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if m.failOn != "" && r.HabitatID == m.failOn {
			return errors.New("disk full")
		}
	}
	for _, r := range records {
		r.ID = uuid.New()
		r.CreatedAt = time.Now()
		m.records[r.ID] = r
	}
	return nil
}
func (m *mockStore) GetScore(_ context.Context, id uuid.UUID) (*store.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id], nil
}
func (m *mockStore) ListScores(_ context.Context, _ store.ScoreFilter) ([]*store.ScoreRecord, error) {
	return nil, nil
}
func (m *mockStore) SetExpertRating(_ context.Context, _ uuid.UUID, _ float64) (*store.ScoreRecord, error) {
	return nil, nil
}
func (m *mockStore) GetStats(_ context.Context) (*store.ScoreStats, error) { return &store.ScoreStats{}, nil }
func (m *mockStore) Close() error                                          { return nil }

// --- Mock hermes ---

type published struct {
	subject string
	data    interface{}
}

type mockHermes struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]func(string, []byte)
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{subject, data})
	return nil
}
func (m *mockHermes) Subscribe(subject string, h func(string, []byte)) error {
	if m.handlers == nil {
		m.handlers = map[string]func(string, []byte){}
	}
	m.handlers[subject] = h
	return nil
}
func (m *mockHermes) Close() {}

func (m *mockHermes) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.published))
	for _, p := range m.published {
		out = append(out, p.subject)
	}
	return out
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	e, err := scoring.NewEngine(scoring.DefaultParams(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func completeDocument(id string, crew int) layout.Document {
	doc := layout.Document{
		Layout:  layout.Layout{ID: id},
		Context: layout.MissionContext{CrewSize: crew, StructuralMaterial: "Inflatable", RadiationResistance: 7},
	}
	for i, t := range layout.AllModuleTypes() {
		doc.Layout.Cells = append(doc.Layout.Cells, layout.Cell{
			X: 2 + 4*i, Y: 10, Type: t,
			Props: layout.Props{Mass: 800, Cleanliness: 0.5, Permanence: 1},
		})
	}
	for k := 1; k < crew; k++ {
		doc.Layout.Cells = append(doc.Layout.Cells, layout.Cell{
			X: 2 + 4*k, Y: 20, Type: layout.Private,
			Props: layout.Props{Mass: 400, Cleanliness: 1, Permanence: 1},
		})
	}
	return doc
}

func TestLabelBatchPreservesOrder(t *testing.T) {
	ms := newMockStore()
	mh := &mockHermes{}
	l := New(testEngine(t), ms, mh, nil, 4, discardLogger())

	docs := make([]layout.Document, 25)
	for i := range docs {
		// Alternate vetoed and feasible documents so work items differ in cost.
		crew := 1 + i%3
		docs[i] = completeDocument(fmt.Sprintf("habitat_%d", i+1), crew)
		if i%2 == 1 {
			docs[i].Context.CrewSize = 8
		}
	}

	results, err := l.LabelBatch(context.Background(), docs, true)
	if err != nil {
		t.Fatalf("LabelBatch: %v", err)
	}
	if len(results) != len(docs) {
		t.Fatalf("expected %d results, got %d", len(docs), len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d carries index %d", i, r.Index)
		}
		if r.Vector.HabitatID != docs[i].Layout.ID {
			t.Errorf("result %d is %s, want %s", i, r.Vector.HabitatID, docs[i].Layout.ID)
		}
		if r.Vector.Vetoed != (i%2 == 1) {
			t.Errorf("result %d vetoed=%v", i, r.Vector.Vetoed)
		}
		if r.Vector.Aggregate == nil {
			t.Errorf("result %d missing aggregate", i)
		}
		if r.RecordID == nil {
			t.Errorf("result %d not persisted", i)
		}
	}
	if len(ms.records) != len(docs) {
		t.Errorf("expected %d stored rows, got %d", len(docs), len(ms.records))
	}
	if len(mh.subjects()) != len(docs) {
		t.Errorf("expected one event per document, got %d", len(mh.subjects()))
	}
}

func TestLabelBatchMatchesSequential(t *testing.T) {
	e := testEngine(t)
	docs := []layout.Document{completeDocument("a", 1), completeDocument("b", 2), completeDocument("c", 3)}

	parallel, err := New(e, nil, nil, nil, 3, discardLogger()).LabelBatch(context.Background(), docs, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := range docs {
		want, err := e.Score(&docs[i].Layout, docs[i].Context)
		if err != nil {
			t.Fatal(err)
		}
		got := parallel[i].Vector
		if got.HabitatID != want.HabitatID || len(got.Factors) != len(want.Factors) {
			t.Fatalf("document %d differs", i)
		}
		for j := range want.Factors {
			if got.Factors[j] != want.Factors[j] {
				t.Errorf("document %d factor %s: %+v vs %+v", i, want.Factors[j].Name, got.Factors[j], want.Factors[j])
			}
		}
	}
}

func TestLabelBatchFailsOnInvalidDocument(t *testing.T) {
	l := New(testEngine(t), nil, nil, nil, 2, discardLogger())

	docs := []layout.Document{completeDocument("ok", 1), completeDocument("bad", 1)}
	docs[1].Layout.Cells[0].X = 500

	_, err := l.LabelBatch(context.Background(), docs, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, layout.ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}
	if !strings.Contains(err.Error(), "document 1 (bad)") {
		t.Errorf("error should name the document: %v", err)
	}
}

func TestLabelBatchInvalidDocumentStoresNothing(t *testing.T) {
	ms := newMockStore()
	mh := &mockHermes{}
	l := New(testEngine(t), ms, mh, nil, 2, discardLogger())

	docs := []layout.Document{completeDocument("good", 1), completeDocument("bad", 1)}
	// Second cell stacked on the first tile.
	docs[1].Layout.Cells[1].X = docs[1].Layout.Cells[0].X
	docs[1].Layout.Cells[1].Y = docs[1].Layout.Cells[0].Y

	if _, err := l.LabelBatch(context.Background(), docs, false); !errors.Is(err, layout.ErrInvalidLayout) {
		t.Fatalf("expected ErrInvalidLayout, got %v", err)
	}
	if len(ms.records) != 0 {
		t.Errorf("a rejected batch must not leave rows behind, have %d", len(ms.records))
	}
	got := mh.subjects()
	if len(got) != 1 || got[0] != hermes.SubjectLayoutRejected("bad") {
		t.Errorf("expected only the rejection to be announced, got %v", got)
	}
	if stats := l.Stats(); stats.Scored != 0 || stats.Rejected != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestLabelBatchStoreFailureAnnouncesNothing(t *testing.T) {
	ms := newMockStore()
	ms.failOn = "b"
	mh := &mockHermes{}
	l := New(testEngine(t), ms, mh, nil, 2, discardLogger())

	docs := []layout.Document{completeDocument("a", 1), completeDocument("b", 1), completeDocument("c", 1)}
	_, err := l.LabelBatch(context.Background(), docs, true)
	if err == nil || !strings.Contains(err.Error(), "save batch") {
		t.Fatalf("expected save batch error, got %v", err)
	}
	if len(ms.records) != 0 {
		t.Errorf("expected no stored rows, got %d", len(ms.records))
	}
	if len(mh.subjects()) != 0 {
		t.Errorf("unsaved rows must not be announced, got %v", mh.subjects())
	}
	if stats := l.Stats(); stats.Scored != 0 || stats.Vetoed != 0 {
		t.Errorf("unsaved rows must not be counted, got %+v", stats)
	}
}

func TestLabelBatchCancelled(t *testing.T) {
	l := New(testEngine(t), nil, nil, nil, 1, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.LabelBatch(ctx, []layout.Document{completeDocument("a", 1)}, false)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScoreAndRecordEvents(t *testing.T) {
	ms := newMockStore()
	mh := &mockHermes{}
	m := metrics.New(prometheus.NewRegistry())
	l := New(testEngine(t), ms, mh, m, 1, discardLogger())
	ctx := context.Background()

	doc := completeDocument("good", 2)
	res, err := l.ScoreAndRecord(ctx, &doc, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordID == nil || ms.records[*res.RecordID] == nil {
		t.Fatal("expected stored record")
	}
	if ms.records[*res.RecordID].Variant != store.VariantWeighted {
		t.Errorf("expected weighted variant, got %s", ms.records[*res.RecordID].Variant)
	}

	vetoed := completeDocument("crowded", 1)
	vetoed.Context.CrewSize = 5
	if _, err := l.ScoreAndRecord(ctx, &vetoed, false); err != nil {
		t.Fatalf("veto must not be an error: %v", err)
	}

	broken := completeDocument("broken", 1)
	broken.Context.CrewSize = 0
	if _, err := l.ScoreAndRecord(ctx, &broken, false); err == nil {
		t.Fatal("expected validation error")
	}

	want := []string{
		hermes.SubjectLayoutScored("good"),
		hermes.SubjectLayoutVetoed("crowded"),
		hermes.SubjectLayoutRejected("broken"),
	}
	got := mh.subjects()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	vetoEvt := mh.published[1].data.(hermes.LayoutScoredEvent)
	if !vetoEvt.Vetoed || !strings.Contains(vetoEvt.Reason, "private quarters 1 < crew 5") {
		t.Errorf("unexpected veto event %+v", vetoEvt)
	}
	if vetoEvt.RecordID == "" {
		t.Error("veto event should reference the stored row")
	}

	stats := l.Stats()
	if stats.Scored != 1 || stats.Vetoed != 1 || stats.Rejected != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if v := testutil.ToFloat64(m.LayoutsTotal.WithLabelValues(metrics.OutcomeRejected)); v != 1 {
		t.Errorf("expected 1 rejected in metrics, got %v", v)
	}
}

func TestScoreAndRecordStoreFailure(t *testing.T) {
	ms := newMockStore()
	ms.failOn = "doomed"
	mh := &mockHermes{}
	l := New(testEngine(t), ms, mh, nil, 1, discardLogger())

	doc := completeDocument("doomed", 1)
	if _, err := l.ScoreAndRecord(context.Background(), &doc, false); err == nil {
		t.Fatal("expected store error")
	}
	if len(mh.subjects()) != 0 {
		t.Errorf("nothing should be announced for an unsaved row, got %v", mh.subjects())
	}
}

func TestSubscriptionHandlesRequests(t *testing.T) {
	mh := &mockHermes{}
	l := New(testEngine(t), nil, mh, nil, 1, discardLogger())
	if err := l.SetupSubscriptions(); err != nil {
		t.Fatal(err)
	}
	handler := mh.handlers[hermes.SubjectLayoutRequest]
	if handler == nil {
		t.Fatal("expected subscription on layout request subject")
	}

	doc := completeDocument("via-bus", 1)
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	payload, _ := json.Marshal(hermes.LayoutRequestEvent{Document: raw, Weighted: true, Source: "test"})
	handler(hermes.SubjectLayoutRequest, payload)

	handler(hermes.SubjectLayoutRequest, []byte(`not json`))
	handler(hermes.SubjectLayoutRequest, []byte(`{"document":{"layout":{"cells":[{"x":1,"y":1,"type":"FOOD","props":{"cleanliness":1}}]}}}`))

	got := mh.subjects()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %v", got)
	}
	if got[0] != hermes.SubjectLayoutScored("via-bus") {
		t.Errorf("expected scored event, got %s", got[0])
	}
	scored := mh.published[0].data.(hermes.LayoutScoredEvent)
	if scored.Aggregate == nil {
		t.Error("weighted request should carry an aggregate")
	}
	for _, s := range got[1:] {
		if !strings.HasSuffix(s, ".rejected") {
			t.Errorf("expected rejection, got %s", s)
		}
	}
	if l.Stats().Rejected != 2 {
		t.Errorf("expected 2 rejections, got %d", l.Stats().Rejected)
	}
}

func TestStatsLoopPublishes(t *testing.T) {
	mh := &mockHermes{}
	l := New(testEngine(t), nil, mh, nil, 1, discardLogger())
	l.Start(context.Background(), 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(mh.subjects()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	l.Stop()

	got := mh.subjects()
	if len(got) == 0 || got[0] != hermes.SubjectLabelerStats {
		t.Errorf("expected stats event, got %v", got)
	}
}

func TestNoBusIsFine(t *testing.T) {
	l := New(testEngine(t), nil, nil, nil, 0, nil)
	if err := l.SetupSubscriptions(); err != nil {
		t.Fatal(err)
	}
	l.Start(context.Background(), time.Millisecond)
	l.Stop()

	doc := completeDocument("solo", 1)
	res, err := l.ScoreAndRecord(context.Background(), &doc, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordID != nil {
		t.Error("no store means no record id")
	}
}
