package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Habitat/internal/metrics"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

type MockUploader struct {
	mock.Mock
	body []byte
}

func (m *MockUploader) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	data, _ := io.ReadAll(r)
	m.body = data
	args := m.Called(ctx, key, size)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleVectors() []scoring.ScoreVector {
	agg := 0.5
	scored := scoring.ScoreVector{
		HabitatID: "habitat_1",
		Factors: []scoring.FactorResult{
			{Name: scoring.ScoreChecklist, Score: 0.9},
			{Name: scoring.ScoreMass, Score: 0.25},
		},
		Aggregate: &agg,
	}.WithExpertRating(0.75)
	vetoed := scoring.ScoreVector{HabitatID: "habitat_2", Vetoed: true}
	return []scoring.ScoreVector{scored, vetoed}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(&buf, sampleVectors())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, scoring.Columns(), header)
	assert.Equal(t, "habitatId", header[0])
	assert.Equal(t, "expertRating", header[len(header)-1])

	first := records[1]
	assert.Equal(t, "habitat_1", first[0])
	assert.Equal(t, "0.9", first[1])
	assert.Equal(t, "0.25", first[2])
	assert.Equal(t, "0", first[3], "absent scores export as 0")
	assert.Equal(t, "0.5", first[len(first)-2])
	assert.Equal(t, "0.75", first[len(first)-1])

	second := records[2]
	assert.Equal(t, "habitat_2", second[0])
	assert.Equal(t, "", second[len(second)-1])
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dataset.csv")
	n, err := WriteCSVFile(path, sampleVectors())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "habitat_1")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be cleaned up")
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "datasets/20260304-050607-labels.csv", ObjectKey("datasets", "/tmp/out/labels.csv", now))
	assert.Equal(t, "20260304-050607-labels.csv", ObjectKey("", "labels.csv", now))
}

func TestExporterUploads(t *testing.T) {
	up := new(MockUploader)
	up.On("Upload", mock.Anything, "runs/20260101-000000-out.csv", mock.AnythingOfType("int64")).Return(nil)

	e := NewExporter(up, "runs", nil, discardLogger())
	e.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	file := filepath.Join(t.TempDir(), "out.csv")
	key, err := e.Export(context.Background(), file, sampleVectors())
	require.NoError(t, err)
	assert.Equal(t, "runs/20260101-000000-out.csv", key)
	up.AssertExpectations(t)

	local, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, local, up.body, "uploaded bytes must match the local dataset")
}

func TestExporterUploadFailure(t *testing.T) {
	up := new(MockUploader)
	up.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket gone"))

	e := NewExporter(up, "", nil, discardLogger())
	_, err := e.Export(context.Background(), filepath.Join(t.TempDir(), "out.csv"), sampleVectors())
	assert.ErrorContains(t, err, "bucket gone")
}

func TestExporterLocalOnly(t *testing.T) {
	e := NewExporter(nil, "", nil, discardLogger())
	key, err := e.Export(context.Background(), filepath.Join(t.TempDir(), "out.csv"), sampleVectors())
	require.NoError(t, err)
	assert.Empty(t, key)
}

// pagedLister serves rows in ListScores order and remembers every filter it saw.
type pagedLister struct {
	rows    []*store.ScoreRecord
	filters []store.ScoreFilter
	err     error
}

func (p *pagedLister) ListScores(_ context.Context, f store.ScoreFilter) ([]*store.ScoreRecord, error) {
	p.filters = append(p.filters, f)
	if p.err != nil {
		return nil, p.err
	}
	if f.Offset >= len(p.rows) {
		return nil, nil
	}
	end := min(f.Offset+f.Limit, len(p.rows))
	return p.rows[f.Offset:end], nil
}

func storedRows(n int) []*store.ScoreRecord {
	rows := make([]*store.ScoreRecord, n)
	for i := range rows {
		rating := 0.5
		rows[i] = &store.ScoreRecord{
			HabitatID:    fmt.Sprintf("habitat_%d", i+1),
			Scores:       map[string]float64{scoring.ScoreChecklist: 1, scoring.ScoreMass: 0.25},
			ExpertRating: &rating,
		}
	}
	return rows
}

func TestStoredVectorsPagesThroughEveryRow(t *testing.T) {
	rated := true
	l := &pagedLister{rows: storedRows(2*StorePageSize + 200)}

	vectors, err := StoredVectors(context.Background(), l, store.ScoreFilter{Rated: &rated})
	require.NoError(t, err)
	require.Len(t, vectors, 2*StorePageSize+200)
	assert.Equal(t, "habitat_1", vectors[0].HabitatID)
	assert.Equal(t, "habitat_1200", vectors[len(vectors)-1].HabitatID)
	require.NotNil(t, vectors[0].ExpertRating)
	assert.Equal(t, 0.5, *vectors[0].ExpertRating)

	require.Len(t, l.filters, 3)
	for i, f := range l.filters {
		assert.Equal(t, i*StorePageSize, f.Offset)
		assert.Equal(t, StorePageSize, f.Limit)
		assert.Same(t, &rated, f.Rated, "filter must pass through unchanged")
	}
}

func TestStoredVectorsHonoursLimit(t *testing.T) {
	l := &pagedLister{rows: storedRows(2 * StorePageSize)}

	vectors, err := StoredVectors(context.Background(), l, store.ScoreFilter{Limit: StorePageSize + 100, Offset: 10})
	require.NoError(t, err)
	require.Len(t, vectors, StorePageSize+100)
	assert.Equal(t, "habitat_11", vectors[0].HabitatID)

	require.Len(t, l.filters, 2)
	assert.Equal(t, StorePageSize, l.filters[0].Limit)
	assert.Equal(t, 100, l.filters[1].Limit)
	assert.Equal(t, 10+StorePageSize, l.filters[1].Offset)
}

func TestStoredVectorsExactPage(t *testing.T) {
	l := &pagedLister{rows: storedRows(StorePageSize)}

	vectors, err := StoredVectors(context.Background(), l, store.ScoreFilter{})
	require.NoError(t, err)
	assert.Len(t, vectors, StorePageSize)
	assert.Len(t, l.filters, 2, "a full page needs one more query to find the end")
}

func TestStoredVectorsListError(t *testing.T) {
	l := &pagedLister{err: errors.New("db down")}
	_, err := StoredVectors(context.Background(), l, store.ScoreFilter{})
	assert.ErrorContains(t, err, "db down")
}

func TestExporterCountsRows(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := NewExporter(nil, "", m, discardLogger())

	_, err := e.Export(context.Background(), filepath.Join(t.TempDir(), "out.csv"), sampleVectors())
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExportedRows))
}
