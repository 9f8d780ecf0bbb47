//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE habitat_scores")
		s.Close()
	})

	return s
}

func sampleRecord(habitatID string, vetoed bool) *ScoreRecord {
	agg := 0.64
	return &ScoreRecord{
		HabitatID:           habitatID,
		Variant:             VariantWeighted,
		CrewSize:            4,
		StructuralMaterial:  "Inflatable",
		RadiationResistance: 7,
		Scores:              map[string]float64{"scoreChecklist": 1, "scoreMass": 0.5},
		Aggregate:           &agg,
		Vetoed:              vetoed,
		Document:            []byte(`{"layout":{"id":"` + habitatID + `","cells":[]}}`),
	}
}

func TestSaveAndGetScore(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	r := sampleRecord("habitat_1", false)
	if err := s.SaveScore(ctx, r); err != nil {
		t.Fatalf("SaveScore failed: %v", err)
	}
	if r.ID == uuid.Nil {
		t.Fatal("expected record id after save")
	}
	if r.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	got, err := s.GetScore(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetScore failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.HabitatID != "habitat_1" || got.Variant != VariantWeighted {
		t.Errorf("unexpected record %+v", got)
	}
	if got.Scores["scoreMass"] != 0.5 {
		t.Errorf("expected scoreMass 0.5, got %v", got.Scores["scoreMass"])
	}
	if got.Aggregate == nil || *got.Aggregate != 0.64 {
		t.Errorf("unexpected aggregate %v", got.Aggregate)
	}
	if got.ExpertRating != nil {
		t.Error("expected no expert rating")
	}
	if len(got.Document) == 0 {
		t.Error("expected stored document")
	}
}

func TestSaveScoresAllOrNothing(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	batch := []*ScoreRecord{sampleRecord("a", false), sampleRecord("b", true)}
	if err := s.SaveScores(ctx, batch); err != nil {
		t.Fatalf("SaveScores failed: %v", err)
	}
	for _, r := range batch {
		if r.ID == uuid.Nil || r.CreatedAt.IsZero() {
			t.Errorf("record %s not filled in after save", r.HabitatID)
		}
	}

	// The second row reuses a primary key, so the first must roll back too.
	clash := sampleRecord("c", false)
	clash.ID = batch[0].ID
	if err := s.SaveScores(ctx, []*ScoreRecord{sampleRecord("d", false), clash}); err == nil {
		t.Fatal("expected duplicate key error")
	}
	all, err := s.ListScores(ctx, ScoreFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("failed batch must leave no rows behind, have %d", len(all))
	}
}

func TestGetScoreNotFound(t *testing.T) {
	s := setupTestDB(t)
	got, err := s.GetScore(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown id, got %+v", got)
	}
}

func TestListScoresFilters(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, r := range []*ScoreRecord{
		sampleRecord("a", false),
		sampleRecord("b", true),
		sampleRecord("a", true),
	} {
		if err := s.SaveScore(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListScores(ctx, ScoreFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}

	byID, err := s.ListScores(ctx, ScoreFilter{HabitatID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 2 {
		t.Errorf("expected 2 records for habitat a, got %d", len(byID))
	}

	vetoed := true
	onlyVetoed, err := s.ListScores(ctx, ScoreFilter{Vetoed: &vetoed})
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyVetoed) != 2 {
		t.Errorf("expected 2 vetoed records, got %d", len(onlyVetoed))
	}

	page, err := s.ListScores(ctx, ScoreFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Errorf("expected page of 1, got %d", len(page))
	}
}

func TestSetExpertRating(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	r := sampleRecord("rated", false)
	if err := s.SaveScore(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.SetExpertRating(ctx, r.ID, 0.85)
	if err != nil {
		t.Fatalf("SetExpertRating failed: %v", err)
	}
	if got == nil || got.ExpertRating == nil || *got.ExpertRating != 0.85 {
		t.Fatalf("expected rating 0.85, got %+v", got)
	}

	rated := true
	list, err := s.ListScores(ctx, ScoreFilter{Rated: &rated})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 rated record, got %d", len(list))
	}

	missing, err := s.SetExpertRating(ctx, uuid.New(), 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown record")
	}
}

func TestGetStats(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, r := range []*ScoreRecord{sampleRecord("x", false), sampleRecord("y", true)} {
		if err := s.SaveScore(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 2 || stats.Vetoed != 1 || stats.Rated != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.AvgAggregate < 0.63 || stats.AvgAggregate > 0.65 {
		t.Errorf("expected avg aggregate ~0.64, got %f", stats.AvgAggregate)
	}
}
