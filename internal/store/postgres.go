package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const scoreColumns = `record_id, habitat_id, variant,
	crew_size, structural_material, radiation_resistance,
	scores, aggregate, vetoed, veto_reason, expert_rating,
	document, created_at, updated_at`

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) SaveScore(ctx context.Context, r *ScoreRecord) error {
	return insertScore(ctx, s.pool, r)
}

func (s *PostgresStore) SaveScores(ctx context.Context, records []*ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, r := range records {
		if err := insertScore(ctx, tx, r); err != nil {
			return fmt.Errorf("insert record %d (%s): %w", i, r.HabitatID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertScore(ctx context.Context, q rowQuerier, r *ScoreRecord) error {
	scoresJSON, err := json.Marshal(r.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	var doc []byte
	if len(r.Document) > 0 {
		doc = r.Document
	}

	return q.QueryRow(ctx, `
		INSERT INTO habitat_scores (record_id, habitat_id, variant,
			crew_size, structural_material, radiation_resistance,
			scores, aggregate, vetoed, veto_reason, expert_rating, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		r.ID, r.HabitatID, r.Variant,
		r.CrewSize, r.StructuralMaterial, r.RadiationResistance,
		scoresJSON, r.Aggregate, r.Vetoed, r.VetoReason, r.ExpertRating, doc,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (s *PostgresStore) GetScore(ctx context.Context, id uuid.UUID) (*ScoreRecord, error) {
	r, err := scanScore(s.pool.QueryRow(ctx, `
		SELECT `+scoreColumns+`
		FROM habitat_scores WHERE record_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *PostgresStore) ListScores(ctx context.Context, filter ScoreFilter) ([]*ScoreRecord, error) {
	query := `SELECT ` + scoreColumns + ` FROM habitat_scores WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.HabitatID != "" {
		n++
		query += fmt.Sprintf(" AND habitat_id = $%d", n)
		args = append(args, filter.HabitatID)
	}
	if filter.Vetoed != nil {
		n++
		query += fmt.Sprintf(" AND vetoed = $%d", n)
		args = append(args, *filter.Vetoed)
	}
	if filter.Rated != nil {
		if *filter.Rated {
			query += " AND expert_rating IS NOT NULL"
		} else {
			query += " AND expert_rating IS NULL"
		}
	}
	if filter.Variant != "" {
		n++
		query += fmt.Sprintf(" AND variant = $%d", n)
		args = append(args, filter.Variant)
	}

	query += " ORDER BY created_at DESC, record_id"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScoreRecord
	for rows.Next() {
		r, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetExpertRating(ctx context.Context, id uuid.UUID, rating float64) (*ScoreRecord, error) {
	r, err := scanScore(s.pool.QueryRow(ctx, `
		UPDATE habitat_scores SET expert_rating = $2, updated_at = now()
		WHERE record_id = $1
		RETURNING `+scoreColumns, id, rating))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *PostgresStore) GetStats(ctx context.Context) (*ScoreStats, error) {
	stats := &ScoreStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN vetoed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN expert_rating IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(aggregate), 0)
		FROM habitat_scores`,
	).Scan(&stats.Total, &stats.Vetoed, &stats.Rated, &stats.AvgAggregate)
	return stats, err
}

func scanScore(row pgx.Row) (*ScoreRecord, error) {
	r := &ScoreRecord{}
	var scoresJSON, doc []byte
	if err := row.Scan(
		&r.ID, &r.HabitatID, &r.Variant,
		&r.CrewSize, &r.StructuralMaterial, &r.RadiationResistance,
		&scoresJSON, &r.Aggregate, &r.Vetoed, &r.VetoReason, &r.ExpertRating,
		&doc, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if scoresJSON != nil {
		if err := json.Unmarshal(scoresJSON, &r.Scores); err != nil {
			return nil, fmt.Errorf("decode scores for %s: %w", r.ID, err)
		}
	}
	if doc != nil {
		r.Document = json.RawMessage(doc)
	}
	return r, nil
}
