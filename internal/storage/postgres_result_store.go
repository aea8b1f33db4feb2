package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"go-damage-assessor/internal/repository"
	"go-damage-assessor/pkg/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	job_id             TEXT PRIMARY KEY,
	before_image_id    TEXT NOT NULL,
	after_image_id     TEXT NOT NULL,
	changed_percentage DOUBLE PRECISION NOT NULL,
	severity_score     DOUBLE PRECISION NOT NULL,
	payload            JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analysis_results_created_at_idx ON analysis_results (created_at DESC);`

// PostgresResultStore persists results through database/sql and pgx
type PostgresResultStore struct {
	db *sql.DB
}

// OpenPostgresResultStore connects with the pgx driver and ensures the schema
func OpenPostgresResultStore(ctx context.Context, dsn string) (*PostgresResultStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres result store: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := NewPostgresResultStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresResultStore wraps an open handle
func NewPostgresResultStore(db *sql.DB) *PostgresResultStore {
	return &PostgresResultStore{db: db}
}

// EnsureSchema creates the results table when missing
func (s *PostgresResultStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create results schema: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) Save(ctx context.Context, jobID string, result *models.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("save result %s: nil result", jobID)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_results
			(job_id, before_image_id, after_image_id, changed_percentage, severity_score, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE SET
			before_image_id = EXCLUDED.before_image_id,
			after_image_id = EXCLUDED.after_image_id,
			changed_percentage = EXCLUDED.changed_percentage,
			severity_score = EXCLUDED.severity_score,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`,
		jobID, result.BeforeImageID, result.AfterImageID,
		result.ChangedPercentage, result.SeverityScore, payload, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) Load(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_results WHERE job_id = $1`, jobID,
	).Scan(&payload)
	return scanResult(payload, err)
}

func (s *PostgresResultStore) Latest(ctx context.Context) (*models.AnalysisResult, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_results ORDER BY created_at DESC LIMIT 1`,
	).Scan(&payload)
	return scanResult(payload, err)
}

func scanResult(payload []byte, err error) (*models.AnalysisResult, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select result: %w", err)
	}
	return decodeResult(payload)
}

func (s *PostgresResultStore) Delete(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_results WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if affected == 0 {
		return repository.ErrResultNotFound
	}
	return nil
}

func (s *PostgresResultStore) Close() error {
	return s.db.Close()
}
