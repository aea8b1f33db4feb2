package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"go-damage-assessor/internal/repository"
)

func newMockPostgresStore(t *testing.T) (*PostgresResultStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresResultStore(db), mock
}

func TestPostgresResultStoreEnsureSchema(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analysis_results").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresResultStoreSaveUpserts(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := sampleResult("job-1", created)

	mock.ExpectExec("INSERT INTO analysis_results").
		WithArgs("job-1", "before-job-1", "after-job-1", 12.34, 3.2, sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Save(context.Background(), "job-1", res); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresResultStoreLoad(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	payload, err := json.Marshal(sampleResult("job-1", time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery("SELECT payload FROM analysis_results WHERE job_id").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))
	mock.ExpectQuery("SELECT payload FROM analysis_results WHERE job_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	got, err := store.Load(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.JobID != "job-1" || len(got.FloodAreas) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}

	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, repository.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresResultStoreLatest(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	payload, _ := json.Marshal(sampleResult("job-9", time.Now().UTC()))

	mock.ExpectQuery("ORDER BY created_at DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.JobID != "job-9" {
		t.Fatalf("expected job-9, got %s", got.JobID)
	}
}

func TestPostgresResultStoreDeleteReturnsNotFoundWhenNoRows(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	mock.ExpectExec("DELETE FROM analysis_results").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM analysis_results").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "missing"); !errors.Is(err, repository.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
	if err := store.Delete(context.Background(), "job-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresResultStoreWrapsDriverErrors(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	mock.ExpectQuery("SELECT payload").
		WithArgs("job").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Load(context.Background(), "job")
	if err == nil || errors.Is(err, repository.ErrResultNotFound) {
		t.Fatalf("expected driver error, got %v", err)
	}
}
