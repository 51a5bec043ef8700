package replication

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"podcast-search/pkg/db"
	"podcast-search/pkg/domain"
)

type staticSource struct {
	episodes []domain.Episode
}

func (s staticSource) ListTranscribed(ctx context.Context) ([]domain.Episode, error) {
	return s.episodes, nil
}

type nilProvider struct{}

func (nilProvider) DB() *sql.DB { return nil }

func TestBatches(t *testing.T) {
	eps := []domain.Episode{{EID: "a"}, {EID: ""}, {EID: "b"}, {EID: "c"}, {EID: "d"}, {EID: "e"}}

	batches := Batches(eps, 2)
	if len(batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batches))
	}
	if batches[0][1].EID != "b" {
		t.Errorf("Expected empty eid skipped, got %s", batches[0][1].EID)
	}
	if len(batches[2]) != 1 || batches[2][0].EID != "e" {
		t.Errorf("Expected last batch [e], got %+v", batches[2])
	}

	if got := Batches(nil, 10); len(got) != 0 {
		t.Errorf("Expected no batches, got %d", len(got))
	}
}

func TestNewReplicator_Validation(t *testing.T) {
	if _, err := NewReplicator(Config{Postgres: nilProvider{}}); err == nil {
		t.Error("Expected error without source")
	}
	if _, err := NewReplicator(Config{Source: staticSource{}}); err == nil {
		t.Error("Expected error without postgres")
	}
}

func TestReplicateEpisodes_NotConnected(t *testing.T) {
	r, err := NewReplicator(Config{Source: staticSource{}, Postgres: nilProvider{}})
	if err != nil {
		t.Fatalf("NewReplicator failed: %v", err)
	}
	if _, err := r.ReplicateEpisodes(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestReplicateEpisodes_Integration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	pg := db.NewPostgresClient(db.PostgresConfig{DSN: dsn})
	if err := pg.Connect(ctx); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer pg.Close()

	src := staticSource{episodes: []domain.Episode{
		{EID: "replication-test-1", Title: "One", PubDate: time.Now().UTC(), Duration: 60, Transcribed: true},
		{EID: "replication-test-2", Title: "Two", PubDate: time.Now().UTC(), Duration: 90, Transcribed: true},
	}}
	r, err := NewReplicator(Config{Source: src, Postgres: pg, BatchSize: 1})
	if err != nil {
		t.Fatalf("NewReplicator failed: %v", err)
	}

	n, err := r.ReplicateEpisodes(ctx)
	if err != nil {
		t.Fatalf("ReplicateEpisodes failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 rows written, got %d", n)
	}

	// Second run updates in place
	if _, err := r.ReplicateEpisodes(ctx); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	var duration float64
	if err := pg.DB().QueryRowContext(ctx, `SELECT duration FROM episodes WHERE eid = $1`, "replication-test-2").Scan(&duration); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if duration != 90 {
		t.Errorf("Expected duration 90, got %v", duration)
	}

	_, _ = pg.DB().ExecContext(ctx, `DELETE FROM episodes WHERE eid LIKE 'replication-test-%'`)
}
