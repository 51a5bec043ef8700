package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"podcast-search/pkg/domain"

	"github.com/google/uuid"
)

// Integration test: requires a running MongoDB.
// Run with: MONGO_TEST_URI=mongodb://localhost:27017 go test ./pkg/db/...
func TestClient_Episodes(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := "episodes_test_" + uuid.NewString()[:8]
	client := NewClient(uri, "podcast_search_test", collection)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() {
		_ = client.collection.Drop(ctx)
		_ = client.Close(ctx)
	}()

	older := &domain.Episode{EID: "ep-1", Title: "One", PubDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Duration: 1800, Transcribed: true}
	newer := &domain.Episode{EID: "ep-2", Title: "Two", PubDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Duration: 0}
	for _, ep := range []*domain.Episode{newer, older} {
		if err := client.SaveEpisode(ctx, ep); err != nil {
			t.Fatalf("SaveEpisode failed: %v", err)
		}
	}

	duration, err := client.Duration(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if duration != 1800 {
		t.Errorf("Expected duration 1800, got %v", duration)
	}

	if _, err := client.Duration(ctx, "ep-2"); !errors.Is(err, ErrUnknownDuration) {
		t.Errorf("Expected ErrUnknownDuration, got %v", err)
	}
	if _, err := client.Duration(ctx, "missing"); !errors.Is(err, ErrEpisodeNotFound) {
		t.Errorf("Expected ErrEpisodeNotFound, got %v", err)
	}

	if err := client.MarkTranscribed(ctx, "ep-2"); err != nil {
		t.Fatalf("MarkTranscribed failed: %v", err)
	}
	episodes, err := client.ListTranscribed(ctx)
	if err != nil {
		t.Fatalf("ListTranscribed failed: %v", err)
	}
	if len(episodes) != 2 || episodes[0].EID != "ep-1" || episodes[1].EID != "ep-2" {
		t.Errorf("Expected ep-1, ep-2 by pub date, got %+v", episodes)
	}

	eids, err := client.GetAllEIDs(ctx)
	if err != nil {
		t.Fatalf("GetAllEIDs failed: %v", err)
	}
	if !eids["ep-1"] || !eids["ep-2"] || len(eids) != 2 {
		t.Errorf("Unexpected eid set %v", eids)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	if err := client.Connect(ctx); err == nil {
		t.Error("Expected Connect error for uninitialized client")
	}
	if _, err := client.Duration(ctx, "x"); err == nil {
		t.Error("Expected Duration error for uninitialized client")
	}
	if err := client.SaveEpisode(ctx, &domain.Episode{EID: "x"}); err == nil {
		t.Error("Expected SaveEpisode error for uninitialized client")
	}
	if err := client.Close(ctx); err != nil {
		t.Errorf("Expected nil Close error, got %v", err)
	}
}
