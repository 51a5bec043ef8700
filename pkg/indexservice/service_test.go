package indexservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"podcast-search/pkg/domain"
)

type mockSearch struct {
	mu       sync.Mutex
	segments map[string]int
	chunks   map[string]int
	fail     string
}

func (m *mockSearch) IndexTranscript(ctx context.Context, eid string, segments []domain.Segment) error {
	if eid == m.fail {
		return errors.New("db down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments[eid] = len(segments)
	return nil
}

func (m *mockSearch) StoreChunks(ctx context.Context, eid string, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[eid] = len(chunks)
	return nil
}

type mockStats struct {
	mu     sync.Mutex
	words  map[string]int
	tokens map[string][]domain.TimedToken
}

func (m *mockStats) SaveWordCount(ctx context.Context, eid string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[eid] = count
	return nil
}

func (m *mockStats) SaveTimedTokens(ctx context.Context, eid string, tokens []domain.TimedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[eid] = tokens
	return nil
}

type mockMarker struct {
	mu     sync.Mutex
	marked []string
}

func (m *mockMarker) MarkTranscribed(ctx context.Context, eid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, eid)
	return nil
}

func newTestService(search *mockSearch, st *mockStats, marker *mockMarker) *Service {
	return New(Config{
		Search:   search,
		Stats:    st,
		Episodes: marker,
		Workers:  2,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestIndexDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ep1.json", `{
		"segments": [{"start": 0, "end": 4, "text": "hello mars", "words": [{"word": "hello", "start": 0}, {"word": "mars", "start": 1}]}],
		"entities": [{"token": "Mars", "timestamp": 1}],
		"chunks": [{"start": 0, "end": 4, "text": "hello mars", "embedding": [0.1, 0.2]}]
	}`)
	writeFile(t, dir, "other.json", `{"eid": "ep2", "segments": [{"start": 0, "end": 1, "text": "hi", "words": [{"word": "hi", "start": 0}]}]}`)
	writeFile(t, dir, "empty.json", `{"segments": []}`)
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "notes.txt", `ignored`)

	search := &mockSearch{segments: map[string]int{}, chunks: map[string]int{}}
	st := &mockStats{words: map[string]int{}, tokens: map[string][]domain.TimedToken{}}
	marker := &mockMarker{}
	svc := newTestService(search, st, marker)

	res, err := svc.IndexDir(context.Background(), dir)
	if err == nil {
		t.Fatal("Expected joined error for broken and empty files")
	}
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("Expected ErrEmptyTranscript in %v", err)
	}
	if res.Indexed != 2 || res.Failed != 2 {
		t.Errorf("Expected 2 indexed and 2 failed, got %+v", res)
	}

	if search.segments["ep1"] != 1 || search.chunks["ep1"] != 1 {
		t.Errorf("Expected ep1 segments and chunks stored, got %v / %v", search.segments, search.chunks)
	}
	if search.segments["ep2"] != 1 {
		t.Errorf("Expected eid from file body, got %v", search.segments)
	}
	if _, ok := search.chunks["ep2"]; ok {
		t.Error("Expected no chunk call for ep2")
	}
	if st.words["ep1"] != 2 || len(st.tokens["ep1"]) != 1 {
		t.Errorf("Unexpected stats for ep1: words=%d tokens=%v", st.words["ep1"], st.tokens["ep1"])
	}
	if len(marker.marked) != 2 {
		t.Errorf("Expected 2 episodes marked, got %v", marker.marked)
	}
}

func TestIndex_SearchFailure(t *testing.T) {
	search := &mockSearch{segments: map[string]int{}, chunks: map[string]int{}, fail: "bad"}
	st := &mockStats{words: map[string]int{}, tokens: map[string][]domain.TimedToken{}}
	marker := &mockMarker{}
	svc := newTestService(search, st, marker)

	err := svc.Index(context.Background(), &TranscriptFile{EID: "bad", Segments: []domain.Segment{{Text: "x"}}})
	if err == nil {
		t.Fatal("Expected error")
	}
	if len(marker.marked) != 0 || len(st.words) != 0 {
		t.Error("Expected nothing stored after search failure")
	}
}

func TestIndexDir_Empty(t *testing.T) {
	svc := newTestService(&mockSearch{}, &mockStats{}, nil)
	if _, err := svc.IndexDir(context.Background(), t.TempDir()); !errors.Is(err, ErrEmptyDir) {
		t.Errorf("Expected ErrEmptyDir, got %v", err)
	}
}

func TestReadTranscript_DefaultsEID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "abc-123.json", `{"segments": []}`)

	tf, err := ReadTranscript(filepath.Join(dir, "abc-123.json"))
	if err != nil {
		t.Fatalf("ReadTranscript failed: %v", err)
	}
	if tf.EID != "abc-123" {
		t.Errorf("Expected eid abc-123, got %s", tf.EID)
	}
}
