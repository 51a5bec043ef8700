package search

import "testing"

func TestWordCache_Eviction(t *testing.T) {
	c := NewWordCache(2)
	c.Put("a", []float64{1})
	c.Put("b", []float64{2})

	// Touch a so b becomes least recently used
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Expected a to be cached")
	}
	c.Put("c", []float64{3})

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
	if got, ok := c.Get("c"); !ok || got[0] != 3 {
		t.Errorf("Expected c = [3], got %v (%v)", got, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}
}

func TestWordCache_UpdateAndReset(t *testing.T) {
	c := NewWordCache(0)
	c.Put("a", []float64{1})
	c.Put("a", []float64{5})

	if got, _ := c.Get("a"); got[0] != 5 {
		t.Errorf("Expected updated value 5, got %v", got)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}

	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after reset, got %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Expected miss after reset")
	}
}
