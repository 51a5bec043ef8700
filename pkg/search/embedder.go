package search

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"podcast-search/pkg/httpclient"
)

var ErrEmptyEmbedding = errors.New("embedding service returned an empty vector")

// Embedder turns a text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// HTTPEmbedder calls an embedding service that accepts {"input": text} and
// answers {"embedding": [...]}.
type HTTPEmbedder struct {
	client *httpclient.HTTPClient
	url    string
}

// NewHTTPEmbedder creates an embedder posting to url.
func NewHTTPEmbedder(url string) *HTTPEmbedder {
	return &HTTPEmbedder{
		client: httpclient.NewClient(httpclient.APIClient),
		url:    url,
	}
}

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var resp embedResponse
	if err := e.client.PostJSON(ctx, e.url, embedRequest{Input: text}, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embedding, nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
