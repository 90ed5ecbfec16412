// Package testutil provides shared testing utilities for the deskmate project.
//
// This package contains reusable test infrastructure that can be used across
// multiple packages, following the pattern of Go standard library packages
// like net/http/httptest and testing/iotest.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder implements ai.Embedder with deterministic output for testing.
//
// By default every text embeds to a deterministic unit vector derived from a
// hash of the text, so distinct texts get distinct directions and repeated
// texts embed identically. Individual texts can be pinned to exact vectors
// via Vectors, which unit tests use to construct precise similarity
// geometry.
type MockEmbedder struct {
	mu sync.Mutex

	// Vectors pins specific texts to specific embeddings.
	Vectors map[string][]float32

	// Dimension of generated vectors when a text is not pinned. Default 8.
	Dimension int

	// Err, when set, is returned from every Embed call.
	Err error

	// Delay simulates model latency (respects context cancellation).
	Delay time.Duration

	// CallCount tracks Embed invocations (not texts).
	CallCount int

	// LastInput records the texts of the most recent request.
	LastInput []string
}

// Name implements ai.Embedder.
func (*MockEmbedder) Name() string { return "mock-embedder" }

// Register implements ai.Embedder. No-op for testing.
func (*MockEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastInput = m.LastInput[:0]
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			m.LastInput = append(m.LastInput, doc.Content[0].Text)
		} else {
			m.LastInput = append(m.LastInput, "")
		}
	}
	texts := append([]string(nil), m.LastInput...)
	delay, embedErr := m.Delay, m.Err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if embedErr != nil {
		return nil, embedErr
	}

	resp := &ai.EmbedResponse{Embeddings: make([]*ai.Embedding, len(texts))}
	for i, text := range texts {
		resp.Embeddings[i] = &ai.Embedding{Embedding: m.vectorFor(text)}
	}
	return resp, nil
}

// Calls returns the number of Embed invocations so far.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	m.mu.Lock()
	pinned, ok := m.Vectors[text]
	dim := m.Dimension
	m.mu.Unlock()

	if ok {
		return pinned
	}
	if dim <= 0 {
		dim = 8
	}
	return HashVector(text, dim)
}

// HashVector derives a deterministic unit vector of the given dimension from
// a hash of the text. Texts sharing a long prefix still map to unrelated
// directions, so hash vectors are only useful where the test does not depend
// on semantic closeness.
func HashVector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, dim)
	var norm float64
	for i := range v {
		// xorshift64 steps keyed by the text hash
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		// Spread into [-1, 1)
		v[i] = float32(int64(seed%2000)-1000) / 1000
		norm += float64(v[i]) * float64(v[i])
	}

	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
