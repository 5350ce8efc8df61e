package services

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type fakeGemini struct {
	mu         sync.Mutex
	embeddings map[string][]float32
	response   string
	err        error
	prompts    []string
}

func (f *fakeGemini) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.embeddings[text]; ok {
		return e, nil
	}
	return []float32{0}, nil
}

func (f *fakeGemini) GenerateJSON(ctx context.Context, prompt string, temperature float32) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGemini) GenerateJSONWithRetry(ctx context.Context, prompt string, temperature float32, maxRetries int) (string, error) {
	return f.GenerateJSON(ctx, prompt, temperature)
}

// fakeVectorStore answers searches by the first component of the query vector.
type fakeVectorStore struct {
	results map[float32][]SearchResult
	err     error
}

func (f *fakeVectorStore) InitCollection(ctx context.Context) error { return nil }

func (f *fakeVectorStore) UpsertTerm(ctx context.Context, unNumber string, termIndex int, term string, embedding []float32) error {
	return nil
}

func (f *fakeVectorStore) SearchSimilar(ctx context.Context, queryEmbedding []float32, limit int) ([]SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(queryEmbedding) == 0 {
		return nil, errors.New("empty query")
	}
	res := f.results[queryEmbedding[0]]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (f *fakeVectorStore) DeleteUNNumber(ctx context.Context, unNumber string) error { return nil }

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
