package embedding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgreg1908/papa-rag/internal/domain"
)

func testServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func embeddingHandler(t *testing.T, dimension int, batches *[][]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if batches != nil {
			*batches = append(*batches, req.Input)
		}

		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{
				Embedding: make([]float32, dimension),
				Index:     i,
			})
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestOpenAIEmbedderBatching(t *testing.T) {
	var batches [][]string
	srv := testServer(t, embeddingHandler(t, 4, &batches))

	e := newEmbedder("test-key", "test-model", srv.URL, Options{Dimension: 4, BatchSize: 2})

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for _, v := range vectors {
		assert.Len(t, v, 4)
	}

	require.Len(t, batches, 3, "5 texts at batch size 2 need 3 requests")
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"c", "d"}, batches[1])
	assert.Equal(t, []string{"e"}, batches[2])
}

func TestOpenAIEmbedderRetriesTransient(t *testing.T) {
	var calls int64
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		embeddingHandler(t, 4, nil)(w, r)
	})

	e := newEmbedder("test-key", "test-model", srv.URL, Options{
		Dimension:      4,
		MaxRetries:     3,
		RequestTimeout: 2 * time.Second,
	})

	vectors, err := e.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err, "transient failures within the retry budget succeed")
	require.Len(t, vectors, 1)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestOpenAIEmbedderRetriesExhausted(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	e := newEmbedder("test-key", "test-model", srv.URL, Options{Dimension: 4, MaxRetries: 1})

	_, err := e.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestOpenAIEmbedderNoRetryOnBadRequest(t *testing.T) {
	var calls int64
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	e := newEmbedder("test-key", "test-model", srv.URL, Options{Dimension: 4, MaxRetries: 3})

	_, err := e.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "client errors must not be retried")
}

func TestOpenAIEmbedderCancellation(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		// The body must be drained before stalling, otherwise the server
		// never notices the client abort and Close hangs on this handler.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	e := newEmbedder("test-key", "test-model", srv.URL, Options{Dimension: 4})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Embed(ctx, []string{"hello"})
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestOpenAIEmbedderRejectsShortResponse(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		// One embedding for two inputs.
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: make([]float32, 4), Index: 0}},
		})
	})

	e := newEmbedder("test-key", "test-model", srv.URL, Options{Dimension: 4, MaxRetries: 0})

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure, "a short response must never yield nil vectors")
}

func TestOpenAIEmbedderRejectsBadIndexes(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		// Right count, but both rows claim index 0 so index 1 stays empty.
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{
				{Embedding: make([]float32, 4), Index: 0},
				{Embedding: make([]float32, 4), Index: 0},
			},
		})
	})

	e := newEmbedder("test-key", "test-model", srv.URL, Options{Dimension: 4, MaxRetries: 0})

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	e := newEmbedder("test-key", "test-model", "http://unused", Options{Dimension: 4})

	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(8)

	a, err := e.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.Embed(context.Background(), []string{"other text"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
	assert.Len(t, c[0], 8)
}
