package gnomad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-pgx/internal/annotate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, Timeout: time.Second, RateLimit: 1000})
	require.NoError(t, err)
	return c, &calls
}

func TestVariantID(t *testing.T) {
	assert.Equal(t, "10-94761930-G-A", VariantID("chr10", 94761930, "G", "A"))
	assert.Equal(t, "X-5-A-AT", VariantID("X", 5, "A", "AT"))
}

func TestFrequency_GenomePreferred(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "10-94761930-G-A", req.Variables["variantId"])
		assert.Equal(t, DefaultDataset, req.Variables["dataset"])
		w.Write([]byte(`{"data":{"variant":{"variantId":"10-94761930-G-A","genome":{"af":0.15},"exome":{"af":0.2}}}}`))
	})

	af, found, err := c.Frequency(context.Background(), "chr10", 94761930, "G", "A")
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 0.15, af, 1e-12)
}

func TestFrequency_ExomeFallback(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"variant":{"variantId":"1-1-A-G","genome":null,"exome":{"af":0.02}}}}`))
	})

	af, found, err := c.Frequency(context.Background(), "1", 1, "A", "G")
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 0.02, af, 1e-12)
}

func TestFrequency_NotFoundIsCached(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"variant":null},"errors":[{"message":"Variant not found"}]}`))
	})

	for range 3 {
		_, found, err := c.Frequency(context.Background(), "1", 1, "A", "G")
		require.NoError(t, err)
		assert.False(t, found)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFrequency_ServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, _, err := c.Frequency(context.Background(), "1", 1, "A", "G")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFrequency_BreakerOpens(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	for i := range 5 {
		_, _, err := c.Frequency(context.Background(), "1", int64(i+1), "A", "G")
		require.Error(t, err)
	}
	// Three failures trip the breaker; later calls never reach the server.
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))

	_, _, err := c.Frequency(context.Background(), "1", 99, "A", "G")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSource_AbsorbsFailures(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	af, ok := NewSource(c).Lookup(context.Background(), annotate.Locus{Chrom: "1", Pos: 1, Ref: "A", Alt: "G"})
	assert.False(t, ok)
	assert.Zero(t, af)
}

func TestSource_Timeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := NewSource(c).Lookup(ctx, annotate.Locus{Chrom: "1", Pos: 1, Ref: "A", Alt: "G"})
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSource_AnnotatorIntegration(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"variant":{"variantId":"x","genome":{"af":0.3}}}}`))
	})
	assert.Equal(t, "gnomad", NewSource(c).Name())

	var p annotate.Provider[float64] = NewSource(c)
	af, ok := p.Lookup(context.Background(), annotate.Locus{Chrom: "chr2", Pos: 7, Ref: "C", Alt: "T"})
	assert.True(t, ok)
	assert.InDelta(t, 0.3, af, 1e-12)
}
