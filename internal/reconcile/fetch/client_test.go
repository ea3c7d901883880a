package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchSendsHeadersAndParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "civic-bot", r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		assert.Equal(t, "Westlands", r.URL.Query().Get("constituency"))
		assert.Equal(t, "7", r.URL.Query().Get("rts"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := New(WithUserAgent("civic-bot"), WithMinInterval(0), WithLogger(quietLogger()))
	resp, err := c.Fetch(context.Background(), srv.URL+"/election/?rts=7", url.Values{"constituency": {"Westlands"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"results":[]}`, string(resp.Body))
}

func TestFetchFailureCauses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		case "/large":
			_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
		}
	}))
	defer srv.Close()

	c := New(WithMinInterval(0), WithTimeout(50*time.Millisecond), WithMaxBodyBytes(1024), WithLogger(quietLogger()))

	t.Run("non-2xx is a status failure and is not retried", func(t *testing.T) {
		before := hits.Load()
		_, err := c.Fetch(context.Background(), srv.URL+"/missing", nil)
		var ff *FetchFailure
		require.ErrorAs(t, err, &ff)
		assert.Equal(t, CauseStatus, ff.Cause)
		assert.Equal(t, http.StatusNotFound, ff.Status)
		assert.Equal(t, before+1, hits.Load())
	})

	t.Run("per-request timeout", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), srv.URL+"/slow", nil)
		assert.Equal(t, CauseTimeout, CauseOf(err))
	})

	t.Run("caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Fetch(ctx, srv.URL+"/slow", nil)
		assert.Equal(t, CauseCancelled, CauseOf(err))
	})

	t.Run("unreachable host", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), "http://127.0.0.1:1/", nil)
		assert.Equal(t, CauseConnection, CauseOf(err))
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), "ftp://example.org/x", nil)
		assert.Equal(t, CauseBadRequest, CauseOf(err))
	})

	t.Run("oversized body", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), srv.URL+"/large", nil)
		var ff *FetchFailure
		require.ErrorAs(t, err, &ff)
		assert.Equal(t, CauseConnection, ff.Cause)
	})
}

func TestFetchSpacesRequestsAcrossCallers(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
	}))
	defer srv.Close()

	interval := 80 * time.Millisecond
	c := New(WithMinInterval(interval), WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for range 3 {
		wg.Go(func() {
			_, err := c.Fetch(context.Background(), srv.URL, nil)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	require.Len(t, starts, 3)
	first, last := starts[0], starts[0]
	for _, s := range starts {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	// Three requests need at least two full intervals; allow scheduler jitter.
	assert.GreaterOrEqual(t, last.Sub(first), 2*interval-20*time.Millisecond)
}

func TestFetchCancelledWhileWaitingForSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	c := New(WithMinInterval(time.Hour), WithLogger(quietLogger()))
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err = c.Fetch(ctx, srv.URL, nil)
	assert.Equal(t, CauseCancelled, CauseOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCauseOfForeignError(t *testing.T) {
	assert.Empty(t, CauseOf(errors.New("boom")))
}
