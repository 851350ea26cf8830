package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/statsports/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*config.Config)) *Client {
	t.Helper()
	cfg := config.Config{
		APIKey:         "api-key",
		APISecret:      "secret",
		APIVersion:     "7",
		BaseURL:        srv.URL + "/api",
		AuthMode:       config.AuthModeBody,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     2,
		Backoff:        1.5,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c := New(cfg, nil)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestFetchSessionsBodyAuth(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/thirdPartyData/getFullSessionsByDateRange", r.URL.Path)
		assert.Equal(t, "7", r.Header.Get("api-version"))
		assert.Empty(t, r.Header.Get("X-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`[{"sessionDetails":{"sessionDate":"2024-03-01T00:00:00Z"}}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sessions, err := c.FetchSessions(context.Background(), start, start.Add(24*time.Hour-time.Second))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "2024-03-01T00:00:00Z", sessions[0].Date())

	assert.Equal(t, "api-key", got["thirdPartyApiId"])
	assert.Equal(t, "2024-03-01T00:00:00.000Z", got["sessionStartDate"])
	assert.Equal(t, "2024-03-01T23:59:59.000Z", got["sessionEndDate"])
}

func TestFetchPlayerDetailsHeaderAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/thirdPartyData/getPlayerDetails", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "secret", r.Header.Get("X-API-SECRET"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "thirdPartyApiId")
		assert.Equal(t, "2024-03-01T00:00:00Z", body["sessionDate"])
		_, _ = w.Write([]byte(`[{"customPlayerId":"P1"},{"customPlayerId":"P2"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.Config) { cfg.AuthMode = config.AuthModeHeaders })
	players, err := c.FetchPlayerDetails(context.Background(), "2024-03-01T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "P2", players[1].CustomID())
}

func TestNullAndEmptyBodiesAreEmptySuccess(t *testing.T) {
	for _, body := range []string{"null", "", "[]"} {
		t.Run("body="+body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			sessions, err := newTestClient(t, srv, nil).FetchSessions(context.Background(), time.Now(), time.Now())
			require.NoError(t, err)
			assert.NotNil(t, sessions)
			assert.Empty(t, sessions)
		})
	}
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchSessions(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchSessions(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTTPStatus)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.EqualValues(t, 3, calls.Load(), "initial attempt plus two retries")
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchSessions(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDeadlineStopsRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv, nil).FetchSessions(ctx, time.Now(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimedOutAttemptIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(400 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		_, _ = w.Write([]byte(`[{"sessionDetails":{"sessionDate":"2024-03-01T00:00:00Z"}}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.Config) { cfg.RequestTimeout = 200 * time.Millisecond })
	sessions, err := c.FetchSessions(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestAttemptTimeoutOverride(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ctx := WithAttemptTimeout(context.Background(), 50*time.Millisecond)
	_, err := c.FetchSessions(ctx, time.Now(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 3, calls.Load(), "every attempt timed out and was retried")

	d, ok := AttemptTimeout(ctx)
	assert.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, d)
	_, ok = AttemptTimeout(context.Background())
	assert.False(t, ok)
}

func TestMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchSessions(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}
