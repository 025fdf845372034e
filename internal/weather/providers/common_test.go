package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHTTPConfig(srv *httptest.Server, retries int) HTTPClientConfig {
	return HTTPClientConfig{
		Client: srv.Client(),
		Backoff: BackoffConfig{
			MaxRetries:      retries,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := getJSON(context.Background(), testHTTPConfig(srv, 3), newBreaker("t"), srv.URL, nil, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := getJSON(context.Background(), testHTTPConfig(srv, 3), newBreaker("t"), srv.URL, nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetJSONGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := getJSON(context.Background(), testHTTPConfig(srv, 2), newBreaker("t"), srv.URL, nil, &struct{}{})
	require.ErrorIs(t, err, errRateLimited)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := testHTTPConfig(srv, 0)
	cfg.Timeout = 20 * time.Millisecond
	err := getJSON(context.Background(), cfg, newBreaker("t"), srv.URL, nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDoRequestRejectsBadConfig(t *testing.T) {
	_, err := DoRequest(context.Background(), HTTPClientConfig{}, newBreaker("t"), nil)
	assert.ErrorIs(t, err, errNoHTTPClient)

	_, err = DoRequest(context.Background(), HTTPClientConfig{Client: http.DefaultClient}, newBreaker("t"), nil)
	assert.ErrorIs(t, err, errInvalidConfig)
}
