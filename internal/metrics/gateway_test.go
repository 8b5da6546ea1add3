package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCount_Backend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "q3-launch", r.URL.Query().Get("webinarId"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "count": 57}`))
	}))
	defer ts.Close()

	g := NewGateway(ts.URL, time.Second, nil)
	res := g.FetchCount(context.Background(), "q3-launch")

	assert.Equal(t, 57, res.Count)
	assert.Equal(t, SourceBackend, res.Source)
}

func TestFetchCount_TimeoutFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"success": true, "count": 57}`))
	}))
	defer ts.Close()

	g := NewGateway(ts.URL, 20*time.Millisecond, nil)
	res := g.FetchCount(context.Background(), "q3-launch")

	assert.Equal(t, 0, res.Count)
	assert.Equal(t, SourceFallback, res.Source)
}

func TestFetchCount_ServerErrorFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	g := NewGateway(ts.URL, time.Second, nil)
	res := g.FetchCount(context.Background(), "q3-launch")
	assert.Equal(t, SourceFallback, res.Source)
}

func TestFetchCount_SchemaValidationFallsBack(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"success false", `{"success": false, "count": 10}`},
		{"negative count", `{"success": true, "count": -3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			g := NewGateway(ts.URL, time.Second, nil)
			res := g.FetchCount(context.Background(), "q3-launch")
			assert.Equal(t, 0, res.Count)
			assert.Equal(t, SourceFallback, res.Source)
		})
	}
}

func TestFetchCount_LastKnownServedOnFailure(t *testing.T) {
	healthy := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success": true, "count": 31}`))
	}))
	defer ts.Close()

	g := NewGateway(ts.URL, time.Second, nil)

	res := g.FetchCount(context.Background(), "q3-launch")
	require.Equal(t, SourceBackend, res.Source)
	require.Equal(t, 31, res.Count)

	healthy = false
	res = g.FetchCount(context.Background(), "q3-launch")
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, 31, res.Count)

	// Other webinars have no last-known value and degrade to zero.
	res = g.FetchCount(context.Background(), "other")
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, SourceFallback, res.Source)
}

func TestFetchCount_NoBackendConfigured(t *testing.T) {
	g := NewGateway("", time.Second, nil)
	res := g.FetchCount(context.Background(), "q3-launch")
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, SourceFallback, res.Source)
}
