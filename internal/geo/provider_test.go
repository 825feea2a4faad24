package geo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

type fakeLocator struct {
	coords model.Coordinates
	err    error
	calls  atomic.Int64
}

func (f *fakeLocator) Locate(context.Context) (model.Coordinates, error) {
	f.calls.Add(1)
	return f.coords, f.err
}

func TestProvider_AcquireSuccess(t *testing.T) {
	loc := &fakeLocator{coords: model.Coordinates{Lat: 30.9, Lng: 75.85}}
	p := NewProvider(loc)

	got := p.Acquire(context.Background())
	assert.Equal(t, model.Coordinates{Lat: 30.9, Lng: 75.85}, got)
	assert.Empty(t, p.Warning())
}

func TestProvider_AcquireRunsOnce(t *testing.T) {
	loc := &fakeLocator{coords: model.Coordinates{Lat: 1, Lng: 2}}
	p := NewProvider(loc)

	for i := 0; i < 5; i++ {
		p.Acquire(context.Background())
	}
	assert.Equal(t, int64(1), loc.calls.Load())
}

func TestProvider_FailureYieldsSentinel(t *testing.T) {
	loc := &fakeLocator{err: errors.New("permission denied")}
	p := NewProvider(loc)

	got := p.Acquire(context.Background())
	assert.True(t, got.IsZero())
	assert.Contains(t, p.Warning(), "Could not get your location")

	// No retry: a later call does not probe again.
	got = p.Acquire(context.Background())
	assert.True(t, got.IsZero())
	assert.Equal(t, int64(1), loc.calls.Load())
}

func TestProvider_NilLocatorIsCapabilityAbsent(t *testing.T) {
	p := NewProvider(nil)

	got := p.Acquire(context.Background())
	assert.True(t, got.IsZero())
	assert.Contains(t, p.Warning(), "not supported")
}

func TestIPLocator_Locate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"status": "success", "lat": 28.6139, "lon": 77.209}`)
	}))
	defer srv.Close()

	l := NewIPLocator(srv.URL, time.Second)
	coords, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 28.6139, coords.Lat, 0.0001)
	assert.InDelta(t, 77.209, coords.Lng, 0.0001)
}

func TestIPLocator_FailStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"status": "fail", "message": "private range"}`)
	}))
	defer srv.Close()

	l := NewIPLocator(srv.URL, time.Second)
	_, err := l.Locate(context.Background())
	assert.ErrorContains(t, err, `probe status "fail"`)
}

func TestIPLocator_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	l := NewIPLocator(srv.URL, time.Second)
	_, err := l.Locate(context.Background())
	assert.ErrorContains(t, err, "status 429")
}
