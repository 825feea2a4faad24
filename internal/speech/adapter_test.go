package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

// scriptedRecognizer blocks until released, then returns its transcript.
type scriptedRecognizer struct {
	transcript string
	err        error
	release    chan struct{}
}

func newScriptedRecognizer(transcript string, err error) *scriptedRecognizer {
	return &scriptedRecognizer{transcript: transcript, err: err, release: make(chan struct{})}
}

func (r *scriptedRecognizer) Listen(ctx context.Context) (string, error) {
	select {
	case <-r.release:
		return r.transcript, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type recordingSubmitter struct {
	mu       sync.Mutex
	requests []model.QueryRequest
	result   model.QueryResult
}

func (s *recordingSubmitter) Submit(_ context.Context, req model.QueryRequest) model.QueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.result
}

func (s *recordingSubmitter) submitted() []model.QueryRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.QueryRequest(nil), s.requests...)
}

type fakeDetector struct {
	language string
	err      error
}

func (d *fakeDetector) DetectLanguage(context.Context, string) (string, error) {
	return d.language, d.err
}

func waitForState(t *testing.T, a *Adapter, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("adapter did not reach state %s (now %s)", want, a.State())
}

func TestAdapter_FullCaptureLifecycle(t *testing.T) {
	rec := newScriptedRecognizer("what fertilizer for wheat", nil)
	sub := &recordingSubmitter{result: model.QueryResult{Response: "Use urea after first irrigation."}}

	var gotResult model.QueryResult
	done := make(chan struct{})

	a := NewAdapter(Config{
		Recognizer:      rec,
		Detector:        &fakeDetector{language: "pa"},
		Submitter:       sub,
		DefaultLanguage: "en",
		Location:        model.Coordinates{Lat: 30.9, Lng: 75.85},
		OnResult: func(r model.QueryResult) {
			gotResult = r
			close(done)
		},
	})

	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, Listening, a.State())

	close(rec.release)
	<-done

	assert.Equal(t, Idle, a.State())
	assert.Equal(t, "Use urea after first irrigation.", gotResult.Response)
	assert.Equal(t, "what fertilizer for wheat", gotResult.Query)

	reqs := sub.submitted()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Voice)
	assert.Equal(t, "what fertilizer for wheat", reqs[0].Voice.Transcript)
	assert.Equal(t, "pa", reqs[0].Voice.LanguageHint)
	assert.Equal(t, model.Coordinates{Lat: 30.9, Lng: 75.85}, reqs[0].Voice.Location)
}

func TestAdapter_StopBeforeResultDiscardsCapture(t *testing.T) {
	rec := newScriptedRecognizer("never delivered", nil)
	sub := &recordingSubmitter{}

	var resultSeen bool
	a := NewAdapter(Config{
		Recognizer: rec,
		Submitter:  sub,
		OnResult:   func(model.QueryResult) { resultSeen = true },
	})

	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, Listening, a.State())

	a.Stop()
	assert.Equal(t, Idle, a.State())

	// Even if the recognizer later produces something, nothing is
	// submitted or emitted.
	close(rec.release)
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, sub.submitted())
	assert.False(t, resultSeen)
	assert.Equal(t, Idle, a.State())
}

func TestAdapter_RecognizerErrorBecomesErrorResult(t *testing.T) {
	rec := newScriptedRecognizer("", errors.New("no speech detected"))
	sub := &recordingSubmitter{}

	var gotResult model.QueryResult
	done := make(chan struct{})
	a := NewAdapter(Config{
		Recognizer: rec,
		Submitter:  sub,
		OnResult: func(r model.QueryResult) {
			gotResult = r
			close(done)
		},
	})

	require.NoError(t, a.Start(context.Background()))
	close(rec.release)
	<-done

	assert.True(t, gotResult.IsError())
	assert.Contains(t, gotResult.Error, "no speech detected")
	assert.Empty(t, sub.submitted())
	assert.Equal(t, Idle, a.State())
}

func TestAdapter_NoRecognizerRejectsStart(t *testing.T) {
	a := NewAdapter(Config{Submitter: &recordingSubmitter{}})

	err := a.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoRecognizer)
	assert.Equal(t, Idle, a.State())
}

func TestAdapter_StartWhileListeningRejected(t *testing.T) {
	rec := newScriptedRecognizer("x", nil)
	a := NewAdapter(Config{Recognizer: rec, Submitter: &recordingSubmitter{}})

	require.NoError(t, a.Start(context.Background()))
	err := a.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyListening)

	a.Stop()
}

func TestAdapter_DetectorFailureFallsBackToDefault(t *testing.T) {
	rec := newScriptedRecognizer("some question", nil)
	sub := &recordingSubmitter{result: model.QueryResult{Response: "ok"}}

	done := make(chan struct{})
	a := NewAdapter(Config{
		Recognizer:      rec,
		Detector:        &fakeDetector{err: errors.New("detector down")},
		Submitter:       sub,
		DefaultLanguage: "hi-IN",
		OnResult:        func(model.QueryResult) { close(done) },
	})

	require.NoError(t, a.Start(context.Background()))
	close(rec.release)
	<-done

	reqs := sub.submitted()
	require.Len(t, reqs, 1)
	assert.Equal(t, "hi", reqs[0].Voice.LanguageHint)
}

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hint string
		want string
	}{
		{"en", "en"},
		{"hi-IN", "hi"},
		{"pa", "pa"},
		{"en-US", "en"},
		{"", "en"},
		{"???", "en"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLanguage(tt.hint), "hint %q", tt.hint)
	}
}
