// Package speech captures a spoken query as a single final transcript and
// drives it through the submission pipeline.
package speech

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

// State is the adapter's lifecycle state.
type State int

const (
	// Idle means no capture is in progress.
	Idle State = iota
	// Listening means the recognizer is capturing audio.
	Listening
	// Processing means a final transcript was produced and is being
	// detected/submitted.
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// ErrNoRecognizer is returned by Start when the platform has no speech
// capability configured.
var ErrNoRecognizer = eris.New("speech recognition is not available on this device")

// ErrAlreadyListening is returned by Start while a capture is in progress.
var ErrAlreadyListening = eris.New("a voice capture is already in progress")

// Recognizer is the platform speech capability: it blocks until one final
// transcript is available. Interim hypotheses are the recognizer's own
// concern and are never surfaced.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// Submitter dispatches a captured query. Satisfied by the backend client.
type Submitter interface {
	Submit(ctx context.Context, req model.QueryRequest) model.QueryResult
}

// Detector identifies the language of a transcript. Satisfied by the
// backend client; optional.
type Detector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// Adapter is the single-shot voice capture state machine:
// Idle → Listening → (Result | Error) → Idle. A result transitions through
// Processing (language detection, then submission) before returning to
// Idle; Stop discards an in-flight capture without emitting anything.
type Adapter struct {
	recognizer      Recognizer
	detector        Detector
	submitter       Submitter
	defaultLanguage string
	location        model.Coordinates
	onResult        func(model.QueryResult)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// Config assembles an Adapter.
type Config struct {
	Recognizer      Recognizer
	Detector        Detector
	Submitter       Submitter
	DefaultLanguage string
	Location        model.Coordinates
	// OnResult receives the terminal result of a completed capture
	// (success or error). Never called for a stopped capture.
	OnResult func(model.QueryResult)
}

// NewAdapter creates a voice capture adapter.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{
		recognizer:      cfg.Recognizer,
		detector:        cfg.Detector,
		submitter:       cfg.Submitter,
		defaultLanguage: cfg.DefaultLanguage,
		location:        cfg.Location,
		onResult:        cfg.OnResult,
	}
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start begins a capture. It returns ErrNoRecognizer when the capability
// is absent and ErrAlreadyListening when a capture is in flight; both are
// no-ops on the state machine.
func (a *Adapter) Start(ctx context.Context) error {
	if a.recognizer == nil {
		return ErrNoRecognizer
	}

	a.mu.Lock()
	if a.state != Idle {
		a.mu.Unlock()
		return ErrAlreadyListening
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.state = Listening
	a.cancel = cancel
	a.mu.Unlock()

	go a.run(runCtx)
	return nil
}

// Stop forces Listening → Idle, discarding any in-flight recognition. No
// result is emitted and no submission happens. Stopping while Idle or
// Processing is a no-op: once a final transcript exists, the submission
// runs to completion.
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Listening {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.state = Idle
}

func (a *Adapter) run(ctx context.Context) {
	transcript, err := a.recognizer.Listen(ctx)

	// A Stop already moved the machine to Idle; discard whatever the
	// recognizer produced.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		zap.L().Warn("speech recognition failed", zap.Error(err))
		a.finish(model.ErrorResult(err.Error()))
		return
	}

	a.mu.Lock()
	if a.state != Listening {
		a.mu.Unlock()
		return
	}
	a.state = Processing
	a.mu.Unlock()

	lang := a.detectLanguage(ctx, transcript)

	result := a.submitter.Submit(ctx, model.QueryRequest{
		Voice: &model.VoiceQuery{
			Transcript:   transcript,
			Location:     a.location,
			LanguageHint: lang,
		},
	})
	result.Query = transcript
	a.finish(result)
}

func (a *Adapter) finish(result model.QueryResult) {
	a.mu.Lock()
	a.state = Idle
	a.cancel = nil
	a.mu.Unlock()

	if a.onResult != nil {
		a.onResult(result)
	}
}

// detectLanguage asks the backend for the transcript's language and falls
// back to the normalized default hint when detection is unavailable or
// failing.
func (a *Adapter) detectLanguage(ctx context.Context, transcript string) string {
	fallback := NormalizeLanguage(a.defaultLanguage)

	if a.detector == nil {
		return fallback
	}
	detected, err := a.detector.DetectLanguage(ctx, transcript)
	if err != nil || detected == "" {
		zap.L().Debug("language detection unavailable", zap.Error(err))
		return fallback
	}
	return NormalizeLanguage(detected)
}

// NormalizeLanguage reduces a language hint to its base tag ("hi-IN" →
// "hi"). Unparseable hints normalize to "en".
func NormalizeLanguage(hint string) string {
	tag, err := language.Parse(hint)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}
