// Package modality orchestrates the select→capture→submit→result lifecycle
// shared by the chat, image, and voice input channels.
package modality

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

// Phase is the controller's lifecycle phase.
type Phase int

const (
	// PhaseIdle means no modality is selected.
	PhaseIdle Phase = iota
	// PhaseCapturing means local-only input activity (typing, file
	// selection, recording) with no network effect.
	PhaseCapturing
	// PhaseSubmitting means a submission is in flight; the submit
	// affordance is gated for the duration.
	PhaseSubmitting
	// PhaseResultReady means a terminal result (success or error) is
	// available to render.
	PhaseResultReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCapturing:
		return "capturing"
	case PhaseSubmitting:
		return "submitting"
	case PhaseResultReady:
		return "result_ready"
	default:
		return "unknown"
	}
}

// ErrSubmissionInFlight gates a second submit while one is pending.
var ErrSubmissionInFlight = eris.New("a submission is already in flight")

// ErrNoModality is returned when submitting without a selected modality.
var ErrNoModality = eris.New("no modality selected")

// Submitter dispatches a query. Satisfied by the backend client.
type Submitter interface {
	Submit(ctx context.Context, req model.QueryRequest) model.QueryResult
}

// Controller owns which modality is active and drives the submit→result
// lifecycle. Every lifecycle carries an epoch token; a settling submission
// writes its result only while its token is still the active one, so a
// late response from an abandoned modality can never clobber current
// state.
type Controller struct {
	submitter Submitter

	mu       sync.Mutex
	modality model.Modality
	phase    Phase
	result   *model.QueryResult
	epoch    uuid.UUID
}

// NewController creates a controller in the Idle phase.
func NewController(submitter Submitter) *Controller {
	return &Controller{submitter: submitter, epoch: uuid.New()}
}

// Select activates a modality, clearing any previous result and loading
// state and invalidating in-flight submissions from earlier lifecycles.
func (c *Controller) Select(m model.Modality) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modality = m
	c.phase = PhaseCapturing
	c.result = nil
	c.epoch = uuid.New()
}

// Submit validates the request locally and, when valid, dispatches it
// asynchronously. The returned channel closes when the lifecycle settles
// (including the stale case). Precondition failures return an error
// synchronously: nothing reaches the network and no error result is
// produced.
func (c *Controller) Submit(ctx context.Context, req model.QueryRequest) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.modality == "" {
		c.mu.Unlock()
		return nil, ErrNoModality
	}
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if err := req.Validate(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.phase = PhaseSubmitting
	token := c.epoch
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		result := c.submitter.Submit(ctx, req)
		c.settle(token, result)
	}()
	return done, nil
}

// settle is the sole writer of the result slot. It always leaves
// Submitting, either into ResultReady or (when the lifecycle token has
// moved on) by dropping the stale result on the floor.
func (c *Controller) settle(token uuid.UUID, result model.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != token {
		zap.L().Debug("discarding stale submission result",
			zap.String("token", token.String()),
		)
		return
	}
	c.result = &result
	c.phase = PhaseResultReady
}

// Reset starts a new query within the same modality: cleared input and
// result, back to Capturing. In-flight submissions from the previous
// lifecycle are invalidated.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modality == "" {
		return
	}
	c.phase = PhaseCapturing
	c.result = nil
	c.epoch = uuid.New()
}

// Back deselects the modality and returns to Idle.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modality = ""
	c.phase = PhaseIdle
	c.result = nil
	c.epoch = uuid.New()
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ActiveModality returns the selected modality, or "" in Idle.
func (c *Controller) ActiveModality() model.Modality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modality
}

// Loading reports whether a submission is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseSubmitting
}

// Result returns the settled result, or nil before ResultReady.
func (c *Controller) Result() *model.QueryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}
