// Package audio plays synthesized-speech payloads returned by the backend.
package audio

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PayloadKind classifies the audio_response payload shape.
type PayloadKind string

const (
	// KindDataURI is a data:audio/...;base64,... URI.
	KindDataURI PayloadKind = "data_uri"
	// KindBase64 is bare base64-encoded audio bytes.
	KindBase64 PayloadKind = "base64"
	// KindURL is a directly playable URL.
	KindURL PayloadKind = "url"
)

// base64Alphabet matches a pure base64 run. Only a short leading slice of
// the payload is tested so multi-megabyte payloads are classified cheaply.
var base64Alphabet = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)

const classifySlice = 20

// ClassifyPayload detects the payload kind. Detection is total and
// mutually exclusive: data-URI prefix first, then the base64 test on a
// short leading slice, and URL otherwise.
func ClassifyPayload(payload string) PayloadKind {
	if strings.HasPrefix(payload, "data:audio") {
		return KindDataURI
	}
	head := payload
	if len(head) > classifySlice {
		head = head[:classifySlice]
	}
	if head != "" && base64Alphabet.MatchString(head) {
		return KindBase64
	}
	return KindURL
}

// Player hands a playable source (file path or URL) to the platform audio
// output and blocks until end of media.
type Player interface {
	Play(ctx context.Context, source string) error
}

// Controller drives fire-and-forget playback of a single audio slot. A
// second Play stops the previous playback before starting its own, so at
// most one payload is audible at a time.
type Controller struct {
	player Player
	tmpDir string

	mu      sync.Mutex
	playing bool
	epoch   int
	cancel  context.CancelFunc
}

// NewController creates a playback controller. A nil player models an
// unsupported platform; Play becomes a logged no-op.
func NewController(player Player) *Controller {
	return &Controller{player: player, tmpDir: os.TempDir()}
}

// Play starts playback of a payload and returns immediately. The playing
// flag stays true until the underlying player reaches end of media or the
// slot is taken over by a newer Play.
func (c *Controller) Play(payload string) {
	if payload == "" {
		return
	}
	if c.player == nil {
		zap.L().Warn("audio playback not supported on this platform")
		return
	}

	source, cleanup, err := c.materialize(payload)
	if err != nil {
		zap.L().Warn("audio payload rejected", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.epoch++
	epoch := c.epoch
	c.playing = true
	c.mu.Unlock()

	go func() {
		defer cleanup()
		if err := c.player.Play(ctx, source); err != nil && ctx.Err() == nil {
			zap.L().Warn("audio playback failed", zap.Error(err))
		}

		// End of media: clear the flag only if this playback still owns
		// the slot.
		c.mu.Lock()
		if c.epoch == epoch {
			c.playing = false
			c.cancel = nil
		}
		c.mu.Unlock()
	}()
}

// Playing reports whether a playback is in flight.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Stop cancels the current playback, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.playing = false
	c.epoch++
}

// materialize turns a payload into a player source: URLs pass through,
// encoded payloads are decoded into a temp file removed after playback.
func (c *Controller) materialize(payload string) (source string, cleanup func(), err error) {
	noop := func() {}

	switch ClassifyPayload(payload) {
	case KindURL:
		return payload, noop, nil

	case KindDataURI:
		_, encoded, found := strings.Cut(payload, ",")
		if !found {
			return "", noop, eris.New("audio: malformed data URI")
		}
		return c.decodeToFile(encoded)

	default: // KindBase64
		return c.decodeToFile(payload)
	}
}

func (c *Controller) decodeToFile(encoded string) (string, func(), error) {
	noop := func() {}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", noop, eris.Wrap(err, "audio: decode base64 payload")
	}

	f, err := os.CreateTemp(c.tmpDir, "agriagent-audio-*.mp3")
	if err != nil {
		return "", noop, eris.Wrap(err, "audio: create temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", noop, eris.Wrap(err, "audio: write temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", noop, eris.Wrap(err, "audio: close temp file")
	}

	path := f.Name()
	return path, func() { os.Remove(filepath.Clean(path)) }, nil
}
