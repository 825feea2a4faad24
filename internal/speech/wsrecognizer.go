package speech

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// pcmChunkSize is 0.2s of 16kHz 16-bit mono audio.
const pcmChunkSize = 3200

// AudioSource opens a PCM capture stream. The recognizer reads it until
// EOF (capture device closed) or the capture context ends.
type AudioSource func(ctx context.Context) (io.ReadCloser, error)

// MicSource captures microphone PCM through ffmpeg. The returned stream
// ends when ctx is cancelled.
func MicSource(binPath string, sampleRate int) AudioSource {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return func(ctx context.Context) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, binPath,
			"-loglevel", "quiet",
			"-f", "alsa", "-i", "default",
			"-ar", strconv.Itoa(sampleRate),
			"-ac", "1",
			"-f", "s16le", "-",
		)
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, eris.Wrap(err, "speech: open mic pipe")
		}
		if err := cmd.Start(); err != nil {
			return nil, eris.Wrapf(err, "speech: start %s", binPath)
		}
		return pipe, nil
	}
}

// wsConfig is the session setup message sent after the dial.
type wsConfig struct {
	UID             string `json:"uid"`
	Format          string `json:"format"`
	SampleRate      int    `json:"sample_rate"`
	Bits            int    `json:"bits"`
	Channel         int    `json:"channel"`
	MaxAlternatives int    `json:"max_alternatives"`
	InterimResults  bool   `json:"interim_results"`
}

// wsResult is a recognition message from the server.
type wsResult struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error,omitempty"`
}

// WSRecognizer streams microphone PCM to a websocket ASR endpoint and
// returns the single final transcript. Interim results are read and
// discarded.
type WSRecognizer struct {
	Endpoint   string
	APIKey     string
	SampleRate int
	Source     AudioSource
	Dialer     *websocket.Dialer
}

// NewWSRecognizer creates a websocket recognizer.
func NewWSRecognizer(endpoint, apiKey string, sampleRate int, source AudioSource) *WSRecognizer {
	return &WSRecognizer{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		SampleRate: sampleRate,
		Source:     source,
		Dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Listen captures audio and blocks until the server produces a final
// transcript, the source ends, or ctx is cancelled.
func (r *WSRecognizer) Listen(ctx context.Context) (string, error) {
	header := http.Header{}
	if r.APIKey != "" {
		header.Set("Authorization", "Bearer "+r.APIKey)
	}

	conn, _, err := r.Dialer.DialContext(ctx, r.Endpoint, header)
	if err != nil {
		return "", eris.Wrap(err, "speech: dial asr endpoint")
	}
	defer conn.Close()

	cfg := wsConfig{
		UID:             uuid.New().String(),
		Format:          "pcm",
		SampleRate:      r.SampleRate,
		Bits:            16,
		Channel:         1,
		MaxAlternatives: 1,
		InterimResults:  false,
	}
	if err := conn.WriteJSON(cfg); err != nil {
		return "", eris.Wrap(err, "speech: send asr config")
	}

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- r.streamAudio(streamCtx, conn)
	}()

	// Close the connection when ctx ends so the read loop unblocks.
	go func() {
		<-streamCtx.Done()
		conn.Close()
	}()

	for {
		var result wsResult
		if err := conn.ReadJSON(&result); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", eris.Wrap(err, "speech: read asr response")
		}
		if result.Error != "" {
			return "", eris.Errorf("speech: recognition error: %s", result.Error)
		}
		if !result.IsFinal {
			// Interim hypothesis; the adapter only accepts finals.
			continue
		}
		return result.Text, nil
	}
}

// streamAudio pumps PCM chunks to the server until the source ends.
func (r *WSRecognizer) streamAudio(ctx context.Context, conn *websocket.Conn) error {
	source, err := r.Source(ctx)
	if err != nil {
		return err
	}
	defer source.Close()

	buf := make([]byte, pcmChunkSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := source.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return eris.Wrap(werr, "speech: send audio chunk")
			}
		}
		if err == io.EOF {
			// Tell the server the utterance is complete.
			if werr := conn.WriteMessage(websocket.TextMessage, []byte(`{"end": true}`)); werr != nil {
				zap.L().Debug("asr end marker failed", zap.Error(werr))
			}
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "speech: read audio source")
		}
	}
}
