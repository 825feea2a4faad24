package audio

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

// ExecPlayer plays audio through an external player binary (ffplay by
// default). The command blocks until end of media, which is what the
// controller's end-of-media accounting relies on.
type ExecPlayer struct {
	binPath string
}

// NewExecPlayer creates an ExecPlayer. If binPath is empty, "ffplay" is
// used.
func NewExecPlayer(binPath string) *ExecPlayer {
	if binPath == "" {
		binPath = "ffplay"
	}
	return &ExecPlayer{binPath: binPath}
}

// Play runs the player against a file path or URL and waits for it to
// finish.
func (p *ExecPlayer) Play(ctx context.Context, source string) error {
	cmd := exec.CommandContext(ctx, p.binPath, "-nodisp", "-autoexit", "-loglevel", "quiet", source)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return eris.Wrapf(err, "audio: %s failed: %s", p.binPath, stderr.String())
	}
	return nil
}
