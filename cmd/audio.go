package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/audio"
)

// playAudio plays a synthesized response payload and blocks until
// playback finishes. A missing payload is a no-op.
func playAudio(payload string) {
	if payload == "" {
		zap.L().Info("no audio response to play")
		return
	}

	controller := audio.NewController(audio.NewExecPlayer(cfg.Audio.PlayerPath))
	controller.Play(payload)

	for controller.Playing() {
		time.Sleep(100 * time.Millisecond)
	}
}
