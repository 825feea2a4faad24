package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/render"
	"github.com/agri-agent/agriagent-cli/internal/speech"
)

var (
	voiceLang   string
	voiceLocate bool
	voiceSpeak  bool
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Ask by speaking into the microphone",
	Long:  "Captures microphone audio, streams it to the speech recognizer, and submits the recognized transcript as a query.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Speech.ASREndpoint == "" {
			return speech.ErrNoRecognizer
		}
		if voiceLang == "" {
			voiceLang = cfg.Backend.DefaultLanguage
		}
		loc := acquireLocation(ctx, voiceLocate)

		recognizer := speech.NewWSRecognizer(
			cfg.Speech.ASREndpoint,
			cfg.Speech.APIKey,
			cfg.Speech.SampleRate,
			speech.MicSource("ffmpeg", cfg.Speech.SampleRate),
		)

		client := newClient()
		resultCh := make(chan model.QueryResult, 1)
		adapter := speech.NewAdapter(speech.Config{
			Recognizer:      recognizer,
			Detector:        client,
			Submitter:       client,
			DefaultLanguage: voiceLang,
			Location:        loc,
			OnResult:        func(r model.QueryResult) { resultCh <- r },
		})

		zap.L().Info("listening, speak now")
		if err := adapter.Start(ctx); err != nil {
			return err
		}

		var result model.QueryResult
		select {
		case result = <-resultCh:
		case <-ctx.Done():
			adapter.Stop()
			return eris.Wrap(ctx.Err(), "voice capture interrupted")
		}

		recordQuery(ctx, model.ModalityVoice, result.Query, result.Language, result)

		render.Result(os.Stdout, &result)
		if voiceSpeak {
			playAudio(result.AudioResponse)
		}
		return nil
	},
}

func init() {
	voiceCmd.Flags().StringVar(&voiceLang, "lang", "", "fallback language when detection fails")
	voiceCmd.Flags().BoolVar(&voiceLocate, "locate", false, "attach device location")
	voiceCmd.Flags().BoolVar(&voiceSpeak, "speak", false, "play the synthesized audio response")
	rootCmd.AddCommand(voiceCmd)
}
