package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/render"
)

var (
	askCrop   string
	askLang   string
	askLocate bool
	askSpeak  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a crop question",
	Long:  "Submits a typed question about a named crop and prints the advice with recommendations, weather, and market context.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if askLang == "" {
			askLang = cfg.Backend.DefaultLanguage
		}
		loc := acquireLocation(ctx, askLocate)

		req := model.QueryRequest{Chat: &model.ChatQuery{
			Text:         args[0],
			CropName:     askCrop,
			Location:     loc,
			LanguageHint: askLang,
		}}
		if err := req.Validate(); err != nil {
			return err
		}

		result := newClient().Submit(ctx, req)
		recordQuery(ctx, model.ModalityChat, args[0], askLang, result)

		render.Result(os.Stdout, &result)
		if askSpeak {
			playAudio(result.AudioResponse)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askCrop, "crop", "", "crop name (required)")
	askCmd.Flags().StringVar(&askLang, "lang", "", "response language (default from config)")
	askCmd.Flags().BoolVar(&askLocate, "locate", false, "attach device location")
	askCmd.Flags().BoolVar(&askSpeak, "speak", false, "play the synthesized audio response")
	_ = askCmd.MarkFlagRequired("crop")
	rootCmd.AddCommand(askCmd)
}
