package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/render"
)

var (
	diagnoseLang   string
	diagnoseLocate bool
	diagnoseSpeak  bool
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [image]",
	Short: "Diagnose a crop disease from a photo",
	Long:  "Uploads a crop image for disease analysis and prints the diagnosis with treatment recommendations.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read image %s", args[0])
		}

		if diagnoseLang == "" {
			diagnoseLang = cfg.Backend.DefaultLanguage
		}
		loc := acquireLocation(ctx, diagnoseLocate)

		req := model.QueryRequest{Image: &model.ImageQuery{
			ImageBytes:   data,
			Filename:     filepath.Base(args[0]),
			Location:     loc,
			LanguageHint: diagnoseLang,
			CapturedAt:   time.Now(),
		}}
		if err := req.Validate(); err != nil {
			return err
		}

		result := newClient().Submit(ctx, req)
		recordQuery(ctx, model.ModalityImage, filepath.Base(args[0]), diagnoseLang, result)

		render.Result(os.Stdout, &result)
		if diagnoseSpeak {
			playAudio(result.AudioResponse)
		}
		return nil
	},
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseLang, "lang", "", "response language (default from config)")
	diagnoseCmd.Flags().BoolVar(&diagnoseLocate, "locate", false, "attach device location")
	diagnoseCmd.Flags().BoolVar(&diagnoseSpeak, "speak", false, "play the synthesized audio response")
	rootCmd.AddCommand(diagnoseCmd)
}
