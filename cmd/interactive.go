package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agri-agent/agriagent-cli/internal/modality"
	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/render"
)

var (
	interactiveCrop   string
	interactiveLang   string
	interactiveLocate bool
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run an interactive advice session",
	Long: `Starts a line-based session. Pick an input mode with "chat" or "image",
then enter a question or an image path. "new" starts another query in the
same mode, "back" returns to mode selection, "quit" exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if interactiveLang == "" {
			interactiveLang = cfg.Backend.DefaultLanguage
		}
		loc := acquireLocation(ctx, interactiveLocate)
		controller := modality.NewController(newClient())

		fmt.Println(`Modes: chat, image. Commands: new, back, quit.`)
		scanner := bufio.NewScanner(os.Stdin)
		prompt(controller)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
			case "quit", "exit":
				return nil
			case "chat":
				controller.Select(model.ModalityChat)
			case "image":
				controller.Select(model.ModalityImage)
			case "new":
				controller.Reset()
			case "back":
				controller.Back()
			default:
				req, query, err := buildRequest(controller.ActiveModality(), line, loc)
				if err != nil {
					fmt.Println(err)
					break
				}

				done, err := controller.Submit(ctx, req)
				if err != nil {
					fmt.Println(err)
					break
				}
				<-done

				if result := controller.Result(); result != nil {
					if result.Query == "" {
						result.Query = query
					}
					render.Result(os.Stdout, result)
					recordQuery(ctx, controller.ActiveModality(), query, interactiveLang, *result)
				}
			}
			prompt(controller)
		}
		return scanner.Err()
	},
}

func prompt(c *modality.Controller) {
	if m := c.ActiveModality(); m != "" {
		fmt.Printf("[%s] > ", m)
		return
	}
	fmt.Print("> ")
}

func buildRequest(m model.Modality, line string, loc model.Coordinates) (model.QueryRequest, string, error) {
	switch m {
	case model.ModalityChat:
		return model.QueryRequest{Chat: &model.ChatQuery{
			Text:         line,
			CropName:     interactiveCrop,
			Location:     loc,
			LanguageHint: interactiveLang,
		}}, line, nil
	case model.ModalityImage:
		data, err := os.ReadFile(line)
		if err != nil {
			return model.QueryRequest{}, "", fmt.Errorf("read image %s: %w", line, err)
		}
		return model.QueryRequest{Image: &model.ImageQuery{
			ImageBytes:   data,
			Filename:     filepath.Base(line),
			Location:     loc,
			LanguageHint: interactiveLang,
			CapturedAt:   time.Now(),
		}}, filepath.Base(line), nil
	default:
		return model.QueryRequest{}, "", fmt.Errorf("pick a mode first: chat or image")
	}
}

func init() {
	interactiveCmd.Flags().StringVar(&interactiveCrop, "crop", "", "crop name for chat questions")
	interactiveCmd.Flags().StringVar(&interactiveLang, "lang", "", "response language (default from config)")
	interactiveCmd.Flags().BoolVar(&interactiveLocate, "locate", false, "attach device location")
	rootCmd.AddCommand(interactiveCmd)
}
