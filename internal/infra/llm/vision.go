package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"

	"smart-mirror/internal/application"
)

// Vision gives outfit feedback on a camera frame.
type Vision struct {
	client openai.Client
	model  string
}

func NewVision(cfg OpenAIConfig, httpClient *http.Client) *Vision {
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	return &Vision{
		client: openai.NewClient(clientOptions(cfg, httpClient)...),
		model:  cfg.Model,
	}
}

type adviceJSON struct {
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

func (v *Vision) Advise(ctx context.Context, imageDataURL string) (application.OutfitAdvice, error) {
	resp, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(VisionPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart("How does my outfit look?"),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageDataURL}),
			}),
		},
		Model: openai.ChatModel(v.model),
	})
	if err != nil {
		return application.OutfitAdvice{}, fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return application.OutfitAdvice{}, fmt.Errorf("no choices in response")
	}
	return ParseAdvice(resp.Choices[0].Message.Content), nil
}

// ParseAdvice reads the JSON reply, falling back to using the whole text as
// the description.
func ParseAdvice(raw string) application.OutfitAdvice {
	var a adviceJSON
	if err := json.Unmarshal([]byte(stripFences(raw)), &a); err != nil || (a.Description == "" && a.Suggestion == "") {
		return application.OutfitAdvice{Description: strings.TrimSpace(raw)}
	}
	return application.OutfitAdvice{Description: a.Description, Suggestion: a.Suggestion}
}
