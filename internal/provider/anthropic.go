package provider

import (
	"context"
	"fmt"
	"strings"

	"faclassifier/internal/classifier"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens int64 = 256

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	model   string
	baseURL string
}

func NewAnthropic(model, baseURL string) *Anthropic {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultAnthropicModel
	}

	return &Anthropic{
		model:   model,
		baseURL: strings.TrimSpace(baseURL),
	}
}

func (a *Anthropic) Generate(ctx context.Context, credential, prompt string) (string, error) {
	if err := checkCredential(credential); err != nil {
		return "", err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(credential),
		option.WithMaxRetries(0),
	}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}

	client := anthropic.NewClient(opts...)

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", mapError(fmt.Errorf("create message: %w", err))
	}

	if len(msg.Content) == 0 {
		return "", classifier.CallError(fmt.Errorf("anthropic returned no content: %w", classifier.ErrEmptyResponse))
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	return b.String(), nil
}
