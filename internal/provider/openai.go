package provider

import (
	"context"
	"fmt"
	"strings"

	"faclassifier/internal/classifier"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// OpenAI calls OpenAI's Responses API.
type OpenAI struct {
	model   string
	baseURL string
}

func NewOpenAI(model, baseURL string) *OpenAI {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAI{
		model:   model,
		baseURL: strings.TrimSpace(baseURL),
	}
}

func (o *OpenAI) Generate(ctx context.Context, credential, prompt string) (string, error) {
	if err := checkCredential(credential); err != nil {
		return "", err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(credential),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}

	client := openai.NewClient(opts...)

	resp, err := client.Responses.New(ctx, responses.ResponseNewParams{
		Model: o.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	})
	if err != nil {
		return "", mapError(fmt.Errorf("do request: %w", err))
	}

	if len(resp.Output) == 0 {
		return "", classifier.CallError(fmt.Errorf("openai returned no output: %w", classifier.ErrEmptyResponse))
	}

	return resp.OutputText(), nil
}
