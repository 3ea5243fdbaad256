package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"faclassifier/internal/classifier"

	"google.golang.org/genai"
)

// Gemini calls the Gemini API generateContent endpoint.
type Gemini struct {
	model   string
	baseURL string
}

func NewGemini(model, baseURL string) *Gemini {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultGeminiModel
	}

	return &Gemini{
		model:   model,
		baseURL: strings.TrimSpace(baseURL),
	}
}

func (g *Gemini) Generate(ctx context.Context, credential, prompt string) (string, error) {
	if err := checkCredential(credential); err != nil {
		return "", err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.baseURL,
		},
	})
	if err != nil {
		return "", classifier.ConfigurationError(fmt.Errorf("create gemini client: %w", err))
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if geminiKeyRejected(err) {
			return "", classifier.ConfigurationError(fmt.Errorf("generate content: %w", err))
		}
		return "", mapError(fmt.Errorf("generate content: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return "", classifier.CallError(fmt.Errorf("gemini returned no candidates: %w", classifier.ErrEmptyResponse))
	}

	return resp.Text(), nil
}

// The Gemini API reports an invalid key as 400 INVALID_ARGUMENT rather than 401.
func geminiKeyRejected(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "API key")
}
