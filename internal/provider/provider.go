package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"faclassifier/internal/classifier"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

const (
	NameGemini    = "gemini"
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"

	DefaultGeminiModel    = "gemini-1.5-pro-latest"
	DefaultOpenAIModel    = "gpt-5-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// errEmptyCredential is returned before any SDK client is built. The SDKs
// fall back to their own API key environment variables when handed an empty
// key, which would bill a process-wide key the caller never supplied.
var errEmptyCredential = errors.New("API key is empty")

// Config selects and configures one provider. The credential is not part of
// it; every Generate call receives its own.
type Config struct {
	Name    string
	Model   string
	BaseURL string
}

// New returns the provider named by cfg.Name.
func New(cfg Config) (classifier.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))

	switch name {
	case NameGemini, "":
		return NewGemini(cfg.Model, cfg.BaseURL), nil
	case NameOpenAI:
		return NewOpenAI(cfg.Model, cfg.BaseURL), nil
	case NameAnthropic:
		return NewAnthropic(cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameOpenAI:
		return DefaultOpenAIModel
	case NameAnthropic:
		return DefaultAnthropicModel
	default:
		return DefaultGeminiModel
	}
}

func checkCredential(credential string) error {
	if credential == "" {
		return classifier.ConfigurationError(errEmptyCredential)
	}

	return nil
}

// mapError tags an SDK error with a classifier kind. Credentials rejected by
// the provider count as configuration failures, everything else as a failed
// call.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if isAuthStatus(statusCode(err)) {
		return classifier.ConfigurationError(err)
	}

	return classifier.CallError(err)
}

func statusCode(err error) int {
	var (
		geminiErr    genai.APIError
		geminiErrPtr *genai.APIError
		openaiErr    *openai.Error
		anthropicErr *anthropic.Error
	)

	switch {
	case errors.As(err, &geminiErr):
		return geminiErr.Code
	case errors.As(err, &geminiErrPtr):
		return geminiErrPtr.Code
	case errors.As(err, &openaiErr):
		return openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		return anthropicErr.StatusCode
	default:
		return 0
	}
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
