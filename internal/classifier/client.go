package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider generates text for a single prompt. Implementations must build
// their SDK client from the credential on every call.
type Provider interface {
	Generate(ctx context.Context, credential, prompt string) (string, error)
}

// Client sends abstracts to a Provider using the fixed classification prompt.
type Client struct {
	provider Provider
	timeout  time.Duration
}

// NewClient returns a Client. A zero timeout leaves the call bounded only by
// the caller's context.
func NewClient(p Provider, timeout time.Duration) *Client {
	return &Client{
		provider: p,
		timeout:  timeout,
	}
}

// Classify issues exactly one provider request and always returns an outcome.
// Inputs are expected to have passed Validate already.
func (c *Client) Classify(ctx context.Context, credential, text string) Outcome {
	if c == nil || c.provider == nil {
		return failure(ConfigurationError(ErrNoProvider))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.generate(ctx, credential, BuildPrompt(text))
	if err != nil {
		return failure(err)
	}

	return Success(strings.TrimSpace(out))
}

func (c *Client) generate(ctx context.Context, credential, prompt string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = CallError(fmt.Errorf("provider panicked: %v", r))
		}
	}()

	return c.provider.Generate(ctx, credential, prompt)
}
