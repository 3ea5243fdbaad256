package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"faclassifier/internal/domain"
)

type Source string

const (
	SourceWeb  Source = "web"
	SourceAPI  Source = "api"
	SourceBot  Source = "bot"
	SourceFeed Source = "feed"
)

const logDigestLen = 12

// Request is one classification asked for by a front-end.
type Request struct {
	Credential string
	Text       string
	Source     Source
	UserID     int64
}

// Recorder stores classification attempts that passed the input gate.
type Recorder interface {
	RecordClassification(ctx context.Context, c *domain.Classification) error
}

// Service runs the input gate and then the Client, and records the result.
type Service struct {
	client   *Client
	recorder Recorder
	provider string
	model    string
	log      *slog.Logger
}

// NewService builds a Service. recorder may be nil.
func NewService(
	client *Client,
	recorder Recorder,
	provider string,
	model string,
	log *slog.Logger,
) *Service {
	return &Service{
		client:   client,
		recorder: recorder,
		provider: provider,
		model:    model,
		log:      log,
	}
}

func (s *Service) Provider() string {
	return s.provider
}

func (s *Service) Model() string {
	return s.model
}

// Classify never calls the provider when the gate rejects the input.
func (s *Service) Classify(ctx context.Context, req Request) Outcome {
	digest := abstractDigest(req.Text)

	if v := Validate(req.Credential, req.Text); v != Valid {
		s.log.InfoContext(ctx, "Classification is rejected",
			"reason", v.String(),
			"source", string(req.Source),
			"userID", req.UserID,
			"abstractLen", len(req.Text))

		return rejection(v)
	}

	start := time.Now()
	outcome := s.client.Classify(ctx, req.Credential, req.Text)
	elapsed := time.Since(start)

	if outcome.OK() {
		s.log.InfoContext(ctx, "Abstract is classified",
			"source", string(req.Source),
			"userID", req.UserID,
			"provider", s.provider,
			"model", s.model,
			"abstractSHA256", digest[:logDigestLen],
			"abstractLen", len(req.Text),
			"category", outcome.Category,
			"elapsedMs", elapsed.Milliseconds())
	} else {
		s.log.WarnContext(ctx, "Failed to classify abstract",
			"kind", outcome.Kind.String(),
			"message", outcome.Message,
			"source", string(req.Source),
			"userID", req.UserID,
			"provider", s.provider,
			"model", s.model,
			"abstractSHA256", digest[:logDigestLen],
			"elapsedMs", elapsed.Milliseconds())
	}

	s.record(ctx, req, digest, outcome)

	return outcome
}

func (s *Service) record(ctx context.Context, req Request, digest string, outcome Outcome) {
	if s.recorder == nil {
		return
	}

	entry := &domain.Classification{
		Source:         string(req.Source),
		UserID:         req.UserID,
		AbstractSHA256: digest,
		AbstractLen:    len(req.Text),
		Category:       outcome.Category,
		ErrorKind:      outcome.Kind.String(),
		Provider:       s.provider,
		Model:          s.model,
		CreatedAt:      time.Now().UTC(),
	}

	// History is best effort; the outcome is already decided.
	if err := s.recorder.RecordClassification(context.WithoutCancel(ctx), entry); err != nil {
		s.log.ErrorContext(ctx, "Failed to record classification",
			"error", err,
			"source", string(req.Source),
			"userID", req.UserID)
	}
}

func abstractDigest(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
