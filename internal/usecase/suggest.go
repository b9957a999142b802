package usecase

import (
	"context"
	"errors"
	"log/slog"

	"campaign-assistant/internal/domain"
)

// ChatTransport is the provider capability the suggestion pipeline needs.
// Errors that carry an HTTP response should implement HTTPStatusCode() int;
// errors without one are treated as network-level failures.
type ChatTransport interface {
	SubmitChat(ctx context.Context, req domain.SuggestionRequest) (domain.ProviderResponse, error)
	ListModels(ctx context.Context) ([]domain.Model, error)
}

// SuggestionService produces marketing copy suggestions for campaigns. It
// holds only immutable configuration and is safe for concurrent use.
type SuggestionService struct {
	transport ChatTransport
	cfg       SuggestionConfig
	retry     retrier
	logger    *slog.Logger
}

type SuggestionOption func(*SuggestionService)

// WithLogger sets the logger used for retry and degraded-response events.
func WithLogger(l *slog.Logger) SuggestionOption {
	return func(s *SuggestionService) {
		if l != nil {
			s.logger = l
		}
	}
}

// withSleep replaces the backoff wait; tests use it to make retries instant.
func withSleep(fn sleepFunc) SuggestionOption {
	return func(s *SuggestionService) {
		s.retry.sleep = fn
	}
}

func NewSuggestionService(t ChatTransport, cfg SuggestionConfig, opts ...SuggestionOption) (*SuggestionService, error) {
	if t == nil {
		return nil, errors.New("usecase: chat transport must not be nil")
	}
	s := &SuggestionService{
		transport: t,
		cfg:       cfg,
		retry:     retrier{transport: t, sleep: sleepContext},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.logger = s.logger
	return s, nil
}

// ProvideSuggestion asks the provider for an improved version of the
// campaign copy. Errors are always *Error.
func (s *SuggestionService) ProvideSuggestion(ctx context.Context, c domain.Campaign) (string, error) {
	req, err := buildSuggestionRequest(c, s.cfg)
	if err != nil {
		return "", err
	}
	resp, err := s.retry.send(ctx, req)
	if err != nil {
		return "", err
	}
	return normalizeResponse(ctx, s.logger, resp)
}

// GetSupportedModels lists the model identifiers the provider exposes.
func (s *SuggestionService) GetSupportedModels(ctx context.Context) ([]string, error) {
	models, err := s.transport.ListModels(ctx)
	if err != nil {
		return nil, newError(ErrorModelList, "provider_list_models", err)
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
