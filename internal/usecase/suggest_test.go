package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"campaign-assistant/internal/domain"
)

type transportResult struct {
	resp domain.ProviderResponse
	err  error
}

type fakeTransport struct {
	mu        sync.Mutex
	results   []transportResult
	calls     int
	requests  []domain.SuggestionRequest
	models    []domain.Model
	modelsErr error
}

func (f *fakeTransport) SubmitChat(_ context.Context, req domain.SuggestionRequest) (domain.ProviderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.results) == 0 {
		return domain.ProviderResponse{}, errors.New("no transport result configured")
	}
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	return f.results[idx].resp, f.results[idx].err
}

func (f *fakeTransport) ListModels(_ context.Context) ([]domain.Model, error) {
	return f.models, f.modelsErr
}

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func textResponse(content string) transportResult {
	return transportResult{resp: domain.ProviderResponse{Choices: []domain.Choice{{Reply: domain.TextReply{Content: content}}}}}
}

func failWith(err error) transportResult {
	return transportResult{err: err}
}

func networkErr() error {
	return errors.New("dial tcp 127.0.0.1:443: connect: connection refused")
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d from /v1/chat/completions", e.code)
}

func (e *statusError) HTTPStatusCode() int {
	return e.code
}

func statusErr(code int) error {
	return &statusError{code: code}
}

type credentialErr struct {
	err error
}

func (e *credentialErr) Error() string         { return "load API key: " + e.err.Error() }
func (e *credentialErr) Unwrap() error         { return e.err }
func (e *credentialErr) CredentialFault() bool { return true }

func sampleCampaign() domain.Campaign {
	return domain.Campaign{
		UUID:        "campaign-123",
		Title:       "Spring sale",
		Description: "Twenty percent off every tumbler.",
		Groups:      []string{"students", "teachers"},
	}
}

func newTestSuggestionService(t *testing.T, tr ChatTransport, cfg SuggestionConfig) (*SuggestionService, *recordingSleep) {
	t.Helper()
	rec := &recordingSleep{}
	svc, err := NewSuggestionService(tr, cfg, withSleep(rec.sleep))
	require.NoError(t, err)
	return svc, rec
}

func expectCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	return usecaseErr
}

func TestNewSuggestionService_ValidatesTransport(t *testing.T) {
	_, err := NewSuggestionService(nil, SuggestionConfig{})
	require.Error(t, err)
}

func TestProvideSuggestion_PlainContent(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{textResponse("hello world")}}
	svc, _ := newTestSuggestionService(t, tr, SuggestionConfig{})

	out, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
	require.Equal(t, 1, tr.calls)
}

func TestProvideSuggestion_RequestShape(t *testing.T) {
	c := sampleCampaign()
	c.Description = strings.Repeat("ż", 5000)
	tr := &fakeTransport{results: []transportResult{textResponse("ok")}}
	svc, _ := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.ProvideSuggestion(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, tr.requests, 1)

	req := tr.requests[0]
	require.Equal(t, defaultSuggestModel, req.Model)
	require.Equal(t, 0.7, req.Temperature)
	require.Equal(t, 1000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	require.Equal(t, domain.RoleSystem, req.Messages[0].Role)
	require.Equal(t, domain.RoleUser, req.Messages[1].Role)
	for _, m := range req.Messages {
		require.LessOrEqual(t, utf8.RuneCountInString(m.Content), 2000)
		require.True(t, utf8.ValidString(m.Content))
	}
	require.Contains(t, req.Messages[1].Content, "Title: Spring sale")
}

func TestProvideSuggestion_InvalidCampaign_NoTransportCall(t *testing.T) {
	for _, id := range []string{"", "   "} {
		tr := &fakeTransport{results: []transportResult{textResponse("unused")}}
		svc, _ := newTestSuggestionService(t, tr, SuggestionConfig{})

		_, err := svc.ProvideSuggestion(context.Background(), domain.Campaign{UUID: id, Title: "t"})
		usecaseErr := expectCode(t, err, ErrorInvalidInput)
		require.Equal(t, "Invalid campaign", usecaseErr.Error())
		require.Empty(t, tr.requests)
	}
}

func TestProvideSuggestion_RetriesNetworkErrorsThenSucceeds(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{
		failWith(networkErr()),
		failWith(networkErr()),
		textResponse("retry success"),
	}}
	svc, rec := newTestSuggestionService(t, tr, SuggestionConfig{})

	out, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	require.NoError(t, err)
	require.Equal(t, "retry success", out)
	require.Equal(t, 3, tr.calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestProvideSuggestion_UnauthorizedIsNotRetried(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{failWith(statusErr(http.StatusUnauthorized))}}
	svc, rec := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	usecaseErr := expectCode(t, err, ErrorUnauthorized)
	require.Equal(t, "Invalid API key", usecaseErr.Error())
	require.Equal(t, 1, tr.calls)
	require.Empty(t, rec.delays)
}

func TestProvideSuggestion_CredentialFaultIsNotRetried(t *testing.T) {
	cause := errors.New("API token is empty")
	wrapped := fmt.Errorf("chat: %w", &credentialErr{err: cause})
	tr := &fakeTransport{results: []transportResult{failWith(wrapped)}}
	svc, rec := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	usecaseErr := expectCode(t, err, ErrorUnauthorized)
	require.Equal(t, "provider_credentials", usecaseErr.Reason)
	require.ErrorIs(t, err, cause)
	require.Equal(t, 1, tr.calls)
	require.Empty(t, rec.delays)
}

func TestProvideSuggestion_RateLimitedAfterRetries(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{failWith(statusErr(http.StatusTooManyRequests))}}
	svc, rec := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	usecaseErr := expectCode(t, err, ErrorRateLimited)
	require.Equal(t, "Rate limit exceeded, please try again later", usecaseErr.Error())
	require.Equal(t, 4, tr.calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestProvideSuggestion_NetworkFailureAfterRetries(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{failWith(networkErr())}}
	svc, _ := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	usecaseErr := expectCode(t, err, ErrorUpstream)
	require.Equal(t, "provider_unreachable", usecaseErr.Reason)
	require.Contains(t, usecaseErr.Error(), "connection refused")
	require.Equal(t, 4, tr.calls)
}

func TestProvideSuggestion_OtherStatusFailsImmediately(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{failWith(statusErr(http.StatusInternalServerError))}}
	svc, rec := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	usecaseErr := expectCode(t, err, ErrorUpstream)
	require.Contains(t, usecaseErr.Error(), "500")
	require.Equal(t, 1, tr.calls)
	require.Empty(t, rec.delays)
}

func TestProvideSuggestion_RateLimitThenSuccess(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{
		failWith(statusErr(http.StatusTooManyRequests)),
		textResponse("after backoff"),
	}}
	svc, rec := newTestSuggestionService(t, tr, SuggestionConfig{})

	out, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	require.NoError(t, err)
	require.Equal(t, "after backoff", out)
	require.Equal(t, []time.Duration{time.Second}, rec.delays)
}

func TestProvideSuggestion_CancelledDuringBackoff(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{failWith(networkErr())}}
	svc, err := NewSuggestionService(tr, SuggestionConfig{}, withSleep(func(_ context.Context, _ time.Duration) error {
		return context.Canceled
	}))
	require.NoError(t, err)

	_, err = svc.ProvideSuggestion(context.Background(), sampleCampaign())
	usecaseErr := expectCode(t, err, ErrorUpstream)
	require.ErrorIs(t, usecaseErr, context.Canceled)
	require.Equal(t, 1, tr.calls)
}

func TestProvideSuggestion_CancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &fakeTransport{results: []transportResult{failWith(networkErr())}}
	svc, rec := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.ProvideSuggestion(ctx, sampleCampaign())
	expectCode(t, err, ErrorUpstream)
	require.Equal(t, 1, tr.calls)
	require.Empty(t, rec.delays)
}

func TestProvideSuggestion_FunctionCallArguments(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{{resp: domain.ProviderResponse{Choices: []domain.Choice{
		{Reply: domain.FunctionCallReply{Name: "suggest", Arguments: `{"foo":"bar"}`}},
	}}}}}
	svc, _ := newTestSuggestionService(t, tr, SuggestionConfig{})

	out, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	require.NoError(t, err)
	require.Equal(t, `{"foo":"bar"}`, out)
}

func TestProvideSuggestion_EmptyResponse(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{{resp: domain.ProviderResponse{}}}}
	svc, _ := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
	usecaseErr := expectCode(t, err, ErrorEmptyResponse)
	require.Equal(t, "No response from provider", usecaseErr.Error())
}

func TestProvideSuggestion_ConcurrentCallsAreIndependent(t *testing.T) {
	tr := &fakeTransport{results: []transportResult{textResponse("ok")}}
	svc, err := NewSuggestionService(tr, SuggestionConfig{}, withSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProvideSuggestion(context.Background(), sampleCampaign())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 8, tr.calls)
}

func TestGetSupportedModels(t *testing.T) {
	tr := &fakeTransport{models: []domain.Model{{ID: "model1"}, {ID: "model2"}}}
	svc, _ := newTestSuggestionService(t, tr, SuggestionConfig{})

	ids, err := svc.GetSupportedModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"model1", "model2"}, ids)
}

func TestGetSupportedModels_Failure(t *testing.T) {
	tr := &fakeTransport{modelsErr: errors.New("fail")}
	svc, _ := newTestSuggestionService(t, tr, SuggestionConfig{})

	_, err := svc.GetSupportedModels(context.Background())
	usecaseErr := expectCode(t, err, ErrorModelList)
	require.True(t, strings.HasPrefix(err.Error(), "Failed to fetch models: "))
	require.Equal(t, "Failed to fetch models: fail", usecaseErr.Error())
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
