package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"campaign-assistant/internal/domain"
)

const defaultTimeout = 30 * time.Second

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// CredentialError means the API key could not be loaded. The result of the
// first load is cached, so retrying cannot succeed.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return "openai: load API key: " + e.Err.Error()
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

func (e *CredentialError) CredentialFault() bool {
	return true
}

// Client adapts the OpenAI SDK to the suggestion pipeline's transport
// contract. The SDK's own retries are disabled; callers own retry policy.
type Client struct {
	sdk         sdk.Client
	getter      Getter
	paramPrefix string
	limiter     *rate.Limiter

	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

// WithBaseURL points the client at any OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each individual request (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRequestsPerMinute paces outgoing requests. Zero disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}
}

// NewClient creates a new Client backed by the given paramstore.Getter for
// API key retrieval. The key is fetched from SSM on the first request and
// reused for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		getter:      ps,
		paramPrefix: paramPrefix,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	sdkOpts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(c.timeout),
	}
	if c.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(c.baseURL))
	}
	if c.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(c.httpClient))
	}
	c.sdk = sdk.NewClient(sdkOpts...)
	return c, nil
}

// resolveAPIKey fetches the API key from SSM on the first call and returns the
// cached result on every subsequent call within the same process lifetime.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
	})
	return c.apiKey, c.keyErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

// requestOptions waits for the pacing limiter and returns the per-request
// credentials.
func (c *Client) requestOptions(ctx context.Context) ([]option.RequestOption, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, &CredentialError{Err: err}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("openai: wait for rate limiter: %w", err)
		}
	}
	return []option.RequestOption{option.WithAPIKey(apiKey)}, nil
}

// SubmitChat sends one chat completion request.
func (c *Client) SubmitChat(ctx context.Context, req domain.SuggestionRequest) (domain.ProviderResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return domain.ProviderResponse{}, errors.New("openai: model must not be empty")
	}
	opts, err := c.requestOptions(ctx)
	if err != nil {
		return domain.ProviderResponse{}, err
	}

	params := sdk.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: sdk.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxTokens))
	}
	if req.TopP != nil {
		params.TopP = sdk.Float(*req.TopP)
	}

	completion, err := c.sdk.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return domain.ProviderResponse{}, fmt.Errorf("openai: chat completion: %w", classifyError(err))
	}
	return toProviderResponse(completion), nil
}

// ListModels returns the models visible to the configured API key.
func (c *Client) ListModels(ctx context.Context) ([]domain.Model, error) {
	opts, err := c.requestOptions(ctx)
	if err != nil {
		return nil, err
	}
	page, err := c.sdk.Models.List(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: list models: %w", classifyError(err))
	}
	models := make([]domain.Model, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, domain.Model{ID: m.ID})
	}
	return models, nil
}

func toProviderResponse(completion *sdk.ChatCompletion) domain.ProviderResponse {
	if completion == nil {
		return domain.ProviderResponse{}
	}
	out := domain.ProviderResponse{Choices: make([]domain.Choice, 0, len(completion.Choices))}
	for _, ch := range completion.Choices {
		if !ch.JSON.Message.Valid() {
			out.Choices = append(out.Choices, domain.Choice{})
			continue
		}
		msg := ch.Message
		if msg.JSON.FunctionCall.Valid() {
			out.Choices = append(out.Choices, domain.Choice{Reply: domain.FunctionCallReply{
				Name:      msg.FunctionCall.Name,
				Arguments: msg.FunctionCall.Arguments,
				Content:   msg.Content,
			}})
			continue
		}
		out.Choices = append(out.Choices, domain.Choice{Reply: domain.TextReply{Content: msg.Content}})
	}
	return out
}

// toOpenAIMessages converts domain messages to the SDK union type.
func toOpenAIMessages(msgs []domain.ChatMessage) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			out[i] = sdk.SystemMessage(m.Content)
		case domain.RoleAssistant:
			out[i] = sdk.AssistantMessage(m.Content)
		default:
			out[i] = sdk.UserMessage(m.Content)
		}
	}
	return out
}

// classifyError turns SDK API errors into *HTTPStatusError so callers can
// read the status without importing the SDK. Transport errors pass through
// untouched and carry no status.
func classifyError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	statusErr := &HTTPStatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
	if apiErr.Request != nil && apiErr.Request.URL != nil {
		statusErr.URL = apiErr.Request.URL.String()
	}
	return statusErr
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("openai: API token is empty")
	}
	return tp.Token, nil
}
