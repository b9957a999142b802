package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"campaign-assistant/internal/auth"
	"campaign-assistant/internal/domain"
	"campaign-assistant/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerAuthorization = "Authorization"

	codeUnauthenticated = "UNAUTHENTICATED"
)

var newCorrelationID = func() string { return uuid.NewString() }

type modelLister interface {
	GetSupportedModels(ctx context.Context) ([]string, error)
}

type campaignService interface {
	CreateCampaign(ctx context.Context, userID string, in usecase.CreateCampaignInput) (domain.Campaign, error)
	GetCampaign(ctx context.Context, userID, id string) (domain.Campaign, error)
	UpdateCampaign(ctx context.Context, userID, id string, in usecase.UpdateCampaignInput) (domain.Campaign, error)
	ListUserCampaigns(ctx context.Context, userID string) ([]domain.Campaign, error)
	SuggestForCampaign(ctx context.Context, userID, id string) (string, error)
}

type profileService interface {
	CreateProfile(ctx context.Context, userID, email, name string) (domain.User, error)
	GetProfile(ctx context.Context, userID string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in usecase.UpdateProfileInput) (domain.User, error)
}

type tokenVerifier interface {
	VerifyHeader(header string) (auth.Identity, error)
}

// Handler serves the API Gateway proxy integration.
type Handler struct {
	models    modelLister
	campaigns campaignService
	profiles  profileService
	verifier  tokenVerifier
	logger    *slog.Logger
	routes    []route
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHandler(models modelLister, campaigns campaignService, profiles profileService, verifier tokenVerifier, opts ...Option) (*Handler, error) {
	if models == nil {
		return nil, errors.New("handler: model lister must not be nil")
	}
	if campaigns == nil {
		return nil, errors.New("handler: campaign service must not be nil")
	}
	if profiles == nil {
		return nil, errors.New("handler: profile service must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("handler: token verifier must not be nil")
	}
	h := &Handler{
		models:    models,
		campaigns: campaigns,
		profiles:  profiles,
		verifier:  verifier,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes = h.routeTable()
	return h, nil
}

// Handle authenticates the caller, dispatches to the matching route and maps
// usecase errors to HTTP statuses. It never returns a Go error so API Gateway
// always receives a well-formed response.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(event.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	logger := h.logger.With("correlation_id", correlationID, "method", event.HTTPMethod, "path", event.Path)

	resp := h.dispatch(ctx, logger, event)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["Content-Type"] = "application/json"
	resp.Headers[headerCorrelationID] = correlationID

	logger.InfoContext(ctx, "request handled", "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) dispatch(ctx context.Context, logger *slog.Logger, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	rt, params, ok := h.match(event.HTTPMethod, event.Path)
	if !ok {
		return jsonResponse(http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Message: "route not found"})
	}

	identity, err := h.verifier.VerifyHeader(header(event.Headers, headerAuthorization))
	if err != nil {
		logger.WarnContext(ctx, "rejected request", "err", err)
		return jsonResponse(http.StatusUnauthorized, errorResponse{Error: codeUnauthenticated, Message: "missing or invalid token"})
	}

	req := request{
		identity: identity,
		params:   params,
		body:     event.Body,
	}
	status, body, err := rt.serve(ctx, req)
	if err != nil {
		return errorToResponse(ctx, logger, err)
	}
	return jsonResponse(status, body)
}

// errorToResponse maps usecase error codes to HTTP statuses.
func errorToResponse(ctx context.Context, logger *slog.Logger, err error) events.APIGatewayProxyResponse {
	var useCaseErr *usecase.Error
	if !errors.As(err, &useCaseErr) {
		logger.ErrorContext(ctx, "unexpected error", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Message: "internal error"})
	}

	status := statusForCode(useCaseErr.Code)
	attrs := []any{"code", useCaseErr.Code, "reason", useCaseErr.Reason}
	if useCaseErr.Err != nil {
		attrs = append(attrs, "err", useCaseErr.Err)
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		logger.InfoContext(ctx, "request rejected", attrs...)
	}
	return jsonResponse(status, errorResponse{Error: string(useCaseErr.Code), Message: useCaseErr.Error()})
}

func statusForCode(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorForbidden:
		return http.StatusForbidden
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorConflict:
		return http.StatusConflict
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUnauthorized, usecase.ErrorUpstream, usecase.ErrorEmptyResponse, usecase.ErrorModelList:
		// provider-side failures, including a rejected provider key
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error":"INTERNAL_ERROR","message":"internal error"}`,
		}
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Body: string(raw)}
}

// header looks up a header case-insensitively.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
