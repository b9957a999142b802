package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"campaign-assistant/internal/auth"
	"campaign-assistant/internal/usecase"
)

type request struct {
	identity auth.Identity
	params   map[string]string
	body     string
}

type serveFunc func(ctx context.Context, req request) (int, any, error)

// route matches a method and a slash-separated pattern; segments written as
// {name} capture into request params.
type route struct {
	method  string
	pattern []string
	serve   serveFunc
}

type modelsResponse struct {
	Models []string `json:"models"`
}

type campaignsResponse struct {
	Campaigns any `json:"campaigns"`
}

type suggestionResponse struct {
	Suggestion string `json:"suggestion"`
}

type createCampaignRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Groups      []string `json:"groups"`
}

type updateCampaignRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Groups      []string `json:"groups"`
}

type createProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type updateProfileRequest struct {
	Name   *string  `json:"name"`
	Groups []string `json:"groups"`
}

func (h *Handler) routeTable() []route {
	return []route{
		{http.MethodGet, split("/models"), h.listModels},
		{http.MethodGet, split("/campaigns"), h.listCampaigns},
		{http.MethodPost, split("/campaigns"), h.createCampaign},
		{http.MethodGet, split("/campaigns/{id}"), h.getCampaign},
		{http.MethodPatch, split("/campaigns/{id}"), h.updateCampaign},
		{http.MethodPost, split("/campaigns/{id}/suggestion"), h.suggestForCampaign},
		{http.MethodGet, split("/profile"), h.getProfile},
		{http.MethodPost, split("/profile"), h.createProfile},
		{http.MethodPatch, split("/profile"), h.updateProfile},
	}
}

func (h *Handler) match(method, path string) (route, map[string]string, bool) {
	segments := split(path)
	for _, rt := range h.routes {
		if !strings.EqualFold(rt.method, method) || len(rt.pattern) != len(segments) {
			continue
		}
		params := map[string]string{}
		matched := true
		for i, p := range rt.pattern {
			if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
				params[strings.Trim(p, "{}")] = segments[i]
				continue
			}
			if p != segments[i] {
				matched = false
				break
			}
		}
		if matched {
			return rt, params, true
		}
	}
	return route{}, nil, false
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func decode(body string, dst any) error {
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return nil
}

func (h *Handler) listModels(ctx context.Context, _ request) (int, any, error) {
	models, err := h.models.GetSupportedModels(ctx)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, modelsResponse{Models: models}, nil
}

func (h *Handler) listCampaigns(ctx context.Context, req request) (int, any, error) {
	campaigns, err := h.campaigns.ListUserCampaigns(ctx, req.identity.UserID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, campaignsResponse{Campaigns: campaigns}, nil
}

func (h *Handler) createCampaign(ctx context.Context, req request) (int, any, error) {
	var in createCampaignRequest
	if err := decode(req.body, &in); err != nil {
		return 0, nil, err
	}
	c, err := h.campaigns.CreateCampaign(ctx, req.identity.UserID, usecase.CreateCampaignInput{
		Title:       in.Title,
		Description: in.Description,
		Groups:      in.Groups,
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, c, nil
}

func (h *Handler) getCampaign(ctx context.Context, req request) (int, any, error) {
	c, err := h.campaigns.GetCampaign(ctx, req.identity.UserID, req.params["id"])
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, c, nil
}

func (h *Handler) updateCampaign(ctx context.Context, req request) (int, any, error) {
	var in updateCampaignRequest
	if err := decode(req.body, &in); err != nil {
		return 0, nil, err
	}
	c, err := h.campaigns.UpdateCampaign(ctx, req.identity.UserID, req.params["id"], usecase.UpdateCampaignInput{
		Title:       in.Title,
		Description: in.Description,
		Groups:      in.Groups,
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, c, nil
}

func (h *Handler) suggestForCampaign(ctx context.Context, req request) (int, any, error) {
	suggestion, err := h.campaigns.SuggestForCampaign(ctx, req.identity.UserID, req.params["id"])
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, suggestionResponse{Suggestion: suggestion}, nil
}

func (h *Handler) getProfile(ctx context.Context, req request) (int, any, error) {
	u, err := h.profiles.GetProfile(ctx, req.identity.UserID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, u, nil
}

// createProfile falls back to the token's email claim when the body omits it.
func (h *Handler) createProfile(ctx context.Context, req request) (int, any, error) {
	var in createProfileRequest
	if err := decode(req.body, &in); err != nil {
		return 0, nil, err
	}
	email := in.Email
	if strings.TrimSpace(email) == "" {
		email = req.identity.Email
	}
	u, err := h.profiles.CreateProfile(ctx, req.identity.UserID, email, in.Name)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, u, nil
}

func (h *Handler) updateProfile(ctx context.Context, req request) (int, any, error) {
	var in updateProfileRequest
	if err := decode(req.body, &in); err != nil {
		return 0, nil, err
	}
	u, err := h.profiles.UpdateProfile(ctx, req.identity.UserID, usecase.UpdateProfileInput{
		Name:   in.Name,
		Groups: in.Groups,
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, u, nil
}
