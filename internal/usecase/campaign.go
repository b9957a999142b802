package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"campaign-assistant/internal/domain"
)

type CampaignStore interface {
	GetCampaign(ctx context.Context, id string) (domain.Campaign, error)
	PutCampaign(ctx context.Context, c domain.Campaign) error
	ListCampaignsByOwner(ctx context.Context, ownerID string) ([]domain.Campaign, error)
}

type Suggester interface {
	ProvideSuggestion(ctx context.Context, c domain.Campaign) (string, error)
}

type CampaignService struct {
	store     CampaignStore
	suggester Suggester
}

type CreateCampaignInput struct {
	Title       string
	Description string
	Groups      []string
}

// UpdateCampaignInput is a partial update; nil fields are left unchanged.
type UpdateCampaignInput struct {
	Title       *string
	Description *string
	Groups      []string
}

func NewCampaignService(store CampaignStore, suggester Suggester) (*CampaignService, error) {
	if store == nil {
		return nil, errors.New("usecase: campaign store must not be nil")
	}
	if suggester == nil {
		return nil, errors.New("usecase: suggester must not be nil")
	}
	return &CampaignService{store: store, suggester: suggester}, nil
}

func (s *CampaignService) CreateCampaign(ctx context.Context, userID string, in CreateCampaignInput) (domain.Campaign, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Campaign{}, newError(ErrorInvalidInput, "missing_owner", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Campaign{}, newError(ErrorInvalidInput, "missing_title", nil)
	}
	if in.Groups == nil {
		return domain.Campaign{}, newError(ErrorInvalidInput, "missing_groups", nil)
	}

	ts := now().UTC()
	c := domain.Campaign{
		UUID:        newUUID(),
		OwnerID:     userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Groups:      in.Groups,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := s.store.PutCampaign(ctx, c); err != nil {
		return domain.Campaign{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return c, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, userID, id string) (domain.Campaign, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Campaign{}, newError(ErrorInvalidInput, reasonInvalidCampaign, nil)
	}
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Campaign{}, newError(ErrorNotFound, "campaign_not_found", err)
		}
		return domain.Campaign{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	if c.OwnerID != userID {
		return domain.Campaign{}, newError(ErrorForbidden, "campaign_owner_mismatch", nil)
	}
	return c, nil
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, userID, id string, in UpdateCampaignInput) (domain.Campaign, error) {
	c, err := s.GetCampaign(ctx, userID, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return domain.Campaign{}, newError(ErrorInvalidInput, "missing_title", nil)
		}
		c.Title = title
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.Groups != nil {
		c.Groups = in.Groups
	}
	c.UpdatedAt = now().UTC()

	if err := s.store.PutCampaign(ctx, c); err != nil {
		return domain.Campaign{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return c, nil
}

func (s *CampaignService) ListUserCampaigns(ctx context.Context, userID string) ([]domain.Campaign, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(ErrorInvalidInput, "missing_owner", nil)
	}
	campaigns, err := s.store.ListCampaignsByOwner(ctx, userID)
	if err != nil {
		return nil, newError(ErrorInternal, "dynamodb_query_error", err)
	}
	return campaigns, nil
}

// SuggestForCampaign loads a campaign the caller owns and asks for a copy
// suggestion.
func (s *CampaignService) SuggestForCampaign(ctx context.Context, userID, id string) (string, error) {
	c, err := s.GetCampaign(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return s.suggester.ProvideSuggestion(ctx, c)
}

var newUUID = func() string {
	return uuid.NewString()
}

var now = time.Now
