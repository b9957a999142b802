package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"campaign-assistant/internal/domain"
)

type UserStore interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
	PutUser(ctx context.Context, u domain.User) error
}

// ProfileService manages user profile documents. Credentials live with the
// external identity provider; only the profile is stored here.
type ProfileService struct {
	store UserStore
}

type UpdateProfileInput struct {
	Name   *string
	Groups []string
}

func NewProfileService(store UserStore) (*ProfileService, error) {
	if store == nil {
		return nil, errors.New("usecase: user store must not be nil")
	}
	return &ProfileService{store: store}, nil
}

func (s *ProfileService) CreateProfile(ctx context.Context, userID, email, name string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, newError(ErrorInvalidInput, "missing_user", nil)
	}
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, newError(ErrorInvalidInput, "invalid_email", err)
	}
	u := domain.User{
		ID:     userID,
		Name:   strings.TrimSpace(name),
		Email:  email,
		Groups: []string{},
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.User{}, newError(ErrorConflict, "profile_exists", err)
		}
		return domain.User{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return u, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, newError(ErrorInvalidInput, "missing_user", nil)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, newError(ErrorNotFound, "profile_not_found", err)
		}
		return domain.User{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	return u, nil
}

// UpdateProfile changes the display name and group memberships. Email is
// owned by the identity provider and cannot be changed here.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (domain.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Groups != nil {
		u.Groups = in.Groups
	}
	if err := s.store.PutUser(ctx, u); err != nil {
		return domain.User{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return u, nil
}
