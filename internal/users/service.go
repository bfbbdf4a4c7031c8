package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"aicv-backend/internal/shared/telemetry"
)

type Service struct {
	Repo Repo

	now   func() time.Time
	newID func() string
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo, now: time.Now, newID: uuid.NewString}
}

// LoginWithContact returns the user owning an email or phone contact,
// registering a new user on first sight.
func (s *Service) LoginWithContact(ctx context.Context, contact string, provider Provider) (string, error) {
	if s == nil || s.Repo == nil {
		return "", errors.New("users service not configured")
	}
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return "", errors.New("contact is required")
	}
	userID, err := s.Repo.ResolveContact(ctx, contact, s.newID())
	if err != nil {
		return "", err
	}
	s.recordLogin(ctx, userID, Login{Contact: contact, Provider: provider})
	return userID, nil
}

// LoginWithGoogle maps a Google subject to a user. An account already
// registered under the same email is reused.
func (s *Service) LoginWithGoogle(ctx context.Context, sub, email, name, picture string) (string, error) {
	if s == nil || s.Repo == nil {
		return "", errors.New("users service not configured")
	}
	if strings.TrimSpace(sub) == "" {
		return "", errors.New("google subject is required")
	}

	userID, err := s.Repo.LookupGoogleSub(ctx, sub)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if userID == "" && email != "" {
		userID, err = s.Repo.LookupContact(ctx, email)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	if userID == "" {
		userID = s.newID()
	}

	userID, err = s.Repo.ResolveGoogleSub(ctx, sub, userID)
	if err != nil {
		return "", err
	}
	if email != "" {
		linked, err := s.Repo.ResolveContact(ctx, email, userID)
		if err != nil {
			return "", err
		}
		if linked != userID {
			telemetry.Warn("users.google.email_owned_elsewhere", map[string]any{"user_id": userID, "contact_user_id": linked})
		}
	}
	s.recordLogin(ctx, userID, Login{Contact: email, Provider: ProviderGoogle, Name: name, PictureURL: picture})
	return userID, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// recordLogin never fails a login; the profile is informational.
func (s *Service) recordLogin(ctx context.Context, userID string, login Login) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	if err := s.Repo.RecordLogin(ctx, userID, login, now()); err != nil {
		telemetry.Warn("users.record_login_failed", map[string]any{"user_id": userID, "error": err})
	}
}
