package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

type userService struct {
	userRepo    UserRepository
	serviceType string
	log         *slog.Logger
	now         func() time.Time
}

// NewUserService creates a new user service. serviceType labels the alias
// provenance this gateway records (the configured client type).
func NewUserService(userRepo UserRepository, serviceType string, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{
		userRepo:    userRepo,
		serviceType: serviceType,
		log:         logger.With("component", "users"),
		now:         time.Now,
	}
}

func (s *userService) FindOrCreate(ctx context.Context, profile LoginProfile) (*User, error) {
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	profile.WebID = strings.TrimSpace(profile.WebID)
	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	existing, err := s.userRepo.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		return s.userRepo.RecordLogin(ctx, existing.CustomerID, displayName(profile), profile.WebID, profile.Subject, now)
	case !errors.Is(err, ErrUserNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err := s.userRepo.Create(ctx, &User{
		CustomerID:  uuid.NewString(),
		Email:       profile.Email,
		Name:        displayName(profile),
		WebID:       profile.WebID,
		Subject:     profile.Subject,
		LastLoginAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, ErrEmailTaken) {
		// Lost a race with a concurrent first login for the same email.
		existing, err = s.userRepo.GetByEmail(ctx, profile.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		return s.userRepo.RecordLogin(ctx, existing.CustomerID, displayName(profile), profile.WebID, profile.Subject, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("created user", slog.String("customer_id", user.CustomerID))
	return user, nil
}

func (s *userService) GetByCustomerID(ctx context.Context, customerID string) (*User, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	return s.userRepo.GetByCustomerID(ctx, customerID)
}

func (s *userService) RecordAlias(ctx context.Context, customerID, audience, aliasWebID string) error {
	if customerID == "" || audience == "" || aliasWebID == "" {
		return fmt.Errorf("customer id, audience and alias are required")
	}

	now := s.now().UTC()
	return s.userRepo.UpsertAlias(ctx, &WebIDAlias{
		CustomerID:  customerID,
		Audience:    audience,
		AliasWebID:  aliasWebID,
		ServiceType: s.serviceType,
		ServiceName: audience,
		CreatedAt:   now,
		LastUsedAt:  now,
	})
}

func (s *userService) Aliases(ctx context.Context, customerID string) ([]*WebIDAlias, error) {
	return s.userRepo.ListAliases(ctx, customerID)
}

func validateProfile(p LoginProfile) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &InvalidProfileError{Field: strings.ToLower(fe.Field()), Reason: "failed " + fe.Tag() + " check"}
	}
	return &InvalidProfileError{Field: "profile", Reason: err.Error()}
}

// displayName falls back to the email's local part, since users need a name.
func displayName(p LoginProfile) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}
