package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced by Register.
const MinPasswordLength = 8

type userService struct {
	store Store
	opts  options
}

// NewUserService constructs a UserService over the given store.
func NewUserService(store Store, opts ...Option) UserService {
	return &userService{store: store, opts: newOptions(opts)}
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *userService) Register(ctx context.Context, orgID int, username, email, password, role string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, Validationf("username is required")
	}
	if len(password) < MinPasswordLength {
		return nil, Validationf("password must be at least %d characters", MinPasswordLength)
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		role = RoleOperator
	}
	if role != RoleAdmin && role != RoleOperator {
		return nil, Validationf("unknown role %q", role)
	}
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u := &User{
		OrganizationID: orgID,
		Username:       username,
		Email:          strings.TrimSpace(email),
		PasswordHash:   string(hash),
		Role:           role,
		IsActive:       true,
		CreatedAt:      s.opts.now(),
	}
	if err := s.store.CreateUser(detach(ctx), u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userService) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.store.GetUser(ctx, userID)
}
