package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
)

// PasswordHasher turns a plaintext password into a one-way verifier.
type PasswordHasher func(plain string) (string, error)

// BcryptHasher returns a PasswordHasher using the given bcrypt cost.
func BcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return func(plain string) (string, error) {
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		return string(hash), nil
	}
}

// AuthService verifies credentials and creates accounts.
type AuthService interface {
	Login(ctx context.Context, login, password string) (*domain.User, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type authService struct {
	users repository.UserRepository
	hash  PasswordHasher
	now   func() time.Time
}

func NewAuthService(users repository.UserRepository, hash PasswordHasher) AuthService {
	return &authService{
		users: users,
		hash:  hash,
		now:   time.Now,
	}
}

// Login trims the login the same way Register stores it.
func (s *authService) Login(ctx context.Context, login, password string) (*domain.User, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	return sanitizeUser(user), nil
}

func (s *authService) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	reg.Login = strings.TrimSpace(reg.Login)
	reg.Email = strings.TrimSpace(reg.Email)

	if reg.Login == "" {
		return nil, fmt.Errorf("%w: login is required", ErrInvalidValue)
	}
	if reg.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidValue)
	}
	if reg.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidValue)
	}

	if _, err := s.users.GetByLogin(ctx, reg.Login); err == nil {
		return nil, ErrDuplicateLogin
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	hash, err := s.hash(reg.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Login:        reg.Login,
		PasswordHash: hash,
		Name:         reg.Name,
		Surname:      reg.Surname,
		Email:        reg.Email,
		AccessLevel:  reg.AccessLevel,
		DateCreate:   s.now().UTC(),
		Icon:         reg.Icon,
	}

	// the unique index on login settles registrations racing past the check above
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateLogin
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return sanitizeUser(user), nil
}

func (s *authService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
