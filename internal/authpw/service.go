// Package authpw provides email/password accounts on top of bcrypt.
package authpw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"lexdraft/api/internal/store"
)

var (
	ErrMissingFields      = errors.New("email, password, and name are required")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidUserType    = errors.New("user type must be customer or attorney")
)

const minPasswordLength = 8

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
}

// Service provides email/password authentication
type Service struct {
	store UserStore
	cost  int
}

// NewService creates a new auth service
func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Email            string
	Password         string
	Name             string
	UserType         string
	SubscriptionType *string
}

// SignUp creates a new user account. Admins are never created through sign-up.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return store.User{}, ErrMissingFields
	}
	if len(req.Password) < minPasswordLength {
		return store.User{}, ErrWeakPassword
	}

	userType := req.UserType
	if userType == "" {
		userType = store.UserTypeCustomer
	}
	if userType != store.UserTypeCustomer && userType != store.UserTypeAttorney {
		return store.User{}, ErrInvalidUserType
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return store.User{}, err
	}

	created, err := s.store.CreateUser(ctx, store.User{
		Email:            email,
		PasswordHash:     hash,
		Name:             strings.TrimSpace(req.Name),
		UserType:         userType,
		SubscriptionType: req.SubscriptionType,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.User{}, ErrEmailTaken
	}
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// SignIn authenticates a user. Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// HashPassword validates and hashes a replacement password.
func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	return s.hash(password)
}

// UnusableHash returns a hash no password matches, for accounts created through OAuth.
func (s *Service) UnusableHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return s.hash("oauth:" + hex.EncodeToString(b))
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
