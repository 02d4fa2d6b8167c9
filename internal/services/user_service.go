package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type RegisterInput struct {
	Username string
	Email    *string
	Password string
}

// Session is returned on successful registration or login.
type Session struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	User      core.User `json:"user"`
}

type UserService struct {
	store  storage.UserStore
	tokens *auth.TokenIssuer
	now    func() time.Time
}

func NewUserService(store storage.UserStore, tokens *auth.TokenIssuer) *UserService {
	return &UserService{store: store, tokens: tokens, now: time.Now}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return Session{}, fmt.Errorf("%w: username is required", core.ErrInvalidInput)
	}
	if in.Password == "" {
		return Session{}, fmt.Errorf("%w: password is required", core.ErrInvalidInput)
	}

	_, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return Session{}, fmt.Errorf("%w: username already registered", core.ErrConflict)
	case !errors.Is(err, core.ErrNotFound):
		return Session{}, fmt.Errorf("find user: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	u := core.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return Session{}, fmt.Errorf("save user: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	return s.session(u)
}

// Login checks credentials. Unknown users and wrong passwords are both
// reported as core.ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: invalid credentials", core.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, fmt.Errorf("%w: invalid credentials", core.ErrUnauthorized)
	}
	return s.session(u)
}

// Authenticate resolves a bearer token to its user.
func (s *UserService) Authenticate(ctx context.Context, token string) (core.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("%w: user no longer exists", core.ErrUnauthorized)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *UserService) session(u core.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, TokenType: "bearer", User: u}, nil
}
