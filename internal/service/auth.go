// Package service holds the business rules of the flashcards API.
//
// THE LAYERS:
//
//	Handler (HTTP)    → decodes requests, writes JSON
//	Service (rules)   → validates input, checks permissions, runs transactions
//	Repository (data) → reads and writes SQLite
//
// Services depend on repository.Store (an interface), never on the sqlite
// package, so every rule here is testable against the in-memory store in
// fakestore_test.go.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// msgNoActiveAccount is the single answer for every failed login, so the
// response never reveals whether an email is registered.
const msgNoActiveAccount = "no active account found with the given credentials"

// AuthService handles registration and the token lifecycle.
//
// DEPENDENCIES (injected via NewAuthService):
//   - store      repository.Store       → users and the refresh-token blacklist
//   - tokens     *auth.TokenService     → issue/validate JWTs
//   - passwords  *auth.PasswordService  → bcrypt hashing
//   - logger     *slog.Logger           → structured logging
type AuthService struct {
	store     repository.Store
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterInput is the payload for creating an account.
//
// Password is a pointer because the key is required but its value may be
// empty: an empty password creates an account that cannot log in until a
// password is set.
type RegisterInput struct {
	Email     string
	Password  *string
	FirstName string
	LastName  string
}

// SuperuserOptions lets a caller pass explicit staff/superuser flags. Both
// default to true; setting either to false is an error.
type SuperuserOptions struct {
	IsStaff     *bool
	IsSuperuser *bool
}

// Register creates a regular, active account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	user, err := s.newUser(in)
	if err != nil {
		return nil, err
	}
	user.IsActive = true

	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "usable_password", user.HasUsablePassword())
	return user, nil
}

// CreateSuperuser creates an active staff superuser. Used by the
// createsuperuser command.
func (s *AuthService) CreateSuperuser(ctx context.Context, in RegisterInput, opts SuperuserOptions) (*model.User, error) {
	if opts.IsStaff != nil && !*opts.IsStaff {
		return nil, apperror.ValidationFailed("is_staff", "superuser must have is_staff=true")
	}
	if opts.IsSuperuser != nil && !*opts.IsSuperuser {
		return nil, apperror.ValidationFailed("is_superuser", "superuser must have is_superuser=true")
	}

	user, err := s.newUser(in)
	if err != nil {
		return nil, err
	}
	user.IsActive = true
	user.IsStaff = true
	user.IsSuperuser = true

	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("superuser created", "user_id", user.ID)
	return user, nil
}

// newUser validates the input and builds (but does not store) the user.
func (s *AuthService) newUser(in RegisterInput) (*model.User, error) {
	errs := fieldErrors{}

	email := NormalizeEmail(in.Email)
	validateEmail(errs, email)
	validateName(errs, "first_name", in.FirstName)
	validateName(errs, "last_name", in.LastName)

	var hash *string
	switch {
	case in.Password == nil:
		errs.add("password", "this field is required")
	case *in.Password != "":
		h, err := s.passwords.Hash(*in.Password)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			errs.add("password", fmt.Sprintf("ensure this field has no more than %d bytes", auth.MaxPasswordBytes))
		} else if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		hash = &h
	}

	if err := apperror.InvalidFields(errs); err != nil {
		return nil, err
	}

	return &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	}, nil
}

func (s *AuthService) createUser(ctx context.Context, user *model.User) error {
	err := s.store.Users().Create(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		return apperror.ValidationFailed("email", "user with this email address already exists.")
	}
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// Login checks credentials and issues a token pair.
//
// Unknown email, wrong password, an unusable password and an inactive
// account all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	user, err := s.store.Users().GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(msgNoActiveAccount)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if !user.IsActive || !user.HasUsablePassword() {
		return nil, apperror.Unauthorized(msgNoActiveAccount)
	}
	if err := s.passwords.Verify(*user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Error("password verification failed", "user_id", user.ID, "error", err)
		}
		return nil, apperror.Unauthorized(msgNoActiveAccount)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return pair, nil
}

// Refresh exchanges a valid, non-blacklisted refresh token for a new
// access token. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return "", apperror.Unauthorized("token is invalid or expired")
	}

	blacklisted, err := s.store.Tokens().Contains(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("checking blacklist: %w", err)
	}
	if blacklisted {
		return "", apperror.Unauthorized("token is blacklisted")
	}

	userID, _ := claims.UserID()
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil || !user.IsActive {
		return "", apperror.Unauthorized("token is invalid or expired")
	}

	access, err := s.tokens.IssueAccessFromRefresh(claims)
	if err != nil {
		return "", fmt.Errorf("issuing access token: %w", err)
	}
	return access, nil
}

// Logout blacklists the refresh token so it can no longer be exchanged, and
// drops blacklist entries whose tokens have expired anyway.
//
// Any failure (missing, malformed, expired or already revoked token) comes
// back as a validation error; the handler turns it into an empty 400.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperror.ValidationFailed("refresh_token", "this field is required")
	}

	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return apperror.ValidationFailed("refresh_token", "token is invalid or expired")
	}
	userID, _ := claims.UserID()

	now := s.now()
	entry := &model.BlacklistedToken{
		JTI:           claims.ID,
		UserID:        userID,
		ExpiresAt:     claims.ExpiresAt.Time,
		BlacklistedAt: now,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Tokens().Add(ctx, entry); err != nil {
			return err
		}
		purged, err := tx.Tokens().PurgeExpired(ctx, now)
		if err != nil {
			return err
		}
		if purged > 0 {
			s.logger.Debug("purged expired blacklist entries", "count", purged)
		}
		return nil
	})
	switch {
	case errors.Is(err, apperror.ErrConflict):
		return apperror.ValidationFailed("refresh_token", "token is blacklisted")
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrNotFound):
		return apperror.ValidationFailed("refresh_token", "token is invalid or expired")
	case err != nil:
		s.logger.Error("blacklisting token failed", "user_id", userID, "error", err)
		return apperror.ValidationFailed("refresh_token", "token could not be blacklisted")
	}

	s.logger.Info("user logged out", "user_id", userID)
	return nil
}
