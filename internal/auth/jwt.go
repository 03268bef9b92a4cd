// Package auth provides JWT access/refresh tokens, password hashing and the
// bearer-token middleware for the flashcards API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /api/token/ with email+password → access + refresh token pair
//  2. Every API call sends "Authorization: Bearer <access>"
//  3. When the access token expires, POST /api/token/refresh/ with the
//     refresh token → new access token
//  4. POST /api/logout/ blacklists the refresh token's id (jti); the
//     blacklist is checked on every refresh
//
// Both token types are HS256-signed JWTs. A "token_type" claim keeps a
// refresh token from being used as an access token and vice versa.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/flashcards/internal/model"
)

const issuer = "flashcards"

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrTokenInvalid     = errors.New("auth: invalid token")
	ErrWrongTokenType   = errors.New("auth: wrong token type")
	ErrSecretTooShort   = errors.New("auth: JWT secret must be at least 16 characters")
	ErrInvalidLifetimes = errors.New("auth: token lifetimes must be positive")
)

// Claims is the JWT payload. The subject ("sub") holds the user ID; the
// profile claims let clients show who is logged in without another call.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	jwt.RegisteredClaims
}

// UserID parses the numeric user ID out of the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}
	return id, nil
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production (JWT_SECRET=$(openssl rand -hex 32)).
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, ErrSecretTooShort
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, ErrInvalidLifetimes
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssuePair creates a fresh access + refresh token pair for the user.
func (s *TokenService) IssuePair(user *model.User) (*TokenPair, error) {
	refresh, _, err := s.sign(RefreshToken, userClaims(user), s.refreshTTL)
	if err != nil {
		return nil, err
	}
	access, _, err := s.sign(AccessToken, userClaims(user), s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueAccessFromRefresh mints a new access token carrying the identity
// claims of an already validated refresh token.
func (s *TokenService) IssueAccessFromRefresh(refresh *Claims) (string, error) {
	if refresh.TokenType != RefreshToken {
		return "", ErrWrongTokenType
	}
	base := Claims{
		Email:     refresh.Email,
		FirstName: refresh.FirstName,
		LastName:  refresh.LastName,
	}
	base.Subject = refresh.Subject
	token, _, err := s.sign(AccessToken, base, s.accessTTL)
	return token, err
}

// ValidateAccess parses an access token.
func (s *TokenService) ValidateAccess(tokenStr string) (*Claims, error) {
	return s.validate(tokenStr, AccessToken)
}

// ValidateRefresh parses a refresh token. It does NOT consult the
// blacklist; that is the caller's job.
func (s *TokenService) ValidateRefresh(tokenStr string) (*Claims, error) {
	return s.validate(tokenStr, RefreshToken)
}

func userClaims(user *model.User) Claims {
	c := Claims{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	c.Subject = strconv.FormatInt(user.ID, 10)
	return c
}

// sign stamps type, jti, issuer and lifetime onto c and signs it.
func (s *TokenService) sign(typ TokenType, c Claims, ttl time.Duration) (string, *Claims, error) {
	now := s.now()

	c.TokenType = typ
	c.ID = xid.New().String()
	c.Issuer = issuer
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, &c, nil
}

// validate checks signature, algorithm, issuer, expiry and token type.
//
// jwt.WithValidMethods pins HS256 so a token claiming "alg":"none" (or an
// asymmetric algorithm) is rejected before the key is ever used.
func (s *TokenService) validate(tokenStr string, want TokenType) (*Claims, error) {
	c := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if c.TokenType != want {
		return nil, ErrWrongTokenType
	}
	if c.ID == "" {
		return nil, fmt.Errorf("%w: token has no id", ErrTokenInvalid)
	}
	if _, err := c.UserID(); err != nil {
		return nil, err
	}

	return c, nil
}
