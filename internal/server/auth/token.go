// Package auth issues and verifies signed session tokens and carries the
// resulting session through request contexts.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

const bearerScheme = "Bearer"

// Claims are the registered JWT claims plus the holder's roles.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// TokenService signs HS256 tokens. Key, issuer, audience and validity are
// fixed for the lifetime of the process.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	validity time.Duration
	now      func() time.Time
}

type Option func(*TokenService)

// WithClock replaces time.Now, used for issuing and for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret []byte, issuer, audience string, validity time.Duration, opts ...Option) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if validity <= 0 {
		return nil, fmt.Errorf("token validity must be positive, got %s", validity)
	}

	s := &TokenService{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		validity: validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue returns a signed token for user that expires after the configured validity.
func (s *TokenService) Issue(user *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
			ID:        uuid.NewString(),
		},
		Roles: user.Roles.Strings(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry. It returns
// common.ErrMalformedToken for input that is not a JWT at all and an error
// matching common.ErrInvalidToken for everything else.
func (s *TokenService) Verify(tokenString string) (*models.Session, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, common.ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}
	roles, err := models.ParseRoleSet(claims.Roles)
	if err != nil || roles.IsEmpty() {
		return nil, fmt.Errorf("%w: missing or unknown roles", common.ErrInvalidToken)
	}

	return &models.Session{UserID: claims.Subject, Roles: roles, Token: tokenString}, nil
}

// ParseBearer extracts the token from an Authorization header value of the
// form "Bearer <token>".
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", common.ErrMalformedToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", common.ErrMalformedToken
	}
	return token, nil
}
