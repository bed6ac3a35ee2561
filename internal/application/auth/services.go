package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/skinsight/review-console/internal/application"
	"github.com/skinsight/review-console/internal/domain/operator"
)

// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "review-console"

// Service issues and checks operator sessions.
type Service struct {
	Repo   operator.Repository
	Secret []byte
	TTL    time.Duration
	Clock  application.Clock
}

// LoginResult is returned to the login form.
type LoginResult struct {
	Operator  operator.Identity `json:"operator"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Login checks credentials and returns a signed token for the operator.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	op, err := s.Repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup operator: %w", err)
	}
	if op == nil {
		return LoginResult{}, operator.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, operator.ErrInvalidCredentials
	}

	now := s.Clock.Now()
	exp := now.Add(s.TTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: op.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(op.ID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(s.Secret)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	return LoginResult{
		Operator:  operator.Identity{ID: op.ID, Name: op.Name},
		Token:     signed,
		ExpiresAt: exp,
	}, nil
}

// Verify parses a bearer token back into an operator identity.
func (s *Service) Verify(token string) (operator.Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.Clock.Now),
	)
	if err != nil {
		return operator.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return operator.Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return operator.Identity{ID: id, Name: c.Name}, nil
}

// HashPassword is used when seeding operator accounts.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
