// Package auth implements password login and JWT session issuance for
// the single-user dashboard.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/blockboard/blockboard/internal/db"
	"github.com/blockboard/blockboard/internal/logging"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Synchronizer pushes the session token to the agent so both halves
// share one identity.
type Synchronizer interface {
	SyncAuth(token, identity string)
}

// Result is a successful login or refresh.
type Result struct {
	User         *db.User
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

// Service verifies passwords and issues JWT session tokens.
type Service struct {
	store         *db.Store
	sync          Synchronizer
	secret        []byte
	accessExpire  time.Duration
	refreshExpire time.Duration
}

// NewService creates an auth service. sync may be nil.
func NewService(store *db.Store, sync Synchronizer, secret string, accessExpire, refreshExpire time.Duration) *Service {
	return &Service{
		store:         store,
		sync:          sync,
		secret:        []byte(secret),
		accessExpire:  accessExpire,
		refreshExpire: refreshExpire,
	}
}

// EnsureUser creates the account if it does not exist yet and returns
// it. Used at startup so the dashboard is usable on first run.
func (s *Service) EnsureUser(ctx context.Context, email, password string) (*db.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err = s.store.CreateUser(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}
	logging.Infof("[auth] Created account %s", email)
	return u, nil
}

// Login verifies the password and issues a token pair. A successful
// login re-syncs the session to the agent.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if use, _ := claims["use"].(string); use != "refresh" {
		return nil, ErrInvalidCredentials
	}
	email, _ := claims["email"].(string)
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *Service) issue(u *db.User) (*Result, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessExpire)

	token, err := s.sign(jwt.MapClaims{
		"userId": u.ID,
		"email":  u.Email,
		"iat":    now.Unix(),
		"exp":    expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(jwt.MapClaims{
		"userId": u.ID,
		"email":  u.Email,
		"use":    "refresh",
		"iat":    now.Unix(),
		"exp":    now.Add(s.refreshExpire).Unix(),
	})
	if err != nil {
		return nil, err
	}

	if s.sync != nil {
		s.sync.SyncAuth(token, u.Email)
	}
	return &Result{User: u, Token: token, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

func (s *Service) sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}
