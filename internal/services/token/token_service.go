// Package token issues and verifies access, refresh and password-reset
// tokens. Access and refresh tokens are HS256 JWTs signed with separate
// secrets; reset tokens are random strings of which only a hash is stored.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/utils"
)

const resetTokenBytes = 32

type Config struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
}

// AccessClaims identify the caller of a request.
type AccessClaims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the user id.
type RefreshClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// UserFinder is the part of the user store refresh verification needs.
type UserFinder interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type Service struct {
	cfg   Config
	clock utils.Clock
}

func New(cfg Config, clock utils.Clock) (*Service, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 10 * time.Minute
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Service{cfg: cfg, clock: clock}, nil
}

func (s *Service) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }
func (s *Service) AccessTTL() time.Duration  { return s.cfg.AccessTTL }

func (s *Service) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.clock.Now()
	return jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *Service) IssueAccessToken(userID uuid.UUID, email string, role models.Role) (string, error) {
	claims := AccessClaims{
		UserID:           userID.String(),
		Email:            email,
		Role:             role,
		RegisteredClaims: s.registered(userID.String(), s.cfg.AccessTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *Service) IssueRefreshToken(userID uuid.UUID) (string, error) {
	claims := RefreshClaims{
		UserID:           userID.String(),
		RegisteredClaims: s.registered(userID.String(), s.cfg.RefreshTTL),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(raw, secret string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return err
	}
	if !tok.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}

// VerifyAccessToken checks signature, algorithm and expiry.
func (s *Service) VerifyAccessToken(raw string) (*AccessClaims, error) {
	if raw == "" {
		return nil, errs.Unauthorized("missing access token")
	}
	claims := &AccessClaims{}
	if err := s.parse(raw, s.cfg.AccessSecret, claims); err != nil {
		return nil, &errs.Error{Kind: errs.KindUnauthorized, Message: "invalid or expired token", Cause: err}
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, &errs.Error{Kind: errs.KindUnauthorized, Message: "invalid or expired token", Cause: err}
	}
	return claims, nil
}

// ParseRefreshToken checks signature and expiry only.
func (s *Service) ParseRefreshToken(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errs.Unauthorized("missing refresh token")
	}
	claims := &RefreshClaims{}
	if err := s.parse(raw, s.cfg.RefreshSecret, claims); err != nil {
		return uuid.Nil, &errs.Error{Kind: errs.KindUnauthorized, Message: "invalid or expired refresh token", Cause: err}
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, &errs.Error{Kind: errs.KindUnauthorized, Message: "invalid or expired refresh token", Cause: err}
	}
	return id, nil
}

// VerifyRefreshToken parses raw and requires it to be the value currently
// stored on the user. A rotated-out token fails even before it expires.
func (s *Service) VerifyRefreshToken(ctx context.Context, raw string, users UserFinder) (models.User, error) {
	id, err := s.ParseRefreshToken(raw)
	if err != nil {
		return models.User{}, err
	}
	u, err := users.FindUserByID(ctx, id)
	if err != nil {
		return models.User{}, &errs.Error{Kind: errs.KindUnauthorized, Message: "invalid or expired refresh token", Cause: err}
	}
	if u.RefreshToken == nil || *u.RefreshToken != raw {
		return models.User{}, errs.Unauthorized("invalid or expired refresh token")
	}
	return u, nil
}

// IssueResetToken returns the plaintext to hand to the user, the hash to
// persist and the expiry to persist with it.
func (s *Service) IssueResetToken() (plain, hash string, expires time.Time, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	plain = hex.EncodeToString(buf)
	return plain, HashResetToken(plain), s.clock.Now().Add(s.cfg.ResetTTL), nil
}

func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
