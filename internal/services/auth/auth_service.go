package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/token"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
	"github.com/Windi-Fikriyansyah/gigbid/internal/utils"
)

// msgInvalidCredentials is shared by every login failure so responses do not
// reveal whether an account exists.
const msgInvalidCredentials = "invalid email or password"

const msgInvalidRefresh = "invalid or expired refresh token"

type Service struct {
	users  store.UserStore
	tokens *token.Service
	hasher *utils.PasswordHasher
	clock  utils.Clock
	log    zerolog.Logger
}

func NewService(users store.UserStore, tokens *token.Service, hasher *utils.PasswordHasher, clock utils.Clock, log zerolog.Logger) *Service {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		clock:  clock,
		log:    log.With().Str("component", "auth").Logger(),
	}
}

// Session is what a successful sign-in returns to the HTTP layer.
type Session struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresIn    int64             `json:"expires_in"`
	// RememberMe only changes how long the client keeps the refresh cookie.
	RememberMe bool `json:"-"`
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := normalizeEmail(in.Email)
	if !in.Role.Valid() {
		return Session{}, errs.BadRequest("role must be client or freelancer")
	}

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return Session{}, errs.Conflict("email is already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, errs.Internal(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, errs.Internal(err)
	}

	now := s.clock.Now()
	u := models.User{
		Name:        strings.TrimSpace(in.Name),
		Email:       email,
		Password:    hash,
		Role:        in.Role,
		IsActive:    true,
		LastLoginAt: &now,
	}
	if err := s.users.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Session{}, errs.Conflict("email is already registered")
		}
		return Session{}, errs.Internal(err)
	}

	s.log.Info().Str("user_id", u.ID.String()).Str("role", string(u.Role)).Msg("user registered")
	return s.startSession(ctx, &u, false, nil)
}

func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (Session, error) {
	u, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, errs.Unauthorized(msgInvalidCredentials)
		}
		return Session{}, errs.Internal(err)
	}
	if !u.IsActive || !s.hasher.Compare(u.Password, password) {
		return Session{}, errs.Unauthorized(msgInvalidCredentials)
	}

	now := s.clock.Now()
	u.LastLoginAt = &now
	return s.startSession(ctx, &u, rememberMe, nil)
}

// Logout drops the stored refresh token. Access tokens stay valid until they
// expire.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	u.RefreshToken = nil
	if err := s.users.UpdateUserFields(ctx, &u, store.UserRefreshToken); err != nil {
		return errs.Internal(err)
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new pair. The new token is
// only stored while the account is still active and still holds the presented
// one, so a concurrent logout or deactivation wins.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	u, err := s.tokens.VerifyRefreshToken(ctx, refreshToken, s.users)
	if err != nil {
		return Session{}, err
	}
	if !u.IsActive {
		return Session{}, errs.Unauthorized(msgInvalidRefresh)
	}
	return s.startSession(ctx, &u, false, &refreshToken)
}

// ChangePassword replaces the password and revokes the stored refresh token.
// The caller's access token keeps working until it expires.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(u.Password, current) {
		return errs.BadRequest("current password is incorrect")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return errs.Internal(err)
	}
	u.Password = hash
	u.RefreshToken = nil
	if err := s.users.UpdateUserFields(ctx, &u, store.UserPassword, store.UserRefreshToken); err != nil {
		return errs.Internal(err)
	}
	s.log.Info().Str("user_id", u.ID.String()).Msg("password changed")
	return nil
}

// ForgotPassword stores a reset hash on the account and returns the plaintext
// token for out-of-band delivery.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", errs.Internal(err)
	}
	if err != nil || !u.IsActive {
		return "", errs.NotFound("no active account with that email")
	}

	plain, hash, expires, err := s.tokens.IssueResetToken()
	if err != nil {
		return "", errs.Internal(err)
	}
	u.SetResetToken(hash, expires)
	if err := s.users.UpdateUserFields(ctx, &u, store.UserPasswordResetToken, store.UserPasswordResetExpires); err != nil {
		return "", errs.Internal(err)
	}
	return plain, nil
}

// ResetPassword consumes a reset token. It also ends every session of the
// account.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return errs.BadRequest("invalid or expired reset token")
	}
	u, err := s.users.FindUserByResetToken(ctx, token.HashResetToken(resetToken), s.clock.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.BadRequest("invalid or expired reset token")
		}
		return errs.Internal(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return errs.Internal(err)
	}
	u.Password = hash
	u.ClearResetToken()
	u.RefreshToken = nil
	err = s.users.UpdateUserFields(ctx, &u,
		store.UserPassword, store.UserPasswordResetToken, store.UserPasswordResetExpires, store.UserRefreshToken)
	if err != nil {
		return errs.Internal(err)
	}
	s.log.Info().Str("user_id", u.ID.String()).Msg("password reset")
	return nil
}

func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) error {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	u.IsActive = false
	u.RefreshToken = nil
	if err := s.users.UpdateUserFields(ctx, &u, store.UserIsActive, store.UserRefreshToken); err != nil {
		return errs.Internal(err)
	}
	s.log.Info().Str("user_id", u.ID.String()).Msg("account deactivated")
	return nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (models.PublicUser, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}
	return u.Public(), nil
}

// ProfilePatch holds the editable profile fields. Nil fields are left alone.
type ProfilePatch struct {
	Name       *string
	Bio        *string
	Skills     []string
	HourlyRate *float64
	Location   *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, p ProfilePatch) (models.PublicUser, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Bio != nil {
		u.Bio = strings.TrimSpace(*p.Bio)
	}
	if p.Skills != nil {
		u.Skills = cleanList(p.Skills)
	}
	if p.HourlyRate != nil {
		u.HourlyRate = *p.HourlyRate
	}
	if p.Location != nil {
		u.Location = strings.TrimSpace(*p.Location)
	}
	err = s.users.UpdateUserFields(ctx, &u,
		store.UserName, store.UserBio, store.UserSkills, store.UserHourlyRate, store.UserLocation)
	if err != nil {
		return models.PublicUser{}, errs.Internal(err)
	}
	return u.Public(), nil
}

// SetProfilePicture stores the relative path returned by the file store.
func (s *Service) SetProfilePicture(ctx context.Context, userID uuid.UUID, path string) (models.PublicUser, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}
	u.ProfilePicture = path
	if err := s.users.UpdateUserFields(ctx, &u, store.UserProfilePicture); err != nil {
		return models.PublicUser{}, errs.Internal(err)
	}
	return u.Public(), nil
}

// PublicProfile returns an active user's profile as seen by anyone.
func (s *Service) PublicProfile(ctx context.Context, userID uuid.UUID) (models.PublicUser, error) {
	u, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.PublicUser{}, errs.NotFound("user not found")
		}
		return models.PublicUser{}, errs.Internal(err)
	}
	if !u.IsActive {
		return models.PublicUser{}, errs.NotFound("user not found")
	}
	return u.Public(), nil
}

// LoginWithGoogle signs in the account matching a verified Google email,
// creating a client account with an unusable password on first sign-in.
func (s *Service) LoginWithGoogle(ctx context.Context, email, name string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Session{}, errs.Unauthorized("google account has no email")
	}

	now := s.clock.Now()
	u, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !u.IsActive {
			return Session{}, errs.Unauthorized(msgInvalidCredentials)
		}
		if !u.IsEmailVerified {
			u.IsEmailVerified = true
			if err := s.users.UpdateUserFields(ctx, &u, store.UserIsEmailVerified); err != nil {
				return Session{}, errs.Internal(err)
			}
		}
	case errors.Is(err, store.ErrNotFound):
		pw, err := randomSecret()
		if err != nil {
			return Session{}, errs.Internal(err)
		}
		hash, err := s.hasher.Hash(pw)
		if err != nil {
			return Session{}, errs.Internal(err)
		}
		if strings.TrimSpace(name) == "" {
			name = strings.Split(email, "@")[0]
		}
		u = models.User{
			Name:            strings.TrimSpace(name),
			Email:           email,
			Password:        hash,
			Role:            models.RoleClient,
			IsActive:        true,
			IsEmailVerified: true,
		}
		if err := s.users.CreateUser(ctx, &u); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return Session{}, errs.Conflict("email is already registered")
			}
			return Session{}, errs.Internal(err)
		}
		s.log.Info().Str("user_id", u.ID.String()).Msg("user registered via google")
	default:
		return Session{}, errs.Internal(err)
	}

	u.LastLoginAt = &now
	return s.startSession(ctx, &u, true, nil)
}

// startSession issues a token pair and stores the refresh token on u,
// replacing any previous one. When rotating, presented is the token being
// exchanged. The store refuses the write once the account is inactive or
// presented has already been replaced.
func (s *Service) startSession(ctx context.Context, u *models.User, rememberMe bool, presented *string) (Session, error) {
	access, err := s.tokens.IssueAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return Session{}, errs.Internal(err)
	}
	refresh, err := s.tokens.IssueRefreshToken(u.ID)
	if err != nil {
		return Session{}, errs.Internal(err)
	}
	if err := s.users.SaveRefreshToken(ctx, u.ID, refresh, presented, u.LastLoginAt); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Session{}, errs.Internal(err)
		}
		if presented != nil {
			return Session{}, errs.Unauthorized(msgInvalidRefresh)
		}
		return Session{}, errs.Unauthorized(msgInvalidCredentials)
	}
	u.RefreshToken = &refresh
	return Session{
		User:         u.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL() / time.Second),
		RememberMe:   rememberMe,
	}, nil
}

func (s *Service) findUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	u, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, errs.NotFound("user not found")
		}
		return models.User{}, errs.Internal(err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}

func randomSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
