package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/token"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store/memstore"
	"github.com/Windi-Fikriyansyah/gigbid/internal/utils"
)

type testEnv struct {
	svc    *Service
	users  *memstore.Store
	tokens *token.Service
	now    time.Time
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	clock := utils.ClockFunc(func() time.Time { return env.now })

	tokens, err := token.New(token.Config{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     time.Hour,
		RefreshTTL:    48 * time.Hour,
		ResetTTL:      10 * time.Minute,
	}, clock)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	env.users = memstore.New().WithClock(clock.Now)
	env.tokens = tokens
	env.svc = NewService(env.users, tokens, utils.NewPasswordHasher(bcrypt.MinCost), clock, zerolog.Nop())
	return env
}

func (e *testEnv) register(t *testing.T, email string, role models.Role) Session {
	t.Helper()
	sess, err := e.svc.Register(context.Background(), RegisterInput{
		Name: "Test User", Email: email, Password: "s3cret-pass", Role: role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return sess
}

func TestRegisterHashesPassword(t *testing.T) {
	env := newEnv(t)
	sess := env.register(t, "Dev@Example.com", models.RoleFreelancer)

	if sess.User.Email != "dev@example.com" {
		t.Fatalf("email not normalized: %q", sess.User.Email)
	}
	stored, err := env.users.FindUserByID(context.Background(), sess.User.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Password == "s3cret-pass" {
		t.Fatal("password stored in plaintext")
	}
	if !env.svc.hasher.Compare(stored.Password, "s3cret-pass") {
		t.Fatal("stored hash does not verify")
	}
	if stored.RefreshToken == nil || *stored.RefreshToken != sess.RefreshToken {
		t.Fatal("refresh token not persisted")
	}
	if sess.AccessToken == "" {
		t.Fatal("no access token")
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newEnv(t)
	env.register(t, "a@b.com", models.RoleFreelancer)

	_, err := env.svc.Register(context.Background(), RegisterInput{
		Name: "Other", Email: "A@B.com", Password: "another-pass", Role: models.RoleClient,
	})
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	env := newEnv(t)
	sess := env.register(t, "a@b.com", models.RoleClient)
	ctx := context.Background()

	_, wrongPw := env.svc.Login(ctx, "a@b.com", "nope", false)
	_, unknown := env.svc.Login(ctx, "ghost@b.com", "s3cret-pass", false)

	if err := env.svc.Deactivate(ctx, sess.User.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, inactive := env.svc.Login(ctx, "a@b.com", "s3cret-pass", false)

	for name, err := range map[string]error{"wrong password": wrongPw, "unknown email": unknown, "inactive": inactive} {
		e := errs.From(err)
		if e.Kind != errs.KindUnauthorized || e.Message != msgInvalidCredentials {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestLoginStampsLastLoginAndRememberMe(t *testing.T) {
	env := newEnv(t)
	env.register(t, "a@b.com", models.RoleClient)
	env.now = env.now.Add(time.Hour)

	sess, err := env.svc.Login(context.Background(), "a@b.com", "s3cret-pass", true)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !sess.RememberMe {
		t.Fatal("remember me not carried")
	}
	if sess.User.LastLoginAt == nil || !sess.User.LastLoginAt.Equal(env.now) {
		t.Fatalf("last login = %v", sess.User.LastLoginAt)
	}
}

func TestNewLoginInvalidatesPreviousRefreshToken(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.register(t, "a@b.com", models.RoleFreelancer)

	if _, err := env.svc.Login(ctx, "a@b.com", "s3cret-pass", false); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.tokens.VerifyRefreshToken(ctx, first.RefreshToken, env.users); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("old refresh token still valid: %v", err)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleFreelancer)

	next, err := env.svc.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Fatal("refresh token not rotated")
	}
	if _, err := env.svc.Refresh(ctx, sess.RefreshToken); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("reused refresh token: got %v", err)
	}
	if _, err := env.svc.Refresh(ctx, next.RefreshToken); err != nil {
		t.Fatalf("current refresh token rejected: %v", err)
	}
}

func TestRefreshExpires(t *testing.T) {
	env := newEnv(t)
	sess := env.register(t, "a@b.com", models.RoleFreelancer)
	env.now = env.now.Add(49 * time.Hour)

	if _, err := env.svc.Refresh(context.Background(), sess.RefreshToken); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("expired refresh token: got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleClient)

	if err := env.svc.Logout(ctx, sess.User.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.svc.Refresh(ctx, sess.RefreshToken); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("refresh after logout: got %v", err)
	}
	// Access tokens stay valid until they expire.
	if _, err := env.tokens.VerifyAccessToken(sess.AccessToken); err != nil {
		t.Fatalf("access token: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleClient)

	err := env.svc.ChangePassword(ctx, sess.User.ID, "wrong", "new-password-1")
	if !errs.Is(err, errs.KindBadRequest) {
		t.Fatalf("wrong current password: got %v", err)
	}
	if err := env.svc.ChangePassword(ctx, sess.User.ID, "s3cret-pass", "new-password-1"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, err := env.svc.Refresh(ctx, sess.RefreshToken); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("refresh with pre-change token: got %v", err)
	}
	if _, err := env.svc.Login(ctx, "a@b.com", "new-password-1", false); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newEnv(t)
	_, err := env.svc.ForgotPassword(context.Background(), "nobody@b.com")
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestResetTokenIsSingleUse(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleClient)

	plain, err := env.svc.ForgotPassword(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("forgot: %v", err)
	}
	stored, _ := env.users.FindUserByID(ctx, sess.User.ID)
	if stored.PasswordResetToken == nil || *stored.PasswordResetToken == plain {
		t.Fatal("reset token must be stored hashed")
	}

	if err := env.svc.ResetPassword(ctx, plain, "brand-new-pass"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := env.svc.ResetPassword(ctx, plain, "another-pass"); !errs.Is(err, errs.KindBadRequest) {
		t.Fatalf("second reset: got %v", err)
	}

	stored, _ = env.users.FindUserByID(ctx, sess.User.ID)
	if stored.PasswordResetToken != nil || stored.PasswordResetExpires != nil {
		t.Fatal("reset fields not cleared together")
	}
	if stored.RefreshToken != nil {
		t.Fatal("sessions not ended by reset")
	}
	if _, err := env.svc.Login(ctx, "a@b.com", "brand-new-pass", false); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}

func TestResetTokenExpires(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.register(t, "a@b.com", models.RoleClient)

	plain, err := env.svc.ForgotPassword(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("forgot: %v", err)
	}
	env.now = env.now.Add(11 * time.Minute)

	if err := env.svc.ResetPassword(ctx, plain, "brand-new-pass"); !errs.Is(err, errs.KindBadRequest) {
		t.Fatalf("expired reset token: got %v", err)
	}
}

func TestDeactivateBlocksRefresh(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleFreelancer)

	if err := env.svc.Deactivate(ctx, sess.User.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.svc.Refresh(ctx, sess.RefreshToken); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("refresh after deactivate: got %v", err)
	}
	if _, err := env.svc.PublicProfile(ctx, sess.User.ID); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("public profile of inactive user: got %v", err)
	}
}

func TestUpdateProfileKeepsRole(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleFreelancer)

	bio := "  Go developer  "
	rate := 40.0
	got, err := env.svc.UpdateProfile(ctx, sess.User.ID, ProfilePatch{
		Bio:        &bio,
		Skills:     []string{"go", " Go ", "", "postgres"},
		HourlyRate: &rate,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Bio != "Go developer" || got.HourlyRate != 40 || got.Role != models.RoleFreelancer {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if len(got.Skills) != 2 {
		t.Fatalf("skills = %v", got.Skills)
	}

	got, err = env.svc.SetProfilePicture(ctx, sess.User.ID, "uploads/profile/x.png")
	if err != nil || got.ProfilePicture != "uploads/profile/x.png" {
		t.Fatalf("set picture: %+v %v", got, err)
	}
}

func TestLoginWithGoogle(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	first, err := env.svc.LoginWithGoogle(ctx, "G@mail.com", "")
	if err != nil {
		t.Fatalf("first google login: %v", err)
	}
	if first.User.Role != models.RoleClient || !first.User.IsEmailVerified || first.User.Name != "g" {
		t.Fatalf("unexpected user: %+v", first.User)
	}

	second, err := env.svc.LoginWithGoogle(ctx, "g@mail.com", "G")
	if err != nil {
		t.Fatalf("second google login: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatal("google login created a second account")
	}

	_, err = env.svc.Login(ctx, "g@mail.com", "", false)
	if !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("password login on google account: %v", err)
	}
}

func TestMeUnknownUser(t *testing.T) {
	env := newEnv(t)
	_, err := env.svc.Me(context.Background(), uuid.New())
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

// interleavedUsers runs afterFind once, right after the next FindUserByID,
// to let another request commit between a service's read and its write.
type interleavedUsers struct {
	*memstore.Store
	afterFind func()
}

func (u *interleavedUsers) FindUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, err := u.Store.FindUserByID(ctx, id)
	if f := u.afterFind; f != nil {
		u.afterFind = nil
		f()
	}
	return user, err
}

func (e *testEnv) interleaved() (*Service, *interleavedUsers) {
	users := &interleavedUsers{Store: e.users}
	clock := utils.ClockFunc(func() time.Time { return e.now })
	return NewService(users, e.tokens, e.svc.hasher, clock, zerolog.Nop()), users
}

func TestRefreshLosesToConcurrentDeactivate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleFreelancer)

	svc, users := env.interleaved()
	users.afterFind = func() {
		if err := env.svc.Deactivate(ctx, sess.User.ID); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
	}
	if _, err := svc.Refresh(ctx, sess.RefreshToken); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("refresh racing deactivate: got %v", err)
	}

	stored, _ := env.users.FindUserByID(ctx, sess.User.ID)
	if stored.IsActive || stored.RefreshToken != nil {
		t.Fatalf("active=%v refresh_token set=%v", stored.IsActive, stored.RefreshToken != nil)
	}
	if _, err := env.svc.Login(ctx, "a@b.com", "s3cret-pass", false); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("login after deactivate: got %v", err)
	}
}

func TestRefreshLosesToConcurrentLogout(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleClient)

	svc, users := env.interleaved()
	users.afterFind = func() {
		if err := env.svc.Logout(ctx, sess.User.ID); err != nil {
			t.Fatalf("logout: %v", err)
		}
	}
	if _, err := svc.Refresh(ctx, sess.RefreshToken); !errs.Is(err, errs.KindUnauthorized) {
		t.Fatalf("refresh racing logout: got %v", err)
	}
	if stored, _ := env.users.FindUserByID(ctx, sess.User.ID); stored.RefreshToken != nil {
		t.Fatal("logout overwritten by refresh")
	}
}

func TestUpdateProfileKeepsConcurrentRating(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleFreelancer)

	svc, users := env.interleaved()
	users.afterFind = func() {
		if err := env.users.AddRating(ctx, sess.User.ID, 5); err != nil {
			t.Fatalf("add rating: %v", err)
		}
	}
	bio := "updated"
	if _, err := svc.UpdateProfile(ctx, sess.User.ID, ProfilePatch{Bio: &bio}); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, _ := env.users.FindUserByID(ctx, sess.User.ID)
	if stored.Bio != "updated" || stored.RatingCount != 1 || stored.RatingAverage != 5 {
		t.Fatalf("bio=%q rating=%v/%d", stored.Bio, stored.RatingAverage, stored.RatingCount)
	}
}

func TestUpdateProfileDoesNotReactivate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.register(t, "a@b.com", models.RoleFreelancer)

	svc, users := env.interleaved()
	users.afterFind = func() {
		if err := env.svc.Deactivate(ctx, sess.User.ID); err != nil {
			t.Fatalf("deactivate: %v", err)
		}
	}
	loc := "Jakarta"
	if _, err := svc.UpdateProfile(ctx, sess.User.ID, ProfilePatch{Location: &loc}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if stored, _ := env.users.FindUserByID(ctx, sess.User.ID); stored.IsActive {
		t.Fatal("profile update resurrected a deactivated account")
	}
}
