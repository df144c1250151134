package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuthHandler struct {
	Session         *AuthHandler
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string

	// fetchUser is replaced in tests.
	fetchUser func(ctx context.Context, code string) (googleUserInfo, error)
}

func (h *GoogleOAuthHandler) Routes(r fiber.Router) {
	r.Get("/auth/google/start", h.GoogleStart)
	r.Get("/auth/google/callback", h.GoogleCallback)
}

func (h *GoogleOAuthHandler) Enabled() bool {
	return h.GoogleClientID != "" && h.GoogleSecret != "" && h.GoogleRedirect != ""
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) oauthCookie(name, value string, maxAge int) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Session.CookieSecure,
		SameSite: "Lax",
		MaxAge:   maxAge,
	}
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	if !h.Enabled() {
		return errs.NotFound("google sign-in is not configured")
	}
	next := c.Query("next", "/")
	st := randomState(32)

	c.Cookie(h.oauthCookie("oauth_state", st, 10*60))
	c.Cookie(h.oauthCookie("oauth_next", next, 10*60))

	return c.Redirect(h.oauthCfg().AuthCodeURL(st), http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) exchange(ctx context.Context, code string) (googleUserInfo, error) {
	if h.fetchUser != nil {
		return h.fetchUser(ctx, code)
	}

	cfg := h.oauthCfg()
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return googleUserInfo{}, fmt.Errorf("exchange code: %w", err)
	}
	resp, err := cfg.Client(ctx, tok).Get(googleUserInfoURL)
	if err != nil {
		return googleUserInfo{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return googleUserInfo{}, fmt.Errorf("decode userinfo: %w", err)
	}
	return gu, nil
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return errs.BadRequest("missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if stCookie == "" || stCookie != state {
		return errs.BadRequest("invalid state")
	}
	c.Cookie(h.oauthCookie("oauth_state", "", -1))
	c.Cookie(h.oauthCookie("oauth_next", "", -1))

	gu, err := h.exchange(c.UserContext(), code)
	if err != nil {
		h.Session.Log.Warn().Err(err).Msg("google sign-in failed")
		return h.redirectError(c, "google sign-in failed")
	}
	if !gu.VerifiedEmail {
		return h.redirectError(c, "google account email is not verified")
	}

	sess, err := h.Session.Auth.LoginWithGoogle(c.UserContext(), gu.Email, gu.Name)
	if err != nil {
		if errs.Is(err, errs.KindInternal) {
			return err
		}
		return h.redirectError(c, errs.From(err).Message)
	}

	h.Session.setSessionCookies(c, sess)

	// Only same-site paths are accepted as the post-login target.
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}

func (h *GoogleOAuthHandler) redirectError(c *fiber.Ctx, msg string) error {
	return c.Redirect(h.FrontendBaseURL+"/auth/login?err="+url.QueryEscape(msg), http.StatusTemporaryRedirect)
}
