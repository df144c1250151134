package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/middleware"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/auth"
)

const msgResetSent = "if an active account exists for that email, a reset link has been sent"

type AuthHandler struct {
	Auth         *auth.Service
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	CookieSecure bool
	// ExposeResetToken returns the reset token in the forgot-password
	// response. Only for development, where no mail is sent.
	ExposeResetToken bool
	Log              zerolog.Logger
}

func (h *AuthHandler) Routes(r fiber.Router, g Guards) {
	a := r.Group("/auth")
	a.Post("/register", h.Register)
	a.Post("/login", h.Login)
	a.Post("/refresh", h.Refresh)
	a.Post("/logout", g.Auth, h.Logout)
	a.Post("/forgot-password", h.ForgotPassword)
	a.Post("/reset-password", h.ResetPassword)
}

type RegisterReq struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=client freelancer"`
}

type LoginReq struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.Auth.Register(c.UserContext(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		return err
	}

	h.setSessionCookies(c, sess)
	return respond(c, fiber.StatusCreated, "registration successful", sess)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.Auth.Login(c.UserContext(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		return err
	}

	h.setSessionCookies(c, sess)
	return respond(c, fiber.StatusOK, "login successful", sess)
}

// Refresh reads the refresh token from the body, falling back to the cookie.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errs.BadRequest("invalid body")
		}
	}
	raw := req.RefreshToken
	if raw == "" {
		raw = c.Cookies(middleware.RefreshCookie)
	}

	sess, err := h.Auth.Refresh(c.UserContext(), raw)
	if err != nil {
		h.clearSessionCookies(c)
		return err
	}

	// Keep the lifetime the client chose at login.
	sess.RememberMe = c.Cookies(rememberCookie) == "1"
	h.setSessionCookies(c, sess)
	return respond(c, fiber.StatusOK, "token refreshed", sess)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	if err := h.Auth.Logout(c.UserContext(), userID); err != nil {
		return err
	}
	h.clearSessionCookies(c)
	return respond(c, fiber.StatusOK, "logout successful", nil)
}

// ForgotPassword answers the same way whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}

	plain, err := h.Auth.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return respond(c, fiber.StatusOK, msgResetSent, nil)
		}
		return err
	}

	// No mailer is wired. Outside development the plaintext token is dropped
	// and only its hash is kept on the account.
	if h.ExposeResetToken {
		return respond(c, fiber.StatusOK, msgResetSent, fiber.Map{"reset_token": plain})
	}
	return respond(c, fiber.StatusOK, msgResetSent, nil)
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Auth.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return err
	}
	h.clearSessionCookies(c)
	return respond(c, fiber.StatusOK, "password has been reset, please log in again", nil)
}

const rememberCookie = "gb_remember"

// setSessionCookies writes the token pair as HTTP-only cookies. Without
// remember-me the refresh cookie lives for the browser session only.
func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, sess auth.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessCookie,
		Value:    sess.AccessToken,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.CookieSecure,
		SameSite: "Lax",
		MaxAge:   int(h.AccessTTL / time.Second),
	})

	refreshAge, remember := 0, "0"
	if sess.RememberMe {
		refreshAge, remember = int(h.RefreshTTL/time.Second), "1"
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.RefreshCookie,
		Value:    sess.RefreshToken,
		Path:     "/api/auth",
		HTTPOnly: true,
		Secure:   h.CookieSecure,
		SameSite: "Strict",
		MaxAge:   refreshAge,
	})
	c.Cookie(&fiber.Cookie{
		Name:     rememberCookie,
		Value:    remember,
		Path:     "/api/auth",
		HTTPOnly: true,
		Secure:   h.CookieSecure,
		SameSite: "Strict",
		MaxAge:   refreshAge,
	})
}

func (h *AuthHandler) clearSessionCookies(c *fiber.Ctx) {
	for _, ck := range []struct{ name, path string }{
		{middleware.AccessCookie, "/"},
		{middleware.RefreshCookie, "/api/auth"},
		{rememberCookie, "/api/auth"},
	} {
		c.Cookie(&fiber.Cookie{
			Name:     ck.name,
			Value:    "",
			Path:     ck.path,
			MaxAge:   -1,
			HTTPOnly: true,
			Secure:   h.CookieSecure,
			SameSite: "Lax",
		})
	}
}
