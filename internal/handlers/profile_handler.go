package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/middleware"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/auth"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/filestore"
)

type ProfileHandler struct {
	Auth    *auth.Service
	Files   *filestore.Local
	Session *AuthHandler
}

func NewProfileHandler(authSvc *auth.Service, files *filestore.Local, session *AuthHandler) *ProfileHandler {
	return &ProfileHandler{Auth: authSvc, Files: files, Session: session}
}

func (h *ProfileHandler) Routes(r fiber.Router, g Guards) {
	me := r.Group("/me", g.Auth)
	me.Get("/", h.Get)
	me.Patch("/", h.UpdateProfile)
	me.Delete("/", h.Deactivate)
	me.Post("/password", h.ChangePassword)
	me.Post("/photo", h.UploadPhoto)

	r.Get("/users/:id", g.Optional, h.GetPublicProfile)
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	u, err := h.Auth.Me(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", u)
}

type updateProfileReq struct {
	Name       *string  `json:"name" validate:"omitempty,min=2,max=100"`
	Bio        *string  `json:"bio" validate:"omitempty,max=2000"`
	Skills     []string `json:"skills" validate:"omitempty,max=30,dive,max=50"`
	HourlyRate *float64 `json:"hourly_rate" validate:"omitempty,gte=0"`
	Location   *string  `json:"location" validate:"omitempty,max=120"`
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}

	var req updateProfileReq
	if err := bind(c, &req); err != nil {
		return err
	}

	u, err := h.Auth.UpdateProfile(c.UserContext(), userID, auth.ProfilePatch{
		Name:       req.Name,
		Bio:        req.Bio,
		Skills:     req.Skills,
		HourlyRate: req.HourlyRate,
		Location:   req.Location,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "profile updated", u)
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ChangePassword revokes the stored refresh token and clears the session
// cookies. Issued access tokens stay valid until they expire.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}

	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Auth.ChangePassword(c.UserContext(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	h.Session.clearSessionCookies(c)
	return respond(c, fiber.StatusOK, "password changed, please log in again", nil)
}

func (h *ProfileHandler) UploadPhoto(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return errs.BadRequest("photo is required (multipart field: photo)")
	}
	path, err := h.Files.SaveProfilePhoto(userID, file)
	if err != nil {
		return err
	}

	u, err := h.Auth.SetProfilePicture(c.UserContext(), userID, path)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "photo uploaded", u)
}

func (h *ProfileHandler) Deactivate(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	if err := h.Auth.Deactivate(c.UserContext(), userID); err != nil {
		return err
	}
	h.Session.clearSessionCookies(c)
	return respond(c, fiber.StatusOK, "account deactivated", nil)
}

func (h *ProfileHandler) GetPublicProfile(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.Auth.PublicProfile(c.UserContext(), id)
	if err != nil {
		return err
	}
	// Email stays private unless the caller is looking at themselves.
	if viewer, ok := middleware.UserID(c); !ok || viewer != u.ID {
		u.Email = ""
	}
	return respond(c, fiber.StatusOK, "", u)
}
