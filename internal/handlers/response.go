package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/middleware"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// envelope is the body of every JSON response.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    any         `json:"data,omitempty"`
	Errors  FieldErrors `json:"errors,omitempty"`
}

type listMeta struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int64  `json:"total"`
	TotalPages int    `json:"total_pages"`
	Sort       string `json:"sort"`
	Order      string `json:"order"`
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{Success: true, Message: message, Data: data})
}

func respondList(c *fiber.Ctx, items any, total int64, p store.Page) error {
	order := "asc"
	if p.Desc {
		order = "desc"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"meta": listMeta{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: p.TotalPages(total),
			Sort:       p.Sort,
			Order:      order,
		},
	})
}

// bind parses the body into dst and runs struct validation.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return errs.BadRequest("invalid body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errs.Validation(fieldErrors(verrs))
		}
		return errs.BadRequest("invalid body")
	}
	return nil
}

func fieldErrors(verrs validator.ValidationErrors) FieldErrors {
	out := FieldErrors{}
	for _, fe := range verrs {
		out.Add(fe.Field(), describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is invalid"
	}
}

// ErrorHandler renders every error returned by a handler or middleware as an
// envelope. Internal causes are logged and never sent to the client.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(envelope{Success: false, Message: fe.Message})
		}

		e := errs.From(err)
		if e.Kind == errs.KindInternal {
			log.Error().Err(e.Cause).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("request failed")
		} else if e.Cause != nil {
			log.Debug().Err(e.Cause).Str("kind", string(e.Kind)).Str("path", c.Path()).Msg("request rejected")
		}
		return c.Status(e.StatusCode()).JSON(envelope{
			Success: false,
			Message: e.Message,
			Errors:  FieldErrors(e.Fields),
		})
	}
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, errs.BadRequest(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// authUser returns the caller set by RequireAuth.
func authUser(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return uuid.Nil, errs.Unauthorized("missing access token")
	}
	return id, nil
}

// pageQuery reads ?page=&limit=&sort=&order=. Unknown sorts fall back to
// created_at desc inside Page.Normalize.
func pageQuery(c *fiber.Ctx) store.Page {
	return store.Page{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", store.DefaultLimit),
		Sort:  c.Query("sort", "created_at"),
		Desc:  !strings.EqualFold(c.Query("order", "desc"), "asc"),
	}
}
