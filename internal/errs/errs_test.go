package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindBadRequest, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindInternal, http.StatusInternalServerError},
		{Kind("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusCode(tc.kind); got != tc.want {
			t.Errorf("StatusCode(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestHiddenKeepsForbiddenCause(t *testing.T) {
	err := fmt.Errorf("update bid: %w", Hidden("bid not found"))

	if !Is(err, KindNotFound) {
		t.Fatalf("expected not_found kind, got %s", KindOf(err))
	}
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("expected ErrForbidden in the cause chain")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("hidden permission failure must not look like a real miss internally")
	}
}

func TestNotFoundCause(t *testing.T) {
	err := NotFound("gig not found")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected ErrNotFound in the cause chain")
	}
	if err.StatusCode() != http.StatusNotFound {
		t.Fatalf("unexpected status %d", err.StatusCode())
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")
	e := From(cause)
	if e.Kind != KindInternal {
		t.Fatalf("expected internal, got %s", e.Kind)
	}
	if e.Message != "internal server error" {
		t.Fatalf("internal message leaked cause: %q", e.Message)
	}
	if !errors.Is(e, cause) {
		t.Fatal("expected cause to be preserved")
	}

	known := Conflict("email already registered")
	if From(known) != known {
		t.Fatal("From must return typed errors unchanged")
	}
}
