// Package filestore saves uploads on local disk. Callers only keep the
// returned relative path; /uploads serves the files.
package filestore

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
)

const (
	// PublicPrefix is the URL prefix the upload root is mounted under.
	PublicPrefix = "uploads"

	MaxPhotoBytes = 2 * 1024 * 1024
)

var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Local struct {
	Root     string
	MaxBytes int64
}

func NewLocal(root string) *Local {
	return &Local{Root: root, MaxBytes: MaxPhotoBytes}
}

// SaveProfilePhoto stores an image under profiles/<userID>/ and returns its
// path relative to the site root, e.g. uploads/profiles/<id>/<file>.png.
func (l *Local) SaveProfilePhoto(userID uuid.UUID, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", errs.BadRequest("photo is required (multipart field: photo)")
	}
	if fh.Size > l.MaxBytes {
		return "", errs.BadRequest(fmt.Sprintf("photo max size is %dMB", l.MaxBytes/(1024*1024)))
	}

	src, err := fh.Open()
	if err != nil {
		return "", errs.BadRequest("photo could not be read")
	}
	defer src.Close()

	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return "", errs.BadRequest("photo could not be read")
	}
	ext, ok := photoTypes[mt.String()]
	if !ok {
		return "", errs.BadRequest("photo must be jpg, png or webp")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", errs.Internal(fmt.Errorf("rewind upload: %w", err))
	}

	dir := filepath.Join(l.Root, "profiles", userID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.Internal(fmt.Errorf("create upload dir: %w", err))
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", errs.Internal(fmt.Errorf("create upload file: %w", err))
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, l.MaxBytes+1)); err != nil {
		return "", errs.Internal(fmt.Errorf("write upload: %w", err))
	}
	return path.Join(PublicPrefix, "profiles", userID.String(), name), nil
}
