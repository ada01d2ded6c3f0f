// Package uploads stores QR-code images under a managed content directory.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/upilink/upilink/pkg/logging"
)

const (
	// MaxFileSize caps uploaded images at 5 MiB.
	MaxFileSize = 5 << 20

	// FieldName is the multipart form field carrying the image.
	FieldName = "qrImage"

	// URLPrefix is the public path prefix under which stored files are served.
	URLPrefix = "/uploads/"
)

var (
	// ErrNotImage is returned when the declared content type is not image/*
	ErrNotImage = errors.New("uploaded file is not an image")

	// ErrFileTooLarge is returned when the upload exceeds MaxFileSize
	ErrFileTooLarge = errors.New("uploaded file exceeds size limit")
)

// Store writes uploaded images into a content directory and hands out the
// relative paths they are served under.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// the first accepted upload.
func NewStore(dir string, logger *logging.Logger) *Store {
	if dir == "" {
		dir = "uploads"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the content directory for static serving.
func (s *Store) Dir() string {
	return s.dir
}

// FromRequest saves the request's image upload, if any, and returns its
// relative reference path. A request without a file is not an error; the
// caller treats the upload as optional.
func (s *Store) FromRequest(r *http.Request) (string, error) {
	file, header, err := r.FormFile(FieldName)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("uploads: failed to read form file: %w", err)
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}
	if header.Size > MaxFileSize {
		return "", ErrFileTooLarge
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("uploads: failed to create content dir: %w", err)
	}

	// Generated name: timestamp plus random UUID, original extension kept.
	// Client-supplied names never reach the filesystem.
	ext := strings.ToLower(filepath.Ext(header.Filename))
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), uuid.NewString(), ext)

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("uploads: failed to create file: %w", err)
	}
	defer dst.Close()

	// Guard against a declared size smaller than the actual stream.
	written, err := io.CopyN(dst, file, MaxFileSize+1)
	if err != nil && err != io.EOF {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("uploads: failed to write file: %w", err)
	}
	if written > MaxFileSize {
		_ = os.Remove(dst.Name())
		return "", ErrFileTooLarge
	}

	return URLPrefix + name, nil
}

// Remove deletes a previously stored file, best-effort. Paths outside the
// managed namespace are ignored, as are files already gone from disk.
func (s *Store) Remove(relPath string) {
	name, ok := strings.CutPrefix(relPath, URLPrefix)
	if !ok || name == "" {
		return
	}

	// filepath.Base strips any traversal left in the stored value.
	target := filepath.Join(s.dir, filepath.Base(name))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove superseded image", "path", target, "error", err)
	}
}
