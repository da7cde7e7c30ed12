package upload

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxFileSize = 2 << 20 // 2MB

var (
	ErrTooLarge     = errors.New("file exceeds the 2MB limit")
	ErrNotAnImage   = errors.New("only image files are allowed")
	ErrNoUploadsDir = errors.New("upload directory not configured")
)

// Saver writes uploaded pictures under Dir/<subdir>/ with random names and
// returns the relative path persisted on the owning record.
type Saver struct {
	Dir string
}

func (s *Saver) Save(file *multipart.FileHeader, subdir string) (string, error) {
	if s.Dir == "" {
		return "", ErrNoUploadsDir
	}
	if file.Size > MaxFileSize {
		return "", ErrTooLarge
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		return "", ErrNotAnImage
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dir := filepath.Join(s.Dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + filepath.Ext(file.Filename)
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, MaxFileSize)); err != nil {
		os.Remove(path)
		return "", err
	}

	return filepath.ToSlash(path), nil
}
