package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wata-nana/Hiraizumi-app/pkg/config"
)

// Extensions accepted for pin images. Route cover images are stored
// without this filter.
var allowedImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Store writes uploaded files into a fixed directory and maps them to
// externally resolvable static URLs.
type Store struct {
	dir       string
	urlPrefix string
	maxSize   int64
}

// New creates the store and ensures the upload directory exists.
func New(cfg *config.UploadConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Store{
		dir:       cfg.Dir,
		urlPrefix: strings.TrimSuffix(cfg.URLPrefix, "/"),
		maxSize:   int64(cfg.MaxSizeMB) << 20,
	}, nil
}

// Dir returns the upload directory path.
func (s *Store) Dir() string {
	return s.dir
}

// AllowedImageExt reports whether the filename carries an accepted image
// extension, case-insensitively.
func AllowedImageExt(filename string) bool {
	return allowedImageExts[strings.ToLower(filepath.Ext(filename))]
}

// Save stores the uploaded file under a sanitized, timestamp-prefixed
// name and returns its public URL. File writes are not transactional
// with any database write.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return "", fmt.Errorf("file exceeds the %d MB upload limit", s.maxSize>>20)
	}

	name := SanitizeFilename(fh.Filename)
	name = fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102150405"), name)

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return s.urlPrefix + "/" + name, nil
}

// SanitizeFilename strips path components and unsafe characters from an
// uploaded filename. An empty result is replaced with a generated name
// so the stored file always has one.
func SanitizeFilename(filename string) string {
	name := path.Base(filepath.ToSlash(filename))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")

	if name == "" {
		name = strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	return name
}
