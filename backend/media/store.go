package media

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrEmptyUpload          = errors.New("empty upload")
)

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// DiskStore writes uploaded images to a local directory and hands back an
// opaque reference under /uploads/. The game core never looks behind the
// reference.
type DiskStore struct {
	dir    string
	logger zerolog.Logger
}

func NewDiskStore(dir string, logger *zerolog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{
		dir:    dir,
		logger: logger.With().Str("component", "media-store").Logger(),
	}, nil
}

// Save stores the uploaded bytes under a fresh name keeping the original
// extension, and returns the media reference.
func (s *DiskStore) Save(data []byte, originalName string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedMediaType
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", err
	}
	s.logger.Debug().
		Str("file", name).
		Int("bytes", len(data)).
		Msg("upload stored")
	return "/uploads/" + name, nil
}

// Dir is the directory served statically at /uploads/.
func (s *DiskStore) Dir() string {
	return s.dir
}
