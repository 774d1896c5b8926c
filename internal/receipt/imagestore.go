package receipt

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jthornhill/finagent/internal/safety"
)

// allowedExtensions maps accepted upload extensions to media types.
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// AllowedFile reports whether filename has an accepted image extension.
func AllowedFile(filename string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// mediaTypeFor returns the media type for filename's extension.
func mediaTypeFor(filename string) (string, bool) {
	mt, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return mt, ok
}

// ImageStore persists uploaded receipt images under a confined root and
// hands back the public URL they are served from.
type ImageStore struct {
	root      string
	urlPrefix string
}

// NewImageStore resolves and creates the upload root. urlPrefix is the
// path images are served under, e.g. "/static/uploads".
func NewImageStore(root, urlPrefix string) (*ImageStore, error) {
	abs, err := safety.InitUploadRoot(root)
	if err != nil {
		return nil, err
	}
	return &ImageStore{root: abs, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Save writes the image under a generated name, keeping only the
// original file's extension, and returns its public URL.
func (s *ImageStore) Save(image []byte, originalFilename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported image extension %q", ext)
	}

	name := uuid.NewString() + ext
	abs, err := safety.ValidateUploadPath(s.root, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, image, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path.Join(s.urlPrefix, name), nil
}

// Root returns the absolute upload root, for serving static files.
func (s *ImageStore) Root() string { return s.root }
