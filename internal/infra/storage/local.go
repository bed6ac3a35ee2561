package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	domain "github.com/skinsight/review-console/internal/domain/analysis"
)

// Dir serves scan images from a local uploads directory; used when no
// object store is configured.
type Dir struct {
	root string
}

func NewDir(root string) *Dir { return &Dir{root: root} }

func (d *Dir) Open(_ context.Context, filename string) (io.ReadCloser, string, error) {
	name := domain.ImageFilename(filename)
	if name == "" {
		return nil, "", domain.ErrImageNotFound
	}
	f, err := os.Open(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w", name, domain.ErrImageNotFound)
		}
		return nil, "", err
	}
	return f, contentType(name), nil
}

func (d *Dir) URL(filename string) string {
	if filename == "" {
		return ""
	}
	return "/uploads/" + url.PathEscape(filename)
}

func (d *Dir) Ping(context.Context) error {
	_, err := os.Stat(d.root)
	return err
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
