package downloads

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"filemart/internal/common"
	"filemart/internal/models"
)

// LocalResolver serves files below a root directory.
type LocalResolver struct {
	root string
}

func NewLocalResolver(root string) *LocalResolver {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &LocalResolver{root: filepath.Clean(root)}
}

func (r *LocalResolver) Resolve(_ context.Context, file models.FileRef) (*Delivery, error) {
	target, err := r.path(file.ID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", file.ID, common.ErrNotFound)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("file %s: %w", file.ID, common.ErrNotFound)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(target))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := file.Name
	if name == "" {
		name = filepath.Base(target)
	}

	return &Delivery{
		Reader:      f,
		Name:        name,
		Size:        info.Size(),
		ContentType: contentType,
	}, nil
}

// path maps a file id onto the root, refusing anything that escapes it.
func (r *LocalResolver) path(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("empty file id: %w", common.ErrNotFound)
	}

	cleanRel := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(filepath.ToSlash(trimmed), "/")), "/")
	if cleanRel == "" {
		return "", fmt.Errorf("refusing file id %q", id)
	}

	target := filepath.Clean(filepath.Join(r.root, filepath.FromSlash(cleanRel)))
	if !strings.HasPrefix(target, r.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("refusing path outside upload root: %s", id)
	}
	return target, nil
}
