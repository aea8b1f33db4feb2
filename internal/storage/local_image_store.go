package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"go-damage-assessor/internal/repository"
)

// LocalImageStore keeps one file per image under a root directory
type LocalImageStore struct {
	root string
}

// NewLocalImageStore creates the root directory when missing
func NewLocalImageStore(root string) (*LocalImageStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local image store: empty root path")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local image store: create root: %w", err)
	}
	return &LocalImageStore{root: root}, nil
}

func (s *LocalImageStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid image id %q", id)
	}
	return filepath.Join(s.root, id), nil
}

func (s *LocalImageStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("put image: empty payload")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	p, _ := s.path(id)

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit image: %w", err)
	}
	return id, nil
}

func (s *LocalImageStore) Get(ctx context.Context, id string) ([]byte, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, repository.ErrImageNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, repository.ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

func (s *LocalImageStore) Exists(_ context.Context, id string) (bool, error) {
	p, err := s.path(id)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
