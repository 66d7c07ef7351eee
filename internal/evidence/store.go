// Package evidence stores before/after photos for bookings.
package evidence

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cleanops/internal/config"
	"cleanops/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NewStore creates a store for the configured mode.
func NewStore(cfg config.EvidenceConfig, logger *zerolog.Logger) (domain.EvidenceStore, error) {
	switch cfg.Mode {
	case "", "local":
		return NewLocalStore(cfg.LocalBasePath, cfg.PublicBaseURL)
	case "azure":
		if cfg.AzureConnectionString == "" {
			return nil, fmt.Errorf("azure connection string required for azure evidence storage")
		}
		return NewAzureStore(cfg.AzureConnectionString, cfg.AzureContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported evidence mode: %s", cfg.Mode)
	}
}

// LocalStore keeps files under basePath and serves them from publicBaseURL.
type LocalStore struct {
	basePath      string
	publicBaseURL string
}

func NewLocalStore(basePath, publicBaseURL string) (*LocalStore, error) {
	if basePath == "" {
		basePath = "./data/evidence"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}
	return &LocalStore{basePath: basePath, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *LocalStore) Upload(ctx context.Context, filename, contentType string, data io.Reader) (string, int64, error) {
	fileID := uuid.New().String()
	storagePath := filepath.Join(fileID[:2], fileID[2:4], fileID+strings.ToLower(filepath.Ext(filename)))
	fullPath := filepath.Join(s.basePath, storagePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, &ctxReader{ctx: ctx, r: data})
	if err != nil {
		os.Remove(fullPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}
	return filepath.ToSlash(storagePath), size, nil
}

func (s *LocalStore) Download(_ context.Context, storagePath string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(storagePath)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", storagePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalStore) Delete(_ context.Context, storagePath string) error {
	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(storagePath))); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStore) URL(storagePath string) string {
	if s.publicBaseURL == "" {
		return "/evidence/" + storagePath
	}
	u, err := url.JoinPath(s.publicBaseURL, storagePath)
	if err != nil {
		return s.publicBaseURL + "/" + storagePath
	}
	return u
}

// ctxReader stops a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// countingReader wraps an io.Reader and counts the number of bytes read.
type countingReader struct {
	r     io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count += int64(n)
	return n, err
}
