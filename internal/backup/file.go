package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/pinvault/internal/filex"
)

// Extension is appended to export paths that have none.
const Extension = ".pvbak"

// maxArtifactSize caps how much ImportFromFile will read.
const maxArtifactSize = 256 << 20

// ExportToFile writes an export to path with owner-only permissions and
// returns the path actually written.
func (s *Service) ExportToFile(ctx context.Context, path string) (string, error) {
	if filepath.Ext(path) == "" {
		path += Extension
	}
	data, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "." {
		if _, err := filex.EnsureDir(dir); err != nil {
			return "", err
		}
	}
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// ImportFromFile reads an artifact from path and imports it.
func (s *Service) ImportFromFile(ctx context.Context, path, pin string, opts ImportOptions) (*ImportResult, error) {
	if !opts.Confirmed {
		return nil, ErrConfirmationRequired
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if len(data) > maxArtifactSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidArtifact, maxArtifactSize)
	}
	return s.Import(ctx, data, pin, opts)
}
