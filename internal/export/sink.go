// Package export provides destinations for CSV exports.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/estatebot/internal/session"
)

var _ session.ExportSink = (*DirSink)(nil)

// DirSink writes exports into a directory.
type DirSink struct {
	Dir string

	// Saved, when non-nil, is called with the final path of every export.
	Saved func(path string)
}

// NewDirSink creates a sink writing into dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Save writes data to Dir/filename, replacing any existing file.
func (s *DirSink) Save(_ context.Context, filename string, data []byte) error {
	name, err := cleanName(filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	// Atomic write via temp file + rename
	target := filepath.Join(s.Dir, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp export: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp export: %w", err)
	}

	if s.Saved != nil {
		s.Saved(target)
	}
	return nil
}

// SinkFunc adapts a function to session.ExportSink.
type SinkFunc func(ctx context.Context, filename string, data []byte) error

func (f SinkFunc) Save(ctx context.Context, filename string, data []byte) error {
	return f(ctx, filename, data)
}

// cleanName strips any directory part from a service-supplied filename.
func cleanName(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid export filename %q", filename)
	}
	return name, nil
}
