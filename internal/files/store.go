// Package files stores invoice documents in a local directory under
// generated names of the form invoice-<YYYY-MM-DD>-<n><ext>.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cashboxes/internal/core"
)

const (
	namePrefix = "invoice-"
	// maxAttempts bounds the rescans after a concurrent writer took a name.
	maxAttempts = 20
)

// AllowedExtensions lists the document types accepted for invoices.
var AllowedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".gif", ".webp"}

type Store struct {
	root string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to date generated names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates root if needed.
func NewStore(root string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	s := &Store{root: root, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the directory documents live in.
func (s *Store) Root() string { return s.root }

// Extension returns the lower-cased extension of name and whether it is accepted.
func Extension(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return ext, true
		}
	}
	return ext, false
}

// Save writes r under the first free name for today and returns that name.
func (s *Store) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	ext, ok := Extension(originalName)
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFile, originalName)
	}
	day := core.DateOf(s.now())

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := s.nextIndex(day)
		if err != nil {
			return "", err
		}
		name := FileName(day, n, ext)
		f, err := os.OpenFile(filepath.Join(s.root, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", fmt.Errorf("close %s: %w", name, err)
		}
		slog.DebugContext(ctx, "Invoice document stored", "file", name)
		return name, nil
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", day, maxAttempts)
}

// Open returns the named document. Names must be plain file names.
func (s *Store) Open(name string) (*os.File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("document %q: %w", name, core.ErrNotFound)
	}
	return f, err
}

// Remove deletes the named document. Missing documents are not an error.
func (s *Store) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// FileName builds the stored name for the n-th document of day.
func FileName(day core.Date, n int, ext string) string {
	return namePrefix + day.String() + "-" + strconv.Itoa(n) + ext
}

// nextIndex returns the smallest n >= 1 whose stem is unused, whatever the extension.
func (s *Store) nextIndex(day core.Date) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("list media root: %w", err)
	}
	prefix := namePrefix + day.String() + "-"
	taken := make(map[int]struct{})
	for _, e := range entries {
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		rest, ok := strings.CutPrefix(stem, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			taken[n] = struct{}{}
		}
	}
	n := 1
	for {
		if _, ok := taken[n]; !ok {
			return n, nil
		}
		n++
	}
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid document name %q: %w", name, core.ErrNotFound)
	}
	return nil
}
