package download

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Resolve joins rel under root and returns the absolute destination path.
// rel must be a local path: absolute paths and paths that climb out of
// root with ".." are rejected.
func Resolve(root, rel string) (string, error) {
	if rel == "" {
		return "", errors.New("output path must not be empty")
	}

	if !filepath.IsLocal(rel) {
		return "", &Error{Err: ErrOutsideRoot, Detail: rel}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving output root: %w", err)
	}

	return filepath.Join(absRoot, rel), nil
}

// Sink streams bytes into a temporary file that replaces the destination
// only on a successful Commit. A Sink is owned by a single worker.
type Sink struct {
	file   *os.File
	dest   string
	w      io.Writer
	n      int64
	opts   options
	logger *slog.Logger
	done   bool
}

// Open resolves rel under root and creates a temporary file in the
// destination's directory. The destination itself is not touched until
// Commit.
func Open(root, rel string, logger *slog.Logger, optFns ...Option) (*Sink, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	dest, err := Resolve(root, rel)
	if err != nil {
		return nil, err
	}

	file, err := os.CreateTemp(filepath.Dir(dest), ".httpq-out-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	s := &Sink{
		file:   file,
		dest:   dest,
		opts:   opts,
		logger: logger,
	}

	var w io.Writer = file
	if opts.checksum != nil {
		w = io.MultiWriter(w, opts.checksum)
	}
	if opts.progress {
		w = &progressWriter{
			w:         w,
			logger:    logger,
			path:      dest,
			startTime: time.Now(),
		}
	}
	s.w = w

	return s, nil
}

// Path returns the absolute destination path.
func (s *Sink) Path() string {
	return s.dest
}

// Written returns the number of bytes written so far.
func (s *Sink) Written() int64 {
	return s.n
}

func (s *Sink) Write(p []byte) (int, error) {
	if s.done {
		return 0, ErrSinkClosed
	}

	n, err := s.w.Write(p)
	s.n += int64(n)

	return n, err
}

// Commit checks the byte count against contentLength (skipped when
// negative) and the checksum, then moves the temporary file onto the
// destination. It returns the number of bytes written. On error the
// temporary file is left for Abort to remove.
func (s *Sink) Commit(contentLength int64) (int64, error) {
	if s.done {
		return 0, ErrSinkClosed
	}

	if contentLength >= 0 && s.n != contentLength {
		return 0, &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, s.n),
		}
	}

	if err := s.opts.checksum.Verify(); err != nil {
		return 0, err
	}

	if err := s.file.Sync(); err != nil {
		return 0, fmt.Errorf("syncing temp file: %w", err)
	}

	if err := s.file.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(s.file.Name(), s.dest); err != nil {
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}

	s.done = true
	if s.opts.progress {
		s.logger.Info("output file complete", "path", s.dest, "transferred", s.n)
	}

	return s.n, nil
}

// Abort closes and removes the temporary file unless Commit succeeded.
// It is safe to call more than once.
func (s *Sink) Abort() {
	if s.done {
		return
	}
	s.done = true

	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Error("closing temp file", "error", err)
	}

	if err := os.Remove(s.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("removing temp file", "error", err)
	}
}
