// Package scan measures directory trees concurrently.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sizeview/sizeview/internal/metrics"
	"github.com/sizeview/sizeview/internal/tree"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Policy decides what happens to I/O errors below the scan root.
type Policy int

const (
	// Partial degrades the affected entry and records a warning.
	Partial Policy = iota
	// Abort fails the whole scan with the first error.
	Abort
)

func (p Policy) String() string {
	if p == Abort {
		return "abort"
	}
	return "partial"
}

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "partial":
		return Partial, nil
	case "abort":
		return Abort, nil
	}
	return Partial, fmt.Errorf("unknown error policy %q", s)
}

// Scanner walks directory trees. Children of a directory are scanned on new
// goroutines while admission slots are free and inline otherwise; the slots
// are shared by every scan the Scanner runs.
type Scanner struct {
	limit    int
	sem      *semaphore.Weighted
	policy   Policy
	exclude  []glob.Glob
	log      *zap.Logger
	metrics  *metrics.Scan
	progress Progress
	readDir  func(string) ([]fs.DirEntry, error)

	active atomic.Int64
	peak   atomic.Int64
}

// Option configures a Scanner.
type Option func(*Scanner) error

// WithConcurrency sets the admission cap. Values below 1 select the number
// of CPUs.
func WithConcurrency(n int) Option {
	return func(s *Scanner) error {
		if n < 1 {
			n = runtime.NumCPU()
		}
		s.limit = n
		return nil
	}
}

func WithPolicy(p Policy) Option {
	return func(s *Scanner) error {
		s.policy = p
		return nil
	}
}

// WithExclude skips entries whose name or absolute path matches one of the
// glob patterns.
func WithExclude(patterns ...string) Option {
	return func(s *Scanner) error {
		for _, p := range patterns {
			g, err := glob.Compile(p, filepath.Separator)
			if err != nil {
				return fmt.Errorf("exclude pattern %q: %w", p, err)
			}
			s.exclude = append(s.exclude, g)
		}
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

func WithMetrics(m *metrics.Scan) Option {
	return func(s *Scanner) error {
		s.metrics = m
		return nil
	}
}

// New creates a Scanner.
func New(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		limit:   runtime.NumCPU(),
		log:     zap.NewNop(),
		readDir: os.ReadDir,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.sem = semaphore.NewWeighted(int64(s.limit))
	return s, nil
}

// Stats reports admission counters.
type Stats struct {
	Limit  int
	Active int64
	Peak   int64
}

func (s *Scanner) Stats() Stats {
	return Stats{Limit: s.limit, Active: s.active.Load(), Peak: s.peak.Load()}
}

// Progress returns the live counters of the running or last scan.
func (s *Scanner) Progress() *Progress { return &s.progress }

// Scan measures root and everything below it. An unreadable root yields an
// empty directory carrying the permission error as its warning.
func (s *Scanner) Scan(ctx context.Context, root string) (e *tree.Entry, err error) {
	start := time.Now()
	s.progress.reset()
	s.log.Debug("scan started", zap.String("root", root), zap.Int("limit", s.limit), zap.Stringer("policy", s.policy))
	defer func() {
		s.metrics.RecordScan(time.Since(start), err)
		if err != nil {
			s.log.Error("scan failed", zap.String("root", root), zap.Error(err))
			return
		}
		snap := s.progress.Snapshot()
		s.log.Info("scan finished",
			zap.String("root", root),
			zap.Int64("files", snap.Files),
			zap.Int64("dirs", snap.Dirs),
			zap.Int64("bytes", snap.Bytes),
			zap.Int64("warnings", snap.Warnings),
			zap.Duration("took", time.Since(start)),
		)
	}()
	defer recoverTask(root, &err)

	// The start directory itself may be reached through a symlink.
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: %w", root, ErrNotDirectory)
	}
	return s.scanDir(ctx, root, "", sizeOf(info), true)
}

func (s *Scanner) scanDir(ctx context.Context, path, name string, own uint64, root bool) (*tree.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := &tree.Entry{Name: name, Dir: true, Size: own}
	s.progress.addDir(path, own)
	s.metrics.RecordDir(own)

	children, err := s.readDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) || (!root && s.policy == Partial) {
			dir.Warning = err
			s.warn(path, err)
			return dir, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	slots := make([]*tree.Entry, len(children))
	warns := make([]error, len(children))
	g, gctx := errgroup.WithContext(ctx)

	for i, child := range children {
		i, child := i, child
		childPath := filepath.Join(path, child.Name())
		if s.excluded(child.Name(), childPath) {
			continue
		}
		task := func(ctx context.Context) error {
			e, err := s.scanEntry(ctx, childPath, child)
			var serr *statError
			if errors.As(err, &serr) && s.policy == Partial {
				warns[i] = serr
				s.warn(childPath, serr.Err)
				return nil
			}
			if err != nil {
				return err
			}
			slots[i] = e
			return nil
		}

		if s.sem.TryAcquire(1) {
			s.taskStarted()
			g.Go(func() (err error) {
				defer s.taskDone()
				defer recoverTask(childPath, &err)
				return task(gctx)
			})
			continue
		}
		if err := task(gctx); err != nil {
			_ = g.Wait()
			return nil, err
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, e := range slots {
		if e != nil {
			dir.Children = append(dir.Children, e)
			dir.Size += e.Size
		}
	}
	if w := errors.Join(warns...); w != nil {
		dir.Warning = w
	}
	return dir, nil
}

// scanEntry measures one directory entry without following symlinks.
func (s *Scanner) scanEntry(ctx context.Context, path string, d fs.DirEntry) (*tree.Entry, error) {
	info, err := d.Info()
	if err != nil {
		return nil, &statError{Path: path, Err: err}
	}
	size := sizeOf(info)
	if info.IsDir() {
		return s.scanDir(ctx, path, d.Name(), size, false)
	}
	s.progress.addFile(size)
	s.metrics.RecordFile(size)
	return tree.File(d.Name(), size), nil
}

func (s *Scanner) excluded(name, path string) bool {
	for _, g := range s.exclude {
		if g.Match(name) || g.Match(path) {
			return true
		}
	}
	return false
}

func (s *Scanner) warn(path string, err error) {
	s.progress.warnings.Add(1)
	s.metrics.RecordWarning()
	s.log.Warn("partial scan", zap.String("path", path), zap.Error(err))
}

func (s *Scanner) taskStarted() {
	n := s.active.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.metrics.TaskStarted()
}

func (s *Scanner) taskDone() {
	s.active.Add(-1)
	s.metrics.TaskDone()
	s.sem.Release(1)
}

// statError marks a failure to read an entry's own metadata.
type statError struct {
	Path string
	Err  error
}

func (e *statError) Error() string { return fmt.Sprintf("stat %s: %v", e.Path, e.Err) }

func (e *statError) Unwrap() error { return e.Err }

func recoverTask(path string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("scan %s: panic: %v", path, r)
	}
}

func sizeOf(info fs.FileInfo) uint64 {
	if n := info.Size(); n > 0 {
		return uint64(n)
	}
	return 0
}
