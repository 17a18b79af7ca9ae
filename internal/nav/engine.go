// Package nav implements browsing a size tree: a current directory addressed
// by path from the root, a selection within its size-sorted listing, and
// per-directory selection memory across drill-in and drill-out.
package nav

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/sizeview/sizeview/internal/format"
	"github.com/sizeview/sizeview/internal/tree"
)

// Policy selects what single-step moves do at the ends of a listing.
type Policy int

const (
	// Clamp stops at the first and last entry.
	Clamp Policy = iota
	// Wrap continues from the other end.
	Wrap
)

func (p Policy) String() string {
	if p == Wrap {
		return "wrap"
	}
	return "clamp"
}

// Scanner rebuilds the subtree below an absolute directory path.
type Scanner interface {
	Scan(ctx context.Context, root string) (*tree.Entry, error)
}

// Engine owns the tree once the initial scan is done. It is driven from a
// single goroutine.
type Engine struct {
	tree     *tree.Tree
	root     string
	path     []string
	selected int
	policy   Policy
	log      *zap.Logger
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New starts browsing t at its root. root is the absolute filesystem path the
// tree was scanned from.
func New(t *tree.Tree, root string, opts ...Option) *Engine {
	e := &Engine{tree: t, root: root, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.selected = t.Cursor(t.Root())
	return e
}

// current resolves the viewed directory. The engine is the only writer of the
// tree, so a path that stops resolving is a bug, not a user condition.
func (e *Engine) current() tree.NodeID {
	id, err := e.tree.ResolveDir(e.path)
	if err != nil {
		panic(fmt.Sprintf("nav: current path lost: %v", err))
	}
	return id
}

func (e *Engine) children() []tree.Child {
	children, err := e.tree.ChildrenSorted(e.current())
	if err != nil {
		panic(fmt.Sprintf("nav: list current directory: %v", err))
	}
	return children
}

func (e *Engine) Tree() *tree.Tree { return e.tree }

func (e *Engine) Policy() Policy { return e.policy }

// Path returns the components of the current directory below the root.
func (e *Engine) Path() []string { return slices.Clone(e.path) }

// AbsPath returns the filesystem path of the current directory.
func (e *Engine) AbsPath() string {
	return filepath.Join(append([]string{e.root}, e.path...)...)
}

func (e *Engine) Selected() int { return e.selected }

// Len returns the number of entries in the current directory.
func (e *Engine) Len() int { return e.tree.Len(e.current()) }

// MoveSelection moves the selection by delta under the engine's policy. It
// does nothing in an empty directory.
func (e *Engine) MoveSelection(delta int) {
	n := e.Len()
	if n == 0 {
		return
	}
	if e.policy == Wrap {
		e.selected = ((e.selected+delta)%n + n) % n
		return
	}
	e.selected = tree.Clamp(e.selected+delta, n)
}

// PageMove moves the selection by pageSize in direction, clamping at both
// ends regardless of policy.
func (e *Engine) PageMove(direction, pageSize int) {
	n := e.Len()
	if n == 0 {
		return
	}
	pageSize = max(pageSize, 1)
	switch {
	case direction > 0:
		e.selected = tree.Clamp(e.selected+pageSize, n)
	case direction < 0:
		e.selected = tree.Clamp(e.selected-pageSize, n)
	}
}

func (e *Engine) JumpFirst() { e.selected = 0 }

func (e *Engine) JumpLast() {
	if n := e.Len(); n > 0 {
		e.selected = n - 1
	}
}

// Enter descends into the selected entry if it is a directory and restores
// the selection remembered for it. It reports whether the path changed.
func (e *Engine) Enter() bool {
	dir := e.current()
	children := e.children()
	if len(children) == 0 {
		return false
	}
	target := children[tree.Clamp(e.selected, len(children))]
	if !target.Dir {
		return false
	}
	e.tree.SetCursor(dir, e.selected)
	e.path = append(e.path, target.Name)
	e.selected = e.tree.Cursor(target.ID)
	return true
}

// Exit returns to the parent directory and restores its selection. It does
// nothing at the root.
func (e *Engine) Exit() bool {
	if len(e.path) == 0 {
		return false
	}
	e.tree.SetCursor(e.current(), e.selected)
	e.path = e.path[:len(e.path)-1]
	e.selected = e.tree.Cursor(e.current())
	return true
}

// RescanResult describes a subtree replacement.
type RescanResult struct {
	Path    string
	Before  uint64
	After   uint64
	Changed bool
}

// Rescan rebuilds the current directory with s and replaces it in place. It
// blocks until the scan is complete. On error the tree is left untouched.
func (e *Engine) Rescan(ctx context.Context, s Scanner) (RescanResult, error) {
	abs := e.AbsPath()
	entry, err := s.Scan(ctx, abs)
	if err != nil {
		return RescanResult{Path: abs}, fmt.Errorf("rescan %s: %w", abs, err)
	}
	return e.ApplyRescan(entry)
}

// ApplyRescan replaces the current directory with a freshly scanned entry.
// The path is unchanged, the directory's cursor is reset and the selection is
// narrowed to the new listing.
func (e *Engine) ApplyRescan(entry *tree.Entry) (RescanResult, error) {
	dir := e.current()
	res := RescanResult{
		Path:   e.AbsPath(),
		Before: e.tree.Size(dir),
	}
	before := e.tree.Fingerprint(dir)
	if err := e.tree.Replace(dir, entry); err != nil {
		return res, err
	}
	res.After = e.tree.Size(dir)
	res.Changed = e.tree.Fingerprint(dir) != before
	e.selected = tree.Clamp(e.selected, e.tree.Len(dir))

	e.log.Info("rescanned",
		zap.String("path", res.Path),
		zap.Uint64("before", res.Before),
		zap.Uint64("after", res.After),
		zap.Bool("changed", res.Changed),
	)
	return res, nil
}

// Row is one formatted listing line.
type Row struct {
	Name     string
	Size     uint64
	Dir      bool
	SizeText string
	Bar      string
}

// Label is the entry name with a trailing slash for directories.
func (r Row) Label() string {
	if r.Dir {
		return r.Name + "/"
	}
	return r.Name
}

// View is what the display draws after each operation.
type View struct {
	Path     string
	Rows     []Row
	Selected int
	Total    uint64
	Warning  error
}

func (e *Engine) View() View {
	dir := e.current()
	total := e.tree.Size(dir)
	children := e.children()

	rows := make([]Row, len(children))
	for i, c := range children {
		rows[i] = Row{
			Name:     c.Name,
			Size:     c.Size,
			Dir:      c.Dir,
			SizeText: format.Size(c.Size),
			Bar:      format.Bar(c.Size, total),
		}
	}
	return View{
		Path:     e.AbsPath(),
		Rows:     rows,
		Selected: e.selected,
		Total:    total,
		Warning:  e.tree.Warning(dir),
	}
}
