package nav

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizeview/sizeview/internal/scan"
	"github.com/sizeview/sizeview/internal/tree"
)

type fakeScanner struct {
	entry *tree.Entry
	err   error
	paths []string
}

func (f *fakeScanner) Scan(_ context.Context, root string) (*tree.Entry, error) {
	f.paths = append(f.paths, root)
	return f.entry, f.err
}

// sample lists at the root, largest first: big/ (1000), mid/ (300), small (10), zero/ (0).
func sample() *tree.Tree {
	return tree.New(tree.Dir("", 0,
		tree.Dir("big", 0,
			tree.File("x", 600),
			tree.File("y", 300),
			tree.Dir("z", 0, tree.File("deep", 100)),
		),
		tree.Dir("mid", 0,
			tree.File("m1", 200),
			tree.File("m2", 100),
		),
		tree.File("small", 10),
		tree.Dir("zero", 0),
	))
}

func newEngine(opts ...Option) *Engine {
	return New(sample(), "/data", opts...)
}

func TestNewStartsAtRoot(t *testing.T) {
	e := newEngine()
	assert.Empty(t, e.Path())
	assert.Equal(t, 0, e.Selected())
	assert.Equal(t, 4, e.Len())
	assert.Equal(t, "/data", e.AbsPath())
	assert.Equal(t, Clamp, e.Policy())
}

func TestMoveSelectionClamp(t *testing.T) {
	e := newEngine()

	e.MoveSelection(1)
	assert.Equal(t, 1, e.Selected())
	e.MoveSelection(10)
	assert.Equal(t, 3, e.Selected())
	e.MoveSelection(1)
	assert.Equal(t, 3, e.Selected())
	e.MoveSelection(-10)
	assert.Equal(t, 0, e.Selected())
	e.MoveSelection(-1)
	assert.Equal(t, 0, e.Selected())
}

func TestMoveSelectionPoliciesAtEveryLength(t *testing.T) {
	for n := 1; n <= 6; n++ {
		files := make([]*tree.Entry, n)
		for i := range files {
			files[i] = tree.File(fmt.Sprintf("f%d", i), uint64(i))
		}

		clamp := New(tree.New(tree.Dir("", 0, files...)), "/")
		clamp.JumpLast()
		clamp.MoveSelection(1)
		assert.Equal(t, n-1, clamp.Selected(), "clamp n=%d", n)
		clamp.JumpFirst()
		clamp.MoveSelection(-1)
		assert.Equal(t, 0, clamp.Selected(), "clamp n=%d", n)

		wrap := New(tree.New(tree.Dir("", 0, files...)), "/", WithPolicy(Wrap))
		wrap.JumpLast()
		wrap.MoveSelection(1)
		assert.Equal(t, 0, wrap.Selected(), "wrap n=%d", n)
		wrap.MoveSelection(-1)
		assert.Equal(t, n-1, wrap.Selected(), "wrap n=%d", n)
	}
}

func TestEmptyDirectoryIsSafe(t *testing.T) {
	for _, policy := range []Policy{Clamp, Wrap} {
		e := New(tree.New(tree.Dir("", 0)), "/", WithPolicy(policy))
		assert.NotPanics(t, func() {
			e.MoveSelection(1)
			e.MoveSelection(-1)
			e.JumpLast()
			e.JumpFirst()
			e.PageMove(1, 10)
			e.PageMove(-1, 10)
			assert.False(t, e.Enter())
			assert.False(t, e.Exit())
		}, policy.String())
		assert.Equal(t, 0, e.Selected())
		assert.Empty(t, e.View().Rows)
	}
}

func TestJumps(t *testing.T) {
	e := newEngine()
	e.JumpLast()
	assert.Equal(t, 3, e.Selected())
	e.JumpFirst()
	assert.Equal(t, 0, e.Selected())
}

func TestPageMoveClampsUnderBothPolicies(t *testing.T) {
	for _, policy := range []Policy{Clamp, Wrap} {
		e := newEngine(WithPolicy(policy))
		e.PageMove(1, 2)
		assert.Equal(t, 2, e.Selected())
		e.PageMove(1, 2)
		assert.Equal(t, 3, e.Selected())
		e.PageMove(-1, 100)
		assert.Equal(t, 0, e.Selected())
		e.PageMove(1, 0)
		assert.Equal(t, 1, e.Selected())
	}
}

func TestEnterAndExit(t *testing.T) {
	e := newEngine()

	require.True(t, e.Enter())
	assert.Equal(t, []string{"big"}, e.Path())
	assert.Equal(t, "/data/big", e.AbsPath())
	assert.Equal(t, 0, e.Selected())

	require.True(t, e.Exit())
	assert.Empty(t, e.Path())
	assert.Equal(t, 0, e.Selected())
	assert.False(t, e.Exit())
}

func TestEnterThenExitRestoresSelection(t *testing.T) {
	for _, sel := range []int{0, 1} {
		e := newEngine()
		e.MoveSelection(sel)
		require.True(t, e.Enter())
		e.MoveSelection(1)
		require.True(t, e.Exit())
		assert.Equal(t, sel, e.Selected())
	}
}

func TestEnterFileIsNoop(t *testing.T) {
	e := newEngine()
	e.MoveSelection(2) // small
	assert.False(t, e.Enter())
	assert.Empty(t, e.Path())
	assert.Equal(t, 2, e.Selected())
}

func TestSelectionRememberedPerDirectory(t *testing.T) {
	e := newEngine()

	require.True(t, e.Enter()) // big
	e.MoveSelection(2)         // z
	require.True(t, e.Enter()) // big/z
	assert.Equal(t, []string{"big", "z"}, e.Path())
	require.True(t, e.Exit())
	assert.Equal(t, 2, e.Selected())
	require.True(t, e.Exit())

	e.MoveSelection(1)         // mid
	require.True(t, e.Enter()) // mid
	e.JumpLast()
	require.True(t, e.Exit())
	assert.Equal(t, 1, e.Selected())

	e.JumpFirst()
	require.True(t, e.Enter()) // big again
	assert.Equal(t, 2, e.Selected())

	require.True(t, e.Exit())
	e.MoveSelection(1)
	require.True(t, e.Enter()) // mid again
	assert.Equal(t, 1, e.Selected())
}

func TestView(t *testing.T) {
	e := newEngine()
	e.MoveSelection(1)

	v := e.View()
	assert.Equal(t, "/data", v.Path)
	assert.Equal(t, uint64(1310), v.Total)
	assert.Equal(t, 1, v.Selected)
	require.Len(t, v.Rows, 4)

	assert.Equal(t, "big/", v.Rows[0].Label())
	assert.Equal(t, "mid/", v.Rows[1].Label())
	assert.Equal(t, "small", v.Rows[2].Label())
	assert.Equal(t, "zero/", v.Rows[3].Label())
	assert.Equal(t, "    1000", v.Rows[0].SizeText)
	assert.Equal(t, " [██████▏ ] ", v.Rows[0].Bar)
	assert.Nil(t, v.Warning)
}

func TestRescanNarrowsSelection(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "shrink")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, fmt.Sprintf("f%d", i))
		require.NoError(t, os.WriteFile(name, []byte(strings.Repeat("x", 10*(i+1))), 0o644))
	}

	s, err := scan.New(scan.WithConcurrency(2))
	require.NoError(t, err)
	entry, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	e := New(tree.New(entry), root)
	require.True(t, e.Enter())
	e.JumpLast()
	assert.Equal(t, 4, e.Selected())

	for i := 0; i < 3; i++ {
		require.NoError(t, os.Remove(filepath.Join(dir, fmt.Sprintf("f%d", i))))
	}

	res, err := e.Rescan(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Less(t, res.After, res.Before)
	assert.Equal(t, []string{"shrink"}, e.Path())
	assert.Equal(t, 2, e.Len())
	assert.GreaterOrEqual(t, e.Selected(), 0)
	assert.LessOrEqual(t, e.Selected(), 1)

	_, err = e.Tree().ResolveDir(e.Path())
	require.NoError(t, err)
	assert.Equal(t, e.Tree().Size(e.Tree().Root()), entry.Size-res.Before+res.After)

	res, err = e.Rescan(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestRescanResetsCursorAndKeepsAncestors(t *testing.T) {
	e := newEngine()
	require.True(t, e.Enter()) // big
	e.MoveSelection(2)
	require.True(t, e.Enter()) // big/z
	require.True(t, e.Exit())  // cursor of big/z stays 0, big remembers 2
	require.True(t, e.Enter())
	tr := e.Tree()

	fake := &fakeScanner{entry: tree.Dir("z", 0, tree.File("deep", 40), tree.File("more", 60))}
	res, err := e.Rescan(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/big/z"}, fake.paths)
	assert.Equal(t, uint64(100), res.Before)
	assert.Equal(t, uint64(100), res.After)
	assert.True(t, res.Changed)

	z, err := tr.ResolveDir([]string{"big", "z"})
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Cursor(z))
	assert.Equal(t, []string{"big", "z"}, e.Path())
	assert.Equal(t, uint64(1310), tr.Size(tr.Root()))
}

func TestRescanUnreadableDirectoryEmptiesIt(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.MkdirAll(locked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "secret"), []byte(strings.Repeat("x", 500)), 0o644))

	s, err := scan.New()
	require.NoError(t, err)
	entry, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	e := New(tree.New(entry), root)
	require.True(t, e.Enter())
	require.Equal(t, 1, e.Len())

	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	res, err := e.Rescan(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 0, e.Len())
	assert.Equal(t, 0, e.Selected())

	info, err := os.Lstat(locked)
	require.NoError(t, err)
	assert.Equal(t, uint64(info.Size()), res.After)
	assert.ErrorIs(t, e.View().Warning, fs.ErrPermission)
	assert.Equal(t, entry.Size-res.Before+res.After, e.Tree().Size(e.Tree().Root()))
}

func TestRescanErrorLeavesTreeUntouched(t *testing.T) {
	e := newEngine()
	require.True(t, e.Enter())
	before := e.Tree().Fingerprint(e.Tree().Root())

	boom := errors.New("device gone")
	_, err := e.Rescan(context.Background(), &fakeScanner{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, e.Tree().Fingerprint(e.Tree().Root()))
	assert.Equal(t, []string{"big"}, e.Path())
}

func TestRescanRejectsFileEntry(t *testing.T) {
	e := newEngine()
	_, err := e.ApplyRescan(tree.File("oops", 1))
	assert.ErrorIs(t, err, tree.ErrNotADirectory)
}

func TestLostPathPanics(t *testing.T) {
	e := newEngine()
	require.True(t, e.Enter()) // big

	// Replace the root behind the engine's back.
	require.NoError(t, e.Tree().Replace(e.Tree().Root(), tree.Dir("", 0, tree.File("other", 1))))
	assert.Panics(t, func() { e.View() })
}
