package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/sizeview/sizeview/internal/format"
	"github.com/sizeview/sizeview/internal/nav"
	"github.com/sizeview/sizeview/internal/scan"
	"github.com/sizeview/sizeview/internal/tree"
	"github.com/sizeview/sizeview/internal/watch"
)

type scanDoneMsg struct {
	entry *tree.Entry
	err   error
}

type rescanDoneMsg struct {
	path  string
	entry *tree.Entry
	err   error
}

type tickMsg time.Time

// changedMsg carries the directory the watcher saw change.
type changedMsg string

type model struct {
	ctx     context.Context
	root    string
	scanner *scan.Scanner
	engine  *nav.Engine // nil until the initial scan is done
	navOpts []nav.Option
	log     *zap.Logger
	watcher *watch.Watcher
	keys    keyMap

	scanning   bool
	rescanning bool
	ticking    bool // a tickMsg is in flight
	spinner    int
	status     string
	stale      bool
	warnings   int
	err        error

	width  int
	height int
	offset int
}

func newModel(ctx context.Context, root string, scanner *scan.Scanner, watcher *watch.Watcher, log *zap.Logger, opts ...nav.Option) model {
	if log == nil {
		log = zap.NewNop()
	}
	return model{
		ctx:      ctx,
		root:     root,
		scanner:  scanner,
		navOpts:  opts,
		log:      log,
		watcher:  watcher,
		keys:     defaultKeyMap(),
		scanning: true,
		ticking:  true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.scanCmd(), tickCmd())
}

func (m model) scanCmd() tea.Cmd {
	return func() tea.Msg {
		entry, err := m.scanner.Scan(m.ctx, m.root)
		return scanDoneMsg{entry: entry, err: err}
	}
}

// rescanCmd scans path off the UI goroutine. The result is grafted in Update
// so the engine is only touched from one goroutine.
func (m model) rescanCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.scanner.Scan(m.ctx, path)
		return rescanDoneMsg{path: path, entry: entry, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(w *watch.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		dir, ok := <-w.Changes()
		if !ok {
			return nil
		}
		return changedMsg(dir)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampOffset()
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	case scanDoneMsg:
		m.scanning = false
		if msg.err != nil {
			m.err = fmt.Errorf("scan %s: %w", m.root, msg.err)
			return m, tea.Quit
		}
		m.engine = nav.New(tree.New(msg.entry), m.root, m.navOpts...)
		m.warnings = len(m.engine.Tree().Warnings())
		m.status = fmt.Sprintf("Scanned %s", strings.TrimSpace(format.Size(msg.entry.Size)))
		m.onDirChange()
		return m, waitForChange(m.watcher)
	case rescanDoneMsg:
		m.rescanning = false
		m.applyRescan(msg)
		m.clampOffset()
		return m, nil
	case changedMsg:
		if m.engine != nil && string(msg) == m.engine.AbsPath() {
			m.stale = true
		}
		return m, waitForChange(m.watcher)
	case tickMsg:
		if m.scanning || m.rescanning {
			m.spinner = (m.spinner + 1) % len(spinnerFrames)
			return m, tickCmd()
		}
		m.ticking = false
		return m, nil
	default:
		return m, nil
	}
}

func (m model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	// The tree is not ready, or is about to be replaced.
	if m.engine == nil || m.scanning || m.rescanning {
		return m, nil
	}

	e := m.engine
	switch {
	case key.Matches(msg, m.keys.Up):
		e.MoveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		e.MoveSelection(1)
	case key.Matches(msg, m.keys.Top):
		e.JumpFirst()
	case key.Matches(msg, m.keys.Bottom):
		e.JumpLast()
	case key.Matches(msg, m.keys.PageUp):
		e.PageMove(-1, m.pageSize())
	case key.Matches(msg, m.keys.PageDown):
		e.PageMove(1, m.pageSize())
	case key.Matches(msg, m.keys.Enter):
		if e.Enter() {
			m.onDirChange()
		}
	case key.Matches(msg, m.keys.Back):
		if e.Exit() {
			m.onDirChange()
		}
	case key.Matches(msg, m.keys.Rescan):
		m.rescanning = true
		m.status = "Rescanning..."
		cmd := m.rescanCmd(e.AbsPath())
		if !m.ticking {
			m.ticking = true
			cmd = tea.Batch(cmd, tickCmd())
		}
		return m, cmd
	}
	m.clampOffset()
	return m, nil
}

func (m *model) applyRescan(msg rescanDoneMsg) {
	if msg.err != nil {
		m.status = fmt.Sprintf("Rescan failed: %v", msg.err)
		return
	}
	if msg.path != m.engine.AbsPath() {
		m.log.Warn("dropping rescan for another directory", zap.String("path", msg.path))
		return
	}
	res, err := m.engine.ApplyRescan(msg.entry)
	if err != nil {
		m.status = fmt.Sprintf("Rescan failed: %v", err)
		return
	}
	m.stale = false
	m.warnings = len(m.engine.Tree().Warnings())
	if !res.Changed {
		m.status = "Rescanned, unchanged"
		return
	}
	m.status = fmt.Sprintf("Rescanned %s → %s",
		strings.TrimSpace(format.Size(res.Before)), strings.TrimSpace(format.Size(res.After)))
}

// onDirChange runs after the current directory changed.
func (m *model) onDirChange() {
	m.stale = false
	m.offset = 0
	m.clampOffset()
	if m.watcher == nil {
		return
	}
	if err := m.watcher.Watch(m.engine.AbsPath()); err != nil {
		m.log.Warn("watch failed", zap.Error(err))
	}
}

func (m model) viewport() int {
	if m.height <= 0 {
		return entryViewport
	}
	return max(m.height-headerLines-footerLines, 1)
}

func (m model) pageSize() int {
	h := m.height
	if h <= 0 {
		h = entryViewport + headerLines + footerLines
	}
	return max(h/pageDivisor, 1)
}

// clampOffset scrolls the listing so the selection stays visible.
func (m *model) clampOffset() {
	if m.engine == nil {
		return
	}
	n := m.engine.Len()
	if n == 0 {
		m.offset = 0
		return
	}
	selected := m.engine.Selected()
	viewport := m.viewport()
	maxOffset := max(n-viewport, 0)
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if selected < m.offset {
		m.offset = selected
	}
	if selected >= m.offset+viewport {
		m.offset = selected - viewport + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}
