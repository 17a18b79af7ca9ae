package scan

import "sync/atomic"

// Progress holds live scan counters. It is written by scan tasks and read by
// the UI while a scan runs.
type Progress struct {
	files    atomic.Int64
	dirs     atomic.Int64
	bytes    atomic.Int64
	warnings atomic.Int64
	path     atomic.Pointer[string]
}

// Snapshot is a point-in-time copy of Progress.
type Snapshot struct {
	Files    int64
	Dirs     int64
	Bytes    int64
	Warnings int64
	Path     string
}

func (p *Progress) Snapshot() Snapshot {
	snap := Snapshot{
		Files:    p.files.Load(),
		Dirs:     p.dirs.Load(),
		Bytes:    p.bytes.Load(),
		Warnings: p.warnings.Load(),
	}
	if path := p.path.Load(); path != nil {
		snap.Path = *path
	}
	return snap
}

func (p *Progress) reset() {
	p.files.Store(0)
	p.dirs.Store(0)
	p.bytes.Store(0)
	p.warnings.Store(0)
	p.path.Store(nil)
}

func (p *Progress) addFile(size uint64) {
	p.files.Add(1)
	p.bytes.Add(int64(size))
}

func (p *Progress) addDir(path string, size uint64) {
	p.dirs.Add(1)
	p.bytes.Add(int64(size))
	p.path.Store(&path)
}
