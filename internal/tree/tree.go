// Package tree holds the in-memory size tree of a scanned directory.
//
// Nodes live in an arena and are addressed by NodeID. A directory keeps the
// IDs of its children in name order together with the aggregated size of
// everything below it and the selection cursor remembered for it. Scans hand
// back detached Entry values which are grafted into the arena, so a subtree
// can be swapped without invalidating IDs elsewhere in the tree.
package tree

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NodeID addresses a node in a Tree. IDs of replaced subtrees are recycled.
type NodeID int32

// NoNode is the parent of the root.
const NoNode NodeID = -1

type node struct {
	name     string
	dir      bool
	live     bool
	size     uint64
	parent   NodeID
	children []NodeID
	cursor   int
	warning  error
}

// Tree is a size tree rooted at a directory. It is not safe for concurrent
// use; scans build detached entries and the owner grafts them in.
type Tree struct {
	nodes []node
	free  []NodeID
	root  NodeID
}

// Child is one row of a directory listing.
type Child struct {
	ID   NodeID
	Name string
	Size uint64
	Dir  bool
}

// Warning is a scan warning attached to a directory node.
type Warning struct {
	Path []string
	Err  error
}

// New grafts root into a fresh tree. The root entry must be a directory; its
// name is dropped.
func New(root *Entry) *Tree {
	if root == nil || !root.Dir {
		panic("tree: root entry must be a directory")
	}
	t := &Tree{}
	t.root = t.graft(root, NoNode)
	t.nodes[t.root].name = ""
	return t
}

func (t *Tree) Root() NodeID { return t.root }

func (t *Tree) alloc() NodeID {
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		return id
	}
	t.nodes = append(t.nodes, node{})
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) graft(e *Entry, parent NodeID) NodeID {
	id := t.alloc()
	t.nodes[id] = node{
		name:    e.Name,
		dir:     e.Dir,
		live:    true,
		size:    e.Size,
		parent:  parent,
		warning: e.Warning,
	}
	if e.Dir {
		t.graftChildren(id, e.Children)
	}
	return id
}

func (t *Tree) graftChildren(id NodeID, children []*Entry) {
	ids := make([]NodeID, 0, len(children))
	for _, c := range children {
		ids = append(ids, t.graft(c, id))
	}
	// graft may grow t.nodes, so index again after the loop.
	t.nodes[id].children = ids
}

func (t *Tree) release(id NodeID) {
	for _, c := range t.nodes[id].children {
		t.release(c)
	}
	t.nodes[id] = node{}
	t.free = append(t.free, id)
}

func (t *Tree) node(id NodeID) *node {
	if !t.valid(id) {
		panic(fmt.Sprintf("tree: invalid node id %d", id))
	}
	return &t.nodes[id]
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && t.nodes[id].live
}

func (t *Tree) lookup(dir NodeID, name string) (NodeID, bool) {
	children := t.nodes[dir].children
	i := sort.Search(len(children), func(i int) bool {
		return t.nodes[children[i]].name >= name
	})
	if i < len(children) && t.nodes[children[i]].name == name {
		return children[i], true
	}
	return NoNode, false
}

// Resolve walks from the root one component at a time. It fails with
// ErrNotFound when a component is missing or would descend through a file.
func (t *Tree) Resolve(path []string) (NodeID, error) {
	id := t.root
	for i, name := range path {
		if !t.nodes[id].dir {
			return NoNode, &PathError{Op: "resolve", Path: path[:i+1], Err: ErrNotFound}
		}
		child, ok := t.lookup(id, name)
		if !ok {
			return NoNode, &PathError{Op: "resolve", Path: path[:i+1], Err: ErrNotFound}
		}
		id = child
	}
	return id, nil
}

// ResolveDir is Resolve for callers that need a directory.
func (t *Tree) ResolveDir(path []string) (NodeID, error) {
	id, err := t.Resolve(path)
	if err != nil {
		return NoNode, err
	}
	if !t.nodes[id].dir {
		return NoNode, &PathError{Op: "resolve", Path: path, Err: ErrNotADirectory}
	}
	return id, nil
}

// ChildrenSorted lists a directory by size, largest first. The sort is
// stable over name order so entries of equal size keep their name order.
func (t *Tree) ChildrenSorted(id NodeID) ([]Child, error) {
	if !t.valid(id) {
		return nil, &PathError{Op: "children", Err: ErrNotFound}
	}
	n := &t.nodes[id]
	if !n.dir {
		return nil, &PathError{Op: "children", Path: t.Path(id), Err: ErrNotADirectory}
	}
	out := make([]Child, len(n.children))
	for i, c := range n.children {
		cn := &t.nodes[c]
		out[i] = Child{ID: c, Name: cn.name, Size: cn.size, Dir: cn.dir}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Size > out[j].Size
	})
	return out, nil
}

// Size returns the stored aggregate size.
func (t *Tree) Size(id NodeID) uint64 { return t.node(id).size }

func (t *Tree) Name(id NodeID) string { return t.node(id).name }

func (t *Tree) IsDir(id NodeID) bool { return t.node(id).dir }

func (t *Tree) Parent(id NodeID) NodeID { return t.node(id).parent }

// Len returns the number of children of a directory, 0 for files.
func (t *Tree) Len(id NodeID) int { return len(t.node(id).children) }

// Cursor returns the remembered selection of a directory, clamped to its
// current child count.
func (t *Tree) Cursor(id NodeID) int {
	n := t.node(id)
	return Clamp(n.cursor, len(n.children))
}

// SetCursor stores a selection to restore when the directory is re-entered.
func (t *Tree) SetCursor(id NodeID, cursor int) {
	t.node(id).cursor = cursor
}

// Warning returns the scan warning recorded for a node, if any.
func (t *Tree) Warning(id NodeID) error { return t.node(id).warning }

// Warnings returns every recorded scan warning ordered by path.
func (t *Tree) Warnings() []Warning {
	var out []Warning
	for i := range t.nodes {
		if t.nodes[i].live && t.nodes[i].warning != nil {
			out = append(out, Warning{Path: t.Path(NodeID(i)), Err: t.nodes[i].warning})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i].Path, "/") < strings.Join(out[j].Path, "/")
	})
	return out
}

// Path returns the component names leading from the root to id.
func (t *Tree) Path(id NodeID) []string {
	var path []string
	for n := id; n != t.root; n = t.node(n).parent {
		path = append(path, t.node(n).name)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// NodeCount returns the number of live nodes.
func (t *Tree) NodeCount() int { return len(t.nodes) - len(t.free) }

// Replace swaps the subtree at id for e in place. The node keeps its ID and
// name, its cursor is reset and the size difference is carried up to the
// root so every ancestor aggregate stays exact.
func (t *Tree) Replace(id NodeID, e *Entry) error {
	if !t.valid(id) {
		return &PathError{Op: "replace", Err: ErrNotFound}
	}
	if !t.nodes[id].dir || e == nil || !e.Dir {
		return &PathError{Op: "replace", Path: t.Path(id), Err: ErrNotADirectory}
	}
	old := t.nodes[id].size
	for _, c := range t.nodes[id].children {
		t.release(c)
	}
	n := &t.nodes[id]
	n.children = nil
	n.size = e.Size
	n.cursor = 0
	n.warning = e.Warning
	t.graftChildren(id, e.Children)

	for p := t.nodes[id].parent; p != NoNode; p = t.nodes[p].parent {
		t.nodes[p].size = t.nodes[p].size - old + e.Size
	}
	return nil
}

// Fingerprint digests the names, kinds and sizes of a subtree. Two scans of an
// unchanged directory produce the same value.
func (t *Tree) Fingerprint(id NodeID) uint64 {
	d := xxhash.New()
	t.digest(d, id)
	return d.Sum64()
}

func (t *Tree) digest(d *xxhash.Digest, id NodeID) {
	n := t.node(id)
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[:8], n.size)
	if n.dir {
		buf[8] = 1
	}
	_, _ = d.WriteString(n.name)
	_, _ = d.Write(buf[:])
	for _, c := range n.children {
		t.digest(d, c)
	}
	// Close the directory so sibling and child sequences cannot collide.
	_, _ = d.Write([]byte{0xff})
}

// Clamp bounds index to [0, n-1], or 0 when n is 0.
func Clamp(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}
