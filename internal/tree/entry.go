package tree

import (
	"slices"
	"strings"
)

// Entry is a detached subtree as produced by a scan. It is owned by whoever
// built it until it is grafted into a Tree, after which it is only read.
type Entry struct {
	Name     string
	Dir      bool
	Size     uint64
	Children []*Entry // ordered by name, directories only
	Warning  error    // set when the directory could only be read partially
}

// File returns a leaf entry.
func File(name string, size uint64) *Entry {
	return &Entry{Name: name, Size: size}
}

// Dir returns a directory entry whose size is its own metadata length plus
// the sizes of its children. Children are put in name order.
func Dir(name string, own uint64, children ...*Entry) *Entry {
	e := &Entry{Name: name, Dir: true, Size: own, Children: children}
	sortByName(e.Children)
	for _, c := range e.Children {
		e.Size += c.Size
	}
	return e
}

func sortByName(entries []*Entry) {
	if slices.IsSortedFunc(entries, compareNames) {
		return
	}
	slices.SortFunc(entries, compareNames)
}

func compareNames(a, b *Entry) int {
	return strings.Compare(a.Name, b.Name)
}
