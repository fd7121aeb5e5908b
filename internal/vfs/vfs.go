package vfs

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kernsim/internal/klog"
)

type nodeKind uint8

const (
	kindFile nodeKind = iota
	kindDir
)

// node is one inode. The mutex guards size, mtime, data, and children; the
// identity fields are immutable after creation.
type node struct {
	id   uint64
	name string
	kind nodeKind
	mode uint32

	mu       sync.RWMutex
	mtime    time.Time
	data     []byte
	children map[string]*node
}

func (n *node) isDir() bool { return n.kind == kindDir }

// DirEntry is one row of a directory listing.
type DirEntry struct {
	Name    string
	IsDir   bool
	Size    int
	Mode    uint32
	ModTime time.Time
}

// FileInfo describes a single resolved path.
type FileInfo struct {
	Name    string
	IsDir   bool
	Size    int
	Mode    uint32
	ModTime time.Time
}

// FS is the in-memory file tree. The zero value is not usable; call New.
type FS struct {
	root   *node
	nextID atomic.Uint64
	log    *klog.Logger
}

// New returns a tree containing only the root directory. The logger may be
// nil.
func New(log *klog.Logger) *FS {
	fs := &FS{log: log}
	fs.root = &node{
		id:       fs.nextID.Add(1),
		name:     "/",
		kind:     kindDir,
		mode:     0o755,
		mtime:    time.Now(),
		children: make(map[string]*node),
	}
	return fs
}

// splitPath normalizes an absolute path into its components. The root is
// the empty component list.
func splitPath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, ErrBadPath
	}
	var parts []string
	for _, c := range strings.Split(path, "/") {
		switch c {
		case "", ".":
		case "..":
			return nil, ErrBadPath
		default:
			parts = append(parts, c)
		}
	}
	return parts, nil
}

// walk resolves every component, returning the final node. Each directory's
// read lock is held only while looking up its child.
func (fs *FS) walk(op, path string, parts []string) (*node, error) {
	cur := fs.root
	for i, name := range parts {
		if !cur.isDir() {
			return nil, pathErr(op, "/"+strings.Join(parts[:i], "/"), ErrNotDir)
		}
		cur.mu.RLock()
		next := cur.children[name]
		cur.mu.RUnlock()
		if next == nil {
			return nil, pathErr(op, path, ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// walkParent resolves all but the last component and returns (parent, leaf
// name).
func (fs *FS) walkParent(op, path string, parts []string) (*node, string, error) {
	if len(parts) == 0 {
		return nil, "", pathErr(op, path, ErrBadPath)
	}
	parent, err := fs.walk(op, path, parts[:len(parts)-1])
	if err != nil {
		return nil, "", err
	}
	if !parent.isDir() {
		return nil, "", pathErr(op, path, ErrNotDir)
	}
	return parent, parts[len(parts)-1], nil
}

// CreateFile creates the file at path with the given contents, or replaces
// the contents when the file already exists. Creating over a directory
// fails with ErrIsDir.
func (fs *FS) CreateFile(path string, data []byte) error {
	parts, err := splitPath(path)
	if err != nil {
		return pathErr("create", path, err)
	}
	parent, name, err := fs.walkParent("create", path, parts)
	if err != nil {
		return err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if existing := parent.children[name]; existing != nil {
		if existing.isDir() {
			return pathErr("create", path, ErrIsDir)
		}
		existing.mu.Lock()
		existing.data = append(existing.data[:0], data...)
		existing.mtime = time.Now()
		existing.mu.Unlock()
		return nil
	}
	parent.children[name] = &node{
		id:    fs.nextID.Add(1),
		name:  name,
		kind:  kindFile,
		mode:  0o644,
		mtime: time.Now(),
		data:  append([]byte(nil), data...),
	}
	parent.mtime = time.Now()
	if fs.log != nil {
		fs.log.Debugf("create %s (%d bytes)", path, len(data))
	}
	return nil
}

// ReadFile returns a copy of the file's contents.
func (fs *FS) ReadFile(path string) ([]byte, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, pathErr("read", path, err)
	}
	n, err := fs.walk("read", path, parts)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return nil, pathErr("read", path, ErrIsDir)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]byte(nil), n.data...), nil
}

// Mkdir creates a single directory. The parent must already exist.
func (fs *FS) Mkdir(path string) error {
	parts, err := splitPath(path)
	if err != nil {
		return pathErr("mkdir", path, err)
	}
	parent, name, err := fs.walkParent("mkdir", path, parts)
	if err != nil {
		return err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.children[name] != nil {
		return pathErr("mkdir", path, ErrExists)
	}
	parent.children[name] = &node{
		id:       fs.nextID.Add(1),
		name:     name,
		kind:     kindDir,
		mode:     0o755,
		mtime:    time.Now(),
		children: make(map[string]*node),
	}
	parent.mtime = time.Now()
	if fs.log != nil {
		fs.log.Debugf("mkdir %s", path)
	}
	return nil
}

// List returns the directory's entries sorted by name.
func (fs *FS) List(path string) ([]DirEntry, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, pathErr("list", path, err)
	}
	n, err := fs.walk("list", path, parts)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, pathErr("list", path, ErrNotDir)
	}
	n.mu.RLock()
	out := make([]DirEntry, 0, len(n.children))
	for _, c := range n.children {
		c.mu.RLock()
		out = append(out, DirEntry{
			Name:    c.name,
			IsDir:   c.isDir(),
			Size:    len(c.data),
			Mode:    c.mode,
			ModTime: c.mtime,
		})
		c.mu.RUnlock()
	}
	n.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stat resolves a single path.
func (fs *FS) Stat(path string) (FileInfo, error) {
	parts, err := splitPath(path)
	if err != nil {
		return FileInfo{}, pathErr("stat", path, err)
	}
	n, err := fs.walk("stat", path, parts)
	if err != nil {
		return FileInfo{}, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return FileInfo{
		Name:    n.name,
		IsDir:   n.isDir(),
		Size:    len(n.data),
		Mode:    n.mode,
		ModTime: n.mtime,
	}, nil
}
