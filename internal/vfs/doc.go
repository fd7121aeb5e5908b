// Package vfs implements the in-memory file tree the kernel mounts at boot.
//
// It is a straightforward inode store: directories hold a name-keyed child
// map, files hold a byte slice. Each node carries its own RWMutex; path
// resolution locks one node at a time while walking, so operations on
// disjoint subtrees never contend. There is no persistence and no
// permission enforcement, the mode bits are reporting-only.
package vfs
