// Package klog implements the kernel log buffer.
//
// The buffer is a bounded in-memory ring of structured entries. Every entry is
// committed to the ring under the buffer mutex; entries at INFO and above are
// additionally mirrored, synchronously and line-atomically, to a zerolog
// console writer. When the ring is at capacity the oldest entry is evicted and
// counted.
//
// Ordering: entries from a single goroutine appear in program order; across
// goroutines, ordering is commit order to the ring.
package klog
