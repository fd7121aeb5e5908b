// Package mem provides the kernel's custom allocators.
//
// Two allocators are exposed:
//   - Slab: fixed-object-size pool carved from page-sized blocks, used to back
//     per-task scratch storage. Callers hold (page, slot) handles, never raw
//     slices that outlive the allocation.
//   - Arena: region-based bump allocator for short-lived scratch that is
//     released all at once via Reset.
//
// Both allocators are safe for concurrent use; each serializes under a single
// mutex. Misuse (double free, foreign handle) is an invariant violation and
// panics rather than returning an error.
package mem
