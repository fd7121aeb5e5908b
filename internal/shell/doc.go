// Package shell implements the interactive command loop over a booted
// kernel.
//
// The loop reads lines from an io.Reader and writes to an io.Writer, so
// tests drive it with buffers instead of a terminal. Lines are tokenized
// with shlex, so quoted arguments work the way a POSIX shell user expects.
package shell
