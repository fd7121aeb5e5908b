package klog

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is the severity of a log entry.
type Level int8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

// String returns the three-letter tag used in dumps.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRC"
	case LevelDebug:
		return "DBG"
	case LevelInfo:
		return "INF"
	case LevelWarn:
		return "WRN"
	case LevelError:
		return "ERR"
	case LevelCritical:
		return "CRT"
	default:
		return "UNK"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelTrace:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelCritical:
		// WithLevel(FatalLevel) tags the line without terminating.
		return zerolog.FatalLevel
	default:
		return zerolog.NoLevel
	}
}

// DefaultCapacity is the ring capacity used when none is configured.
const DefaultCapacity = 10000

// formatFailure is substituted when rendering a message panics (for example a
// broken Stringer on an argument).
const formatFailure = "LOG FORMAT ERROR"

// Entry is one committed log record.
type Entry struct {
	Time    time.Time
	Level   Level
	Tag     string
	Message string
}

// Buffer is the bounded kernel log ring.
//
// The zero value is not usable; construct with New.
type Buffer struct {
	console zerolog.Logger

	mu      sync.Mutex
	entries []Entry // ring storage
	start   int
	count   int
	evicted uint64
}

// New creates a buffer of the given capacity (DefaultCapacity if <= 0) that
// mirrors INFO+ entries to console as single lines.
func New(capacity int, console io.Writer) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if console == nil {
		console = io.Discard
	}
	cw := zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05.000", NoColor: true}
	return &Buffer{
		console: zerolog.New(cw).With().Timestamp().Logger(),
		entries: make([]Entry, capacity),
	}
}

// Logger returns a tagged front end for one subsystem.
func (b *Buffer) Logger(tag string) *Logger {
	return &Logger{buf: b, tag: tag}
}

// Log formats and commits one entry, evicting the oldest entry when the ring
// is full, and mirrors it to the console when level is INFO or above.
func (b *Buffer) Log(level Level, tag, format string, args ...any) {
	now := time.Now()
	msg := render(format, args...)

	// Console first, outside the ring mutex; each event is one line.
	if level >= LevelInfo {
		b.console.WithLevel(level.zerolog()).Str("tag", tag).Msg(msg)
	}

	b.mu.Lock()
	if b.count == len(b.entries) {
		b.start = (b.start + 1) % len(b.entries)
		b.count--
		b.evicted++
	}
	b.entries[(b.start+b.count)%len(b.entries)] = Entry{Time: now, Level: level, Tag: tag, Message: msg}
	b.count++
	b.mu.Unlock()
}

// Dump writes the buffered entries to w in insertion order.
func (b *Buffer) Dump(w io.Writer) error {
	for _, e := range b.Snapshot() {
		ms := e.Time.UnixMilli()
		if _, err := fmt.Fprintf(w, "[%d.%03d] [%s] [%s] %s\n", ms/1000, ms%1000, e.Level, e.Tag, e.Message); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a copy of the buffered entries in insertion order.
func (b *Buffer) Snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%len(b.entries)]
	}
	return out
}

// Len reports the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Evicted reports how many entries have been dropped to make room.
func (b *Buffer) Evicted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}

// render formats the message, substituting a fixed diagnostic when a formatting
// argument panics. fmt recovers a panicking String or Error method itself and
// inlines a "%!verb(PANIC=...)" marker, so that marker is treated as a panic.
func render(format string, args ...any) (msg string) {
	defer func() {
		if recover() != nil {
			msg = formatFailure
		}
	}()
	if len(args) == 0 {
		return format
	}
	msg = fmt.Sprintf(format, args...)
	if strings.Contains(msg, "(PANIC=") {
		return formatFailure
	}
	return msg
}

// Logger is a tagged front end over a Buffer.
type Logger struct {
	buf *Buffer
	tag string
}

// Buffer returns the underlying ring.
func (l *Logger) Buffer() *Buffer { return l.buf }

func (l *Logger) Tracef(format string, args ...any) { l.buf.Log(LevelTrace, l.tag, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.buf.Log(LevelDebug, l.tag, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.buf.Log(LevelInfo, l.tag, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.buf.Log(LevelWarn, l.tag, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.buf.Log(LevelError, l.tag, format, args...) }
func (l *Logger) Critf(format string, args ...any) {
	l.buf.Log(LevelCritical, l.tag, format, args...)
}
