// Package vfs is an in-memory file-system facade handed to user code in
// place of real file I/O. Every FS is process-local: it is created when a
// worker starts a submission and discarded when the worker exits. Paths are
// opaque keys; there is no directory semantics, no links, no permissions.
package vfs

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Mode selects how Open binds a path to a Handle.
type Mode int

const (
	// ModeRead opens an existing entry for reading. Open fails if the path
	// is absent.
	ModeRead Mode = iota
	// ModeWrite truncates-or-creates the entry; writes are only visible to
	// other Opens once the Handle is closed.
	ModeWrite
	// ModeAppend opens an entry (creating it if absent) with the write
	// cursor seeked to the logical end.
	ModeAppend
)

// Errors returned by FS and Handle. All are sentinel values so callers can
// use errors.Is.
var (
	ErrNotExist     = errors.New("vfs: path does not exist")
	ErrBinaryMode   = errors.New("vfs: binary mode is not supported")
	ErrClosed       = errors.New("vfs: handle is closed")
	ErrInvalidParam = errors.New("vfs: invalid parameter")
)

// entry is one stored file. Content is a plain string: codequest's curriculum
// never needs binary payloads, and rejecting binary mode at Open keeps the
// contract simple (see spec §4.1).
type entry struct {
	content string
}

// FS is a process-local, in-memory key-value file store. The zero value is
// not usable; construct with New.
type FS struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty FS.
func New() *FS {
	return &FS{entries: make(map[string]*entry)}
}

// Exists reports whether path has an entry.
func (f *FS) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[path]
	return ok
}

// Remove deletes path. It fails if path is absent, matching spec §4.1.
func (f *FS) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[path]; !ok {
		return fmt.Errorf("remove %q: %w", path, ErrNotExist)
	}
	delete(f.entries, path)
	return nil
}

// Open returns a Handle bound to path under mode. binary must be false;
// codequest's embedded scripting layer never requests binary mode, but the
// parameter exists so the restricted environment's open() builtin can reject
// a binary-mode request the way spec §4.1 requires, instead of silently
// downgrading it.
func (f *FS) Open(path string, mode Mode, binary bool) (*Handle, error) {
	if binary {
		return nil, ErrBinaryMode
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch mode {
	case ModeRead:
		e, ok := f.entries[path]
		if !ok {
			return nil, fmt.Errorf("open %q: %w", path, ErrNotExist)
		}
		return &Handle{fs: f, path: path, mode: mode, reader: strings.NewReader(e.content)}, nil

	case ModeWrite:
		// Truncates immediately: a concurrent reader opened before this call
		// keeps reading the prior content, but the store entry itself is
		// replaced right away (per spec "write-mode open truncates
		// immediately").
		f.entries[path] = &entry{}
		return &Handle{fs: f, path: path, mode: mode}, nil

	case ModeAppend:
		e, ok := f.entries[path]
		if !ok {
			e = &entry{}
			f.entries[path] = e
		}
		h := &Handle{fs: f, path: path, mode: mode}
		h.buf.WriteString(e.content)
		return h, nil

	default:
		return nil, fmt.Errorf("open %q: %w", path, ErrInvalidParam)
	}
}

// OpenScoped opens path and returns a closer guaranteed to run exactly once,
// so callers that acquire a Handle inside a restricted-environment builtin
// can defer the close on every exit path (panic, early return, success)
// without re-deriving the close logic at each call site.
func (f *FS) OpenScoped(path string, mode Mode, binary bool) (h *Handle, closeFn func() error, err error) {
	h, err = f.Open(path, mode, binary)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	closeFn = func() error {
		var cerr error
		once.Do(func() { cerr = h.Close() })
		return cerr
	}
	return h, closeFn, nil
}

// Handle is a single open file reference. Handles are never shared across a
// process boundary and never touch the host file system.
type Handle struct {
	fs     *FS
	path   string
	mode   Mode
	closed bool

	reader *strings.Reader // read mode
	buf    strings.Builder // write/append mode, committed on Close
}

// Read implements io.Reader. Valid only in ModeRead.
func (h *Handle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	if h.mode != ModeRead {
		return 0, fmt.Errorf("read %q: %w", h.path, ErrInvalidParam)
	}
	return h.reader.Read(p)
}

// ReadLine returns the next newline-terminated line (without the
// terminator), or io.EOF when exhausted.
func (h *Handle) ReadLine() (string, error) {
	if h.closed {
		return "", ErrClosed
	}
	if h.mode != ModeRead {
		return "", fmt.Errorf("readline %q: %w", h.path, ErrInvalidParam)
	}
	var sb strings.Builder
	for {
		b, err := h.reader.ReadByte()
		if err != nil {
			if sb.Len() == 0 {
				return "", io.EOF
			}
			return sb.String(), nil
		}
		if b == '\n' {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// ReadLines drains the rest of the file as a slice of lines.
func (h *Handle) ReadLines() ([]string, error) {
	var lines []string
	for {
		line, err := h.ReadLine()
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
}

// Write implements io.Writer. Valid in ModeWrite and ModeAppend; buffered
// until Close.
func (h *Handle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	if h.mode == ModeRead {
		return 0, fmt.Errorf("write %q: %w", h.path, ErrInvalidParam)
	}
	return h.buf.Write(p)
}

// Close commits buffered writes to the FS store and marks the handle unusable.
// Closing an already-closed or read-mode handle is a no-op beyond marking it
// closed, so deferred Close calls are always safe.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if h.mode == ModeRead {
		return nil
	}
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	h.fs.entries[h.path] = &entry{content: h.buf.String()}
	return nil
}
