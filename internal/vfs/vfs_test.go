package vfs

import (
	"errors"
	"io"
	"testing"
)

func TestWriteThenRead(t *testing.T) {
	f := New()
	h, err := f.Open("notes.txt", ModeWrite, false)
	if err != nil {
		t.Fatalf("open write: %v", err)
	}
	if _, err := h.Write([]byte("merhaba\ndunya\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := f.Open("notes.txt", ModeRead, false)
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	defer r.Close()
	lines, err := r.ReadLines()
	if err != nil {
		t.Fatalf("readlines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "merhaba" || lines[1] != "dunya" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestReadMissingFails(t *testing.T) {
	f := New()
	if _, err := f.Open("missing.txt", ModeRead, false); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestBinaryModeRejected(t *testing.T) {
	f := New()
	if _, err := f.Open("x", ModeWrite, true); !errors.Is(err, ErrBinaryMode) {
		t.Fatalf("expected ErrBinaryMode, got %v", err)
	}
}

func TestAppendSeeksToEnd(t *testing.T) {
	f := New()
	w, _ := f.Open("log.txt", ModeWrite, false)
	w.Write([]byte("a"))
	w.Close()

	a, err := f.Open("log.txt", ModeAppend, false)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	a.Write([]byte("b"))
	a.Close()

	r, _ := f.Open("log.txt", ModeRead, false)
	defer r.Close()
	buf := make([]byte, 8)
	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "ab" {
		t.Fatalf("got %q, want %q", got, "ab")
	}
}

func TestWriteTruncatesImmediately(t *testing.T) {
	f := New()
	w1, _ := f.Open("t.txt", ModeWrite, false)
	w1.Write([]byte("first"))
	w1.Close()

	if !f.Exists("t.txt") {
		t.Fatalf("expected entry to exist after first write")
	}

	w2, err := f.Open("t.txt", ModeWrite, false)
	if err != nil {
		t.Fatalf("reopen write: %v", err)
	}
	// Until w2 is closed, the store already reflects the truncation.
	r, err := f.Open("t.txt", ModeRead, false)
	if err != nil {
		t.Fatalf("open read during pending write: %v", err)
	}
	lines, _ := r.ReadLines()
	if len(lines) != 0 {
		t.Fatalf("expected truncated content, got %v", lines)
	}
	r.Close()
	w2.Close()
}

func TestRemove(t *testing.T) {
	f := New()
	if err := f.Remove("nope"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	w, _ := f.Open("a", ModeWrite, false)
	w.Close()
	if err := f.Remove("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if f.Exists("a") {
		t.Fatalf("expected a removed")
	}
}

func TestOpenScopedCloseIsIdempotent(t *testing.T) {
	f := New()
	h, closeFn, err := f.OpenScoped("s", ModeWrite, false)
	if err != nil {
		t.Fatalf("open scoped: %v", err)
	}
	h.Write([]byte("x"))
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("second close should be no-op, got %v", err)
	}
}
