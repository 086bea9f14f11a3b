package curriculum

import (
	"os"
	"path/filepath"
	"testing"
)

const testdataRoot = "testdata/curriculum"

func TestLoadOrdersLessonsByChapterThenDirectoryName(t *testing.T) {
	p, err := Load(testdataRoot)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Count() != 2 {
		t.Fatalf("expected 2 lessons, got %d", p.Count())
	}
	first := p.First()
	if first.UUID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("unexpected first lesson %+v", first)
	}
	if first.Index != 0 {
		t.Fatalf("expected index 0, got %d", first.Index)
	}
}

func TestNextAndPrevTraverseOrdering(t *testing.T) {
	p, err := Load(testdataRoot)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	first := p.First()
	next := p.Next(first.UUID)
	if next == nil || next.UUID != "22222222-2222-2222-2222-222222222222" {
		t.Fatalf("unexpected next %+v", next)
	}
	if p.Next(next.UUID) != nil {
		t.Fatalf("expected no lesson after the last one")
	}
	if prev := p.Prev(next.UUID); prev == nil || prev.UUID != first.UUID {
		t.Fatalf("unexpected prev %+v", prev)
	}
	if p.Prev(first.UUID) != nil {
		t.Fatalf("expected no lesson before the first one")
	}
}

func TestByUUIDUnknownReturnsNil(t *testing.T) {
	p, err := Load(testdataRoot)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.ByUUID("does-not-exist") != nil {
		t.Fatalf("expected nil for an unknown uuid")
	}
}

func TestValidatorSourceIsLoadedAndCached(t *testing.T) {
	p, err := Load(testdataRoot)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lesson := p.First()
	src, err := p.ValidatorSource(lesson)
	if err != nil {
		t.Fatalf("validator source: %v", err)
	}
	if src == "" {
		t.Fatalf("expected non-empty validator source")
	}
	// second call must hit the cache and return the identical text.
	src2, err := p.ValidatorSource(lesson)
	if err != nil {
		t.Fatalf("validator source (cached): %v", err)
	}
	if src != src2 {
		t.Fatalf("cached validator source changed between calls")
	}
}

func TestDevMessageLoadedWhenPresent(t *testing.T) {
	p, err := Load(testdataRoot)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.DevMessage() == "" {
		t.Fatalf("expected a dev message to be loaded from testdata")
	}
}

func TestLoadMissingManifestIsStartupFatal(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected an error for a missing manifest")
	}
}

func TestLoadIncompatibleSchemaIsStartupFatal(t *testing.T) {
	dir := t.TempDir()
	manifest := `{"schema_version":"v99.0.0","chapters":[{"slug":"basics","title":"Basics"}]}`
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "basics"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected a schema incompatibility error")
	}
}
