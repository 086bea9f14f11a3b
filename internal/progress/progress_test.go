package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func uuidPtr(s string) *string { return &s }

// allKnown treats every UUID as valid, for tests not exercising the
// unknown-UUID reset behavior itself.
func allKnown(string) bool { return true }

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	p := Default()
	p.CurrentUUID = uuidPtr("lesson-2")
	p.CompletedTasks["lesson-1"] = struct{}{}
	p.SkippedTasks["lesson-0"] = struct{}{}
	p.UserCode["lesson-1"] = `mesaj := "Merhaba Dunya"`

	if err := s.Save(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.Load(allKnown)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CurrentUUID == nil || *loaded.CurrentUUID != "lesson-2" {
		t.Fatalf("expected current uuid lesson-2, got %v", loaded.CurrentUUID)
	}
	if _, ok := loaded.CompletedTasks["lesson-1"]; !ok {
		t.Fatalf("expected lesson-1 completed")
	}
	if _, ok := loaded.SkippedTasks["lesson-0"]; !ok {
		t.Fatalf("expected lesson-0 skipped")
	}
	if loaded.UserCode["lesson-1"] != `mesaj := "Merhaba Dunya"` {
		t.Fatalf("expected user code to round-trip, got %q", loaded.UserCode["lesson-1"])
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	p, err := s.Load(allKnown)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.CurrentUUID != nil {
		t.Fatalf("expected nil current uuid, got %v", *p.CurrentUUID)
	}
	if len(p.CompletedTasks) != 0 || len(p.SkippedTasks) != 0 || len(p.UserCode) != 0 {
		t.Fatalf("expected empty maps, got %+v", p)
	}
}

func TestLoadSelfHealsFromBackupWhenLiveIsCorrupted(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	good := Default()
	good.CurrentUUID = uuidPtr("lesson-1")
	good.CompletedTasks["lesson-0"] = struct{}{}
	if err := s.Save(good); err != nil {
		t.Fatalf("save good: %v", err)
	}
	// Save again so progress.backup.json holds the same good state and
	// progress.json can be corrupted without losing it.
	if err := s.Save(good); err != nil {
		t.Fatalf("save good again: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "progress.json"), []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("corrupt live file: %v", err)
	}

	loaded, err := s.Load(allKnown)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CurrentUUID == nil || *loaded.CurrentUUID != "lesson-1" {
		t.Fatalf("expected healed state from backup, got %+v", loaded)
	}

	// self-heal should have rewritten the live file.
	raw, err := os.ReadFile(filepath.Join(dir, "progress.json"))
	if err != nil {
		t.Fatalf("read healed live file: %v", err)
	}
	var w wireFormat
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("healed live file is not valid json: %v", err)
	}
}

func TestLoadResetsToDefaultsWhenBothFilesAreCorrupted(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if err := os.WriteFile(filepath.Join(dir, "progress.json"), []byte("{not valid"), 0o644); err != nil {
		t.Fatalf("write corrupt live: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "progress.backup.json"), []byte("{also not valid"), 0o644); err != nil {
		t.Fatalf("write corrupt backup: %v", err)
	}

	loaded, err := s.Load(allKnown)
	if err != nil {
		t.Fatalf("load should never raise, got %v", err)
	}
	if loaded.CurrentUUID != nil || len(loaded.CompletedTasks) != 0 {
		t.Fatalf("expected defaults, got %+v", loaded)
	}
}

func TestLegacyFieldsAreMigratedOnLoad(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	legacy := `{"current_step":"lesson-3","completed":["lesson-1","lesson-2"],"skipped":["lesson-0"],"user_code":{}}`
	if err := os.WriteFile(filepath.Join(dir, "progress.json"), []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	loaded, err := s.Load(allKnown)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := loaded.CompletedTasks["lesson-1"]; !ok {
		t.Fatalf("expected legacy completed field migrated, got %+v", loaded.CompletedTasks)
	}
	if _, ok := loaded.CompletedTasks["lesson-2"]; !ok {
		t.Fatalf("expected legacy completed field migrated, got %+v", loaded.CompletedTasks)
	}
	if _, ok := loaded.SkippedTasks["lesson-0"]; !ok {
		t.Fatalf("expected legacy skipped field migrated, got %+v", loaded.SkippedTasks)
	}
}

func TestLegacyFieldsDoNotClobberCurrentFields(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	mixed := `{"current_step":null,"completed":["old"],"completed_tasks":["new"],"skipped":[],"skipped_tasks":[],"user_code":{}}`
	if err := os.WriteFile(filepath.Join(dir, "progress.json"), []byte(mixed), 0o644); err != nil {
		t.Fatalf("write mixed file: %v", err)
	}

	loaded, err := s.Load(allKnown)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := loaded.CompletedTasks["new"]; !ok {
		t.Fatalf("expected current-name field to survive, got %+v", loaded.CompletedTasks)
	}
	if _, ok := loaded.CompletedTasks["old"]; ok {
		t.Fatalf("expected legacy field to be dropped rather than override the current one")
	}
}

func TestSaveWritesBackupOnlyOnSecondGeneration(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if _, err := os.Stat(filepath.Join(dir, "progress.backup.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no backup before any save")
	}

	first := Default()
	first.CurrentUUID = uuidPtr("lesson-1")
	if err := s.Save(first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "progress.backup.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no backup after the first save, there was nothing live to copy")
	}

	second := Default()
	second.CurrentUUID = uuidPtr("lesson-2")
	if err := s.Save(second); err != nil {
		t.Fatalf("save second: %v", err)
	}
	backupRaw, err := os.ReadFile(filepath.Join(dir, "progress.backup.json"))
	if err != nil {
		t.Fatalf("expected a backup after the second save: %v", err)
	}
	var w wireFormat
	if err := json.Unmarshal(backupRaw, &w); err != nil {
		t.Fatalf("backup is not valid json: %v", err)
	}
	if w.CurrentStep == nil || *w.CurrentStep != "lesson-1" {
		t.Fatalf("expected backup to hold the first generation, got %v", w.CurrentStep)
	}
}

func TestLoadResetsUnknownCurrentUUIDAndPersists(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	stale := Default()
	stale.CurrentUUID = uuidPtr("deleted-lesson")
	stale.CompletedTasks["lesson-0"] = struct{}{}
	if err := s.Save(stale); err != nil {
		t.Fatalf("save: %v", err)
	}

	noneKnown := func(string) bool { return false }
	loaded, err := s.Load(noneKnown)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CurrentUUID != nil {
		t.Fatalf("expected unknown current uuid to be reset to nil, got %v", *loaded.CurrentUUID)
	}
	if _, ok := loaded.CompletedTasks["lesson-0"]; !ok {
		t.Fatalf("expected the rest of progress to survive the reset")
	}

	// The correction must be durable, not just a read-time fallback.
	reloaded, err := s.Load(noneKnown)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CurrentUUID != nil {
		t.Fatalf("expected reset to have been persisted, got %v", *reloaded.CurrentUUID)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "progress.json"))
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}
	var w wireFormat
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatalf("live file is not valid json: %v", err)
	}
	if w.CurrentStep != nil {
		t.Fatalf("expected persisted current_step to be null, got %v", *w.CurrentStep)
	}
}

func TestDeepCopyProgressIsIndependent(t *testing.T) {
	p := Default()
	p.CompletedTasks["lesson-1"] = struct{}{}

	cp := deepCopyProgress(p)
	cp.CompletedTasks["lesson-2"] = struct{}{}

	if _, ok := p.CompletedTasks["lesson-2"]; ok {
		t.Fatalf("expected deep copy to be independent of the original")
	}
}
