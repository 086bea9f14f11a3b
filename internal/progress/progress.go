// Package progress is the Progress Store: durable per-user state with
// atomic replace, a single backup generation, and self-healing reads.
// Grounded on the teacher's own state-file write discipline
// (runsc/cmd/state.go, runsc/cmd/checkpoint.go) and its use of
// github.com/cenkalti/backoff for retrying a fallible operation
// (runsc/sandbox/sandbox.go's backoff.Retry around sandbox creation).
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/evanphx/json-patch"
	"github.com/gofrs/flock"
	"github.com/mohae/deepcopy"

	"github.com/ocagi/codequest/internal/logging"
)

var log = logging.For("progress")

// Progress is the mutable, persisted per-user state (spec §3).
type Progress struct {
	CurrentUUID    *string
	CompletedTasks map[string]struct{}
	SkippedTasks   map[string]struct{}
	UserCode       map[string]string
}

// Default returns a fresh Progress with every field initialized and no
// lesson selected (Engine resolves a nil CurrentUUID to the first lesson).
func Default() *Progress {
	return &Progress{
		CompletedTasks: make(map[string]struct{}),
		SkippedTasks:   make(map[string]struct{}),
		UserCode:       make(map[string]string),
	}
}

// wireFormat is progress.json's external shape (spec §6): field names are
// part of the external contract and are not the same as Progress's own Go
// field names.
type wireFormat struct {
	CurrentStep    *string           `json:"current_step"`
	CompletedTasks []string          `json:"completed_tasks"`
	SkippedTasks   []string          `json:"skipped_tasks"`
	UserCode       map[string]string `json:"user_code"`
}

func toWire(p *Progress) wireFormat {
	w := wireFormat{
		CurrentStep: p.CurrentUUID,
		UserCode:    p.UserCode,
	}
	for uuid := range p.CompletedTasks {
		w.CompletedTasks = append(w.CompletedTasks, uuid)
	}
	for uuid := range p.SkippedTasks {
		w.SkippedTasks = append(w.SkippedTasks, uuid)
	}
	return w
}

func fromWire(w wireFormat) *Progress {
	p := Default()
	p.CurrentUUID = w.CurrentStep
	for _, uuid := range w.CompletedTasks {
		p.CompletedTasks[uuid] = struct{}{}
	}
	for _, uuid := range w.SkippedTasks {
		p.SkippedTasks[uuid] = struct{}{}
	}
	if w.UserCode != nil {
		p.UserCode = w.UserCode
	}
	return p
}

// legacyFieldMoves renames the two historical field names to their current
// ones (spec §6). Each entry becomes one RFC 6902 "move" operation, applied
// with github.com/evanphx/json-patch rather than hand-copying fields on the
// decoded Go struct.
var legacyFieldMoves = [][2]string{
	{"/completed", "/completed_tasks"},
	{"/skipped", "/skipped_tasks"},
}

func migrateLegacyFields(raw []byte) []byte {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}

	var ops []map[string]string
	for _, move := range legacyFieldMoves {
		from, to := move[0], move[1]
		if _, ok := doc[from[1:]]; !ok {
			continue
		}
		if _, exists := doc[to[1:]]; exists {
			// Current-name field already present: drop the legacy one instead
			// of asking "move" to clobber it.
			delete(doc, from[1:])
			continue
		}
		ops = append(ops, map[string]string{"op": "move", "from": from, "path": to})
	}
	if len(ops) == 0 {
		cleaned, err := json.Marshal(doc)
		if err != nil {
			return raw
		}
		return cleaned
	}

	withoutClobbers, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	patchRaw, err := json.Marshal(ops)
	if err != nil {
		return raw
	}
	patch, err := jsonpatch.DecodePatch(patchRaw)
	if err != nil {
		return withoutClobbers
	}
	migrated, err := patch.Apply(withoutClobbers)
	if err != nil {
		return withoutClobbers
	}
	return migrated
}

// Store persists Progress to a directory with atomic write and one backup
// generation.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. dir must already exist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) livePath() string   { return filepath.Join(s.dir, "progress.json") }
func (s *Store) backupPath() string { return filepath.Join(s.dir, "progress.backup.json") }
func (s *Store) lockPath() string   { return filepath.Join(s.dir, "progress.json.lock") }
func (s *Store) tmpPath() string    { return filepath.Join(s.dir, "progress.json.tmp") }

// ErrPersistenceFailure wraps every Save failure. The Engine only logs it
// (spec §7); it never propagates to the user as an error.
var ErrPersistenceFailure = fmt.Errorf("progress: persistence failure")

// Save writes p atomically: copy live to backup, write a temp file, fsync,
// rename over the live file. Any failure is logged and returned wrapped in
// ErrPersistenceFailure; the caller is expected to keep running on its
// in-memory Progress (spec §4.6 step 3).
func (s *Store) Save(p *Progress) error {
	fl := flock.New(s.lockPath())
	if err := fl.Lock(); err != nil {
		return s.failSave(fmt.Errorf("acquire lock: %w", err))
	}
	defer fl.Unlock()

	if _, err := os.Stat(s.livePath()); err == nil {
		live, err := os.ReadFile(s.livePath())
		if err != nil {
			return s.failSave(fmt.Errorf("read live file for backup: %w", err))
		}
		if err := os.WriteFile(s.backupPath(), live, 0o644); err != nil {
			return s.failSave(fmt.Errorf("write backup: %w", err))
		}
	}

	raw, err := json.MarshalIndent(toWire(p), "", "  ")
	if err != nil {
		return s.failSave(fmt.Errorf("marshal progress: %w", err))
	}

	tmp, err := os.OpenFile(s.tmpPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return s.failSave(fmt.Errorf("open temp file: %w", err))
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(s.tmpPath())
		return s.failSave(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(s.tmpPath())
		return s.failSave(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(s.tmpPath())
		return s.failSave(fmt.Errorf("close temp file: %w", err))
	}
	if err := os.Rename(s.tmpPath(), s.livePath()); err != nil {
		os.Remove(s.tmpPath())
		return s.failSave(fmt.Errorf("rename temp file over live file: %w", err))
	}
	return nil
}

func (s *Store) failSave(err error) error {
	wrapped := fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	log.WithError(wrapped).Warn("progress save failed, continuing with in-memory state")
	return wrapped
}

// Load reads Progress from the live file, falling back to the backup with a
// bounded retry on any failure, self-healing the live file when the backup
// had to be used. A missing live file (first run) returns Default with no
// error.
//
// knownUUID reports whether a lesson UUID exists in the curriculum the
// caller is about to run against. Spec §4.6's stored-state invariant is that
// a CurrentUUID naming an unknown lesson is reset to nil; Load is where that
// reset is both applied and persisted, not just papered over at read time --
// a stale UUID left in CurrentUUID would otherwise survive in progress.json
// across every run.
func (s *Store) Load(knownUUID func(uuid string) bool) (*Progress, error) {
	if _, err := os.Stat(s.livePath()); os.IsNotExist(err) {
		return deepCopyProgress(Default()), nil
	}

	raw, err := os.ReadFile(s.livePath())
	if err == nil {
		if p, perr := decode(raw); perr == nil {
			return deepCopyProgress(s.resetUnknownCurrent(p, knownUUID)), nil
		}
	}

	log.Warn("live progress file unreadable, falling back to backup")
	var healed *Progress
	retryErr := backoff.Retry(func() error {
		backupRaw, err := os.ReadFile(s.backupPath())
		if err != nil {
			return err
		}
		p, err := decode(backupRaw)
		if err != nil {
			return err
		}
		healed = p
		return nil
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(20*time.Millisecond), 3))

	if retryErr != nil {
		log.WithError(retryErr).Warn("backup progress file also unreadable, resetting to defaults")
		return deepCopyProgress(Default()), nil
	}

	healed = s.resetUnknownCurrent(healed, knownUUID)
	if err := s.Save(healed); err != nil {
		log.WithError(err).Warn("could not self-heal live progress file from backup")
	}
	return deepCopyProgress(healed), nil
}

// resetUnknownCurrent clears p.CurrentUUID and persists the correction when
// it names a lesson knownUUID doesn't recognize, so an upgrade or a deleted
// lesson never leaves the user stuck pointing at nothing.
func (s *Store) resetUnknownCurrent(p *Progress, knownUUID func(uuid string) bool) *Progress {
	if p.CurrentUUID == nil || knownUUID == nil || knownUUID(*p.CurrentUUID) {
		return p
	}
	log.WithField("uuid", *p.CurrentUUID).Warn("current lesson UUID not found in curriculum, resetting to first lesson")
	p.CurrentUUID = nil
	if err := s.Save(p); err != nil {
		log.WithError(err).Warn("could not persist current-UUID reset")
	}
	return p
}

func decode(raw []byte) (*Progress, error) {
	migrated := migrateLegacyFields(raw)
	var w wireFormat
	if err := json.Unmarshal(migrated, &w); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return fromWire(w), nil
}

// deepCopyProgress hands callers a value the Store's own internals (if it
// ever cached one) could never alias, via github.com/mohae/deepcopy --
// the same ownership-boundary discipline spec §3 requires between the
// Progress Store and the Engine.
func deepCopyProgress(p *Progress) *Progress {
	return deepcopy.Copy(p).(*Progress)
}
