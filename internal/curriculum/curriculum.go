// Package curriculum is the Curriculum Provider: it loads an ordered set of
// lessons from a directory tree, lazily loads and caches each lesson's
// validator source, and hands the Simulation Engine a stable, read-only
// Ordering to navigate. Grounded on the teacher's own layered manifest ->
// per-directory descriptor loading in runsc/boot/loader.go, which reads one
// top-level spec and then walks a directory tree for the per-container
// detail it doesn't itself contain.
package curriculum

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/ocagi/codequest/internal/logging"
)

var log = logging.For("curriculum")

// SupportedSchema is the highest manifest schema_version this binary
// understands. A manifest built for a newer major schema is a StartupFatal
// (spec §7), not a best-effort parse.
const SupportedSchema = "v1"

// ErrStartupFatal wraps every condition that makes the curriculum
// unusable: spec §7 treats curriculum load failure as unrecoverable.
var ErrStartupFatal = fmt.Errorf("curriculum: startup fatal")

// Lesson is one teaching unit, immutable once the Provider has loaded it.
type Lesson struct {
	UUID        string
	Index       int
	Chapter     string
	Title       string
	Description string
	Hint        string
	Solution    string
	Validator   ValidatorRef
	Tags        []string
	Category    string
	XP          int
	Type        string
}

// ValidatorRef is a lazily-resolved pointer to a lesson's validator source.
type ValidatorRef struct {
	LessonUUID string
	Path       string
}

type taskDescriptor struct {
	UUID        string   `json:"uuid"`
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Hint        string   `json:"hint"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	XP          int      `json:"xp"`
	Type        string   `json:"type"`
}

type manifestChapter struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type manifestFile struct {
	SchemaVersion string            `json:"schema_version"`
	Chapters      []manifestChapter `json:"chapters"`
}

// Provider owns the curriculum for the process lifetime: the Ordering plus
// a lazily-populated validator-source cache.
type Provider struct {
	ordering *Ordering

	devMessage string

	validatorMu    sync.RWMutex
	validatorCache map[string]string
}

// Load reads manifest.json under root, walks each chapter's lesson
// directories in lexicographic order, parses every task.json, and returns a
// fully-populated Provider. Any failure is wrapped in ErrStartupFatal.
func Load(root string) (*Provider, error) {
	manifestPath := filepath.Join(root, "manifest.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %v", ErrStartupFatal, err)
	}
	var manifest manifestFile
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", ErrStartupFatal, err)
	}
	if err := checkSchema(manifest.SchemaVersion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartupFatal, err)
	}
	if len(manifest.Chapters) == 0 {
		return nil, fmt.Errorf("%w: manifest lists no chapters", ErrStartupFatal)
	}

	var lessons []*Lesson
	index := 0
	for _, ch := range manifest.Chapters {
		chapterDir := filepath.Join(root, ch.Slug)
		entries, err := os.ReadDir(chapterDir)
		if err != nil {
			return nil, fmt.Errorf("%w: read chapter %q: %v", ErrStartupFatal, ch.Slug, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			lessonDir := filepath.Join(chapterDir, entry.Name())
			lesson, err := loadLesson(lessonDir, ch.Title, index)
			if err != nil {
				return nil, fmt.Errorf("%w: load lesson %q: %v", ErrStartupFatal, lessonDir, err)
			}
			lessons = append(lessons, lesson)
			index++
		}
	}
	if len(lessons) == 0 {
		return nil, fmt.Errorf("%w: curriculum has no lessons", ErrStartupFatal)
	}

	ordering, err := newOrdering(lessons)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartupFatal, err)
	}

	p := &Provider{ordering: ordering, validatorCache: make(map[string]string)}
	p.devMessage = loadDevMessage(root)
	return p, nil
}

func loadLesson(dir, chapter string, index int) (*Lesson, error) {
	taskRaw, err := os.ReadFile(filepath.Join(dir, "task.json"))
	if err != nil {
		return nil, fmt.Errorf("read task.json: %w", err)
	}
	var desc taskDescriptor
	if err := json.Unmarshal(taskRaw, &desc); err != nil {
		return nil, fmt.Errorf("parse task.json: %w", err)
	}
	if desc.UUID == "" {
		return nil, fmt.Errorf("task.json missing uuid")
	}
	lessonType := desc.Type
	if lessonType == "" {
		lessonType = "code"
	}

	solution := ""
	if b, err := os.ReadFile(filepath.Join(dir, "solution.tengo")); err == nil {
		solution = string(b)
	}

	validatorPath := filepath.Join(dir, "validation.tengo")
	if _, err := os.Stat(validatorPath); err != nil {
		return nil, fmt.Errorf("missing validation.tengo: %w", err)
	}

	return &Lesson{
		UUID:        desc.UUID,
		Index:       index,
		Chapter:     chapter,
		Title:       desc.Title,
		Description: desc.Description,
		Hint:        desc.Hint,
		Solution:    solution,
		Validator:   ValidatorRef{LessonUUID: desc.UUID, Path: validatorPath},
		Tags:        desc.Tags,
		Category:    desc.Category,
		XP:          desc.XP,
		Type:        lessonType,
	}, nil
}

func checkSchema(version string) error {
	if version == "" {
		return fmt.Errorf("manifest has no schema_version")
	}
	if semver.Major(version) != SupportedSchema {
		return fmt.Errorf("manifest schema %s is incompatible with supported schema %s", version, SupportedSchema)
	}
	return nil
}

func loadDevMessage(root string) string {
	b, err := os.ReadFile(filepath.Join(root, "DEVMESSAGE.md"))
	if err != nil {
		return ""
	}
	return string(b)
}

// First returns the first lesson in ordering, or nil if the curriculum is
// empty (which Load never actually permits, but By/Next/Prev callers should
// not assume a non-nil Provider is non-empty forever).
func (p *Provider) First() *Lesson { return p.ordering.First() }

// ByUUID returns the lesson with the given UUID, or nil if unknown.
func (p *Provider) ByUUID(uuid string) *Lesson { return p.ordering.ByUUID(uuid) }

// Next returns the lesson immediately after uuid in ordering, or nil if
// uuid is the last lesson or unknown.
func (p *Provider) Next(uuid string) *Lesson { return p.ordering.Next(uuid) }

// Prev returns the lesson immediately before uuid in ordering, or nil if
// uuid is the first lesson or unknown.
func (p *Provider) Prev(uuid string) *Lesson { return p.ordering.Prev(uuid) }

// Count returns the total number of lessons.
func (p *Provider) Count() int { return p.ordering.Count() }

// Chapters returns each distinct chapter title once, in ordering order, supplementing
// the core navigation contract with the grouping a "jump to chapter" UI
// would need later.
func (p *Provider) Chapters() []string { return p.ordering.Chapters() }

// DevMessage returns the curriculum's optional developer-message content,
// or the empty string if none was provided.
func (p *Provider) DevMessage() string { return p.devMessage }

// ValidatorSource returns lesson's validator source text, loading it from
// disk on first use and caching it for the process lifetime (Design Notes
// §9 "cache compiled form for the process lifetime" -- codequest caches the
// source text itself since compilation happens per-submission inside the
// worker, a separate process that can't share a compiled form with the
// parent anyway).
func (p *Provider) ValidatorSource(lesson *Lesson) (string, error) {
	p.validatorMu.RLock()
	if src, ok := p.validatorCache[lesson.UUID]; ok {
		p.validatorMu.RUnlock()
		return src, nil
	}
	p.validatorMu.RUnlock()

	b, err := os.ReadFile(lesson.Validator.Path)
	if err != nil {
		return "", fmt.Errorf("load validator for %s: %w", lesson.UUID, err)
	}
	src := string(b)

	p.validatorMu.Lock()
	p.validatorCache[lesson.UUID] = src
	p.validatorMu.Unlock()

	log.WithField("lesson", lesson.UUID).Debug("validator source loaded and cached")
	return src, nil
}
