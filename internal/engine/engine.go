// Package engine is the Simulation Engine: the deterministic state machine
// translating UI input strings into UI actions, owning Progress for the
// process lifetime and driving the Executor for every code submission.
// Grounded on the teacher's command-table dispatch in
// runsc/boot/controller.go, where a fixed set of named operations
// (ContMgrCheckpoint and friends) is dispatched by string key over an RPC
// boundary; codequest scales the same shape down to an in-process table
// since there is no cross-process control plane here.
package engine

import (
	"context"
	"time"

	"github.com/ocagi/codequest/internal/config"
	"github.com/ocagi/codequest/internal/curriculum"
	"github.com/ocagi/codequest/internal/executor"
	"github.com/ocagi/codequest/internal/ipc"
	"github.com/ocagi/codequest/internal/logging"
	"github.com/ocagi/codequest/internal/progress"
)

var log = logging.For("engine")

// Input command constants, matching spec §4.7's table exactly. Anything
// else, including the empty string, is handled by process_input as either
// "skip" (empty) or "source code" (everything else).
const (
	CmdResetAll         = "RESET_ALL"
	CmdPrevTask         = "PREV_TASK"
	CmdNextTask         = "NEXT_TASK"
	CmdGotoFirstSkipped = "GOTO_FIRST_SKIPPED"
	CmdShowSolution     = "SHOW_SOLUTION"
	CmdDevMessage       = "DEV_MESSAGE"
)

// Status is a lesson's render-time state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

// MessageKind classifies a ShowMessage action.
type MessageKind string

const (
	KindSuccess  MessageKind = "success"
	KindError    MessageKind = "error"
	KindInfo     MessageKind = "info"
	KindSolution MessageKind = "solution"
	KindReset    MessageKind = "reset"
)

// Action is one value the Engine hands to the UI collaborator. Exactly one
// of the Render*/ShowMessage/CustomView/Exit fields is meaningful per
// action; Kind says which.
type ActionKind string

const (
	ActionRenderEditor      ActionKind = "render_editor"
	ActionRenderCelebration ActionKind = "render_celebration"
	ActionShowMessage       ActionKind = "show_message"
	ActionCustomView        ActionKind = "custom_view"
	ActionExit              ActionKind = "exit"
)

type Action struct {
	Kind ActionKind

	// RenderEditor fields.
	Lesson         *curriculum.Lesson
	InitialCode    string
	Status         Status
	CompletedCount int
	SkippedCount   int
	TotalXP        int

	// RenderCelebration adds HasSkipped to the two counts above.
	HasSkipped bool

	// ShowMessage fields.
	MessageTitle   string
	MessageBody    string
	MessageKind    MessageKind
	WaitForAck     bool

	// CustomView.
	ViewName string

	// Exit.
	ExitCode int
}

// Engine is the owned Progress plus its two collaborators.
type Engine struct {
	progress   *progress.Progress
	store      *progress.Store
	curriculum *curriculum.Provider
	exec       *executor.Executor
	wallClock  time.Duration
	budget     config.Budget
}

// New constructs an Engine. store.Load() has already been called by the
// caller (cmd/codequest) so that a StartupFatal curriculum load failure and
// a progress load happen before the Engine exists at all.
func New(p *progress.Progress, store *progress.Store, curr *curriculum.Provider, exec *executor.Executor, wallClock time.Duration, budget config.Budget) *Engine {
	return &Engine{progress: p, store: store, curriculum: curr, exec: exec, wallClock: wallClock, budget: budget}
}

// currentLesson resolves CurrentUUID to a Lesson, defaulting to the first
// lesson when nil or unknown (spec §4.6 "reset to null ... Engine resolves
// to the first lesson").
func (e *Engine) currentLesson() *curriculum.Lesson {
	if e.progress.CurrentUUID == nil {
		return e.curriculum.First()
	}
	if l := e.curriculum.ByUUID(*e.progress.CurrentUUID); l != nil {
		return l
	}
	return e.curriculum.First()
}

func (e *Engine) totalXP() int {
	total := 0
	for uuid := range e.progress.CompletedTasks {
		if l := e.curriculum.ByUUID(uuid); l != nil {
			total += l.XP
		}
	}
	return total
}

func (e *Engine) statusOf(lesson *curriculum.Lesson) Status {
	if _, ok := e.progress.CompletedTasks[lesson.UUID]; ok {
		return StatusCompleted
	}
	if _, ok := e.progress.SkippedTasks[lesson.UUID]; ok {
		return StatusSkipped
	}
	return StatusPending
}

// NextAction resolves what to show next: RenderEditor for the current
// lesson, or RenderCelebration if none remains (spec §4.7).
func (e *Engine) NextAction() Action {
	lesson := e.currentLesson()
	if lesson == nil {
		return Action{
			Kind:           ActionRenderCelebration,
			CompletedCount: len(e.progress.CompletedTasks),
			SkippedCount:   len(e.progress.SkippedTasks),
			HasSkipped:     len(e.progress.SkippedTasks) > 0,
			TotalXP:        e.totalXP(),
		}
	}
	return Action{
		Kind:           ActionRenderEditor,
		Lesson:         lesson,
		InitialCode:    e.progress.UserCode[lesson.UUID],
		Status:         e.statusOf(lesson),
		CompletedCount: len(e.progress.CompletedTasks),
		SkippedCount:   len(e.progress.SkippedTasks),
		TotalXP:        e.totalXP(),
	}
}

func (e *Engine) persist() {
	if err := e.store.Save(e.progress); err != nil {
		// Store.Save has already logged at warn; the Engine's only job here
		// is to keep running on its in-memory Progress (spec §7).
		log.WithError(err).Debug("continuing with in-memory progress after a save failure")
	}
}

// ProcessInput dispatches one UI input through the exact transition table of
// spec §4.7. ctx bounds the Executor call when x is source code.
func (e *Engine) ProcessInput(ctx context.Context, x string) Action {
	log.WithField("input_kind", classify(x)).Debug("process_input")

	switch x {
	case CmdResetAll:
		return e.resetAll()
	case CmdDevMessage:
		return Action{Kind: ActionCustomView, ViewName: "dev_message"}
	case CmdPrevTask:
		return e.prevTask()
	case CmdNextTask:
		return e.nextTask()
	case CmdGotoFirstSkipped:
		return e.gotoFirstSkipped()
	case CmdShowSolution:
		return e.showSolution()
	case "":
		return e.skip()
	default:
		return e.submit(ctx, x)
	}
}

func classify(x string) string {
	switch x {
	case CmdResetAll, CmdDevMessage, CmdPrevTask, CmdNextTask, CmdGotoFirstSkipped, CmdShowSolution:
		return x
	case "":
		return "skip"
	default:
		return "code"
	}
}

func (e *Engine) resetAll() Action {
	e.progress = progress.Default()
	e.persist()
	return Action{Kind: ActionShowMessage, MessageKind: KindReset, WaitForAck: false}
}

func (e *Engine) prevTask() Action {
	lesson := e.currentLesson()
	if lesson == nil {
		return e.NextAction()
	}
	prev := e.curriculum.Prev(lesson.UUID)
	if prev == nil {
		return e.NextAction()
	}
	uuid := prev.UUID
	e.progress.CurrentUUID = &uuid
	e.persist()
	return e.NextAction()
}

func (e *Engine) nextTask() Action {
	lesson := e.currentLesson()
	if lesson == nil {
		return e.NextAction()
	}
	next := e.curriculum.Next(lesson.UUID)
	if next == nil {
		return e.NextAction()
	}
	if !e.resolved(lesson.UUID) && !e.resolved(next.UUID) {
		return e.NextAction()
	}
	uuid := next.UUID
	e.progress.CurrentUUID = &uuid
	e.persist()
	return e.NextAction()
}

func (e *Engine) resolved(uuid string) bool {
	if _, ok := e.progress.CompletedTasks[uuid]; ok {
		return true
	}
	_, ok := e.progress.SkippedTasks[uuid]
	return ok
}

func (e *Engine) gotoFirstSkipped() Action {
	if len(e.progress.SkippedTasks) == 0 {
		return e.NextAction()
	}
	var earliest *curriculum.Lesson
	for uuid := range e.progress.SkippedTasks {
		l := e.curriculum.ByUUID(uuid)
		if l == nil {
			continue
		}
		if earliest == nil || l.Index < earliest.Index {
			earliest = l
		}
	}
	if earliest == nil {
		return e.NextAction()
	}
	uuid := earliest.UUID
	e.progress.CurrentUUID = &uuid
	e.persist()
	return e.NextAction()
}

func (e *Engine) showSolution() Action {
	lesson := e.currentLesson()
	if lesson == nil {
		return e.NextAction()
	}
	return Action{Kind: ActionShowMessage, MessageKind: KindSolution, MessageBody: lesson.Solution, WaitForAck: true}
}

func (e *Engine) skip() Action {
	lesson := e.currentLesson()
	if lesson == nil {
		return Action{Kind: ActionExit, ExitCode: 0}
	}
	if _, already := e.progress.SkippedTasks[lesson.UUID]; !already {
		e.progress.SkippedTasks[lesson.UUID] = struct{}{}
		if next := e.curriculum.Next(lesson.UUID); next != nil {
			uuid := next.UUID
			e.progress.CurrentUUID = &uuid
		}
		e.persist()
	}
	return Action{Kind: ActionShowMessage, MessageKind: KindInfo, MessageBody: lesson.Solution, WaitForAck: true}
}

func (e *Engine) submit(ctx context.Context, source string) Action {
	lesson := e.currentLesson()
	if lesson == nil {
		return Action{Kind: ActionExit, ExitCode: 0}
	}

	e.progress.UserCode[lesson.UUID] = source
	validatorSrc, verr := e.curriculum.ValidatorSource(lesson)
	if verr != nil {
		log.WithError(verr).Warn("could not load validator source")
		e.persist()
		return Action{Kind: ActionShowMessage, MessageKind: KindError, MessageBody: verr.Error(), WaitForAck: true}
	}

	req := ipc.Request{
		Source:         source,
		ValidatorSrc:   validatorSrc,
		MemoryBytes:    e.budget.MemoryBytes,
		CPUSeconds:     e.budget.CPUSeconds,
		MaxOperations:  e.budget.MaxOperations,
		RecursionDepth: e.budget.RecursionDepth,
	}

	out, err := e.exec.Run(ctx, req, e.wallClock)
	e.persist()
	if err != nil {
		return Action{Kind: ActionShowMessage, MessageKind: KindError, MessageBody: err.Error(), WaitForAck: true}
	}
	if out.TimedOut {
		return Action{Kind: ActionShowMessage, MessageKind: KindError, MessageBody: "submission timed out", WaitForAck: true}
	}
	if out.Crashed {
		return Action{Kind: ActionShowMessage, MessageKind: KindError, MessageBody: "worker process crashed", WaitForAck: true}
	}

	resp := out.Response
	if !resp.RanToCompletion {
		return Action{Kind: ActionShowMessage, MessageKind: KindError, MessageBody: resp.Diagnostic, WaitForAck: true}
	}
	if !resp.ValidatorPassed {
		return Action{Kind: ActionShowMessage, MessageKind: KindError, MessageBody: resp.Diagnostic, WaitForAck: true}
	}

	e.progress.CompletedTasks[lesson.UUID] = struct{}{}
	delete(e.progress.SkippedTasks, lesson.UUID)
	if next := e.curriculum.Next(lesson.UUID); next != nil {
		uuid := next.UUID
		e.progress.CurrentUUID = &uuid
	}
	e.persist()
	return Action{Kind: ActionShowMessage, MessageKind: KindSuccess, MessageBody: resp.Diagnostic, WaitForAck: false}
}
