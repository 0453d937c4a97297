package draft

import (
	"context"
	"sync"
	"time"
)

const defaultAutosaveInterval = 30 * time.Second

// Prompter asks the user a yes/no question. The back-offices plug their
// modal dialogs in here; tests use a canned answer.
type Prompter interface {
	Confirm(message string) bool
}

// PrompterFunc adapts a plain function to the Prompter interface.
type PrompterFunc func(message string) bool

func (f PrompterFunc) Confirm(message string) bool { return f(message) }

// GuardConfig tunes a FormGuard. Zero values fall back to defaults.
type GuardConfig struct {
	AutosaveInterval time.Duration
}

// FormGuard protects one form instance against data loss. It owns the
// clean/dirty state machine, the interval autosave while dirty, the
// navigation-confirm hook and the draft restoration protocol.
//
// State machine: clean -> dirty on the first edit, dirty -> clean on a
// successful submit (which also clears the draft). Persistence is
// fire-and-forget; the guard never exposes a saving/saved state.
type FormGuard[T any] struct {
	svc      *Service
	key      string
	prompter Prompter
	interval time.Duration

	// snapshot reads the live form's current payload; restore replaces it.
	snapshot func() T
	restore  func(T)

	mu    sync.Mutex
	dirty bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewFormGuard[T any](svc *Service, key string, cfg GuardConfig, prompter Prompter, snapshot func() T, restore func(T)) *FormGuard[T] {
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = defaultAutosaveInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &FormGuard[T]{
		svc:      svc,
		key:      key,
		prompter: prompter,
		interval: cfg.AutosaveInterval,
		snapshot: snapshot,
		restore:  restore,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go g.autosaveLoop(ctx)
	return g
}

// autosave runs on the interval for as long as the guard lives; ticks on a
// clean form are no-ops, so being dirty implicitly re-arms the timer.
func (g *FormGuard[T]) autosaveLoop(ctx context.Context) {
	defer close(g.done)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.Dirty() {
				g.svc.SaveDraft(ctx, g.key, g.snapshot())
			}
		}
	}
}

// MarkDirty records the first (and every subsequent) field edit.
func (g *FormGuard[T]) MarkDirty() {
	g.mu.Lock()
	g.dirty = true
	g.mu.Unlock()
}

func (g *FormGuard[T]) Dirty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dirty
}

// SubmitSucceeded transitions dirty -> clean and consumes the draft.
func (g *FormGuard[T]) SubmitSucceeded(ctx context.Context) {
	g.mu.Lock()
	g.dirty = false
	g.mu.Unlock()
	g.svc.ClearDraft(ctx, g.key)
}

// Flush saves immediately if the form is dirty. Called just before an
// allowed navigation; safe to call any time.
func (g *FormGuard[T]) Flush(ctx context.Context) {
	if g.Dirty() {
		g.svc.SaveDraft(ctx, g.key, g.snapshot())
	}
}

// ConfirmLeave intercepts an in-app route change. A clean form navigates
// straight through. A dirty one asks the user; on confirm the draft is
// flushed one last time and navigate runs. Returns whether navigation
// happened.
func (g *FormGuard[T]) ConfirmLeave(ctx context.Context, navigate func()) bool {
	if !g.Dirty() {
		navigate()
		return true
	}
	if !g.prompter.Confirm("You have unsaved changes. Leave this page?") {
		return false
	}
	g.Flush(ctx)
	navigate()
	return true
}

// BeforeUnload reports whether the host shell should arm the browser's
// native unsaved-changes prompt. Synchronous only: no storage write happens
// here beyond what the last autosave tick already persisted.
func (g *FormGuard[T]) BeforeUnload() bool {
	return g.Dirty()
}

// Restore runs the mount-time restoration protocol. If a non-expired draft
// exists and the live form is still clean, it is applied silently and
// consumed. If the user already started editing, they are asked; "no"
// discards the stored draft without touching the live form. Returns whether
// the draft was applied.
func (g *FormGuard[T]) Restore(ctx context.Context) bool {
	var payload T
	if !g.svc.GetDraft(ctx, g.key, &payload) {
		return false
	}

	if !g.Dirty() {
		g.restore(payload)
		g.svc.ClearDraft(ctx, g.key)
		return true
	}

	age := g.svc.DescribeDraftAge(ctx, g.key)
	if g.prompter.Confirm("Restore your draft from " + age + "?") {
		g.restore(payload)
		g.svc.ClearDraft(ctx, g.key)
		return true
	}
	g.svc.ClearDraft(ctx, g.key)
	return false
}

// Close stops the autosave loop. The draft itself is left as-is.
func (g *FormGuard[T]) Close() {
	g.cancel()
	<-g.done
}
