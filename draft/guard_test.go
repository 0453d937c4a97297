package draft_test

import (
	"context"
	"testing"
	"time"

	"github.com/savefood/backoffice_core/draft"
)

type guardedForm struct {
	payload registrationPayload
}

func newGuard(t *testing.T, svc *draft.Service, form *guardedForm, answer bool, interval time.Duration) (*draft.FormGuard[registrationPayload], *int) {
	t.Helper()
	prompts := 0
	prompter := draft.PrompterFunc(func(string) bool {
		prompts++
		return answer
	})
	g := draft.NewFormGuard(svc, "registration_draft", draft.GuardConfig{AutosaveInterval: interval},
		prompter,
		func() registrationPayload { return form.payload },
		func(p registrationPayload) { form.payload = p },
	)
	t.Cleanup(g.Close)
	return g, &prompts
}

func TestCleanFormNavigatesWithoutPrompt(t *testing.T) {
	svc, _, _ := newService(t)
	form := &guardedForm{}
	g, prompts := newGuard(t, svc, form, false, time.Hour)

	navigated := false
	if !g.ConfirmLeave(context.Background(), func() { navigated = true }) {
		t.Fatal("clean form should navigate")
	}
	if !navigated {
		t.Fatal("navigate callback should have run")
	}
	if *prompts != 0 {
		t.Fatal("clean form must not prompt")
	}
}

func TestDirtyFormBlockedOnCancel(t *testing.T) {
	svc, _, _ := newService(t)
	form := &guardedForm{payload: registrationPayload{Username: "abc"}}
	g, prompts := newGuard(t, svc, form, false, time.Hour)
	g.MarkDirty()

	navigated := false
	if g.ConfirmLeave(context.Background(), func() { navigated = true }) {
		t.Fatal("cancel should abort navigation")
	}
	if navigated {
		t.Fatal("navigate callback must not run on cancel")
	}
	if *prompts != 1 {
		t.Fatalf("expected 1 prompt, got %d", *prompts)
	}
}

func TestDirtyFormFlushedOnConfirmedLeave(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	form := &guardedForm{payload: registrationPayload{Username: "abc", Step: 2}}
	g, _ := newGuard(t, svc, form, true, time.Hour)
	g.MarkDirty()

	navigated := false
	if !g.ConfirmLeave(ctx, func() { navigated = true }) {
		t.Fatal("confirm should allow navigation")
	}
	if !navigated {
		t.Fatal("navigate callback should have run")
	}

	// the final save must have persisted the live payload
	var restored registrationPayload
	if !svc.GetDraft(ctx, "registration_draft", &restored) {
		t.Fatal("expected a flushed draft")
	}
	if restored != form.payload {
		t.Fatalf("flushed %+v, want %+v", restored, form.payload)
	}
}

func TestBeforeUnloadTracksDirtyState(t *testing.T) {
	svc, _, _ := newService(t)
	form := &guardedForm{}
	g, _ := newGuard(t, svc, form, false, time.Hour)

	if g.BeforeUnload() {
		t.Fatal("clean form should not arm the unload prompt")
	}
	g.MarkDirty()
	if !g.BeforeUnload() {
		t.Fatal("dirty form should arm the unload prompt")
	}
	g.SubmitSucceeded(context.Background())
	if g.BeforeUnload() {
		t.Fatal("submitted form should not arm the unload prompt")
	}
}

func TestSubmitSucceededClearsDraft(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	form := &guardedForm{payload: registrationPayload{Username: "abc"}}
	g, _ := newGuard(t, svc, form, false, time.Hour)
	g.MarkDirty()
	g.Flush(ctx)
	if !svc.HasDraft(ctx, "registration_draft") {
		t.Fatal("expected flushed draft")
	}

	g.SubmitSucceeded(ctx)
	if svc.HasDraft(ctx, "registration_draft") {
		t.Fatal("submit must consume the draft")
	}
	if g.Dirty() {
		t.Fatal("submit must transition back to clean")
	}
}

func TestRestoreSilentlyWhenClean(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	svc.SaveDraft(ctx, "registration_draft", registrationPayload{Username: "abc", Step: 2})

	form := &guardedForm{}
	g, prompts := newGuard(t, svc, form, false, time.Hour)

	if !g.Restore(ctx) {
		t.Fatal("expected silent restore")
	}
	if *prompts != 0 {
		t.Fatal("clean form must restore without a prompt")
	}
	if form.payload.Username != "abc" || form.payload.Step != 2 {
		t.Fatalf("restore applied %+v", form.payload)
	}
	// restored draft is consumed
	if svc.HasDraft(ctx, "registration_draft") {
		t.Fatal("restored draft should have been cleared")
	}
}

func TestRestorePromptsWhenAlreadyDirty(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	svc.SaveDraft(ctx, "registration_draft", registrationPayload{Username: "stored", Step: 3})

	// user said no: live form untouched, stored draft discarded
	form := &guardedForm{payload: registrationPayload{Username: "live", Step: 1}}
	g, prompts := newGuard(t, svc, form, false, time.Hour)
	g.MarkDirty()

	if g.Restore(ctx) {
		t.Fatal("declined restore should report false")
	}
	if *prompts != 1 {
		t.Fatalf("expected 1 prompt, got %d", *prompts)
	}
	if form.payload.Username != "live" {
		t.Fatalf("live form modified: %+v", form.payload)
	}
	if svc.HasDraft(ctx, "registration_draft") {
		t.Fatal("declined draft should be discarded")
	}
}

func TestRestoreAppliesOverDirtyFormOnYes(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	svc.SaveDraft(ctx, "registration_draft", registrationPayload{Username: "stored", Step: 3})

	form := &guardedForm{payload: registrationPayload{Username: "live", Step: 1}}
	g, _ := newGuard(t, svc, form, true, time.Hour)
	g.MarkDirty()

	if !g.Restore(ctx) {
		t.Fatal("accepted restore should report true")
	}
	if form.payload.Username != "stored" || form.payload.Step != 3 {
		t.Fatalf("restore applied %+v", form.payload)
	}
}

func TestRestoreWithNoDraft(t *testing.T) {
	svc, _, _ := newService(t)
	form := &guardedForm{}
	g, prompts := newGuard(t, svc, form, true, time.Hour)

	if g.Restore(context.Background()) {
		t.Fatal("nothing to restore")
	}
	if *prompts != 0 {
		t.Fatal("no prompt without a draft")
	}
}

func TestAutosaveTickPersistsWhileDirty(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	form := &guardedForm{payload: registrationPayload{Username: "abc", Step: 1}}
	g, _ := newGuard(t, svc, form, false, 20*time.Millisecond)
	g.MarkDirty()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.HasDraft(ctx, "registration_draft") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("autosave tick never persisted the draft")
}
