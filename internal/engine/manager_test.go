package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mbaylis/curator/internal/collection"
	"github.com/mbaylis/curator/internal/logging"
	"github.com/mbaylis/curator/internal/transport"
	"github.com/mbaylis/curator/internal/wizard"
)

const (
	operatorID int64 = 99
	menuChat   int64 = 50
)

type managerFixture struct {
	manager  *Manager
	recorder *transport.Recorder
	base     string
	sessions collection.Store[SessionData]
	drafts   collection.Store[*wizard.Draft]
}

// newManagerFixture builds a manager over a temp input base holding one
// "foo" input directory with the given items.
func newManagerFixture(t *testing.T, items ...string) *managerFixture {
	t.Helper()
	root := t.TempDir()
	base := filepath.Join(root, "input_data")
	if err := os.MkdirAll(filepath.Join(base, "foo"), 0755); err != nil {
		t.Fatalf("failed to create input directory: %v", err)
	}
	for _, item := range items {
		if err := os.WriteFile(filepath.Join(base, "foo", item), []byte("payload"), 0644); err != nil {
			t.Fatalf("failed to write item %s: %v", item, err)
		}
	}

	sessions, err := collection.NewFileStore[SessionData](filepath.Join(root, "sessions"))
	if err != nil {
		t.Fatalf("failed to create session collection: %v", err)
	}
	drafts, err := collection.NewFileStore[*wizard.Draft](filepath.Join(root, "drafts"))
	if err != nil {
		t.Fatalf("failed to create draft collection: %v", err)
	}

	recorder := transport.NewRecorder()
	manager, err := NewManager(ManagerOptions{
		OperatorID: operatorID,
		InputBase:  base,
		Grid:       Grid{Rows: 3, Cols: 2},
		Sessions:   sessions,
		Drafts:     drafts,
		Transport:  recorder,
		Logger:     logging.NopLogger(),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return &managerFixture{
		manager:  manager,
		recorder: recorder,
		base:     base,
		sessions: sessions,
		drafts:   drafts,
	}
}

func (f *managerFixture) text(t *testing.T, text string) {
	t.Helper()
	if err := f.manager.HandleText(menuChat, nil, text, operatorID); err != nil {
		t.Fatalf("HandleText(%q) failed: %v", text, err)
	}
}

func (f *managerFixture) choice(t *testing.T, data string) {
	t.Helper()
	if err := f.manager.HandleChoice(menuChat, 0, data, operatorID); err != nil {
		t.Fatalf("HandleChoice(%q) failed: %v", data, err)
	}
}

// createSession walks the full wizard through the manager's event surface.
func (f *managerFixture) createSession(t *testing.T, name string) {
	t.Helper()
	f.choice(t, "session_create")
	f.text(t, name)
	f.choice(t, "wizard:3")
	f.choice(t, "wizard:directory")
	f.choice(t, "wizard:0")
	f.choice(t, "wizard:no")
	f.choice(t, "wizard:subdirectory")
	f.text(t, "cat")
	f.text(t, "dog")
	f.text(t, wizard.TagListEnd)
	f.choice(t, "wizard:no")
	f.choice(t, "wizard:no")
}

// lastText returns the most recent posted message text.
func (f *managerFixture) lastText(t *testing.T) string {
	t.Helper()
	last, ok := f.recorder.Last()
	if !ok {
		t.Fatal("no message posted")
	}
	return last.Content.Text
}

func TestManager_WizardCreatesSession(t *testing.T) {
	f := newManagerFixture(t, "a.png")

	f.choice(t, "session_create")
	if !strings.Contains(f.lastText(t), "name the session") {
		t.Fatalf("wizard did not ask for a name: %q", f.lastText(t))
	}

	f.createSession(t, "Test")

	sessions := f.manager.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	got := sessions[0]
	if got.ID != 1 || got.Name != "Test" || got.BatchSize != 3 || got.Active {
		t.Errorf("session = %+v, want inactive id 1 named Test with batch 3", got)
	}
	if got.Source.Directory != filepath.Join(f.base, "foo") {
		t.Errorf("source directory = %q", got.Source.Directory)
	}

	// The finished draft is gone and the session is on disk.
	drafts, err := f.drafts.List()
	if err != nil {
		t.Fatalf("failed to list drafts: %v", err)
	}
	if len(drafts) != 0 {
		t.Errorf("%d drafts left after materialization", len(drafts))
	}
	persisted, err := f.sessions.List()
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(persisted) != 1 || persisted[0].Name != "Test" {
		t.Errorf("persisted sessions = %+v", persisted)
	}
}

func TestManager_MenuCancelsDraft(t *testing.T) {
	f := newManagerFixture(t)

	f.choice(t, "session_create")
	f.text(t, "Half done")
	f.text(t, "/menu")

	drafts, err := f.drafts.List()
	if err != nil {
		t.Fatalf("failed to list drafts: %v", err)
	}
	if len(drafts) != 0 {
		t.Errorf("draft survived /menu: %+v", drafts)
	}
	if !strings.Contains(f.lastText(t), "What would you like to do?") {
		t.Errorf("/menu did not show the root menu: %q", f.lastText(t))
	}

	// A later text answer no longer feeds a draft.
	f.text(t, "stray text")
	if got := f.lastText(t); !strings.Contains(got, "What would you like to do?") {
		t.Errorf("stray text answer = %q, want root menu", got)
	}
}

func TestManager_WizardValidationReprompts(t *testing.T) {
	f := newManagerFixture(t)

	f.choice(t, "session_create")
	f.text(t, "   ")

	// The rejection is reported and the same question is asked again.
	live := f.recorder.Live()
	if len(live) < 2 {
		t.Fatalf("expected error plus re-prompt, got %d messages", len(live))
	}
	if !strings.Contains(live[len(live)-1].Content.Text, "name the session") {
		t.Errorf("wizard did not re-ask after invalid answer: %q", live[len(live)-1].Content.Text)
	}
}

func TestManager_StartAndLabelThroughCallbacks(t *testing.T) {
	f := newManagerFixture(t, "a.png")
	f.createSession(t, "Test")

	f.choice(t, "session_start:1")
	posted := f.recorder.Live()
	item := posted[len(posted)-1]
	if item.Content.Kind != transport.KindImage {
		t.Fatalf("expected the item message last, got %+v", item)
	}

	// Press the second option button ("dog").
	f.choice(t, "label:1:0:1")

	if _, err := os.Stat(filepath.Join(f.base, "foo", "dog", "a.png")); err != nil {
		t.Errorf("item was not labeled: %v", err)
	}
	sessions := f.manager.Sessions()
	if sessions[0].Active {
		t.Error("session still active after its only item was labeled")
	}
	if !strings.Contains(f.lastText(t), "complete") {
		t.Errorf("completion not reported: %q", f.lastText(t))
	}
}

func TestManager_SessionIDsReuseLowestFreeSlot(t *testing.T) {
	f := newManagerFixture(t, "a.png")
	f.createSession(t, "First")
	f.createSession(t, "Second")
	f.choice(t, "session_delete:1")
	f.createSession(t, "Third")

	sessions := f.manager.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != 1 || sessions[0].Name != "Third" {
		t.Errorf("freed id 1 was not reused: %+v", sessions[0])
	}
	if sessions[1].ID != 2 || sessions[1].Name != "Second" {
		t.Errorf("unexpected second session: %+v", sessions[1])
	}
}

func TestManager_UnauthorizedGetsGenericRefusal(t *testing.T) {
	f := newManagerFixture(t)

	if err := f.manager.HandleText(menuChat, nil, "/menu", 123); err != nil {
		t.Fatalf("HandleText failed: %v", err)
	}
	if got := f.lastText(t); got != "Access denied." {
		t.Errorf("refusal = %q", got)
	}
	if err := f.manager.HandleChoice(menuChat, 0, "session_create", 123); err != nil {
		t.Fatalf("HandleChoice failed: %v", err)
	}
	drafts, err := f.drafts.List()
	if err != nil {
		t.Fatalf("failed to list drafts: %v", err)
	}
	if len(drafts) != 0 {
		t.Error("unauthorized caller started a draft")
	}
}

func TestManager_StaleCallbackReported(t *testing.T) {
	f := newManagerFixture(t, "a.png")
	f.createSession(t, "Test")

	f.choice(t, "label:9:0:0")
	if got := f.lastText(t); got != "No matching item." {
		t.Errorf("stale session callback = %q", got)
	}

	f.choice(t, "label:1:42:0")
	if got := f.lastText(t); got != "No matching item." {
		t.Errorf("stale token callback = %q", got)
	}
}

func TestManager_BadPageDirectionReported(t *testing.T) {
	f := newManagerFixture(t, "a.png")
	f.createSession(t, "Test")
	f.choice(t, "session_start:1")
	item, _ := f.recorder.Last()

	f.choice(t, "page:1:0:sideways")
	if got := f.lastText(t); got != "No matching item." {
		t.Errorf("bad page direction = %q", got)
	}
	if m, _ := f.recorder.Message(item.Handle); m.Edits != 0 {
		t.Errorf("bad page direction edited the item message %d times", m.Edits)
	}
}

func TestManager_TextDuringChoiceStepReprompts(t *testing.T) {
	f := newManagerFixture(t)

	f.choice(t, "session_create")
	f.text(t, "Test")

	// The draft now waits on the batch-size keyboard; stray text re-asks
	// that question instead of dropping to the root menu.
	f.text(t, "five")
	if got := f.lastText(t); !strings.Contains(got, "How many items") {
		t.Errorf("stray text during choice step = %q, want the batch-size question", got)
	}
	drafts, err := f.drafts.List()
	if err != nil {
		t.Fatalf("failed to list drafts: %v", err)
	}
	if len(drafts) != 1 {
		t.Errorf("draft was dropped by stray text: %d drafts", len(drafts))
	}
}

func TestManager_RestoresPersistedState(t *testing.T) {
	f := newManagerFixture(t, "a.png")
	f.createSession(t, "Test")
	f.choice(t, "session_start:1")

	// A second manager over the same collections sees the session,
	// inactive, with its token assignments intact.
	restored, err := NewManager(ManagerOptions{
		OperatorID: operatorID,
		InputBase:  f.base,
		Grid:       Grid{Rows: 3, Cols: 2},
		Sessions:   f.sessions,
		Drafts:     f.drafts,
		Transport:  f.recorder,
		Logger:     logging.NopLogger(),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	sessions := restored.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("restored sessions = %d, want 1", len(sessions))
	}
	if sessions[0].Active {
		t.Error("restored session came back active")
	}
	if len(sessions[0].Index.TokenToItem) != 1 {
		t.Errorf("restored token map = %v", sessions[0].Index.TokenToItem)
	}
}

func TestManager_SessionMenusFilterByState(t *testing.T) {
	f := newManagerFixture(t, "a.png", "b.png")
	f.createSession(t, "Test")
	f.choice(t, "session_start:1")

	// An active session does not appear in the start menu.
	f.choice(t, "session_start")
	if got := f.lastText(t); got != "There are no matching sessions." {
		t.Errorf("start menu = %q", got)
	}

	f.choice(t, "session_end")
	last, _ := f.recorder.Last()
	if !hasButton(last.Keyboard, "session_end:1") {
		t.Errorf("end menu missing the active session: %v", buttonData(last.Keyboard))
	}

	f.choice(t, "session_end:1")
	if !strings.Contains(f.lastText(t), "ended") {
		t.Errorf("end confirmation = %q", f.lastText(t))
	}
	if f.manager.Sessions()[0].Active {
		t.Error("session still active after session_end")
	}
}
