package wizard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mbaylis/curator/internal/errors"
	"github.com/mbaylis/curator/internal/labelstore"
	"github.com/mbaylis/curator/internal/source"
)

// answer is one scripted wizard exchange.
type answer struct {
	text   string // applied when choice is empty
	choice string
}

// newTestWizard returns a wizard whose input base contains the given
// subdirectories.
func newTestWizard(t *testing.T, dirs ...string) *Wizard {
	t.Helper()
	base := filepath.Join(t.TempDir(), "input_data")
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(base, dir), 0755); err != nil {
			t.Fatalf("failed to create input dir %s: %v", dir, err)
		}
	}
	return &Wizard{InputBase: base}
}

// apply runs one answer against the draft, failing the test on error.
func apply(t *testing.T, w *Wizard, d *Draft, a answer) {
	t.Helper()
	var err error
	if a.choice != "" {
		err = w.ApplyChoice(d, a.choice)
	} else {
		err = w.ApplyText(d, a.text)
	}
	if err != nil {
		t.Fatalf("answer %+v at step %s failed: %v", a, w.Step(d), err)
	}
}

// subdirAnswers is the full answer sequence for a subdirectory-output
// session.
func subdirAnswers() []answer {
	return []answer{
		{text: "Test"},
		{choice: "3"},
		{choice: "directory"},
		{choice: "0"},
		{choice: "no"},
		{choice: "subdirectory"},
		{text: "cat"},
		{text: "dog"},
		{text: TagListEnd},
		{choice: "no"},
		{choice: "no"},
	}
}

// jsonAnswers is the full answer sequence for a JSON-output session.
func jsonAnswers() []answer {
	return []answer{
		{text: "Json session"},
		{choice: "1"},
		{choice: "directory"},
		{choice: "0"},
		{choice: "yes"},
		{choice: "json"},
		{text: "output/labels.json"},
		{text: "animal_tags"},
		{text: "cat"},
		{text: TagListEnd},
		{choice: "yes"},
		{choice: "yes"},
	}
}

func TestWizard_StepOrder(t *testing.T) {
	w := newTestWizard(t, "foo")
	d := NewDraft(1)

	wantSteps := []Step{
		StepName, StepBatchSize, StepSourceType, StepSourceDirectory,
		StepRandomOrder, StepOutputType, StepTagOptions, StepTagOptions,
		StepTagOptions, StepOptionsExpandable, StepMultiSelect,
	}
	for i, a := range subdirAnswers() {
		if got := w.Step(d); got != wantSteps[i] {
			t.Fatalf("before answer %d: step = %s, want %s", i, got, wantSteps[i])
		}
		apply(t, w, d, a)
	}
	if got := w.Step(d); got != StepDone {
		t.Fatalf("after all answers: step = %s, want Done", got)
	}
}

func TestWizard_JSONOutputParameterSteps(t *testing.T) {
	w := newTestWizard(t, "foo")
	d := NewDraft(1)

	answers := jsonAnswers()
	for _, a := range answers[:6] {
		apply(t, w, d, a)
	}

	// Choosing the JSON output inserts its two parameter steps.
	if got := w.Step(d); got != StepOutputFile {
		t.Fatalf("after output choice: step = %s, want OutputFile", got)
	}
	apply(t, w, d, answers[6])
	if got := w.Step(d); got != StepTagKey {
		t.Fatalf("after file answer: step = %s, want TagKey", got)
	}
}

func TestWizard_MaterializeFailsForEveryPrefix(t *testing.T) {
	sequences := map[string][]answer{
		"subdirectory": subdirAnswers(),
		"json":         jsonAnswers(),
	}

	for name, answers := range sequences {
		t.Run(name, func(t *testing.T) {
			w := newTestWizard(t, "foo")
			d := NewDraft(1)

			for i, a := range answers {
				if _, err := w.Materialize(d, 1); !errors.Is(err, errors.ErrDraftIncomplete) {
					t.Fatalf("materialize after %d answers = %v, want ErrDraftIncomplete", i, err)
				}
				apply(t, w, d, a)
			}

			if _, err := w.Materialize(d, 1); err != nil {
				t.Fatalf("materialize of complete draft failed: %v", err)
			}
		})
	}
}

func TestWizard_MaterializeScenario(t *testing.T) {
	w := newTestWizard(t, "foo")
	d := NewDraft(1)
	for _, a := range subdirAnswers() {
		apply(t, w, d, a)
	}

	campaign, err := w.Materialize(d, 4)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	if campaign.ID != 4 || campaign.Name != "Test" {
		t.Errorf("campaign = id %d name %q, want 4/Test", campaign.ID, campaign.Name)
	}
	if campaign.BatchSize != 3 {
		t.Errorf("BatchSize = %d, want 3", campaign.BatchSize)
	}
	if campaign.RandomOrder {
		t.Error("RandomOrder = true, want false")
	}
	if campaign.Source.Type != source.TypeDirectory {
		t.Errorf("Source.Type = %s, want directory", campaign.Source.Type)
	}
	if campaign.Output.Type != labelstore.TypeSubdirectory {
		t.Errorf("Output.Type = %s, want subdirectory", campaign.Output.Type)
	}
	// Subdirectory output writes into the source's own directory.
	wantDir := filepath.Join(w.InputBase, "foo")
	if campaign.Source.Directory != wantDir {
		t.Errorf("Source.Directory = %q, want %q", campaign.Source.Directory, wantDir)
	}
	if len(campaign.TagOptions) != 2 || campaign.TagOptions[0] != "cat" || campaign.TagOptions[1] != "dog" {
		t.Errorf("TagOptions = %v, want [cat dog]", campaign.TagOptions)
	}
}

func TestWizard_InputModality(t *testing.T) {
	w := newTestWizard(t, "foo")
	d := NewDraft(1)

	// Name is a text step.
	if !w.WaitingForText(d) || w.WaitingForChoice(d) {
		t.Fatal("StepName should wait for text")
	}
	if err := w.ApplyChoice(d, "whatever"); !errors.Is(err, errors.ErrWrongInputKind) {
		t.Errorf("choice on text step = %v, want ErrWrongInputKind", err)
	}
	if d.Name != nil {
		t.Error("failed choice must not touch draft fields")
	}

	apply(t, w, d, answer{text: "Test"})

	// BatchSize is a choice step.
	if w.WaitingForText(d) || !w.WaitingForChoice(d) {
		t.Fatal("StepBatchSize should wait for a choice")
	}
	if err := w.ApplyText(d, "5"); !errors.Is(err, errors.ErrWrongInputKind) {
		t.Errorf("text on choice step = %v, want ErrWrongInputKind", err)
	}
	if d.BatchSize != nil {
		t.Error("failed text must not touch draft fields")
	}
}

func TestWizard_Validation(t *testing.T) {
	w := newTestWizard(t, "foo")

	tests := []struct {
		name   string
		setup  []answer
		text   string
		choice string
	}{
		{"empty name", nil, " ", ""},
		{"zero batch", []answer{{text: "Test"}}, "", "0"},
		{"negative batch", []answer{{text: "Test"}}, "", "-2"},
		{"non-numeric batch", []answer{{text: "Test"}}, "", "many"},
		{"unknown source type", []answer{{text: "Test"}, {choice: "3"}}, "", "carrier-pigeon"},
		{
			"directory out of range",
			[]answer{{text: "Test"}, {choice: "3"}, {choice: "directory"}},
			"", "7",
		},
		{
			"tag list finished empty",
			[]answer{
				{text: "Test"}, {choice: "3"}, {choice: "directory"}, {choice: "0"},
				{choice: "no"}, {choice: "subdirectory"},
			},
			TagListEnd, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDraft(1)
			for _, a := range tt.setup {
				apply(t, w, d, a)
			}

			var err error
			if tt.choice != "" {
				err = w.ApplyChoice(d, tt.choice)
			} else {
				err = w.ApplyText(d, tt.text)
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestWizard_DuplicateTagOptionIgnored(t *testing.T) {
	w := newTestWizard(t, "foo")
	d := NewDraft(1)
	for _, a := range subdirAnswers()[:6] {
		apply(t, w, d, a)
	}

	apply(t, w, d, answer{text: "cat"})
	apply(t, w, d, answer{text: "cat"})
	if len(d.TagOptions) != 1 {
		t.Errorf("TagOptions = %v, want single cat", d.TagOptions)
	}
}

func TestWizard_OutputTypeRespectsSource(t *testing.T) {
	w := newTestWizard(t, "foo")
	d := NewDraft(1)
	for _, a := range subdirAnswers()[:5] {
		apply(t, w, d, a)
	}

	prompt, ok := w.Render(d)
	if !ok {
		t.Fatal("Render returned no prompt for OutputType")
	}
	allowed := labelstore.AllowedTypes(source.TypeDirectory)
	if len(prompt.Choices) != len(allowed) {
		t.Fatalf("output choices = %d, want %d", len(prompt.Choices), len(allowed))
	}
	for i, ot := range allowed {
		if prompt.Choices[i].Data != string(ot) {
			t.Errorf("choice %d = %q, want %q", i, prompt.Choices[i].Data, ot)
		}
	}
}

func TestWizard_RenderDirectoryStep(t *testing.T) {
	w := newTestWizard(t) // no input directories at all
	d := NewDraft(1)
	apply(t, w, d, answer{text: "Test"})
	apply(t, w, d, answer{choice: "1"})
	apply(t, w, d, answer{choice: "directory"})

	prompt, ok := w.Render(d)
	if !ok {
		t.Fatal("Render returned no prompt")
	}
	if prompt.Text != "There are no valid input directories." {
		t.Errorf("empty-base prompt = %q", prompt.Text)
	}
	if len(prompt.Choices) != 0 {
		t.Errorf("empty-base prompt offered choices: %v", prompt.Choices)
	}

	// Directories created after the wizard started are picked up, because
	// the listing is re-derived per render.
	if err := os.MkdirAll(filepath.Join(w.InputBase, "late"), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	prompt, _ = w.Render(d)
	if len(prompt.Choices) != 1 {
		t.Fatalf("prompt after directory creation has %d choices, want 1", len(prompt.Choices))
	}
	if prompt.Choices[0].Data != strconv.Itoa(0) {
		t.Errorf("directory choice data = %q, want index 0", prompt.Choices[0].Data)
	}
}

func TestDraft_RoundTrip(t *testing.T) {
	w := newTestWizard(t, "foo")

	// Serialize at every stage of completion and verify the derived step
	// survives the trip.
	d := NewDraft(9)
	for i, a := range jsonAnswers() {
		data, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("marshal at answer %d failed: %v", i, err)
		}
		var restored Draft
		if err := json.Unmarshal(data, &restored); err != nil {
			t.Fatalf("unmarshal at answer %d failed: %v", i, err)
		}
		if got, want := w.Step(&restored), w.Step(d); got != want {
			t.Fatalf("restored step at answer %d = %s, want %s", i, got, want)
		}
		if restored.ChatID != 9 {
			t.Fatalf("restored chat id = %d, want 9", restored.ChatID)
		}
		apply(t, w, d, a)
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal of complete draft failed: %v", err)
	}
	var restored Draft
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal of complete draft failed: %v", err)
	}

	original, err := w.Materialize(d, 2)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	fromRestored, err := w.Materialize(&restored, 2)
	if err != nil {
		t.Fatalf("Materialize of restored draft failed: %v", err)
	}
	if original.Name != fromRestored.Name ||
		original.Output != fromRestored.Output ||
		original.Source != fromRestored.Source {
		t.Errorf("restored campaign differs: %+v vs %+v", original, fromRestored)
	}
}
