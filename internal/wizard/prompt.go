package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mbaylis/curator/internal/labelstore"
	"github.com/mbaylis/curator/internal/source"
)

// Choice is one selectable answer for a choice step.
type Choice struct {
	Label string
	Data  string
}

// Prompt is the next question to put to the operator. Choices is empty
// for free-text steps.
type Prompt struct {
	Text    string
	Choices []Choice
}

// Render produces the prompt for the draft's current step. The second
// return is false once the draft is complete and there is nothing left
// to ask.
func (w *Wizard) Render(d *Draft) (Prompt, bool) {
	switch w.Step(d) {
	case StepName:
		return Prompt{
			Text: "Creating a new session.\nWhat would you like to name the session?",
		}, true

	case StepBatchSize:
		var choices []Choice
		for _, n := range []int{1, 3, 5, 10} {
			choices = append(choices, Choice{Label: strconv.Itoa(n), Data: strconv.Itoa(n)})
		}
		return Prompt{
			Text:    "How many items should it post at once?",
			Choices: choices,
		}, true

	case StepSourceType:
		return Prompt{
			Text: "Select the type of item source to use for this session",
			Choices: []Choice{
				{Label: "Files in directory", Data: string(source.TypeDirectory)},
			},
		}, true

	case StepSourceDirectory:
		dirs, err := source.ListDirectories(w.InputBase)
		if err != nil || len(dirs) == 0 {
			return Prompt{Text: "There are no valid input directories."}, true
		}
		var choices []Choice
		for i, dir := range dirs {
			choices = append(choices, Choice{Label: dir, Data: strconv.Itoa(i)})
		}
		return Prompt{
			Text:    "Please select a directory to read items from:",
			Choices: choices,
		}, true

	case StepRandomOrder:
		return Prompt{
			Text:    "Should items be posted in random order?",
			Choices: yesNoChoices(),
		}, true

	case StepOutputType:
		var choices []Choice
		for _, ot := range labelstore.AllowedTypes(*d.SourceType) {
			choices = append(choices, Choice{Label: outputLabel(ot), Data: string(ot)})
		}
		return Prompt{
			Text:    "Select where labels should be recorded",
			Choices: choices,
		}, true

	case StepOutputFile:
		return Prompt{
			Text: "Which JSON file should labels be written to?",
		}, true

	case StepTagKey:
		return Prompt{
			Text: "Which key should this session's tags be stored under?",
		}, true

	case StepTagOptions:
		text := fmt.Sprintf(
			"Send each tag option as a message. Send %q when the list is complete.", TagListEnd,
		)
		if len(d.TagOptions) > 0 {
			text += "\nOptions so far: " + strings.Join(d.TagOptions, ", ")
		}
		return Prompt{Text: text}, true

	case StepOptionsExpandable:
		return Prompt{
			Text:    "Should new tag options be addable during the session?",
			Choices: yesNoChoices(),
		}, true

	case StepMultiSelect:
		return Prompt{
			Text:    "Can multiple options apply to one item?",
			Choices: yesNoChoices(),
		}, true

	default:
		return Prompt{}, false
	}
}

func yesNoChoices() []Choice {
	return []Choice{
		{Label: "Yes", Data: "yes"},
		{Label: "No", Data: "no"},
	}
}

func outputLabel(t labelstore.Type) string {
	switch t {
	case labelstore.TypeSubdirectory:
		return "Move into tag subdirectories"
	case labelstore.TypeJSON:
		return "Structured JSON file"
	default:
		return string(t)
	}
}
