// Package wizard drives the multi-step configuration of a new labeling
// session. A Draft accumulates answers one question at a time; the
// current step is always derived from which fields are still unset, so
// draft data and wizard position cannot fall out of sync.
package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mbaylis/curator/internal/errors"
	"github.com/mbaylis/curator/internal/labelstore"
	"github.com/mbaylis/curator/internal/source"
)

// Step identifies the next question a draft is waiting on.
type Step int

// Steps in answer order. A step is skipped automatically when it is
// structurally inapplicable: the subdirectory output has no parameters,
// so StepOutputFile and StepTagKey only appear for the JSON output.
const (
	StepName Step = iota
	StepBatchSize
	StepSourceType
	StepSourceDirectory
	StepRandomOrder
	StepOutputType
	StepOutputFile
	StepTagKey
	StepTagOptions
	StepOptionsExpandable
	StepMultiSelect
	StepDone
)

// String returns the step name for diagnostics.
func (s Step) String() string {
	switch s {
	case StepName:
		return "Name"
	case StepBatchSize:
		return "BatchSize"
	case StepSourceType:
		return "SourceType"
	case StepSourceDirectory:
		return "SourceDirectory"
	case StepRandomOrder:
		return "RandomOrder"
	case StepOutputType:
		return "OutputType"
	case StepOutputFile:
		return "OutputFile"
	case StepTagKey:
		return "TagKey"
	case StepTagOptions:
		return "TagOptions"
	case StepOptionsExpandable:
		return "OptionsExpandable"
	case StepMultiSelect:
		return "MultiSelect"
	case StepDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// TagListEnd is the text the operator sends to finish the tag option list.
const TagListEnd = "done"

// Draft is a partially answered session configuration. Nil means "not
// yet answered"; fields are only ever filled in step order.
type Draft struct {
	ChatID            int64            `json:"chat_id"`
	Name              *string          `json:"name,omitempty"`
	BatchSize         *int             `json:"batch_size,omitempty"`
	SourceType        *source.Type     `json:"source_type,omitempty"`
	SourceDirectory   *string          `json:"source_directory,omitempty"`
	RandomOrder       *bool            `json:"random_order,omitempty"`
	OutputType        *labelstore.Type `json:"output_type,omitempty"`
	OutputFile        *string          `json:"output_file,omitempty"`
	TagKey            *string          `json:"tag_key,omitempty"`
	TagOptions        []string         `json:"tag_options,omitempty"`
	TagsFinished      *bool            `json:"tags_finished,omitempty"`
	OptionsExpandable *bool            `json:"options_expandable,omitempty"`
	MultiSelect       *bool            `json:"multi_select,omitempty"`
}

// NewDraft starts an empty draft for the given chat.
func NewDraft(chatID int64) *Draft {
	return &Draft{ChatID: chatID}
}

// RecordID keys the draft collection. At most one draft exists per chat.
func (d *Draft) RecordID() int { return int(d.ChatID) }

// Wizard renders prompts and applies answers to drafts. InputBase is the
// directory whose subdirectories are offered as item sources; it is
// re-listed on every render rather than cached, because the legal answers
// depend on earlier steps and on the filesystem's current state.
type Wizard struct {
	InputBase string
}

// Step derives the current step purely from which fields are unset.
func (w *Wizard) Step(d *Draft) Step {
	switch {
	case d.Name == nil:
		return StepName
	case d.BatchSize == nil:
		return StepBatchSize
	case d.SourceType == nil:
		return StepSourceType
	case d.SourceDirectory == nil:
		return StepSourceDirectory
	case d.RandomOrder == nil:
		return StepRandomOrder
	case d.OutputType == nil:
		return StepOutputType
	}
	if *d.OutputType == labelstore.TypeJSON {
		if d.OutputFile == nil {
			return StepOutputFile
		}
		if d.TagKey == nil {
			return StepTagKey
		}
	}
	switch {
	case d.TagsFinished == nil:
		return StepTagOptions
	case d.OptionsExpandable == nil:
		return StepOptionsExpandable
	case d.MultiSelect == nil:
		return StepMultiSelect
	}
	return StepDone
}

// WaitingForText reports whether the current step expects free text.
func (w *Wizard) WaitingForText(d *Draft) bool {
	switch w.Step(d) {
	case StepName, StepOutputFile, StepTagKey, StepTagOptions:
		return true
	default:
		return false
	}
}

// WaitingForChoice reports whether the current step expects a keyboard
// choice.
func (w *Wizard) WaitingForChoice(d *Draft) bool {
	step := w.Step(d)
	return step != StepDone && !w.WaitingForText(d)
}

// ApplyText answers the current step with free text. It sets exactly the
// field the current step governs; applying text to a choice step is a
// contract violation and changes nothing.
func (w *Wizard) ApplyText(d *Draft, text string) error {
	text = strings.TrimSpace(text)

	step := w.Step(d)
	switch step {
	case StepName:
		if text == "" {
			return errors.NewWizardError("session name cannot be empty", errors.ErrInvalidInput).
				WithStep(step.String())
		}
		d.Name = &text
	case StepOutputFile:
		if text == "" {
			return errors.NewWizardError("output file path cannot be empty", errors.ErrInvalidInput).
				WithStep(step.String())
		}
		d.OutputFile = &text
	case StepTagKey:
		if text == "" || text == labelstore.CompletedKey {
			return errors.NewWizardError("tag key is empty or reserved", errors.ErrInvalidInput).
				WithStep(step.String())
		}
		d.TagKey = &text
	case StepTagOptions:
		if text == TagListEnd {
			if len(d.TagOptions) == 0 {
				return errors.NewWizardError("at least one tag option is required", errors.ErrInvalidInput).
					WithStep(step.String())
			}
			finished := true
			d.TagsFinished = &finished
			return nil
		}
		if text == "" {
			return errors.NewWizardError("tag option cannot be empty", errors.ErrInvalidInput).
				WithStep(step.String())
		}
		for _, existing := range d.TagOptions {
			if existing == text {
				return nil
			}
		}
		d.TagOptions = append(d.TagOptions, text)
	default:
		return errors.NewWizardError("step does not take free text", errors.ErrWrongInputKind).
			WithStep(step.String())
	}
	return nil
}

// ApplyChoice answers the current step with a keyboard choice value.
func (w *Wizard) ApplyChoice(d *Draft, data string) error {
	step := w.Step(d)
	switch step {
	case StepBatchSize:
		n, err := strconv.Atoi(data)
		if err != nil || n < 1 {
			return errors.NewWizardError(fmt.Sprintf("batch size %q is not a positive integer", data), errors.ErrInvalidInput).
				WithStep(step.String())
		}
		d.BatchSize = &n
	case StepSourceType:
		for _, st := range source.Types() {
			if string(st) == data {
				chosen := st
				d.SourceType = &chosen
				return nil
			}
		}
		return errors.NewWizardError(fmt.Sprintf("unknown source type %q", data), errors.ErrInvalidInput).
			WithStep(step.String())
	case StepSourceDirectory:
		dirs, err := source.ListDirectories(w.InputBase)
		if err != nil {
			return err
		}
		i, err := strconv.Atoi(data)
		if err != nil || i < 0 || i >= len(dirs) {
			return errors.NewWizardError(fmt.Sprintf("directory choice %q is out of range", data), errors.ErrInvalidInput).
				WithStep(step.String())
		}
		d.SourceDirectory = &dirs[i]
	case StepRandomOrder:
		value, err := parseYesNo(data)
		if err != nil {
			return errors.NewWizardError(err.Error(), errors.ErrInvalidInput).WithStep(step.String())
		}
		d.RandomOrder = &value
	case StepOutputType:
		for _, ot := range labelstore.AllowedTypes(*d.SourceType) {
			if string(ot) == data {
				chosen := ot
				d.OutputType = &chosen
				return nil
			}
		}
		return errors.NewWizardError(fmt.Sprintf("output type %q is not allowed for this source", data), errors.ErrInvalidInput).
			WithStep(step.String())
	case StepOptionsExpandable:
		value, err := parseYesNo(data)
		if err != nil {
			return errors.NewWizardError(err.Error(), errors.ErrInvalidInput).WithStep(step.String())
		}
		d.OptionsExpandable = &value
	case StepMultiSelect:
		value, err := parseYesNo(data)
		if err != nil {
			return errors.NewWizardError(err.Error(), errors.ErrInvalidInput).WithStep(step.String())
		}
		d.MultiSelect = &value
	default:
		return errors.NewWizardError("step does not take a choice", errors.ErrWrongInputKind).
			WithStep(step.String())
	}
	return nil
}

func parseYesNo(data string) (bool, error) {
	switch data {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("choice %q is not yes or no", data)
	}
}
