package wizard

import (
	"github.com/mbaylis/curator/internal/errors"
	"github.com/mbaylis/curator/internal/labelstore"
	"github.com/mbaylis/curator/internal/source"
)

// Campaign is the complete configuration a finished draft materializes
// into. It is plain data; the engine builds the live session from it.
type Campaign struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	BatchSize         int             `json:"batch_size"`
	RandomOrder       bool            `json:"random_order"`
	TagOptions        []string        `json:"tag_options"`
	OptionsExpandable bool            `json:"options_expandable"`
	MultiSelect       bool            `json:"multi_select"`
	Source            source.Data     `json:"source"`
	Output            labelstore.Data `json:"output"`
}

// Materialize turns a complete draft into a Campaign with the given id.
// It fails with ErrDraftIncomplete while any step is unanswered; the
// failing step is named in the error. A draft is materialized at most
// once; the caller discards it afterwards.
func (w *Wizard) Materialize(d *Draft, id int) (Campaign, error) {
	if step := w.Step(d); step != StepDone {
		return Campaign{}, errors.NewWizardError("cannot materialize", errors.ErrDraftIncomplete).
			WithStep(step.String())
	}

	campaign := Campaign{
		ID:                id,
		Name:              *d.Name,
		BatchSize:         *d.BatchSize,
		RandomOrder:       *d.RandomOrder,
		TagOptions:        append([]string(nil), d.TagOptions...),
		OptionsExpandable: *d.OptionsExpandable,
		MultiSelect:       *d.MultiSelect,
		Source: source.Data{
			Type:      *d.SourceType,
			Directory: *d.SourceDirectory,
		},
	}

	switch *d.OutputType {
	case labelstore.TypeJSON:
		campaign.Output = labelstore.Data{
			Type:     labelstore.TypeJSON,
			FilePath: *d.OutputFile,
			TagKey:   *d.TagKey,
		}
	default:
		campaign.Output = labelstore.Data{Type: *d.OutputType}
	}
	return campaign, nil
}
