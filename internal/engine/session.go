// Package engine drives active labeling sessions: it posts batches of
// unlabeled items to the operator's chat, translates interaction events
// back into item identities, commits labels to the label store, and
// detects completion. The Manager on top of it owns the session
// collection, the per-chat wizard draft, and the operator menus.
package engine

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"github.com/mbaylis/curator/internal/errors"
	"github.com/mbaylis/curator/internal/ident"
	"github.com/mbaylis/curator/internal/labelstore"
	"github.com/mbaylis/curator/internal/logging"
	"github.com/mbaylis/curator/internal/source"
	"github.com/mbaylis/curator/internal/transport"
	"github.com/mbaylis/curator/internal/wizard"
)

// ActionKind classifies one interaction against an item message.
type ActionKind int

const (
	// ActionOption selects (or, in multi-select sessions, toggles) a tag
	// option.
	ActionOption ActionKind = iota
	// ActionPrevPage moves the option keyboard back one page.
	ActionPrevPage
	// ActionNextPage advances the option keyboard one page.
	ActionNextPage
	// ActionDone finishes a multi-select item.
	ActionDone
)

// Action is one decoded interaction event. Option is meaningful only for
// ActionOption.
type Action struct {
	Kind   ActionKind
	Option int
}

// SessionData is the serialized form of a Session, stored in the session
// collection. The identity index snapshot keeps token numbering stable
// across restarts.
type SessionData struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	ChatID            int64           `json:"chat_id"`
	Active            bool            `json:"active"`
	BatchSize         int             `json:"batch_size"`
	RandomOrder       bool            `json:"random_order"`
	TagOptions        []string        `json:"tag_options"`
	OptionsExpandable bool            `json:"options_expandable"`
	MultiSelect       bool            `json:"multi_select"`
	Source            source.Data     `json:"source"`
	Output            labelstore.Data `json:"output"`
	Index             ident.Data      `json:"index"`
}

// RecordID keys the session collection.
func (d SessionData) RecordID() int { return d.ID }

// Session is one active or configured labeling run. All exported methods
// serialize through an internal mutex: interactions for one session are
// applied one at a time, while distinct sessions proceed independently.
type Session struct {
	mu sync.Mutex

	id                int
	name              string
	chatID            int64
	active            bool
	batchSize         int
	randomOrder       bool
	optionsExpandable bool
	multiSelect       bool

	idx     *ident.Index
	options *ident.OptionSet
	src     source.Source
	store   labelstore.Store
	tr      transport.Transport
	grid    Grid
	log     *logging.Logger

	// content posted per token, kept so paging edits can re-send it
	// without re-reading moved files
	content map[int]transport.Content
}

// NewSession builds a session from a freshly materialized campaign.
func NewSession(campaign wizard.Campaign, chatID int64, tr transport.Transport, grid Grid, log *logging.Logger) (*Session, error) {
	return build(SessionData{
		ID:                campaign.ID,
		Name:              campaign.Name,
		ChatID:            chatID,
		BatchSize:         campaign.BatchSize,
		RandomOrder:       campaign.RandomOrder,
		TagOptions:        campaign.TagOptions,
		OptionsExpandable: campaign.OptionsExpandable,
		MultiSelect:       campaign.MultiSelect,
		Source:            campaign.Source,
		Output:            campaign.Output,
	}, tr, grid, log)
}

// SessionFromData restores a persisted session. Sessions are restored
// inactive; message state from before the restart is reconciled lazily
// when stale interactions arrive.
func SessionFromData(data SessionData, tr transport.Transport, grid Grid, log *logging.Logger) (*Session, error) {
	data.Active = false
	return build(data, tr, grid, log)
}

func build(data SessionData, tr transport.Transport, grid Grid, log *logging.Logger) (*Session, error) {
	src, err := source.FromData(data.Source)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", data.ID, err)
	}
	store, err := labelstore.FromData(data.Output, data.Source)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", data.ID, err)
	}
	return &Session{
		id:                data.ID,
		name:              data.Name,
		chatID:            data.ChatID,
		active:            data.Active,
		batchSize:         data.BatchSize,
		randomOrder:       data.RandomOrder,
		optionsExpandable: data.OptionsExpandable,
		multiSelect:       data.MultiSelect,
		idx:               ident.FromData(data.Index),
		options:           ident.NewOptionSet(data.TagOptions),
		src:               src,
		store:             store,
		tr:                tr,
		grid:              grid,
		log:               log.WithSession(data.ID),
		content:           make(map[int]transport.Content),
	}, nil
}

// ToData returns a serializable snapshot of the session.
func (s *Session) ToData() SessionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionData{
		ID:                s.id,
		Name:              s.name,
		ChatID:            s.chatID,
		Active:            s.active,
		BatchSize:         s.batchSize,
		RandomOrder:       s.randomOrder,
		TagOptions:        s.options.Texts(),
		OptionsExpandable: s.optionsExpandable,
		MultiSelect:       s.multiSelect,
		Source:            s.src.ToData(),
		Output:            s.store.ToData(),
		Index:             s.idx.ToData(),
	}
}

// ID returns the session's id.
func (s *Session) ID() int { return s.id }

// Name returns the session's display name.
func (s *Session) Name() string { return s.name }

// ChatID returns the chat the session posts into.
func (s *Session) ChatID() int64 { return s.chatID }

// Active reports whether the session is currently running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// InFlight returns the number of items currently awaiting a decision.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.InFlight()
}

// Start activates the session and posts the first batch of unlabeled
// items.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}
	s.active = true
	s.log.Info("session started")
	return s.refill()
}

// Stop deactivates the session and withdraws every open item message.
// Token assignments are kept so a later resume reuses them.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if !s.active && s.idx.InFlight() == 0 {
		return
	}
	for _, msg := range s.idx.Messages() {
		if err := s.tr.Delete(s.chatID, msg); err != nil {
			s.log.Warn("failed to withdraw item message", "message", msg, "error", err)
		}
	}
	s.idx.ClearMessages()
	s.content = make(map[int]transport.Content)
	s.active = false
	s.log.Info("session stopped")
}

// Refresh re-runs batch refill, picking up items that appeared in the
// source after the last fill. It is a no-op while the session is
// inactive.
func (s *Session) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	return s.refill()
}

// refill posts unlabeled items until the in-flight count reaches the
// batch size. When nothing is left to label and nothing is in flight,
// the session stops itself and reports completion.
func (s *Session) refill() error {
	items, err := s.src.ListItems()
	if err != nil {
		return err
	}
	completed, err := s.store.ListCompleted(s.name)
	if err != nil {
		return err
	}

	var candidates []source.Item
	for _, item := range items {
		if completed[item.ID] {
			continue
		}
		if s.inFlight(item.ID) {
			continue
		}
		candidates = append(candidates, item)
	}
	if s.randomOrder {
		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}

	for _, item := range candidates {
		if s.idx.InFlight() >= s.batchSize {
			break
		}
		if err := s.post(item); err != nil {
			return err
		}
	}

	if s.idx.InFlight() == 0 {
		s.active = false
		s.log.Info("session complete")
		if _, err := s.tr.Post(s.chatID,
			transport.TextContent(fmt.Sprintf("Session %q is complete.", s.name)), nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) inFlight(itemID string) bool {
	token, err := s.idx.TokenForItemID(itemID)
	if err != nil {
		return false
	}
	_, err = s.idx.MessageForToken(token)
	return err == nil
}

func (s *Session) post(item source.Item) error {
	token := s.idx.AssignToken(item.ID)
	content := contentFor(item)
	keyboard := itemKeyboard(s.grid, s.id, token, 0, s.options.Texts(), s.multiSelect)

	msg, err := s.tr.Post(s.chatID, content, keyboard)
	if err != nil {
		return fmt.Errorf("failed to post item %q: %w", item.ID, err)
	}
	if err := s.idx.BindMessage(token, msg); err != nil {
		return err
	}
	s.content[token] = content
	s.log.Debug("item posted", "item", item.ID, "token", token)
	return nil
}

// contentFor renders an item as message content. Text items post their
// file contents inline; image and document items post the file itself
// with the item id as caption.
func contentFor(item source.Item) transport.Content {
	switch item.Kind {
	case source.KindImage:
		return transport.ImageContent(item.Path, item.ID)
	case source.KindText:
		data, err := os.ReadFile(item.Path)
		if err != nil || len(data) == 0 {
			return transport.TextContent(item.ID)
		}
		return transport.TextContent(string(data))
	default:
		return transport.DocumentContent(item.Path, item.ID)
	}
}

// contentForToken returns the content to re-send when editing an open
// message. The per-token cache covers the normal case; after a restart
// the content is rebuilt from the source directory.
func (s *Session) contentForToken(token int, itemID string) transport.Content {
	if content, ok := s.content[token]; ok {
		return content
	}
	path := filepath.Join(s.src.Directory(), itemID)
	if _, err := os.Stat(path); err != nil {
		return transport.TextContent(itemID)
	}
	return contentFor(source.FromFile(path))
}

// HandleAction applies one interaction event. A stale token or option id
// is reported to the caller and mutates nothing; a label-store failure
// aborts the interaction and leaves the identity index as it was.
//
// Interactions against a stopped session, or against a token whose
// message has already been withdrawn, are stale: tokens outlive their
// messages, so a replayed callback can still resolve to an item long
// after Stop cleared its binding.
func (s *Session) HandleAction(token int, action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return errors.NewInteractionError("interaction against a stopped session", errors.ErrUnknownToken).
			WithSessionID(s.id).WithToken(token)
	}
	itemID, err := s.idx.ItemIDForToken(token)
	if err != nil {
		return errors.NewInteractionError("interaction references an unknown item", errors.ErrUnknownToken).
			WithSessionID(s.id).WithToken(token)
	}
	if _, err := s.idx.MessageForToken(token); err != nil {
		return errors.NewInteractionError("interaction references a withdrawn message", errors.ErrUnknownToken).
			WithSessionID(s.id).WithToken(token)
	}

	switch action.Kind {
	case ActionPrevPage:
		if err := s.idx.PrevPage(token); err != nil {
			return err
		}
		return s.rerender(token, itemID)
	case ActionNextPage:
		if err := s.idx.NextPage(token); err != nil {
			return err
		}
		return s.rerender(token, itemID)
	case ActionDone:
		if !s.multiSelect {
			return errors.NewInteractionError("done is only available in multi-select sessions", errors.ErrInvalidInput).
				WithSessionID(s.id).WithToken(token)
		}
		if err := s.store.MarkComplete(itemID, s.name); err != nil {
			return err
		}
		s.release(token)
		return s.refill()
	case ActionOption:
		text, err := s.options.Text(action.Option)
		if err != nil {
			return errors.NewInteractionError("interaction references an unknown option", errors.ErrUnknownOption).
				WithSessionID(s.id).WithToken(token)
		}
		return s.applyOption(token, itemID, text)
	default:
		return errors.NewInteractionError(fmt.Sprintf("unknown action %d", action.Kind), errors.ErrInvalidInput).
			WithSessionID(s.id).WithToken(token)
	}
}

// applyOption commits one option choice. Multi-select toggles the tag
// and keeps the message open; single-select sets the tag, completes the
// item, and withdraws the message.
func (s *Session) applyOption(token int, itemID, text string) error {
	if s.multiSelect {
		applied, err := s.store.AppliedTags(itemID)
		if err != nil {
			return err
		}
		present := false
		for _, tag := range applied {
			if tag == text {
				present = true
				break
			}
		}
		if present {
			if err := s.store.RemoveTag(itemID, text); err != nil {
				return err
			}
		} else {
			if err := s.store.ApplyTag(itemID, text); err != nil {
				return err
			}
		}
		s.log.Debug("tag toggled", "item", itemID, "tag", text, "applied", !present)
		return s.rerender(token, itemID)
	}

	if err := s.store.ApplyTag(itemID, text); err != nil {
		return err
	}
	if err := s.store.MarkComplete(itemID, s.name); err != nil {
		return err
	}
	s.log.Debug("item labeled", "item", itemID, "tag", text)
	s.release(token)
	return s.refill()
}

// HandleReply accepts free text sent in reply to one of the session's
// open item messages. When the option list is expandable the text
// becomes a new tag option and is applied to that item immediately.
func (s *Session) HandleReply(msg transport.MessageHandle, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A restored snapshot can carry message bindings from before a crash;
	// those messages are stale until the session is started again.
	if !s.active {
		return errors.NewInteractionError("reply against a stopped session", errors.ErrUnknownToken).
			WithSessionID(s.id)
	}
	token, err := s.idx.TokenForMessage(msg)
	if err != nil {
		return errors.NewInteractionError("reply references an unknown message", errors.ErrUnknownToken).
			WithSessionID(s.id)
	}
	if !s.optionsExpandable {
		return errors.NewInteractionError("this session does not accept new options", errors.ErrInvalidInput).
			WithSessionID(s.id)
	}
	itemID, err := s.idx.ItemIDForToken(token)
	if err != nil {
		return err
	}
	s.options.Add(text)
	return s.applyOption(token, itemID, text)
}

// rerender re-sends an open message's keyboard after a page move or tag
// toggle.
func (s *Session) rerender(token int, itemID string) error {
	msg, err := s.idx.MessageForToken(token)
	if err != nil {
		return err
	}
	keyboard := itemKeyboard(s.grid, s.id, token, s.idx.Page(token), s.options.Texts(), s.multiSelect)
	return s.tr.Edit(s.chatID, msg, s.contentForToken(token, itemID), keyboard)
}

// release withdraws a decided item's message and drops its binding. The
// withdrawal is best-effort; the durable store write has already
// happened and stale messages reconcile lazily.
func (s *Session) release(token int) {
	if msg, err := s.idx.MessageForToken(token); err == nil {
		if err := s.tr.Delete(s.chatID, msg); err != nil {
			s.log.Warn("failed to withdraw item message", "token", token, "error", err)
		}
	}
	s.idx.Release(token)
	delete(s.content, token)
}
