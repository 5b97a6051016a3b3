package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mbaylis/curator/internal/collection"
	"github.com/mbaylis/curator/internal/errors"
	"github.com/mbaylis/curator/internal/logging"
	"github.com/mbaylis/curator/internal/source"
	"github.com/mbaylis/curator/internal/transport"
	"github.com/mbaylis/curator/internal/wizard"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// OperatorID is the only identity allowed to interact. Everyone else
	// gets a generic refusal.
	OperatorID int64

	// InputBase is the directory whose subdirectories are offered as item
	// sources.
	InputBase string

	// Grid is the option-button layout for item keyboards.
	Grid Grid

	// Watch enables the directory watcher: items dropped into an active
	// session's source directory are posted without waiting for the next
	// interaction.
	Watch bool

	Sessions  collection.Store[SessionData]
	Drafts    collection.Store[*wizard.Draft]
	Transport transport.Transport
	Logger    *logging.Logger
}

// Manager owns the session collection and the per-chat wizard draft, and
// routes operator events to the right session or draft. It is the single
// component holding mutable cross-session state; individual sessions
// serialize their own interactions.
type Manager struct {
	mu sync.Mutex

	operatorID int64
	wiz        *wizard.Wizard
	grid       Grid
	watch      bool
	tr         transport.Transport
	log        *logging.Logger

	sessions   map[int]*Session
	drafts     map[int64]*wizard.Draft
	watchers   map[int]*source.Watcher
	sessionCol collection.Store[SessionData]
	draftCol   collection.Store[*wizard.Draft]
}

// NewManager builds a manager and restores the persisted sessions and
// drafts. Restored sessions come back inactive; the operator restarts
// them from the menu.
func NewManager(opts ManagerOptions) (*Manager, error) {
	m := &Manager{
		operatorID: opts.OperatorID,
		wiz:        &wizard.Wizard{InputBase: opts.InputBase},
		grid:       opts.Grid,
		watch:      opts.Watch,
		tr:         opts.Transport,
		log:        opts.Logger.WithComponent("manager"),
		sessions:   make(map[int]*Session),
		drafts:     make(map[int64]*wizard.Draft),
		watchers:   make(map[int]*source.Watcher),
		sessionCol: opts.Sessions,
		draftCol:   opts.Drafts,
	}

	datas, err := m.sessionCol.List()
	if err != nil {
		return nil, fmt.Errorf("failed to restore sessions: %w", err)
	}
	for _, data := range datas {
		session, err := SessionFromData(data, m.tr, m.grid, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to restore session %d: %w", data.ID, err)
		}
		m.sessions[session.ID()] = session
	}

	drafts, err := m.draftCol.List()
	if err != nil {
		return nil, fmt.Errorf("failed to restore drafts: %w", err)
	}
	for _, draft := range drafts {
		m.drafts[draft.ChatID] = draft
	}

	m.log.Info("manager ready", "sessions", len(m.sessions), "drafts", len(m.drafts))
	return m, nil
}

// Close stops every directory watcher. Sessions themselves stay as
// persisted.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.watchers {
		if err := w.Close(); err != nil {
			m.log.Warn("failed to close watcher", "session", id, "error", err)
		}
		delete(m.watchers, id)
	}
	return nil
}

// Sessions returns a snapshot of every configured session's data, ordered
// by id.
func (m *Manager) Sessions() []SessionData {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	datas := make([]SessionData, 0, len(sessions))
	for _, s := range sessions {
		datas = append(datas, s.ToData())
	}
	sort.Slice(datas, func(i, j int) bool { return datas[i].ID < datas[j].ID })
	return datas
}

// authorized checks the caller identity, posting a generic refusal for
// anyone but the operator.
func (m *Manager) authorized(chatID, from int64) bool {
	if from == m.operatorID {
		return true
	}
	m.log.Warn("rejected interaction from unknown identity", "from", from)
	if _, err := m.tr.Post(chatID, transport.TextContent("Access denied."), nil); err != nil {
		m.log.Warn("failed to post refusal", "error", err)
	}
	return false
}

// HandleText processes one incoming text event. replyTo is non-nil when
// the text was sent as a reply to a specific message.
func (m *Manager) HandleText(chatID int64, replyTo *transport.MessageHandle, text string, from int64) error {
	if !m.authorized(chatID, from) {
		return nil
	}
	text = strings.TrimSpace(text)

	if text == "/menu" {
		m.cancelDraft(chatID)
		return m.showRootMenu(chatID)
	}

	m.mu.Lock()
	draft := m.drafts[chatID]
	m.mu.Unlock()
	if draft != nil && m.wiz.WaitingForText(draft) {
		return m.applyDraftAnswer(chatID, draft, func() error {
			return m.wiz.ApplyText(draft, text)
		})
	}

	if replyTo != nil {
		return m.routeReply(chatID, *replyTo, text)
	}

	// Text while the draft waits on a keyboard choice: keep the operator
	// in the wizard by re-asking the current question.
	if draft != nil {
		return m.promptDraft(chatID, draft)
	}
	return m.showRootMenu(chatID)
}

// HandleChoice processes one keyboard callback event.
func (m *Manager) HandleChoice(chatID int64, msg transport.MessageHandle, data string, from int64) error {
	if !m.authorized(chatID, from) {
		return nil
	}

	verb, rest, _ := strings.Cut(data, ":")
	switch verb {
	case "menu":
		return m.showRootMenu(chatID)
	case "wizard":
		m.mu.Lock()
		draft := m.drafts[chatID]
		m.mu.Unlock()
		if draft == nil {
			return m.report(chatID, errors.NewInteractionError("no draft in progress", errors.ErrNoMatchingSession))
		}
		return m.applyDraftAnswer(chatID, draft, func() error {
			return m.wiz.ApplyChoice(draft, rest)
		})
	case "session_create":
		return m.beginDraft(chatID)
	case "session_start":
		if rest == "" {
			return m.showSessionMenu(chatID, "Which session should be started?", "session_start", func(s *Session) bool {
				return !s.Active()
			})
		}
		return m.withSession(chatID, rest, m.startSession)
	case "session_end":
		if rest == "" {
			return m.showSessionMenu(chatID, "Which session should be ended?", "session_end", func(s *Session) bool {
				return s.Active()
			})
		}
		return m.withSession(chatID, rest, m.stopSession)
	case "session_delete":
		if rest == "" {
			return m.showSessionMenu(chatID, "Which session should be deleted?", "session_delete", func(s *Session) bool {
				return true
			})
		}
		return m.withSession(chatID, rest, m.deleteSession)
	case "label", "page", "done":
		return m.routeAction(chatID, verb, rest)
	default:
		return m.showRootMenu(chatID)
	}
}

// beginDraft starts a fresh wizard draft for the chat, replacing any
// draft already in progress.
func (m *Manager) beginDraft(chatID int64) error {
	draft := wizard.NewDraft(chatID)
	m.mu.Lock()
	m.drafts[chatID] = draft
	m.mu.Unlock()
	if err := m.draftCol.Upsert(draft); err != nil {
		return m.report(chatID, err)
	}
	return m.promptDraft(chatID, draft)
}

// cancelDraft discards the chat's in-progress draft, if any.
func (m *Manager) cancelDraft(chatID int64) {
	m.mu.Lock()
	draft := m.drafts[chatID]
	delete(m.drafts, chatID)
	m.mu.Unlock()
	if draft == nil {
		return
	}
	if err := m.draftCol.Remove(draft.RecordID()); err != nil {
		m.log.Warn("failed to remove draft", "chat", chatID, "error", err)
	}
}

// applyDraftAnswer runs one wizard answer, persists the draft, and either
// asks the next question or materializes the finished session.
func (m *Manager) applyDraftAnswer(chatID int64, draft *wizard.Draft, apply func() error) error {
	if err := apply(); err != nil {
		if reportErr := m.report(chatID, err); reportErr != nil {
			return reportErr
		}
		return m.promptDraft(chatID, draft)
	}
	if err := m.draftCol.Upsert(draft); err != nil {
		return m.report(chatID, err)
	}
	if m.wiz.Step(draft) != wizard.StepDone {
		return m.promptDraft(chatID, draft)
	}
	return m.materializeDraft(chatID, draft)
}

// promptDraft posts the draft's next question.
func (m *Manager) promptDraft(chatID int64, draft *wizard.Draft) error {
	prompt, ok := m.wiz.Render(draft)
	if !ok {
		return nil
	}
	var keyboard transport.Keyboard
	for _, choice := range prompt.Choices {
		keyboard = keyboard.Row(transport.Button{Label: choice.Label, Data: "wizard:" + choice.Data})
	}
	_, err := m.tr.Post(chatID, transport.TextContent(prompt.Text), keyboard)
	return err
}

// materializeDraft turns a completed draft into a session, reusing the
// lowest free id.
func (m *Manager) materializeDraft(chatID int64, draft *wizard.Draft) error {
	m.mu.Lock()
	ids := make([]SessionData, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, SessionData{ID: id})
	}
	id := collection.NextFreeID(ids)
	m.mu.Unlock()

	campaign, err := m.wiz.Materialize(draft, id)
	if err != nil {
		return m.report(chatID, err)
	}
	session, err := NewSession(campaign, chatID, m.tr, m.grid, m.log)
	if err != nil {
		return m.report(chatID, err)
	}

	m.mu.Lock()
	m.sessions[id] = session
	delete(m.drafts, chatID)
	m.mu.Unlock()

	if err := m.draftCol.Remove(draft.RecordID()); err != nil {
		m.log.Warn("failed to remove draft", "chat", chatID, "error", err)
	}
	if err := m.persistSession(session); err != nil {
		return m.report(chatID, err)
	}
	m.log.Info("session created", "session", id, "name", campaign.Name)
	if _, err := m.tr.Post(chatID,
		transport.TextContent(fmt.Sprintf("Session %q created.", campaign.Name)), nil); err != nil {
		return err
	}
	return m.showRootMenu(chatID)
}

// withSession parses a session id and runs fn against that session.
func (m *Manager) withSession(chatID int64, idText string, fn func(chatID int64, s *Session) error) error {
	id, err := strconv.Atoi(idText)
	if err != nil {
		return m.report(chatID, errors.NewInteractionError(
			fmt.Sprintf("bad session id %q", idText), errors.ErrNoMatchingSession))
	}
	m.mu.Lock()
	session := m.sessions[id]
	m.mu.Unlock()
	if session == nil {
		return m.report(chatID, errors.NewInteractionError("session does not exist", errors.ErrNoMatchingSession).
			WithSessionID(id))
	}
	return fn(chatID, session)
}

func (m *Manager) startSession(chatID int64, s *Session) error {
	if err := s.Start(); err != nil {
		return m.report(chatID, err)
	}
	m.startWatcher(s)
	return m.persistSession(s)
}

func (m *Manager) stopSession(chatID int64, s *Session) error {
	m.stopWatcher(s.ID())
	s.Stop()
	if err := m.persistSession(s); err != nil {
		return m.report(chatID, err)
	}
	_, err := m.tr.Post(chatID,
		transport.TextContent(fmt.Sprintf("Session %q ended.", s.Name())), nil)
	return err
}

func (m *Manager) deleteSession(chatID int64, s *Session) error {
	m.stopWatcher(s.ID())
	s.Stop()
	m.mu.Lock()
	delete(m.sessions, s.ID())
	m.mu.Unlock()
	if err := m.sessionCol.Remove(s.ID()); err != nil {
		return m.report(chatID, err)
	}
	m.log.Info("session deleted", "session", s.ID())
	_, err := m.tr.Post(chatID,
		transport.TextContent(fmt.Sprintf("Session %q deleted.", s.Name())), nil)
	return err
}

// routeAction dispatches a decoded item interaction to its session.
// Payload shapes: "label:<session>:<token>:<option>",
// "page:<session>:<token>:prev|next", "done:<session>:<token>".
func (m *Manager) routeAction(chatID int64, verb, rest string) error {
	parts := strings.Split(rest, ":")
	if len(parts) < 2 {
		return m.report(chatID, errors.NewInteractionError(
			fmt.Sprintf("malformed %s payload", verb), errors.ErrNoMatchingSession))
	}

	return m.withSession(chatID, parts[0], func(chatID int64, s *Session) error {
		token, err := strconv.Atoi(parts[1])
		if err != nil {
			return m.report(chatID, errors.NewInteractionError(
				fmt.Sprintf("bad token %q", parts[1]), errors.ErrUnknownToken).WithSessionID(s.ID()))
		}

		var action Action
		switch verb {
		case "done":
			action = Action{Kind: ActionDone}
		case "page":
			if len(parts) != 3 {
				return m.report(chatID, errors.NewInteractionError("malformed page payload", errors.ErrUnknownToken))
			}
			switch parts[2] {
			case "prev":
				action = Action{Kind: ActionPrevPage}
			case "next":
				action = Action{Kind: ActionNextPage}
			default:
				return m.report(chatID, errors.NewInteractionError(
					fmt.Sprintf("bad page direction %q", parts[2]), errors.ErrUnknownToken).WithSessionID(s.ID()))
			}
		case "label":
			if len(parts) != 3 {
				return m.report(chatID, errors.NewInteractionError("malformed label payload", errors.ErrUnknownOption))
			}
			option, err := strconv.Atoi(parts[2])
			if err != nil {
				return m.report(chatID, errors.NewInteractionError(
					fmt.Sprintf("bad option %q", parts[2]), errors.ErrUnknownOption).WithSessionID(s.ID()))
			}
			action = Action{Kind: ActionOption, Option: option}
		}

		if err := s.HandleAction(token, action); err != nil {
			return m.report(chatID, err)
		}
		return m.persistSession(s)
	})
}

// routeReply finds the session whose open message the text replies to and
// hands it the text as a new tag option.
func (m *Manager) routeReply(chatID int64, msg transport.MessageHandle, text string) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		err := s.HandleReply(msg, text)
		if errors.Is(err, errors.ErrUnknownToken) {
			continue
		}
		if err != nil {
			return m.report(chatID, err)
		}
		return m.persistSession(s)
	}
	return m.report(chatID, errors.NewInteractionError(
		"reply does not match an open item", errors.ErrNoMatchingSession))
}

// persistSession writes the session's current state to the collection.
// Every interaction persists; the durable store write is the commit
// point and the collection record follows it.
func (m *Manager) persistSession(s *Session) error {
	if err := m.sessionCol.Upsert(s.ToData()); err != nil {
		return fmt.Errorf("failed to persist session %d: %w", s.ID(), err)
	}
	return nil
}

// startWatcher wires the source directory watcher for an active session.
func (m *Manager) startWatcher(s *Session) {
	if !m.watch {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watchers[s.ID()]; ok {
		return
	}
	data := s.ToData()
	w, err := source.Watch(data.Source.Directory, func() {
		if err := s.Refresh(); err != nil {
			m.log.Warn("refill after directory change failed", "session", s.ID(), "error", err)
			return
		}
		if err := m.persistSession(s); err != nil {
			m.log.Warn("persist after directory change failed", "session", s.ID(), "error", err)
		}
	})
	if err != nil {
		m.log.Warn("failed to watch source directory", "session", s.ID(), "error", err)
		return
	}
	m.watchers[s.ID()] = w
}

func (m *Manager) stopWatcher(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watchers[id]; ok {
		if err := w.Close(); err != nil {
			m.log.Warn("failed to close watcher", "session", id, "error", err)
		}
		delete(m.watchers, id)
	}
}

// showRootMenu posts the top-level menu.
func (m *Manager) showRootMenu(chatID int64) error {
	m.mu.Lock()
	total := len(m.sessions)
	active := 0
	for _, s := range m.sessions {
		if s.Active() {
			active++
		}
	}
	m.mu.Unlock()

	text := fmt.Sprintf("%d sessions configured, %d active.\nWhat would you like to do?", total, active)
	keyboard := transport.Keyboard{}.
		Row(transport.Button{Label: "Create a new session", Data: "session_create"}).
		Row(transport.Button{Label: "Start a session", Data: "session_start"}).
		Row(transport.Button{Label: "End a session", Data: "session_end"}).
		Row(transport.Button{Label: "Delete a session", Data: "session_delete"})
	_, err := m.tr.Post(chatID, transport.TextContent(text), keyboard)
	return err
}

// showSessionMenu posts a menu of the sessions matching the filter, with
// one callback verb per button.
func (m *Manager) showSessionMenu(chatID int64, title, verb string, match func(*Session) bool) error {
	m.mu.Lock()
	var buttons []transport.Button
	ids := make([]int, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s := m.sessions[id]
		if !match(s) {
			continue
		}
		buttons = append(buttons, transport.Button{
			Label: fmt.Sprintf("%s (%d)", s.Name(), id),
			Data:  fmt.Sprintf("%s:%d", verb, id),
		})
	}
	m.mu.Unlock()

	if len(buttons) == 0 {
		_, err := m.tr.Post(chatID, transport.TextContent("There are no matching sessions."), nil)
		return err
	}
	var keyboard transport.Keyboard
	for _, b := range buttons {
		keyboard = keyboard.Row(b)
	}
	keyboard = keyboard.Row(transport.Button{Label: "Back", Data: "menu"})
	_, err := m.tr.Post(chatID, transport.TextContent(title), keyboard)
	return err
}

// report surfaces a handler error to the operator. Stale interactions get
// the standard "no matching item" notice; other user-facing errors are
// shown as-is; anything else is logged in full and shown only as an
// opaque correlation reference.
func (m *Manager) report(chatID int64, err error) error {
	if err == nil {
		return nil
	}
	var text string
	switch {
	case errors.IsStale(err):
		text = "No matching item."
	case errors.IsUserFacing(err):
		text = err.Error()
	default:
		corr := errors.Correlate(err)
		m.log.Error("interaction failed", "ref", corr.Ref, "error", err)
		text = corr.OperatorMessage()
	}
	if _, postErr := m.tr.Post(chatID, transport.TextContent(text), nil); postErr != nil {
		return postErr
	}
	return nil
}
