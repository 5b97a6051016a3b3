package transport

import (
	"fmt"
	"sync"

	"github.com/mbaylis/curator/internal/errors"
)

// Message is one recorded outbound message.
type Message struct {
	Handle   MessageHandle
	ChatID   int64
	Content  Content
	Keyboard Keyboard
	Deleted  bool
	Edits    int
}

// Recorder is an in-memory Transport. It backs the terminal front end and
// the engine tests: every post, edit and delete is recorded and can be
// inspected afterwards.
type Recorder struct {
	mu       sync.Mutex
	next     MessageHandle
	messages map[MessageHandle]*Message
	order    []MessageHandle
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		next:     1,
		messages: make(map[MessageHandle]*Message),
	}
}

// Post records a new message and returns its handle.
func (r *Recorder) Post(chatID int64, content Content, keyboard Keyboard) (MessageHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle := r.next
	r.next++
	r.messages[handle] = &Message{
		Handle:   handle,
		ChatID:   chatID,
		Content:  content,
		Keyboard: keyboard,
	}
	r.order = append(r.order, handle)
	return handle, nil
}

// Edit replaces the content and keyboard of an existing message.
func (r *Recorder) Edit(chatID int64, msg MessageHandle, content Content, keyboard Keyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[msg]
	if !ok || m.Deleted {
		return fmt.Errorf("message %d: %w", msg, errors.ErrNotFound)
	}
	m.Content = content
	m.Keyboard = keyboard
	m.Edits++
	return nil
}

// Delete withdraws an existing message.
func (r *Recorder) Delete(chatID int64, msg MessageHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[msg]
	if !ok || m.Deleted {
		return fmt.Errorf("message %d: %w", msg, errors.ErrNotFound)
	}
	m.Deleted = true
	return nil
}

// Message returns a copy of the recorded message for handle.
func (r *Recorder) Message(handle MessageHandle) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[handle]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Live returns copies of every non-deleted message in post order.
func (r *Recorder) Live() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Message
	for _, handle := range r.order {
		if m := r.messages[handle]; !m.Deleted {
			out = append(out, *m)
		}
	}
	return out
}

// Last returns a copy of the most recent non-deleted message.
func (r *Recorder) Last() (Message, bool) {
	live := r.Live()
	if len(live) == 0 {
		return Message{}, false
	}
	return live[len(live)-1], true
}
