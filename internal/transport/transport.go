// Package transport defines the chat surface the session engine talks
// through. The engine only ever posts, edits and deletes messages with
// attached keyboards; delivery, rendering and authentication live behind
// this interface.
package transport

// MessageHandle identifies one outbound message within a chat.
type MessageHandle = int64

// ContentKind classifies message payloads.
type ContentKind int

const (
	// KindText is an inline text payload.
	KindText ContentKind = iota
	// KindImage is an image file reference with an optional caption.
	KindImage
	// KindDocument is a generic file reference with an optional caption.
	KindDocument
)

// Content is one message payload. Exactly one of the payload fields is
// meaningful for a given kind: Text for KindText (and as the caption for
// the file kinds), Path for KindImage and KindDocument.
type Content struct {
	Kind ContentKind
	Text string
	Path string
}

// TextContent builds an inline text payload.
func TextContent(text string) Content {
	return Content{Kind: KindText, Text: text}
}

// ImageContent builds an image payload with a caption.
func ImageContent(path, caption string) Content {
	return Content{Kind: KindImage, Path: path, Text: caption}
}

// DocumentContent builds a generic file payload with a caption.
func DocumentContent(path, caption string) Content {
	return Content{Kind: KindDocument, Path: path, Text: caption}
}

// Button is one pressable control. Data is the callback payload returned
// when the operator presses it; the transport constrains its length, which
// is why the engine embeds integer tokens rather than item identifiers.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a grid of buttons attached to a message. Nil means no
// keyboard.
type Keyboard [][]Button

// Row appends one row of buttons and returns the keyboard for chaining.
func (k Keyboard) Row(buttons ...Button) Keyboard {
	return append(k, buttons)
}

// Transport delivers messages to the operator's chat. Implementations
// must be safe for concurrent use; distinct sessions post concurrently.
type Transport interface {
	// Post sends a new message and returns its handle.
	Post(chatID int64, content Content, keyboard Keyboard) (MessageHandle, error)

	// Edit replaces the content and keyboard of an existing message.
	Edit(chatID int64, msg MessageHandle, content Content, keyboard Keyboard) error

	// Delete withdraws an existing message.
	Delete(chatID int64, msg MessageHandle) error
}
