// Package ident maintains the identity index for an active labeling
// session: the translation layer between stable item identities and the
// small integer tokens embedded in interaction callbacks.
//
// Interaction payloads are length-constrained by the transport, so raw
// item identifiers cannot be embedded in them. Instead each item is
// assigned an integer token the first time it is seen. Token numbering is
// append-only: outstanding messages in the chat already encode old token
// numbers, so a token is never reused within a session's lifetime, even
// after its item has been completed and its message released.
package ident

import (
	"fmt"

	"github.com/mbaylis/curator/internal/errors"
)

// Index maps between item identities, interaction tokens, outbound
// message handles, and per-message pagination cursors.
//
// Index is not safe for concurrent use; the engine serializes access
// per session.
type Index struct {
	tokenToItem map[int]string
	itemToToken map[string]int
	tokenToMsg  map[int]int64
	msgToPage   map[int64]int
	nextToken   int
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		tokenToItem: make(map[int]string),
		itemToToken: make(map[string]int),
		tokenToMsg:  make(map[int]int64),
		msgToPage:   make(map[int64]int),
	}
}

// AssignToken returns the token for itemID, allocating the next unused
// integer if the item has not been seen before. It never fails.
func (x *Index) AssignToken(itemID string) int {
	if token, ok := x.itemToToken[itemID]; ok {
		return token
	}
	token := x.nextToken
	x.nextToken++
	x.tokenToItem[token] = itemID
	x.itemToToken[itemID] = token
	return token
}

// BindMessage records that token currently has an open outbound message
// and initializes its page cursor to 0. Binding an already-bound token is
// a programmer error and returns errors.ErrAlreadyExists.
func (x *Index) BindMessage(token int, msg int64) error {
	if _, ok := x.tokenToMsg[token]; ok {
		return fmt.Errorf("token %d: %w", token, errors.ErrAlreadyExists)
	}
	x.tokenToMsg[token] = msg
	x.msgToPage[msg] = 0
	return nil
}

// Release removes the message binding and page cursor for token. The
// item↔token mapping itself is retained so a later re-post of the same
// item reuses its token. Releasing an unbound token is a no-op.
func (x *Index) Release(token int) {
	msg, ok := x.tokenToMsg[token]
	if !ok {
		return
	}
	delete(x.tokenToMsg, token)
	delete(x.msgToPage, msg)
}

// Page returns the current page cursor for token's open message, or 0 if
// the token has no open message.
func (x *Index) Page(token int) int {
	msg, ok := x.tokenToMsg[token]
	if !ok {
		return 0
	}
	return x.msgToPage[msg]
}

// NextPage advances the page cursor for token's open message. The caller
// is responsible for checking the page count before offering "next".
func (x *Index) NextPage(token int) error {
	msg, ok := x.tokenToMsg[token]
	if !ok {
		return fmt.Errorf("token %d: %w", token, errors.ErrUnknownToken)
	}
	x.msgToPage[msg]++
	return nil
}

// PrevPage moves the page cursor for token's open message back one page,
// clamped at 0.
func (x *Index) PrevPage(token int) error {
	msg, ok := x.tokenToMsg[token]
	if !ok {
		return fmt.Errorf("token %d: %w", token, errors.ErrUnknownToken)
	}
	if x.msgToPage[msg] > 0 {
		x.msgToPage[msg]--
	}
	return nil
}

// ItemIDForToken returns the item identity behind token.
// A miss indicates a stale or replayed interaction.
func (x *Index) ItemIDForToken(token int) (string, error) {
	itemID, ok := x.tokenToItem[token]
	if !ok {
		return "", fmt.Errorf("token %d: %w", token, errors.ErrUnknownToken)
	}
	return itemID, nil
}

// TokenForItemID returns the token assigned to itemID.
func (x *Index) TokenForItemID(itemID string) (int, error) {
	token, ok := x.itemToToken[itemID]
	if !ok {
		return 0, fmt.Errorf("item %q: %w", itemID, errors.ErrUnknownToken)
	}
	return token, nil
}

// TokenForMessage returns the token whose open message is msg.
func (x *Index) TokenForMessage(msg int64) (int, error) {
	for token, m := range x.tokenToMsg {
		if m == msg {
			return token, nil
		}
	}
	return 0, fmt.Errorf("message %d: %w", msg, errors.ErrUnknownToken)
}

// MessageForToken returns the open message handle for token.
func (x *Index) MessageForToken(token int) (int64, error) {
	msg, ok := x.tokenToMsg[token]
	if !ok {
		return 0, fmt.Errorf("token %d: %w", token, errors.ErrUnknownToken)
	}
	return msg, nil
}

// Messages returns the handles of all currently open messages.
func (x *Index) Messages() []int64 {
	msgs := make([]int64, 0, len(x.tokenToMsg))
	for _, msg := range x.tokenToMsg {
		msgs = append(msgs, msg)
	}
	return msgs
}

// InFlight returns the number of items with an open message.
func (x *Index) InFlight() int {
	return len(x.tokenToMsg)
}

// ClearMessages drops every message binding and page cursor. Token
// assignments are retained.
func (x *Index) ClearMessages() {
	x.tokenToMsg = make(map[int]int64)
	x.msgToPage = make(map[int64]int)
}

// Data is the serialized form of an Index.
type Data struct {
	TokenToItem map[int]string `json:"token_to_item"`
	TokenToMsg  map[int]int64  `json:"token_to_msg"`
	MsgToPage   map[int64]int  `json:"msg_to_page"`
}

// ToData returns a serializable snapshot of the index.
func (x *Index) ToData() Data {
	tokenToItem := make(map[int]string, len(x.tokenToItem))
	for token, item := range x.tokenToItem {
		tokenToItem[token] = item
	}
	tokenToMsg := make(map[int]int64, len(x.tokenToMsg))
	for token, msg := range x.tokenToMsg {
		tokenToMsg[token] = msg
	}
	msgToPage := make(map[int64]int, len(x.msgToPage))
	for msg, page := range x.msgToPage {
		msgToPage[msg] = page
	}
	return Data{
		TokenToItem: tokenToItem,
		TokenToMsg:  tokenToMsg,
		MsgToPage:   msgToPage,
	}
}

// FromData reconstructs an Index from a snapshot. The next token counter
// is recovered as one past the highest assigned token, preserving the
// append-only numbering across restarts.
func FromData(data Data) *Index {
	x := New()
	for token, item := range data.TokenToItem {
		x.tokenToItem[token] = item
		x.itemToToken[item] = token
		if token >= x.nextToken {
			x.nextToken = token + 1
		}
	}
	for token, msg := range data.TokenToMsg {
		x.tokenToMsg[token] = msg
	}
	for msg, page := range data.MsgToPage {
		x.msgToPage[msg] = page
	}
	return x
}
