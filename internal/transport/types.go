package transport

import "context"

// Callback is an inbound button click, normalized from whatever wire event
// the gateway delivers. The zero value is an empty event.
type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

// Empty reports whether the event carries no usable data at all.
func (c Callback) Empty() bool {
	return c.ID == "" && c.Data == "" && c.ChatID == 0 && c.FromID == 0
}

// ReplyTarget returns the chat a reply to this callback should go to:
// the chat holding the clicked message, or the clicking user as fallback.
func (c Callback) ReplyTarget() ChatTarget {
	if c.ChatID != 0 {
		return ChatTarget{ChatID: c.ChatID, ThreadID: c.ThreadID}
	}
	return ChatTarget{ChatID: c.FromID}
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// Button is an interactive control; pressing it produces a Callback with Data = Payload.
type Button struct {
	Text    string
	Payload string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// Keyboard rows rendered as an inline keyboard under the first message chunk.
	Keyboard [][]Button
}

// Gateway is the outbound side of the messaging platform.
type Gateway interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// AnswerCallback clears the pending state of a pressed button on the client.
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// CallbackFunc receives inbound callbacks. ack must be invoked before any
// business logic; it is the transport-level response for the event.
type CallbackFunc func(ctx context.Context, cb Callback, ack func() error)
