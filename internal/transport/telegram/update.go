package telegram

import (
	"encoding/json"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	kit "checkinbot/internal/transport"
)

// ErrNotCallback is returned by DecodeUpdate for updates that carry no
// callback_query (messages, edits and so on).
var ErrNotCallback = errors.New("telegram: update is not a callback query")

// DecodeUpdate parses a webhook body into a callback event.
func DecodeUpdate(body []byte) (kit.Callback, error) {
	var up tele.Update
	if err := json.Unmarshal(body, &up); err != nil {
		return kit.Callback{}, fmt.Errorf("telegram: decode update: %w", err)
	}
	if up.Callback == nil {
		return kit.Callback{}, ErrNotCallback
	}
	return FromTele(up.Callback), nil
}

// FromTele converts a telebot callback. Missing sender or message leave the
// corresponding ids at zero.
func FromTele(cb *tele.Callback) kit.Callback {
	if cb == nil {
		return kit.Callback{}
	}
	out := kit.Callback{ID: cb.ID, Data: cb.Data}
	if cb.Sender != nil {
		out.FromID = cb.Sender.ID
	}
	if m := cb.Message; m != nil {
		out.MessageID = m.ID
		out.ThreadID = m.ThreadID
		if m.Chat != nil {
			out.ChatID = m.Chat.ID
		}
	}
	return out
}
