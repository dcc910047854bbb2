package checkin

import (
	"strings"

	kit "checkinbot/internal/transport"
	"checkinbot/pkg/tgui"
)

// DefaultHeader is HTML and is not escaped again.
const DefaultHeader = "🤝 <b>Weekly Connection Check-in</b>"

const (
	textAllCaughtUp = "🎉 All contacts are up to date!"
	textQuestion    = "Have you spoken to any of these people recently?"
	textNoneButton  = "❌ None Recently"

	textNoneReply  = "👍 No problem! I'll check in again next week."
	textProcessing = "Processing..."
)

func textNotFound(name string) string {
	return `❌ Contact "` + name + `" not found in the roster.`
}

func textUpdated(name string) string {
	return "✅ Updated " + name + "'s last contact to today!"
}

func textError(err error) string {
	return "❌ Error: " + err.Error()
}

// Composed is a rendered reminder message.
type Composed struct {
	Text     string
	Keyboard [][]kit.Button
	// NoButton lists due contacts whose payload could not be used as a button.
	NoButton []string
}

// Compose renders the reminder for the due set. An empty due set yields the
// "all caught up" text with no keyboard.
func Compose(header string, due []Assessment) Composed {
	if strings.TrimSpace(header) == "" {
		header = DefaultHeader
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")

	if len(due) == 0 {
		b.WriteString(textAllCaughtUp)
		return Composed{Text: b.String()}
	}

	b.WriteString(textQuestion)
	b.WriteString("\n\n")

	kb := tgui.NewKeyboard()
	var out Composed
	for _, a := range due {
		b.WriteString("• ")
		b.WriteString(tgui.Esc(a.Name).String())
		b.WriteString(" - ")
		b.WriteString(tgui.Esc(a.Type).String())
		b.WriteString(" (")
		b.WriteString(a.Status())
		b.WriteString(")\n")

		payload := EncodeContact(a.Name)
		if payload == PayloadNone || tgui.CheckCallbackData(payload) != nil {
			out.NoButton = append(out.NoButton, a.Name)
			continue
		}
		kb.Row(tgui.Btn("✅ "+a.Name, payload))
	}
	kb.Row(tgui.Btn(textNoneButton, PayloadNone))

	out.Text = strings.TrimRight(b.String(), "\n")
	out.Keyboard = kb.Rows()
	return out
}
