package checkin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "checkinbot/internal/transport"
)

func due(name, typ string, days, freq int) Assessment {
	return Assessment{
		Contact:          Contact{Name: name, Type: typ, FrequencyDays: freq},
		DaysSinceContact: days,
		OverdueDays:      max(0, days-freq),
	}
}

func TestComposeAllCaughtUp(t *testing.T) {
	msg := Compose("", nil)
	assert.Equal(t, DefaultHeader+"\n\n🎉 All contacts are up to date!", msg.Text)
	assert.Nil(t, msg.Keyboard)
	assert.Empty(t, msg.NoButton)
}

func TestComposeDueList(t *testing.T) {
	msg := Compose("<b>Check-in</b>", []Assessment{
		due("Jane Doe", "Friend", 30, 14),
		due("Tom & Jerry", "Contact", 12, 14),
		due("Sam", "Work", 7, 7),
	})

	want := strings.Join([]string{
		"<b>Check-in</b>",
		"",
		"Have you spoken to any of these people recently?",
		"",
		"• Jane Doe - Friend (16 days overdue)",
		"• Tom &amp; Jerry - Contact (due in 2 days)",
		"• Sam - Work (due today)",
	}, "\n")
	assert.Equal(t, want, msg.Text)

	require.Len(t, msg.Keyboard, 4)
	assert.Equal(t, []kit.Button{{Text: "✅ Jane Doe", Payload: "contact_Jane_Doe"}}, msg.Keyboard[0])
	assert.Equal(t, []kit.Button{{Text: "✅ Tom & Jerry", Payload: "contact_Tom_&_Jerry"}}, msg.Keyboard[1])
	assert.Equal(t, []kit.Button{{Text: "✅ Sam", Payload: "contact_Sam"}}, msg.Keyboard[2])
	assert.Equal(t, []kit.Button{{Text: "❌ None Recently", Payload: PayloadNone}}, msg.Keyboard[3])
}

func TestComposeSkipsUnusablePayloads(t *testing.T) {
	long := strings.Repeat("Very Long Name ", 6)
	msg := Compose("", []Assessment{
		due(long, "Contact", 20, 14),
		due("none", "Contact", 20, 14),
		due("Ok", "Contact", 20, 14),
	})
	assert.Contains(t, msg.Text, "• "+strings.TrimSpace(long)[:10])
	assert.Contains(t, msg.Text, "• none - Contact")
	assert.Equal(t, []string{long, "none"}, msg.NoButton)

	require.Len(t, msg.Keyboard, 2)
	assert.Equal(t, "contact_Ok", msg.Keyboard[0][0].Payload)
	assert.Equal(t, PayloadNone, msg.Keyboard[1][0].Payload)
}
