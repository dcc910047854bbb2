package checkin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkinbot/internal/roster"
	kit "checkinbot/internal/transport"
	"checkinbot/pkg/tgui"
)

var testChat = kit.ChatTarget{ChatID: -1001, ThreadID: 7}

// noon keeps tests away from midnight in the reference zone.
var testNow = testToday.Add(12 * time.Hour)

func newTestReminder(store ContactStore, gw kit.Gateway) *Reminder {
	return NewReminder(ReminderConfig{
		Chat:       testChat,
		BufferDays: DefaultBufferDays,
		Location:   time.UTC,
	}, Deps{Store: store, Gateway: gw, Clock: FixedClock(testNow)})
}

func TestReminderRun(t *testing.T) {
	store := roster.NewMemory(
		roster.Row{Name: "Jane Doe", Type: "Friend", LastContactRaw: daysAgo(30), FrequencyRaw: "14"},
		roster.Row{Name: "Bob", LastContactRaw: daysAgo(3), FrequencyRaw: "weekly"},
		roster.Row{Name: "Amy", LastContactRaw: daysAgo(2), FrequencyRaw: "30"},
	)
	gw := &fakeGateway{}

	res, err := newTestReminder(store, gw).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.ContactsProcessed)
	assert.Equal(t, 1, res.ContactsDue)
	assert.True(t, res.MessageSent)
	require.Len(t, res.Due, 1)
	assert.Equal(t, "Jane Doe", res.Due[0].Name)
	assert.Equal(t, 16, res.Due[0].OverdueDays)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Bob", res.Skipped[0].Row.Name)

	require.Len(t, gw.sent, 1)
	m := gw.sent[0]
	assert.Equal(t, testChat, m.To)
	assert.Equal(t, tgui.ParseModeHTML, m.Opt.ParseMode)
	assert.Contains(t, m.Text, "• Jane Doe - Friend (16 days overdue)")
	assert.NotContains(t, m.Text, "Bob")
	require.Len(t, m.Opt.Keyboard, 2)
	assert.Equal(t, "contact_Jane_Doe", m.Opt.Keyboard[0][0].Payload)
	assert.Equal(t, PayloadNone, m.Opt.Keyboard[1][0].Payload)

	assert.Empty(t, store.Writes(), "reminder never writes the roster")
}

func TestReminderAllCaughtUp(t *testing.T) {
	store := roster.NewMemory(roster.Row{Name: "Amy", LastContactRaw: daysAgo(1), FrequencyRaw: "30"})
	gw := &fakeGateway{}

	res, err := newTestReminder(store, gw).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.ContactsDue)
	assert.True(t, res.MessageSent)
	require.Len(t, gw.sent, 1)
	assert.Contains(t, gw.sent[0].Text, "🎉 All contacts are up to date!")
	assert.Nil(t, gw.sent[0].Opt.Keyboard)
}

func TestReminderErrors(t *testing.T) {
	t.Run("store read", func(t *testing.T) {
		store := roster.NewMemory()
		store.FailReads = errors.New("quota exceeded")
		gw := &fakeGateway{}
		_, err := newTestReminder(store, gw).Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, KindStoreRead, KindOf(err))
		assert.Empty(t, gw.sent)
	})
	t.Run("send", func(t *testing.T) {
		store := roster.NewMemory(roster.Row{Name: "Jane Doe", LastContactRaw: daysAgo(30), FrequencyRaw: "14"})
		gw := &fakeGateway{sendErr: errors.New("bot blocked")}
		res, err := newTestReminder(store, gw).Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, KindSend, KindOf(err))
		assert.False(t, res.MessageSent)
		assert.Equal(t, 1, res.ContactsDue)
	})
	t.Run("no chat", func(t *testing.T) {
		r := NewReminder(ReminderConfig{}, Deps{Store: roster.NewMemory(), Gateway: &fakeGateway{}, Clock: FixedClock(testNow)})
		_, err := r.Run(context.Background())
		assert.Equal(t, KindSend, KindOf(err))
	})
}

func TestReminderRespectsWindow(t *testing.T) {
	store := roster.NewMemory(
		roster.Row{Handle: 2, Name: "Inside", LastContactRaw: daysAgo(30), FrequencyRaw: "14"},
		roster.Row{Handle: 101, Name: "Outside", LastContactRaw: daysAgo(30), FrequencyRaw: "14"},
	)
	gw := &fakeGateway{}
	res, err := newTestReminder(store, gw).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ContactsProcessed)
	assert.NotContains(t, gw.sent[0].Text, "Outside")
}

func TestReminderDefaults(t *testing.T) {
	r := NewReminder(ReminderConfig{BufferDays: -1}, Deps{})
	cfg := r.Config()
	assert.Equal(t, DefaultWindow, cfg.Window)
	assert.Equal(t, DefaultBufferDays, cfg.BufferDays)
	assert.NotNil(t, cfg.Location)
}
