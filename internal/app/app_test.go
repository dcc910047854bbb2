package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkinbot/internal/checkin"
	"checkinbot/internal/config"
	"checkinbot/internal/roster"
	kit "checkinbot/internal/transport"
	logx "checkinbot/pkg/logx"
)

type sentMessage struct {
	To   kit.ChatTarget
	Text string
	Opt  kit.SendOptions
}

type fakeGateway struct {
	mu      sync.Mutex
	sent    []sentMessage
	answers []string
}

func (g *fakeGateway) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m := sentMessage{To: to, Text: text}
	if opt != nil {
		m.Opt = *opt
	}
	g.sent = append(g.sent, m)
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: len(g.sent)}, nil
}

func (g *fakeGateway) AnswerCallback(_ context.Context, id, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers = append(g.answers, id+":"+text)
	return nil
}

func (g *fakeGateway) Sent() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

// Friday 2024-03-15, noon in New York.
var testNow = time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

func writeConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func baseConfig(t *testing.T) map[string]any {
	return map[string]any{
		"telegram": map[string]any{"token": "123:abc", "chat_id": -1001, "thread_id": 7},
		"webhook":  map[string]any{"listen": "127.0.0.1:0"},
		"checkin":  map[string]any{"timezone": "America/New_York"},
		"roster":   map[string]any{"driver": "memory"},
		"storage":  map[string]any{"driver": "file", "path": filepath.Join(t.TempDir(), "checkin")},
		"logging":  map[string]any{"level": "error"},
	}
}

func newTestApp(t *testing.T, cfg map[string]any) (*App, *fakeGateway, *roster.Memory) {
	t.Helper()
	if _, err := time.LoadLocation("America/New_York"); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	gw := &fakeGateway{}
	mem := roster.NewMemory(
		roster.Row{Name: "Jane Doe", Type: "Friend", LastContactRaw: "2024-02-01", FrequencyRaw: "30"},
		roster.Row{Name: "Bob", Type: "Family", LastContactRaw: "2024-03-14", FrequencyRaw: "7"},
	)
	a, err := New(context.Background(), writeConfig(t, cfg),
		WithGateway(gw), WithRoster(mem), WithClock(checkin.FixedClock(testNow)), WithoutLogging())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, gw, mem
}

func TestRemindSendsDueContacts(t *testing.T) {
	a, gw, mem := newTestApp(t, baseConfig(t))

	res, err := a.Remind(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.ContactsProcessed)
	assert.Equal(t, 1, res.ContactsDue)
	assert.True(t, res.MessageSent)

	sent := gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, kit.ChatTarget{ChatID: -1001, ThreadID: 7}, sent[0].To)
	assert.Contains(t, sent[0].Text, "Jane Doe")
	require.Len(t, sent[0].Opt.Keyboard, 2)
	assert.Equal(t, "contact_Jane_Doe", sent[0].Opt.Keyboard[0][0].Payload)
	assert.Equal(t, checkin.PayloadNone, sent[0].Opt.Keyboard[1][0].Payload)
	assert.Empty(t, mem.Writes())
}

func TestWebhookCallbackUpdatesRoster(t *testing.T) {
	a, gw, mem := newTestApp(t, baseConfig(t))
	require.NotNil(t, a.Webhook())

	body := `{"update_id": 1, "callback_query": {"id": "cb-9", "from": {"id": 42}, "message": {"message_id": 3, "date": 0, "chat": {"id": -1001}}, "data": "contact_Jane_Doe"}}`
	post := func() int {
		rec := httptest.NewRecorder()
		a.Webhook().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, config.DefaultWebhookPath, strings.NewReader(body)))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post())
	writes := mem.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, roster.Handle(2), writes[0].Handle)
	assert.Equal(t, "2024-03-15", writes[0].Date)

	sent := gw.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Jane Doe")

	// Telegram redelivery of the same callback id is ignored.
	assert.Equal(t, http.StatusOK, post())
	assert.Len(t, mem.Writes(), 1)
}

func TestPollModeHasNoWebhook(t *testing.T) {
	cfg := baseConfig(t)
	cfg["telegram"].(map[string]any)["mode"] = "poll"
	a, _, _ := newTestApp(t, cfg)
	assert.Nil(t, a.Webhook())
}

func TestApplyReloadSwapsLiveSections(t *testing.T) {
	a, gw, _ := newTestApp(t, baseConfig(t))
	oldCfg := a.Config()

	updated := *oldCfg
	updated.Telegram.ChatID = -2002
	updated.Checkin.Schedule = "0 10 * * 5"
	a.applyReload(oldCfg, &updated)

	assert.Equal(t, int64(-2002), a.Reminder().Config().Chat.ChatID)
	info := a.sched.Schedules()
	require.Len(t, info, 1)
	assert.Equal(t, "0 10 * * 5", info[0].Spec)

	_, err := a.Remind(context.Background())
	require.NoError(t, err)
	sent := gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(-2002), sent[0].To.ChatID)
}

func TestNextRunsUsesReferenceZone(t *testing.T) {
	a, _, _ := newTestApp(t, baseConfig(t))
	next, err := a.NextRuns(2)
	require.NoError(t, err)
	require.Len(t, next, 2)
	for _, n := range next {
		assert.Equal(t, time.Monday, n.Weekday())
		assert.Equal(t, 9, n.Hour())
		assert.Equal(t, "America/New_York", n.Location().String())
	}
}

func TestStartAndStop(t *testing.T) {
	a, _, _ := newTestApp(t, baseConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	select {
	case <-a.Webhook().Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("webhook did not start")
	}
	resp, err := http.Get("http://" + a.Webhook().Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx))
	<-a.Done()
	assert.NoError(t, a.Err())
}

func TestMapStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		in      *config.StorageConfig
		enabled bool
		driver  string
		wantErr bool
	}{
		{name: "absent"},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "file", in: &config.StorageConfig{Driver: "file", Path: "./data/x"}, enabled: true, driver: "file"},
		{name: "sqlite", in: &config.StorageConfig{Driver: "SQLite", Path: "./x.db"}, enabled: true, driver: "sqlite"},
		{name: "sqlite without path", in: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "bad busy timeout", in: &config.StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "soon"}, wantErr: true},
		{name: "unknown", in: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, enabled, err := mapStorageConfig(&config.Config{Storage: tt.in})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.enabled, enabled)
			assert.Equal(t, tt.driver, sc.Driver)
		})
	}
}

func TestMapReminderConfigDefaults(t *testing.T) {
	rc := mapReminderConfig(&config.Config{Telegram: config.TelegramConfig{ChatID: 5}}, logx.Nop())
	assert.Equal(t, roster.Window{Start: 2, End: 100}, rc.Window)
	assert.Equal(t, 3, rc.BufferDays)
	assert.Equal(t, int64(5), rc.Chat.ChatID)
	assert.NotNil(t, rc.Location)
}
