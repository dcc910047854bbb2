package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "checkinbot/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in      string
		kind    SpecKind
		cron    string
		every   time.Duration
		wantErr bool
	}{
		{in: "0 9 * * 1", kind: SpecCron, cron: "0 9 * * 1"},
		{in: "@weekly", kind: SpecCron, cron: "@weekly"},
		{in: "cron:@daily", kind: SpecCron, cron: "@daily"},
		{in: "168h", kind: SpecInterval, every: 168 * time.Hour},
		{in: "02:30", kind: SpecInterval, every: 2*time.Hour + 30*time.Minute},
		{in: "every:90m", kind: SpecInterval, every: 90 * time.Minute},
		{in: "", wantErr: true},
		{in: "0s", wantErr: true},
		{in: "00:00", wantErr: true},
		{in: "01:75", wantErr: true},
		{in: "weekly", wantErr: true},
	}
	for _, tt := range tests {
		ps, err := ParseSchedule(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %+v", tt.in, ps)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.in, err)
		}
		if ps.Kind != tt.kind || ps.Cron != tt.cron || ps.Every != tt.every {
			t.Fatalf("%q: got %+v", tt.in, ps)
		}
	}
}

func TestNextRunsWeeklyInZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := New(Config{}, logx.Nop())
	// Wednesday 2024-03-13 12:00 New York.
	from := time.Date(2024, 3, 13, 12, 0, 0, 0, loc)
	next, err := s.NextRuns("0 9 * * 1", from, loc, 2)
	if err != nil {
		t.Fatalf("next runs: %v", err)
	}
	want := []time.Time{
		time.Date(2024, 3, 18, 9, 0, 0, 0, loc),
		time.Date(2024, 3, 25, 9, 0, 0, 0, loc),
	}
	if len(next) != 2 || !next[0].Equal(want[0]) || !next[1].Equal(want[1]) {
		t.Fatalf("got %v want %v", next, want)
	}
}

func TestAddScheduleValidation(t *testing.T) {
	s := New(Config{}, logx.Nop())
	job := func(context.Context) error { return nil }
	if err := s.AddSchedule("", "0 9 * * 1", 0, job); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := s.AddSchedule("x", "61 * * * *", 0, job); err == nil {
		t.Fatalf("expected error for invalid cron")
	}
	if err := s.AddSchedule("x", "0 9 * * 1", 0, nil); err == nil {
		t.Fatalf("expected error for nil job")
	}
	if err := s.AddSchedule("x", "0 9 * * 1", 0, job); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddSchedule("x", "@daily", 0, job); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := s.Schedules(); len(got) != 1 || got[0].Spec != "@daily" {
		t.Fatalf("expected one replaced schedule, got %+v", got)
	}
	if !s.Remove("x") || s.Remove("x") {
		t.Fatalf("remove should succeed exactly once")
	}
}

func TestRunNowOverlapAndTimeout(t *testing.T) {
	s := New(Config{}, logx.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	err := s.AddSchedule("slow", "@every 1h", 50*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, ErrOverlapSkip) {
		t.Fatalf("expected overlap skip, got %v", err)
	}
	if err := <-done; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}
	close(release)
	if runs.Load() != 1 {
		t.Fatalf("expected 1 run, got %d", runs.Load())
	}
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunNowRecoversPanic(t *testing.T) {
	s := New(Config{}, logx.Nop())
	_ = s.AddSchedule("boom", "@daily", 0, func(context.Context) error { panic("boom") })
	if err := s.RunNow(context.Background(), "boom"); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
	// Running flag is cleared after a panic.
	if got := s.Schedules(); got[0].Running {
		t.Fatalf("schedule still marked running")
	}
}

func TestStartStopRegistersEntries(t *testing.T) {
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	if err := s.AddSchedule("weekly", "0 9 * * 1", time.Minute, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.Start(context.Background())
	info := s.Schedules()
	if len(info) != 1 || info[0].Next.IsZero() {
		t.Fatalf("expected a next fire time, got %+v", info)
	}
	if info[0].Next.Weekday() != time.Monday || info[0].Next.Hour() != 9 {
		t.Fatalf("unexpected next fire time %v", info[0].Next)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
