package app

import (
	"context"
	"slices"
	"strings"

	"checkinbot/internal/config"
	logx "checkinbot/pkg/logx"
)

// reloadLoop applies committed config reloads. Only checkin, telegram.chat
// and logging take effect live; other sections are reported as needing a
// restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the latest config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyReload(last, newCfg)
			last = newCfg
		}
	}
}

func (a *App) applyReload(oldCfg, newCfg *config.Config) {
	ch := config.Diff(oldCfg, newCfg)
	if len(ch.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	if slices.Contains(ch.Sections, "logging") && a.logs != nil {
		a.logs.Apply(mapLogConfig(newCfg))
	}

	if slices.Contains(ch.Sections, "checkin") || slices.Contains(ch.Sections, "telegram.chat") {
		if err := a.applyCheckin(newCfg); err != nil {
			a.log.Warn("invalid checkin config; keeping previous", logx.Err(err))
		}
	}

	if slices.Contains(ch.Sections, "checkin") {
		a.sched.Apply(mapSchedulerConfig(newCfg))
		if err := a.registerReminder(newCfg); err != nil {
			a.log.Warn("reminder schedule not updated", logx.Err(err))
		}
	}

	if len(ch.Restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(ch.Restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
	a.log.Info("config reloaded", fields...)
}
