package app

import (
	"context"
	"slices"
	"strings"

	"housebot/internal/config"
	"housebot/internal/eventbus"
	"housebot/internal/household"
	"housebot/pkg/logx"
)

// reloadLoop applies published configs until ctx is done. Bursts are
// coalesced so only the newest config is applied.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}
			if cfg == nil {
				continue
			}
			a.apply(last, cfg)
			last = cfg
		}
	}
}

// apply pushes the sections that can change at runtime to their
// components. Sections that need a restart are only reported.
func (a *App) apply(oldCfg, newCfg *config.Config) {
	changed, fields := config.Changes(oldCfg, newCfg)
	if len(changed) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("config changed", append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, fields...)...)
	if restart := config.NeedsRestart(changed); len(restart) > 0 {
		a.log.Warn("config sections changed that apply after restart", logx.String("sections", strings.Join(restart, ",")))
	}

	// Logging first so the rest of the apply is logged at the new level.
	a.logs.Apply(mapLogConfig(newCfg))

	if bcfg, err := mapBotConfig(newCfg); err == nil {
		a.bot.Apply(bcfg)
	} else {
		a.log.Warn("bot config not applied", logx.Err(err))
	}

	if scfg, err := mapSchedulerConfig(newCfg); err == nil {
		wasEnabled := a.sched.Enabled()
		a.sched.Apply(scfg)
		switch {
		case scfg.Enabled && !wasEnabled:
			a.sched.Start(a.sup.Context())
		case !scfg.Enabled && wasEnabled:
			a.sched.Stop(a.sup.Context())
		}
	} else {
		a.log.Warn("scheduler config not applied", logx.Err(err))
	}

	if a.notif != nil {
		if ncfg, err := mapNotifierConfig(newCfg); err == nil {
			if !ncfg.Enabled {
				a.log.Warn("notifier.enabled=false applies after restart")
				ncfg.Enabled = true
			}
			a.notif.Apply(ncfg)
		} else {
			a.log.Warn("notifier config not applied", logx.Err(err))
		}
	}

	if !slices.Contains(changed, "household") && !slices.Contains(changed, "scheduler") {
		eventbus.Publish(a.bus, eventbus.TypeConfigReloaded, map[string]any{"changed": changed})
		return
	}
	settings, err := household.SettingsFrom(newCfg.Household, a.sched.Location())
	if err != nil {
		a.log.Warn("household config not applied", logx.Err(err))
	} else {
		a.house.Apply(settings)
		a.views.SetTTL(settings.ViewTTL)
		if err := a.registerJobs(settings); err != nil {
			a.log.Warn("scheduled jobs not updated", logx.Err(err))
		}
	}

	eventbus.Publish(a.bus, eventbus.TypeConfigReloaded, map[string]any{"changed": changed})
}
