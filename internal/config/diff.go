package config

import (
	"reflect"
	"sort"
	"strings"

	"housebot/pkg/logx"
)

// Sections whose changes only apply after a restart.
var restartSections = map[string]bool{
	"telegram": true,
	"storage":  true,
	"http":     true,
}

// Changes lists the top-level sections that differ between two configs plus
// log fields describing them. Secrets (bot token, HTTP token) are never
// included, only whether they are set.
func Changes(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)

	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.chat", newCfg.Logging.Chat.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		fields = append(fields,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		if n := newCfg.Notifier; n != nil {
			fields = append(fields,
				logx.Bool("notifier.enabled", n.Enabled),
				logx.Int("notifier.rate_per_sec", n.RatePerSec),
			)
		}
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if s := newCfg.Storage; s != nil {
			fields = append(fields, logx.String("storage.driver", s.Driver))
		}
	}
	if !reflect.DeepEqual(oldCfg.HTTP, newCfg.HTTP) {
		changed = append(changed, "http")
		fields = append(fields,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.token_set", newCfg.HTTP.Token != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Household, newCfg.Household) {
		changed = append(changed, "household")
		fields = append(fields,
			logx.String("household.daily_at", newCfg.Household.DailyAt),
			logx.Int("household.residents", len(newCfg.Household.Residents)),
		)
	}

	sort.Strings(changed)
	return changed, fields
}

// NeedsRestart reports whether any of the changed sections only applies on
// restart.
func NeedsRestart(changed []string) []string {
	var out []string
	for _, c := range changed {
		if restartSections[c] {
			out = append(out, c)
		}
	}
	return out
}
