package app

import (
	"errors"
	"strings"
	"time"

	"housebot/internal/bot"
	"housebot/internal/config"
	"housebot/internal/httpapi"
	"housebot/internal/notifier"
	"housebot/internal/scheduler"
	"housebot/internal/storage"
	"housebot/pkg/logx"
)

const defaultDedupWindow = 36 * time.Hour

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    l.Chat.Enabled,
			ChatID:     l.Chat.ChatID,
			MinLevel:   l.Chat.MinLevel,
			RatePerSec: l.Chat.RatePerSec,
		},
	}
}

// mapNotifierConfig resolves the notifier section. An omitted section means
// enabled with defaults.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{Enabled: true, DedupWindow: defaultDedupWindow}, nil
	}
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMax, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, defaultDedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
		return notifier.Config{}, errors.New("notifier: workers, queue_size, rate_per_sec and retry_max must be >= 0")
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMax,
		DedupWindow:     window,
		DedupMaxEntries: n.DedupMaxEntries,
		PersistDedup:    n.PersistDedup,
	}, nil
}

// mapStorageConfig resolves the storage section. An omitted section means
// sqlite at ./housebot.db.
func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	if sc == nil {
		return storage.Config{Driver: "sqlite"}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	s := cfg.Scheduler
	timeout, err := config.ParseDurationOrDefault("scheduler.default_timeout", s.DefaultTimeout, 2*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	history := s.HistorySize
	if history <= 0 {
		history = 50
	}
	return scheduler.Config{
		Enabled:        s.Enabled,
		Timezone:       strings.TrimSpace(s.Timezone),
		DefaultTimeout: timeout,
		HistorySize:    history,
	}, nil
}

func mapBotConfig(cfg *config.Config) (bot.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.command_timeout", cfg.Telegram.CommandTimeout, 30*time.Second)
	if err != nil {
		return bot.Config{}, err
	}
	return bot.Config{
		Owners:         append([]int64(nil), cfg.Telegram.OwnerUserIDs...),
		Workers:        cfg.Telegram.Workers,
		CommandTimeout: timeout,
	}, nil
}

func mapHTTPConfig(cfg *config.Config) (httpapi.Config, error) {
	shutdown, err := config.ParseDurationOrDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:            strings.TrimSpace(cfg.HTTP.Addr),
		Token:           cfg.HTTP.Token,
		ShutdownTimeout: shutdown,
		Pprof:           cfg.HTTP.Pprof,
	}, nil
}

// dailyAt formats the configured daily run time for scheduler.AddDaily.
func dailyAt(hour, minute int) string {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
}
