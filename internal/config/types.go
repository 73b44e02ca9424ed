// Package config loads housebot's JSON or YAML config, validates it and
// publishes reloads to subscribers.
package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	HTTP      HTTPConfig      `json:"http"`
	Household HouseholdConfig `json:"household"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`

	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout"`

	// CommandTimeout bounds a single command handler. Default "30s".
	CommandTimeout string `json:"command_timeout,omitempty"`
	Workers        int    `json:"workers,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat forwards warnings and errors to an operator chat.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls the cron trigger service.
//
// Defaults: timezone Local, default_timeout "2m", history_size 50.
type SchedulerConfig struct {
	Enabled        bool   `json:"enabled"`
	Timezone       string `json:"timezone,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

// NotifierConfig controls the async delivery pipeline. Durations are Go
// duration strings. An omitted section means enabled with defaults.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig selects the database.
//
//	"storage": { "driver": "sqlite", "path": "./housebot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// HTTPConfig controls the trigger endpoints used by external cron services.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"

	// Token, when set, is required as "Authorization: Bearer <token>" on
	// POST /handle-day. Never logged.
	Token           string `json:"token,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`

	// Pprof mounts /debug/pprof behind the same token. Ignored without one.
	Pprof bool `json:"pprof,omitempty"`
}

type HouseholdConfig struct {
	// GeneralChat receives plan notices and house meeting reminders.
	GeneralChat ChatRef `json:"general_chat"`

	// DinnerChat receives cooking reminders. Falls back to GeneralChat.
	DinnerChat ChatRef `json:"dinner_chat"`

	// DailyAt is the local time (HH:MM) the daily run fires.
	DailyAt string `json:"daily_at"`

	// ViewTTL is how long a schedule message stays editable. Default "15m".
	ViewTTL string `json:"view_ttl,omitempty"`

	Dinner    DinnerConfig   `json:"dinner"`
	Birthdays BirthdayConfig `json:"birthdays"`
	Meeting   MeetingConfig  `json:"meeting"`
	Residents []ResidentSeed `json:"residents"`
}

type ChatRef struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
}

// DinnerConfig tunes the cooking plan.
//
// Defaults: weekday "wednesday", interval "168h", lead_days 3,
// horizon_months 3, max_trials 10000, show_more_weeks 4, split_after_weeks 17.
type DinnerConfig struct {
	Weekday         string `json:"weekday,omitempty"`
	Interval        string `json:"interval,omitempty"`
	LeadDays        int    `json:"lead_days,omitempty"`
	HorizonMonths   int    `json:"horizon_months,omitempty"`
	MaxTrials       int    `json:"max_trials,omitempty"`
	Strict          bool   `json:"strict,omitempty"`
	ShowMoreWeeks   int    `json:"show_more_weeks,omitempty"`
	SplitAfterWeeks int    `json:"split_after_weeks,omitempty"`
}

type BirthdayConfig struct {
	Disabled bool `json:"disabled,omitempty"`
	// NoticeDays is how far ahead the planning notice goes out. Default 7.
	NoticeDays int `json:"notice_days,omitempty"`
}

type MeetingConfig struct {
	Disabled   bool   `json:"disabled,omitempty"`
	DaysBefore int    `json:"days_before,omitempty"` // default 2
	Links      []Link `json:"links,omitempty"`
}

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ResidentSeed is imported into storage by "housebot migrate".
type ResidentSeed struct {
	Name       string `json:"name"`
	Birthday   string `json:"birthday"` // YYYY-MM-DD
	TelegramID int64  `json:"telegram_id,omitempty"`
}
