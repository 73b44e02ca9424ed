package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks the fields that would otherwise fail late (at the first
// daily run or the first reload). All problems are reported at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	dur("telegram.command_timeout", cfg.Telegram.CommandTimeout)
	dur("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	if n := cfg.Notifier; n != nil {
		dur("notifier.retry_base", n.RetryBase)
		dur("notifier.retry_max_delay", n.RetryMaxDelay)
		dur("notifier.dedup_window", n.DedupWindow)
	}
	if s := cfg.Storage; s != nil {
		dur("storage.busy_timeout", s.BusyTimeout)
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "sqlite", "memory":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
	}
	dur("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)

	h := cfg.Household
	if strings.TrimSpace(h.DailyAt) != "" {
		_, _, err := ParseClock("household.daily_at", h.DailyAt)
		add(err)
	}
	dur("household.view_ttl", h.ViewTTL)
	if strings.TrimSpace(h.Dinner.Weekday) != "" {
		_, err := ParseWeekday("household.dinner.weekday", h.Dinner.Weekday)
		add(err)
	}
	dur("household.dinner.interval", h.Dinner.Interval)
	for _, v := range []struct {
		path string
		n    int
	}{
		{"household.dinner.lead_days", h.Dinner.LeadDays},
		{"household.dinner.horizon_months", h.Dinner.HorizonMonths},
		{"household.dinner.max_trials", h.Dinner.MaxTrials},
		{"household.dinner.show_more_weeks", h.Dinner.ShowMoreWeeks},
		{"household.dinner.split_after_weeks", h.Dinner.SplitAfterWeeks},
		{"household.birthdays.notice_days", h.Birthdays.NoticeDays},
		{"household.meeting.days_before", h.Meeting.DaysBefore},
	} {
		if v.n < 0 {
			add(fmt.Errorf("%s: must be >= 0", v.path))
		}
	}

	seen := make(map[string]bool, len(h.Residents))
	for i, r := range h.Residents {
		path := fmt.Sprintf("household.residents[%d]", i)
		name := strings.TrimSpace(r.Name)
		if name == "" {
			add(fmt.Errorf("%s.name: required", path))
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			add(fmt.Errorf("%s.name: duplicate %q", path, name))
		}
		seen[key] = true
		if _, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Birthday)); err != nil {
			add(fmt.Errorf("%s.birthday: want YYYY-MM-DD, got %q", path, r.Birthday))
		}
	}
	for i, l := range h.Meeting.Links {
		if strings.TrimSpace(l.URL) == "" {
			add(fmt.Errorf("household.meeting.links[%d].url: required", i))
		}
	}
	return errors.Join(errs...)
}
