package household

import (
	"strings"
	"time"

	"housebot/internal/config"
	"housebot/internal/household/birthday"
	"housebot/internal/household/calendar"
	"housebot/internal/household/dinner"
	"housebot/internal/household/meeting"
	"housebot/internal/transport"
)

// Settings is the household config resolved into service configs.
type Settings struct {
	Dinner    dinner.Config
	Birthday  birthday.Config
	Meeting   meeting.Config
	Residents []ResidentSeed

	DailyHour, DailyMinute int
	ViewTTL                time.Duration
}

type ResidentSeed struct {
	Name       string
	Birthday   time.Time
	TelegramID int64
}

// SettingsFrom resolves the household section. cfg is expected to have
// passed config.Validate; errors here are for callers that skipped it.
func SettingsFrom(cfg config.HouseholdConfig, loc *time.Location) (Settings, error) {
	var s Settings

	weekday := time.Wednesday
	if strings.TrimSpace(cfg.Dinner.Weekday) != "" {
		wd, err := config.ParseWeekday("household.dinner.weekday", cfg.Dinner.Weekday)
		if err != nil {
			return Settings{}, err
		}
		weekday = wd
	}
	interval, err := config.ParseDurationOrDefault("household.dinner.interval", cfg.Dinner.Interval, 7*24*time.Hour)
	if err != nil {
		return Settings{}, err
	}
	general := chat(cfg.GeneralChat)
	s.Dinner = dinner.Config{
		Weekday:         weekday,
		IntervalDays:    max(int(interval/(24*time.Hour)), 1),
		LeadDays:        cfg.Dinner.LeadDays,
		HorizonMonths:   cfg.Dinner.HorizonMonths,
		MaxTrials:       cfg.Dinner.MaxTrials,
		Strict:          cfg.Dinner.Strict,
		ShowMoreWeeks:   cfg.Dinner.ShowMoreWeeks,
		SplitAfterWeeks: cfg.Dinner.SplitAfterWeeks,
		GeneralChat:     general,
		DinnerChat:      chat(cfg.DinnerChat),
		Location:        loc,
	}

	s.Birthday = birthday.Config{Disabled: cfg.Birthdays.Disabled, NoticeDays: cfg.Birthdays.NoticeDays}

	links := make([]meeting.Link, 0, len(cfg.Meeting.Links))
	for _, l := range cfg.Meeting.Links {
		links = append(links, meeting.Link{Title: l.Title, URL: l.URL})
	}
	s.Meeting = meeting.Config{
		Disabled:   cfg.Meeting.Disabled,
		DaysBefore: cfg.Meeting.DaysBefore,
		Weekday:    weekday,
		Chat:       general,
		Links:      links,
	}

	s.DailyHour, s.DailyMinute = 9, 0
	if strings.TrimSpace(cfg.DailyAt) != "" {
		if s.DailyHour, s.DailyMinute, err = config.ParseClock("household.daily_at", cfg.DailyAt); err != nil {
			return Settings{}, err
		}
	}
	if s.ViewTTL, err = config.ParseDurationOrDefault("household.view_ttl", cfg.ViewTTL, 15*time.Minute); err != nil {
		return Settings{}, err
	}

	for _, r := range cfg.Residents {
		b, err := calendar.Parse(strings.TrimSpace(r.Birthday))
		if err != nil {
			return Settings{}, err
		}
		s.Residents = append(s.Residents, ResidentSeed{Name: strings.TrimSpace(r.Name), Birthday: b, TelegramID: r.TelegramID})
	}
	return s, nil
}

func chat(c config.ChatRef) transport.ChatTarget {
	return transport.ChatTarget{ChatID: c.ChatID, ThreadID: c.ThreadID}
}
