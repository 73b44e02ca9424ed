// Package birthday works out whose birthday is coming up, who hosts the
// birthday breakfast, and tells everyone else in private.
package birthday

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"housebot/internal/household/calendar"
	"housebot/internal/notifier"
	"housebot/internal/storage"
	"housebot/internal/transport"
	"housebot/pkg/logx"
	"housebot/pkg/tgui"
)

// Store is the part of storage the birthday jobs need.
type Store interface {
	ListResidents(ctx context.Context) ([]storage.Resident, error)
}

type Config struct {
	Disabled bool
	// NoticeDays is how far ahead the planning notice goes out. Default 7.
	NoticeDays int
}

// Entry is a resident's next birthday.
type Entry struct {
	Resident storage.Resident
	Date     time.Time // next occurrence, on or after the reference day
	Age      int       // age reached on Date
}

type Service struct {
	store  Store
	notify notifier.Notifier
	log    logx.Logger

	mu  sync.RWMutex
	cfg Config
}

func New(store Store, n notifier.Notifier, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{store: store, notify: n, log: log}
	s.Apply(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	if cfg.NoticeDays <= 0 {
		cfg.NoticeDays = 7
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Upcoming lists every resident by next birthday: this year's remaining
// birthdays first, then next year's. Ties are ordered by name.
func (s *Service) Upcoming(ctx context.Context, now time.Time) ([]Entry, error) {
	residents, err := s.store.ListResidents(ctx)
	if err != nil {
		return nil, err
	}
	return upcoming(residents, calendar.Day(now)), nil
}

func upcoming(residents []storage.Resident, today time.Time) []Entry {
	out := make([]Entry, 0, len(residents))
	for _, r := range residents {
		date, age := calendar.NextBirthday(r.Birthday, today)
		out = append(out, Entry{Resident: r, Date: date, Age: age})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Resident.Name, b.Resident.Name)
	})
	return out
}

// PeopleOn returns the residents celebrating on the next occurrence of md.
func (s *Service) PeopleOn(ctx context.Context, md calendar.MonthDay, now time.Time) ([]Entry, error) {
	residents, err := s.store.ListResidents(ctx)
	if err != nil {
		return nil, err
	}
	return peopleOn(residents, md.Next(calendar.Day(now))), nil
}

// peopleOn matches on the day the birthday is celebrated in date's year, so
// a Feb 29 birthday counts on Feb 28 in common years.
func peopleOn(residents []storage.Resident, date time.Time) []Entry {
	var out []Entry
	for _, r := range residents {
		if calendar.MonthDayOf(r.Birthday).In(date.Year()).Equal(date) {
			out = append(out, Entry{Resident: r, Date: date, Age: date.Year() - r.Birthday.Year()})
		}
	}
	return out
}

// Responsible returns who hosts the breakfast for the birthday on the next
// occurrence of md: the residents with the closest earlier birthday in the
// yearly cycle, wrapping around to the last birthday of the year.
func (s *Service) Responsible(ctx context.Context, md calendar.MonthDay, now time.Time) ([]storage.Resident, error) {
	residents, err := s.store.ListResidents(ctx)
	if err != nil {
		return nil, err
	}
	return responsible(residents, md.Next(calendar.Day(now))), nil
}

func responsible(residents []storage.Resident, date time.Time) []storage.Resident {
	year := date.Year()
	var days []time.Time
	byDay := map[time.Time][]storage.Resident{}
	for _, r := range residents {
		d := calendar.MonthDayOf(r.Birthday).In(year)
		if _, ok := byDay[d]; !ok {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], r)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })

	i := slices.IndexFunc(days, func(d time.Time) bool { return d.Equal(date) })
	if i < 0 {
		return nil
	}
	prev := days[(i-1+len(days))%len(days)]
	return byDay[prev]
}

// RemindWeekBefore sends the planning notice for birthdays NoticeDays away.
func (s *Service) RemindWeekBefore(ctx context.Context, now time.Time) error {
	cfg := s.config()
	if cfg.Disabled {
		return nil
	}
	date := calendar.AddDays(now, cfg.NoticeDays)
	residents, err := s.store.ListResidents(ctx)
	if err != nil {
		return err
	}
	people := peopleOn(residents, date)
	if len(people) == 0 {
		return nil
	}
	hosts := responsible(residents, date)
	msg := weekBeforeMessage(people, hosts, date, cfg.NoticeDays)
	return s.tellOthers(ctx, residents, people, "birthday.week", calendar.Key(date), msg)
}

// RemindDayBefore tells everyone but the birthday people about tomorrow.
func (s *Service) RemindDayBefore(ctx context.Context, now time.Time) error {
	if s.config().Disabled {
		return nil
	}
	date := calendar.AddDays(now, 1)
	residents, err := s.store.ListResidents(ctx)
	if err != nil {
		return err
	}
	people := peopleOn(residents, date)
	if len(people) == 0 {
		return nil
	}
	return s.tellOthers(ctx, residents, people, "birthday.day", calendar.Key(date), dayBeforeMessage(people))
}

// tellOthers sends msg privately to every resident with a Telegram id who is
// not celebrating.
func (s *Service) tellOthers(ctx context.Context, residents []storage.Resident, people []Entry, channel, key string, msg tgui.Message) error {
	celebrating := map[int64]bool{}
	for _, p := range people {
		celebrating[p.Resident.ID] = true
	}
	var (
		sent    int
		skipped []string
		errs    []error
	)
	for _, r := range residents {
		if celebrating[r.ID] {
			continue
		}
		if r.TelegramID == 0 {
			skipped = append(skipped, r.Name)
			continue
		}
		err := s.notify.Notify(ctx, notifier.Notification{
			Channel:  channel,
			Target:   transport.ChatTarget{ChatID: r.TelegramID},
			Text:     msg.Text,
			Options:  msg.Opt,
			DedupKey: fmt.Sprintf("%s:%d", key, r.ID),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", r.Name, err))
			continue
		}
		sent++
	}
	s.log.Info("birthday notice",
		logx.String("channel", channel), logx.String("date", key),
		logx.Int("sent", sent), logx.String("no_telegram", strings.Join(skipped, ",")))
	if len(errs) > 0 {
		return fmt.Errorf("birthday notice: %w", errs[0])
	}
	return nil
}

func names(people []Entry) []tgui.H {
	out := make([]tgui.H, 0, len(people))
	for _, p := range people {
		out = append(out, tgui.Mention(p.Resident.Name, p.Resident.TelegramID))
	}
	return out
}

func weekBeforeMessage(people []Entry, hosts []storage.Resident, date time.Time, days int) tgui.Message {
	b := tgui.New().
		Title("🎉", "Birthday in the house!").
		Blank().
		Line("It's birthday time again. This time we have:")
	for _, p := range people {
		b.Bullets(tgui.Mention(p.Resident.Name, p.Resident.TelegramID) + tgui.Esc(fmt.Sprintf(", turning %d", p.Age)))
	}
	b.Blank().Line(fmt.Sprintf("The birthday is in %d days, on %s. Hosting the birthday breakfast:", days, date.Format("Monday 2 January")))
	for _, h := range hosts {
		b.Bullets(tgui.Mention(h.Name, h.TelegramID))
	}
	return b.Blank().
		HTML(tgui.I("This message went to everyone except " + plainList(people) + ".")).
		Build()
}

func dayBeforeMessage(people []Entry) tgui.Message {
	return tgui.New().
		Title("🎂", "Birthday tomorrow!").
		Blank().
		HTML(tgui.List(names(people)...) + tgui.Esc(" celebrate tomorrow. Don't forget the breakfast.")).
		Build()
}

func plainList(people []Entry) string {
	ns := make([]tgui.H, 0, len(people))
	for _, p := range people {
		ns = append(ns, tgui.H(p.Resident.Name))
	}
	return string(tgui.List(ns...))
}

// ListMessage renders the year of upcoming birthdays.
func (s *Service) ListMessage(ctx context.Context, now time.Time) (tgui.Message, error) {
	entries, err := s.Upcoming(ctx, now)
	if err != nil {
		return tgui.Message{}, err
	}
	b := tgui.New().Title("🎂", "Birthdays in the next year").Blank()
	if len(entries) == 0 {
		b.Line("No residents yet.")
	}
	for _, e := range entries {
		b.Bullets(tgui.B(e.Date.Format("2 January")) + tgui.Raw(": ") +
			tgui.Mention(e.Resident.Name, e.Resident.TelegramID) +
			tgui.Esc(fmt.Sprintf(" turns %d", e.Age)))
	}
	kb := tgui.NewInline().Row(tgui.Btn("🙈 Hide", tgui.Data("menu", "hide", "")))
	return b.Inline(kb).Build(), nil
}
