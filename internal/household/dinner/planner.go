// Package dinner maintains the cooking plan: it extends the plan from the
// round-robin roster, posts the reminders around each dinner night and keeps
// track of who is eating.
package dinner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"housebot/internal/eventbus"
	"housebot/internal/household/calendar"
	"housebot/internal/notifier"
	"housebot/internal/roster"
	"housebot/internal/storage"
	"housebot/internal/transport"
	"housebot/pkg/logx"
)

var (
	ErrNotEnoughResidents = errors.New("dinner: need at least two residents")
	ErrUnknownResident    = errors.New("dinner: not a resident")
	ErrNoDinner           = errors.New("dinner: no dinner on that date")
)

// Store is the part of storage the planner needs.
type Store interface {
	ListResidents(ctx context.Context) ([]storage.Resident, error)
	ResidentByTelegramID(ctx context.Context, telegramID int64) (storage.Resident, error)
	LastDinner(ctx context.Context) (storage.Dinner, error)
	DinnerOn(ctx context.Context, date time.Time) (storage.Dinner, error)
	ListDinners(ctx context.Context, from, to time.Time, limit int) ([]storage.Dinner, error)
	HasDinnerAfter(ctx context.Context, date time.Time) (bool, error)
	InsertDinners(ctx context.Context, dinners []storage.Dinner) error
	ArchiveBefore(ctx context.Context, date time.Time) (int64, error)
	PutRSVP(ctx context.Context, date time.Time, residentID int64, answer storage.Answer) error
	ListRSVPs(ctx context.Context, date time.Time) ([]storage.RSVP, error)
}

// Config tunes the plan. Zero values take the defaults noted per field.
type Config struct {
	Weekday       time.Weekday
	IntervalDays  int // default 7
	LeadDays      int // default 3
	HorizonMonths int // default 3
	MaxTrials     int // default roster.DefaultMaxTrials
	Strict        bool

	ShowMoreWeeks   int // default 4
	SplitAfterWeeks int // default 17

	DinnerChat  transport.ChatTarget
	GeneralChat transport.ChatTarget
	Location    *time.Location
}

func (c Config) withDefaults() Config {
	if c.IntervalDays <= 0 {
		c.IntervalDays = 7
	}
	if c.LeadDays <= 0 {
		c.LeadDays = 3
	}
	if c.HorizonMonths <= 0 {
		c.HorizonMonths = 3
	}
	if c.MaxTrials == 0 {
		c.MaxTrials = roster.DefaultMaxTrials
	}
	if c.ShowMoreWeeks <= 0 {
		c.ShowMoreWeeks = 4
	}
	if c.SplitAfterWeeks <= 0 {
		c.SplitAfterWeeks = 17
	}
	if c.DinnerChat.ChatID == 0 {
		c.DinnerChat = c.GeneralChat
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Planner is safe for concurrent use. Extend calls are serialized.
type Planner struct {
	store  Store
	notify notifier.Notifier
	log    logx.Logger
	bus    eventbus.Bus

	now  func() time.Time
	rand func() *rand.Rand

	mu  sync.RWMutex
	cfg Config

	extendMu sync.Mutex
}

// Option customizes a Planner.
type Option func(*Planner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(p *Planner) { p.now = now } }

// WithRandSource fixes the randomness behind role assignment.
func WithRandSource(fn func() *rand.Rand) Option { return func(p *Planner) { p.rand = fn } }

func New(store Store, n notifier.Notifier, cfg Config, log logx.Logger, bus eventbus.Bus, opts ...Option) *Planner {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Planner{
		store:  store,
		notify: n,
		log:    log,
		bus:    bus,
		now:    time.Now,
		cfg:    cfg.withDefaults(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Apply swaps the config on reload.
func (p *Planner) Apply(cfg Config) {
	p.mu.Lock()
	p.cfg = cfg.withDefaults()
	p.mu.Unlock()
}

func (p *Planner) config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Now is the planner clock in the configured location.
func (p *Planner) Now() time.Time {
	return p.now().In(p.config().Location)
}

// Today is the current civil date in the configured location.
func (p *Planner) Today() time.Time {
	return calendar.Day(p.Now())
}

// Extend appends one full round robin to the plan and returns the date of
// the last dinner written.
//
// Dinners start one interval after from, or after the last planned dinner,
// or after the most recent dinner weekday on or before today.
func (p *Planner) Extend(ctx context.Context, from *time.Time) (time.Time, error) {
	return p.extend(ctx, from, p.Today())
}

func (p *Planner) extend(ctx context.Context, from *time.Time, today time.Time) (time.Time, error) {
	p.extendMu.Lock()
	defer p.extendMu.Unlock()

	cfg := p.config()
	residents, err := p.store.ListResidents(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("list residents: %w", err)
	}
	if len(residents) < 2 {
		return time.Time{}, ErrNotEnoughResidents
	}

	pairs, err := p.schedule(len(residents), cfg)
	if err != nil {
		return time.Time{}, err
	}

	start, err := p.startDate(ctx, from, today, cfg.Weekday)
	if err != nil {
		return time.Time{}, err
	}

	rows := make([]storage.Dinner, 0, len(pairs))
	date := start
	for _, pr := range pairs {
		date = date.AddDate(0, 0, cfg.IntervalDays)
		rows = append(rows, dinnerFor(pr, residents, date))
	}
	if err := p.store.InsertDinners(ctx, rows); err != nil {
		return time.Time{}, fmt.Errorf("insert dinners: %w", err)
	}

	p.log.Info("dinner plan extended",
		logx.Date("from", start), logx.Date("until", date),
		logx.Int("dinners", len(rows)), logx.Int("residents", len(residents)))
	eventbus.Publish(p.bus, eventbus.TypePlanExtended, calendar.Key(date))
	return date, nil
}

// schedule builds a balanced round robin for n residents. An odd roster gets
// an extra guest slot; pairs with the guest become solo dinners.
func (p *Planner) schedule(n int, cfg Config) ([]roster.Pair, error) {
	if n%2 == 1 {
		n++
	}
	opts := []roster.Option{roster.WithMaxTrials(cfg.MaxTrials), roster.WithStrict(cfg.Strict)}
	if p.rand != nil {
		opts = append(opts, roster.WithRand(p.rand()))
	}
	return roster.NewSchedule(n, opts...)
}

func dinnerFor(pr roster.Pair, residents []storage.Resident, date time.Time) storage.Dinner {
	head, assistant := pr.First, pr.Second
	if head >= len(residents) {
		head, assistant = assistant, head
	}
	d := storage.Dinner{Date: date, HeadChefID: residents[head].ID}
	if assistant < len(residents) {
		d.AssistantID = residents[assistant].ID
	}
	return d
}

func (p *Planner) startDate(ctx context.Context, from *time.Time, today time.Time, weekday time.Weekday) (time.Time, error) {
	if from != nil {
		return calendar.Day(*from), nil
	}
	last, err := p.store.LastDinner(ctx)
	switch {
	case err == nil:
		return last.Date, nil
	case errors.Is(err, storage.ErrNotFound):
		return calendar.LastWeekdayOnOrBefore(today, weekday), nil
	default:
		return time.Time{}, fmt.Errorf("last dinner: %w", err)
	}
}

// ArchivePast archives the dinners before today. Archived dinners drop out
// of the schedule and the reminders but still anchor the next extension.
func (p *Planner) ArchivePast(ctx context.Context, now time.Time) error {
	n, err := p.store.ArchiveBefore(ctx, calendar.Day(now))
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if n > 0 {
		p.log.Info("dinners archived", logx.Int64("count", n))
	}
	return nil
}

// EnsureHorizon extends the plan when it ends before today plus the horizon
// and tells the general chat. It reports whether the plan was extended.
func (p *Planner) EnsureHorizon(ctx context.Context, today time.Time) (bool, error) {
	cfg := p.config()
	today = calendar.Day(today)
	horizon := calendar.AddMonths(today, cfg.HorizonMonths)

	last, err := p.store.LastDinner(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("last dinner: %w", err)
	}
	if err == nil && !last.Date.Before(horizon) {
		return false, nil
	}

	until, err := p.extend(ctx, nil, today)
	if err != nil {
		return false, err
	}
	msg := planNotice(until, cfg.HorizonMonths)
	err = p.notify.Notify(ctx, notifier.Notification{
		Channel:  "dinner.plan",
		Target:   cfg.GeneralChat,
		Text:     msg.Text,
		Options:  msg.Opt,
		DedupKey: calendar.Key(until),
	})
	return true, err
}
