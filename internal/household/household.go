// Package household ties the household jobs together: the daily run that
// posts birthday, house meeting and dinner reminders and keeps the cooking
// plan long enough.
package household

import (
	"context"
	"errors"
	"fmt"
	"time"

	"housebot/internal/eventbus"
	"housebot/internal/household/birthday"
	"housebot/internal/household/calendar"
	"housebot/internal/household/dinner"
	"housebot/internal/household/meeting"
	"housebot/internal/notifier"
	"housebot/internal/storage"
	"housebot/pkg/logx"
)

// Store is everything the household jobs read and write.
type Store interface {
	dinner.Store
}

// Household owns the per-topic services.
type Household struct {
	Dinner   *dinner.Planner
	Birthday *birthday.Service
	Meeting  *meeting.Reminder

	log logx.Logger
	bus eventbus.Bus
}

// New builds the services from one Settings value.
func New(store Store, n notifier.Notifier, s Settings, log logx.Logger, bus eventbus.Bus, opts ...dinner.Option) *Household {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Household{
		Dinner:   dinner.New(store, n, s.Dinner, log.With(logx.String("comp", "dinner")), bus, opts...),
		Birthday: birthday.New(store, n, s.Birthday, log.With(logx.String("comp", "birthday"))),
		Meeting:  meeting.New(n, s.Meeting, log.With(logx.String("comp", "meeting"))),
		log:      log,
		bus:      bus,
	}
	return h
}

// Apply pushes reloaded settings to every service.
func (h *Household) Apply(s Settings) {
	h.Dinner.Apply(s.Dinner)
	h.Birthday.Apply(s.Birthday)
	h.Meeting.Apply(s.Meeting)
}

// HandleDay runs the daily jobs for now, in order. A failing job is logged
// and the rest still run; the failures are returned joined.
func (h *Household) HandleDay(ctx context.Context, now time.Time) error {
	steps := []struct {
		name string
		run  func(context.Context, time.Time) error
	}{
		{"birthday.week_before", h.Birthday.RemindWeekBefore},
		{"birthday.day_before", h.Birthday.RemindDayBefore},
		{"meeting.two_days_before", h.Meeting.RemindTwoDaysBefore},
		{"dinner.archive", h.Dinner.ArchivePast},
		{"dinner.horizon", func(ctx context.Context, now time.Time) error {
			_, err := h.Dinner.EnsureHorizon(ctx, now)
			return err
		}},
		{"dinner.ahead", h.Dinner.RemindAhead},
		{"dinner.day_of", h.Dinner.RemindDayOf},
	}

	start := time.Now()
	var errs []error
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := st.run(ctx, now); err != nil {
			h.log.Error("daily step failed", logx.String("step", st.name), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}
		h.log.Debug("daily step done", logx.String("step", st.name))
	}
	err := errors.Join(errs...)

	h.log.Info("day handled",
		logx.String("day", calendar.Key(calendar.Day(now))),
		logx.Int("failed", len(errs)),
		logx.Duration("took", time.Since(start)))
	eventbus.Publish(h.bus, eventbus.TypeDayHandled, map[string]any{
		"day": calendar.Key(calendar.Day(now)), "failed": len(errs),
	})
	return err
}

// SeedResidents upserts the configured residents. Used by "housebot migrate".
func SeedResidents(ctx context.Context, st interface {
	UpsertResident(ctx context.Context, name string, birthday time.Time, telegramID int64) (int64, error)
}, seeds []ResidentSeed) (int, error) {
	n := 0
	for _, r := range seeds {
		if _, err := st.UpsertResident(ctx, r.Name, r.Birthday, r.TelegramID); err != nil {
			return n, fmt.Errorf("seed %s: %w", r.Name, err)
		}
		n++
	}
	return n, nil
}

var _ Store = (*storage.Store)(nil)
