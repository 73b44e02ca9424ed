// Package meeting reminds the house about the monthly house meeting, held
// after dinner on the first dinner night of each month.
package meeting

import (
	"context"
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"housebot/internal/household/calendar"
	"housebot/internal/notifier"
	"housebot/internal/transport"
	"housebot/pkg/logx"
	"housebot/pkg/tgui"
)

type Link struct {
	Title string
	URL   string
}

type Config struct {
	Disabled   bool
	DaysBefore int // default 2
	Weekday    time.Weekday
	Chat       transport.ChatTarget
	Links      []Link
}

type Reminder struct {
	notify notifier.Notifier
	log    logx.Logger

	mu  sync.RWMutex
	cfg Config
}

func New(n notifier.Notifier, cfg Config, log logx.Logger) *Reminder {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Reminder{notify: n, log: log}
	r.Apply(cfg)
	return r
}

func (r *Reminder) Apply(cfg Config) {
	if cfg.DaysBefore <= 0 {
		cfg.DaysBefore = 2
	}
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

// RemindTwoDaysBefore posts the reminder when the meeting is DaysBefore
// days away.
func (r *Reminder) RemindTwoDaysBefore(ctx context.Context, now time.Time) error {
	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()
	if cfg.Disabled {
		return nil
	}
	date := calendar.AddDays(now, cfg.DaysBefore)
	if !calendar.IsFirstWeekdayOfMonth(date, cfg.Weekday) {
		return nil
	}
	r.log.Debug("house meeting reminder", logx.Date("meeting", date))

	msg := message(date, cfg)
	return r.notify.Notify(ctx, notifier.Notification{
		Channel:  "meeting",
		Target:   cfg.Chat,
		Text:     msg.Text,
		Options:  msg.Opt,
		DedupKey: calendar.Key(date),
	})
}

func message(date time.Time, cfg Config) tgui.Message {
	b := tgui.New().
		Title("🏠", "House meeting").
		Blank().
		Line(fmt.Sprintf("Reminder: the house meeting is in %d days, on %s, since it is the first %s of the month.",
			cfg.DaysBefore, date.Format("Monday 2 January"), date.Weekday())).
		Line("Unless agreed otherwise, we meet right after dinner.")
	var btns []tele.Btn
	for _, l := range cfg.Links {
		if l.URL == "" {
			continue
		}
		title := l.Title
		if title == "" {
			title = l.URL
		}
		btns = append(btns, tgui.URLBtn(title, l.URL))
	}
	if len(btns) > 0 {
		b.Inline(tgui.Grid2(btns))
	}
	return b.Build()
}
