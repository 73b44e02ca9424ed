package dinner

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"housebot/internal/eventbus"
	"housebot/internal/household/calendar"
	"housebot/internal/notifier"
	"housebot/internal/storage"
	"housebot/pkg/logx"
	"housebot/pkg/tgui"
)

// RemindAhead posts the cooks and the RSVP buttons when a dinner is lead
// days away.
func (p *Planner) RemindAhead(ctx context.Context, now time.Time) error {
	cfg := p.config()
	date := calendar.AddDays(now, cfg.LeadDays)
	if date.Weekday() != cfg.Weekday {
		return nil
	}
	d, ok, err := p.activeDinner(ctx, date)
	if err != nil || !ok {
		return err
	}

	msg := aheadMessage(d, cfg.LeadDays)
	return p.notify.Notify(ctx, notifier.Notification{
		Channel:  "dinner.ahead",
		Target:   cfg.DinnerChat,
		Text:     msg.Text,
		Options:  msg.Opt,
		DedupKey: calendar.Key(date),
	})
}

// RemindDayOf posts who still has to answer on the dinner day itself.
func (p *Planner) RemindDayOf(ctx context.Context, now time.Time) error {
	cfg := p.config()
	today := calendar.Day(now)
	if today.Weekday() != cfg.Weekday {
		return nil
	}
	d, ok, err := p.activeDinner(ctx, today)
	if err != nil || !ok {
		return err
	}

	st, err := p.Status(ctx, d.Date)
	if err != nil {
		return err
	}
	msg := tonightMessage(d, st)
	return p.notify.Notify(ctx, notifier.Notification{
		Channel:  "dinner.tonight",
		Target:   cfg.DinnerChat,
		Text:     msg.Text,
		Options:  msg.Opt,
		DedupKey: calendar.Key(today),
	})
}

func (p *Planner) activeDinner(ctx context.Context, date time.Time) (storage.Dinner, bool, error) {
	d, err := p.store.DinnerOn(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		p.log.Debug("no dinner planned", logx.Date("date", date))
		return storage.Dinner{}, false, nil
	}
	if err != nil {
		return storage.Dinner{}, false, fmt.Errorf("dinner on %s: %w", calendar.Key(date), err)
	}
	return d, !d.Archived, nil
}

// Status groups the residents by their answer for a dinner date.
type Status struct {
	Yes, No, Maybe, Missing []storage.Resident
}

func (p *Planner) Status(ctx context.Context, date time.Time) (Status, error) {
	residents, err := p.store.ListResidents(ctx)
	if err != nil {
		return Status{}, err
	}
	rsvps, err := p.store.ListRSVPs(ctx, date)
	if err != nil {
		return Status{}, err
	}
	answers := make(map[int64]storage.Answer, len(rsvps))
	for _, r := range rsvps {
		answers[r.ResidentID] = r.Answer
	}
	var st Status
	for _, r := range residents {
		switch answers[r.ID] {
		case storage.AnswerYes:
			st.Yes = append(st.Yes, r)
		case storage.AnswerNo:
			st.No = append(st.No, r)
		case storage.AnswerMaybe:
			st.Maybe = append(st.Maybe, r)
		default:
			st.Missing = append(st.Missing, r)
		}
	}
	return st, nil
}

// RecordRSVP stores the answer of the resident behind a Telegram user.
func (p *Planner) RecordRSVP(ctx context.Context, date time.Time, telegramUserID int64, answer storage.Answer) (storage.Resident, error) {
	r, err := p.store.ResidentByTelegramID(ctx, telegramUserID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Resident{}, ErrUnknownResident
	}
	if err != nil {
		return storage.Resident{}, err
	}
	if _, ok, err := p.activeDinner(ctx, date); err != nil {
		return storage.Resident{}, err
	} else if !ok {
		return storage.Resident{}, ErrNoDinner
	}
	if err := p.store.PutRSVP(ctx, date, r.ID, answer); err != nil {
		return storage.Resident{}, err
	}
	eventbus.Publish(p.bus, eventbus.TypeRSVPRecorded, map[string]any{
		"date": calendar.Key(date), "resident": r.Name, "answer": string(answer),
	})
	return r, nil
}

func cook(p storage.Person) tgui.H {
	if p.ID == 0 {
		return tgui.I("nobody, cooking solo")
	}
	return tgui.Mention(p.Name, p.TelegramID)
}

func mentions(rs []storage.Resident) []tgui.H {
	out := make([]tgui.H, 0, len(rs))
	for _, r := range rs {
		out = append(out, tgui.Mention(r.Name, r.TelegramID))
	}
	return out
}

// RSVPKeyboard offers yes, no and maybe for a dinner date.
func RSVPKeyboard(date time.Time) *tgui.Inline {
	key := calendar.Key(date)
	btn := func(label string, a storage.Answer) tele.Btn {
		return tgui.Btn(label, tgui.Data("dinner", "rsvp", key+":"+string(a)))
	}
	return tgui.NewInline().
		Row(btn("✅ Yes", storage.AnswerYes), btn("❌ No", storage.AnswerNo), btn("🤔 Maybe", storage.AnswerMaybe)).
		Row(tgui.Btn("📅 Schedule", tgui.Data("dinner", "list", "")))
}

func aheadMessage(d storage.Dinner, leadDays int) tgui.Message {
	return tgui.New().
		Title("🍲", "Dinner night").
		Blank().
		Line(fmt.Sprintf("%d days to go until dinner on %s. Cooking this week:", leadDays, FormatDate(d.Date))).
		KV("Head chef", cook(d.HeadChef)).
		KV("Assistant", cook(d.Assistant)).
		Blank().
		Line("Are you eating with us? Answer below; you can change it until the morning of the dinner.").
		Inline(RSVPKeyboard(d.Date)).
		Build()
}

func tonightMessage(d storage.Dinner, st Status) tgui.Message {
	missing := tgui.Esc("everyone has answered 🎉")
	if len(st.Missing) > 0 {
		missing = tgui.List(mentions(st.Missing)...)
	}
	maybe := tgui.Esc("all answers are final 🥳")
	if len(st.Maybe) > 0 {
		maybe = tgui.List(mentions(st.Maybe)...)
	}
	return tgui.New().
		Title("🍽", "Dinner tonight").
		Blank().
		Line("Enjoy the meal, and update your answer if your plans changed.").
		KV("Eating", tgui.Esc(fmt.Sprintf("%d", len(st.Yes)))).
		KV("No answer yet", missing).
		KV("Still maybe", maybe).
		Inline(RSVPKeyboard(d.Date)).
		Build()
}

func planNotice(until time.Time, months int) tgui.Message {
	return tgui.New().
		Title("📋", "New cooking plan").
		Blank().
		Line(fmt.Sprintf("The plan now runs until %s, since we were %d months from the end of the old one.", FormatDate(until), months)).
		Line("Use /dinner to see it.").
		Inline(tgui.NewInline().Row(tgui.Btn("📅 Schedule", tgui.Data("dinner", "list", "")))).
		Build()
}

// FormatDate renders a dinner date for people.
func FormatDate(t time.Time) string { return t.Format("Mon 2 Jan 2006") }
