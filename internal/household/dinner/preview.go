package dinner

import (
	"context"
	"fmt"
	"time"

	"housebot/internal/household/calendar"
	"housebot/internal/storage"
	"housebot/pkg/tgui"
)

// Upcoming lists the planned dinners from the given day for weeks weeks.
func (p *Planner) Upcoming(ctx context.Context, from time.Time, weeks int) ([]storage.Dinner, error) {
	if weeks <= 0 {
		weeks = p.config().ShowMoreWeeks
	}
	from = calendar.Day(from)
	return p.store.ListDinners(ctx, from, from.AddDate(0, 0, 7*weeks), 0)
}

// Preview generates one round robin for the current residents without
// writing it. At most limit dinners are returned; limit <= 0 returns all.
func (p *Planner) Preview(ctx context.Context, limit int) ([]storage.Dinner, error) {
	cfg := p.config()
	residents, err := p.store.ListResidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	if len(residents) < 2 {
		return nil, ErrNotEnoughResidents
	}
	pairs, err := p.schedule(len(residents), cfg)
	if err != nil {
		return nil, err
	}
	start, err := p.startDate(ctx, nil, p.Today(), cfg.Weekday)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]storage.Resident, len(residents))
	for _, r := range residents {
		byID[r.ID] = r
	}
	person := func(id int64) storage.Person {
		r, ok := byID[id]
		if !ok {
			return storage.Person{}
		}
		return storage.Person{ID: r.ID, Name: r.Name, TelegramID: r.TelegramID}
	}

	out := make([]storage.Dinner, 0, len(pairs))
	date := start
	for _, pr := range pairs {
		if limit > 0 && len(out) >= limit {
			break
		}
		date = date.AddDate(0, 0, cfg.IntervalDays)
		d := dinnerFor(pr, residents, date)
		d.HeadChef, d.Assistant = person(d.HeadChefID), person(d.AssistantID)
		out = append(out, d)
	}
	return out, nil
}

// PreviewMessage renders Preview output. Nothing in it is saved.
func PreviewMessage(rows []storage.Dinner) tgui.Message {
	b := tgui.New().Title("🧪", "Schedule preview").Line("Not saved. Run /extend to write a plan.").Blank()
	for i, d := range rows {
		assistant := tgui.Esc(d.Assistant.Name)
		if d.Solo() {
			assistant = tgui.I("solo")
		}
		b.HTML(tgui.Raw(fmt.Sprintf("%2d. ", i+1)) + tgui.B(FormatDate(d.Date)) + tgui.Raw(": ") +
			tgui.Esc(d.HeadChef.Name) + tgui.Raw(" + ") + assistant)
	}
	return b.Build()
}
