package dinner

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"housebot/internal/household/calendar"
	"housebot/pkg/tgui"
)

// Window is the span of the plan shown by one schedule message.
type Window struct {
	Start     time.Time
	End       time.Time
	Continued bool
}

const windowLayout = "20060102"

// Encode packs w into a callback payload ("20261017.20261114.0").
func (w Window) Encode() string {
	c := "0"
	if w.Continued {
		c = "1"
	}
	return w.Start.Format(windowLayout) + "." + w.End.Format(windowLayout) + "." + c
}

// ParseWindow reverses Encode.
func ParseWindow(s string) (Window, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Window{}, fmt.Errorf("dinner: bad window %q", s)
	}
	start, err := time.Parse(windowLayout, parts[0])
	if err != nil {
		return Window{}, fmt.Errorf("dinner: bad window start %q", parts[0])
	}
	end, err := time.Parse(windowLayout, parts[1])
	if err != nil {
		return Window{}, fmt.Errorf("dinner: bad window end %q", parts[1])
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("dinner: window ends before it starts: %q", s)
	}
	return Window{Start: start, End: end, Continued: parts[2] == "1"}, nil
}

// Weeks is the window length in weeks.
func (w Window) Weeks() float64 { return w.End.Sub(w.Start).Hours() / (24 * 7) }

// FirstWindow is what /dinner shows: today plus the show-more step.
func (p *Planner) FirstWindow(today time.Time) Window {
	today = calendar.Day(today)
	return Window{Start: today, End: today.AddDate(0, 0, 7*p.config().ShowMoreWeeks)}
}

// More grows w by one step. When the grown window would be longer than the
// split limit, split is true and next is a continuation starting where w
// ended; the message showing w should then be frozen.
func (p *Planner) More(w Window) (next Window, split bool) {
	cfg := p.config()
	end := w.End.AddDate(0, 0, 7*cfg.ShowMoreWeeks)
	grown := Window{Start: w.Start, End: end, Continued: w.Continued}
	if grown.Weeks() > float64(cfg.SplitAfterWeeks) {
		return Window{Start: w.End, End: end, Continued: true}, true
	}
	return grown, false
}

// ScheduleMessage renders the dinners in w. frozen hides "show more".
func (p *Planner) ScheduleMessage(ctx context.Context, w Window, frozen bool) (tgui.Message, error) {
	rows, err := p.store.ListDinners(ctx, w.Start, w.End, 0)
	if err != nil {
		return tgui.Message{}, err
	}
	hasMore, err := p.store.HasDinnerAfter(ctx, w.End)
	if err != nil {
		return tgui.Message{}, err
	}

	b := tgui.New()
	if w.Continued {
		b.Title("📅", "Dinner schedule (continued)").
			Line("Long schedules are split over several messages.")
	} else {
		b.Title("📅", "Dinner schedule")
	}
	b.Blank()
	if len(rows) == 0 {
		b.Line("Nothing planned in this period.")
	}
	for _, d := range rows {
		assistant := tgui.Esc(d.Assistant.Name)
		if d.Solo() {
			assistant = tgui.I("solo")
		}
		b.HTML(tgui.B(FormatDate(d.Date)) + tgui.Raw(":"))
		b.HTML("   👩‍🍳 Head chef: " + tgui.Esc(d.HeadChef.Name))
		b.HTML("   🧑‍🍳 Assistant: " + assistant)
	}

	var btns []tele.Btn
	if !frozen && hasMore {
		btns = append(btns, tgui.Btn("⏬ Show more", tgui.Data("dinner", "more", w.Encode())))
	}
	btns = append(btns, tgui.Btn("🙈 Hide", tgui.Data("menu", "hide", "")))
	return b.Inline(tgui.NewInline().Row(btns...)).Build(), nil
}
