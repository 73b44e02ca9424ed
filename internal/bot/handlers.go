package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"housebot/internal/household/calendar"
	"housebot/internal/household/dinner"
	"housebot/internal/scheduler"
	"housebot/internal/storage"
	"housebot/internal/transport"
	"housebot/pkg/tgui"
)

func (b *Bot) builtinCommands() []Command {
	return []Command{
		{Name: "start", Description: "Say hello", Handle: b.cmdStart},
		{Name: "help", Description: "List commands", Handle: b.cmdHelp},
		{Name: "menu", Description: "Show all buttons", Handle: b.cmdMenu},
		{Name: "dinner", Aliases: []string{"schedule"}, Description: "Upcoming dinners", Handle: b.cmdDinner},
		{Name: "birthdays", Aliases: []string{"bdays"}, Description: "Upcoming birthdays", Handle: b.cmdBirthdays},
		{Name: "residents", Description: "Who lives here", Handle: b.cmdResidents},
		{
			Name: "extend", Description: "Append one round robin to the dinner plan",
			Usage: "/extend [YYYY-MM-DD]", Access: AccessOwnerOnly, Audit: true, Handle: b.cmdExtend,
		},
		{
			Name: "handleday", Description: "Run the daily reminders now",
			Access: AccessOwnerOnly, Audit: true, Timeout: 2 * time.Minute, Handle: b.cmdHandleDay,
		},
		{
			Name: "preview", Description: "Show a generated schedule without saving it",
			Usage: "/preview [n]", Access: AccessOwnerOnly, Handle: b.cmdPreview,
		},
		{Name: "status", Description: "Scheduled jobs and recent runs", Access: AccessOwnerOnly, Handle: b.cmdStatus},
	}
}

func (b *Bot) today() time.Time { return b.house.Dinner.Today() }

func (b *Bot) send(ctx context.Context, to transport.ChatTarget, m tgui.Message) (transport.MessageRef, error) {
	return m.Send(ctx, b.adapter, to)
}

func (b *Bot) cmdStart(ctx context.Context, req *Request) error {
	m := tgui.New().
		Title("👋", "Hi, I'm the house bot").
		Line("I keep the cooking plan, remind you of dinner nights, birthdays and house meetings.").
		Blank().
		Line("Tap a button or send /help.").
		Inline(mainMenu()).
		Build()
	_, err := b.send(ctx, req.Chat, m)
	return err
}

func (b *Bot) cmdHelp(ctx context.Context, req *Request) error {
	_, err := b.send(ctx, req.Chat, b.helpMessage(req.Owner))
	return err
}

func (b *Bot) helpMessage(owner bool) tgui.Message {
	mb := tgui.New().Title("❓", "Commands").Blank()
	for _, c := range b.commands {
		if c.Access == AccessOwnerOnly && !owner {
			continue
		}
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		line := tgui.Code(usage) + tgui.Raw(" ") + tgui.Esc(c.Description)
		if c.Access == AccessOwnerOnly {
			line += tgui.Raw(" 🔒")
		}
		mb.Bullets(line)
	}
	return mb.Build()
}

func (b *Bot) cmdMenu(ctx context.Context, req *Request) error {
	_, err := b.send(ctx, req.Chat, menuMessage(req.Owner, false))
	return err
}

func (b *Bot) cmdDinner(ctx context.Context, req *Request) error {
	return b.postSchedule(ctx, req.Chat, b.house.Dinner.FirstWindow(b.today()))
}

// postSchedule sends a new schedule message and remembers its window.
func (b *Bot) postSchedule(ctx context.Context, to transport.ChatTarget, w dinner.Window) error {
	m, err := b.house.Dinner.ScheduleMessage(ctx, w, false)
	if err != nil {
		return err
	}
	ref, err := b.send(ctx, to, m)
	if err != nil {
		return err
	}
	b.views.Put(ref, w)
	return nil
}

func (b *Bot) cmdBirthdays(ctx context.Context, req *Request) error {
	m, err := b.house.Birthday.ListMessage(ctx, b.today())
	if err != nil {
		return err
	}
	_, err = b.send(ctx, req.Chat, m)
	return err
}

func (b *Bot) cmdResidents(ctx context.Context, req *Request) error {
	m, err := b.residentsMessage(ctx, false)
	if err != nil {
		return err
	}
	_, err = b.send(ctx, req.Chat, m)
	return err
}

func (b *Bot) residentsMessage(ctx context.Context, back bool) (tgui.Message, error) {
	rs, err := b.store.ListResidents(ctx)
	if err != nil {
		return tgui.Message{}, err
	}
	mb := tgui.New().Title("👥", fmt.Sprintf("Residents (%d)", len(rs))).Blank()
	if len(rs) == 0 {
		mb.Line("Nobody yet. Add residents to the config and run housebot migrate.")
	}
	for _, r := range rs {
		linked := ""
		if r.TelegramID == 0 {
			linked = " (no Telegram)"
		}
		mb.Bullets(tgui.Mention(r.Name, r.TelegramID) +
			tgui.Esc(fmt.Sprintf(", born %s%s", r.Birthday.Format("2 Jan 2006"), linked)))
	}
	kb := tgui.NewInline()
	if back {
		kb.Row(tgui.Btn("⬅️ Back", tgui.Data("menu", "more", "main")))
	}
	kb.Row(tgui.Btn("🙈 Hide", tgui.Data("menu", "hide", "")))
	return mb.Inline(kb).Build(), nil
}

func (b *Bot) cmdExtend(ctx context.Context, req *Request) error {
	var from *time.Time
	if len(req.Args) > 0 {
		d, err := calendar.Parse(req.Args[0])
		if err != nil {
			return userErr("usage: /extend [YYYY-MM-DD]")
		}
		from = &d
	}
	last, err := b.house.Dinner.Extend(ctx, from)
	if errors.Is(err, dinner.ErrNotEnoughResidents) {
		return userErr("need at least two residents to plan dinners")
	}
	if errors.Is(err, storage.ErrDuplicate) {
		return userErr("that range overlaps planned dinners; pick a later start date")
	}
	if err != nil {
		return err
	}
	m := tgui.New().
		Title("✅", "Plan extended").
		Line("Dinners are planned until " + dinner.FormatDate(last) + ".").
		Inline(tgui.NewInline().Row(tgui.Btn("📅 Schedule", tgui.Data("dinner", "list", "")))).
		Build()
	_, err = b.send(ctx, req.Chat, m)
	return err
}

func (b *Bot) cmdHandleDay(ctx context.Context, req *Request) error {
	run := b.runDay
	if run == nil {
		run = func(ctx context.Context) error { return b.house.HandleDay(ctx, b.house.Dinner.Now()) }
	}
	err := run(ctx)
	switch {
	case errors.Is(err, scheduler.ErrBusy):
		return userErr("daily run already in progress, try again later")
	case err != nil:
		return userErr("daily run finished with errors: " + err.Error())
	}
	_, err = b.adapter.SendText(ctx, req.Chat, "daily run done", nil)
	return err
}

func (b *Bot) cmdPreview(ctx context.Context, req *Request) error {
	n := 0
	raw := req.Flags["n"]
	if raw == "" && len(req.Args) > 0 {
		raw = req.Args[0]
	}
	if raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return userErr("usage: /preview [n]")
		}
		n = v
	}
	rows, err := b.house.Dinner.Preview(ctx, n)
	if errors.Is(err, dinner.ErrNotEnoughResidents) {
		return userErr("need at least two residents to plan dinners")
	}
	if err != nil {
		return err
	}
	_, err = b.send(ctx, req.Chat, dinner.PreviewMessage(rows))
	return err
}

func (b *Bot) cmdStatus(ctx context.Context, req *Request) error {
	if b.scheduler == nil {
		return userErr("scheduler is not running")
	}
	snap := b.scheduler.Snapshot()
	mb := tgui.New().Title("⏱", "Scheduler").
		KV("Enabled", tgui.Esc(strconv.FormatBool(snap.Enabled && snap.Started))).
		KV("Timezone", tgui.Code(snap.Timezone)).
		Blank()
	for _, s := range snap.Schedules {
		next := "-"
		if !s.Next.IsZero() {
			next = s.Next.Format("Mon 2 Jan 15:04")
		}
		mb.Bullets(tgui.B(s.Name) + tgui.Raw(" ") + tgui.Code(s.Spec) + tgui.Esc(" next "+next))
	}
	hist := snap.History
	if len(hist) > 5 {
		hist = hist[len(hist)-5:]
	}
	if len(hist) > 0 {
		mb.Blank().Line("Recent runs:")
	}
	for _, h := range hist {
		state := "ok"
		switch {
		case h.Skipped:
			state = "skipped"
		case h.Error != "":
			state = "failed: " + h.Error
		}
		mb.Bullets(tgui.Esc(fmt.Sprintf("%s %s %s (%s)", h.Started.Format("02 Jan 15:04"), h.Name, state, h.Duration.Round(time.Millisecond))))
	}
	_, err := b.send(ctx, req.Chat, mb.Build())
	return err
}

func mainMenu() *tgui.Inline {
	return tgui.NewInline().
		Row(tgui.Btn("📅 Dinner schedule", tgui.Data("dinner", "list", "")), tgui.Btn("🎂 Birthdays", tgui.Data("bday", "list", ""))).
		Row(tgui.Btn("➕ More", tgui.Data("menu", "more", "all")), tgui.Btn("🙈 Hide", tgui.Data("menu", "hide", "")))
}

// menuMessage renders the main menu, or every button when all is set.
func menuMessage(owner, all bool) tgui.Message {
	mb := tgui.New().Title("🏠", "House menu")
	if !all {
		return mb.Line("What do you need?").Inline(mainMenu()).Build()
	}
	mb.Line("Everything I can do from here:")
	if owner {
		mb.Blank().Line("Operator commands: /extend, /handleday, /preview, /status")
	}
	rows := [][]tele.Btn{
		{tgui.Btn("📅 Dinner schedule", tgui.Data("dinner", "list", "")), tgui.Btn("🎂 Birthdays", tgui.Data("bday", "list", ""))},
		{tgui.Btn("👥 Residents", tgui.Data("menu", "more", "residents"))},
		{tgui.Btn("⬅️ Back", tgui.Data("menu", "more", "main")), tgui.Btn("🙈 Hide", tgui.Data("menu", "hide", ""))},
	}
	kb := tgui.NewInline()
	for _, r := range rows {
		kb.Row(r...)
	}
	return mb.Inline(kb).Build()
}

func trimLower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
