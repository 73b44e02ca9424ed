package bot

import (
	"context"
	"errors"
	"strings"

	"housebot/internal/household/calendar"
	"housebot/internal/household/dinner"
	"housebot/internal/storage"
	"housebot/internal/transport"
	"housebot/pkg/tgui"
)

func (b *Bot) builtinCallbacks() []CallbackRoute {
	return []CallbackRoute{
		{Scope: "menu", Action: "hide", Handle: b.cbHide},
		{Scope: "menu", Action: "more", Handle: b.cbMenuMore},
		{Scope: "dinner", Action: "list", Handle: b.cbDinnerList},
		{Scope: "dinner", Action: "more", Handle: b.cbDinnerMore},
		{Scope: "dinner", Action: "rsvp", Handle: b.cbRSVP},
		{Scope: "bday", Action: "list", Handle: b.cbBirthdays},
	}
}

func (b *Bot) cbHide(ctx context.Context, req *Request) error {
	b.views.Delete(req.Message)
	return b.adapter.DeleteMessage(ctx, req.Message)
}

func (b *Bot) cbMenuMore(ctx context.Context, req *Request) error {
	switch trimLower(req.Payload) {
	case "", "main":
		return b.edit(ctx, req.Message, menuMessage(req.Owner, false))
	case "all":
		return b.edit(ctx, req.Message, menuMessage(req.Owner, true))
	case "residents":
		m, err := b.residentsMessage(ctx, true)
		if err != nil {
			return err
		}
		return b.edit(ctx, req.Message, m)
	default:
		return userErr("unknown menu section")
	}
}

func (b *Bot) cbDinnerList(ctx context.Context, req *Request) error {
	return b.postSchedule(ctx, req.Chat, b.house.Dinner.FirstWindow(b.today()))
}

// cbDinnerMore grows the schedule shown on the pressed message. A view that
// is no longer cached is not edited; the grown view goes out as a new
// message. When the view gets too long it is split: the old message keeps
// its window without the button and a continuation is posted.
func (b *Bot) cbDinnerMore(ctx context.Context, req *Request) error {
	w, err := dinner.ParseWindow(req.Payload)
	if err != nil {
		return userErr("this button is outdated, send /dinner again")
	}
	live := b.views.Valid(req.Message)
	next, split := b.house.Dinner.More(w)

	if split {
		if live {
			frozen, err := b.house.Dinner.ScheduleMessage(ctx, w, true)
			if err != nil {
				return err
			}
			if err := b.edit(ctx, req.Message, frozen); err != nil {
				return err
			}
			b.views.Delete(req.Message)
		}
		return b.postSchedule(ctx, req.Chat, next)
	}

	if !live {
		return b.postSchedule(ctx, req.Chat, next)
	}
	m, err := b.house.Dinner.ScheduleMessage(ctx, next, false)
	if err != nil {
		return err
	}
	if err := b.edit(ctx, req.Message, m); err != nil {
		return err
	}
	b.views.Put(req.Message, next)
	return nil
}

func (b *Bot) cbRSVP(ctx context.Context, req *Request) error {
	key, ans, ok := strings.Cut(req.Payload, ":")
	date, err := calendar.Parse(key)
	answer, valid := storage.ParseAnswer(ans)
	if !ok || err != nil || !valid {
		return userErr("this button is outdated")
	}
	r, err := b.house.Dinner.RecordRSVP(ctx, date, req.FromID, answer)
	switch {
	case errors.Is(err, dinner.ErrUnknownResident):
		return userErr("you are not on the resident list")
	case errors.Is(err, dinner.ErrNoDinner):
		return userErr("there is no dinner on " + dinner.FormatDate(date))
	case err != nil:
		return err
	}
	req.Answer = "Thanks " + r.Name + ", noted: " + string(answer)
	return nil
}

func (b *Bot) cbBirthdays(ctx context.Context, req *Request) error {
	m, err := b.house.Birthday.ListMessage(ctx, b.today())
	if err != nil {
		return err
	}
	_, err = b.send(ctx, req.Chat, m)
	return err
}

// edit ignores "not modified": pressing the same button twice is harmless.
func (b *Bot) edit(ctx context.Context, ref transport.MessageRef, m tgui.Message) error {
	err := m.Edit(ctx, b.adapter, ref)
	if errors.Is(err, transport.ErrMessageNotModified) {
		return nil
	}
	return err
}
