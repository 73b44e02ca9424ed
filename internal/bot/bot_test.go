package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"housebot/internal/household"
	"housebot/internal/household/calendar"
	"housebot/internal/household/dinner"
	"housebot/internal/notifier"
	"housebot/internal/scheduler"
	"housebot/internal/storage"
	"housebot/internal/transport"
	"housebot/internal/transport/transporttest"
	"housebot/pkg/logx"
)

const (
	ownerID = int64(100)
	chatID  = int64(-42)
)

var saturday = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notifier.Notification) error { return nil }

type fixture struct {
	bot   *Bot
	ad    *transporttest.Adapter
	store *storage.Store
	house *household.Household
	days  atomic.Int32
}

func newFixture(t *testing.T, residents int) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{Driver: "memory"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	for i := range residents {
		_, err := st.UpsertResident(ctx, fmt.Sprintf("R%d", i), time.Date(1990, 1, 1+i, 0, 0, 0, 0, time.UTC), ownerID+int64(i))
		require.NoError(t, err)
	}

	f := &fixture{ad: transporttest.New(), store: st}
	f.house = household.New(st, nopNotifier{}, household.Settings{
		Dinner: dinner.Config{
			Weekday:     time.Wednesday,
			GeneralChat: transport.ChatTarget{ChatID: chatID},
			Location:    time.UTC,
		},
	}, logx.Nop(), nil, dinner.WithClock(func() time.Time { return saturday }))

	f.bot = New(Config{Owners: []int64{ownerID}, Workers: 2}, Deps{
		Adapter:   f.ad,
		Household: f.house,
		Store:     st,
		RunDay: func(ctx context.Context) error {
			f.days.Add(1)
			return nil
		},
	}, logx.Nop())
	return f
}

func (f *fixture) command(from int64, text string) {
	f.bot.HandleUpdate(context.Background(), transport.Update{
		Kind:    transport.UpdateMessage,
		Message: &transport.Message{ID: 1, ChatID: chatID, FromID: from, Text: text},
	})
}

var cbSeq atomic.Int64

// press simulates a button press on ref and returns the callback answer.
func (f *fixture) press(from int64, ref transport.MessageRef, data string) string {
	id := fmt.Sprintf("cb-%d", cbSeq.Add(1))
	f.bot.HandleUpdate(context.Background(), transport.Update{
		Kind: transport.UpdateCallback,
		Callback: &transport.Callback{
			ID: id, FromID: from, ChatID: ref.ChatID, ThreadID: ref.ThreadID, MessageID: ref.MessageID, Data: data,
		},
	})
	ans, _ := f.ad.Answer(id)
	return ans
}

func (f *fixture) last() transporttest.Sent {
	sent := f.ad.Sent()
	if len(sent) == 0 {
		return transporttest.Sent{}
	}
	return sent[len(sent)-1]
}

func buttons(s transporttest.Sent) []string {
	if s.Opt == nil {
		return nil
	}
	rm, ok := s.Opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	if !ok {
		return nil
	}
	var out []string
	for _, row := range rm.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func hasMoreButton(s transporttest.Sent) bool {
	for _, d := range buttons(s) {
		if strings.HasPrefix(d, "dinner:more:") {
			return true
		}
	}
	return false
}

func TestUnknownAndUnauthorized(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	f.command(ownerID, "/nope")
	assert.Equal(t, "unknown command, try /help", f.last().Text)

	f.command(ownerID+1, "/extend")
	assert.Equal(t, "unauthorized", f.last().Text)

	f.command(ownerID, "just chatting")
	assert.Len(t, f.ad.Sent(), 2)
}

func TestHelp_HidesOwnerCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	f.command(ownerID+1, "/help")
	assert.Contains(t, f.last().Text, "/dinner")
	assert.NotContains(t, f.last().Text, "/extend")

	f.command(ownerID, "/help@housebot")
	assert.Contains(t, f.last().Text, "/extend [YYYY-MM-DD]")
}

func TestExtend_WritesPlanAndAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 4)

	f.command(ownerID, "/extend")
	assert.Contains(t, f.last().Text, "Plan extended")
	// 4 residents: 6 dinners after Wed 2026-10-14.
	assert.Contains(t, f.last().Text, dinner.FormatDate(time.Date(2026, 11, 25, 0, 0, 0, 0, time.UTC)))

	f.command(ownerID, "/extend not-a-date")
	assert.Equal(t, "usage: /extend [YYYY-MM-DD]", f.last().Text)

	audit, err := f.store.RecentAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, "extend", audit[0].Action)
	assert.False(t, audit[0].OK)
	assert.Equal(t, "not-a-date", audit[0].Target)
	assert.True(t, audit[1].OK)
	assert.Equal(t, ownerID, audit[1].ActorID)
}

func TestExtend_NeedsResidents(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	f.command(ownerID, "/extend")
	assert.Equal(t, "need at least two residents to plan dinners", f.last().Text)
}

func TestDinner_ShowMoreGrowsThenSplits(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 4)
	for range 4 {
		f.command(ownerID, "/extend")
	}

	f.command(ownerID+2, "/dinner")
	first := f.last()
	require.False(t, first.Edit)
	assert.Contains(t, first.Text, "Dinner schedule")
	assert.Contains(t, first.Text, dinner.FormatDate(time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)))
	require.True(t, hasMoreButton(first))

	planner := f.house.Dinner
	w := planner.FirstWindow(saturday)
	got, ok := f.bot.views.Get(first.Ref)
	require.True(t, ok)
	assert.Equal(t, w, got)

	// 4 -> 8 -> 12 -> 16 weeks are edits of the same message.
	for range 3 {
		f.press(ownerID+2, first.Ref, "dinner:more:"+w.Encode())
		next, split := planner.More(w)
		require.False(t, split)
		w = next

		edited := f.last()
		assert.True(t, edited.Edit)
		assert.Equal(t, first.Ref, edited.Ref)
		got, _ := f.bot.views.Get(first.Ref)
		assert.Equal(t, w, got)
	}
	assert.InDelta(t, 16, w.Weeks(), 0.01)

	// 20 weeks would be too long: freeze and continue.
	before := len(f.ad.Sent())
	f.press(ownerID+2, first.Ref, "dinner:more:"+w.Encode())
	sent := f.ad.Sent()[before:]
	require.Len(t, sent, 2)

	assert.True(t, sent[0].Edit)
	assert.Equal(t, first.Ref, sent[0].Ref)
	assert.False(t, hasMoreButton(sent[0]))
	assert.False(t, f.bot.views.Valid(first.Ref))

	assert.False(t, sent[1].Edit)
	assert.Contains(t, sent[1].Text, "continued")
	cont, ok := f.bot.views.Get(sent[1].Ref)
	require.True(t, ok)
	assert.True(t, cont.Continued)
	assert.Equal(t, w.End, cont.Start)
}

func TestDinner_ShowMoreOnExpiredViewSendsNew(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 4)
	f.command(ownerID, "/extend")

	w := f.house.Dinner.FirstWindow(saturday)
	stale := transport.MessageRef{ChatID: chatID, MessageID: 999}
	f.press(ownerID, stale, "dinner:more:"+w.Encode())

	last := f.last()
	assert.False(t, last.Edit)
	assert.NotEqual(t, stale, last.Ref)
	assert.True(t, f.bot.views.Valid(last.Ref))

	ans := f.press(ownerID, stale, "dinner:more:garbage")
	assert.Equal(t, "this button is outdated, send /dinner again", ans)
}

func TestRSVP(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 4)
	f.command(ownerID, "/extend")

	ref := transport.MessageRef{ChatID: chatID, MessageID: 5}
	ans := f.press(ownerID+1, ref, "dinner:rsvp:2026-10-21:yes")
	assert.Equal(t, "Thanks R1, noted: yes", ans)

	rsvps, err := f.store.ListRSVPs(ctx, time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rsvps, 1)
	assert.Equal(t, storage.AnswerYes, rsvps[0].Answer)

	assert.Equal(t, "you are not on the resident list", f.press(999, ref, "dinner:rsvp:2026-10-21:no"))
	assert.Equal(t, "there is no dinner on Thu 22 Oct 2026", f.press(ownerID, ref, "dinner:rsvp:2026-10-22:no"))
	assert.Equal(t, "this button is outdated", f.press(ownerID, ref, "dinner:rsvp:2026-10-21:perhaps"))
}

func TestMenuCallbacks(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)

	f.command(ownerID+1, "/menu")
	menu := f.last()
	assert.Contains(t, buttons(menu), "menu:more:all")

	f.press(ownerID+1, menu.Ref, "menu:more:all")
	assert.True(t, f.last().Edit)
	assert.Contains(t, f.last().Text, "Everything I can do")
	assert.NotContains(t, f.last().Text, "/extend")

	f.press(ownerID+1, menu.Ref, "menu:more:residents")
	assert.Contains(t, f.last().Text, "Residents (3)")

	assert.Equal(t, "unknown menu section", f.press(ownerID+1, menu.Ref, "menu:more:secret"))

	f.press(ownerID+1, menu.Ref, "menu:hide")
	assert.Equal(t, []transport.MessageRef{menu.Ref}, f.ad.Deleted())

	assert.Equal(t, "this button is no longer supported", f.press(ownerID, menu.Ref, "old:thing"))
}

func TestBirthdaysAndResidents(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	f.command(ownerID, "/birthdays")
	assert.Contains(t, f.last().Text, "Birthdays in the next year")
	assert.Contains(t, f.last().Text, "R0")

	f.press(ownerID, transport.MessageRef{ChatID: chatID, MessageID: 3}, "bday:list")
	assert.Contains(t, f.last().Text, "Birthdays in the next year")

	f.command(ownerID, "/residents")
	assert.Contains(t, f.last().Text, "Residents (2)")
	assert.Contains(t, f.last().Text, "born 2 Jan 1990")
}

func TestPreview_DoesNotPersist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 4)

	f.command(ownerID, "/preview 2")
	text := f.last().Text
	assert.Contains(t, text, "Schedule preview")
	assert.Contains(t, text, " 2. ")
	assert.NotContains(t, text, " 3. ")

	f.command(ownerID, "/preview --n 3")
	assert.Contains(t, f.last().Text, " 3. ")

	f.command(ownerID, "/preview many")
	assert.Equal(t, "usage: /preview [n]", f.last().Text)

	rows, err := f.store.ListDinners(ctx, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHandleDay(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	f.command(ownerID, "/handleday")
	assert.Equal(t, "daily run done", f.last().Text)
	assert.EqualValues(t, 1, f.days.Load())

	f.bot.runDay = func(context.Context) error { return errors.New("birthday: boom") }
	f.command(ownerID, "/handleday")
	assert.Equal(t, "daily run finished with errors: birthday: boom", f.last().Text)

	f.bot.runDay = func(context.Context) error { return scheduler.ErrBusy }
	f.command(ownerID, "/handleday")
	assert.Equal(t, "daily run already in progress, try again later", f.last().Text)
}

func TestHandleDay_WithoutSharedRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.bot.runDay = nil

	f.command(ownerID, "/handleday")
	assert.Equal(t, "daily run done", f.last().Text)
	assert.Zero(t, f.days.Load())

	// The household clock says Saturday 2026-10-17, so the plan starts the
	// Wednesday after 2026-10-14.
	rows, err := f.store.ListDinners(context.Background(), time.Time{}, time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), rows[0].Date)
}

func TestPanicGetsGenericReply(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.bot.register(Command{Name: "explode", Handle: func(context.Context, *Request) error { panic("kaput") }})

	f.command(ownerID, "/explode")
	assert.True(t, strings.HasPrefix(f.last().Text, "⚠️ something went wrong (ref "))
}

func TestPublishMenu_PublicOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	require.NoError(t, f.bot.PublishMenu(context.Background()))

	var names []string
	for _, c := range f.ad.Commands() {
		names = append(names, c.Command)
	}
	assert.Equal(t, []string{"start", "help", "menu", "dinner", "birthdays", "residents"}, names)
}

func TestApply_SwapsOwners(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.bot.Apply(Config{Owners: []int64{7}})

	f.command(ownerID, "/status")
	assert.Equal(t, "unauthorized", f.last().Text)
	f.command(7, "/status")
	assert.Equal(t, "scheduler is not running", f.last().Text)
}

func TestRun_WorkerPool(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan transport.Update)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.bot.Run(ctx, updates)
	}()

	updates <- transport.Update{
		Kind:    transport.UpdateMessage,
		Message: &transport.Message{ChatID: chatID, FromID: ownerID, Text: "/start"},
	}
	require.Eventually(t, func() bool {
		return strings.Contains(f.last().Text, "house bot")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
	assert.Nil(t, f.bot.Supervisor())
}

func TestRSVPDateKeyMatchesKeyboard(t *testing.T) {
	t.Parallel()
	kb := dinner.RSVPKeyboard(time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC))
	data := kb.Markup().InlineKeyboard[0][0].Data
	assert.Equal(t, "dinner:rsvp:"+calendar.Key(time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC))+":yes", data)
}
