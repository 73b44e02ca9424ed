package dinner

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housebot/internal/household/calendar"
	"housebot/internal/notifier"
	"housebot/internal/storage"
	"housebot/internal/transport"
	"housebot/pkg/logx"
)

type recorder struct {
	mu  sync.Mutex
	got []notifier.Notification
}

func (r *recorder) Notify(ctx context.Context, n notifier.Notification) error {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []notifier.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifier.Notification(nil), r.got...)
}

var (
	generalChat = transport.ChatTarget{ChatID: -100}
	dinnerChat  = transport.ChatTarget{ChatID: -200, ThreadID: 7}
	saturday    = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
)

func day(s string) time.Time {
	t, err := calendar.Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store   *storage.Store
	planner *Planner
	rec     *recorder
	ids     []int64
}

func newFixture(t *testing.T, residents int) fixture {
	t.Helper()
	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{Driver: "memory"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var ids []int64
	for i := range residents {
		id, err := st.UpsertResident(ctx, fmt.Sprintf("R%d", i), day("1990-01-01"), int64(100+i))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	rec := &recorder{}
	cfg := Config{
		Weekday:     time.Wednesday,
		GeneralChat: generalChat,
		DinnerChat:  dinnerChat,
		Location:    time.UTC,
	}
	p := New(st, rec, cfg, logx.Nop(), nil,
		WithClock(func() time.Time { return saturday }),
		WithRandSource(func() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }),
	)
	return fixture{store: st, planner: p, rec: rec, ids: ids}
}

func TestExtend_FullRoundRobin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 10)

	last, err := f.planner.Extend(ctx, nil)
	require.NoError(t, err)
	// Most recent Wednesday is 2026-10-14; 45 weekly dinners follow it.
	assert.Equal(t, day("2026-10-14").AddDate(0, 0, 45*7), last)

	rows, err := f.store.ListDinners(ctx, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 45)
	assert.Equal(t, day("2026-10-21"), rows[0].Date)

	seen := map[[2]int64]int{}
	heads := map[int64]int{}
	for i, d := range rows {
		assert.Equal(t, time.Wednesday, d.Date.Weekday())
		if i > 0 {
			assert.Equal(t, rows[i-1].Date.AddDate(0, 0, 7), d.Date)
		}
		require.False(t, d.Solo())
		a, b := min(d.HeadChefID, d.AssistantID), max(d.HeadChefID, d.AssistantID)
		seen[[2]int64{a, b}]++
		heads[d.HeadChefID]++
	}
	assert.Len(t, seen, 45, "every pair cooks together exactly once")
	for _, id := range f.ids {
		assert.Contains(t, []int{4, 5}, heads[id], "resident %d", id)
	}

	// A second extension continues after the last dinner.
	next, err := f.planner.Extend(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, last.AddDate(0, 0, 45*7), next)
}

func TestExtend_FromDate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 4)
	from := day("2027-01-06")
	last, err := f.planner.Extend(context.Background(), &from)
	require.NoError(t, err)
	assert.Equal(t, day("2027-02-17"), last)

	first, err := f.store.DinnerOn(context.Background(), day("2027-01-13"))
	require.NoError(t, err)
	assert.False(t, first.Archived)
}

func TestExtend_OddRosterCooksSolo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 5)

	_, err := f.planner.Extend(ctx, nil)
	require.NoError(t, err)

	rows, err := f.store.ListDinners(ctx, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 15)

	solo := map[int64]int{}
	for _, d := range rows {
		assert.NotZero(t, d.HeadChefID)
		if d.Solo() {
			solo[d.HeadChefID]++
		}
	}
	assert.Len(t, solo, 5)
	for _, id := range f.ids {
		assert.Equal(t, 1, solo[id])
	}
}

func TestExtend_NeedsTwoResidents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	_, err := f.planner.Extend(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotEnoughResidents)
}

func TestEnsureHorizon(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 4)
	today := calendar.Day(saturday)

	// No plan yet.
	extended, err := f.planner.EnsureHorizon(ctx, today)
	require.NoError(t, err)
	assert.True(t, extended)
	notes := f.rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, generalChat, notes[0].Target)
	assert.Equal(t, "dinner.plan", notes[0].Channel)
	assert.Contains(t, notes[0].Text, "New cooking plan")

	// Six weekly dinners end 2026-11-25, well inside three months.
	extended, err = f.planner.EnsureHorizon(ctx, today)
	require.NoError(t, err)
	assert.True(t, extended, "a short plan is extended")

	// Keep extending until it reaches the horizon; then it stops.
	for range 3 {
		_, err = f.planner.EnsureHorizon(ctx, today)
		require.NoError(t, err)
	}
	extended, err = f.planner.EnsureHorizon(ctx, today)
	require.NoError(t, err)
	assert.False(t, extended)

	last, err := f.store.LastDinner(ctx)
	require.NoError(t, err)
	assert.False(t, last.Date.Before(calendar.AddMonths(today, 3)))
}

func TestArchivePast_ExtendSkipsArchivedDates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 4)
	from := day("2026-10-14")
	_, err := f.planner.Extend(ctx, &from)
	require.NoError(t, err)

	// Everything up to 2026-11-25 is archived, past the clock's own week.
	require.NoError(t, f.planner.ArchivePast(ctx, day("2026-12-01")))
	active, err := f.store.ListDinners(ctx, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, active)

	last, err := f.planner.Extend(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, day("2027-01-06"), last)

	first, err := f.store.DinnerOn(ctx, day("2026-12-02"))
	require.NoError(t, err)
	assert.False(t, first.Archived)

	// Nothing left to archive.
	require.NoError(t, f.planner.ArchivePast(ctx, day("2026-12-01")))
}

func TestRemindAhead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 10)
	_, err := f.planner.Extend(ctx, nil)
	require.NoError(t, err)

	// Saturday + 3 is a Tuesday.
	require.NoError(t, f.planner.RemindAhead(ctx, saturday))
	assert.Empty(t, f.rec.all())

	// Sunday + 3 is Wednesday 2026-10-21.
	require.NoError(t, f.planner.RemindAhead(ctx, saturday.AddDate(0, 0, 1)))
	notes := f.rec.all()
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, dinnerChat, n.Target)
	assert.Equal(t, "2026-10-21", n.DedupKey)
	assert.Contains(t, n.Text, "Head chef")
	assert.Contains(t, n.Text, "tg://user?id=")
	require.NotNil(t, n.Options)
	assert.Equal(t, "HTML", n.Options.ParseMode)
	assert.NotNil(t, n.Options.ReplyMarkupAdapter)

	// Nothing planned that far ahead.
	require.NoError(t, f.planner.RemindAhead(ctx, day("2030-01-06")))
	assert.Len(t, f.rec.all(), 1)
}

func TestRSVPAndDayOf(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 4)
	_, err := f.planner.Extend(ctx, nil)
	require.NoError(t, err)
	wed := day("2026-10-21")

	r, err := f.planner.RecordRSVP(ctx, wed, 100, storage.AnswerYes)
	require.NoError(t, err)
	assert.Equal(t, "R0", r.Name)
	_, err = f.planner.RecordRSVP(ctx, wed, 101, storage.AnswerMaybe)
	require.NoError(t, err)
	_, err = f.planner.RecordRSVP(ctx, wed, 102, storage.AnswerNo)
	require.NoError(t, err)

	_, err = f.planner.RecordRSVP(ctx, wed, 999, storage.AnswerYes)
	assert.ErrorIs(t, err, ErrUnknownResident)
	_, err = f.planner.RecordRSVP(ctx, day("2026-10-22"), 100, storage.AnswerYes)
	assert.ErrorIs(t, err, ErrNoDinner)

	st, err := f.planner.Status(ctx, wed)
	require.NoError(t, err)
	assert.Len(t, st.Yes, 1)
	assert.Len(t, st.No, 1)
	require.Len(t, st.Maybe, 1)
	require.Len(t, st.Missing, 1)
	assert.Equal(t, "R3", st.Missing[0].Name)

	require.NoError(t, f.planner.RemindDayOf(ctx, time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)))
	notes := f.rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "dinner.tonight", notes[0].Channel)
	assert.Contains(t, notes[0].Text, "tg://user?id=103")
	assert.Contains(t, notes[0].Text, "tg://user?id=101")
	assert.NotContains(t, notes[0].Text, "tg://user?id=100")

	// Not a dinner weekday.
	require.NoError(t, f.planner.RemindDayOf(ctx, time.Date(2026, 10, 22, 9, 0, 0, 0, time.UTC)))
	assert.Len(t, f.rec.all(), 1)
}

func TestWindow_EncodeParse(t *testing.T) {
	t.Parallel()

	w := Window{Start: day("2026-10-17"), End: day("2026-11-14"), Continued: true}
	assert.Equal(t, "20261017.20261114.1", w.Encode())
	got, err := ParseWindow(w.Encode())
	require.NoError(t, err)
	assert.Equal(t, w, got)

	for _, bad := range []string{"", "20261017.20261114", "2026-10-17.20261114.0", "20261114.20261017.0"} {
		_, err := ParseWindow(bad)
		assert.Error(t, err, bad)
	}
}

func TestMore_SplitsLongViews(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2)
	w := f.planner.FirstWindow(saturday)
	assert.InDelta(t, 4, w.Weeks(), 0.01)

	for _, want := range []float64{8, 12, 16} {
		var split bool
		w, split = f.planner.More(w)
		require.False(t, split)
		assert.InDelta(t, want, w.Weeks(), 0.01)
	}

	prevEnd := w.End
	next, split := f.planner.More(w)
	require.True(t, split)
	assert.True(t, next.Continued)
	assert.Equal(t, prevEnd, next.Start)
	assert.InDelta(t, 4, next.Weeks(), 0.01)
}

func TestScheduleMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 10)
	_, err := f.planner.Extend(ctx, nil)
	require.NoError(t, err)

	w := f.planner.FirstWindow(saturday)
	msg, err := f.planner.ScheduleMessage(ctx, w, false)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Dinner schedule")
	assert.Contains(t, msg.Text, "Wed 21 Oct 2026")
	assert.Contains(t, msg.Text, "Wed 11 Nov 2026")
	assert.NotContains(t, msg.Text, "Wed 18 Nov 2026")
	assert.NotNil(t, msg.Opt.ReplyMarkupAdapter)

	cont, err := f.planner.ScheduleMessage(ctx, Window{Start: w.End, End: w.End.AddDate(0, 0, 28), Continued: true}, true)
	require.NoError(t, err)
	assert.Contains(t, cont.Text, "continued")
}

func TestPreview_DoesNotWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 5)

	rows, err := f.planner.Preview(ctx, 0)
	require.NoError(t, err)
	// 5 residents plus a guest slot: 15 pairs, 5 of them solo.
	require.Len(t, rows, 15)
	solo := 0
	for _, d := range rows {
		assert.NotEmpty(t, d.HeadChef.Name)
		if d.Solo() {
			solo++
			assert.Empty(t, d.Assistant.Name)
		}
	}
	assert.Equal(t, 5, solo)
	assert.Equal(t, day("2026-10-21"), rows[0].Date)

	limited, err := f.planner.Preview(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)

	stored, err := f.store.ListDinners(ctx, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, stored)

	msg := PreviewMessage(limited)
	assert.Contains(t, msg.Text, "Schedule preview")
	assert.Contains(t, msg.Text, FormatDate(rows[0].Date))
}

func TestUpcoming(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, 4)
	_, err := f.planner.Extend(ctx, nil)
	require.NoError(t, err)

	rows, err := f.planner.Upcoming(ctx, saturday, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, day("2026-10-21"), rows[0].Date)
	assert.Equal(t, day("2026-10-28"), rows[1].Date)
}
