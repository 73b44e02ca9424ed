package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housebot/internal/eventbus"
	"housebot/internal/transport"
	"housebot/internal/transport/transporttest"
	"housebot/pkg/logx"
)

type memDedup struct {
	mu sync.Mutex
	m  map[string]time.Time
}

func (d *memDedup) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.m[key]
	return t, ok, nil
}

func (d *memDedup) PutDedup(ctx context.Context, key string, until time.Time) error {
	d.mu.Lock()
	d.m[key] = until
	d.mu.Unlock()
	return nil
}

func (d *memDedup) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.m)
}

func fastConfig() Config {
	return Config{
		Enabled:     true,
		Workers:     1,
		RatePerSec:  1000,
		RetryMax:    2,
		RetryBase:   time.Millisecond,
		DedupWindow: time.Hour,
	}
}

func start(t *testing.T, cfg Config, ad transport.Adapter, bus eventbus.Bus, store DedupStore) *Service {
	t.Helper()
	s := New(cfg, ad, logx.Nop(), bus, store)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestService_DeliversAndDedups(t *testing.T) {
	t.Parallel()

	ad := transporttest.New()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()
	s := start(t, fastConfig(), ad, bus, nil)

	n := Notification{Channel: "dinner.ahead", Target: transport.ChatTarget{ChatID: -1}, Text: "cook", DedupKey: "2026-10-21"}
	ctx := context.Background()
	require.NoError(t, s.Notify(ctx, n))
	n.Text = "cook (edited)"
	require.NoError(t, s.Notify(ctx, n), "duplicates are swallowed")

	require.Eventually(t, func() bool { return len(ad.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "cook", ad.Sent()[0].Text)

	seen := map[string]bool{}
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				seen[e.Type] = true
			default:
				return seen[eventbus.TypeNotifierSent] && seen[eventbus.TypeNotifierDeduped]
			}
		}
	}, time.Second, 5*time.Millisecond)

	hist := s.Snapshot()
	require.Len(t, hist, 1)
	assert.Equal(t, "dinner.ahead", hist[0].Channel)
}

func TestService_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	ad := transporttest.New()
	ad.SendErr = errors.New("flaky")
	ad.FailSends = 2
	s := start(t, fastConfig(), ad, nil, nil)

	require.NoError(t, s.Notify(context.Background(), Notification{Target: transport.ChatTarget{ChatID: 1}, Text: "hi"}))
	require.Eventually(t, func() bool { return len(ad.Sent()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestService_GivesUpAfterRetryMax(t *testing.T) {
	t.Parallel()

	ad := transporttest.New()
	ad.SendErr = errors.New("down")
	ad.FailSends = 100
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	s := start(t, fastConfig(), ad, bus, nil)

	require.NoError(t, s.Notify(context.Background(), Notification{Channel: "x", Target: transport.ChatTarget{ChatID: 1}, Text: "hi"}))
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Type == eventbus.TypeNotifierFailed {
					ev := e.Data.(NotificationEvent)
					return ev.Error == "down"
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, ad.Sent())
}

func TestService_PersistentDedup(t *testing.T) {
	t.Parallel()

	store := &memDedup{m: map[string]time.Time{}}
	cfg := fastConfig()
	cfg.PersistDedup = true

	first := start(t, cfg, transporttest.New(), nil, store)
	n := Notification{Channel: "birthday.week", Target: transport.ChatTarget{ChatID: 9}, Text: "soon", DedupKey: "03-14"}
	require.NoError(t, first.Notify(context.Background(), n))
	require.Eventually(t, func() bool { return store.len() == 1 }, time.Second, 5*time.Millisecond)

	// A fresh service (a restart) still suppresses the key.
	ad := transporttest.New()
	second := start(t, cfg, ad, nil, store)
	require.NoError(t, second.Notify(context.Background(), n))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, ad.Sent())
}

func TestService_DisabledAndStopped(t *testing.T) {
	t.Parallel()

	s := New(Config{}, transporttest.New(), logx.Nop(), nil, nil)
	s.Start(context.Background())
	assert.ErrorIs(t, s.Notify(context.Background(), Notification{Text: "x"}), ErrDisabled)

	s = New(fastConfig(), transporttest.New(), logx.Nop(), nil, nil)
	assert.ErrorIs(t, s.Notify(context.Background(), Notification{Text: "x"}), ErrStopped)

	s.Start(context.Background())
	s.Stop(context.Background())
	assert.ErrorIs(t, s.Notify(context.Background(), Notification{Text: "x"}), ErrStopped)
}

func TestDedupKey(t *testing.T) {
	t.Parallel()

	a := Notification{Channel: "c", Target: transport.ChatTarget{ChatID: 1}, Text: "t"}
	b := a
	b.Text = "u"
	assert.Empty(t, dedupKey(Notification{Text: "t"}))
	assert.NotEqual(t, dedupKey(a), dedupKey(b))
	a.DedupKey, b.DedupKey = "k", "k"
	assert.Equal(t, dedupKey(a), dedupKey(b))
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt <= 6; attempt++ {
		d := retryDelay(cfg, attempt)
		assert.LessOrEqual(t, d, time.Second)
		assert.Positive(t, d)
	}
	d := retryDelay(cfg, 2)
	assert.GreaterOrEqual(t, d, 140*time.Millisecond)
	assert.LessOrEqual(t, d, 260*time.Millisecond)
}

func TestDirect(t *testing.T) {
	t.Parallel()

	ad := transporttest.New()
	require.NoError(t, Direct{Adapter: ad}.Notify(context.Background(), Notification{Target: transport.ChatTarget{ChatID: 3}, Text: "x"}))
	require.Len(t, ad.SentTo(3), 1)

	ad.SendErr, ad.FailSends = errors.New("nope"), 1
	assert.Error(t, Direct{Adapter: ad}.Notify(context.Background(), Notification{Text: "y"}))
}
