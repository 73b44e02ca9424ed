// Package app wires config, transport, storage and the household services
// into one process and owns their start and stop order.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"housebot/internal/bot"
	"housebot/internal/config"
	"housebot/internal/eventbus"
	"housebot/internal/household"
	"housebot/internal/household/dinner"
	"housebot/internal/household/views"
	"housebot/internal/httpapi"
	"housebot/internal/notifier"
	rtsup "housebot/internal/runtime/supervisor"
	"housebot/internal/scheduler"
	"housebot/internal/storage"
	"housebot/internal/transport"
	"housebot/internal/transport/telegram"
	"housebot/pkg/logx"
)

// Scheduled job names.
const (
	JobDaily      = "household.daily"
	JobViewsSweep = "views.sweep"
	JobDedupPrune = "dedup.prune"
)

const (
	viewsSweepEvery = 5 * time.Minute
	dedupPruneEvery = time.Hour
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.Store

	adapter *telegram.Adapter
	notif   *notifier.Service
	sched   *scheduler.Service
	house   *household.Household
	views   *views.Cache[dinner.Window]
	bot     *bot.Bot
	http    *httpapi.Server

	updates chan transport.Update
}

// NewApp loads the config at cfgPath and builds every component. Nothing
// runs until Start.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}

	// The chat sink needs the adapter, which needs a logger; attach it after.
	logs, log := logx.New(mapLogConfig(cfg), nil)
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	logs.SetSender(ad)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     eventbus.New(),
		adapter: ad,
		updates: make(chan transport.Update, 256),
	}
	fail := func(err error) (*App, error) {
		if a.store != nil {
			_ = a.store.Close()
		}
		_ = logs.Close()
		return nil, err
	}

	scfg, err := mapStorageConfig(cfg)
	if err != nil {
		return fail(err)
	}
	a.store, err = storage.Open(ctx, scfg, log.With(logx.String("comp", "storage")))
	if errors.Is(err, storage.ErrDisabled) {
		return fail(errors.New("storage.driver none cannot run the bot; use memory for a throwaway database"))
	}
	if err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return fail(err)
	}
	var n notifier.Notifier = notifier.Direct{Adapter: ad, Bus: a.bus}
	if ncfg.Enabled {
		a.notif = notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), a.bus, a.store)
		n = a.notif
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return fail(err)
	}
	a.sched = scheduler.New(schedCfg, log)

	settings, err := household.SettingsFrom(cfg.Household, a.sched.Location())
	if err != nil {
		return fail(err)
	}
	a.house = household.New(a.store, n, settings, log.With(logx.String("comp", "household")), a.bus)
	a.views = views.New[dinner.Window](settings.ViewTTL)

	if err := a.registerJobs(settings); err != nil {
		return fail(err)
	}

	bcfg, err := mapBotConfig(cfg)
	if err != nil {
		return fail(err)
	}
	a.bot = bot.New(bcfg, bot.Deps{
		Adapter:   ad,
		Household: a.house,
		Store:     a.store,
		Views:     a.views,
		RunDay:    a.runDay,
		Scheduler: a.sched,
	}, log.With(logx.String("comp", "bot")))

	if cfg.HTTP.Enabled {
		hcfg, err := mapHTTPConfig(cfg)
		if err != nil {
			return fail(err)
		}
		a.http = httpapi.New(hcfg, a.runDay, log.With(logx.String("comp", "http")))
	}
	return a, nil
}

func (a *App) registerJobs(s household.Settings) error {
	if err := a.sched.AddDaily(JobDaily, dailyAt(s.DailyHour, s.DailyMinute), 0, func(ctx context.Context) error {
		return a.house.HandleDay(ctx, time.Now().In(a.sched.Location()))
	}); err != nil {
		return err
	}
	if err := a.sched.AddInterval(JobViewsSweep, viewsSweepEvery, 10*time.Second, func(context.Context) error {
		if n := a.views.Sweep(time.Now()); n > 0 {
			a.log.Debug("expired views dropped", logx.Int("count", n))
		}
		return nil
	}); err != nil {
		return err
	}
	return a.sched.AddInterval(JobDedupPrune, dedupPruneEvery, 30*time.Second, func(ctx context.Context) error {
		n, err := a.store.PruneDedup(ctx, time.Now())
		if err == nil && n > 0 {
			a.log.Debug("dedup entries pruned", logx.Int64("count", n))
		}
		return err
	})
}

// runDay is the daily run shared by the cron job, /handleday and the HTTP
// trigger. It reports scheduler.ErrBusy while another run is in progress.
func (a *App) runDay(ctx context.Context) error {
	_, err := a.sched.RunNow(ctx, JobDaily)
	return err
}

// Done is closed when the app supervisor is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if _, err := mapBotConfig(cfg); err != nil {
			return err
		}
		_, err := household.SettingsFrom(cfg.Household, a.sched.Location())
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if a.notif != nil {
		a.notif.Start(a.sup.Context())
	}
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	} else {
		a.log.Info("scheduler disabled; daily run only via /handleday or HTTP")
	}

	mctx, cancel := context.WithTimeout(a.sup.Context(), 10*time.Second)
	if err := a.bot.PublishMenu(mctx); err != nil {
		a.log.Warn("command menu not published", logx.Err(err))
	}
	cancel()

	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.bot.Run(c, a.updates)
	})
	if a.http != nil {
		a.sup.Go("http.serve", a.http.Run)
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("started",
		logx.Bool("scheduler", a.sched.Enabled()),
		logx.Bool("notifier", a.notif != nil),
		logx.Bool("http", a.http != nil))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		runStep(ctx, a.log, name, limit, fn)
	}
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("notifier", time.Second, func(c context.Context) error {
		if a.notif != nil {
			a.notif.Stop(c)
		}
		return nil
	})
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	return a.logs.Close()
}

// runStep runs one shutdown step bounded by max and by ctx's deadline. A
// step that overruns is left running and its late completion is logged.
func runStep(ctx context.Context, log logx.Logger, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

	stepCtx := ctx
	if limit > 0 {
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, max(time.Until(dl), 0))
		}
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			log.Info("stop step finished after deadline",
				logx.String("name", name),
				logx.Err(err),
				logx.Duration("took", time.Since(start)))
		}()
	}
}
