package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"housebot/pkg/logx"
)

var (
	ErrUnknownJob = errors.New("scheduler: unknown job")
	ErrBusy       = errors.New("scheduler: job already running")
)

// Config controls the scheduler service.
type Config struct {
	Enabled        bool
	Timezone       string // IANA TZ, e.g. "Europe/Berlin"
	DefaultTimeout time.Duration
	HistorySize    int
}

// Job is the unit of scheduled work.
type Job func(ctx context.Context) error

type HistoryItem struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
	Skipped  bool
}

type scheduleDef struct {
	name    string
	spec    string // cron spec or @every
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	running *atomic.Bool
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   map[string]*scheduleDef

	runCtx    context.Context
	runCancel context.CancelFunc

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger) *Service {
	s := &Service{
		cfg:    cfg,
		log:    log.With(logx.String("comp", "scheduler")),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:   map[string]*scheduleDef{},
	}
	s.loc = s.loadLocation(cfg.Timezone)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Location is the timezone schedules are evaluated in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	if oldTZ == newTZ {
		return
	}
	s.loc = s.loadLocation(newTZ)
	if s.c != nil {
		s.restartLocked()
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = s.newCronLocked()
	for _, d := range s.defs {
		s.addCronLocked(d)
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.defs)))
}

// Stop cancels running jobs and waits for them to return.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
	s.log.Info("scheduler stopped")
}

// AddCron registers job under name, replacing any job with the same name.
// Jobs added before Start are registered when the scheduler starts.
func (s *Service) AddCron(name, spec string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("scheduler: job name required")
	}
	if job == nil {
		return errors.New("scheduler: job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("scheduler: %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	d := &scheduleDef{name: name, spec: spec, timeout: timeout, job: job, running: new(atomic.Bool)}
	s.defs[name] = d
	if s.c != nil {
		return s.addCronLocked(d)
	}
	return nil
}

func (s *Service) AddInterval(name string, every, timeout time.Duration, job Job) error {
	if every <= 0 {
		return fmt.Errorf("scheduler: %s: interval must be > 0", name)
	}
	return s.AddCron(name, "@every "+every.String(), timeout, job)
}

// AddDaily runs job every day at HH:MM in the scheduler timezone.
func (s *Service) AddDaily(name, atHHMM string, timeout time.Duration, job Job) error {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return err
	}
	return s.AddCron(name, fmt.Sprintf("%d %d * * *", m, h), timeout, job)
}

// AddSchedule accepts any form ParseSchedule understands.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job Job) error {
	p, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	if p.Kind == SpecInterval {
		return s.AddInterval(name, p.Every, timeout, job)
	}
	return s.AddCron(name, p.Cron, timeout, job)
}

// Remove drops the job and reports whether it existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(strings.TrimSpace(name))
}

// RunNow runs a registered job immediately through the same guard as its
// schedule, so a manual trigger never overlaps a scheduled run.
func (s *Service) RunNow(ctx context.Context, name string) (HistoryItem, error) {
	s.mu.Lock()
	d, ok := s.defs[strings.TrimSpace(name)]
	s.mu.Unlock()
	if !ok {
		return HistoryItem{}, ErrUnknownJob
	}
	item := s.run(ctx, d)
	if item.Skipped {
		return item, ErrBusy
	}
	if item.Error != "" {
		return item, errors.New(item.Error)
	}
	return item, nil
}

func (s *Service) removeLocked(name string) bool {
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) newCronLocked() *cron.Cron {
	cl := cronLogger{log: s.log}
	return cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	ctx := s.runCtx
	id, err := s.c.AddFunc(d.spec, func() { s.run(ctx, d) })
	if err != nil {
		return err
	}
	d.entryID = id
	return nil
}

// restartLocked does not wait for running jobs: they take s.mu to record
// their result.
func (s *Service) restartLocked() {
	s.c.Stop()
	s.c = s.newCronLocked()
	for _, d := range s.defs {
		if err := s.addCronLocked(d); err != nil {
			s.log.Warn("re-register failed", logx.String("job", d.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler restarted", logx.String("tz", s.loc.String()))
}

func (s *Service) loadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) resolveTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.DefaultTimeout
}

// run executes one job. A run that starts while the previous one is still
// going is recorded as skipped.
func (s *Service) run(ctx context.Context, d *scheduleDef) HistoryItem {
	item := HistoryItem{Name: d.name, Started: time.Now()}
	if !d.running.CompareAndSwap(false, true) {
		item.Skipped = true
		s.log.Warn("job still running, skipped", logx.String("job", d.name))
		s.record(item)
		return item
	}
	defer d.running.Store(false)

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx := ctx
	if timeout := s.resolveTimeout(d.timeout); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := s.invoke(runCtx, d)
	item.Duration = time.Since(item.Started)
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("job failed", logx.String("job", d.name), logx.Duration("took", item.Duration), logx.Err(err))
	} else {
		s.log.Info("job ok", logx.String("job", d.name), logx.Duration("took", item.Duration))
	}
	s.record(item)
	return item
}

func (s *Service) invoke(ctx context.Context, d *scheduleDef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("job panic", logx.String("job", d.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return d.job(ctx)
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	if size > 0 && len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
}

// cronLogger routes robfig/cron's own logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
