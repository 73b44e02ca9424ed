package bot

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"housebot/internal/household"
	"housebot/internal/household/dinner"
	"housebot/internal/household/views"
	rtsup "housebot/internal/runtime/supervisor"
	"housebot/internal/scheduler"
	"housebot/internal/storage"
	"housebot/internal/transport"
	"housebot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // overrides Config.CommandTimeout
	Audit       bool
	Handle      HandlerFunc
}

type CallbackRoute struct {
	Scope   string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  HandlerFunc
}

func (r CallbackRoute) key() string { return r.Scope + ":" + r.Action }

// Request is one routed update.
type Request struct {
	Update       transport.Update
	Chat         transport.ChatTarget
	FromID       int64
	FromUsername string
	Command      string // command name, or "cb:scope:action"
	Args         []string
	Flags        map[string]string
	BoolFlags    map[string]bool

	// Callbacks only.
	Payload string
	Message transport.MessageRef // message the button belongs to
	Answer  string               // toast shown to the user

	ReqID  string
	Logger logx.Logger
	Owner  bool
}

// UserError is shown to the user as is. Other errors get a generic reply.
type UserError struct{ Msg string }

func (e *UserError) Error() string { return e.Msg }

func userErr(msg string) error { return &UserError{Msg: msg} }

type Config struct {
	Owners         []int64
	Workers        int           // default NumCPU, at least 2
	QueueSize      int           // default 256
	CommandTimeout time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = max(runtime.NumCPU(), 2)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 30 * time.Second
	}
	c.Owners = append([]int64(nil), c.Owners...)
	return c
}

// Store is the storage the bot reads directly.
type Store interface {
	AuditStore
	ListResidents(ctx context.Context) ([]storage.Resident, error)
}

// SchedulerView exposes job state for /status.
type SchedulerView interface {
	Snapshot() scheduler.Snapshot
}

type Deps struct {
	Adapter   transport.Adapter
	Household *household.Household
	Store     Store
	Views     *views.Cache[dinner.Window]
	// RunDay runs the daily jobs now. It is shared with the cron job and
	// the HTTP trigger.
	RunDay    func(ctx context.Context) error
	Scheduler SchedulerView
}

type Bot struct {
	log       logx.Logger
	adapter   transport.Adapter
	house     *household.Household
	store     Store
	views     *views.Cache[dinner.Window]
	runDay    func(ctx context.Context) error
	scheduler SchedulerView

	mu  sync.RWMutex
	cfg Config

	commands  []Command
	byName    map[string]int
	callbacks map[string]CallbackRoute

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor
	jobs    chan func()
}

func New(cfg Config, d Deps, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	b := &Bot{
		log:       log,
		adapter:   d.Adapter,
		house:     d.Household,
		store:     d.Store,
		views:     d.Views,
		runDay:    d.RunDay,
		scheduler: d.Scheduler,
		cfg:       cfg,
		byName:    map[string]int{},
		callbacks: map[string]CallbackRoute{},
		jobs:      make(chan func(), cfg.QueueSize),
	}
	if b.views == nil {
		b.views = views.New[dinner.Window](15 * time.Minute)
	}
	for _, c := range b.builtinCommands() {
		b.register(c)
	}
	for _, r := range b.builtinCallbacks() {
		b.callbacks[r.key()] = r
	}
	return b
}

func (b *Bot) register(c Command) {
	idx := len(b.commands)
	b.commands = append(b.commands, c)
	b.byName[c.Name] = idx
	for _, a := range c.Aliases {
		b.byName[a] = idx
	}
}

// Apply swaps owners and timeouts. Worker and queue sizes need a restart.
func (b *Bot) Apply(cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cfg = cfg.withDefaults()
	cfg.Workers, cfg.QueueSize = b.cfg.Workers, b.cfg.QueueSize
	b.cfg = cfg
}

func (b *Bot) config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

func (b *Bot) isOwner(id int64) bool {
	return slices.Contains(b.config().Owners, id)
}

// Supervisor is nil when the bot is not running.
func (b *Bot) Supervisor() *rtsup.Supervisor {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if !b.running {
		return nil
	}
	return b.sup
}

func (b *Bot) setSupervisor(sup *rtsup.Supervisor, running bool) {
	b.runMu.Lock()
	b.sup = sup
	b.running = running
	b.runMu.Unlock()
}

// PublishMenu pushes the public commands to the chat menu when the adapter
// supports it.
func (b *Bot) PublishMenu(ctx context.Context) error {
	mu, ok := b.adapter.(transport.CommandMenuUpdater)
	if !ok {
		return nil
	}
	var cmds []transport.BotCommand
	for _, c := range b.commands {
		if c.Access != AccessEveryone {
			continue
		}
		cmds = append(cmds, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	return mu.UpdateMenuCommands(ctx, cmds)
}

// Run dispatches updates to the worker pool until ctx is done or updates is
// closed.
func (b *Bot) Run(ctx context.Context, updates <-chan transport.Update) error {
	cfg := b.config()
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(b.log),
		rtsup.WithCancelOnError(false),
	)
	b.setSupervisor(sup, true)
	b.log.Info("dispatcher started", logx.Int("workers", cfg.Workers), logx.Int("queue_cap", cap(b.jobs)))

	for i := 0; i < cfg.Workers; i++ {
		idx := i
		sup.GoRestart("bot.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-b.jobs:
					b.runJob(idx, job)
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
			rtsup.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		b.setSupervisor(nil, false)
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		b.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			job := b.prepare(ctx, up)
			if job == nil {
				continue
			}
			if !b.tryEnqueue(job) {
				b.busy(ctx, up)
			}
		}
	}
}

func (b *Bot) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in bot job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

func (b *Bot) tryEnqueue(job func()) bool {
	select {
	case b.jobs <- job:
		return true
	default:
		return false
	}
}

func (b *Bot) busy(ctx context.Context, up transport.Update) {
	switch {
	case up.Callback != nil:
		_ = b.adapter.AnswerCallback(ctx, up.Callback.ID, "busy, try again")
	case up.Message != nil:
		_, _ = b.adapter.SendText(ctx, transport.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}, "busy, try again", nil)
	}
}

// HandleUpdate routes and runs one update on the calling goroutine.
func (b *Bot) HandleUpdate(ctx context.Context, up transport.Update) {
	if job := b.prepare(ctx, up); job != nil {
		job()
	}
}

// prepare resolves an update to a runnable job. Rejections that need no
// worker (unknown command, access denied) are answered here and nil is
// returned.
func (b *Bot) prepare(ctx context.Context, up transport.Update) func() {
	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message != nil {
			return b.prepareMessage(ctx, up)
		}
	case transport.UpdateCallback:
		if up.Callback != nil {
			return b.prepareCallback(ctx, up)
		}
	}
	return nil
}

func (b *Bot) prepareMessage(ctx context.Context, up transport.Update) func() {
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return nil
	}
	chat := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	idx, ok := b.byName[commandWord(parts[0])]
	if !ok {
		_, _ = b.adapter.SendText(ctx, chat, "unknown command, try /help", nil)
		return nil
	}
	cmd := b.commands[idx]
	owner := b.isOwner(msg.FromID)
	if cmd.Access == AccessOwnerOnly && !owner {
		_, _ = b.adapter.SendText(ctx, chat, "unauthorized", nil)
		return nil
	}

	pos, flags, bools := parseFlags(parts[1:])
	rid := newReqID()
	req := &Request{
		Update:       up,
		Chat:         chat,
		FromID:       msg.FromID,
		FromUsername: msg.FromUsername,
		Command:      cmd.Name,
		Args:         pos,
		Flags:        flags,
		BoolFlags:    bools,
		ReqID:        rid,
		Owner:        owner,
		Logger: b.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int("thread_id", msg.ThreadID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = b.config().CommandTimeout
	}
	mws := []Middleware{MWPanicRecover(), MWRequestLog()}
	if cmd.Audit {
		mws = append(mws, MWAudit(b.store))
	}
	mws = append(mws, MWTimeout(timeout))
	final := Chain(cmd.Handle, mws...)

	return func() {
		if err := final(ctx, req); err != nil {
			b.replyError(ctx, req, err)
		}
	}
}

func (b *Bot) prepareCallback(ctx context.Context, up transport.Update) func() {
	cb := up.Callback
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "")
		return nil
	}
	route, ok := b.callbacks[parts[0]+":"+parts[1]]
	if !ok {
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "this button is no longer supported")
		return nil
	}
	owner := b.isOwner(cb.FromID)
	if route.Access == AccessOwnerOnly && !owner {
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return nil
	}
	payload := ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	rid := newReqID()
	name := "cb:" + route.key()
	req := &Request{
		Update:  up,
		Chat:    transport.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:  cb.FromID,
		Command: name,
		Payload: payload,
		Message: transport.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID},
		ReqID:   rid,
		Owner:   owner,
		Logger: b.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", cb.ChatID),
			logx.Int64("from_id", cb.FromID),
			logx.String("cmd", name),
		),
	}
	timeout := route.Timeout
	if timeout <= 0 {
		timeout = b.config().CommandTimeout
	}
	final := Chain(route.Handle, MWPanicRecover(), MWRequestLog(), MWTimeout(timeout))

	return func() {
		if err := final(ctx, req); err != nil {
			req.Answer = errorText(err, req.ReqID)
		}
		// stops the button spinner
		_ = b.adapter.AnswerCallback(ctx, cb.ID, req.Answer)
	}
}

func (b *Bot) replyError(ctx context.Context, req *Request, err error) {
	_, _ = b.adapter.SendText(ctx, req.Chat, errorText(err, req.ReqID), nil)
}

func errorText(err error, rid string) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Msg
	}
	return "⚠️ something went wrong (ref " + rid + ")"
}

func newReqID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
