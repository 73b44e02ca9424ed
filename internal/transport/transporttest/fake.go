// Package transporttest provides an in-memory transport.Adapter for tests.
package transporttest

import (
	"context"
	"sync"

	"housebot/internal/transport"
)

// Sent is one recorded SendText or EditText call.
type Sent struct {
	Ref  transport.MessageRef
	Text string
	Opt  *transport.SendOptions
	Edit bool
}

// Adapter records outgoing calls. SendErr, when set, is returned by the next
// FailSends sends.
type Adapter struct {
	mu        sync.Mutex
	nextID    int
	sent      []Sent
	deleted   []transport.MessageRef
	answered  map[string]string
	commands  []transport.BotCommand
	SendErr   error
	FailSends int
	EditErr   error
}

func New() *Adapter { return &Adapter{answered: map[string]string{}} }

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }

func (a *Adapter) Stop(ctx context.Context) error { return nil }

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SendErr != nil && a.FailSends > 0 {
		a.FailSends--
		return transport.MessageRef{}, a.SendErr
	}
	a.nextID++
	ref := transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: a.nextID}
	a.sent = append(a.sent, Sent{Ref: ref, Text: text, Opt: opt})
	return ref, nil
}

func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.EditErr != nil {
		return a.EditErr
	}
	a.sent = append(a.sent, Sent{Ref: ref, Text: text, Opt: opt, Edit: true})
	return nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref transport.MessageRef) error {
	a.mu.Lock()
	a.deleted = append(a.deleted, ref)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	a.mu.Lock()
	a.answered[callbackID] = text
	a.mu.Unlock()
	return nil
}

func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	a.mu.Lock()
	a.commands = append([]transport.BotCommand(nil), cmds...)
	a.mu.Unlock()
	return nil
}

// Sent returns a copy of every send and edit so far.
func (a *Adapter) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.sent...)
}

// SentTo filters Sent by chat.
func (a *Adapter) SentTo(chatID int64) []Sent {
	var out []Sent
	for _, s := range a.Sent() {
		if s.Ref.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (a *Adapter) Deleted() []transport.MessageRef {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]transport.MessageRef(nil), a.deleted...)
}

// Answer returns the text a callback was answered with.
func (a *Adapter) Answer(callbackID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.answered[callbackID]
	return t, ok
}

func (a *Adapter) Commands() []transport.BotCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]transport.BotCommand(nil), a.commands...)
}

var (
	_ transport.Adapter            = (*Adapter)(nil)
	_ transport.CommandMenuUpdater = (*Adapter)(nil)
)
