package tgui

import (
	"context"
	"strings"

	"housebot/internal/transport"
)

// Message is rendered text plus send options, ready for an adapter.
type Message struct {
	Text string
	Opt  *transport.SendOptions
}

// Send posts the message to to.
func (m Message) Send(ctx context.Context, ad transport.Adapter, to transport.ChatTarget) (transport.MessageRef, error) {
	return ad.SendText(ctx, to, m.Text, m.options())
}

// Edit replaces the message behind ref.
func (m Message) Edit(ctx context.Context, ad transport.Adapter, ref transport.MessageRef) error {
	return ad.EditText(ctx, ref, m.Text, m.options())
}

func (m Message) options() *transport.SendOptions {
	if m.Opt == nil {
		return &transport.SendOptions{ParseMode: "HTML", DisablePreview: true}
	}
	return m.Opt
}

// Builder assembles an HTML message line by line. Plain strings are escaped;
// H values are written as-is.
type Builder struct {
	disablePreview bool
	rm             *Inline
	lines          []string
}

// New returns a builder with previews disabled.
func New() *Builder {
	return &Builder{disablePreview: true}
}

func (b *Builder) DisablePreview(v bool) *Builder {
	b.disablePreview = v
	return b
}

// Inline attaches a keyboard. Nil or empty keyboards are ignored.
func (b *Builder) Inline(kb *Inline) *Builder {
	b.rm = kb
	return b
}

// Title adds a bold title, optionally prefixed with an emoji.
func (b *Builder) Title(emoji, title string) *Builder {
	title = strings.TrimSpace(title)
	if title == "" {
		return b
	}
	if e := strings.TrimSpace(emoji); e != "" {
		b.lines = append(b.lines, Esc(e).String()+" "+B(title).String())
		return b
	}
	b.lines = append(b.lines, B(title).String())
	return b
}

// Line adds an escaped line.
func (b *Builder) Line(s string) *Builder {
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// HTML adds a line of already-safe HTML.
func (b *Builder) HTML(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

func (b *Builder) Blank() *Builder {
	b.lines = append(b.lines, "")
	return b
}

// Bullets adds one "• item" line per non-blank item.
func (b *Builder) Bullets(items ...H) *Builder {
	for _, it := range items {
		if strings.TrimSpace(it.String()) == "" {
			continue
		}
		b.lines = append(b.lines, "• "+it.String())
	}
	return b
}

// KV adds "• key: value" with a bold key.
func (b *Builder) KV(key string, value H) *Builder {
	key = strings.TrimSpace(key)
	if key == "" {
		return b
	}
	b.lines = append(b.lines, "• "+B(key).String()+": "+value.String())
	return b
}

// Build renders the message.
func (b *Builder) Build() Message {
	opt := &transport.SendOptions{ParseMode: "HTML", DisablePreview: b.disablePreview}
	if b.rm != nil && b.rm.Len() > 0 {
		opt.ReplyMarkupAdapter = b.rm.Markup()
	}
	return Message{Text: strings.Trim(strings.Join(b.lines, "\n"), "\n"), Opt: opt}
}
