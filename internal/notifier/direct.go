package notifier

import (
	"context"

	"housebot/internal/eventbus"
	"housebot/internal/transport"
)

// Direct sends synchronously with no queue, retry or dedup. It stands in for
// Service when the pipeline is disabled.
type Direct struct {
	Adapter transport.Adapter
	Bus     eventbus.Bus
}

func (d Direct) Notify(ctx context.Context, n Notification) error {
	_, err := d.Adapter.SendText(ctx, n.Target, n.Text, n.Options)
	if err != nil {
		eventbus.Publish(d.Bus, eventbus.TypeNotifierFailed, NotificationEvent{Channel: n.Channel, ChatID: n.Target.ChatID, Error: err.Error()})
		return err
	}
	eventbus.Publish(d.Bus, eventbus.TypeNotifierSent, NotificationEvent{Channel: n.Channel, ChatID: n.Target.ChatID})
	return nil
}

var (
	_ Notifier = (*Service)(nil)
	_ Notifier = Direct{}
)
