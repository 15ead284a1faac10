package notifier

import "context"

// Notifier delivers formatted reports.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// CommandHandler is called when a user command is received. An empty reply
// sends nothing.
type CommandHandler func(ctx context.Context, text string) string

// NoopNotifier drops every message. Used when no bot token is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, string) error { return nil }
