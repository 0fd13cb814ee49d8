package notifiers

import "context"

// Notifier receives log entries that were marked for forwarding.
type Notifier interface {
	Notify(ctx context.Context, level string, message string, fields map[string]any) error
}
