package notifiers

import (
	"context"
	"fmt"

	"github.com/fsandov/go-rollbar/pkg/rollbar"
)

type RollbarNotifier struct {
	Notifier *rollbar.Notifier
}

func NewRollbarNotifier(n *rollbar.Notifier) *RollbarNotifier {
	return &RollbarNotifier{Notifier: n}
}

func (r *RollbarNotifier) Notify(ctx context.Context, level string, message string, fields map[string]any) error {
	resp, err := r.Notifier.Notify(ctx, LevelFor(level), message, fields)
	if err != nil {
		return err
	}
	if resp.Dispatched || resp.OK() {
		return nil
	}
	if resp.Err != nil {
		return fmt.Errorf("rollbar: %w", resp.Err)
	}
	return fmt.Errorf("rollbar rejected item, status: %d, body: %s", resp.StatusCode, string(resp.Body))
}

// LevelFor maps logger level names to Rollbar severities.
func LevelFor(level string) rollbar.Level {
	switch level {
	case "warn", "warning":
		return rollbar.Warning
	case "fatal", "panic", "dpanic", "critical":
		return rollbar.Critical
	case "error":
		return rollbar.Error
	case "debug":
		return rollbar.Debug
	default:
		return rollbar.Info
	}
}
