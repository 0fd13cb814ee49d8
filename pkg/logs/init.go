package logs

import (
	"github.com/fsandov/go-rollbar/pkg/config"
	"github.com/fsandov/go-rollbar/pkg/notifiers"
	"github.com/fsandov/go-rollbar/pkg/rollbar"
	"go.uber.org/zap"
)

// AutoInitNotifiers registers a Rollbar notifier for every level in
// ROLLBAR_NOTIFY_LEVELS when ROLLBAR_ACCESS_TOKEN is set. It returns the
// notifier so callers can Close it on shutdown, or nil when disabled.
func AutoInitNotifiers() *rollbar.Notifier {
	return GetLogger().AttachRollbar(config.FromEnv())
}

func (l *Logger) AttachRollbar(cfg *config.Config) *rollbar.Notifier {
	if !cfg.Enabled() {
		l.zap.Debug("Rollbar notifier disabled, no access token")
		return nil
	}
	n := rollbar.NewFromConfig(cfg, rollbar.WithLogger(l.zap.Named("rollbar")))
	adapter := notifiers.NewRollbarNotifier(n)
	for _, lvl := range cfg.NotifyLevels {
		l.AddNotifier(lvl, adapter)
	}
	l.zap.Info("Rollbar notifier configured",
		zap.Strings("levels", cfg.NotifyLevels),
		zap.String("environment", cfg.Environment),
	)
	return n
}
