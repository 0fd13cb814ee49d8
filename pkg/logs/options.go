package logs

type LogOption interface {
	apply(*logOptions)
}

type logOptions struct {
	withNotifier bool
}

type withNotifierOption struct{}

func (o withNotifierOption) apply(opts *logOptions) {
	opts.withNotifier = true
}

// WithNotifier forwards the entry to the notifiers registered for its level.
func WithNotifier() LogOption {
	return withNotifierOption{}
}
