package rollbar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/fsandov/go-rollbar/pkg/client"
	"go.uber.org/zap"
)

type notifyOptions struct {
	callSite    string
	callerFrame bool
}

// NotifyOption adjusts a single Notify call.
type NotifyOption func(*notifyOptions)

// WithCallSite sets the item's context, usually the name of the code path
// that produced it (a handler, a job, a function).
func WithCallSite(name string) NotifyOption {
	return func(o *notifyOptions) { o.callSite = name }
}

// WithCallerFrame fills the item's context with the name of the function that
// called the notifier. WithCallSite takes precedence.
func WithCallerFrame() NotifyOption {
	return func(o *notifyOptions) { o.callerFrame = true }
}

func (n *Notifier) Critical(ctx context.Context, message string, custom map[string]any, opts ...NotifyOption) (*Response, error) {
	return n.Notify(ctx, Critical, message, custom, opts...)
}

func (n *Notifier) Error(ctx context.Context, message string, custom map[string]any, opts ...NotifyOption) (*Response, error) {
	return n.Notify(ctx, Error, message, custom, opts...)
}

func (n *Notifier) Warning(ctx context.Context, message string, custom map[string]any, opts ...NotifyOption) (*Response, error) {
	return n.Notify(ctx, Warning, message, custom, opts...)
}

func (n *Notifier) Info(ctx context.Context, message string, custom map[string]any, opts ...NotifyOption) (*Response, error) {
	return n.Notify(ctx, Info, message, custom, opts...)
}

func (n *Notifier) Debug(ctx context.Context, message string, custom map[string]any, opts ...NotifyOption) (*Response, error) {
	return n.Notify(ctx, Debug, message, custom, opts...)
}

// Notify posts one item to Endpoint.
//
// In blocking mode it returns the API response; transport failures are
// reported in Response.Err. In non-blocking mode it returns a Response with
// Dispatched set right away and hands the real response to the callback.
// The returned error is only set when the payload cannot be encoded or the
// notifier is closed, in which case nothing is sent.
func (n *Notifier) Notify(ctx context.Context, level Level, message string, custom map[string]any, opts ...NotifyOption) (*Response, error) {
	o := &notifyOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.callSite == "" && o.callerFrame {
		o.callSite = callerName()
	}

	n.mu.RLock()
	payload := n.buildPayload(level, message, custom, o.callSite)
	delivery := n.delivery
	n.mu.RUnlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("rollbar: encoding payload: %w", err)
	}

	if !n.acquire() {
		return nil, ErrClosed
	}
	if delivery.IsBlocking() {
		defer n.release()
		return n.send(ctx, level, body), nil
	}

	cb := delivery.Callback()
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer n.release()
		cb(n.client, n.send(ctx, level, body))
	}()
	return &Response{Dispatched: true}, nil
}

// buildPayload must be called with n.mu held.
func (n *Notifier) buildPayload(level Level, message string, custom map[string]any, callSite string) *Payload {
	return &Payload{
		AccessToken: n.accessToken,
		Data: Data{
			Environment: n.environment,
			Body:        Body{Message: newMessage(message, custom)},
			Platform:    n.platform,
			Title:       message,
			Timestamp:   n.now().Unix(),
			Level:       level,
			CodeVersion: n.codeVersion,
			Notifier:    NotifierInfo{Name: NotifierName, Version: NotifierVersion},
			Context:     callSite,
		},
	}
}

// send posts to the absolute Endpoint through Do, so a base URL configured on
// the client is never prepended.
func (n *Notifier) send(ctx context.Context, level Level, body []byte) *Response {
	out := &Response{}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, Endpoint, bytes.NewReader(body))
	if err != nil {
		out.Err = err
		return out
	}
	req.Header.Set("Content-Type", "application/json")

	resp, cErr := n.client.Do(ctx, req)
	if resp != nil {
		out.StatusCode = resp.StatusCode
		out.Header = resp.Header
		out.Body, _ = client.ReadAndRestoreBody(resp)
	}
	// A rejected item carries only a status. Err is for failed exchanges,
	// including a fallback that returned both a response and an error.
	if cErr != nil && cErr.Err != nil {
		out.Err = cErr
	}

	n.logger.Debug("rollbar item sent",
		zap.String("level", level.String()),
		zap.Int("status", out.StatusCode),
		zap.Error(out.Err),
	)
	return out
}

// callerName returns the first function on the stack outside the Notifier's
// own methods.
func callerName() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, notifierMethodPrefix) &&
			!strings.HasSuffix(frame.Function, "/pkg/rollbar.callerName") {
			return frame.Function
		}
		if !more {
			return ""
		}
	}
}

const notifierMethodPrefix = "/pkg/rollbar.(*Notifier)."
