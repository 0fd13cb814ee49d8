package rollbar

import "github.com/fsandov/go-rollbar/pkg/client"

// Callback receives the outcome of a non-blocking notification. It runs on
// the goroutine that performed the request.
type Callback func(c *client.Client, resp *Response)

func noopCallback(*client.Client, *Response) {}

// DeliveryMode selects how Notify hands the request to the transport.
// The zero value is non-blocking with a no-op callback.
type DeliveryMode struct {
	blocking bool
	callback Callback
}

// Blocking makes Notify wait for the API response and return it.
func Blocking() DeliveryMode {
	return DeliveryMode{blocking: true}
}

// NonBlocking makes Notify return immediately and deliver the response to cb.
// A nil cb is replaced with a no-op; the mode stays non-blocking.
func NonBlocking(cb Callback) DeliveryMode {
	if cb == nil {
		cb = noopCallback
	}
	return DeliveryMode{callback: cb}
}

func (m DeliveryMode) IsBlocking() bool {
	return m.blocking
}

// Callback returns the completion callback, or nil in blocking mode.
func (m DeliveryMode) Callback() Callback {
	if m.blocking {
		return nil
	}
	if m.callback == nil {
		return noopCallback
	}
	return m.callback
}

func (m DeliveryMode) String() string {
	if m.blocking {
		return "blocking"
	}
	return "non-blocking"
}
