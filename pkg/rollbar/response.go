package rollbar

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Response is the outcome of a notification as seen by the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Err is set when the request never produced an HTTP response
	// (DNS, refused connection, timeout).
	Err error

	// Dispatched is set on the immediate return of a non-blocking Notify.
	// The real outcome goes to the Callback.
	Dispatched bool
}

// OK reports a delivered request that the API accepted with a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Err == nil && !r.Dispatched && r.StatusCode >= 200 && r.StatusCode < 300
}

// ItemResult is the API's reply to an accepted or rejected item.
type ItemResult struct {
	Err     int    `json:"err"`
	Message string `json:"message,omitempty"`
	Result  struct {
		ID   *int64 `json:"id"`
		UUID string `json:"uuid"`
	} `json:"result"`
}

var ErrNoResponseBody = errors.New("rollbar: response has no body")

// Result decodes the API reply. The notifier never calls it itself.
func (r *Response) Result() (*ItemResult, error) {
	if r == nil || len(r.Body) == 0 {
		return nil, ErrNoResponseBody
	}
	var res ItemResult
	if err := json.Unmarshal(r.Body, &res); err != nil {
		return nil, fmt.Errorf("rollbar: decoding response: %w", err)
	}
	return &res, nil
}
