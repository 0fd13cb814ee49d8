package client

import (
	"context"
	"net/http"
	"time"
)

// EndpointSettings controls how a single request is sent. Retries are opt-in:
// a zero MaxRetries sends exactly once.
type EndpointSettings struct {
	Timeout         time.Duration
	MaxRetries      int
	ShouldRetry     func(resp *http.Response, err error) bool
	BackoffStrategy func(attempt int) time.Duration
	Headers         map[string]string
	Fallback        func(*http.Request, error) (*http.Response, error)
	MaxResponseSize int64
}

func applyDefaults(cfg *EndpointSettings) *EndpointSettings {
	if cfg == nil {
		cfg = &EndpointSettings{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg
}

type RequestInfo struct {
	Method string
	Path   string
}

type EndpointConfig func(method, path string) *EndpointSettings

type HooksConfig struct {
	PreRequest  func(ctx context.Context, req *RequestInfo)
	PostRequest func(ctx context.Context, req *RequestInfo, status int)
	OnError     func(ctx context.Context, req *RequestInfo, err *Error)
}
