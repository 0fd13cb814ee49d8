package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	httpClient *http.Client
	options    *options
}

type options struct {
	baseURL         string
	endpointConfig  EndpointConfig
	defaultSettings *EndpointSettings
	middlewares     []Middleware
	hooks           *HooksConfig
	transport       http.RoundTripper
	logger          *zap.Logger
}

// Option configures a Client.
type Option func(*options)

func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(url, "/") }
}
func WithEndpointConfig(ec EndpointConfig) Option {
	return func(o *options) { o.endpointConfig = ec }
}
func WithDefaultSettings(s *EndpointSettings) Option {
	return func(o *options) {
		if s != nil {
			o.defaultSettings = s
		}
	}
}
func WithMiddleware(mw Middleware) Option {
	return func(o *options) {
		if mw != nil {
			o.middlewares = append(o.middlewares, mw)
		}
	}
}
func WithHooks(hooks *HooksConfig) Option { return func(o *options) { o.hooks = hooks } }

// WithTransport replaces http.DefaultTransport as the innermost round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func NewClient(opts ...Option) *Client {
	o := &options{
		defaultSettings: &EndpointSettings{
			Timeout: defaultTimeout,
			Headers: map[string]string{},
		},
		hooks:     &HooksConfig{},
		transport: http.DefaultTransport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.hooks == nil {
		o.hooks = &HooksConfig{}
	}
	transport := o.transport
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		transport = o.middlewares[i](transport)
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: applyDefaults(o.defaultSettings).Timeout},
		options:    o,
	}
}

type EndpointConfigKey struct{}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, *Error) {
	var cfg *EndpointSettings
	if c.options.endpointConfig != nil {
		cfg = c.options.endpointConfig(req.Method, req.URL.Path)
	}
	if cfg == nil {
		cfg = c.options.defaultSettings
	}
	cfg = applyDefaults(cfg)
	ctx = context.WithValue(ctx, EndpointConfigKey{}, cfg)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	req = req.WithContext(ctx)

	if c.options.defaultSettings != nil {
		for k, v := range c.options.defaultSettings.Headers {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	hooks := c.options.hooks
	if hooks == nil {
		hooks = &HooksConfig{}
	}
	info := &RequestInfo{Method: req.Method, Path: req.URL.Path}
	if hooks.PreRequest != nil {
		hooks.PreRequest(ctx, info)
	}

	var (
		resp      *http.Response
		err       error
		retry     int
		body      []byte
		clientErr *Error
	)
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(resp *http.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		}
	}
	backoffStrategy := cfg.BackoffStrategy
	if backoffStrategy == nil {
		backoffStrategy = func(attempt int) time.Duration { return 200 * time.Millisecond }
	}

	for retry = 0; retry <= cfg.MaxRetries; retry++ {
		if retry > 0 {
			if rerr := rewindBody(req); rerr != nil {
				break
			}
		}
		resp, err = c.httpClient.Do(req)
		if !shouldRetry(resp, err) || retry == cfg.MaxRetries {
			break
		}
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		c.log().Debug("retrying request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("attempt", retry+1),
		)
		time.Sleep(backoffStrategy(retry))
	}
	if resp != nil && resp.Body != nil {
		var readErr error
		body, readErr = readBody(resp.Body, cfg.MaxResponseSize)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if readErr != nil && err == nil {
			err = fmt.Errorf("reading response body: %w", readErr)
		}
	}
	if err != nil || (resp != nil && resp.StatusCode >= 400) {
		clientErr = &Error{
			StatusCode:   0,
			Err:          err,
			Retries:      retry,
			Method:       req.Method,
			URL:          req.URL.String(),
			LastResponse: resp,
		}
		if resp != nil {
			clientErr.StatusCode = resp.StatusCode
			clientErr.Body = body
		}
		if hooks.OnError != nil {
			hooks.OnError(ctx, info, clientErr)
		}
		if cfg.Fallback != nil {
			fbResp, fbErr := cfg.Fallback(req, err)
			if fbErr == nil {
				return fbResp, nil
			}
			clientErr.Err = fbErr
			return fbResp, clientErr
		}
		return resp, clientErr
	}
	if hooks.PostRequest != nil {
		hooks.PostRequest(ctx, info, resp.StatusCode)
	}
	return resp, nil
}

// ErrResponseTooLarge is returned when a response body exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("response body exceeds MaxResponseSize")

func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return body, err
	}
	if int64(len(body)) > limit {
		return body[:limit], ErrResponseTooLarge
	}
	return body, nil
}

func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

func (c *Client) Get(ctx context.Context, path string, headers map[string]string) (*http.Response, *Error) {
	return c.send(ctx, http.MethodGet, path, nil, headers)
}
func (c *Client) Post(ctx context.Context, path string, body []byte, headers map[string]string) (*http.Response, *Error) {
	return c.send(ctx, http.MethodPost, path, body, headers)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, *Error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	url := c.options.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &Error{Err: err, Method: method, URL: url}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(ctx, req)
}

func (c *Client) log() *zap.Logger {
	if c.options.logger == nil {
		return zap.NewNop()
	}
	return c.options.logger
}

// HTTPClient exposes the underlying *http.Client with the middleware chain installed.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) Close() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}
