package rollbar

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/fsandov/go-rollbar/pkg/client"
	"github.com/fsandov/go-rollbar/pkg/config"
	"go.uber.org/zap"
)

const (
	DefaultEnvironment = "production"
	defaultTimeout     = 30 * time.Second
)

// ErrClosed is returned by Notify once Close has been called.
var ErrClosed = errors.New("rollbar: notifier is closed")

type Notifier struct {
	mu          sync.RWMutex
	accessToken string
	environment string
	codeVersion string
	delivery    DeliveryMode

	platform   string
	now        func() time.Time
	logger     *zap.Logger
	client     *client.Client
	clientOpts []client.Option
	timeout    time.Duration

	inflightMu   sync.Mutex
	inflightDone sync.Cond
	inflight     int
	closed       bool
}

type Option func(*Notifier)

func WithEnvironment(env string) Option {
	return func(n *Notifier) { n.environment = env }
}

func WithCodeVersion(version string) Option {
	return func(n *Notifier) { n.codeVersion = version }
}

func WithDelivery(mode DeliveryMode) Option {
	return func(n *Notifier) { n.delivery = mode }
}

func WithBlocking() Option {
	return WithDelivery(Blocking())
}

func WithCallback(cb Callback) Option {
	return WithDelivery(NonBlocking(cb))
}

// WithPlatform overrides the platform reported with every item (runtime.GOOS by default).
func WithPlatform(platform string) Option {
	return func(n *Notifier) {
		if platform != "" {
			n.platform = platform
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithTimeout bounds each request made by the owned client.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithClient makes the notifier send through c instead of building its own.
func WithClient(c *client.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithClientOptions adds options to the owned client, after the notifier's defaults.
func WithClientOptions(opts ...client.Option) Option {
	return func(n *Notifier) { n.clientOpts = append(n.clientOpts, opts...) }
}

func New(accessToken string, opts ...Option) *Notifier {
	n := &Notifier{
		accessToken: accessToken,
		environment: DefaultEnvironment,
		delivery:    NonBlocking(nil),
		platform:    runtime.GOOS,
		now:         time.Now,
		logger:      zap.NewNop(),
		timeout:     defaultTimeout,
	}
	n.inflightDone.L = &n.inflightMu
	for _, opt := range opts {
		opt(n)
	}
	if n.client == nil {
		n.client = n.newClient()
	}
	return n
}

// NewFromConfig builds a notifier from loaded configuration. Explicit opts win.
func NewFromConfig(cfg *config.Config, opts ...Option) *Notifier {
	base := []Option{
		WithEnvironment(cfg.Environment),
		WithCodeVersion(cfg.CodeVersion),
		WithPlatform(cfg.Platform),
		WithTimeout(cfg.Timeout),
	}
	if cfg.Blocking {
		base = append(base, WithBlocking())
	}
	return New(cfg.AccessToken, append(base, opts...)...)
}

func (n *Notifier) newClient() *client.Client {
	opts := []client.Option{
		client.WithDefaultSettings(&client.EndpointSettings{
			Timeout:    n.timeout,
			MaxRetries: 0,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}),
		client.WithMiddleware(client.RequestIDMiddleware()),
		client.WithLogger(n.logger),
	}
	return client.NewClient(append(opts, n.clientOpts...)...)
}

func (n *Notifier) AccessToken() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.accessToken
}

func (n *Notifier) SetAccessToken(token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accessToken = token
}

func (n *Notifier) Environment() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.environment
}

func (n *Notifier) SetEnvironment(env string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.environment = env
}

// CodeVersion returns the configured code version; empty means unset.
func (n *Notifier) CodeVersion() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.codeVersion
}

// SetCodeVersion sets the version sent as code_version. An empty string unsets it.
func (n *Notifier) SetCodeVersion(version string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codeVersion = version
}

func (n *Notifier) Delivery() DeliveryMode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.delivery
}

func (n *Notifier) SetDelivery(mode DeliveryMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivery = mode
}

// Client returns the HTTP client the notifier sends through.
func (n *Notifier) Client() *client.Client {
	return n.client
}

// acquire registers a send; it fails once the notifier is closed.
func (n *Notifier) acquire() bool {
	n.inflightMu.Lock()
	defer n.inflightMu.Unlock()
	if n.closed {
		return false
	}
	n.inflight++
	return true
}

func (n *Notifier) release() {
	n.inflightMu.Lock()
	defer n.inflightMu.Unlock()
	n.inflight--
	if n.inflight == 0 {
		n.inflightDone.Broadcast()
	}
}

// Flush blocks until every notification sent so far has completed and its
// callback has returned. It is safe to call concurrently with Notify.
func (n *Notifier) Flush() {
	n.inflightMu.Lock()
	defer n.inflightMu.Unlock()
	for n.inflight > 0 {
		n.inflightDone.Wait()
	}
}

// Close stops accepting notifications, flushes pending ones and releases idle
// connections. Notify returns ErrClosed afterwards. Close is idempotent.
func (n *Notifier) Close() {
	n.inflightMu.Lock()
	n.closed = true
	n.inflightMu.Unlock()
	n.Flush()
	n.client.Close()
}
