package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type Middleware func(next http.RoundTripper) http.RoundTripper

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

const HeaderRequestID = "X-Request-ID"

func RequestIDMiddleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(HeaderRequestID) == "" {
				req.Header.Set(HeaderRequestID, uuid.New().String())
			}
			return next.RoundTrip(req)
		})
	}
}

type RateLimitConfig struct {
	LimiterFor func(method, path string) *rate.Limiter
}

func RateLimitMiddleware(cfg *RateLimitConfig) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if cfg != nil && cfg.LimiterFor != nil {
				limiter := cfg.LimiterFor(req.Method, req.URL.Path)
				if limiter != nil {
					if err := limiter.Wait(req.Context()); err != nil {
						return nil, err
					}
				}
			}
			return next.RoundTrip(req)
		})
	}
}

type CircuitBreakerConfig struct {
	BreakerFor func(method, path string) *gobreaker.CircuitBreaker
}

var errServerStatus = errors.New("server error status")

func CircuitBreakerMiddleware(cfg *CircuitBreakerConfig) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if cfg == nil || cfg.BreakerFor == nil {
				return next.RoundTrip(req)
			}
			breaker := cfg.BreakerFor(req.Method, req.URL.Path)
			if breaker == nil {
				return next.RoundTrip(req)
			}
			var resp *http.Response
			_, err := breaker.Execute(func() (interface{}, error) {
				var err error
				resp, err = next.RoundTrip(req)
				if err != nil {
					return nil, err
				}
				if resp.StatusCode >= 500 {
					return resp, errServerStatus
				}
				return resp, nil
			})
			// 5xx responses count as breaker failures but still reach the caller.
			if errors.Is(err, errServerStatus) {
				return resp, nil
			}
			return resp, err
		})
	}
}

type TracingConfig struct {
	TracerProvider    trace.TracerProvider
	Propagators       propagation.TextMapPropagator
	SpanNameFormatter func(r *http.Request) string
}

func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		TracerProvider: otel.GetTracerProvider(),
		Propagators:    otel.GetTextMapPropagator(),
		SpanNameFormatter: func(r *http.Request) string {
			return fmt.Sprintf("HTTP %s", r.Method)
		},
	}
}

func TracingMiddleware(config *TracingConfig) Middleware {
	if config == nil {
		config = DefaultTracingConfig()
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	if config.Propagators == nil {
		config.Propagators = otel.GetTextMapPropagator()
	}
	if config.SpanNameFormatter == nil {
		config.SpanNameFormatter = DefaultTracingConfig().SpanNameFormatter
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return &tracingTransport{
			next:   next,
			config: config,
			tracer: config.TracerProvider.Tracer("github.com/fsandov/go-rollbar/pkg/client"),
		}
	}
}

type tracingTransport struct {
	next   http.RoundTripper
	config *TracingConfig
	tracer trace.Tracer
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	spanName := t.config.SpanNameFormatter(req)
	ctx, span := t.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	req = req.WithContext(ctx)
	t.config.Propagators.Inject(ctx, propagation.HeaderCarrier(req.Header))
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
		attribute.String("http.target", req.URL.Path),
		attribute.String("http.scheme", req.URL.Scheme),
		attribute.String("http.host", req.URL.Host),
	)
	if req.ContentLength > 0 {
		span.SetAttributes(attribute.Int("http.request_content_length", int(req.ContentLength)))
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

type MetricsConfig struct {
	Namespace  string
	Subsystem  string
	Registerer prometheus.Registerer
}

func MetricsMiddleware(config *MetricsConfig) Middleware {
	if config == nil {
		return nil
	}
	if config.Namespace == "" {
		config.Namespace = "http_client"
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	requestDuration := registerOrReuse(config.Registerer, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent processing HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "host", "path", "status"},
	))
	requestsTotal := registerOrReuse(config.Registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "host", "path", "status"},
	))
	requestErrors := registerOrReuse(config.Registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_errors_total",
			Help:      "Total number of HTTP request errors",
		},
		[]string{"method", "host", "path"},
	))
	return func(next http.RoundTripper) http.RoundTripper {
		return &metricsTransport{
			next:            next,
			requestDuration: requestDuration,
			requestsTotal:   requestsTotal,
			requestErrors:   requestErrors,
		}
	}
}

// registerOrReuse returns the already registered collector when an identical
// one exists, so building several clients with the same namespace is safe.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

type metricsTransport struct {
	next            http.RoundTripper
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	requestErrors   *prometheus.CounterVec
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	method := req.Method
	host := req.URL.Host
	path := req.URL.Path
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		t.requestErrors.WithLabelValues(method, host, path).Inc()
		return nil, err
	}
	status := fmt.Sprintf("%d", resp.StatusCode)
	t.requestDuration.WithLabelValues(method, host, path, status).Observe(duration)
	t.requestsTotal.WithLabelValues(method, host, path, status).Inc()
	return resp, nil
}

type HooksMiddlewareConfig struct {
	PreRequest  func(req *http.Request)
	PostRequest func(req *http.Request, resp *http.Response)
	OnError     func(req *http.Request, err error)
}

func HooksMiddleware(cfg *HooksMiddlewareConfig) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if cfg != nil && cfg.PreRequest != nil {
				cfg.PreRequest(req)
			}
			resp, err := next.RoundTrip(req)
			if err != nil && cfg != nil && cfg.OnError != nil {
				cfg.OnError(req, err)
			}
			if resp != nil && cfg != nil && cfg.PostRequest != nil {
				cfg.PostRequest(req, resp)
			}
			return resp, err
		})
	}
}

func ReadAndRestoreBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func MaxResponseSizeMiddleware(maxSize int64) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || maxSize <= 0 {
				return resp, err
			}
			resp.Body = http.MaxBytesReader(nil, resp.Body, maxSize)
			return resp, err
		})
	}
}
