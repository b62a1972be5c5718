package isocheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"pkt.systems/pslog"

	"pkt.systems/isocheck/internal/loggingutil"
	"pkt.systems/isocheck/internal/svcfields"
	"pkt.systems/isocheck/internal/version"
)

// TelemetryConfig selects which telemetry sinks to start. Every field is
// optional; an empty config starts nothing.
type TelemetryConfig struct {
	// OTLPEndpoint enables trace export: host[:port] (gRPC, insecure),
	// grpc://, grpcs://, http:// or https:// URLs.
	OTLPEndpoint string
	// MetricsListen serves Prometheus metrics on /metrics.
	MetricsListen string
	// PprofListen serves net/http/pprof handlers.
	PprofListen string
	// RuntimeMetrics adds Go runtime metrics; requires MetricsListen.
	RuntimeMetrics bool
	Logger         pslog.Logger
}

// Telemetry owns the providers and listeners started by StartTelemetry.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	servers        []*http.Server
	metricsAddr    string
	logger         pslog.Logger
}

type otelErrorHandler struct {
	logger pslog.Logger
}

func (h otelErrorHandler) Handle(err error) {
	if err == nil {
		return
	}
	if strings.Contains(err.Error(), "waiting for connections to become ready") {
		h.logger.Debug("telemetry.exporter.retry", "error", err)
		return
	}
	h.logger.Warn("telemetry.exporter.error", "error", err)
}

var (
	runtimeMetricsOnce sync.Once
	runtimeMetricsErr  error
)

// StartTelemetry installs global otel providers per cfg. It returns nil when
// cfg enables nothing; a nil *Telemetry is safe to shut down.
func StartTelemetry(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	metricsListen := strings.TrimSpace(cfg.MetricsListen)
	pprofListen := strings.TrimSpace(cfg.PprofListen)
	if endpoint == "" && metricsListen == "" && pprofListen == "" && !cfg.RuntimeMetrics {
		return nil, nil
	}
	if cfg.RuntimeMetrics && metricsListen == "" {
		return nil, fmt.Errorf("telemetry: runtime metrics require a metrics listen address")
	}
	logger := svcfields.WithSubsystem(loggingutil.EnsureLogger(cfg.Logger), "telemetry")
	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName("isocheck"),
			semconv.ServiceVersion(version.Current()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	t := &Telemetry{logger: logger}
	fail := func(err error) (*Telemetry, error) {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = t.Shutdown(shutdownCtx)
		return nil, err
	}

	if endpoint != "" {
		target, err := resolveOTLPTarget(endpoint)
		if err != nil {
			return nil, err
		}
		exporter, err := newTraceExporter(ctx, target)
		if err != nil {
			return nil, err
		}
		t.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
			sdktrace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(t.tracerProvider)
		logger.Info("telemetry.tracing.enabled",
			"protocol", target.protocol,
			"endpoint", target.endpoint,
			"path", target.path,
			"insecure", target.insecure,
		)
	}

	if metricsListen != "" {
		registry := prometheus.NewRegistry()
		opts := []otelprometheus.Option{otelprometheus.WithRegisterer(registry)}
		if cfg.RuntimeMetrics {
			opts = append(opts, otelprometheus.WithProducer(otelruntime.NewProducer()))
		}
		exporter, err := otelprometheus.New(opts...)
		if err != nil {
			return fail(fmt.Errorf("telemetry: start prometheus exporter: %w", err))
		}
		t.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(t.meterProvider)
		if cfg.RuntimeMetrics {
			runtimeMetricsOnce.Do(func() {
				runtimeMetricsErr = otelruntime.Start(otelruntime.WithMeterProvider(t.meterProvider))
			})
			if runtimeMetricsErr != nil {
				return fail(fmt.Errorf("telemetry: runtime metrics: %w", runtimeMetricsErr))
			}
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		addr, err := t.serve("metrics", metricsListen, mux)
		if err != nil {
			return fail(err)
		}
		t.metricsAddr = addr
		logger.Info("telemetry.metrics.enabled", "listen", addr)
	}

	if pprofListen != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		addr, err := t.serve("pprof", pprofListen, mux)
		if err != nil {
			return fail(err)
		}
		logger.Info("telemetry.pprof.enabled", "listen", addr)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetErrorHandler(otelErrorHandler{logger: logger})
	return t, nil
}

// MetricsAddr returns the bound metrics address, or "".
func (t *Telemetry) MetricsAddr() string {
	if t == nil {
		return ""
	}
	return t.metricsAddr
}

func (t *Telemetry) serve(name, addr string, handler http.Handler) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("telemetry: %s listen: %w", name, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	t.servers = append(t.servers, srv)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Warn("telemetry.serve.error", "server", name, "error", err)
		}
	}()
	return ln.Addr().String(), nil
}

// Shutdown flushes exporters and stops listeners.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric shutdown: %w", err))
		}
	}
	for _, srv := range t.servers {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		t.logger.Warn("telemetry.shutdown.error", "error", err)
		return err
	}
	t.logger.Debug("telemetry.shutdown.complete")
	return nil
}

type otlpTarget struct {
	protocol string // grpc or http
	endpoint string // host:port
	path     string
	insecure bool
}

func newTraceExporter(ctx context.Context, target otlpTarget) (sdktrace.SpanExporter, error) {
	switch target.protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(target.endpoint),
			otlptracegrpc.WithTimeout(10 * time.Second),
		}
		if target.insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		} else {
			opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, ""))))
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: start trace exporter (grpc): %w", err)
		}
		return exporter, nil
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(target.endpoint),
			otlptracehttp.WithTimeout(10 * time.Second),
		}
		if target.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if target.path != "" && target.path != "/" {
			opts = append(opts, otlptracehttp.WithURLPath(target.path))
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: start trace exporter (http): %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("telemetry: unsupported protocol %q", target.protocol)
	}
}

// resolveOTLPTarget accepts a bare host[:port] (insecure gRPC on 4317) or a
// grpc, grpcs, http or https URL.
func resolveOTLPTarget(raw string) (otlpTarget, error) {
	if raw == "" {
		return otlpTarget{}, fmt.Errorf("telemetry: empty endpoint")
	}
	if !strings.Contains(raw, "://") {
		endpoint := raw
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			endpoint = net.JoinHostPort(endpoint, "4317")
		}
		return otlpTarget{protocol: "grpc", endpoint: endpoint, insecure: true}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return otlpTarget{}, fmt.Errorf("telemetry: parse endpoint: %w", err)
	}
	target := otlpTarget{endpoint: u.Host, path: strings.TrimSuffix(u.Path, "/")}
	defaultPort := "4317"
	switch strings.ToLower(u.Scheme) {
	case "grpc":
		target.protocol, target.insecure = "grpc", true
	case "grpcs":
		target.protocol = "grpc"
	case "http":
		target.protocol, target.insecure, defaultPort = "http", true, "4318"
	case "https":
		target.protocol, defaultPort = "http", "4318"
	default:
		return otlpTarget{}, fmt.Errorf("telemetry: unknown scheme %q", u.Scheme)
	}
	if target.endpoint == "" {
		return otlpTarget{}, fmt.Errorf("telemetry: missing endpoint host")
	}
	if u.Port() == "" {
		target.endpoint = net.JoinHostPort(u.Hostname(), defaultPort)
	}
	return target, nil
}
