package isocheck

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/archive"
	"pkt.systems/isocheck/internal/catalog"
	"pkt.systems/isocheck/internal/correlation"
)

func openSQLite(t *testing.T, archiveURL string) *Driver {
	t.Helper()
	ctx := context.Background()
	drv, err := Open(ctx, Config{
		Backend:   "sqlite://" + filepath.Join(t.TempDir(), "isocheck.db"),
		SleepTime: time.Millisecond,
		Archive:   archiveURL,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = drv.Close(context.Background()) })
	if err := drv.NukeDatabase(ctx); err != nil {
		t.Fatalf("nuke: %v", err)
	}
	return drv
}

func TestDriverRunsScenarioAndArchives(t *testing.T) {
	drv := openSQLite(t, "mem://")
	ctx := context.Background()
	if drv.Name() != "sqlite" {
		t.Fatalf("unexpected backend name %q", drv.Name())
	}
	if _, err := drv.Run(ctx, catalog.OpG1bInit, nil); err != nil {
		t.Fatalf("g1bInit: %v", err)
	}
	if _, err := drv.Run(ctx, catalog.OpG1b1, api.Params{api.ParamPersonID: 1, api.ParamEven: 2, api.ParamOdd: 3}); err != nil {
		t.Fatalf("g1b1: %v", err)
	}
	ctx = correlation.With(ctx, "trial-42")
	res, err := drv.Run(ctx, catalog.OpG1b2, api.Params{api.ParamPersonID: 1})
	if err != nil {
		t.Fatalf("g1b2: %v", err)
	}
	if v, ok := res.Int(api.ResultPVersion); !ok || v != 3 {
		t.Fatalf("expected pVersion 3, got %v", res)
	}

	records, err := archive.Load(ctx, drv.Archive(), "sqlite/")
	if err != nil {
		t.Fatalf("load archive: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	var check *archive.Record
	for i := range records {
		if records[i].Op == catalog.OpG1b2 {
			check = &records[i]
		}
	}
	if check == nil {
		t.Fatalf("missing g1b2 record in %+v", records)
	}
	if check.CorrelationID != "trial-42" || check.Outcome != "ok" {
		t.Fatalf("unexpected record %+v", check)
	}
	if v, ok := api.AsInt(check.Result[api.ResultPVersion]); !ok || v != 3 {
		t.Fatalf("unexpected archived result %+v", check.Result)
	}
}

func TestDriverArchivesFailures(t *testing.T) {
	drv := openSQLite(t, "mem://")
	ctx := context.Background()
	_, err := drv.Run(ctx, "nope", nil)
	if !errors.Is(err, api.ErrParam) {
		t.Fatalf("expected param error, got %v", err)
	}
	records, err := archive.Load(ctx, drv.Archive(), "sqlite/nope/")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != "param" || records[0].Error == "" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestDriverWithoutArchive(t *testing.T) {
	drv := openSQLite(t, "")
	if drv.Archive() != nil {
		t.Fatalf("expected no archive")
	}
	if _, err := drv.Run(context.Background(), catalog.OpG1aInit, nil); err != nil {
		t.Fatalf("g1aInit: %v", err)
	}
	if got := len(drv.Operations()); got != len(catalog.Operations()) {
		t.Fatalf("unexpected operation count %d", got)
	}
	if err := drv.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := drv.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	if _, err := Open(context.Background(), Config{Backend: "sqlite:///x.db", Archive: "ftp://nowhere"}); err == nil {
		t.Fatalf("expected open to fail")
	}
}

func TestStartTelemetryServesMetrics(t *testing.T) {
	ctx := context.Background()
	if tel, err := StartTelemetry(ctx, TelemetryConfig{}); err != nil || tel != nil {
		t.Fatalf("expected disabled telemetry, got %v %v", tel, err)
	}
	tel, err := StartTelemetry(ctx, TelemetryConfig{MetricsListen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("start telemetry: %v", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	counter, err := otel.Meter("isocheck.test").Int64Counter("isocheck.test.calls")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(ctx, 7)

	resp, err := http.Get("http://" + tel.MetricsAddr() + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "isocheck_test_calls") {
		t.Fatalf("expected counter in scrape output:\n%s", body)
	}
}

func TestStartTelemetryRequiresMetricsForRuntime(t *testing.T) {
	if _, err := StartTelemetry(context.Background(), TelemetryConfig{RuntimeMetrics: true}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResolveOTLPTarget(t *testing.T) {
	cases := []struct {
		raw  string
		want otlpTarget
	}{
		{"collector", otlpTarget{protocol: "grpc", endpoint: "collector:4317", insecure: true}},
		{"collector:9999", otlpTarget{protocol: "grpc", endpoint: "collector:9999", insecure: true}},
		{"grpcs://collector", otlpTarget{protocol: "grpc", endpoint: "collector:4317"}},
		{"http://collector/v1/traces/", otlpTarget{protocol: "http", endpoint: "collector:4318", path: "/v1/traces", insecure: true}},
		{"https://collector:443", otlpTarget{protocol: "http", endpoint: "collector:443"}},
	}
	for _, tc := range cases {
		got, err := resolveOTLPTarget(tc.raw)
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.raw, got, tc.want)
		}
	}
	for _, raw := range []string{"", "ftp://x", "http://"} {
		if _, err := resolveOTLPTarget(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
