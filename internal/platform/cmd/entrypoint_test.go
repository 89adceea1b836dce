package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"SQUADFORGE_CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"SQUADFORGE_CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("SQUADFORGE_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("SQUADFORGE_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("address = %q, want flag override", cfg.Address)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("mode = %q, want env value", cfg.Mode)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected error for nil config target")
	}
}

func TestParseArgsRejectsNilFlagSet(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected error for nil flag set")
	}
}

func TestRunWithTelemetryRequiresServiceAndRun(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for empty service name")
	}
	if err := RunWithTelemetry(context.Background(), "svc", nil); err == nil {
		t.Fatal("expected error for nil run function")
	}
}

func TestRunWithTelemetryPropagatesRunError(t *testing.T) {
	t.Setenv("SQUADFORGE_OTEL_ENDPOINT", "")

	wantErr := errors.New("boom")
	err := RunWithTelemetry(context.Background(), "svc", func(context.Context) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected run error, got %v", err)
	}
}
