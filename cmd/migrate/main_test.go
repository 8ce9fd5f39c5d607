package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/storage/postgres"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func testPostgresDSN(t *testing.T) string {
	t.Helper()

	for _, key := range []string{"ORDERFLOW_POSTGRES_TEST_DSN", envPostgresDSN} {
		dsn := strings.TrimSpace(os.Getenv(key))
		if dsn == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		store, err := postgres.Open(ctx, dsn)
		cancel()
		if err != nil {
			continue
		}
		_ = store.Close()
		return dsn
	}

	t.Skip("postgres is not available for migrate CLI tests")
	return ""
}

func TestRun_List(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-direction", "list"}, envMap(nil), &out); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "0001 init") {
		t.Fatalf("expected init migration in output, got %q", out.String())
	}
}

func TestRun_RequiresDSN(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-direction", "status"}, envMap(nil), &out)
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRun_UnsupportedDirection(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-direction", "sideways"}, envMap(map[string]string{
		envPostgresDSN: "postgres://localhost:1/none",
	}), &out)
	if !errors.Is(err, errUsage) || !strings.Contains(err.Error(), "unsupported direction") {
		t.Fatalf("expected unsupported direction error, got %v", err)
	}
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-bogus"}, envMap(nil), &out); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRun_UpDownStatus(t *testing.T) {
	dsn := testPostgresDSN(t)
	env := envMap(map[string]string{envPostgresDSN: dsn})

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-direction", "up"}, env, &out); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if !strings.Contains(out.String(), "migrate up ok: version=1") {
		t.Fatalf("unexpected up output: %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"-direction", "status"}, env, &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "applied=1") {
		t.Fatalf("unexpected status output: %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"-direction", "down", "-dsn", dsn}, envMap(nil), &out); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if !strings.Contains(out.String(), "version=0") {
		t.Fatalf("unexpected down output: %q", out.String())
	}

	// оставляем схему применённой для остальных интеграционных тестов
	if err := run(context.Background(), []string{"-direction", "up"}, env, &out); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}
}
