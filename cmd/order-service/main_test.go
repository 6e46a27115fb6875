package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	t.Setenv("ENC_JWT_SECRET", "secret")
	t.Setenv("ENC_HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("ENC_GRPC_ADDR", "127.0.0.1:0")
	t.Setenv("ENC_METRICS_ADDR", "127.0.0.1:0")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.NoError(t, run(ctx, noEnvFile(t)))
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("ENC_JWT_SECRET", "secret")
	t.Setenv("ENC_STORAGE_DRIVER", "sqlite")

	require.ErrorContains(t, run(t.Context(), noEnvFile(t)), "unsupported storage driver")
}

func TestRun_MalformedEnv(t *testing.T) {
	t.Setenv("ENC_OUTBOX_BATCH_SIZE", "lots")

	require.ErrorContains(t, run(t.Context(), noEnvFile(t)), "load config")
}

func TestRun_BadLogLevel(t *testing.T) {
	t.Setenv("ENC_JWT_SECRET", "secret")
	t.Setenv("ENC_LOG_LEVEL", "shouting")

	require.ErrorContains(t, run(t.Context(), noEnvFile(t)), "configure logging")
}
