package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/encontrar/internal/health"
	"github.com/vladislavdragonenkov/encontrar/internal/service/orders"
	"github.com/vladislavdragonenkov/encontrar/internal/transport/rest"
)

func TestNewApplication_MemoryOrderFlow(t *testing.T) {
	cfg := validConfig()
	logger := log.WithField("test", "app-wiring")

	app, err := newApplication(t.Context(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { app.close(logger) })

	assert.Nil(t, app.outbox, "outbox worker needs kafka")
	require.NotNil(t, app.cleanup)

	body, err := json.Marshal(map[string]any{
		"name":     "Ana Silva",
		"email":    "ana@example.ao",
		"items":    []map[string]any{{"product_id": 1, "quantity": 2}},
		"delivery": map[string]any{"method_id": 1, "address": "Rua Direita 10", "city": "Luanda"},
		"payment":  map[string]any{"method_id": 1},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	app.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID          int64  `json:"id"`
		OrderNumber string `json:"order_number"`
		Total       string `json:"total"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "17000.00", created.Total)
	assert.Equal(t, string(domain.OrderStatusOpen), created.Status)
	assert.NotEmpty(t, created.OrderNumber)

	product, err := app.deps.catalog.GetProduct(t.Context(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, int32(48), product.Stock)

	stats, err := app.deps.outboxRepo.Stats(t.Context())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.PendingCount, 2, "order event and admin notification event")

	token, err := rest.NewAuthenticator(cfg.JWTSecret).Sign(orders.Caller{UserID: 1, Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/notifications/my", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	app.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var notifications []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifications))
	assert.NotEmpty(t, notifications)
}

func TestNewApplication_KafkaHealth(t *testing.T) {
	logger := log.WithField("test", "app-kafka-health")

	tests := []struct {
		name    string
		brokers []string
		message string
	}{
		{name: "not configured", message: "kafka is not configured, events stay in outbox"},
		{name: "unreachable", brokers: []string{"127.0.0.1:1"}, message: "producer unavailable, events stay in outbox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.KafkaBrokers = tt.brokers

			app, err := newApplication(t.Context(), cfg, logger)
			require.NoError(t, err)
			t.Cleanup(func() { app.close(logger) })

			rec := httptest.NewRecorder()
			app.health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp healthcheck.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, healthcheck.StatusDegraded, resp.Status)
			assert.Equal(t, tt.message, resp.Checks["kafka"].Message)
			assert.Equal(t, healthcheck.StatusHealthy, resp.Checks["storage"].Status)
		})
	}
}

func TestNewApplication_SMTPTransport(t *testing.T) {
	cfg := validConfig()
	cfg.SMTPHost = "smtp.example.ao"
	cfg.SMTPPort = 2525

	app, err := newApplication(t.Context(), cfg, log.WithField("test", "app-smtp"))
	require.NoError(t, err, "smtp client connects lazily")
	app.close(log.WithField("test", "app-smtp"))
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := validConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	waitServing(t, "http://"+cfg.MetricsAddr+"/livez")
	waitServing(t, "http://"+cfg.HTTPAddr+"/orders/my")

	code, _, err := get(t, "http://"+cfg.HTTPAddr+"/orders/my")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _, err = get(t, "http://"+cfg.MetricsAddr+"/readyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.StorageDriver = "sqlite"

	err := Run(t.Context(), cfg)
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestRun_AddressInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := validConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.GRPCAddr = busy.Addr().String()

	err = Run(t.Context(), cfg)
	require.ErrorContains(t, err, "listen grpc")
	assert.False(t, errors.Is(err, context.Canceled))
}
