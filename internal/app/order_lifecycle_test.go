package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/service/orders"
	"github.com/vladislavdragonenkov/encontrar/internal/transport/rest"
)

// OrderLifecycleTestSuite проверяет жизненный цикл заказа через REST на in-memory хранилище.
type OrderLifecycleTestSuite struct {
	suite.Suite
	app   *application
	admin string
}

type lifecycleOrder struct {
	ID          int64  `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Total       string `json:"total"`
	Version     int64  `json:"version"`
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "lifecycle-test")

	cfg := validConfig()
	app, err := newApplication(s.T().Context(), cfg, logger)
	s.Require().NoError(err)
	s.T().Cleanup(func() { app.close(logger) })
	s.app = app

	s.admin, err = rest.NewAuthenticator(cfg.JWTSecret).Sign(orders.Caller{UserID: 1, Role: domain.RoleAdmin}, time.Hour)
	s.Require().NoError(err)
}

func (s *OrderLifecycleTestSuite) do(method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.app.router.ServeHTTP(rec, req)
	return rec
}

func (s *OrderLifecycleTestSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func orderBody(productID int64, qty int32) map[string]any {
	return map[string]any{
		"name":     "Joana Baptista",
		"email":    "joana@example.ao",
		"phone":    "+244 923 000 000",
		"items":    []map[string]any{{"product_id": productID, "quantity": qty}},
		"delivery": map[string]any{"method_id": 1, "address": "Rua Rainha Ginga 29", "city": "Luanda"},
		"payment":  map[string]any{"method_id": 1},
	}
}

func (s *OrderLifecycleTestSuite) createOrder(productID int64, qty int32) lifecycleOrder {
	rec := s.do(http.MethodPost, "/orders", "", orderBody(productID, qty), nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var order lifecycleOrder
	s.decode(rec, &order)
	return order
}

func (s *OrderLifecycleTestSuite) setStatus(order lifecycleOrder, status domain.OrderStatus) *httptest.ResponseRecorder {
	return s.do(http.MethodPatch, fmt.Sprintf("/orders/%d", order.ID), s.admin,
		map[string]any{"version": order.Version, "status": string(status)}, nil)
}

func (s *OrderLifecycleTestSuite) stock(productID int64) int32 {
	product, err := s.app.deps.catalog.GetProduct(s.T().Context(), productID, false)
	s.Require().NoError(err)
	return product.Stock
}

func (s *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	order := s.createOrder(2, 3)
	s.Equal("9600.00", order.Total)
	s.Equal(string(domain.OrderStatusOpen), order.Status)
	s.Equal(int32(117), s.stock(2))

	rec := s.setStatus(order, domain.OrderStatusConfirmed)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &order)
	s.Equal(string(domain.OrderStatusConfirmed), order.Status)

	rec = s.setStatus(order, domain.OrderStatusDelivered)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &order)
	s.Equal(string(domain.OrderStatusDelivered), order.Status)
	s.Equal(int32(117), s.stock(2), "delivery keeps the reservation")

	rec = s.do(http.MethodGet, fmt.Sprintf("/orders/%d/timeline", order.ID), s.admin, nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var timeline []struct {
		Type string `json:"type"`
	}
	s.decode(rec, &timeline)

	types := make(map[string]int, len(timeline))
	for _, event := range timeline {
		types[event.Type]++
	}
	s.Equal(1, types[domain.TimelineOrderCreated])
	s.Equal(1, types[domain.TimelineOrderNumbered])
	s.Equal(2, types[domain.TimelineStatusChanged])
}

func (s *OrderLifecycleTestSuite) TestOrderCancellationReleasesStock() {
	order := s.createOrder(1, 5)
	s.Equal(int32(45), s.stock(1))

	rec := s.setStatus(order, domain.OrderStatusCancelled)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &order)
	s.Equal(string(domain.OrderStatusCancelled), order.Status)
	s.Equal(int32(50), s.stock(1))

	rec = s.setStatus(order, domain.OrderStatusConfirmed)
	s.Equal(http.StatusConflict, rec.Code, "cancelled is terminal")
}

func (s *OrderLifecycleTestSuite) TestInsufficientStockRejected() {
	rec := s.do(http.MethodPost, "/orders", "", orderBody(3, 5), nil)
	s.Equal(http.StatusConflict, rec.Code, rec.Body.String())
	s.Equal(int32(4), s.stock(3))
}

func (s *OrderLifecycleTestSuite) TestStaleVersionConflict() {
	order := s.createOrder(1, 1)

	rec := s.setStatus(order, domain.OrderStatusConfirmed)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.setStatus(order, domain.OrderStatusCancelled)
	s.Equal(http.StatusConflict, rec.Code, "stale version must be rejected")
}

func (s *OrderLifecycleTestSuite) TestIdempotentCreateReplays() {
	headers := map[string]string{"Idempotency-Key": "lifecycle-key-1"}

	first := s.do(http.MethodPost, "/orders", "", orderBody(1, 1), headers)
	s.Require().Equal(http.StatusCreated, first.Code, first.Body.String())

	second := s.do(http.MethodPost, "/orders", "", orderBody(1, 1), headers)
	s.Require().Equal(http.StatusCreated, second.Code, second.Body.String())
	s.Equal("true", second.Header().Get("Idempotent-Replayed"))
	s.JSONEq(first.Body.String(), second.Body.String())
	s.Equal(int32(49), s.stock(1), "replay must not reserve again")

	conflict := s.do(http.MethodPost, "/orders", "", orderBody(1, 2), headers)
	s.Equal(http.StatusConflict, conflict.Code)
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
