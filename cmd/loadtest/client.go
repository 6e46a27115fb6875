package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/service/orders"
	"github.com/vladislavdragonenkov/encontrar/internal/transport/rest"
)

const (
	idempotencyHeader = "Idempotency-Key"
	adminTokenTTL     = time.Hour
)

// statusError: сервер ответил кодом, которого сценарий не ждал.
type statusError struct {
	method string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.method, e.code, e.body)
}

// scenarioCode возвращает код, с которым сценарий попадает в отчёт.
func scenarioCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code
	}
	return codeTransportError
}

type itemBody struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type methodBody struct {
	MethodID int64  `json:"method_id"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
}

type createOrderBody struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone,omitempty"`
	Items    []itemBody `json:"items"`
	Delivery methodBody `json:"delivery"`
	Payment  methodBody `json:"payment"`
}

type statusBody struct {
	Version int64  `json:"version"`
	Status  string `json:"status"`
}

// orderView: поля ответа, нужные сценарию.
type orderView struct {
	ID      int64  `json:"id"`
	Version int64  `json:"version"`
	Status  string `json:"status"`
}

// orderClient ходит в REST API сервиса заказов и пишет каждый вызов в collector.
type orderClient struct {
	http  *resty.Client
	token string
	col   *collector
}

func newOrderClient(cfg config, col *collector) (*orderClient, error) {
	client := &orderClient{
		http: resty.New().
			SetBaseURL(cfg.baseURL).
			SetTimeout(cfg.timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		col: col,
	}
	if cfg.mode == modeCreate {
		return client, nil
	}

	token, err := rest.NewAuthenticator(cfg.jwtSecret).Sign(orders.Caller{
		UserID: cfg.adminID,
		Role:   domain.RoleAdmin,
	}, adminTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}
	client.token = token
	return client, nil
}

func (c *orderClient) create(ctx context.Context, body createOrderBody, key string) (orderView, error) {
	var view orderView
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(idempotencyHeader, key).
		SetBody(body).
		SetResult(&view).
		Post("/orders")
	code := c.recordCall("CreateOrder", start, resp, err)
	if err != nil {
		return orderView{}, err
	}
	if code != http.StatusCreated {
		return orderView{}, &statusError{method: "CreateOrder", code: code, body: resp.String()}
	}
	return view, nil
}

func (c *orderClient) setStatus(ctx context.Context, method string, order orderView, status domain.OrderStatus) (orderView, error) {
	var view orderView
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetBody(statusBody{Version: order.Version, Status: string(status)}).
		SetResult(&view).
		Patch("/orders/" + strconv.FormatInt(order.ID, 10))
	code := c.recordCall(method, start, resp, err)
	if err != nil {
		return orderView{}, err
	}
	if code != http.StatusOK {
		return orderView{}, &statusError{method: method, code: code, body: resp.String()}
	}
	return view, nil
}

func (c *orderClient) recordCall(method string, start time.Time, resp *resty.Response, err error) int {
	code := codeTransportError
	if err == nil && resp != nil {
		code = resp.StatusCode()
	}
	c.col.record(method, time.Since(start), code)
	return code
}
