// Package rest реализует HTTP-интерфейс сервиса заказов на gin.
package rest

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/metrics"
	"github.com/vladislavdragonenkov/encontrar/internal/service/idempotency"
	"github.com/vladislavdragonenkov/encontrar/internal/service/orders"
)

// OrderService: операции над заказами, доступные через REST.
type OrderService interface {
	CreateOrder(ctx context.Context, caller orders.Caller, req orders.CreateOrderRequest) (domain.Order, error)
	UpdateOrder(ctx context.Context, caller orders.Caller, id int64, req orders.UpdateOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, caller orders.Caller, id int64) (domain.Order, error)
	ListOrders(ctx context.Context, caller orders.Caller, query domain.OrderQuery) ([]domain.Order, error)
	ListUserOrders(ctx context.Context, caller orders.Caller) ([]domain.Order, error)
	ListOrdersByEmail(ctx context.Context, caller orders.Caller, email string) ([]domain.Order, error)
	ListSales(ctx context.Context, caller orders.Caller) ([]domain.Order, error)
	Timeline(ctx context.Context, caller orders.Caller, id int64) ([]domain.TimelineEvent, error)
	Stats(ctx context.Context, caller orders.Caller, now time.Time) (orders.DashboardStats, error)
}

// NotificationService: уведомления текущего пользователя.
type NotificationService interface {
	ListForUser(ctx context.Context, userID int64) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, userID, id int64) (domain.Notification, error)
}

var _ OrderService = (*orders.Service)(nil)

// Deps: зависимости HTTP-слоя. Idempotency и Metrics необязательны.
type Deps struct {
	Orders        OrderService
	Notifications NotificationService
	Auth          *Authenticator
	Idempotency   *idempotency.Guard
	Metrics       *metrics.HTTPMetrics
}

// Option настраивает Handler.
type Option func(*Handler)

// WithAllowedOrigins включает CORS для перечисленных источников.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) {
		h.origins = origins
	}
}

// WithLocation задаёт часовой пояс для дат в фильтрах и статистике.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.loc = loc
		}
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger задаёт logger HTTP-слоя.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler держит зависимости обработчиков.
type Handler struct {
	orders        OrderService
	notifications NotificationService
	auth          *Authenticator
	guard         *idempotency.Guard
	metrics       *metrics.HTTPMetrics

	origins []string
	loc     *time.Location
	now     func() time.Time
	logger  *log.Entry
}

// NewRouter собирает gin.Engine со всеми маршрутами.
func NewRouter(deps Deps, opts ...Option) *gin.Engine {
	h := &Handler{
		orders:        deps.Orders,
		notifications: deps.Notifications,
		auth:          deps.Auth,
		guard:         deps.Idempotency,
		metrics:       deps.Metrics,
		loc:           time.UTC,
		now:           time.Now,
		logger:        log.WithField("component", "http"),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.observe)
	if len(h.origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     h.origins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", headerIdempotencyKey},
			ExposeHeaders:    []string{"Content-Length", headerRequestID, headerReplayed},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if h.auth != nil {
		r.Use(h.auth.Middleware())
	}

	r.POST("/orders", h.createOrder)

	authed := r.Group("/", requireAuth)
	authed.GET("/orders", h.listOrders)
	authed.GET("/orders/sales", h.listSales)
	authed.GET("/orders/by-email", h.listOrdersByEmail)
	authed.GET("/orders/my", h.listMyOrders)
	authed.GET("/orders/:id", h.getOrder)
	authed.GET("/orders/:id/timeline", h.timeline)
	authed.PATCH("/orders/:id", h.updateOrder)
	authed.GET("/dashboard/stats", h.stats)
	authed.GET("/notifications/my", h.listNotifications)
	authed.PATCH("/notifications/:id/read", h.markNotificationRead)

	return r
}
