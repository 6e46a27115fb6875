package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/metrics"
)

const (
	defaultSideEffectTimeout = 10 * time.Second
	defaultLowStockThreshold = int32(5)
)

// InvoiceMailer отправляет покупателю письмо со сводкой заказа.
type InvoiceMailer interface {
	SendInvoice(ctx context.Context, contactEmail string, order domain.Order, total decimal.Decimal) error
}

// OrderNotifier рассылает уведомления о новом заказе. Ошибки обрабатывает сам.
type OrderNotifier interface {
	NotifyOnOrderCreated(ctx context.Context, order domain.Order)
}

// Caller: тот, от чьего имени выполняется операция. Нулевое значение означает анонима.
type Caller struct {
	UserID int64
	Role   domain.Role
}

// Authenticated сообщает, что вызывающий вошёл в систему.
func (c Caller) Authenticated() bool {
	return c.UserID > 0
}

// Privileged сообщает, что вызывающий видит скрытые товары и чужие заказы.
func (c Caller) Privileged() bool {
	return c.Authenticated() && c.Role.Privileged()
}

// Deps: зависимости сервиса заказов.
type Deps struct {
	Orders    domain.OrderRepository
	Timeline  domain.TimelineRepository
	Outbox    domain.OutboxRepository
	Inventory domain.Inventory
	Products  domain.ProductCatalog
	Methods   domain.MethodCatalog
	Users     domain.UserDirectory
	Mailer    InvoiceMailer
	Notifier  OrderNotifier
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics подключает метрики оформления.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSideEffectTimeout ограничивает каждый побочный эффект после создания заказа.
func WithSideEffectTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.sideEffectTimeout = timeout
		}
	}
}

// WithLowStockThreshold задаёт порог «мало на складе» для статистики.
func WithLowStockThreshold(threshold int32) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.lowStockThreshold = threshold
		}
	}
}

// Service реализует оформление, изменение и выборку заказов.
type Service struct {
	orders    domain.OrderRepository
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository
	inventory domain.Inventory
	products  domain.ProductCatalog
	users     domain.UserDirectory
	resolver  *Resolver
	assembler *Assembler
	mailer    InvoiceMailer
	notifier  OrderNotifier

	metrics           *metrics.OrderMetrics
	logger            *log.Entry
	sideEffectTimeout time.Duration
	lowStockThreshold int32
}

// NewService собирает сервис заказов. Mailer, Notifier, Timeline и Outbox необязательны.
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		orders:            deps.Orders,
		timeline:          deps.Timeline,
		outbox:            deps.Outbox,
		inventory:         deps.Inventory,
		products:          deps.Products,
		users:             deps.Users,
		resolver:          NewResolver(deps.Products),
		assembler:         NewAssembler(deps.Methods),
		mailer:            deps.Mailer,
		notifier:          deps.Notifier,
		logger:            log.WithField("component", "orders"),
		sideEffectTimeout: defaultSideEffectTimeout,
		lowStockThreshold: defaultLowStockThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrderRequest: запрос на оформление заказа.
type CreateOrderRequest struct {
	Contact  Contact
	Items    []ItemRequest
	Delivery DeliveryRequest
	Payment  PaymentRequest
}

// CreateOrder оформляет заказ: позиции с ценой, сборка, резерв остатков,
// сохранение с номером, затем письмо и уведомления. Ошибки письма и уведомлений
// не влияют на результат.
func (s *Service) CreateOrder(ctx context.Context, caller Caller, req CreateOrderRequest) (domain.Order, error) {
	finish := s.metrics.CreateStarted()
	order, err := s.createOrder(ctx, caller, req)
	finish(err, failureReason(err))
	if err != nil {
		s.logger.WithError(err).WithField("user_id", caller.UserID).Warn("order creation failed")
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, caller Caller, req CreateOrderRequest) (domain.Order, error) {
	if err := validateContact(req.Contact); err != nil {
		return domain.Order{}, err
	}
	if len(req.Items) == 0 {
		return domain.Order{}, domain.NewValidationError("items", domain.ErrItemsRequired)
	}

	userID, privileged, err := s.resolveCaller(ctx, caller)
	if err != nil {
		return domain.Order{}, err
	}

	var items []domain.OrderItem
	if err := s.step(metrics.StepResolve, func() (err error) {
		items, err = s.resolver.ResolveItems(ctx, req.Items, privileged)
		return err
	}); err != nil {
		return domain.Order{}, err
	}

	var draft domain.Order
	if err := s.step(metrics.StepAssemble, func() (err error) {
		draft, err = s.assembler.Assemble(ctx, AssembleInput{
			UserID:   userID,
			Contact:  req.Contact,
			Items:    items,
			Delivery: req.Delivery,
			Payment:  req.Payment,
		})
		return err
	}); err != nil {
		return domain.Order{}, err
	}

	lines, err := domain.StockLinesFor(draft.Items)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.step(metrics.StepReserve, func() error {
		return s.inventory.Reserve(ctx, lines)
	}); err != nil {
		return domain.Order{}, fmt.Errorf("reserve stock: %w", err)
	}

	var created domain.Order
	if err := s.step(metrics.StepPersist, func() (err error) {
		created, err = s.orders.CreateNumbered(ctx, draft, domain.GenerateOrderNumber)
		return err
	}); err != nil {
		s.releaseStock(ctx, 0, lines, "create failed")
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	logger := s.logger.WithFields(log.Fields{
		"order_id":     created.ID,
		"order_number": created.OrderNumber,
	})
	logger.Info("order created")

	s.appendTimeline(ctx, created.ID, domain.TimelineOrderCreated, "")
	s.appendTimeline(ctx, created.ID, domain.TimelineOrderNumbered, created.OrderNumber)
	s.enqueueOrderEvent(ctx, domain.EventOrderCreated, created, "")

	s.runSideEffects(ctx, created)

	return created, nil
}

// resolveCaller подтягивает пользователя из справочника: его роль важнее роли из токена.
func (s *Service) resolveCaller(ctx context.Context, caller Caller) (*int64, bool, error) {
	if !caller.Authenticated() {
		return nil, false, nil
	}
	userID := caller.UserID
	if s.users == nil {
		return &userID, caller.Privileged(), nil
	}
	user, err := s.users.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("caller %d: %w", caller.UserID, err)
	}
	return &userID, user.Role.Privileged(), nil
}

// requirePrivileged пускает только привилегированные роли. Роль берётся из справочника,
// а не из токена; неизвестный пользователь получает ErrForbidden.
func (s *Service) requirePrivileged(ctx context.Context, caller Caller) error {
	_, privileged, err := s.resolveCaller(ctx, caller)
	switch {
	case domain.IsNotFound(err):
		return domain.ErrForbidden
	case err != nil:
		return err
	case !privileged:
		return domain.ErrForbidden
	}
	return nil
}

// runSideEffects последовательно отправляет письмо и уведомления.
// Каждый шаг ограничен своим таймаутом и не зависит от отмены запроса.
func (s *Service) runSideEffects(ctx context.Context, order domain.Order) {
	base := context.WithoutCancel(ctx)

	if s.mailer != nil {
		_ = s.step(metrics.StepMail, func() error {
			mailCtx, cancel := context.WithTimeout(base, s.sideEffectTimeout)
			defer cancel()
			if err := s.mailer.SendInvoice(mailCtx, order.CustomerEmail, order, order.Total); err != nil {
				s.metrics.RecordSideEffectFailure(metrics.SideEffectMail)
				s.logger.WithError(err).WithField("order_id", order.ID).Warn("invoice email failed")
				return err
			}
			s.appendTimeline(base, order.ID, domain.TimelineInvoiceMailed, order.CustomerEmail)
			return nil
		})
	}

	if s.notifier != nil {
		_ = s.step(metrics.StepNotify, func() error {
			notifyCtx, cancel := context.WithTimeout(base, s.sideEffectTimeout)
			defer cancel()
			s.notifier.NotifyOnOrderCreated(notifyCtx, order)
			s.appendTimeline(base, order.ID, domain.TimelineNotified, "")
			return nil
		})
	}
}

func (s *Service) releaseStock(ctx context.Context, orderID int64, lines []domain.StockLine, reason string) {
	if len(lines) == 0 {
		return
	}
	if err := s.inventory.Release(context.WithoutCancel(ctx), lines); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"reason":   reason,
		}).Error("failed to release stock")
		return
	}
	s.metrics.RecordStockRelease()
	if orderID > 0 {
		s.appendTimeline(ctx, orderID, domain.TimelineStockReleased, reason)
	}
}

func (s *Service) appendTimeline(ctx context.Context, orderID int64, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.Append(ctx, domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}); err != nil {
		s.metrics.RecordSideEffectFailure(metrics.SideEffectTimeline)
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"type":     eventType,
		}).Warn("failed to append timeline event")
	}
}

func (s *Service) enqueueOrderEvent(ctx context.Context, eventType string, order domain.Order, prev domain.OrderStatus) {
	if s.outbox == nil {
		return
	}
	msg, err := domain.NewOrderOutboxMessage(eventType, order, prev)
	if err == nil {
		_, err = s.outbox.Enqueue(ctx, msg)
	}
	if err != nil {
		s.metrics.RecordSideEffectFailure(metrics.SideEffectOutbox)
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).Error("failed to enqueue order event")
	}
}

func (s *Service) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveStep(name, time.Since(start))
	return err
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsValidation(err):
		return "validation"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsConflict(err):
		return "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
