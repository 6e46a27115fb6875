package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// ErrRecipientRequired возвращается, если у заказа нет контактного email.
var ErrRecipientRequired = errors.New("mail recipient is required")

// Message: готовое к отправке письмо.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// Transport доставляет письмо получателю.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Option настраивает Mailer.
type Option func(*Mailer)

// WithLocation задаёт часовой пояс, в котором печатается дата заказа.
func WithLocation(loc *time.Location) Option {
	return func(m *Mailer) {
		if loc != nil {
			m.location = loc
		}
	}
}

// Mailer отправляет покупателю сводку заказа.
type Mailer struct {
	transport Transport
	from      string
	money     MoneyFormatter
	location  *time.Location
	logger    *log.Entry
}

// NewMailer создаёт отправителя писем поверх transport.
func NewMailer(transport Transport, from string, money MoneyFormatter, opts ...Option) *Mailer {
	m := &Mailer{
		transport: transport,
		from:      from,
		money:     money,
		location:  time.Local,
		logger:    log.WithField("component", "mailer"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendInvoice рендерит письмо со сводкой заказа и передаёт его транспорту.
// Ошибка транспорта возвращается как есть, решение о ней принимает вызывающий.
func (m *Mailer) SendInvoice(ctx context.Context, contactEmail string, order domain.Order, total decimal.Decimal) error {
	to := strings.TrimSpace(contactEmail)
	if to == "" {
		return ErrRecipientRequired
	}

	body, err := renderInvoice(newInvoiceView(order, total, m.money, m.location))
	if err != nil {
		return err
	}

	if err := m.transport.Send(ctx, Message{
		From:     m.from,
		To:       to,
		Subject:  InvoiceSubject,
		HTMLBody: body,
	}); err != nil {
		return fmt.Errorf("send invoice for order %s: %w", order.OrderNumber, err)
	}

	m.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	}).Info("invoice email sent")
	return nil
}

// LogTransport только пишет письмо в лог. Используется, когда SMTP не настроен.
type LogTransport struct {
	logger *log.Entry
}

// NewLogTransport создаёт транспорт-заглушку.
func NewLogTransport() *LogTransport {
	return &LogTransport{logger: log.WithField("component", "mail-log-transport")}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.logger.WithFields(log.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"bytes":   len(msg.HTMLBody),
	}).Info("smtp is not configured, email skipped")
	return nil
}

var (
	_ Transport = (*LogTransport)(nil)
	_ Transport = (*SMTPTransport)(nil)
)
