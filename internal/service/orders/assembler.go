package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// Contact: контактные данные покупателя.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// DeliveryRequest: выбранный способ доставки и адрес.
type DeliveryRequest struct {
	MethodID   int64
	Address    string
	City       string
	PostalCode string
	Country    string
	AddressID  *int64
}

// PaymentRequest: выбранный способ оплаты.
type PaymentRequest struct {
	MethodID int64
	Metadata map[string]string
}

// AssembleInput: всё, из чего собирается новый заказ.
type AssembleInput struct {
	UserID   *int64
	Contact  Contact
	Items    []domain.OrderItem
	Delivery DeliveryRequest
	Payment  PaymentRequest
}

// Assembler собирает несохранённый заказ: способы доставки и оплаты, снимок цен, итог.
type Assembler struct {
	methods domain.MethodCatalog
	now     func() time.Time
}

// NewAssembler создаёт Assembler.
func NewAssembler(methods domain.MethodCatalog) *Assembler {
	return &Assembler{
		methods: methods,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Assemble возвращает заказ в статусе open без ID и номера.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (domain.Order, error) {
	if err := validateContact(in.Contact); err != nil {
		return domain.Order{}, err
	}

	delivery, err := a.resolveDelivery(ctx, in.Delivery)
	if err != nil {
		return domain.Order{}, err
	}
	payment, err := a.resolvePayment(ctx, in.Payment)
	if err != nil {
		return domain.Order{}, err
	}

	now := a.now()
	order := domain.Order{
		CustomerName:  strings.TrimSpace(in.Contact.Name),
		CustomerEmail: strings.TrimSpace(in.Contact.Email),
		CustomerPhone: strings.TrimSpace(in.Contact.Phone),
		UserID:        in.UserID,
		Items:         in.Items,
		Delivery:      delivery,
		Payment:       payment,
		Status:        domain.OrderStatusOpen,
		Total:         domain.OrderTotal(in.Items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, domain.NewValidationError("order", errs[0])
	}
	return order.Clone(), nil
}

func (a *Assembler) resolveDelivery(ctx context.Context, req DeliveryRequest) (domain.OrderDelivery, error) {
	if req.MethodID <= 0 {
		return domain.OrderDelivery{}, domain.NewValidationError("delivery.method_id", domain.ErrDeliveryMethodRequired)
	}
	method, err := a.methods.GetDeliveryMethod(ctx, req.MethodID)
	if err != nil {
		return domain.OrderDelivery{}, fmt.Errorf("delivery method %d: %w", req.MethodID, err)
	}
	return domain.OrderDelivery{
		MethodID:   method.ID,
		MethodName: method.Name,
		Status:     domain.DeliveryStatusPending,
		Address:    strings.TrimSpace(req.Address),
		City:       strings.TrimSpace(req.City),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
		AddressID:  req.AddressID,
		Price:      domain.RoundMoney(method.Price),
	}, nil
}

func (a *Assembler) resolvePayment(ctx context.Context, req PaymentRequest) (domain.OrderPayment, error) {
	if req.MethodID <= 0 {
		return domain.OrderPayment{}, domain.NewValidationError("payment.method_id", domain.ErrPaymentMethodRequired)
	}
	method, err := a.methods.GetPaymentMethod(ctx, req.MethodID)
	if err != nil {
		return domain.OrderPayment{}, fmt.Errorf("payment method %d: %w", req.MethodID, err)
	}
	return domain.OrderPayment{
		MethodID:   method.ID,
		MethodName: method.Name,
		Metadata:   req.Metadata,
	}, nil
}

func validateContact(c Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return domain.NewValidationError("full_name", domain.ErrContactRequired)
	}
	if strings.TrimSpace(c.Email) == "" {
		return domain.NewValidationError("contact_email", domain.ErrContactRequired)
	}
	return nil
}
