package rest

import (
	"time"

	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/service/orders"
)

type itemPayload struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type deliveryPayload struct {
	MethodID   int64  `json:"method_id"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	AddressID  *int64 `json:"address_id"`
}

type paymentPayload struct {
	MethodID int64             `json:"method_id"`
	Metadata map[string]string `json:"metadata"`
}

type createOrderPayload struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	Items    []itemPayload   `json:"items"`
	Delivery deliveryPayload `json:"delivery"`
	Payment  paymentPayload  `json:"payment"`
}

type updateOrderPayload struct {
	Version        *int64           `json:"version"`
	Name           *string          `json:"name"`
	Email          *string          `json:"email"`
	Phone          *string          `json:"phone"`
	Items          []itemPayload    `json:"items"`
	Delivery       *deliveryPayload `json:"delivery"`
	DeliveryStatus *string          `json:"delivery_status"`
	Payment        *paymentPayload  `json:"payment"`
	Status         *string          `json:"status"`
}

func toItemRequests(items []itemPayload) []orders.ItemRequest {
	if items == nil {
		return nil
	}
	return lo.Map(items, func(it itemPayload, _ int) orders.ItemRequest {
		return orders.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	})
}

func (p deliveryPayload) request() orders.DeliveryRequest {
	return orders.DeliveryRequest{
		MethodID:   p.MethodID,
		Address:    p.Address,
		City:       p.City,
		PostalCode: p.PostalCode,
		Country:    p.Country,
		AddressID:  p.AddressID,
	}
}

func (p paymentPayload) request() orders.PaymentRequest {
	return orders.PaymentRequest{MethodID: p.MethodID, Metadata: p.Metadata}
}

func (p createOrderPayload) request() orders.CreateOrderRequest {
	return orders.CreateOrderRequest{
		Contact:  orders.Contact{Name: p.Name, Email: p.Email, Phone: p.Phone},
		Items:    toItemRequests(p.Items),
		Delivery: p.Delivery.request(),
		Payment:  p.Payment.request(),
	}
}

func (p updateOrderPayload) request() (orders.UpdateOrderRequest, error) {
	req := orders.UpdateOrderRequest{
		ExpectedVersion: p.Version,
		Items:           toItemRequests(p.Items),
	}
	if p.Name != nil || p.Email != nil || p.Phone != nil {
		req.Contact = &orders.ContactPatch{Name: p.Name, Email: p.Email, Phone: p.Phone}
	}
	if p.Delivery != nil {
		delivery := p.Delivery.request()
		req.Delivery = &delivery
	}
	if p.Payment != nil {
		payment := p.Payment.request()
		req.Payment = &payment
	}
	if p.DeliveryStatus != nil {
		status, err := domain.ParseDeliveryStatus(*p.DeliveryStatus)
		if err != nil {
			return orders.UpdateOrderRequest{}, err
		}
		req.DeliveryStatus = &status
	}
	if p.Status != nil {
		status, err := domain.ParseOrderStatus(*p.Status)
		if err != nil {
			return orders.UpdateOrderRequest{}, err
		}
		req.Status = &status
	}
	return req, nil
}

type itemResponse struct {
	ProductID int64  `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Price     string `json:"price"`
	LineTotal string `json:"line_total"`
}

type deliveryResponse struct {
	MethodID   int64  `json:"method_id"`
	MethodName string `json:"method_name"`
	Status     string `json:"status"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	AddressID  *int64 `json:"address_id,omitempty"`
	Price      string `json:"price"`
}

type paymentResponse struct {
	MethodID   int64             `json:"method_id"`
	MethodName string            `json:"method_name"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type orderResponse struct {
	ID            int64            `json:"id"`
	OrderNumber   string           `json:"order_number"`
	CustomerName  string           `json:"customer_name"`
	CustomerEmail string           `json:"customer_email"`
	CustomerPhone string           `json:"customer_phone,omitempty"`
	UserID        *int64           `json:"user_id,omitempty"`
	Status        string           `json:"status"`
	Total         string           `json:"total"`
	Items         []itemResponse   `json:"items"`
	Delivery      deliveryResponse `json:"delivery"`
	Payment       paymentResponse  `json:"payment"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func newOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CustomerPhone: o.CustomerPhone,
		UserID:        o.UserID,
		Status:        string(o.Status),
		Total:         o.Total.StringFixed(2),
		Items: lo.Map(o.Items, func(it domain.OrderItem, _ int) itemResponse {
			return itemResponse{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     it.Price.StringFixed(2),
				LineTotal: domain.RoundMoney(it.LineTotal()).StringFixed(2),
			}
		}),
		Delivery: deliveryResponse{
			MethodID:   o.Delivery.MethodID,
			MethodName: o.Delivery.MethodName,
			Status:     string(o.Delivery.Status),
			Address:    o.Delivery.Address,
			City:       o.Delivery.City,
			PostalCode: o.Delivery.PostalCode,
			Country:    o.Delivery.Country,
			AddressID:  o.Delivery.AddressID,
			Price:      o.Delivery.Price.StringFixed(2),
		},
		Payment: paymentResponse{
			MethodID:   o.Payment.MethodID,
			MethodName: o.Payment.MethodName,
			Metadata:   o.Payment.Metadata,
		},
		Version:   o.Version,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func newOrderList(list []domain.Order) []orderResponse {
	return lo.Map(list, func(o domain.Order, _ int) orderResponse { return newOrderResponse(o) })
}

type timelineResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func newTimeline(events []domain.TimelineEvent) []timelineResponse {
	return lo.Map(events, func(e domain.TimelineEvent, _ int) timelineResponse {
		return timelineResponse{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred}
	})
}

type notificationResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func newNotificationResponse(n domain.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

type statsResponse struct {
	ConfirmedToday        int       `json:"confirmed_today"`
	ConfirmedThisWeek     int       `json:"confirmed_this_week"`
	DeliveredThisWeek     int       `json:"delivered_this_week"`
	TotalSalesThisWeek    string    `json:"total_sales_this_week"`
	LowStockProductsCount int       `json:"low_stock_products_count"`
	WeekStart             time.Time `json:"week_start"`
	WeekEnd               time.Time `json:"week_end"`
}

func newStatsResponse(s orders.DashboardStats) statsResponse {
	return statsResponse{
		ConfirmedToday:        s.ConfirmedToday,
		ConfirmedThisWeek:     s.ConfirmedThisWeek,
		DeliveredThisWeek:     s.DeliveredThisWeek,
		TotalSalesThisWeek:    s.TotalSalesThisWeek.StringFixed(2),
		LowStockProductsCount: s.LowStockProductsCount,
		WeekStart:             s.WeekStart,
		WeekEnd:               s.WeekEnd,
	}
}
