package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMarkup: наценка на закупочную цену, если у товара нет явной цены продажи.
var DefaultMarkup = decimal.RequireFromString("1.1")

// Role: роль пользователя платформы.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleSales      Role = "sales"
	RoleShopkeeper Role = "shopkeeper"
	RoleCustomer   Role = "customer"
)

// ParseRole приводит строку к Role. Неизвестные значения считаются покупателем.
func ParseRole(raw string) Role {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleAdmin, RoleManager, RoleSales, RoleShopkeeper:
		return role
	default:
		return RoleCustomer
	}
}

// Privileged сообщает, видит ли роль скрытые товары и чужие заказы.
func (r Role) Privileged() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSales:
		return true
	default:
		return false
	}
}

// Product: товар каталога в том виде, в каком его видит оформление заказа.
type Product struct {
	ID   int64
	Name string
	// Price: цена продажи, уже с наценкой и комиссией. nil, если каталог её не задал.
	Price         *decimal.Decimal
	PurchasePrice decimal.Decimal
	Commission    decimal.Decimal
	Visible       bool
	Stock         int32
	ShopID        *int64
}

// SalePrice возвращает текущую цену продажи товара.
// Без явной цены: закупочная цена плюс комиссия в процентах, а при нулевой комиссии DefaultMarkup.
func (p Product) SalePrice() decimal.Decimal {
	if p.Price != nil {
		return RoundMoney(*p.Price)
	}
	if p.Commission.IsPositive() {
		markup := decimal.NewFromInt(1).Add(p.Commission.Div(decimal.NewFromInt(100)))
		return RoundMoney(p.PurchasePrice.Mul(markup))
	}
	return RoundMoney(p.PurchasePrice.Mul(DefaultMarkup))
}

// Shop: магазин продавца.
type Shop struct {
	ID     int64
	Name   string
	UserID *int64
}

// User: пользователь платформы.
type User struct {
	ID    int64
	Name  string
	Email string
	Role  Role
}

// DeliveryMethod: способ доставки.
type DeliveryMethod struct {
	ID     int64
	Name   string
	Price  decimal.Decimal
	Active bool
}

// PaymentMethod: способ оплаты.
type PaymentMethod struct {
	ID     int64
	Name   string
	Active bool
}
