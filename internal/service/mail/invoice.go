package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// InvoiceSubject: тема письма со сводкой заказа.
const InvoiceSubject = "Resumo do Pedido"

// createdLayout задаёт формат даты оформления в письме, например 14/05/2024 às 10:30.
const createdLayout = "02/01/2006 às 15:04"

//go:embed templates/order_invoice.html
var templatesFS embed.FS

var invoiceTemplate = template.Must(template.ParseFS(templatesFS, "templates/order_invoice.html"))

// MoneyFormatter печатает суммы в валюте магазина по правилам португальской локали.
type MoneyFormatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoneyFormatter создаёт форматтер для ISO 4217 кода валюты.
func NewMoneyFormatter(code string) (MoneyFormatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return MoneyFormatter{}, fmt.Errorf("currency %q: %w", code, err)
	}
	return MoneyFormatter{
		unit:    unit,
		printer: message.NewPrinter(language.Portuguese),
	}, nil
}

// Format возвращает сумму с символом валюты.
func (f MoneyFormatter) Format(amount decimal.Decimal) string {
	if f.printer == nil {
		return amount.StringFixed(domain.MoneyScale)
	}
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(amount.InexactFloat64())))
}

type invoiceLine struct {
	ProductID int64
	Quantity  int32
	UnitPrice string
	LineTotal string
}

type invoiceView struct {
	OrderNumber      string
	CustomerName     string
	CreatedFormatted string
	Items            []invoiceLine
	Total            string
	DeliveryMethod   string
	DeliveryPrice    string
	Address          string
	PaymentMethod    string
}

func newInvoiceView(order domain.Order, total decimal.Decimal, money MoneyFormatter, loc *time.Location) invoiceView {
	view := invoiceView{
		OrderNumber:      order.OrderNumber,
		CustomerName:     order.CustomerName,
		CreatedFormatted: order.CreatedAt.In(loc).Format(createdLayout),
		Total:            money.Format(total),
		DeliveryMethod:   order.Delivery.MethodName,
		PaymentMethod:    order.Payment.MethodName,
		Address: strings.Join(lo.Compact([]string{
			order.Delivery.Address,
			order.Delivery.City,
			order.Delivery.PostalCode,
			order.Delivery.Country,
		}), ", "),
		Items: lo.Map(order.Items, func(item domain.OrderItem, _ int) invoiceLine {
			return invoiceLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: money.Format(item.Price),
				LineTotal: money.Format(domain.RoundMoney(item.LineTotal())),
			}
		}),
	}
	if order.Delivery.Price.IsPositive() {
		view.DeliveryPrice = money.Format(order.Delivery.Price)
	}
	return view
}

func renderInvoice(view invoiceView) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}
	return buf.String(), nil
}
