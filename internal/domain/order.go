package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа магазина.
type OrderStatus string

const (
	// OrderStatusPending — заказ принят и ждёт отгрузки.
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusCompleted — заказ отгружен.
	OrderStatusCompleted OrderStatus = "Completed"
)

// ParseOrderStatus принимает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return OrderStatusPending, nil
	case "completed", "complete":
		return OrderStatusCompleted, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	return s == OrderStatusPending || s == OrderStatusCompleted
}

// Shop — магазин-покупатель. Название уникально без учёта регистра.
type Shop struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ShopNameKey — ключ сравнения названий магазинов. Регистр сворачивается по правилам Unicode
// в Go, а не в СУБД, чтобы все хранилища сравнивали одинаково.
func ShopNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// OrderLine — позиция размещённого заказа.
type OrderLine struct {
	ID      string
	OrderID string
	// AgencyProductID может быть пустым, если товар удалили из каталога после оформления.
	AgencyProductID string
	AgencyID        string
	AgencyName      string
	ProductName     string
	Unit            string
	Quantity        int
}

// Order — заказ магазина. ShopName заполняется при чтении.
type Order struct {
	ID        string
	ShopID    string
	ShopName  string
	Status    OrderStatus
	Lines     []OrderLine
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error
	if o.ShopID == "" {
		errs = append(errs, ErrShopNameRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrNegativeQuantity)
		}
		if line.ProductName == "" {
			errs = append(errs, ErrProductNameRequired)
		}
	}
	return errs
}

// LinesFromCart превращает позиции корзины в позиции заказа, сохраняя порядок.
func LinesFromCart(orderID string, lines []CartLine, newID func() string) []OrderLine {
	out := make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, OrderLine{
			ID:              newID(),
			OrderID:         orderID,
			AgencyProductID: l.ProductID,
			AgencyID:        l.AgencyID,
			AgencyName:      l.AgencyName,
			ProductName:     l.ProductName,
			Unit:            l.Unit,
			Quantity:        l.Quantity,
		})
	}
	return out
}
