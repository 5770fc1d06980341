package domain

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// CartLine — позиция корзины в рамках сессии сборки заказа.
type CartLine struct {
	LineID      string `json:"line_id"`
	AgencyID    string `json:"agency_id"`
	AgencyName  string `json:"agency_name"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
	Quantity    int    `json:"quantity"`
}

// CartChange описывает, что сделал SetQuantity с корзиной.
type CartChange string

const (
	CartLineAdded   CartChange = "added"
	CartLineUpdated CartChange = "updated"
	CartLineRemoved CartChange = "removed"
	CartUnchanged   CartChange = "unchanged"
)

// Cart хранит позиции в порядке добавления.
// Инвариант: не больше одной позиции на пару (agency_id, product_name), количество всегда >= 1.
type Cart struct {
	lines []CartLine
}

// NewCart создаёт корзину из готовых позиций, повторно применяя инварианты.
func NewCart(lines []CartLine) *Cart {
	c := &Cart{}
	for _, l := range lines {
		if l.Quantity <= 0 || l.AgencyID == "" || l.ProductName == "" {
			continue
		}
		if l.LineID == "" {
			l.LineID = uuid.NewString()
		}
		if idx := c.indexOf(l.AgencyID, l.ProductName); idx >= 0 {
			c.lines[idx].Quantity = l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

// SetQuantity выставляет количество товара агентства.
// qty > 0 создаёт позицию или перезаписывает количество существующей, qty == 0 удаляет позицию.
// Отрицательное количество отклоняется, корзина не меняется.
func (c *Cart) SetQuantity(agencyID, productID, productName, unit, agencyName string, qty int) (CartChange, error) {
	if qty < 0 {
		return CartUnchanged, ErrNegativeQuantity
	}
	if agencyID == "" {
		return CartUnchanged, ErrAgencyIDRequired
	}
	if productName == "" {
		return CartUnchanged, ErrProductNameRequired
	}

	idx := c.indexOf(agencyID, productName)
	switch {
	case qty == 0 && idx < 0:
		return CartUnchanged, nil
	case qty == 0:
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
		return CartLineRemoved, nil
	case idx >= 0:
		if c.lines[idx].Quantity == qty {
			return CartUnchanged, nil
		}
		c.lines[idx].Quantity = qty
		return CartLineUpdated, nil
	}

	c.lines = append(c.lines, CartLine{
		LineID:      uuid.NewString(),
		AgencyID:    agencyID,
		AgencyName:  agencyName,
		ProductID:   productID,
		ProductName: productName,
		Unit:        unit,
		Quantity:    qty,
	})
	return CartLineAdded, nil
}

// RemoveLine удаляет позицию по её идентификатору. Неизвестный идентификатор игнорируется.
func (c *Cart) RemoveLine(lineID string) bool {
	for i, l := range c.lines {
		if l.LineID == lineID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
	}
	return false
}

// QuantityFor возвращает текущее количество товара агентства (0, если позиции нет).
func (c *Cart) QuantityFor(agencyID, productName string) int {
	if idx := c.indexOf(agencyID, productName); idx >= 0 {
		return c.lines[idx].Quantity
	}
	return 0
}

// CountForAgency — количество позиций агентства в корзине.
func (c *Cart) CountForAgency(agencyID string) int {
	n := 0
	for _, l := range c.lines {
		if l.AgencyID == agencyID {
			n++
		}
	}
	return n
}

// Lines возвращает копию позиций в порядке добавления.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) Clear() { c.lines = nil }

// Clone возвращает независимую копию корзины.
func (c *Cart) Clone() *Cart {
	return &Cart{lines: c.Lines()}
}

func (c *Cart) indexOf(agencyID, productName string) int {
	for i, l := range c.lines {
		if l.AgencyID == agencyID && l.ProductName == productName {
			return i
		}
	}
	return -1
}

// MarshalJSON сериализует корзину как массив позиций.
func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Lines())
}

// UnmarshalJSON восстанавливает корзину, отбрасывая позиции, нарушающие инварианты.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var lines []CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*c = *NewCart(lines)
	return nil
}

// IsOrderSubmittable — заказ можно отправить, если введено название магазина и корзина не пуста.
func IsOrderSubmittable(shopName string, cart *Cart) bool {
	return strings.TrimSpace(shopName) != "" && cart != nil && !cart.IsEmpty()
}
