package domain

import (
	"strings"
	"time"
)

// DefaultUnit подставляется, если единица измерения товара не указана.
const DefaultUnit = "pcs"

// AgencyProduct — товар, который поставляет агентство.
type AgencyProduct struct {
	ID          string
	AgencyID    string
	ProductName string
	Unit        string
}

// Agency — поставщик со списком товаров.
type Agency struct {
	ID            string
	Name          string
	ContactPerson string
	Phone         string
	Products      []AgencyProduct
	CreatedAt     time.Time
}

// Normalize обрезает пробелы, отбрасывает товары без названия и проставляет единицу по умолчанию.
func (a *Agency) Normalize() error {
	a.Name = strings.TrimSpace(a.Name)
	a.ContactPerson = strings.TrimSpace(a.ContactPerson)
	a.Phone = strings.TrimSpace(a.Phone)
	if a.Name == "" {
		return ErrAgencyNameRequired
	}

	products := make([]AgencyProduct, 0, len(a.Products))
	for _, p := range a.Products {
		p.ProductName = strings.TrimSpace(p.ProductName)
		if p.ProductName == "" {
			continue
		}
		p.Unit = strings.TrimSpace(p.Unit)
		if p.Unit == "" {
			p.Unit = DefaultUnit
		}
		p.AgencyID = a.ID
		products = append(products, p)
	}
	a.Products = products
	return nil
}

// FindProduct ищет товар агентства по идентификатору.
func (a Agency) FindProduct(productID string) (AgencyProduct, bool) {
	for _, p := range a.Products {
		if p.ID == productID {
			return p, true
		}
	}
	return AgencyProduct{}, false
}

// FilterProducts оставляет товары, название которых содержит term без учёта регистра.
// Пустой term возвращает все товары.
func FilterProducts(products []AgencyProduct, term string) []AgencyProduct {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		out := make([]AgencyProduct, len(products))
		copy(out, products)
		return out
	}
	out := make([]AgencyProduct, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.ProductName), term) {
			out = append(out, p)
		}
	}
	return out
}

// FindAgency ищет агентство в снимке каталога.
func FindAgency(agencies []Agency, id string) (Agency, bool) {
	for _, a := range agencies {
		if a.ID == id {
			return a, true
		}
	}
	return Agency{}, false
}
