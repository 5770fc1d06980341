package domain

import "time"

// BuilderSession — состояние сборки заказа одного оператора: снимок каталога, корзина, магазин.
type BuilderSession struct {
	ID              string
	Catalog         []Agency
	CatalogLoadedAt time.Time
	CurrentAgencyID string
	ShopName        string
	Cart            *Cart
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Submittable — можно ли оформить заказ в текущем состоянии сессии.
func (s *BuilderSession) Submittable() bool {
	return IsOrderSubmittable(s.ShopName, s.Cart)
}

// Expired проверяет, истёк ли срок жизни сессии.
func (s *BuilderSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
