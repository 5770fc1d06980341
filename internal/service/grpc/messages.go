package grpcsvc

import (
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/blob"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/builder"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/dashboard"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/submission"
)

type Empty struct{}

type Product struct {
	ID       string `json:"id,omitempty"`
	AgencyID string `json:"agency_id,omitempty"`
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
}

type Agency struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Products      []Product `json:"products"`
	CreatedAt     time.Time `json:"created_at"`
}

// Catalog

type ListAgenciesResponse struct {
	Agencies []Agency `json:"agencies"`
}

type AgencyRequest struct {
	AgencyID string `json:"agency_id"`
}

type AgencyResponse struct {
	Agency Agency `json:"agency"`
}

type SaveAgencyRequest struct {
	AgencyID      string    `json:"agency_id,omitempty"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Products      []Product `json:"products"`
}

// Builder

type CartLine struct {
	LineID      string `json:"line_id"`
	AgencyID    string `json:"agency_id"`
	AgencyName  string `json:"agency_name"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
	Quantity    int    `json:"quantity"`
}

type Session struct {
	ID              string     `json:"id"`
	ShopName        string     `json:"shop_name"`
	CurrentAgencyID string     `json:"current_agency_id,omitempty"`
	Catalog         []Agency   `json:"catalog"`
	CatalogLoadedAt time.Time  `json:"catalog_loaded_at"`
	Lines           []CartLine `json:"lines"`
	Submittable     bool       `json:"submittable"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type SessionResponse struct {
	Session Session `json:"session"`
	// CatalogError заполнен, если сессия открыта без каталога.
	CatalogError string `json:"catalog_error,omitempty"`
}

type SelectAgencyRequest struct {
	SessionID string `json:"session_id"`
	AgencyID  string `json:"agency_id"`
}

type ListProductsRequest struct {
	SessionID string `json:"session_id"`
	AgencyID  string `json:"agency_id,omitempty"`
	Search    string `json:"search,omitempty"`
}

type ProductQuantity struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

type ListProductsResponse struct {
	Products []ProductQuantity `json:"products"`
}

type SetQuantityRequest struct {
	SessionID string `json:"session_id"`
	AgencyID  string `json:"agency_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type AdjustQuantityRequest struct {
	SessionID string `json:"session_id"`
	AgencyID  string `json:"agency_id"`
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
}

type CartChangeResponse struct {
	Change  string  `json:"change"`
	Session Session `json:"session"`
}

type RemoveLineRequest struct {
	SessionID string `json:"session_id"`
	LineID    string `json:"line_id"`
}

type SetShopNameRequest struct {
	SessionID string `json:"session_id"`
	ShopName  string `json:"shop_name"`
}

type SummaryResponse struct {
	SessionID    string         `json:"session_id"`
	ShopName     string         `json:"shop_name"`
	Lines        []CartLine     `json:"lines"`
	LineCount    int            `json:"line_count"`
	AgencyBadges map[string]int `json:"agency_badges"`
	Submittable  bool           `json:"submittable"`
}

type PlaceOrderResponse struct {
	OrderID     string `json:"order_id"`
	ShopID      string `json:"shop_id"`
	ShopName    string `json:"shop_name"`
	ShopCreated bool   `json:"shop_created"`
	LineCount   int    `json:"line_count"`
}

// Dashboard

type LineItem struct {
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
	Quantity    int    `json:"quantity"`
}

type AgencyGroup struct {
	AgencyName string     `json:"agency_name"`
	Items      []LineItem `json:"items"`
}

type OrderCard struct {
	ID        string        `json:"id"`
	ShopID    string        `json:"shop_id"`
	ShopName  string        `json:"shop_name"`
	Status    string        `json:"status"`
	Version   int64         `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Groups    []AgencyGroup `json:"groups"`
	ItemCount int           `json:"item_count"`
}

type OverviewResponse struct {
	Pending   []OrderCard `json:"pending"`
	Completed []OrderCard `json:"completed"`
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type OrderResponse struct {
	Order OrderCard `json:"order"`
}

type SetStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	// ExpectedVersion == 0 отключает проверку версии.
	ExpectedVersion int64 `json:"expected_version,omitempty"`
}

type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type TimelineResponse struct {
	Events []TimelineEvent `json:"events"`
}

type Export struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

type ExportResponse struct {
	Export Export `json:"export"`
}

type ListExportsResponse struct {
	Exports []Export `json:"exports"`
}

func toAgency(a domain.Agency) Agency {
	out := Agency{
		ID:            a.ID,
		Name:          a.Name,
		ContactPerson: a.ContactPerson,
		Phone:         a.Phone,
		CreatedAt:     a.CreatedAt,
		Products:      make([]Product, 0, len(a.Products)),
	}
	for _, p := range a.Products {
		out.Products = append(out.Products, toProduct(p))
	}
	return out
}

func toAgencies(agencies []domain.Agency) []Agency {
	out := make([]Agency, 0, len(agencies))
	for _, a := range agencies {
		out = append(out, toAgency(a))
	}
	return out
}

func toProduct(p domain.AgencyProduct) Product {
	return Product{ID: p.ID, AgencyID: p.AgencyID, Name: p.ProductName, Unit: p.Unit}
}

func toCartLines(lines []domain.CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, CartLine(l))
	}
	return out
}

func toSession(s domain.BuilderSession) Session {
	var lines []domain.CartLine
	if s.Cart != nil {
		lines = s.Cart.Lines()
	}
	return Session{
		ID:              s.ID,
		ShopName:        s.ShopName,
		CurrentAgencyID: s.CurrentAgencyID,
		Catalog:         toAgencies(s.Catalog),
		CatalogLoadedAt: s.CatalogLoadedAt,
		Lines:           toCartLines(lines),
		Submittable:     s.Submittable(),
		ExpiresAt:       s.ExpiresAt,
	}
}

func toSummary(s builder.Summary) *SummaryResponse {
	return &SummaryResponse{
		SessionID:    s.SessionID,
		ShopName:     s.ShopName,
		Lines:        toCartLines(s.Lines),
		LineCount:    s.LineCount,
		AgencyBadges: s.AgencyBadges,
		Submittable:  s.Submittable,
	}
}

func toPlaceOrder(r submission.Receipt) *PlaceOrderResponse {
	return &PlaceOrderResponse{
		OrderID:     r.Order.ID,
		ShopID:      r.Shop.ID,
		ShopName:    r.Shop.Name,
		ShopCreated: r.ShopCreated,
		LineCount:   len(r.Order.Lines),
	}
}

func toOrderCard(c dashboard.OrderCard) OrderCard {
	out := OrderCard{
		ID:        c.ID,
		ShopID:    c.ShopID,
		ShopName:  c.ShopName,
		Status:    string(c.Status),
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		ItemCount: c.ItemCount,
		Groups:    make([]AgencyGroup, 0, len(c.Groups)),
	}
	for _, g := range c.Groups {
		group := AgencyGroup{AgencyName: g.AgencyName, Items: make([]LineItem, 0, len(g.Items))}
		for _, item := range g.Items {
			group.Items = append(group.Items, LineItem(item))
		}
		out.Groups = append(out.Groups, group)
	}
	return out
}

func toOrderCards(cards []dashboard.OrderCard) []OrderCard {
	out := make([]OrderCard, 0, len(cards))
	for _, c := range cards {
		out = append(out, toOrderCard(c))
	}
	return out
}

func toExport(info blob.Info) Export {
	return Export{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}
}
