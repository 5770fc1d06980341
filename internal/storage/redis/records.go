package redis

import (
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type productRecord struct {
	ID          string `json:"id"`
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
}

type agencyRecord struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ContactPerson string          `json:"contact_person,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Products      []productRecord `json:"products"`
	CreatedAt     time.Time       `json:"created_at"`
}

type sessionRecord struct {
	ID              string         `json:"id"`
	Catalog         []agencyRecord `json:"catalog"`
	CatalogLoadedAt time.Time      `json:"catalog_loaded_at"`
	CurrentAgencyID string         `json:"current_agency_id,omitempty"`
	ShopName        string         `json:"shop_name"`
	Cart            *domain.Cart   `json:"cart"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

func toAgencyRecords(agencies []domain.Agency) []agencyRecord {
	out := make([]agencyRecord, 0, len(agencies))
	for _, agency := range agencies {
		rec := agencyRecord{
			ID:            agency.ID,
			Name:          agency.Name,
			ContactPerson: agency.ContactPerson,
			Phone:         agency.Phone,
			Products:      make([]productRecord, 0, len(agency.Products)),
			CreatedAt:     agency.CreatedAt,
		}
		for _, p := range agency.Products {
			rec.Products = append(rec.Products, productRecord{ID: p.ID, ProductName: p.ProductName, Unit: p.Unit})
		}
		out = append(out, rec)
	}
	return out
}

func fromAgencyRecords(records []agencyRecord) []domain.Agency {
	out := make([]domain.Agency, 0, len(records))
	for _, rec := range records {
		agency := domain.Agency{
			ID:            rec.ID,
			Name:          rec.Name,
			ContactPerson: rec.ContactPerson,
			Phone:         rec.Phone,
			Products:      make([]domain.AgencyProduct, 0, len(rec.Products)),
			CreatedAt:     rec.CreatedAt,
		}
		for _, p := range rec.Products {
			agency.Products = append(agency.Products, domain.AgencyProduct{
				ID:          p.ID,
				AgencyID:    rec.ID,
				ProductName: p.ProductName,
				Unit:        p.Unit,
			})
		}
		out = append(out, agency)
	}
	return out
}

func toSessionRecord(s domain.BuilderSession) sessionRecord {
	return sessionRecord{
		ID:              s.ID,
		Catalog:         toAgencyRecords(s.Catalog),
		CatalogLoadedAt: s.CatalogLoadedAt,
		CurrentAgencyID: s.CurrentAgencyID,
		ShopName:        s.ShopName,
		Cart:            s.Cart,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ExpiresAt:       s.ExpiresAt,
	}
}

func (r sessionRecord) toDomain() domain.BuilderSession {
	cart := r.Cart
	if cart == nil {
		cart = domain.NewCart(nil)
	}
	return domain.BuilderSession{
		ID:              r.ID,
		Catalog:         fromAgencyRecords(r.Catalog),
		CatalogLoadedAt: r.CatalogLoadedAt,
		CurrentAgencyID: r.CurrentAgencyID,
		ShopName:        r.ShopName,
		Cart:            cart,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}
