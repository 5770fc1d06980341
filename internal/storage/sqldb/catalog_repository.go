package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type catalogRepository struct {
	s *Store
}

// NewCatalogRepository создаёт SQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{s: store}
}

func (r *catalogRepository) ListAgencies(ctx context.Context) ([]domain.Agency, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.s.db.QueryContext(ctx, `
		SELECT id, name, contact_person, phone, created_at
		FROM agencies
		ORDER BY LOWER(name), id
	`)
	if err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}
	defer rows.Close()

	agencies := make([]domain.Agency, 0)
	index := make(map[string]int)
	for rows.Next() {
		var a domain.Agency
		if err := rows.Scan(&a.ID, &a.Name, &a.ContactPerson, &a.Phone, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agency row: %w", err)
		}
		a.Products = make([]domain.AgencyProduct, 0)
		index[a.ID] = len(agencies)
		agencies = append(agencies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agency rows: %w", err)
	}
	if len(agencies) == 0 {
		return agencies, nil
	}

	products, err := r.s.db.QueryContext(ctx, `
		SELECT id, agency_id, name, unit
		FROM agency_products
		ORDER BY agency_id, position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list agency products: %w", err)
	}
	defer products.Close()

	for products.Next() {
		var p domain.AgencyProduct
		if err := products.Scan(&p.ID, &p.AgencyID, &p.ProductName, &p.Unit); err != nil {
			return nil, fmt.Errorf("scan agency product: %w", err)
		}
		if i, ok := index[p.AgencyID]; ok {
			agencies[i].Products = append(agencies[i].Products, p)
		}
	}
	if err := products.Err(); err != nil {
		return nil, fmt.Errorf("iterate agency products: %w", err)
	}

	return agencies, nil
}

func (r *catalogRepository) GetAgency(ctx context.Context, id string) (domain.Agency, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var a domain.Agency
	err := r.s.db.QueryRowContext(ctx, r.s.q(`
		SELECT id, name, contact_person, phone, created_at
		FROM agencies
		WHERE id = ?
	`), id).Scan(&a.ID, &a.Name, &a.ContactPerson, &a.Phone, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Agency{}, domain.ErrAgencyNotFound
		}
		return domain.Agency{}, fmt.Errorf("select agency: %w", err)
	}

	rows, err := r.s.db.QueryContext(ctx, r.s.q(`
		SELECT id, agency_id, name, unit
		FROM agency_products
		WHERE agency_id = ?
		ORDER BY position, id
	`), id)
	if err != nil {
		return domain.Agency{}, fmt.Errorf("load agency products: %w", err)
	}
	defer rows.Close()

	a.Products = make([]domain.AgencyProduct, 0)
	for rows.Next() {
		var p domain.AgencyProduct
		if err := rows.Scan(&p.ID, &p.AgencyID, &p.ProductName, &p.Unit); err != nil {
			return domain.Agency{}, fmt.Errorf("scan agency product: %w", err)
		}
		a.Products = append(a.Products, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Agency{}, fmt.Errorf("iterate agency products: %w", err)
	}

	return a, nil
}

func (r *catalogRepository) CreateAgency(ctx context.Context, agency domain.Agency) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.s.q(`
			INSERT INTO agencies (id, name, contact_person, phone, created_at)
			VALUES (?, ?, ?, ?, ?)
		`), agency.ID, agency.Name, agency.ContactPerson, agency.Phone, agency.CreatedAt); err != nil {
			return r.s.writeErr("insert agency", err)
		}
		return r.insertProducts(ctx, tx, agency)
	})
}

// UpdateAgency обновляет строку агентства, удаляет все его товары и вставляет новый список.
func (r *catalogRepository) UpdateAgency(ctx context.Context, agency domain.Agency) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.s.q(`
			UPDATE agencies
			SET name = ?, contact_person = ?, phone = ?
			WHERE id = ?
		`), agency.Name, agency.ContactPerson, agency.Phone, agency.ID)
		if err != nil {
			return r.s.writeErr("update agency", err)
		}
		if err := requireAffected(res, domain.ErrAgencyNotFound); err != nil {
			return err
		}

		return r.replaceProducts(ctx, tx, agency)
	})
}

// replaceProducts сохраняет строки товаров с прежним ID, удаляет исчезнувшие и добавляет новые.
// Позиции заказов на удалённые товары получают NULL через ON DELETE SET NULL.
func (r *catalogRepository) replaceProducts(ctx context.Context, tx *sql.Tx, agency domain.Agency) error {
	rows, err := tx.QueryContext(ctx, r.s.q(`SELECT id FROM agency_products WHERE agency_id = ?`), agency.ID)
	if err != nil {
		return fmt.Errorf("select agency products: %w", err)
	}
	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan agency product id: %w", err)
		}
		existing = append(existing, id)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close agency products: %w", err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate agency products: %w", err)
	}

	current := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		current[id] = struct{}{}
		if _, kept := agency.FindProduct(id); kept {
			continue
		}
		if _, err := tx.ExecContext(ctx, r.s.q(`DELETE FROM agency_products WHERE id = ?`), id); err != nil {
			return r.s.writeErr("delete agency product", err)
		}
	}

	update := r.s.q(`UPDATE agency_products SET name = ?, unit = ?, position = ? WHERE id = ?`)
	insert := r.s.q(`
		INSERT INTO agency_products (id, agency_id, name, unit, position)
		VALUES (?, ?, ?, ?, ?)
	`)
	for i, p := range agency.Products {
		if _, ok := current[p.ID]; ok {
			if _, err := tx.ExecContext(ctx, update, p.ProductName, p.Unit, i, p.ID); err != nil {
				return r.s.writeErr("update agency product", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, insert, p.ID, agency.ID, p.ProductName, p.Unit, i); err != nil {
			return r.s.writeErr("insert agency product", err)
		}
	}
	return nil
}

// DeleteAgency удаляет товары и агентство в одной транзакции.
// Если агентство упоминается в заказах, транзакция откатывается с ErrConstraintViolation.
func (r *catalogRepository) DeleteAgency(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.s.q(`DELETE FROM agency_products WHERE agency_id = ?`), id); err != nil {
			return r.s.writeErr("delete agency products", err)
		}
		res, err := tx.ExecContext(ctx, r.s.q(`DELETE FROM agencies WHERE id = ?`), id)
		if err != nil {
			return r.s.writeErr("delete agency", err)
		}
		return requireAffected(res, domain.ErrAgencyNotFound)
	})
}

func (r *catalogRepository) insertProducts(ctx context.Context, tx *sql.Tx, agency domain.Agency) error {
	query := r.s.q(`
		INSERT INTO agency_products (id, agency_id, name, unit, position)
		VALUES (?, ?, ?, ?, ?)
	`)
	for i, p := range agency.Products {
		if _, err := tx.ExecContext(ctx, query, p.ID, agency.ID, p.ProductName, p.Unit, i); err != nil {
			return r.s.writeErr("insert agency product", err)
		}
	}
	return nil
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
