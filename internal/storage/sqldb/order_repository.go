package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const selectOrders = `
	SELECT o.id, o.shop_id, COALESCE(s.name, ''), o.status, o.version, o.created_at, o.updated_at
	FROM orders o
	LEFT JOIN shops s ON s.id = o.shop_id
`

const selectLines = `
	SELECT oi.id, oi.order_id, COALESCE(oi.agency_product_id, ''), oi.agency_id,
	       COALESCE(a.name, oi.agency_name), oi.product_name, oi.unit, oi.quantity
	FROM order_items oi
	LEFT JOIN agencies a ON a.id = oi.agency_id
`

type orderRepository struct {
	s *Store
}

// NewOrderRepository создаёт SQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{s: store}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.s.db.ExecContext(ctx, r.s.q(`
		INSERT INTO orders (id, shop_id, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), order.ID, order.ShopID, string(order.Status), order.Version, order.CreatedAt, order.UpdatedAt); err != nil {
		return r.s.writeErr("insert order", err)
	}
	return nil
}

// CreateLines вставляет все позиции в одной транзакции: при ошибке не сохраняется ни одна.
func (r *orderRepository) CreateLines(ctx context.Context, orderID string, lines []domain.OrderLine) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := r.s.q(`
		INSERT INTO order_items (
			id, order_id, agency_id, agency_product_id, agency_name, product_name, unit, quantity, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		for i, line := range lines {
			if line.OrderID != orderID {
				return fmt.Errorf("insert order item %s: %w", line.ID, domain.ErrConstraintViolation)
			}
			if _, err := tx.ExecContext(ctx, query,
				line.ID, orderID, line.AgencyID, nullString(line.AgencyProductID),
				line.AgencyName, line.ProductName, line.Unit, line.Quantity, i,
			); err != nil {
				return r.s.writeErr("insert order item", err)
			}
		}
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		order  domain.Order
		status string
	)
	err := r.s.db.QueryRowContext(ctx, r.s.q(selectOrders+` WHERE o.id = ?`), id).Scan(
		&order.ID, &order.ShopID, &order.ShopName, &status, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	lines, err := r.loadLines(ctx, r.s.q(selectLines+` WHERE oi.order_id = ? ORDER BY oi.position, oi.id`), id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines[id]
	if order.Lines == nil {
		order.Lines = []domain.OrderLine{}
	}
	return order, nil
}

// List возвращает все заказы, новые первыми, с позициями в порядке оформления.
func (r *orderRepository) List(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.s.db.QueryContext(ctx, selectOrders+` ORDER BY o.created_at DESC, o.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var (
			order  domain.Order
			status string
		)
		if err := rows.Scan(
			&order.ID, &order.ShopID, &order.ShopName, &status, &order.Version, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	lines, err := r.loadLines(ctx, selectLines+` ORDER BY oi.order_id, oi.position, oi.id`)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = []domain.OrderLine{}
		}
	}
	return orders, nil
}

// Save обновляет статус заказа с проверкой версии (optimistic locking).
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.s.q(`
			UPDATE orders
			SET status = ?,
			    version = version + 1,
			    updated_at = ?
			WHERE id = ?
			  AND version = ?
		`), string(order.Status), order.UpdatedAt, order.ID, order.Version)
		if err != nil {
			return r.s.writeErr("update order", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			return nil
		}

		exists, err := r.orderExistsTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	})
}

// Delete удаляет позиции заказа, затем сам заказ.
func (r *orderRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.s.q(`DELETE FROM order_items WHERE order_id = ?`), id); err != nil {
			return r.s.writeErr("delete order items", err)
		}
		res, err := tx.ExecContext(ctx, r.s.q(`DELETE FROM orders WHERE id = ?`), id)
		if err != nil {
			return r.s.writeErr("delete order", err)
		}
		return requireAffected(res, domain.ErrOrderNotFound)
	})
}

func (r *orderRepository) loadLines(ctx context.Context, query string, args ...any) (map[string][]domain.OrderLine, error) {
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.OrderLine)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.AgencyProductID, &line.AgencyID,
			&line.AgencyName, &line.ProductName, &line.Unit, &line.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		result[line.OrderID] = append(result[line.OrderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return result, nil
}

func (r *orderRepository) orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, r.s.q(`SELECT id FROM orders WHERE id = ?`), orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
