package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetCancelled(ctx context.Context, id uuid.UUID, reason string) error
	SaveQuote(ctx context.Context, id uuid.UUID, status Status, items []QuoteItem) error
	GetQuote(ctx context.Context, id uuid.UUID) ([]QuoteItem, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Status = StatusProcessing

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	query := `
		INSERT INTO orders (id, client_name, client_phone, client_email, address, deadline, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, query,
		o.ID, o.ClientName, o.ClientPhone, o.ClientEmail, o.Address, o.Deadline,
		string(o.Status), o.CreatedBy, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, name, brand, article, unit, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = o.ID
		item.CreatedAt = now
		item.UpdatedAt = now

		_, err = tx.Exec(ctx, itemQuery,
			item.ID, o.ID, item.Name, item.Brand, item.Article, item.Unit, item.Quantity,
			item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `
		SELECT id, client_name, client_phone, client_email, address, deadline, status, refusal_reason, created_by, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.ClientName, &o.ClientPhone, &o.ClientEmail, &o.Address, &o.Deadline,
		&o.Status, &o.RefusalReason, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	items, err := r.itemsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *postgresRepository) itemsByOrder(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	query := `
		SELECT id, order_id, name, brand, article, unit, quantity, admin_name, admin_quantity, admin_price, created_at, updated_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.Name, &item.Brand, &item.Article, &item.Unit,
			&item.Quantity, &item.AdminName, &item.AdminQuantity, &item.AdminPrice,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", orderID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", orderID, err)
	}

	return items, nil
}

func (r *postgresRepository) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	query := `
		SELECT id, client_name, client_phone, client_email, address, deadline, status, refusal_reason, created_by, created_at, updated_at
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders by status %s: %w", status, err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID, &o.ClientName, &o.ClientPhone, &o.ClientEmail, &o.Address, &o.Deadline,
			&o.Status, &o.RefusalReason, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]Item, 0)
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return orders, nil
}

func (r *postgresRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to count orders by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("repository: failed to scan status count: %w", err)
		}
		counts[Status(status)] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating status counts: %w", err)
	}

	return counts, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`

	cmdTag, err := r.db.Exec(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) SetCancelled(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE orders SET status = $1, refusal_reason = $2, updated_at = $3 WHERE id = $4`

	cmdTag, err := r.db.Exec(ctx, query, string(StatusCancelled), reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to cancel order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// SaveQuote stores the accepted-items snapshot and moves the order to the
// target status in one transaction, replacing any previous snapshot.
func (r *postgresRepository) SaveQuote(ctx context.Context, id uuid.UUID, status Status, items []QuoteItem) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback quote transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM quote_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("repository: failed to clear previous quote for order %s: %w", id, err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO quote_items (id, order_id, order_item_id, offer_item_id, name, price, currency, delivery_weeks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i := range items {
		item := &items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = id
		item.CreatedAt = now

		_, err = tx.Exec(ctx, query,
			item.ID, id, item.OrderItemID, item.OfferItemID, item.Name,
			item.Price, item.Currency, item.DeliveryWeeks, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert quote item for order %s: %w", id, err)
		}
	}

	cmdTag, err := tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), now, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		err = ErrOrderNotFound
		return err
	}

	return nil
}

func (r *postgresRepository) GetQuote(ctx context.Context, id uuid.UUID) ([]QuoteItem, error) {
	query := `
		SELECT id, order_id, order_item_id, offer_item_id, name, price, currency, delivery_weeks, created_at
		FROM quote_items
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query quote items for order %s: %w", id, err)
	}
	defer rows.Close()

	items := make([]QuoteItem, 0)
	for rows.Next() {
		var item QuoteItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.OrderItemID, &item.OfferItemID,
			&item.Name, &item.Price, &item.Currency, &item.DeliveryWeeks, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan quote item for order %s: %w", id, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating quote items for order %s: %w", id, err)
	}

	return items, nil
}
