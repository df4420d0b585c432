package offer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOfferNotFound  = errors.New("offer not found")
	ErrDuplicateOffer = errors.New("offer already exists for this supplier and order")
)

// LockHolder identifies who currently holds an offer's edit lease.
type LockHolder struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	LockedAt time.Time `json:"locked_at"`
}

type Repository interface {
	Create(ctx context.Context, o *Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Offer, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Offer, error)
	UpsertItems(ctx context.Context, offerID uuid.UUID, items []Item) error
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	AcquireLock(ctx context.Context, id, actorID uuid.UUID, now time.Time) (bool, error)
	ReleaseLock(ctx context.Context, id, actorID uuid.UUID) error
	GetLockHolder(ctx context.Context, id uuid.UUID) (*LockHolder, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, o *Offer) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = StatusSubmitted
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("offer_id", o.ID).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	query := `
		INSERT INTO offers (id, order_id, supplier_id, supplier_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, query,
		o.ID, o.OrderID, o.SupplierID, o.SupplierName, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			err = ErrDuplicateOffer
			return err
		}
		return fmt.Errorf("repository: failed to insert offer: %w", err)
	}

	err = insertItems(ctx, tx, o.ID, o.Items, now)
	return err
}

func insertItems(ctx context.Context, tx pgx.Tx, offerID uuid.UUID, items []Item, now time.Time) error {
	query := `
		INSERT INTO offer_items (id, offer_id, order_item_id, name, quantity, price, currency, delivery_weeks, client_delivery_weeks, supplier_sku, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (offer_id, order_item_id) DO UPDATE SET
			name = EXCLUDED.name,
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			delivery_weeks = EXCLUDED.delivery_weeks,
			client_delivery_weeks = EXCLUDED.client_delivery_weeks,
			supplier_sku = EXCLUDED.supplier_sku,
			updated_at = EXCLUDED.updated_at
	`
	for i := range items {
		item := &items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OfferID = offerID
		item.CreatedAt = now
		item.UpdatedAt = now

		_, err := tx.Exec(ctx, query,
			item.ID, offerID, item.OrderItemID, item.Name, item.Quantity,
			item.Price, string(item.Currency), item.DeliveryWeeks, item.ClientDeliveryWeeks,
			item.SupplierSKU, item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to upsert offer item for offer %s: %w", offerID, err)
		}
	}
	return nil
}

func (r *postgresRepository) UpsertItems(ctx context.Context, offerID uuid.UUID, items []Item) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("offer_id", offerID).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	err = insertItems(ctx, tx, offerID, items, time.Now().UTC())
	return err
}

const offerColumns = `id, order_id, supplier_id, supplier_name, status, locked_by, locked_at, created_at, updated_at`

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Offer, error) {
	var o Offer
	err := r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id).Scan(
		&o.ID, &o.OrderID, &o.SupplierID, &o.SupplierName, &o.Status,
		&o.LockedBy, &o.LockedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("repository: failed to select offer by id %s: %w", id, err)
	}

	items, err := r.itemsByOffers(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = make([]Item, 0)
	}

	return &o, nil
}

func (r *postgresRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Offer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query offers for order %s: %w", orderID, err)
	}
	defer rows.Close()

	offers := make([]Offer, 0)
	var offerIDs []uuid.UUID
	for rows.Next() {
		var o Offer
		err := rows.Scan(
			&o.ID, &o.OrderID, &o.SupplierID, &o.SupplierName, &o.Status,
			&o.LockedBy, &o.LockedAt, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan offer for order %s: %w", orderID, err)
		}
		o.Items = make([]Item, 0)
		offers = append(offers, o)
		offerIDs = append(offerIDs, o.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating offers for order %s: %w", orderID, err)
	}

	if len(offerIDs) == 0 {
		return offers, nil
	}

	itemsByOffer, err := r.itemsByOffers(ctx, offerIDs)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		if items, ok := itemsByOffer[offers[i].ID]; ok {
			offers[i].Items = items
		}
	}

	return offers, nil
}

func (r *postgresRepository) itemsByOffers(ctx context.Context, offerIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	query := `
		SELECT id, offer_id, order_item_id, name, quantity, price, currency, delivery_weeks, client_delivery_weeks, supplier_sku, is_winner, admin_price, admin_comment, created_at, updated_at
		FROM offer_items
		WHERE offer_id = ANY($1)
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, offerIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query offer items: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]Item)
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.OfferID, &item.OrderItemID, &item.Name, &item.Quantity,
			&item.Price, &item.Currency, &item.DeliveryWeeks, &item.ClientDeliveryWeeks,
			&item.SupplierSKU, &item.IsWinner, &item.AdminPrice, &item.AdminComment,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan offer item: %w", err)
		}
		result[item.OfferID] = append(result[item.OfferID], item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating offer items: %w", err)
	}

	return result, nil
}

func (r *postgresRepository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE offers SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update offer status %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOfferNotFound
	}

	return nil
}

// AcquireLock takes or renews the edit lease in a single conditional update:
// it succeeds when the row is unlocked, already held by the actor, or the
// previous holder's lease is stale. The expiry check runs server-side, so
// two clients cannot both believe they hold a live lease.
func (r *postgresRepository) AcquireLock(ctx context.Context, id, actorID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE offers
		SET locked_by = $2, locked_at = $3, updated_at = $3
		WHERE id = $1
		  AND (locked_by IS NULL OR locked_by = $2 OR locked_at < $3 - make_interval(secs => $4))
	`
	cmdTag, err := r.db.Exec(ctx, query, id, actorID, now, LockTTL.Seconds())
	if err != nil {
		return false, fmt.Errorf("repository: failed to acquire lock on offer %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 1 {
		return true, nil
	}

	// No row updated: either the offer is missing or someone holds a live
	// lease. Let the caller tell those apart via GetLockHolder.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM offers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("repository: failed to check offer existence %s: %w", id, err)
	}
	if !exists {
		return false, ErrOfferNotFound
	}

	return false, nil
}

func (r *postgresRepository) ReleaseLock(ctx context.Context, id, actorID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE offers SET locked_by = NULL, locked_at = NULL, updated_at = $3 WHERE id = $1 AND locked_by = $2`,
		id, actorID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to release lock on offer %s: %w", id, err)
	}

	return nil
}

func (r *postgresRepository) GetLockHolder(ctx context.Context, id uuid.UUID) (*LockHolder, error) {
	query := `
		SELECT o.locked_by, u.name, o.locked_at
		FROM offers o
		JOIN users u ON u.id = o.locked_by
		WHERE o.id = $1 AND o.locked_by IS NOT NULL
	`

	var h LockHolder
	err := r.db.QueryRow(ctx, query, id).Scan(&h.UserID, &h.Name, &h.LockedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: failed to select lock holder for offer %s: %w", id, err)
	}

	return &h, nil
}
