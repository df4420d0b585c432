package ranking

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

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetOfferLine(ctx context.Context, offerItemID uuid.UUID) (*OfferLine, error) {
	var line OfferLine
	err := r.db.QueryRow(ctx,
		`SELECT id, order_item_id, price FROM offer_items WHERE id = $1`, offerItemID).
		Scan(&line.ID, &line.OrderItemID, &line.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select offer item %s: %w", offerItemID, err)
	}

	return &line, nil
}

// MarkWinner touches both tables inside one transaction so the order item's
// price mirror can never diverge from the flagged line.
func (r *postgresRepository) MarkWinner(ctx context.Context, p MarkWinnerParams) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("offer_item_id", p.OfferItemID).Msg("repository: failed to rollback winner transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	now := time.Now().UTC()

	// Clear any previously flagged line for the same order item first.
	_, err = tx.Exec(ctx, `
		UPDATE offer_items
		SET is_winner = FALSE, admin_price = NULL, admin_comment = NULL, updated_at = $3
		WHERE order_item_id = $1 AND is_winner = TRUE AND id <> $2
	`, p.OrderItemID, p.OfferItemID, now)
	if err != nil {
		return fmt.Errorf("repository: failed to clear prior winners for order item %s: %w", p.OrderItemID, err)
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE offer_items
		SET is_winner = TRUE,
		    admin_price = $2,
		    admin_comment = $3,
		    client_delivery_weeks = COALESCE($4, client_delivery_weeks),
		    updated_at = $5
		WHERE id = $1
	`, p.OfferItemID, p.Price, p.AdminComment, p.ClientDeliveryWeeks, now)
	if err != nil {
		return fmt.Errorf("repository: failed to mark offer item %s as winner: %w", p.OfferItemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		err = ErrOfferItemNotFound
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE order_items SET admin_price = $2, updated_at = $3 WHERE id = $1`,
		p.OrderItemID, p.Price, now)
	if err != nil {
		return fmt.Errorf("repository: failed to mirror price onto order item %s: %w", p.OrderItemID, err)
	}

	return nil
}

func (r *postgresRepository) ResetWinner(ctx context.Context, offerItemID, orderItemID uuid.UUID) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("offer_item_id", offerItemID).Msg("repository: failed to rollback reset transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	now := time.Now().UTC()

	_, err = tx.Exec(ctx, `
		UPDATE offer_items
		SET is_winner = FALSE, admin_price = NULL, admin_comment = NULL, updated_at = $2
		WHERE id = $1
	`, offerItemID, now)
	if err != nil {
		return fmt.Errorf("repository: failed to reset offer item %s: %w", offerItemID, err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE order_items SET admin_price = NULL, updated_at = $2 WHERE id = $1`,
		orderItemID, now)
	if err != nil {
		return fmt.Errorf("repository: failed to clear price mirror on order item %s: %w", orderItemID, err)
	}

	return nil
}
