// Package ranking implements winner selection for offer lines: marking one
// offer item as the accepted price for an order item and mirroring that
// price onto the order line.
package ranking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrOfferItemNotFound = errors.New("offer item not found")

// OfferLine is the slice of an offer item the selector needs.
type OfferLine struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
	Price       decimal.Decimal
}

// MarkWinnerParams carries the already-resolved price plus the manager's
// metadata for the chosen line.
type MarkWinnerParams struct {
	OfferItemID         uuid.UUID
	OrderItemID         uuid.UUID
	Price               decimal.Decimal
	AdminComment        string
	ClientDeliveryWeeks *int
}

type Repository interface {
	GetOfferLine(ctx context.Context, offerItemID uuid.UUID) (*OfferLine, error)
	MarkWinner(ctx context.Context, p MarkWinnerParams) error
	ResetWinner(ctx context.Context, offerItemID, orderItemID uuid.UUID) error
}

// SelectWinnerParams is the manager's selection. AdminPrice, when set,
// overrides the supplier's submitted price.
type SelectWinnerParams struct {
	OfferItemID         uuid.UUID
	OrderItemID         uuid.UUID
	AdminPrice          *decimal.Decimal
	AdminComment        string
	ClientDeliveryWeeks *int
}

type Selector interface {
	SelectWinner(ctx context.Context, p SelectWinnerParams) error
	ResetWinner(ctx context.Context, offerItemID, orderItemID uuid.UUID) error
}

type selector struct {
	repo Repository
}

func NewSelector(repo Repository) Selector {
	return &selector{repo: repo}
}

// SelectWinner marks the chosen line as winner and mirrors the resolved
// price (manager override if present, else the submitted price) onto the
// order item. Any prior winner for the same order item is cleared in the
// same transaction, so at most one line per order item carries the flag.
func (s *selector) SelectWinner(ctx context.Context, p SelectWinnerParams) error {
	line, err := s.repo.GetOfferLine(ctx, p.OfferItemID)
	if err != nil {
		if errors.Is(err, ErrOfferItemNotFound) {
			return ErrOfferItemNotFound
		}
		return fmt.Errorf("ranking: failed to fetch offer line: %w", err)
	}
	if line.OrderItemID != p.OrderItemID {
		return fmt.Errorf("ranking: offer item %s does not respond to order item %s", p.OfferItemID, p.OrderItemID)
	}

	price := line.Price
	if p.AdminPrice != nil {
		price = *p.AdminPrice
	}

	err = s.repo.MarkWinner(ctx, MarkWinnerParams{
		OfferItemID:         p.OfferItemID,
		OrderItemID:         p.OrderItemID,
		Price:               price,
		AdminComment:        p.AdminComment,
		ClientDeliveryWeeks: p.ClientDeliveryWeeks,
	})
	if err != nil {
		log.Error().Err(err).Stringer("offer_item_id", p.OfferItemID).Msg("ranking: failed to mark winner")
		return fmt.Errorf("ranking: failed to mark winner: %w", err)
	}

	log.Info().
		Stringer("offer_item_id", p.OfferItemID).
		Stringer("order_item_id", p.OrderItemID).
		Str("price", price.String()).
		Msg("ranking: winner selected")
	return nil
}

// ResetWinner clears the winner flag and both admin-price mirrors.
// Resetting an already-reset line is a no-op.
func (s *selector) ResetWinner(ctx context.Context, offerItemID, orderItemID uuid.UUID) error {
	if err := s.repo.ResetWinner(ctx, offerItemID, orderItemID); err != nil {
		log.Error().Err(err).Stringer("offer_item_id", offerItemID).Msg("ranking: failed to reset winner")
		return fmt.Errorf("ranking: failed to reset winner: %w", err)
	}

	return nil
}
