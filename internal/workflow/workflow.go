// Package workflow drives an order through the human approval process:
// a closed status enum with an explicit transition table, plus the guards
// around quote approval (empty winner sets, live buyer edit leases).
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/offer"
	"github.com/partsdesk/parts-broker/internal/order"
)

type Action string

const (
	ActionApprove  Action = "approve"
	ActionManual   Action = "manual"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// allowedTransitions is the single source of truth for the status machine.
// Anything not listed here is rejected.
var allowedTransitions = map[order.Status]map[Action]order.Status{
	order.StatusProcessing: {
		ActionApprove: order.StatusQuoteReady,
		ActionManual:  order.StatusManual,
		ActionCancel:  order.StatusCancelled,
	},
	order.StatusQuoteReady: {
		ActionComplete: order.StatusCompleted,
		ActionCancel:   order.StatusCancelled,
	},
	order.StatusManual: {
		ActionComplete: order.StatusCompleted,
		ActionCancel:   order.StatusCancelled,
	},
	order.StatusCompleted: {},
	order.StatusCancelled: {},
}

var (
	// ErrConfirmationRequired is returned when approval would produce an
	// empty quote and the caller has not confirmed that explicitly.
	ErrConfirmationRequired = errors.New("no winners selected, confirmation required")

	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// LockedError reports live buyer leases blocking (advisorily) an approval.
// The caller may retry with Force set; the transition itself is identical.
type LockedError struct {
	Holders []offer.LockHolder
}

func (e *LockedError) Error() string {
	names := make([]string, len(e.Holders))
	for i, h := range e.Holders {
		names[i] = h.Name
	}
	return fmt.Sprintf("offers are being edited by: %s", strings.Join(names, ", "))
}

// ApproveOptions are the administrator's answers to the approval guards.
type ApproveOptions struct {
	// ConfirmEmpty approves a quote with zero winning lines.
	ConfirmEmpty bool
	// Force proceeds despite live buyer edit leases.
	Force bool
}

type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	SaveQuote(ctx context.Context, id uuid.UUID, status order.Status, items []order.QuoteItem) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error
	SetCancelled(ctx context.Context, id uuid.UUID, reason string) error
}

type OfferStore interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]offer.Offer, error)
}

type Service interface {
	Approve(ctx context.Context, orderID, actorID uuid.UUID, opts ApproveOptions) error
	ApproveManual(ctx context.Context, orderID, actorID uuid.UUID, opts ApproveOptions) error
	Complete(ctx context.Context, orderID uuid.UUID) error
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) error
}

type service struct {
	orders OrderStore
	offers OfferStore
	now    func() time.Time
}

func NewService(orders OrderStore, offers OfferStore) Service {
	return &service{orders: orders, offers: offers, now: time.Now}
}

// Approve forms the quote: collects the currently flagged winners, snapshots
// them as the order's accepted lines and moves the order to quote_ready.
func (s *service) Approve(ctx context.Context, orderID, actorID uuid.UUID, opts ApproveOptions) error {
	return s.approveTo(ctx, orderID, actorID, ActionApprove, opts)
}

// ApproveManual performs the same winner collection but routes the order off
// the automatic quote path.
func (s *service) ApproveManual(ctx context.Context, orderID, actorID uuid.UUID, opts ApproveOptions) error {
	return s.approveTo(ctx, orderID, actorID, ActionManual, opts)
}

func (s *service) approveTo(ctx context.Context, orderID, actorID uuid.UUID, action Action, opts ApproveOptions) error {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return order.ErrOrderNotFound
		}
		return fmt.Errorf("workflow: failed to fetch order: %w", err)
	}

	target, err := s.nextStatus(ord.Status, action)
	if err != nil {
		return err
	}

	offers, err := s.offers.ListByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("workflow: failed to list offers: %w", err)
	}

	winners := collectWinners(orderID, offers)
	if len(winners) == 0 && !opts.ConfirmEmpty {
		return ErrConfirmationRequired
	}

	// Live buyer leases never block the transition, but the administrator
	// must see who is editing before forcing through.
	if holders := activeHolders(offers, actorID, s.now().UTC()); len(holders) > 0 && !opts.Force {
		return &LockedError{Holders: holders}
	}

	if err := s.orders.SaveQuote(ctx, orderID, target, winners); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("workflow: failed to save quote")
		return fmt.Errorf("workflow: failed to save quote: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Str("from", ord.Status.String()).
		Str("to", target.String()).
		Int("winners", len(winners)).
		Msg("workflow: order approved")
	return nil
}

func (s *service) Complete(ctx context.Context, orderID uuid.UUID) error {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return order.ErrOrderNotFound
		}
		return fmt.Errorf("workflow: failed to fetch order: %w", err)
	}

	target, err := s.nextStatus(ord.Status, ActionComplete)
	if err != nil {
		return err
	}

	if err := s.orders.UpdateStatus(ctx, orderID, target); err != nil {
		return fmt.Errorf("workflow: failed to complete order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Msg("workflow: order completed")
	return nil
}

// Cancel stores the administrator's reason and moves the order to the
// terminal cancelled state. There is no way back out.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, reason string) error {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return order.ErrOrderNotFound
		}
		return fmt.Errorf("workflow: failed to fetch order: %w", err)
	}

	if _, err := s.nextStatus(ord.Status, ActionCancel); err != nil {
		return err
	}

	if reason == "" {
		reason = "cancelled by manager"
	}
	if err := s.orders.SetCancelled(ctx, orderID, reason); err != nil {
		return fmt.Errorf("workflow: failed to cancel order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Str("reason", reason).Msg("workflow: order cancelled")
	return nil
}

func (s *service) nextStatus(current order.Status, action Action) (order.Status, error) {
	target, ok := allowedTransitions[current][action]
	if !ok {
		log.Warn().Str("status", current.String()).Str("action", string(action)).Msg("workflow: transition rejected")
		return "", fmt.Errorf("%w: cannot %s an order in status %s", ErrInvalidTransition, action, current)
	}
	return target, nil
}

func collectWinners(orderID uuid.UUID, offers []offer.Offer) []order.QuoteItem {
	winners := make([]order.QuoteItem, 0)
	for i := range offers {
		for j := range offers[i].Items {
			item := &offers[i].Items[j]
			if !item.IsWinner {
				continue
			}
			weeks := item.DeliveryWeeks
			if item.ClientDeliveryWeeks != nil {
				weeks = *item.ClientDeliveryWeeks
			}
			winners = append(winners, order.QuoteItem{
				OrderID:       orderID,
				OrderItemID:   item.OrderItemID,
				OfferItemID:   item.ID,
				Name:          item.Name,
				Price:         item.ResolvedPrice(),
				Currency:      string(item.Currency),
				DeliveryWeeks: weeks,
			})
		}
	}
	return winners
}

func activeHolders(offers []offer.Offer, actorID uuid.UUID, now time.Time) []offer.LockHolder {
	holders := make([]offer.LockHolder, 0)
	for i := range offers {
		o := &offers[i]
		if o.LockedByOther(actorID, now) {
			holders = append(holders, offer.LockHolder{
				UserID:   *o.LockedBy,
				Name:     o.SupplierName,
				LockedAt: *o.LockedAt,
			})
		}
	}
	return holders
}
