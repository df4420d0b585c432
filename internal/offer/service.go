package offer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LockHeldError is returned when someone else holds a live edit lease.
type LockHeldError struct {
	Holder LockHolder
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("offer is being edited by %s", e.Holder.Name)
}

// EventPublisher pushes row-change notifications to the change-feed.
// Publishing is best-effort and never fails the write path.
type EventPublisher interface {
	OfferChanged(ctx context.Context, orderID, offerID uuid.UUID, action string)
}

// RatesSource supplies the delivery-weeks markup applied to client-facing
// delivery estimates at offer creation.
type RatesSource interface {
	DeliveryWeeksAdd(ctx context.Context) (int, error)
}

type Service interface {
	CreateOffer(ctx context.Context, o *Offer) (*Offer, error)
	GetOfferByID(ctx context.Context, id uuid.UUID) (*Offer, error)
	ListOffersByOrder(ctx context.Context, orderID uuid.UUID) ([]Offer, error)
	EditOffer(ctx context.Context, offerID, actorID uuid.UUID, items []Item) error
	RefuseOffer(ctx context.Context, offerID uuid.UUID) error
	Lock(ctx context.Context, offerID, actorID uuid.UUID) error
	Unlock(ctx context.Context, offerID, actorID uuid.UUID) error
}

type service struct {
	repo   Repository
	rates  RatesSource
	events EventPublisher
	now    func() time.Time
}

func NewService(repo Repository, rates RatesSource, events EventPublisher) Service {
	return &service{repo: repo, rates: rates, events: events, now: time.Now}
}

func (s *service) CreateOffer(ctx context.Context, o *Offer) (*Offer, error) {
	if len(o.Items) == 0 {
		return nil, errors.New("service: offer must contain at least one item")
	}
	for i := range o.Items {
		item := &o.Items[i]
		if item.OrderItemID == uuid.Nil {
			return nil, fmt.Errorf("service: offer item %q must reference an order item", item.Name)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("service: offer item %q quantity must be greater than zero", item.Name)
		}
		if item.Price.IsNegative() {
			return nil, fmt.Errorf("service: offer item %q price cannot be negative", item.Name)
		}
		if item.Currency == "" {
			item.Currency = CurrencyCNY
		}
	}

	// Client-facing delivery estimate = supplier weeks + configured markup.
	weeksAdd, err := s.rates.DeliveryWeeksAdd(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("service: failed to read delivery weeks markup, using 0")
		weeksAdd = 0
	}
	for i := range o.Items {
		item := &o.Items[i]
		if item.DeliveryWeeks > 0 {
			clientWeeks := item.DeliveryWeeks + weeksAdd
			item.ClientDeliveryWeeks = &clientWeeks
		}
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateOffer) {
			return nil, ErrDuplicateOffer
		}
		log.Error().Err(err).Stringer("order_id", o.OrderID).Msg("service: failed to create offer")
		return nil, fmt.Errorf("service: failed to create offer: %w", err)
	}

	log.Info().Stringer("offer_id", o.ID).Stringer("order_id", o.OrderID).Str("supplier", o.SupplierName).Msg("service: offer created")
	s.events.OfferChanged(ctx, o.OrderID, o.ID, "created")

	return o, nil
}

func (s *service) GetOfferByID(ctx context.Context, id uuid.UUID) (*Offer, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch offer: %w", err)
	}

	return o, nil
}

func (s *service) ListOffersByOrder(ctx context.Context, orderID uuid.UUID) ([]Offer, error) {
	offers, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list offers: %w", err)
	}

	return offers, nil
}

// EditOffer replaces the offer's lines and releases the caller's lease.
// The caller does not have to hold the lease, but a live lease held by
// someone else rejects the edit.
func (s *service) EditOffer(ctx context.Context, offerID, actorID uuid.UUID, items []Item) error {
	o, err := s.repo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return ErrOfferNotFound
		}
		return fmt.Errorf("service: failed to fetch offer for edit: %w", err)
	}

	if o.LockedByOther(actorID, s.now().UTC()) {
		holder, hErr := s.repo.GetLockHolder(ctx, offerID)
		if hErr != nil {
			log.Error().Err(hErr).Stringer("offer_id", offerID).Msg("service: failed to resolve lock holder")
		}
		if holder != nil {
			return &LockHeldError{Holder: *holder}
		}
	}

	if err := s.repo.UpsertItems(ctx, offerID, items); err != nil {
		log.Error().Err(err).Stringer("offer_id", offerID).Msg("service: failed to upsert offer items")
		return fmt.Errorf("service: failed to edit offer: %w", err)
	}
	if err := s.repo.SetStatus(ctx, offerID, StatusSubmitted); err != nil {
		return fmt.Errorf("service: failed to update offer status: %w", err)
	}
	if err := s.repo.ReleaseLock(ctx, offerID, actorID); err != nil {
		// Lease release is advisory; the edit itself already landed.
		log.Warn().Err(err).Stringer("offer_id", offerID).Msg("service: failed to release lease after edit")
	}

	s.events.OfferChanged(ctx, o.OrderID, offerID, "edited")
	return nil
}

func (s *service) RefuseOffer(ctx context.Context, offerID uuid.UUID) error {
	o, err := s.repo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return ErrOfferNotFound
		}
		return fmt.Errorf("service: failed to fetch offer: %w", err)
	}

	if err := s.repo.SetStatus(ctx, offerID, StatusRefused); err != nil {
		return fmt.Errorf("service: failed to refuse offer: %w", err)
	}

	s.events.OfferChanged(ctx, o.OrderID, offerID, "refused")
	return nil
}

// Lock takes or renews the edit lease for actorID.
func (s *service) Lock(ctx context.Context, offerID, actorID uuid.UUID) error {
	acquired, err := s.repo.AcquireLock(ctx, offerID, actorID, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return ErrOfferNotFound
		}
		return fmt.Errorf("service: failed to acquire lease: %w", err)
	}
	if !acquired {
		holder, hErr := s.repo.GetLockHolder(ctx, offerID)
		if hErr != nil {
			return fmt.Errorf("service: failed to resolve lock holder: %w", hErr)
		}
		if holder != nil {
			log.Info().Stringer("offer_id", offerID).Str("holder", holder.Name).Msg("service: lease acquire refused")
			return &LockHeldError{Holder: *holder}
		}
		// Holder vanished between the two queries; treat as contended anyway.
		return errors.New("service: lease is held")
	}

	return nil
}

func (s *service) Unlock(ctx context.Context, offerID, actorID uuid.UUID) error {
	if err := s.repo.ReleaseLock(ctx, offerID, actorID); err != nil {
		return fmt.Errorf("service: failed to release lease: %w", err)
	}

	return nil
}
