package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrNoItems = errors.New("order must contain at least one item")

type Service interface {
	CreateOrder(ctx context.Context, o *Order) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrdersByStatus(ctx context.Context, status Status) ([]Order, error)
	CountOrdersByStatus(ctx context.Context) (map[Status]int, error)
	GetQuote(ctx context.Context, id uuid.UUID) ([]QuoteItem, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateOrder(ctx context.Context, o *Order) (*Order, error) {
	if strings.TrimSpace(o.ClientName) == "" {
		return nil, errors.New("service: client name is required")
	}
	if len(o.Items) == 0 {
		log.Warn().Msg("service: attempt to create order with no items")
		return nil, ErrNoItems
	}

	for i := range o.Items {
		item := &o.Items[i]
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("service: order item %d has no name", i+1)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("service: order item %q quantity must be greater than zero", item.Name)
		}
	}

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Stringer("created_by", o.CreatedBy).Msg("service: order created")
	return o, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return o, nil
}

func (s *service) ListOrdersByStatus(ctx context.Context, status Status) ([]Order, error) {
	orders, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		log.Error().Err(err).Str("status", status.String()).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, nil
}

func (s *service) CountOrdersByStatus(ctx context.Context) (map[Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to count orders")
		return nil, fmt.Errorf("service: failed to count orders: %w", err)
	}

	return counts, nil
}

func (s *service) GetQuote(ctx context.Context, id uuid.UUID) ([]QuoteItem, error) {
	items, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch quote")
		return nil, fmt.Errorf("service: failed to fetch quote: %w", err)
	}

	return items, nil
}
