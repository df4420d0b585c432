package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Message is one chat line, attached to an order or global when OrderID
// is nil.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    *uuid.UUID `json:"order_id,omitempty"`
	AuthorID   uuid.UUID  `json:"author_id"`
	AuthorRole string     `json:"author_role"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, m *Message) error
	ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]Message, error)
	ListGlobal(ctx context.Context, limit int) ([]Message, error)
}

// EventPublisher pushes new messages to the change-feed.
type EventPublisher interface {
	MessagePosted(ctx context.Context, m Message)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Insert(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, order_id, author_id, author_role, body, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.OrderID, m.AuthorID, m.AuthorRole, m.Body, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert chat message: %w", err)
	}

	return nil
}

func (r *postgresRepository) ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]Message, error) {
	return r.list(ctx, `SELECT id, order_id, author_id, author_role, body, created_at
		FROM chat_messages WHERE order_id = $1 ORDER BY created_at DESC LIMIT $2`, orderID, limit)
}

func (r *postgresRepository) ListGlobal(ctx context.Context, limit int) ([]Message, error) {
	return r.list(ctx, `SELECT id, order_id, author_id, author_role, body, created_at
		FROM chat_messages WHERE order_id IS NULL ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.OrderID, &m.AuthorID, &m.AuthorRole, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating chat messages: %w", err)
	}

	return messages, nil
}

type Service interface {
	Send(ctx context.Context, m *Message) (*Message, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]Message, error)
	ListGlobal(ctx context.Context, limit int) ([]Message, error)
}

type service struct {
	repo   Repository
	events EventPublisher
}

func NewService(repo Repository, events EventPublisher) Service {
	return &service{repo: repo, events: events}
}

func (s *service) Send(ctx context.Context, m *Message) (*Message, error) {
	if strings.TrimSpace(m.Body) == "" {
		return nil, errors.New("service: message body is required")
	}

	if err := s.repo.Insert(ctx, m); err != nil {
		log.Error().Err(err).Msg("service: failed to store chat message")
		return nil, fmt.Errorf("service: failed to send message: %w", err)
	}

	s.events.MessagePosted(ctx, *m)
	return m, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.repo.ListByOrder(ctx, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list messages: %w", err)
	}
	return msgs, nil
}

func (s *service) ListGlobal(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.repo.ListGlobal(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list messages: %w", err)
	}
	return msgs, nil
}
