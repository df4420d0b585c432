package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
	RoleBuyer    Role = "buyer"
)

var ErrNotFound = errors.New("user not found")

// User is an internal actor. Token is the opaque bearer value a browser
// stores to restore its session; there is no other credential.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	GetByToken(ctx context.Context, token string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListByRole(ctx context.Context, role Role) ([]User, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByToken(ctx context.Context, token string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx,
		`SELECT id, name, phone, role, token, created_at FROM users WHERE token = $1`, token).
		Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.Token, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by token: %w", err)
	}

	return &u, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx,
		`SELECT id, name, phone, role, token, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.Token, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by id %s: %w", id, err)
	}

	return &u, nil
}

func (r *postgresRepository) ListByRole(ctx context.Context, role Role) ([]User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, phone, role, token, created_at FROM users WHERE role = $1 ORDER BY name`, string(role))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query users by role %s: %w", role, err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.Token, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating users: %w", err)
	}

	return users, nil
}
