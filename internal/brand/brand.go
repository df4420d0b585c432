package brand

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("brand not found")
	ErrDuplicate = errors.New("brand with this name already exists")
)

type Brand struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, b *Brand) error
	Update(ctx context.Context, id uuid.UUID, name string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]Brand, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, b *Brand) error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("repository: brand name is required")
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO brands (id, name, created_by, created_at) VALUES ($1, $2, $3, $4)`,
		b.ID, b.Name, b.CreatedBy, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("repository: failed to insert brand: %w", err)
	}

	return nil
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, name string) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE brands SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("repository: failed to update brand %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete brand %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Brand, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_by, created_at FROM brands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query brands: %w", err)
	}
	defer rows.Close()

	brands := make([]Brand, 0)
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating brands: %w", err)
	}

	return brands, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
