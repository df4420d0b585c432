// Package rates stores the manager-maintained exchange-rate rows used for
// price conversion and the delivery-weeks markup shown to clients.
package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("exchange rates not found")

type ExchangeRates struct {
	Date             time.Time       `json:"date"`
	USDToRUB         decimal.Decimal `json:"usd_to_rub"`
	CNYToRUB         decimal.Decimal `json:"cny_to_rub"`
	DeliveryWeeksAdd int             `json:"delivery_weeks_add"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Repository interface {
	GetLatest(ctx context.Context) (*ExchangeRates, error)
	GetByDate(ctx context.Context, date time.Time) (*ExchangeRates, error)
	Upsert(ctx context.Context, r *ExchangeRates) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const ratesColumns = `date, usd_to_rub, cny_to_rub, delivery_weeks_add, updated_at`

func (r *postgresRepository) GetLatest(ctx context.Context) (*ExchangeRates, error) {
	var er ExchangeRates
	err := r.db.QueryRow(ctx,
		`SELECT `+ratesColumns+` FROM exchange_rates ORDER BY date DESC LIMIT 1`).
		Scan(&er.Date, &er.USDToRUB, &er.CNYToRUB, &er.DeliveryWeeksAdd, &er.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select latest rates: %w", err)
	}

	return &er, nil
}

func (r *postgresRepository) GetByDate(ctx context.Context, date time.Time) (*ExchangeRates, error) {
	var er ExchangeRates
	err := r.db.QueryRow(ctx,
		`SELECT `+ratesColumns+` FROM exchange_rates WHERE date = $1`, date).
		Scan(&er.Date, &er.USDToRUB, &er.CNYToRUB, &er.DeliveryWeeksAdd, &er.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select rates for %s: %w", date.Format("2006-01-02"), err)
	}

	return &er, nil
}

func (r *postgresRepository) Upsert(ctx context.Context, er *ExchangeRates) error {
	er.UpdatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO exchange_rates (date, usd_to_rub, cny_to_rub, delivery_weeks_add, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			usd_to_rub = EXCLUDED.usd_to_rub,
			cny_to_rub = EXCLUDED.cny_to_rub,
			delivery_weeks_add = EXCLUDED.delivery_weeks_add,
			updated_at = EXCLUDED.updated_at
	`, er.Date, er.USDToRUB, er.CNYToRUB, er.DeliveryWeeksAdd, er.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to upsert rates: %w", err)
	}

	return nil
}

// Markup adapts the repository to the offer service's RatesSource.
// A missing rates row means no markup, not an error.
type Markup struct {
	Repo Repository
}

func (m Markup) DeliveryWeeksAdd(ctx context.Context) (int, error) {
	er, err := m.Repo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return er.DeliveryWeeksAdd, nil
}
