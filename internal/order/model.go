package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusQuoteReady Status = "quote_ready"
	StatusManual     Status = "manual"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further workflow transitions are exposed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Item is one requested part line. AdminName and AdminQuantity are manager
// overrides of the operator intake; AdminPrice mirrors the winning offer
// line and is written only by the rank selector.
type Item struct {
	ID            uuid.UUID        `json:"id"`
	OrderID       uuid.UUID        `json:"order_id"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand,omitempty"`
	Article       string           `json:"article,omitempty"`
	Unit          string           `json:"unit,omitempty"`
	Quantity      int              `json:"quantity"`
	AdminName     *string          `json:"admin_name,omitempty"`
	AdminQuantity *int             `json:"admin_quantity,omitempty"`
	AdminPrice    *decimal.Decimal `json:"admin_price,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type Order struct {
	ID            uuid.UUID  `json:"id"`
	ClientName    string     `json:"client_name"`
	ClientPhone   string     `json:"client_phone,omitempty"`
	ClientEmail   string     `json:"client_email,omitempty"`
	Address       string     `json:"address,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Status        Status     `json:"status"`
	RefusalReason *string    `json:"refusal_reason,omitempty"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	Items         []Item     `json:"items"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// QuoteItem is one accepted line of a formed quote: a snapshot of the
// winning offer item at approval time.
type QuoteItem struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       uuid.UUID       `json:"order_id"`
	OrderItemID   uuid.UUID       `json:"order_item_id"`
	OfferItemID   uuid.UUID       `json:"offer_item_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	DeliveryWeeks int             `json:"delivery_weeks"`
	CreatedAt     time.Time       `json:"created_at"`
}
