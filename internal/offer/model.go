package offer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusRefused   Status = "refused"
)

func (s Status) String() string {
	return string(s)
}

type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyCNY Currency = "CNY"
	CurrencyUSD Currency = "USD"
)

// LockTTL bounds the edit lease on an offer. A lease older than this is
// treated as absent by every reader and can be taken over.
const LockTTL = 60 * time.Second

// Item is one priced line of an offer, responding to one order item.
// AdminPrice and AdminComment are manager overrides set by the rank
// selector; IsWinner is set only through it.
type Item struct {
	ID                  uuid.UUID        `json:"id"`
	OfferID             uuid.UUID        `json:"offer_id"`
	OrderItemID         uuid.UUID        `json:"order_item_id"`
	Name                string           `json:"name"`
	Quantity            int              `json:"quantity"`
	Price               decimal.Decimal  `json:"price"`
	Currency            Currency         `json:"currency"`
	DeliveryWeeks       int              `json:"delivery_weeks"`
	ClientDeliveryWeeks *int             `json:"client_delivery_weeks,omitempty"`
	SupplierSKU         string           `json:"supplier_sku,omitempty"`
	IsWinner            bool             `json:"is_winner"`
	AdminPrice          *decimal.Decimal `json:"admin_price,omitempty"`
	AdminComment        *string          `json:"admin_comment,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

type Offer struct {
	ID           uuid.UUID  `json:"id"`
	OrderID      uuid.UUID  `json:"order_id"`
	SupplierID   uuid.UUID  `json:"supplier_id"`
	SupplierName string     `json:"supplier_name"`
	Status       Status     `json:"status"`
	LockedBy     *uuid.UUID `json:"locked_by,omitempty"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	Items        []Item     `json:"items"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LockActive reports whether the offer carries a live edit lease at the
// given instant. The lease goes stale strictly after LockTTL: at exactly
// locked_at+60s it is still active.
func (o *Offer) LockActive(now time.Time) bool {
	if o.LockedBy == nil || o.LockedAt == nil {
		return false
	}
	return now.Sub(*o.LockedAt) <= LockTTL
}

// LockedByOther reports whether someone other than actor holds a live lease.
func (o *Offer) LockedByOther(actor uuid.UUID, now time.Time) bool {
	return o.LockActive(now) && *o.LockedBy != actor
}

// ResolvedPrice is the price a winning line contributes to the quote: the
// manager override when present, otherwise the supplier's submitted price.
func (i *Item) ResolvedPrice() decimal.Decimal {
	if i.AdminPrice != nil {
		return *i.AdminPrice
	}
	return i.Price
}
