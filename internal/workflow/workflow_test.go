package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/partsdesk/parts-broker/internal/offer"
	"github.com/partsdesk/parts-broker/internal/order"
	"github.com/partsdesk/parts-broker/internal/workflow"
)

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderStore) SaveQuote(ctx context.Context, id uuid.UUID, status order.Status, items []order.QuoteItem) error {
	args := m.Called(ctx, id, status, items)
	return args.Error(0)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOrderStore) SetCancelled(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

type MockOfferStore struct {
	mock.Mock
}

func (m *MockOfferStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]offer.Offer, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]offer.Offer), args.Error(1)
}

func processingOrder(id uuid.UUID) *order.Order {
	return &order.Order{ID: id, ClientName: "Client", Status: order.StatusProcessing}
}

func winnerOffer(orderID uuid.UUID, price string, adminPrice *decimal.Decimal) offer.Offer {
	item := offer.Item{
		ID:            uuid.New(),
		OrderItemID:   uuid.New(),
		Name:          "brake pad",
		Quantity:      2,
		Price:         decimal.RequireFromString(price),
		Currency:      offer.CurrencyCNY,
		DeliveryWeeks: 4,
		IsWinner:      true,
		AdminPrice:    adminPrice,
	}
	return offer.Offer{
		ID:      uuid.New(),
		OrderID: orderID,
		Status:  offer.StatusSubmitted,
		Items:   []offer.Item{item},
	}
}

func TestApprove_CollectsWinnersIntoQuote(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	actorID := uuid.New()
	adminPrice := decimal.RequireFromString("99.50")
	off := winnerOffer(orderID, "120.00", &adminPrice)

	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Once()
	offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{off}, nil).Once()

	var saved []order.QuoteItem
	orders.On("SaveQuote", mock.Anything, orderID, order.StatusQuoteReady, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(3).([]order.QuoteItem)
		}).
		Return(nil).Once()

	err := svc.Approve(context.Background(), orderID, actorID, workflow.ApproveOptions{})

	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, off.Items[0].OrderItemID, saved[0].OrderItemID)
	require.True(t, saved[0].Price.Equal(adminPrice), "quote must carry the admin price override")
	orders.AssertExpectations(t)
	offers.AssertExpectations(t)
}

func TestApprove_NonWinnersStayOutOfQuote(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	off := winnerOffer(orderID, "100.00", nil)
	off.Items = append(off.Items, offer.Item{
		ID:          uuid.New(),
		OrderItemID: uuid.New(),
		Name:        "oil filter",
		Quantity:    1,
		Price:       decimal.RequireFromString("10.00"),
		IsWinner:    false,
	})

	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Once()
	offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{off}, nil).Once()

	var saved []order.QuoteItem
	orders.On("SaveQuote", mock.Anything, orderID, order.StatusQuoteReady, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(3).([]order.QuoteItem)
		}).
		Return(nil).Once()

	err := svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{})

	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, "brake pad", saved[0].Name)
}

func TestApprove_CompetingOffersOnlySelectedLineQuoted(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	orderItemID := uuid.New()

	expensive := offer.Offer{
		ID:      uuid.New(),
		OrderID: orderID,
		Items: []offer.Item{{
			ID:          uuid.New(),
			OrderItemID: orderItemID,
			Name:        "brake pad",
			Quantity:    2,
			Price:       decimal.RequireFromString("500.00"),
			IsWinner:    false,
		}},
	}
	cheap := offer.Offer{
		ID:      uuid.New(),
		OrderID: orderID,
		Items: []offer.Item{{
			ID:          uuid.New(),
			OrderItemID: orderItemID,
			Name:        "brake pad",
			Quantity:    2,
			Price:       decimal.RequireFromString("450.00"),
			IsWinner:    true,
		}},
	}

	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Once()
	offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{expensive, cheap}, nil).Once()

	var saved []order.QuoteItem
	orders.On("SaveQuote", mock.Anything, orderID, order.StatusQuoteReady, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(3).([]order.QuoteItem)
		}).
		Return(nil).Once()

	err := svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{})

	require.NoError(t, err)
	require.Len(t, saved, 1, "exactly one line per order item in the quote")
	require.Equal(t, cheap.Items[0].ID, saved[0].OfferItemID)
	require.True(t, saved[0].Price.Equal(decimal.RequireFromString("450.00")))
	orders.AssertExpectations(t)
}

func TestApprove_EmptyWinnersRequiresConfirmation(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Once()
	offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{}, nil).Once()

	err := svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{})

	require.ErrorIs(t, err, workflow.ErrConfirmationRequired)
	orders.AssertNotCalled(t, "SaveQuote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApprove_EmptyWinnersConfirmed(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Once()
	offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{}, nil).Once()
	orders.On("SaveQuote", mock.Anything, orderID, order.StatusQuoteReady, mock.Anything).Return(nil).Once()

	err := svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{ConfirmEmpty: true})

	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestApprove_LiveLeaseBlocksWithoutForce(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	holderID := uuid.New()
	lockedAt := time.Now().UTC().Add(-10 * time.Second)

	off := winnerOffer(orderID, "50.00", nil)
	off.SupplierName = "Supplier A"
	off.LockedBy = &holderID
	off.LockedAt = &lockedAt

	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Twice()
	offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{off}, nil).Twice()

	err := svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{})

	var lockedErr *workflow.LockedError
	require.ErrorAs(t, err, &lockedErr)
	require.Len(t, lockedErr.Holders, 1)
	require.Equal(t, holderID, lockedErr.Holders[0].UserID)
	orders.AssertNotCalled(t, "SaveQuote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// Force goes through with the exact same transition.
	orders.On("SaveQuote", mock.Anything, orderID, order.StatusQuoteReady, mock.Anything).Return(nil).Once()
	err = svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{Force: true})
	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestApprove_ExpiredLeaseDoesNotBlock(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	holderID := uuid.New()
	lockedAt := time.Now().UTC().Add(-offer.LockTTL - 2*time.Second)

	off := winnerOffer(orderID, "50.00", nil)
	off.LockedBy = &holderID
	off.LockedAt = &lockedAt

	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Once()
	offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{off}, nil).Once()
	orders.On("SaveQuote", mock.Anything, orderID, order.StatusQuoteReady, mock.Anything).Return(nil).Once()

	err := svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{})

	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestApproveManual_RoutesToManualStatus(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Once()
	offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{winnerOffer(orderID, "10.00", nil)}, nil).Once()
	orders.On("SaveQuote", mock.Anything, orderID, order.StatusManual, mock.Anything).Return(nil).Once()

	err := svc.ApproveManual(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{})

	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestTransitions_RejectedOutsideTable(t *testing.T) {
	tests := []struct {
		name   string
		status order.Status
		call   func(svc workflow.Service, orderID uuid.UUID) error
	}{
		{
			name:   "approve a completed order",
			status: order.StatusCompleted,
			call: func(svc workflow.Service, orderID uuid.UUID) error {
				return svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{ConfirmEmpty: true})
			},
		},
		{
			name:   "complete a processing order",
			status: order.StatusProcessing,
			call: func(svc workflow.Service, orderID uuid.UUID) error {
				return svc.Complete(context.Background(), orderID)
			},
		},
		{
			name:   "cancel a cancelled order",
			status: order.StatusCancelled,
			call: func(svc workflow.Service, orderID uuid.UUID) error {
				return svc.Cancel(context.Background(), orderID, "again")
			},
		},
		{
			name:   "approve a quote_ready order",
			status: order.StatusQuoteReady,
			call: func(svc workflow.Service, orderID uuid.UUID) error {
				return svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{ConfirmEmpty: true})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(MockOrderStore)
			offers := new(MockOfferStore)
			svc := workflow.NewService(orders, offers)

			orderID := uuid.New()
			orders.On("GetByID", mock.Anything, orderID).
				Return(&order.Order{ID: orderID, Status: tt.status}, nil).Once()
			offers.On("ListByOrder", mock.Anything, orderID).Return([]offer.Offer{}, nil).Maybe()

			err := tt.call(svc, orderID)

			require.ErrorIs(t, err, workflow.ErrInvalidTransition)
			orders.AssertNotCalled(t, "SaveQuote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
			orders.AssertNotCalled(t, "SetCancelled", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestComplete_FromQuoteReady(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, Status: order.StatusQuoteReady}, nil).Once()
	orders.On("UpdateStatus", mock.Anything, orderID, order.StatusCompleted).Return(nil).Once()

	err := svc.Complete(context.Background(), orderID)

	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestCancel_DefaultsReason(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(processingOrder(orderID), nil).Once()
	orders.On("SetCancelled", mock.Anything, orderID, "cancelled by manager").Return(nil).Once()

	err := svc.Cancel(context.Background(), orderID, "")

	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestCancel_KeepsGivenReason(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).
		Return(&order.Order{ID: orderID, Status: order.StatusManual}, nil).Once()
	orders.On("SetCancelled", mock.Anything, orderID, "client refused").Return(nil).Once()

	err := svc.Cancel(context.Background(), orderID, "client refused")

	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestApprove_OrderNotFound(t *testing.T) {
	orders := new(MockOrderStore)
	offers := new(MockOfferStore)
	svc := workflow.NewService(orders, offers)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(nil, order.ErrOrderNotFound).Once()

	err := svc.Approve(context.Background(), orderID, uuid.New(), workflow.ApproveOptions{})

	require.ErrorIs(t, err, order.ErrOrderNotFound)
}
