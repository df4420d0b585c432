package ranking_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/partsdesk/parts-broker/internal/ranking"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetOfferLine(ctx context.Context, offerItemID uuid.UUID) (*ranking.OfferLine, error) {
	args := m.Called(ctx, offerItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ranking.OfferLine), args.Error(1)
}

func (m *MockRepository) MarkWinner(ctx context.Context, p ranking.MarkWinnerParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) ResetWinner(ctx context.Context, offerItemID, orderItemID uuid.UUID) error {
	args := m.Called(ctx, offerItemID, orderItemID)
	return args.Error(0)
}

func TestSelectWinner_UsesSubmittedPrice(t *testing.T) {
	repo := new(MockRepository)
	selector := ranking.NewSelector(repo)

	offerItemID := uuid.New()
	orderItemID := uuid.New()
	line := &ranking.OfferLine{
		ID:          offerItemID,
		OrderItemID: orderItemID,
		Price:       decimal.RequireFromString("450.00"),
	}

	repo.On("GetOfferLine", mock.Anything, offerItemID).Return(line, nil).Once()

	var marked ranking.MarkWinnerParams
	repo.On("MarkWinner", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			marked = args.Get(1).(ranking.MarkWinnerParams)
		}).
		Return(nil).Once()

	err := selector.SelectWinner(context.Background(), ranking.SelectWinnerParams{
		OfferItemID: offerItemID,
		OrderItemID: orderItemID,
	})

	require.NoError(t, err)
	require.True(t, marked.Price.Equal(line.Price))
	repo.AssertExpectations(t)
}

func TestSelectWinner_AdminPriceOverrides(t *testing.T) {
	repo := new(MockRepository)
	selector := ranking.NewSelector(repo)

	offerItemID := uuid.New()
	orderItemID := uuid.New()
	adminPrice := decimal.RequireFromString("399.99")

	repo.On("GetOfferLine", mock.Anything, offerItemID).Return(&ranking.OfferLine{
		ID:          offerItemID,
		OrderItemID: orderItemID,
		Price:       decimal.RequireFromString("450.00"),
	}, nil).Once()

	var marked ranking.MarkWinnerParams
	repo.On("MarkWinner", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			marked = args.Get(1).(ranking.MarkWinnerParams)
		}).
		Return(nil).Once()

	err := selector.SelectWinner(context.Background(), ranking.SelectWinnerParams{
		OfferItemID: offerItemID,
		OrderItemID: orderItemID,
		AdminPrice:  &adminPrice,
	})

	require.NoError(t, err)
	require.True(t, marked.Price.Equal(adminPrice), "admin price must win over the submitted price")
}

func TestSelectWinner_MismatchedOrderItem(t *testing.T) {
	repo := new(MockRepository)
	selector := ranking.NewSelector(repo)

	offerItemID := uuid.New()
	repo.On("GetOfferLine", mock.Anything, offerItemID).Return(&ranking.OfferLine{
		ID:          offerItemID,
		OrderItemID: uuid.New(),
		Price:       decimal.RequireFromString("1.00"),
	}, nil).Once()

	err := selector.SelectWinner(context.Background(), ranking.SelectWinnerParams{
		OfferItemID: offerItemID,
		OrderItemID: uuid.New(),
	})

	require.Error(t, err)
	repo.AssertNotCalled(t, "MarkWinner", mock.Anything, mock.Anything)
}

func TestSelectWinner_NotFound(t *testing.T) {
	repo := new(MockRepository)
	selector := ranking.NewSelector(repo)

	offerItemID := uuid.New()
	repo.On("GetOfferLine", mock.Anything, offerItemID).Return(nil, ranking.ErrOfferItemNotFound).Once()

	err := selector.SelectWinner(context.Background(), ranking.SelectWinnerParams{
		OfferItemID: offerItemID,
		OrderItemID: uuid.New(),
	})

	require.ErrorIs(t, err, ranking.ErrOfferItemNotFound)
}

func TestResetWinner_Delegates(t *testing.T) {
	repo := new(MockRepository)
	selector := ranking.NewSelector(repo)

	offerItemID := uuid.New()
	orderItemID := uuid.New()
	repo.On("ResetWinner", mock.Anything, offerItemID, orderItemID).Return(nil).Once()

	err := selector.ResetWinner(context.Background(), offerItemID, orderItemID)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestResetWinner_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	selector := ranking.NewSelector(repo)

	repoErr := errors.New("connection lost")
	repo.On("ResetWinner", mock.Anything, mock.Anything, mock.Anything).Return(repoErr).Once()

	err := selector.ResetWinner(context.Background(), uuid.New(), uuid.New())

	require.ErrorIs(t, err, repoErr)
}
