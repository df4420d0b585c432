package order_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/partsdesk/parts-broker/internal/order"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockRepository) ListByStatus(ctx context.Context, status order.Status) ([]order.Order, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockRepository) CountByStatus(ctx context.Context) (map[order.Status]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[order.Status]int), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRepository) SetCancelled(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockRepository) SaveQuote(ctx context.Context, id uuid.UUID, status order.Status, items []order.QuoteItem) error {
	args := m.Called(ctx, id, status, items)
	return args.Error(0)
}

func (m *MockRepository) GetQuote(ctx context.Context, id uuid.UUID) ([]order.QuoteItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.QuoteItem), args.Error(1)
}

func TestCreateOrder_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := order.NewService(mockRepo)

	o := &order.Order{
		ClientName: "Ivanov",
		CreatedBy:  uuid.New(),
		Items: []order.Item{
			{Name: "brake pad", Quantity: 2},
			{Name: "oil filter", Quantity: 1},
		},
	}

	mockRepo.On("Create", mock.Anything, o).Return(nil).Once()

	created, err := svc.CreateOrder(context.Background(), o)

	require.NoError(t, err)
	require.NotNil(t, created)
	mockRepo.AssertExpectations(t)
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		o       *order.Order
		wantErr error
	}{
		{
			name:    "no items",
			o:       &order.Order{ClientName: "Ivanov"},
			wantErr: order.ErrNoItems,
		},
		{
			name: "empty client name",
			o: &order.Order{ClientName: "  ", Items: []order.Item{
				{Name: "brake pad", Quantity: 1},
			}},
		},
		{
			name: "item without name",
			o: &order.Order{ClientName: "Ivanov", Items: []order.Item{
				{Name: "", Quantity: 1},
			}},
		},
		{
			name: "zero quantity",
			o: &order.Order{ClientName: "Ivanov", Items: []order.Item{
				{Name: "brake pad", Quantity: 0},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			svc := order.NewService(mockRepo)

			_, err := svc.CreateOrder(context.Background(), tt.o)

			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestGetOrderByID_NotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := order.NewService(mockRepo)

	id := uuid.New()
	mockRepo.On("GetByID", mock.Anything, id).Return(nil, order.ErrOrderNotFound).Once()

	_, err := svc.GetOrderByID(context.Background(), id)

	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestCountOrdersByStatus(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := order.NewService(mockRepo)

	expected := map[order.Status]int{
		order.StatusProcessing: 3,
		order.StatusCompleted:  7,
	}
	mockRepo.On("CountByStatus", mock.Anything).Return(expected, nil).Once()

	counts, err := svc.CountOrdersByStatus(context.Background())

	require.NoError(t, err)
	require.Equal(t, expected, counts)
}
