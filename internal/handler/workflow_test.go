package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/partsdesk/parts-broker/internal/handler"
	"github.com/partsdesk/parts-broker/internal/offer"
	"github.com/partsdesk/parts-broker/internal/user"
	"github.com/partsdesk/parts-broker/internal/workflow"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByToken(ctx context.Context, token string) (*user.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.User), args.Error(1)
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) Approve(ctx context.Context, orderID, actorID uuid.UUID, opts workflow.ApproveOptions) error {
	args := m.Called(ctx, orderID, actorID, opts)
	return args.Error(0)
}

func (m *MockWorkflowService) ApproveManual(ctx context.Context, orderID, actorID uuid.UUID, opts workflow.ApproveOptions) error {
	args := m.Called(ctx, orderID, actorID, opts)
	return args.Error(0)
}

func (m *MockWorkflowService) Complete(ctx context.Context, orderID uuid.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockWorkflowService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) error {
	args := m.Called(ctx, orderID, reason)
	return args.Error(0)
}

func newWorkflowRouter(users *MockUserRepository, svc *MockWorkflowService) http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(handler.NewAuth(users).Middleware)
		handler.NewWorkflowHandler(svc).RegisterRoutes(r)
	})
	return r
}

func adminUser() *user.User {
	return &user.User{ID: uuid.New(), Name: "Admin", Role: user.RoleAdmin, Token: "admin-token"}
}

func TestHandleApprove_Success(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	admin := adminUser()
	orderID := uuid.New()
	users.On("GetByToken", mock.Anything, "admin-token").Return(admin, nil).Once()
	svc.On("Approve", mock.Anything, orderID, admin.ID, workflow.ApproveOptions{}).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/approve", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandleApprove_MissingToken(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/approve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleApprove_ConfirmationRequired(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	admin := adminUser()
	orderID := uuid.New()
	users.On("GetByToken", mock.Anything, "admin-token").Return(admin, nil).Once()
	svc.On("Approve", mock.Anything, orderID, admin.ID, workflow.ApproveOptions{}).
		Return(workflow.ErrConfirmationRequired).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/approve", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var payload struct {
		RequiresConfirmation bool `json:"requires_confirmation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.True(t, payload.RequiresConfirmation)
}

func TestHandleApprove_BlockedByLocks(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	admin := adminUser()
	orderID := uuid.New()
	holder := offer.LockHolder{UserID: uuid.New(), Name: "Buyer B", LockedAt: time.Now().UTC()}

	users.On("GetByToken", mock.Anything, "admin-token").Return(admin, nil).Once()
	svc.On("Approve", mock.Anything, orderID, admin.ID, workflow.ApproveOptions{}).
		Return(&workflow.LockedError{Holders: []offer.LockHolder{holder}}).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/approve", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var payload struct {
		LockedBy []offer.LockHolder `json:"locked_by"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.LockedBy, 1)
	require.Equal(t, "Buyer B", payload.LockedBy[0].Name)
}

func TestHandleApprove_ForceFlagPassedThrough(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	admin := adminUser()
	orderID := uuid.New()
	users.On("GetByToken", mock.Anything, "admin-token").Return(admin, nil).Once()
	svc.On("Approve", mock.Anything, orderID, admin.ID,
		workflow.ApproveOptions{ConfirmEmpty: true, Force: true}).Return(nil).Once()

	body := `{"confirm_empty":true,"force":true}`
	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/approve", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandleManual_EmptyBodyAllowed(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	admin := adminUser()
	orderID := uuid.New()
	users.On("GetByToken", mock.Anything, "admin-token").Return(admin, nil).Once()
	svc.On("ApproveManual", mock.Anything, orderID, admin.ID, workflow.ApproveOptions{}).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/manual", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleCancel_PassesReason(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	admin := adminUser()
	orderID := uuid.New()
	users.On("GetByToken", mock.Anything, "admin-token").Return(admin, nil).Once()
	svc.On("Cancel", mock.Anything, orderID, "client refused").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/cancel",
		strings.NewReader(`{"reason":"client refused"}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandleComplete_InvalidTransition(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	admin := adminUser()
	orderID := uuid.New()
	users.On("GetByToken", mock.Anything, "admin-token").Return(admin, nil).Once()
	svc.On("Complete", mock.Anything, orderID).Return(workflow.ErrInvalidTransition).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/complete", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuth_UnknownToken(t *testing.T) {
	users := new(MockUserRepository)
	svc := new(MockWorkflowService)
	router := newWorkflowRouter(users, svc)

	users.On("GetByToken", mock.Anything, "stale-token").Return(nil, user.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/approve", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
