package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) Get(ctx context.Context, settlementID int64) (*model.AuctionSettlement, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuctionSettlement), args.Error(1)
}

func (m *MockSettlementService) GetByAuction(ctx context.Context, auctionID int64) (*model.AuctionSettlement, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuctionSettlement), args.Error(1)
}

func (m *MockSettlementService) MarkPaid(ctx context.Context, settlementID int64, paymentRef string) (*model.AuctionSettlement, error) {
	args := m.Called(ctx, settlementID, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuctionSettlement), args.Error(1)
}

func (m *MockSettlementService) MarkPaymentFailed(ctx context.Context, settlementID int64, reason string) (*model.AuctionSettlement, error) {
	args := m.Called(ctx, settlementID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuctionSettlement), args.Error(1)
}

func (m *MockSettlementService) ExpireSettlement(ctx context.Context, settlementID int64) (*model.AuctionSettlement, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuctionSettlement), args.Error(1)
}

func TestSettlementHandler_RecordPayment(t *testing.T) {
	t.Run("marks paid", func(t *testing.T) {
		svc := new(MockSettlementService)
		handler := NewSettlementHandler(svc)

		paid := &model.AuctionSettlement{ID: 9, AuctionID: 5, Status: model.SettlementStatusPaid}
		svc.On("MarkPaid", mock.Anything, int64(9), "pay_abc").Return(paid, nil)

		body, _ := json.Marshal(recordPaymentRequest{PaymentRef: "pay_abc"})
		ctx := newTestContext("POST", "/api/v1/settlements/9/payments", body)
		ctx.SetUserValue("id", "9")

		handler.RecordPayment(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var got model.AuctionSettlement
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, model.SettlementStatusPaid, got.Status)
	})

	t.Run("terminal settlement maps to conflict", func(t *testing.T) {
		svc := new(MockSettlementService)
		handler := NewSettlementHandler(svc)

		svc.On("MarkPaid", mock.Anything, int64(9), "pay_abc").
			Return(nil, &model.InvalidTransitionError{Entity: "settlement", From: "paid", To: "paid"})

		body, _ := json.Marshal(recordPaymentRequest{PaymentRef: "pay_abc"})
		ctx := newTestContext("POST", "/api/v1/settlements/9/payments", body)
		ctx.SetUserValue("id", "9")

		handler.RecordPayment(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("missing payment ref", func(t *testing.T) {
		svc := new(MockSettlementService)
		handler := NewSettlementHandler(svc)

		ctx := newTestContext("POST", "/api/v1/settlements/9/payments", []byte(`{}`))
		ctx.SetUserValue("id", "9")

		handler.RecordPayment(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "MarkPaid")
	})
}

func TestSettlementHandler_GetAuctionSettlement(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockSettlementService)
		handler := NewSettlementHandler(svc)

		svc.On("GetByAuction", mock.Anything, int64(5)).
			Return(&model.AuctionSettlement{ID: 9, AuctionID: 5, Status: model.SettlementStatusPendingPayment}, nil)

		ctx := newTestContext("GET", "/api/v1/auctions/5/settlement", nil)
		ctx.SetUserValue("id", "5")

		handler.GetAuctionSettlement(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("not settled yet", func(t *testing.T) {
		svc := new(MockSettlementService)
		handler := NewSettlementHandler(svc)

		svc.On("GetByAuction", mock.Anything, int64(5)).Return(nil, repository.ErrSettlementNotFound)

		ctx := newTestContext("GET", "/api/v1/auctions/5/settlement", nil)
		ctx.SetUserValue("id", "5")

		handler.GetAuctionSettlement(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}
