package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/pkg/pg"
)

type FulfillmentRepository interface {
	Create(ctx context.Context, f *model.AuctionFulfillment) (*model.AuctionFulfillment, error)
	GetByID(ctx context.Context, id int64) (*model.AuctionFulfillment, error)
	GetBySettlementID(ctx context.Context, settlementID int64) (*model.AuctionFulfillment, error)
	LockForUpdate(ctx context.Context, id int64) (*model.AuctionFulfillment, error)
	Update(ctx context.Context, f *model.AuctionFulfillment) error
}

// FulfillmentService drives the shipping state machine for settled auctions.
type FulfillmentService struct {
	db              *pg.DB
	fulfillmentRepo FulfillmentRepository
	settlementRepo  SettlementRepository
}

func NewFulfillmentService(db *pg.DB, fulfillmentRepo FulfillmentRepository, settlementRepo SettlementRepository) *FulfillmentService {
	return &FulfillmentService{
		db:              db,
		fulfillmentRepo: fulfillmentRepo,
		settlementRepo:  settlementRepo,
	}
}

// Claim creates the fulfillment record for a settlement's winner on first
// call and returns the existing one afterwards. Only the winning user may
// claim.
func (s *FulfillmentService) Claim(ctx context.Context, settlementID, userID int64) (*model.AuctionFulfillment, error) {
	var result *model.AuctionFulfillment
	err := s.db.WithinTransaction(ctx, func(ctx context.Context) error {
		settlement, err := s.settlementRepo.GetByID(ctx, settlementID)
		if err != nil {
			return err
		}
		if settlement.WinningUserID == nil {
			return ErrNoWinner
		}
		if *settlement.WinningUserID != userID {
			return fmt.Errorf("%w: settlement winner %d, claimant %d",
				ErrFulfillmentUserMismatch, *settlement.WinningUserID, userID)
		}

		existing, err := s.fulfillmentRepo.GetBySettlementID(ctx, settlementID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, repository.ErrFulfillmentNotFound) {
			return err
		}

		result, err = s.fulfillmentRepo.Create(ctx, &model.AuctionFulfillment{
			AuctionSettlementID: settlementID,
			UserID:              userID,
			Status:              model.FulfillmentStatusPending,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionTo advances a fulfillment one step along the shipping chain.
// Every write re-checks the standing invariant that the fulfillment's user is
// the settlement's winner.
func (s *FulfillmentService) TransitionTo(ctx context.Context, fulfillmentID int64, next model.FulfillmentStatus, carrier, trackingNumber *string) (*model.AuctionFulfillment, error) {
	var result *model.AuctionFulfillment
	err := s.db.WithinTransaction(ctx, func(ctx context.Context) error {
		fulfillment, err := s.fulfillmentRepo.LockForUpdate(ctx, fulfillmentID)
		if err != nil {
			return err
		}

		settlement, err := s.settlementRepo.GetByID(ctx, fulfillment.AuctionSettlementID)
		if err != nil {
			return err
		}
		if settlement.WinningUserID == nil || *settlement.WinningUserID != fulfillment.UserID {
			return fmt.Errorf("%w: fulfillment %d", ErrFulfillmentUserMismatch, fulfillment.ID)
		}

		if err := fulfillment.TransitionTo(next); err != nil {
			return err
		}
		if carrier != nil {
			fulfillment.Carrier = carrier
		}
		if trackingNumber != nil {
			fulfillment.TrackingNumber = trackingNumber
		}

		if err := s.fulfillmentRepo.Update(ctx, fulfillment); err != nil {
			return err
		}
		result = fulfillment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a fulfillment by id.
func (s *FulfillmentService) Get(ctx context.Context, fulfillmentID int64) (*model.AuctionFulfillment, error) {
	return s.fulfillmentRepo.GetByID(ctx, fulfillmentID)
}
