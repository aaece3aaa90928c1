package fixtures

import (
	"fmt"
	"time"

	"github.com/openbid/auction-core/internal/model"
)

var (
	TestUserRich = model.User{
		ID:      1,
		Email:   "rich@example.com",
		Credits: 1000,
	}

	TestUserModest = model.User{
		ID:      2,
		Email:   "modest@example.com",
		Credits: 50,
	}

	TestUserLastCredit = model.User{
		ID:      3,
		Email:   "last-credit@example.com",
		Credits: 1,
	}

	TestUserBroke = model.User{
		ID:      4,
		Email:   "broke@example.com",
		Credits: 0,
	}
)

func NewTestAuction(status model.AuctionStatus, priceCents int64, endsIn time.Duration) *model.Auction {
	end := time.Now().Add(endsIn)
	return &model.Auction{
		Title:             "Vintage synthesizer",
		Description:       "One careful owner",
		Status:            status,
		CurrentPriceCents: priceCents,
		EndTime:           &end,
	}
}

func NewTestBid(auctionID, userID, amountCents int64) *model.Bid {
	return &model.Bid{
		AuctionID:   auctionID,
		UserID:      userID,
		AmountCents: amountCents,
	}
}

func NewTestGrant(userID, amount int64) *model.CreditTransaction {
	return &model.CreditTransaction{
		UserID:         userID,
		Kind:           model.CreditKindGrant,
		Amount:         amount,
		Reason:         "credit_purchase",
		IdempotencyKey: GrantKey(userID, amount),
	}
}

func NewTestDebit(userID, auctionID, price int64) *model.CreditTransaction {
	return &model.CreditTransaction{
		UserID:         userID,
		Kind:           model.CreditKindDebit,
		Amount:         -1,
		Reason:         "bid_debit",
		IdempotencyKey: BidKey(auctionID, userID, price),
		AuctionID:      &auctionID,
	}
}

// BidKey mirrors the deterministic key the bidding path derives, so fixtures
// collide with real writes the same way concurrent bids would.
func BidKey(auctionID, userID, price int64) string {
	return fmt.Sprintf("bid:%d:%d:%d", auctionID, userID, price)
}

func GrantKey(userID, amount int64) string {
	return fmt.Sprintf("grant:%d:%d:%d", userID, amount, time.Now().UnixNano())
}

func AuctionEndingSoon(priceCents int64) *model.Auction {
	return NewTestAuction(model.AuctionStatusActive, priceCents, 30*time.Second)
}

func AuctionEndedAt(priceCents int64, endedAgo time.Duration) *model.Auction {
	end := time.Now().Add(-endedAgo)
	return &model.Auction{
		Title:             "Closed lot",
		Status:            model.AuctionStatusActive,
		CurrentPriceCents: priceCents,
		EndTime:           &end,
	}
}

var ValidEmails = []string{
	"alice@example.com",
	"bob@example.org",
	"carol+bids@example.net",
}

var InvalidEmails = []string{
	"",
	"   ",
	"not-an-email",
}
