package contract

import (
	"testing"

	"energytrade/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marketFixture approves producer1, mints it 1000 tokens, pre-authorizes the
// marketplace escrow account for all of them, and credits the buyer with
// 1000 payment units.
func marketFixture(t *testing.T) (*EnergySmartContract, *mockContext) {
	t.Helper()
	s, ctx := setupContract(t)
	approveProducer(t, s, ctx, producer1ID)

	ctx.as(producer1ID)
	require.NoError(t, s.MintEnergy(ctx, "1000"))
	require.NoError(t, s.ApproveTokens(ctx, MarketplaceAccountID, "1000"))

	ctx.as(adminID)
	require.NoError(t, s.CreditPayment(ctx, buyerID, "1000"))
	return s, ctx
}

// paymentBalanceOf reads a payment balance as a decimal string.
func paymentBalanceOf(t *testing.T, s *EnergySmartContract, ctx *mockContext, account string) string {
	t.Helper()
	balance, err := s.PaymentBalanceOf(ctx, account)
	require.NoError(t, err)
	return balance
}

func TestListEnergyEscrowsTokens(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "100", "2"))

	// Tokens moved into marketplace custody at listing time.
	assert.Equal(t, "900", balanceOf(t, s, ctx, producer1ID))
	assert.Equal(t, "100", balanceOf(t, s, ctx, MarketplaceAccountID))

	listing, err := s.GetListing(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), listing.ListingID)
	assert.Equal(t, producer1ID, listing.Producer)
	assert.Equal(t, "100", listing.RemainingAmount.Dec())
	assert.Equal(t, "2", listing.PricePerUnit.Dec())
	assert.True(t, listing.Active)

	count, err := s.ListingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", count)

	event := ctx.stub.lastEvent()
	require.NotNil(t, event)
	assert.Equal(t, EventEnergyListed, event.name)
	assert.Equal(t, float64(0), event.payload["listingId"])
	assert.Equal(t, producer1ID, event.payload["producer"])
	assert.Equal(t, "100", event.payload["amount"])
	assert.Equal(t, "2", event.payload["price"])
}

func TestListingIDsAreSequential(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "10", "1"))
	require.NoError(t, s.ListEnergy(ctx, "20", "3"))

	first, err := s.GetListing(ctx, "0")
	require.NoError(t, err)
	second, err := s.GetListing(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.ListingID)
	assert.Equal(t, uint64(1), second.ListingID)

	count, err := s.ListingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", count)
}

func TestListEnergyUnapproved(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(strangerID)
	err := s.ListEnergy(ctx, "100", "1")
	require.ErrorIs(t, err, model.ErrNotAuthorized)

	// No listing created, no token movement.
	count, err := s.ListingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", count)
	assert.Equal(t, "0", balanceOf(t, s, ctx, MarketplaceAccountID))
}

func TestListEnergyWithoutAllowance(t *testing.T) {
	s, ctx := setupContract(t)
	approveProducer(t, s, ctx, producer1ID)

	ctx.as(producer1ID)
	require.NoError(t, s.MintEnergy(ctx, "100"))

	err := s.ListEnergy(ctx, "100", "1")
	require.ErrorIs(t, err, model.ErrInsufficientAllowance)

	// Allowance for less than the listed amount fails the same way.
	require.NoError(t, s.ApproveTokens(ctx, MarketplaceAccountID, "99"))
	err = s.ListEnergy(ctx, "100", "1")
	require.ErrorIs(t, err, model.ErrInsufficientAllowance)

	count, err := s.ListingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", count)
}

func TestListEnergyWithoutBalance(t *testing.T) {
	s, ctx := setupContract(t)
	approveProducer(t, s, ctx, producer1ID)

	ctx.as(producer1ID)
	require.NoError(t, s.MintEnergy(ctx, "50"))
	require.NoError(t, s.ApproveTokens(ctx, MarketplaceAccountID, "1000"))

	err := s.ListEnergy(ctx, "100", "1")
	require.ErrorIs(t, err, model.ErrInsufficientBalance)
}

func TestListEnergyZeroAmount(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(producer1ID)
	err := s.ListEnergy(ctx, "0", "2")
	require.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestBuyEnergyFullScenario(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "50", "2"))

	// First partial fill: 20 units at price 2 cost exactly 40.
	ctx.as(buyerID)
	require.NoError(t, s.BuyEnergy(ctx, "0", "20", "40"))

	listing, err := s.GetListing(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "30", listing.RemainingAmount.Dec())
	assert.True(t, listing.Active)
	assert.Equal(t, "20", balanceOf(t, s, ctx, buyerID))
	assert.Equal(t, "30", balanceOf(t, s, ctx, MarketplaceAccountID))
	assert.Equal(t, "40", paymentBalanceOf(t, s, ctx, producer1ID))
	assert.Equal(t, "960", paymentBalanceOf(t, s, ctx, buyerID))

	event := ctx.stub.lastEvent()
	require.NotNil(t, event)
	assert.Equal(t, EventEnergyPurchased, event.name)
	assert.Equal(t, float64(0), event.payload["listingId"])
	assert.Equal(t, buyerID, event.payload["buyer"])
	assert.Equal(t, "20", event.payload["amount"])
	assert.Equal(t, "40", event.payload["totalCost"])

	// Second fill exhausts the listing and deactivates it.
	require.NoError(t, s.BuyEnergy(ctx, "0", "30", "60"))

	listing, err = s.GetListing(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "0", listing.RemainingAmount.Dec())
	assert.False(t, listing.Active)
	assert.Equal(t, "50", balanceOf(t, s, ctx, buyerID))
	assert.Equal(t, "0", balanceOf(t, s, ctx, MarketplaceAccountID))
	assert.Equal(t, "100", paymentBalanceOf(t, s, ctx, producer1ID))

	// An exhausted listing cannot be bought from again.
	err = s.BuyEnergy(ctx, "0", "1", "2")
	require.ErrorIs(t, err, model.ErrNoSuchListing)
}

func TestBuyEnergyIncorrectPayment(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "20", "2"))

	ctx.as(buyerID)

	// Underpayment.
	err := s.BuyEnergy(ctx, "0", "5", "1")
	require.ErrorIs(t, err, model.ErrIncorrectPayment)

	// Overpayment is rejected too; there is no refund logic.
	err = s.BuyEnergy(ctx, "0", "5", "11")
	require.ErrorIs(t, err, model.ErrIncorrectPayment)

	// Listing state unchanged, no value moved.
	listing, err := s.GetListing(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "20", listing.RemainingAmount.Dec())
	assert.True(t, listing.Active)
	assert.Equal(t, "0", balanceOf(t, s, ctx, buyerID))
	assert.Equal(t, "1000", paymentBalanceOf(t, s, ctx, buyerID))
	assert.Equal(t, "0", paymentBalanceOf(t, s, ctx, producer1ID))
}

func TestBuyEnergyExceedsRemaining(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "10", "1"))

	ctx.as(buyerID)
	err := s.BuyEnergy(ctx, "0", "11", "11")
	require.ErrorIs(t, err, model.ErrInsufficientListingAmount)
}

func TestBuyEnergyInvalidArguments(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "10", "1"))

	ctx.as(buyerID)
	err := s.BuyEnergy(ctx, "0", "0", "0")
	require.ErrorIs(t, err, model.ErrInvalidAmount)

	err = s.BuyEnergy(ctx, "7", "1", "1")
	require.ErrorIs(t, err, model.ErrNoSuchListing)

	err = s.BuyEnergy(ctx, "not-a-listing", "1", "1")
	require.ErrorIs(t, err, model.ErrNoSuchListing)
}

func TestBuyEnergyCostOverflow(t *testing.T) {
	s, ctx := marketFixture(t)

	// Two units at the maximum representable price: the cost product no
	// longer fits in 256 bits and must be rejected before any comparison
	// against the tendered payment.
	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "2", maxUint256Dec))

	ctx.as(buyerID)
	err := s.BuyEnergy(ctx, "0", "2", "4")
	require.ErrorIs(t, err, model.ErrArithmeticOverflow)

	// Listing untouched, no value moved.
	listing, err := s.GetListing(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "2", listing.RemainingAmount.Dec())
	assert.True(t, listing.Active)
	assert.Equal(t, "0", balanceOf(t, s, ctx, buyerID))
	assert.Equal(t, "1000", paymentBalanceOf(t, s, ctx, buyerID))

	// A single unit at that price is still representable; only the exact
	// cost is accepted.
	err = s.BuyEnergy(ctx, "0", "1", "4")
	require.ErrorIs(t, err, model.ErrIncorrectPayment)
}

func TestBuyEnergyProducerPaymentOverflow(t *testing.T) {
	s, ctx := marketFixture(t)

	// The producer's payment balance already sits at the ceiling, so
	// forwarding any payment to it would overflow.
	ctx.as(adminID)
	require.NoError(t, s.CreditPayment(ctx, producer1ID, maxUint256Dec))

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "10", "2"))

	ctx.as(buyerID)
	err := s.BuyEnergy(ctx, "0", "2", "4")
	require.ErrorIs(t, err, model.ErrArithmeticOverflow)

	// Settlement aborted before any leg moved.
	listing, err := s.GetListing(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "10", listing.RemainingAmount.Dec())
	assert.True(t, listing.Active)
	assert.Equal(t, "0", balanceOf(t, s, ctx, buyerID))
	assert.Equal(t, "10", balanceOf(t, s, ctx, MarketplaceAccountID))
	assert.Equal(t, "1000", paymentBalanceOf(t, s, ctx, buyerID))
	assert.Equal(t, maxUint256Dec, paymentBalanceOf(t, s, ctx, producer1ID))
}

func TestBuyEnergyInsufficientFunds(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "10", "5"))

	// The stranger has no payment balance at all.
	ctx.as(strangerID)
	err := s.BuyEnergy(ctx, "0", "10", "50")
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	// Listing untouched, escrow intact.
	listing, err := s.GetListing(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "10", listing.RemainingAmount.Dec())
	assert.True(t, listing.Active)
	assert.Equal(t, "10", balanceOf(t, s, ctx, MarketplaceAccountID))
}

func TestBuyEnergyFreeListing(t *testing.T) {
	s, ctx := marketFixture(t)

	// A zero price is a giveaway: the exact payment is zero.
	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "10", "0"))

	ctx.as(strangerID)
	require.NoError(t, s.BuyEnergy(ctx, "0", "10", "0"))
	assert.Equal(t, "10", balanceOf(t, s, ctx, strangerID))
}

func TestActiveListingsAndProducerListings(t *testing.T) {
	s, ctx := marketFixture(t)
	approveProducer(t, s, ctx, producer2ID)

	ctx.as(producer2ID)
	require.NoError(t, s.MintEnergy(ctx, "100"))
	require.NoError(t, s.ApproveTokens(ctx, MarketplaceAccountID, "100"))

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "10", "1")) // listing 0
	ctx.as(producer2ID)
	require.NoError(t, s.ListEnergy(ctx, "20", "2")) // listing 1
	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "30", "3")) // listing 2

	// Exhaust listing 0.
	ctx.as(buyerID)
	require.NoError(t, s.BuyEnergy(ctx, "0", "10", "10"))

	active, err := s.GetActiveListings(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, uint64(1), active[0].ListingID)
	assert.Equal(t, uint64(2), active[1].ListingID)

	mine, err := s.GetListingsByProducer(ctx, producer1ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, uint64(0), mine[0].ListingID)
	assert.False(t, mine[0].Active)
	assert.Equal(t, uint64(2), mine[1].ListingID)

	ctx.as(producer2ID)
	own, err := s.GetMyListings(ctx)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, uint64(1), own[0].ListingID)

	// The exhausted listing is still readable for audit.
	sold, err := s.GetListing(ctx, "0")
	require.NoError(t, err)
	assert.False(t, sold.Active)
	assert.Equal(t, "0", sold.RemainingAmount.Dec())
}

func TestProducerCanBuyOwnListing(t *testing.T) {
	s, ctx := marketFixture(t)

	ctx.as(adminID)
	require.NoError(t, s.CreditPayment(ctx, producer1ID, "100"))

	ctx.as(producer1ID)
	require.NoError(t, s.ListEnergy(ctx, "10", "2"))
	require.NoError(t, s.BuyEnergy(ctx, "0", "10", "20"))

	// Tokens come back; the payment nets to zero for the self-buyer.
	assert.Equal(t, "1000", balanceOf(t, s, ctx, producer1ID))
	assert.Equal(t, "100", paymentBalanceOf(t, s, ctx, producer1ID))
}
