package contract

import (
	"encoding/json"
	"fmt"
	"time"

	"energytrade/model"

	"github.com/holiman/uint256"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var marketLogger = flogging.MustGetLogger("energytrade.marketplace")

// listingObjectType keys listings by zero-padded listing id, so iteration
// order equals creation order.
const listingObjectType = "Listing"

const listingCounterName = "listings"

// MarketplaceAccountID is the fixed ledger account holding escrowed tokens.
// Producers must approve this account as spender before listing.
const MarketplaceAccountID = "urn:energytrade:marketplace"

// MarketManager owns listings and escrow. It consults the registry to gate
// listing and moves value through the token and payment ledgers to settle
// trades. Tokens are pulled into escrow at listing time, so an active
// listing's advertised amount is always deliverable.
type MarketManager struct {
	Ctx      contractapi.TransactionContextInterface
	registry *RegistryManager
	token    *TokenManager
	payment  *PaymentManager
}

// NewMarketManager creates a MarketManager over the given collaborators,
// registry first, token ledger second.
func NewMarketManager(ctx contractapi.TransactionContextInterface, registry *RegistryManager, token *TokenManager, payment *PaymentManager) *MarketManager {
	return &MarketManager{Ctx: ctx, registry: registry, token: token, payment: payment}
}

func (mm *MarketManager) createListingKey(listingID uint64) (string, error) {
	return mm.Ctx.GetStub().CreateCompositeKey(listingObjectType, []string{formatSeq(listingID)})
}

// List escrows amount tokens from producer and appends a new active listing
// at the next sequential id.
func (mm *MarketManager) List(producer string, amount, pricePerUnit *uint256.Int, now time.Time) (*model.Listing, error) {
	if err := mm.registry.RequireApproved(producer); err != nil {
		return nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("listing by '%s': %w", producer, model.ErrInvalidAmount)
	}
	if pricePerUnit == nil {
		pricePerUnit = uint256.NewInt(0)
	}

	// Escrow pull. Fails on missing allowance or balance before any listing
	// state is touched.
	if err := mm.token.TransferFrom(MarketplaceAccountID, producer, MarketplaceAccountID, amount); err != nil {
		return nil, fmt.Errorf("failed to escrow %s tokens from '%s': %w", amount.Dec(), producer, err)
	}

	listingID, err := nextCounterValue(mm.Ctx, listingCounterName)
	if err != nil {
		return nil, fmt.Errorf("failed to advance listing counter: %w", err)
	}

	listing := &model.Listing{
		ObjectType:      listingObjectType,
		ListingID:       listingID,
		Producer:        producer,
		RemainingAmount: amount,
		PricePerUnit:    pricePerUnit,
		Active:          true,
		ListedAt:        now,
	}
	if err := mm.putListing(listing); err != nil {
		return nil, err
	}

	marketLogger.Infof("Listing %d created: producer '%s', amount %s, price %s", listingID, producer, amount.Dec(), pricePerUnit.Dec())
	return listing, nil
}

// Buy settles a purchase of amount units from the listing: the tendered
// payment must equal amount * pricePerUnit exactly, tokens leave escrow for
// the buyer, the payment goes to the producer, and the listing deactivates
// when its remaining amount reaches zero.
func (mm *MarketManager) Buy(buyer string, listingID uint64, amount, payment *uint256.Int, now time.Time) (*model.Listing, *uint256.Int, error) {
	listing, err := mm.getListing(listingID)
	if err != nil {
		return nil, nil, err
	}
	if !listing.Active {
		return nil, nil, fmt.Errorf("listing %d is no longer active: %w", listingID, model.ErrNoSuchListing)
	}
	if amount == nil || amount.IsZero() {
		return nil, nil, fmt.Errorf("purchase on listing %d: %w", listingID, model.ErrInvalidAmount)
	}
	if listing.RemainingAmount.Lt(amount) {
		return nil, nil, fmt.Errorf("listing %d has %s remaining, requested %s: %w",
			listingID, listing.RemainingAmount.Dec(), amount.Dec(), model.ErrInsufficientListingAmount)
	}

	totalCost, overflow := new(uint256.Int).MulOverflow(amount, listing.PricePerUnit)
	if overflow {
		return nil, nil, fmt.Errorf("cost of %s units at price %s overflows: %w",
			amount.Dec(), listing.PricePerUnit.Dec(), model.ErrArithmeticOverflow)
	}
	if payment == nil || !payment.Eq(totalCost) {
		tendered := "0"
		if payment != nil {
			tendered = payment.Dec()
		}
		return nil, nil, fmt.Errorf("listing %d costs %s for %s units, tendered %s: %w",
			listingID, totalCost.Dec(), amount.Dec(), tendered, model.ErrIncorrectPayment)
	}

	// Settlement. The payment leg carries the only remaining failure mode
	// (insufficient buyer funds) and runs first; the escrow balance covers
	// the token leg by the listing invariant.
	if err := mm.payment.Move(buyer, listing.Producer, totalCost); err != nil {
		return nil, nil, fmt.Errorf("failed to forward payment for listing %d: %w", listingID, err)
	}
	if err := mm.token.Transfer(MarketplaceAccountID, buyer, amount); err != nil {
		return nil, nil, fmt.Errorf("failed to release escrowed tokens for listing %d: %w", listingID, err)
	}

	listing.RemainingAmount = new(uint256.Int).Sub(listing.RemainingAmount, amount)
	if listing.RemainingAmount.IsZero() {
		listing.Active = false
	}
	listing.LastSoldAt = now
	if err := mm.putListing(listing); err != nil {
		return nil, nil, err
	}

	marketLogger.Infof("Listing %d: '%s' bought %s units for %s (remaining %s, active %v)",
		listingID, buyer, amount.Dec(), totalCost.Dec(), listing.RemainingAmount.Dec(), listing.Active)
	return listing, totalCost, nil
}

// getListing returns the listing at listingID, active or not.
func (mm *MarketManager) getListing(listingID uint64) (*model.Listing, error) {
	key, err := mm.createListingKey(listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing key for %d: %w", listingID, err)
	}
	listingBytes, err := mm.Ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving listing %d: %w", listingID, err)
	}
	if listingBytes == nil {
		return nil, fmt.Errorf("listing %d: %w", listingID, model.ErrNoSuchListing)
	}
	var listing model.Listing
	if err := json.Unmarshal(listingBytes, &listing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing %d: %w", listingID, err)
	}
	return &listing, nil
}

func (mm *MarketManager) putListing(listing *model.Listing) error {
	key, err := mm.createListingKey(listing.ListingID)
	if err != nil {
		return fmt.Errorf("failed to create listing key for %d: %w", listing.ListingID, err)
	}
	listingBytes, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing %d: %w", listing.ListingID, err)
	}
	if err := mm.Ctx.GetStub().PutState(key, listingBytes); err != nil {
		return fmt.Errorf("failed to save listing %d: %w", listing.ListingID, err)
	}
	return nil
}

// Count returns the number of listings ever created.
func (mm *MarketManager) Count() (uint64, error) {
	return peekCounterValue(mm.Ctx, listingCounterName)
}

// allListings iterates the full listing table in creation order.
func (mm *MarketManager) allListings() ([]model.Listing, error) {
	iterator, err := mm.Ctx.GetStub().GetStateByPartialCompositeKey(listingObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get listings iterator: %w", err)
	}
	defer iterator.Close()

	listings := []model.Listing{}
	for iterator.HasNext() {
		entry, iterErr := iterator.Next()
		if iterErr != nil {
			return nil, fmt.Errorf("failed to read next listing: %w", iterErr)
		}
		var listing model.Listing
		if err := json.Unmarshal(entry.Value, &listing); err != nil {
			return nil, fmt.Errorf("failed to unmarshal listing at key '%s': %w", entry.Key, err)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// ActiveListings returns all listings still open for purchase.
func (mm *MarketManager) ActiveListings() ([]model.Listing, error) {
	all, err := mm.allListings()
	if err != nil {
		return nil, err
	}
	active := []model.Listing{}
	for _, listing := range all {
		if listing.Active {
			active = append(active, listing)
		}
	}
	return active, nil
}

// ListingsByProducer returns every listing, active or exhausted, created by
// the given producer.
func (mm *MarketManager) ListingsByProducer(producer string) ([]model.Listing, error) {
	all, err := mm.allListings()
	if err != nil {
		return nil, err
	}
	mine := []model.Listing{}
	for _, listing := range all {
		if listing.Producer == producer {
			mine = append(mine, listing)
		}
	}
	return mine, nil
}
