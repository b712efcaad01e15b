package contract

import (
	"strconv"

	"energytrade/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// newMarketManager wires a MarketManager with its collaborators, registry
// first, token ledger second.
func newMarketManager(ctx contractapi.TransactionContextInterface) *MarketManager {
	registry := NewRegistryManager(ctx)
	return NewMarketManager(ctx, registry, NewTokenManager(ctx, registry), NewPaymentManager(ctx, registry))
}

// --- Marketplace operations ---

// ListEnergy escrows amount tokens from the caller and creates a new active
// listing at pricePerUnit. The caller must be an approved producer that has
// approved MarketplaceAccountID for at least amount.
func (s *EnergySmartContract) ListEnergy(ctx contractapi.TransactionContextInterface, amount, pricePerUnit string) error {
	logger.Infof("Chaincode Call: ListEnergy amount %s, price %s", amount, pricePerUnit)

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return err
	}
	amountValue, err := parsePositiveAmount("amount", amount)
	if err != nil {
		return err
	}
	priceValue, err := parseAmount("pricePerUnit", pricePerUnit)
	if err != nil {
		return err
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}

	listing, err := newMarketManager(ctx).List(actor.fullID, amountValue, priceValue, now)
	if err != nil {
		return err
	}

	s.emitEvent(ctx, EventEnergyListed, map[string]interface{}{
		"listingId": listing.ListingID,
		"producer":  listing.Producer,
		"amount":    amountValue.Dec(),
		"price":     listing.PricePerUnit.Dec(),
	})
	return nil
}

// BuyEnergy purchases amount units from the listing, tendering payment from
// the caller's payment balance. The tendered payment must equal
// amount * pricePerUnit exactly; there are no partial refunds or credit.
func (s *EnergySmartContract) BuyEnergy(ctx contractapi.TransactionContextInterface, listingID, amount, payment string) error {
	logger.Infof("Chaincode Call: BuyEnergy listing %s, amount %s, payment %s", listingID, amount, payment)

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return err
	}
	id, err := parseListingID(listingID)
	if err != nil {
		return err
	}
	amountValue, err := parseAmount("amount", amount)
	if err != nil {
		return err
	}
	paymentValue, err := parseAmount("payment", payment)
	if err != nil {
		return err
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}

	_, totalCost, err := newMarketManager(ctx).Buy(actor.fullID, id, amountValue, paymentValue, now)
	if err != nil {
		return err
	}

	s.emitEvent(ctx, EventEnergyPurchased, map[string]interface{}{
		"listingId": id,
		"buyer":     actor.fullID,
		"amount":    amountValue.Dec(),
		"totalCost": totalCost.Dec(),
	})
	return nil
}

// GetListing returns the listing at the given id, whether active or
// exhausted. Listings are never deleted, so the full table stays auditable.
func (s *EnergySmartContract) GetListing(ctx contractapi.TransactionContextInterface, listingID string) (*model.Listing, error) {
	logger.Debugf("Chaincode Call: GetListing %s", listingID)

	id, err := parseListingID(listingID)
	if err != nil {
		return nil, err
	}
	return newMarketManager(ctx).getListing(id)
}

// ListingCount returns the number of listings ever created, as a decimal
// string. Listing ids run from 0 to count-1.
func (s *EnergySmartContract) ListingCount(ctx contractapi.TransactionContextInterface) (string, error) {
	logger.Debug("Chaincode Call: ListingCount")

	count, err := newMarketManager(ctx).Count()
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(count, 10), nil
}

// GetMarketplaceAccount returns the fixed escrow account that producers must
// approve as spender before listing.
func (s *EnergySmartContract) GetMarketplaceAccount(ctx contractapi.TransactionContextInterface) string {
	return MarketplaceAccountID
}
