package contract

import (
	"energytrade/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// Read-side surface consumed by the marketplace and admin dashboards. All
// queries are side-effect-free and observe fully committed state only.

// GetAllProducerDetails returns the full record of every identity that ever
// requested approval, in directory order. Backs the producer directory page.
func (s *EnergySmartContract) GetAllProducerDetails(ctx contractapi.TransactionContextInterface) ([]model.ProducerRecord, error) {
	logger.Debug("Chaincode Call: GetAllProducerDetails")
	return NewRegistryManager(ctx).AllProducerRecords()
}

// GetActiveListings returns all listings still open for purchase, in
// creation order. Backs the marketplace dashboard.
func (s *EnergySmartContract) GetActiveListings(ctx contractapi.TransactionContextInterface) ([]model.Listing, error) {
	logger.Debug("Chaincode Call: GetActiveListings")
	return newMarketManager(ctx).ActiveListings()
}

// GetListingsByProducer returns every listing created by the given producer,
// active or exhausted. Backs the producer dashboard.
func (s *EnergySmartContract) GetListingsByProducer(ctx contractapi.TransactionContextInterface, producerID string) ([]model.Listing, error) {
	logger.Debugf("Chaincode Call: GetListingsByProducer '%s'", producerID)
	return newMarketManager(ctx).ListingsByProducer(producerID)
}

// GetMyListings returns the caller's own listings.
func (s *EnergySmartContract) GetMyListings(ctx contractapi.TransactionContextInterface) ([]model.Listing, error) {
	logger.Debug("Chaincode Call: GetMyListings")

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, err
	}
	return newMarketManager(ctx).ListingsByProducer(actor.fullID)
}
