package contract

import (
	"fmt"
	"strings"

	"energytrade/model"

	"github.com/holiman/uint256"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Producer Registry operations ---

// RequestProducerApproval enrolls the caller as a producer candidate with
// Pending status. Capacity must be a positive integer and identityHash a
// non-empty hash of the producer's identity document.
func (s *EnergySmartContract) RequestProducerApproval(ctx contractapi.TransactionContextInterface, name, location, capacity, identityHash string) error {
	logger.Infof("Chaincode Call: RequestProducerApproval name '%s', location '%s'", name, location)

	if err := validateRequiredString(name, "name", maxStringInputLength); err != nil {
		return err
	}
	if err := validateOptionalString(location, "location", maxStringInputLength); err != nil {
		return err
	}
	if err := validateOptionalString(identityHash, "identityHash", maxIdentityHashLength); err != nil {
		return err
	}
	capacityValue, err := uint256.FromDecimal(strings.TrimSpace(capacity))
	if err != nil {
		return fmt.Errorf("capacity '%s' is not a valid amount: %w", capacity, model.ErrInvalidCapacity)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}
	record, err := NewRegistryManager(ctx).RequestApproval(name, location, capacityValue, identityHash, now)
	if err != nil {
		return err
	}

	s.emitEvent(ctx, EventProducerRequested, map[string]interface{}{
		"producer": record.ProducerID,
	})
	return nil
}

// ApproveProducer moves a pending producer to Approved. Admin only.
func (s *EnergySmartContract) ApproveProducer(ctx contractapi.TransactionContextInterface, producerID string) error {
	logger.Infof("Chaincode Call: ApproveProducer '%s'", producerID)

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}
	record, err := NewRegistryManager(ctx).Approve(producerID, now)
	if err != nil {
		return err
	}

	s.emitEvent(ctx, EventProducerApproved, map[string]interface{}{
		"producer": record.ProducerID,
	})
	return nil
}

// RejectProducer moves a pending producer to Rejected. Admin only.
func (s *EnergySmartContract) RejectProducer(ctx contractapi.TransactionContextInterface, producerID string) error {
	logger.Infof("Chaincode Call: RejectProducer '%s'", producerID)

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}
	record, err := NewRegistryManager(ctx).Reject(producerID, now)
	if err != nil {
		return err
	}

	s.emitEvent(ctx, EventProducerRejected, map[string]interface{}{
		"producer": record.ProducerID,
	})
	return nil
}

// IsApprovedProducer reports whether producerID holds Approved status.
func (s *EnergySmartContract) IsApprovedProducer(ctx contractapi.TransactionContextInterface, producerID string) (bool, error) {
	logger.Debugf("Chaincode Call: IsApprovedProducer '%s'", producerID)
	return NewRegistryManager(ctx).IsApproved(producerID)
}

// GetProducerDetails returns the full producer record, or a zero record with
// status NONE if the identity never requested approval.
func (s *EnergySmartContract) GetProducerDetails(ctx contractapi.TransactionContextInterface, producerID string) (*model.ProducerRecord, error) {
	logger.Debugf("Chaincode Call: GetProducerDetails '%s'", producerID)
	return NewRegistryManager(ctx).GetRecord(producerID)
}

// GetPendingProducers returns the identities awaiting admin triage, in
// request order.
func (s *EnergySmartContract) GetPendingProducers(ctx contractapi.TransactionContextInterface) ([]string, error) {
	logger.Debug("Chaincode Call: GetPendingProducers")
	return NewRegistryManager(ctx).PendingProducers()
}

// GetAllProducers returns every identity that ever requested approval, in
// order of first request, regardless of current status.
func (s *EnergySmartContract) GetAllProducers(ctx contractapi.TransactionContextInterface) ([]string, error) {
	logger.Debug("Chaincode Call: GetAllProducers")
	return NewRegistryManager(ctx).AllProducers()
}
