package contract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("energytrade.contract")

// Event names consumed by the off-chain watchers and dashboards.
const (
	EventProducerRequested = "ProducerRequested"
	EventProducerApproved  = "ProducerApproved"
	EventProducerRejected  = "ProducerRejected"
	EventEnergyListed      = "EnergyListed"
	EventEnergyPurchased   = "EnergyPurchased"
)

// Constants for input validation.
const (
	maxStringInputLength  = 256
	maxIdentityHashLength = 512
)

// EnergySmartContract exposes the producer registry, the energy token ledger
// and the escrowed marketplace as one Fabric contract over shared world state.
// @contract:EnergySmartContract
type EnergySmartContract struct {
	contractapi.Contract
}

// actorInfo holds commonly needed details about the transaction invoker.
type actorInfo struct {
	fullID string
	mspID  string
}

// Instantiate is called during chaincode instantiation. It records the
// deploying identity as the single fixed administrator; the flag is never
// overwritten on upgrade.
func (s *EnergySmartContract) Instantiate(ctx contractapi.TransactionContextInterface) error {
	rm := NewRegistryManager(ctx)
	callerID, err := rm.GetCurrentIdentityFullID()
	if err != nil {
		return fmt.Errorf("Instantiate: failed to get deployer identity: %w", err)
	}
	if err := rm.BootstrapAdmin(callerID); err != nil {
		return fmt.Errorf("Instantiate: failed to bootstrap admin: %w", err)
	}
	logger.Infof("EnergySmartContract instantiated, admin is '%s'", callerID)
	return nil
}

// getCurrentActorInfo retrieves the invoker's full identity and MSP ID.
func (s *EnergySmartContract) getCurrentActorInfo(ctx contractapi.TransactionContextInterface) (*actorInfo, error) {
	rm := NewRegistryManager(ctx)
	fullID, err := rm.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's FullID: %w", err)
	}
	mspID := ""
	if ci := ctx.GetClientIdentity(); ci != nil {
		if id, mspErr := ci.GetMSPID(); mspErr == nil {
			mspID = id
		} else {
			logger.Debugf("Could not determine MSPID for actor %s: %v", fullID, mspErr)
		}
	}
	return &actorInfo{fullID: fullID, mspID: mspID}, nil
}

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *EnergySmartContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// emitEvent sends a chaincode event with a JSON payload. Event emission is
// best effort: a marshalling or SetEvent failure is logged, never surfaced,
// since the triggering state change has already been validated.
func (s *EnergySmartContract) emitEvent(ctx contractapi.TransactionContextInterface, eventName string, payload map[string]interface{}) {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitEvent: failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitEvent: failed to set event '%s': %v", eventName, errSet)
	}
}
