package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"energytrade/model"

	"github.com/holiman/uint256"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var regLogger = flogging.MustGetLogger("energytrade.registry")

// Object types for composite keys, also usable as 'docType' in CouchDB.
const (
	producerObjectType     = "ProducerRecord"  // Full producer record. Attribute: ProducerID.
	pendingIndexObjectType = "PendingProducer" // Insertion-ordered pending index. Attributes: seq, ProducerID.
	allIndexObjectType     = "ProducerIndex"   // Insertion-ordered all-producers index. Attributes: seq, ProducerID.
	adminFlagObjectType    = "AdminFlag"       // Flag marking the administrator. Attribute: FullID.
	counterObjectType      = "Counter"         // Monotonic counters. Attribute: counter name.
)

const requestCounterName = "producerRequests"

// RegistryManager owns producer identity and the admin-controlled approval
// state machine. It is the only component that knows who the admin is.
type RegistryManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewRegistryManager creates a new instance of RegistryManager.
func NewRegistryManager(ctx contractapi.TransactionContextInterface) *RegistryManager {
	return &RegistryManager{Ctx: ctx}
}

// --- Key creation helpers ---

func (rm *RegistryManager) createProducerKey(producerID string) (string, error) {
	return rm.Ctx.GetStub().CreateCompositeKey(producerObjectType, []string{producerID})
}

func (rm *RegistryManager) createPendingIndexKey(seq uint64, producerID string) (string, error) {
	return rm.Ctx.GetStub().CreateCompositeKey(pendingIndexObjectType, []string{formatSeq(seq), producerID})
}

func (rm *RegistryManager) createAllIndexKey(seq uint64, producerID string) (string, error) {
	return rm.Ctx.GetStub().CreateCompositeKey(allIndexObjectType, []string{formatSeq(seq), producerID})
}

func (rm *RegistryManager) createAdminFlagKey(fullID string) (string, error) {
	return rm.Ctx.GetStub().CreateCompositeKey(adminFlagObjectType, []string{fullID})
}

// formatSeq zero-pads a sequence number so lexicographic key order equals
// insertion order when iterating the pending/all indexes.
func formatSeq(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

// --- Caller identity ---

// GetCurrentIdentityFullID retrieves the full X.509 ID of the current transactor.
func (rm *RegistryManager) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := rm.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	return id, nil
}

// --- Admin ---

// BootstrapAdmin records fullID as the administrator. The admin is fixed at
// instantiation: once any admin flag exists this is a no-op, so a chaincode
// upgrade cannot change the admin.
func (rm *RegistryManager) BootstrapAdmin(fullID string) error {
	exists, err := rm.anyAdminExists()
	if err != nil {
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}
	if exists {
		regLogger.Infof("Admin already set; ignoring bootstrap request for '%s'", fullID)
		return nil
	}
	adminKey, err := rm.createAdminFlagKey(fullID)
	if err != nil {
		return fmt.Errorf("failed to create admin flag key for '%s': %w", fullID, err)
	}
	if err := rm.Ctx.GetStub().PutState(adminKey, []byte("true")); err != nil {
		return fmt.Errorf("failed to save admin flag for '%s': %w", fullID, err)
	}
	return nil
}

func (rm *RegistryManager) anyAdminExists() (bool, error) {
	iterator, err := rm.Ctx.GetStub().GetStateByPartialCompositeKey(adminFlagObjectType, []string{})
	if err != nil {
		return false, fmt.Errorf("failed to query admin records: %w", err)
	}
	defer iterator.Close()
	return iterator.HasNext(), nil
}

// IsAdmin reports whether fullID carries the admin flag.
func (rm *RegistryManager) IsAdmin(fullID string) (bool, error) {
	adminKey, err := rm.createAdminFlagKey(fullID)
	if err != nil {
		return false, fmt.Errorf("failed to create admin flag key for '%s': %w", fullID, err)
	}
	flagBytes, err := rm.Ctx.GetStub().GetState(adminKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking admin flag for '%s': %w", fullID, err)
	}
	return flagBytes != nil && string(flagBytes) == "true", nil
}

// RequireAdmin fails with ErrNotAuthorized unless the current caller is the admin.
func (rm *RegistryManager) RequireAdmin() error {
	callerID, err := rm.GetCurrentIdentityFullID()
	if err != nil {
		return fmt.Errorf("failed to get caller identity for admin check: %w", err)
	}
	isAdmin, err := rm.IsAdmin(callerID)
	if err != nil {
		return fmt.Errorf("failed to check admin status for '%s': %w", callerID, err)
	}
	if !isAdmin {
		return fmt.Errorf("caller '%s' is not the administrator: %w", callerID, model.ErrNotAuthorized)
	}
	return nil
}

// --- Approval state machine ---

// RequestApproval moves the caller to Pending and stamps it into the pending
// and all-producers indexes. Permitted from None and from Rejected
// (re-application); a request already Pending or Approved is refused.
func (rm *RegistryManager) RequestApproval(name, location string, capacity *uint256.Int, identityHash string, now time.Time) (*model.ProducerRecord, error) {
	callerID, err := rm.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity for RequestApproval: %w", err)
	}

	if capacity == nil || capacity.IsZero() {
		return nil, fmt.Errorf("producer '%s': %w", callerID, model.ErrInvalidCapacity)
	}
	if strings.TrimSpace(identityHash) == "" {
		return nil, fmt.Errorf("producer '%s': %w", callerID, model.ErrInvalidIdentityProof)
	}

	record, err := rm.GetRecord(callerID)
	if err != nil {
		return nil, err
	}
	switch record.Status {
	case model.StatusPending:
		return nil, fmt.Errorf("producer '%s': %w", callerID, model.ErrRequestPending)
	case model.StatusApproved:
		return nil, fmt.Errorf("producer '%s' is already approved: %w", callerID, model.ErrRequestPending)
	}
	firstRequest := record.Status == model.StatusNone

	seq, err := rm.nextRequestSeq()
	if err != nil {
		return nil, err
	}

	record.ObjectType = producerObjectType
	record.ProducerID = callerID
	record.Name = name
	record.Location = location
	record.Capacity = capacity
	record.IdentityHash = identityHash
	record.Status = model.StatusPending
	record.RequestSeq = seq
	record.RequestedAt = now
	record.ReviewedBy = ""
	record.ReviewedAt = time.Time{}

	if err := rm.putRecord(record); err != nil {
		return nil, err
	}

	pendingKey, err := rm.createPendingIndexKey(seq, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending index key for '%s': %w", callerID, err)
	}
	if err := rm.Ctx.GetStub().PutState(pendingKey, []byte(callerID)); err != nil {
		return nil, fmt.Errorf("failed to save pending index entry for '%s': %w", callerID, err)
	}

	// The all-producers index is append-only and idempotent: a re-applying
	// producer keeps its original directory position.
	if firstRequest {
		allKey, keyErr := rm.createAllIndexKey(seq, callerID)
		if keyErr != nil {
			return nil, fmt.Errorf("failed to create producer index key for '%s': %w", callerID, keyErr)
		}
		if err := rm.Ctx.GetStub().PutState(allKey, []byte(callerID)); err != nil {
			return nil, fmt.Errorf("failed to save producer index entry for '%s': %w", callerID, err)
		}
	}

	regLogger.Infof("Producer '%s' requested approval (seq %d, capacity %s)", callerID, seq, capacity.Dec())
	return record, nil
}

// Approve transitions producerID from Pending to Approved. Admin only.
func (rm *RegistryManager) Approve(producerID string, now time.Time) (*model.ProducerRecord, error) {
	return rm.review(producerID, model.StatusApproved, now)
}

// Reject transitions producerID from Pending to Rejected. Admin only.
func (rm *RegistryManager) Reject(producerID string, now time.Time) (*model.ProducerRecord, error) {
	return rm.review(producerID, model.StatusRejected, now)
}

func (rm *RegistryManager) review(producerID string, verdict model.ProducerStatus, now time.Time) (*model.ProducerRecord, error) {
	if err := rm.RequireAdmin(); err != nil {
		return nil, err
	}
	record, err := rm.GetRecord(producerID)
	if err != nil {
		return nil, err
	}
	if record.Status != model.StatusPending {
		return nil, fmt.Errorf("producer '%s' has status %s: %w", producerID, record.Status, model.ErrNoSuchRequest)
	}

	adminID, err := rm.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewing admin identity: %w", err)
	}

	record.Status = verdict
	record.ReviewedBy = adminID
	record.ReviewedAt = now
	if err := rm.putRecord(record); err != nil {
		return nil, err
	}

	pendingKey, err := rm.createPendingIndexKey(record.RequestSeq, producerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending index key for '%s': %w", producerID, err)
	}
	if err := rm.Ctx.GetStub().DelState(pendingKey); err != nil {
		return nil, fmt.Errorf("failed to remove pending index entry for '%s': %w", producerID, err)
	}

	regLogger.Infof("Producer '%s' reviewed by admin '%s': %s", producerID, adminID, verdict)
	return record, nil
}

// IsApproved reports whether producerID currently holds Approved status.
func (rm *RegistryManager) IsApproved(producerID string) (bool, error) {
	record, err := rm.GetRecord(producerID)
	if err != nil {
		return false, err
	}
	return record.Status == model.StatusApproved, nil
}

// RequireApproved fails with ErrNotAuthorized unless the identity is an
// approved producer.
func (rm *RegistryManager) RequireApproved(producerID string) error {
	approved, err := rm.IsApproved(producerID)
	if err != nil {
		return err
	}
	if !approved {
		return fmt.Errorf("'%s' is not an approved producer: %w", producerID, model.ErrNotAuthorized)
	}
	return nil
}

// GetRecord returns the producer record for producerID, or a zero record
// with status None if the identity never requested approval.
func (rm *RegistryManager) GetRecord(producerID string) (*model.ProducerRecord, error) {
	key, err := rm.createProducerKey(producerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer key for '%s': %w", producerID, err)
	}
	recordBytes, err := rm.Ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving producer record for '%s': %w", producerID, err)
	}
	if recordBytes == nil {
		return &model.ProducerRecord{
			ObjectType: producerObjectType,
			ProducerID: producerID,
			Capacity:   uint256.NewInt(0),
			Status:     model.StatusNone,
		}, nil
	}
	var record model.ProducerRecord
	if err := json.Unmarshal(recordBytes, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal producer record for '%s': %w", producerID, err)
	}
	return &record, nil
}

func (rm *RegistryManager) putRecord(record *model.ProducerRecord) error {
	key, err := rm.createProducerKey(record.ProducerID)
	if err != nil {
		return fmt.Errorf("failed to create producer key for '%s': %w", record.ProducerID, err)
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal producer record for '%s': %w", record.ProducerID, err)
	}
	if err := rm.Ctx.GetStub().PutState(key, recordBytes); err != nil {
		return fmt.Errorf("failed to save producer record for '%s': %w", record.ProducerID, err)
	}
	return nil
}

// --- Index reads ---

// PendingProducers returns the identities currently pending, in request order.
func (rm *RegistryManager) PendingProducers() ([]string, error) {
	return rm.readIndex(pendingIndexObjectType)
}

// AllProducers returns every identity that ever requested approval, in the
// order of first request, regardless of current status.
func (rm *RegistryManager) AllProducers() ([]string, error) {
	return rm.readIndex(allIndexObjectType)
}

func (rm *RegistryManager) readIndex(objectType string) ([]string, error) {
	iterator, err := rm.Ctx.GetStub().GetStateByPartialCompositeKey(objectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get index iterator for '%s': %w", objectType, err)
	}
	defer iterator.Close()

	ids := []string{}
	for iterator.HasNext() {
		entry, iterErr := iterator.Next()
		if iterErr != nil {
			return nil, fmt.Errorf("failed to read next index entry for '%s': %w", objectType, iterErr)
		}
		ids = append(ids, string(entry.Value))
	}
	return ids, nil
}

// AllProducerRecords returns the full record of every identity that ever
// requested approval, in directory order.
func (rm *RegistryManager) AllProducerRecords() ([]model.ProducerRecord, error) {
	ids, err := rm.AllProducers()
	if err != nil {
		return nil, err
	}
	records := []model.ProducerRecord{}
	for _, id := range ids {
		record, recErr := rm.GetRecord(id)
		if recErr != nil {
			return nil, recErr
		}
		records = append(records, *record)
	}
	return records, nil
}

// --- Request sequence counter ---

func (rm *RegistryManager) nextRequestSeq() (uint64, error) {
	seq, err := nextCounterValue(rm.Ctx, requestCounterName)
	if err != nil {
		return 0, fmt.Errorf("failed to advance producer request counter: %w", err)
	}
	return seq, nil
}
