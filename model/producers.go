package model

import (
	"time"

	"github.com/holiman/uint256"
)

// ProducerStatus defines the lifecycle states of a producer approval request.
type ProducerStatus string

const (
	StatusNone     ProducerStatus = "NONE"     // Identity never requested approval
	StatusPending  ProducerStatus = "PENDING"  // Request awaiting admin triage
	StatusApproved ProducerStatus = "APPROVED" // Admin approved; may mint and list
	StatusRejected ProducerStatus = "REJECTED" // Admin rejected; may re-apply
)

// ProducerRecord stores a registered energy producer's application details
// and current approval status.
type ProducerRecord struct {
	ObjectType   string         `json:"objectType"` // Set to the composite key object type (ProducerRecord)
	ProducerID   string         `json:"producerId"` // Full X.509 identity string of the producer
	Name         string         `json:"name"`
	Location     string         `json:"location"`
	Capacity     *uint256.Int   `json:"capacity"`     // Claimed generation capacity, > 0
	IdentityHash string         `json:"identityHash"` // Hash of the off-chain identity document
	Status       ProducerStatus `json:"status"`
	RequestSeq   uint64         `json:"requestSeq"` // Stamp of the most recent request, orders the indexes
	RequestedAt  time.Time      `json:"requestedAt"`
	ReviewedBy   string         `json:"reviewedBy"` // Admin that approved or rejected, empty while pending
	ReviewedAt   time.Time      `json:"reviewedAt"`
}
