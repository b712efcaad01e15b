package model

import (
	"time"

	"github.com/holiman/uint256"
)

// Listing is a standing offer to sell a fixed remaining quantity of energy
// tokens at a fixed per-unit price. Listings are never deleted, only
// deactivated, so the listing table doubles as an audit trail.
type Listing struct {
	ObjectType      string       `json:"objectType"` // Set to the composite key object type (Listing)
	ListingID       uint64       `json:"listingId"`  // Sequential, starting at 0
	Producer        string       `json:"producer"`   // Full X.509 identity of the seller
	RemainingAmount *uint256.Int `json:"remainingAmount"`
	PricePerUnit    *uint256.Int `json:"pricePerUnit"` // In the smallest payment-currency unit
	Active          bool         `json:"active"`       // False exactly when RemainingAmount reaches zero
	ListedAt        time.Time    `json:"listedAt"`
	LastSoldAt      time.Time    `json:"lastSoldAt"`
}
