package contract

import (
	"fmt"
	"strconv"
	"strings"

	"energytrade/model"

	"github.com/holiman/uint256"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Counters ---

// nextCounterValue returns the current value of a named monotonic counter and
// advances it by one. Counters start at zero.
func nextCounterValue(ctx contractapi.TransactionContextInterface, name string) (uint64, error) {
	current, key, err := readCounter(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := ctx.GetStub().PutState(key, []byte(strconv.FormatUint(current+1, 10))); err != nil {
		return 0, fmt.Errorf("failed to save counter '%s': %w", name, err)
	}
	return current, nil
}

// peekCounterValue returns the current value of a named counter without
// advancing it.
func peekCounterValue(ctx contractapi.TransactionContextInterface, name string) (uint64, error) {
	current, _, err := readCounter(ctx, name)
	return current, err
}

func readCounter(ctx contractapi.TransactionContextInterface, name string) (uint64, string, error) {
	key, err := ctx.GetStub().CreateCompositeKey(counterObjectType, []string{name})
	if err != nil {
		return 0, "", fmt.Errorf("failed to create counter key for '%s': %w", name, err)
	}
	valueBytes, err := ctx.GetStub().GetState(key)
	if err != nil {
		return 0, "", fmt.Errorf("ledger error reading counter '%s': %w", name, err)
	}
	if valueBytes == nil {
		return 0, key, nil
	}
	current, err := strconv.ParseUint(string(valueBytes), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("corrupt counter '%s' value '%s': %w", name, valueBytes, err)
	}
	return current, key, nil
}

// --- Scalar ledger amounts ---

// readLedgerAmount reads a decimal amount from world state, treating an
// absent key as zero.
func readLedgerAmount(ctx contractapi.TransactionContextInterface, key string) (*uint256.Int, error) {
	valueBytes, err := ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading amount at '%s': %w", key, err)
	}
	if valueBytes == nil {
		return uint256.NewInt(0), nil
	}
	amount, err := uint256.FromDecimal(string(valueBytes))
	if err != nil {
		return nil, fmt.Errorf("corrupt amount '%s' at '%s': %w", valueBytes, key, err)
	}
	return amount, nil
}

// writeLedgerAmount stores a decimal amount in world state.
func writeLedgerAmount(ctx contractapi.TransactionContextInterface, key string, amount *uint256.Int) error {
	if err := ctx.GetStub().PutState(key, []byte(amount.Dec())); err != nil {
		return fmt.Errorf("failed to save amount at '%s': %w", key, err)
	}
	return nil
}

// --- Amount parsing ---

// parseAmount parses a decimal token or payment amount. The string form is
// the wire representation of all quantities in the contract API.
func parseAmount(field, value string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%s '%s' is not a valid amount: %w", field, value, model.ErrInvalidAmount)
	}
	return amount, nil
}

// parsePositiveAmount parses a decimal amount and rejects zero.
func parsePositiveAmount(field, value string) (*uint256.Int, error) {
	amount, err := parseAmount(field, value)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%s: %w", field, model.ErrInvalidAmount)
	}
	return amount, nil
}

// parseListingID parses a decimal listing id.
func parseListingID(value string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("listing id '%s': %w", value, model.ErrNoSuchListing)
	}
	return id, nil
}

// --- Validation helpers ---

func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

func validateOptionalString(input, field string, max int) error {
	if input != "" && len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}
