package contract

import (
	"fmt"

	"energytrade/model"

	"github.com/holiman/uint256"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var payLogger = flogging.MustGetLogger("energytrade.payment")

// paymentObjectType keys payment-currency balances, one per account.
const paymentObjectType = "PaymentBalance"

// PaymentManager owns the native payment-currency ledger. Funds enter the
// system through admin-issued credits (the on-ramp) and move only when the
// marketplace settles a purchase.
type PaymentManager struct {
	Ctx      contractapi.TransactionContextInterface
	registry *RegistryManager
}

// NewPaymentManager creates a PaymentManager consulting the given registry
// for the admin credit authorization.
func NewPaymentManager(ctx contractapi.TransactionContextInterface, registry *RegistryManager) *PaymentManager {
	return &PaymentManager{Ctx: ctx, registry: registry}
}

func (pm *PaymentManager) balanceKey(account string) (string, error) {
	return pm.Ctx.GetStub().CreateCompositeKey(paymentObjectType, []string{account})
}

// Credit adds amount to account's payment balance. Admin only.
func (pm *PaymentManager) Credit(account string, amount *uint256.Int) error {
	if err := pm.registry.RequireAdmin(); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("payment credit for '%s': %w", account, model.ErrInvalidAmount)
	}
	key, err := pm.balanceKey(account)
	if err != nil {
		return fmt.Errorf("failed to create payment balance key for '%s': %w", account, err)
	}
	balance, err := readLedgerAmount(pm.Ctx, key)
	if err != nil {
		return err
	}
	newBalance, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return fmt.Errorf("credit of %s would overflow payment balance of '%s': %w", amount.Dec(), account, model.ErrArithmeticOverflow)
	}
	if err := writeLedgerAmount(pm.Ctx, key, newBalance); err != nil {
		return err
	}
	payLogger.Infof("Credited %s payment units to '%s'", amount.Dec(), account)
	return nil
}

// Move transfers amount payment units from from to to, with all checks
// before any write.
func (pm *PaymentManager) Move(from, to string, amount *uint256.Int) error {
	fromKey, err := pm.balanceKey(from)
	if err != nil {
		return fmt.Errorf("failed to create payment balance key for '%s': %w", from, err)
	}
	fromBalance, err := readLedgerAmount(pm.Ctx, fromKey)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("payment balance of '%s' is %s, need %s: %w",
			from, fromBalance.Dec(), amount.Dec(), model.ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}

	toKey, err := pm.balanceKey(to)
	if err != nil {
		return fmt.Errorf("failed to create payment balance key for '%s': %w", to, err)
	}
	toBalance, err := readLedgerAmount(pm.Ctx, toKey)
	if err != nil {
		return err
	}
	newToBalance, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
	if overflow {
		return fmt.Errorf("payment of %s would overflow balance of '%s': %w", amount.Dec(), to, model.ErrArithmeticOverflow)
	}
	newFromBalance := new(uint256.Int).Sub(fromBalance, amount)

	if err := writeLedgerAmount(pm.Ctx, fromKey, newFromBalance); err != nil {
		return err
	}
	return writeLedgerAmount(pm.Ctx, toKey, newToBalance)
}

// BalanceOf returns the payment balance of account.
func (pm *PaymentManager) BalanceOf(account string) (*uint256.Int, error) {
	key, err := pm.balanceKey(account)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment balance key for '%s': %w", account, err)
	}
	return readLedgerAmount(pm.Ctx, key)
}
