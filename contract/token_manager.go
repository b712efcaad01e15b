package contract

import (
	"fmt"

	"energytrade/model"

	"github.com/holiman/uint256"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var tokenLogger = flogging.MustGetLogger("energytrade.token")

// Object types for the energy token key space.
const (
	balanceObjectType   = "TokenBalance"   // Decimal balance. Attribute: account.
	allowanceObjectType = "TokenAllowance" // Decimal allowance. Attributes: owner, spender.
	supplyObjectType    = "TokenSupply"    // Decimal total supply. Attribute: "total".
)

// TokenManager owns energy token balances, allowances and total supply.
// Minting is gated by the producer registry; all arithmetic is checked and
// a failed check leaves no write behind. The conservation invariant
// totalSupply == sum(balances) holds because supply only moves in Mint,
// in lockstep with exactly one balance.
type TokenManager struct {
	Ctx      contractapi.TransactionContextInterface
	registry *RegistryManager
}

// NewTokenManager creates a TokenManager consulting the given registry for
// mint authorization.
func NewTokenManager(ctx contractapi.TransactionContextInterface, registry *RegistryManager) *TokenManager {
	return &TokenManager{Ctx: ctx, registry: registry}
}

// --- Keys ---

func (tm *TokenManager) balanceKey(account string) (string, error) {
	return tm.Ctx.GetStub().CreateCompositeKey(balanceObjectType, []string{account})
}

func (tm *TokenManager) allowanceKey(owner, spender string) (string, error) {
	return tm.Ctx.GetStub().CreateCompositeKey(allowanceObjectType, []string{owner, spender})
}

func (tm *TokenManager) supplyKey() (string, error) {
	return tm.Ctx.GetStub().CreateCompositeKey(supplyObjectType, []string{"total"})
}

func (tm *TokenManager) readAmount(key string) (*uint256.Int, error) {
	return readLedgerAmount(tm.Ctx, key)
}

func (tm *TokenManager) writeAmount(key string, amount *uint256.Int) error {
	return writeLedgerAmount(tm.Ctx, key, amount)
}

// --- Operations ---

// Mint creates amount new tokens for minter. The minter must be an approved
// producer; supply and the minter's balance move together.
func (tm *TokenManager) Mint(minter string, amount *uint256.Int) error {
	if err := tm.registry.RequireApproved(minter); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("mint by '%s': %w", minter, model.ErrInvalidAmount)
	}

	supplyKey, err := tm.supplyKey()
	if err != nil {
		return fmt.Errorf("failed to create supply key: %w", err)
	}
	supply, err := tm.readAmount(supplyKey)
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return fmt.Errorf("mint of %s would overflow total supply %s: %w", amount.Dec(), supply.Dec(), model.ErrArithmeticOverflow)
	}

	balanceKey, err := tm.balanceKey(minter)
	if err != nil {
		return fmt.Errorf("failed to create balance key for '%s': %w", minter, err)
	}
	balance, err := tm.readAmount(balanceKey)
	if err != nil {
		return err
	}
	newBalance, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return fmt.Errorf("mint of %s would overflow balance of '%s': %w", amount.Dec(), minter, model.ErrArithmeticOverflow)
	}

	if err := tm.writeAmount(supplyKey, newSupply); err != nil {
		return err
	}
	if err := tm.writeAmount(balanceKey, newBalance); err != nil {
		return err
	}
	tokenLogger.Infof("Minted %s tokens for producer '%s' (supply now %s)", amount.Dec(), minter, newSupply.Dec())
	return nil
}

// Transfer moves amount tokens from from to to.
func (tm *TokenManager) Transfer(from, to string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("transfer from '%s': %w", from, model.ErrInvalidAmount)
	}
	return tm.move(from, to, amount)
}

// Approve sets the allowance of spender over owner's tokens to amount. The
// set is absolute, not additive; the marketplace escrow pull spends it down.
func (tm *TokenManager) Approve(owner, spender string, amount *uint256.Int) error {
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	key, err := tm.allowanceKey(owner, spender)
	if err != nil {
		return fmt.Errorf("failed to create allowance key for '%s'/'%s': %w", owner, spender, err)
	}
	if err := tm.writeAmount(key, amount); err != nil {
		return err
	}
	tokenLogger.Infof("Allowance of '%s' over '%s' tokens set to %s", spender, owner, amount.Dec())
	return nil
}

// TransferFrom moves amount tokens from from to to, spending spender's
// allowance over from's balance.
func (tm *TokenManager) TransferFrom(spender, from, to string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("transferFrom by '%s': %w", spender, model.ErrInvalidAmount)
	}

	allowanceKey, err := tm.allowanceKey(from, spender)
	if err != nil {
		return fmt.Errorf("failed to create allowance key for '%s'/'%s': %w", from, spender, err)
	}
	allowance, err := tm.readAmount(allowanceKey)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return fmt.Errorf("allowance of '%s' over '%s' is %s, need %s: %w",
			spender, from, allowance.Dec(), amount.Dec(), model.ErrInsufficientAllowance)
	}

	if err := tm.move(from, to, amount); err != nil {
		return err
	}

	newAllowance := new(uint256.Int).Sub(allowance, amount)
	return tm.writeAmount(allowanceKey, newAllowance)
}

// move debits from and credits to, with all checks before any write.
func (tm *TokenManager) move(from, to string, amount *uint256.Int) error {
	fromKey, err := tm.balanceKey(from)
	if err != nil {
		return fmt.Errorf("failed to create balance key for '%s': %w", from, err)
	}
	fromBalance, err := tm.readAmount(fromKey)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("balance of '%s' is %s, need %s: %w",
			from, fromBalance.Dec(), amount.Dec(), model.ErrInsufficientBalance)
	}

	// Self-transfer nets to zero; skip the writes so the two key updates
	// cannot clobber each other.
	if from == to {
		return nil
	}

	toKey, err := tm.balanceKey(to)
	if err != nil {
		return fmt.Errorf("failed to create balance key for '%s': %w", to, err)
	}
	toBalance, err := tm.readAmount(toKey)
	if err != nil {
		return err
	}
	newToBalance, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
	if overflow {
		return fmt.Errorf("transfer of %s would overflow balance of '%s': %w", amount.Dec(), to, model.ErrArithmeticOverflow)
	}
	newFromBalance := new(uint256.Int).Sub(fromBalance, amount)

	if err := tm.writeAmount(fromKey, newFromBalance); err != nil {
		return err
	}
	return tm.writeAmount(toKey, newToBalance)
}

// --- Reads ---

// BalanceOf returns the token balance of account.
func (tm *TokenManager) BalanceOf(account string) (*uint256.Int, error) {
	key, err := tm.balanceKey(account)
	if err != nil {
		return nil, fmt.Errorf("failed to create balance key for '%s': %w", account, err)
	}
	return tm.readAmount(key)
}

// TotalSupply returns the total minted token supply.
func (tm *TokenManager) TotalSupply() (*uint256.Int, error) {
	key, err := tm.supplyKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create supply key: %w", err)
	}
	return tm.readAmount(key)
}

// Allowance returns spender's remaining allowance over owner's tokens.
func (tm *TokenManager) Allowance(owner, spender string) (*uint256.Int, error) {
	key, err := tm.allowanceKey(owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to create allowance key for '%s'/'%s': %w", owner, spender, err)
	}
	return tm.readAmount(key)
}
