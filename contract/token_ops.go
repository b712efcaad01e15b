package contract

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// newTokenManager wires a TokenManager with its registry collaborator.
func newTokenManager(ctx contractapi.TransactionContextInterface) *TokenManager {
	return NewTokenManager(ctx, NewRegistryManager(ctx))
}

// --- Energy Token Ledger operations ---

// MintEnergy mints amount energy tokens to the caller. The caller must be an
// approved producer.
func (s *EnergySmartContract) MintEnergy(ctx contractapi.TransactionContextInterface, amount string) error {
	logger.Infof("Chaincode Call: MintEnergy %s", amount)

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return err
	}
	value, err := parsePositiveAmount("amount", amount)
	if err != nil {
		return err
	}
	return newTokenManager(ctx).Mint(actor.fullID, value)
}

// TransferTokens moves amount tokens from the caller to the given account.
func (s *EnergySmartContract) TransferTokens(ctx contractapi.TransactionContextInterface, to, amount string) error {
	logger.Infof("Chaincode Call: TransferTokens %s to '%s'", amount, to)

	if err := validateRequiredString(to, "to", maxStringInputLength); err != nil {
		return err
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return err
	}
	value, err := parsePositiveAmount("amount", amount)
	if err != nil {
		return err
	}
	return newTokenManager(ctx).Transfer(actor.fullID, to, value)
}

// ApproveTokens sets the spender's allowance over the caller's tokens to the
// given absolute amount. Producers approve MarketplaceAccountID before
// listing energy for sale.
func (s *EnergySmartContract) ApproveTokens(ctx contractapi.TransactionContextInterface, spender, amount string) error {
	logger.Infof("Chaincode Call: ApproveTokens spender '%s', amount %s", spender, amount)

	if err := validateRequiredString(spender, "spender", maxStringInputLength); err != nil {
		return err
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return err
	}
	value, err := parseAmount("amount", amount)
	if err != nil {
		return err
	}
	return newTokenManager(ctx).Approve(actor.fullID, spender, value)
}

// TransferTokensFrom moves amount tokens from from to to, spending the
// caller's allowance over from's balance.
func (s *EnergySmartContract) TransferTokensFrom(ctx contractapi.TransactionContextInterface, from, to, amount string) error {
	logger.Infof("Chaincode Call: TransferTokensFrom %s from '%s' to '%s'", amount, from, to)

	if err := validateRequiredString(from, "from", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(to, "to", maxStringInputLength); err != nil {
		return err
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return err
	}
	value, err := parsePositiveAmount("amount", amount)
	if err != nil {
		return err
	}
	return newTokenManager(ctx).TransferFrom(actor.fullID, from, to, value)
}

// BalanceOf returns the decimal token balance of the given account.
func (s *EnergySmartContract) BalanceOf(ctx contractapi.TransactionContextInterface, account string) (string, error) {
	logger.Debugf("Chaincode Call: BalanceOf '%s'", account)

	balance, err := newTokenManager(ctx).BalanceOf(account)
	if err != nil {
		return "", err
	}
	return balance.Dec(), nil
}

// TotalSupply returns the decimal total minted supply.
func (s *EnergySmartContract) TotalSupply(ctx contractapi.TransactionContextInterface) (string, error) {
	logger.Debug("Chaincode Call: TotalSupply")

	supply, err := newTokenManager(ctx).TotalSupply()
	if err != nil {
		return "", err
	}
	return supply.Dec(), nil
}

// Allowance returns spender's remaining decimal allowance over owner's tokens.
func (s *EnergySmartContract) Allowance(ctx contractapi.TransactionContextInterface, owner, spender string) (string, error) {
	logger.Debugf("Chaincode Call: Allowance owner '%s', spender '%s'", owner, spender)

	allowance, err := newTokenManager(ctx).Allowance(owner, spender)
	if err != nil {
		return "", err
	}
	return allowance.Dec(), nil
}
