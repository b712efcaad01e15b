package contract

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// newPaymentManager wires a PaymentManager with its registry collaborator.
func newPaymentManager(ctx contractapi.TransactionContextInterface) *PaymentManager {
	return NewPaymentManager(ctx, NewRegistryManager(ctx))
}

// --- Payment Ledger operations ---

// CreditPayment credits amount payment units to the given account. This is
// the on-ramp for the payment currency and is restricted to the admin.
func (s *EnergySmartContract) CreditPayment(ctx contractapi.TransactionContextInterface, account, amount string) error {
	logger.Infof("Chaincode Call: CreditPayment %s to '%s'", amount, account)

	if err := validateRequiredString(account, "account", maxStringInputLength); err != nil {
		return err
	}
	value, err := parsePositiveAmount("amount", amount)
	if err != nil {
		return err
	}
	return newPaymentManager(ctx).Credit(account, value)
}

// PaymentBalanceOf returns the decimal payment balance of the given account.
func (s *EnergySmartContract) PaymentBalanceOf(ctx contractapi.TransactionContextInterface, account string) (string, error) {
	logger.Debugf("Chaincode Call: PaymentBalanceOf '%s'", account)

	balance, err := newPaymentManager(ctx).BalanceOf(account)
	if err != nil {
		return "", err
	}
	return balance.Dec(), nil
}
