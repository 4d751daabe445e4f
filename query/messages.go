package query

import (
	"strings"

	"github.com/goliatone/go-paystack/client"
)

const (
	TypeVerifyTransaction     = "paystack.query.transaction.verify"
	TypeGetCustomer           = "paystack.query.customer.get"
	TypeListBanks             = "paystack.query.bank.list"
	TypeResolveAccount        = "paystack.query.bank.resolve"
	TypeListDedicatedAccounts = "paystack.query.dedicated_account.list"
	TypeGetDedicatedAccount   = "paystack.query.dedicated_account.get"
)

type VerifyTransactionMessage struct {
	Reference string
}

func (VerifyTransactionMessage) Type() string { return TypeVerifyTransaction }

func (m VerifyTransactionMessage) Validate() error {
	if strings.TrimSpace(m.Reference) == "" {
		return queryValidationError("reference", "is required")
	}
	return nil
}

// GetCustomerMessage looks a customer up by email or customer code.
type GetCustomerMessage struct {
	EmailOrCode string
}

func (GetCustomerMessage) Type() string { return TypeGetCustomer }

func (m GetCustomerMessage) Validate() error {
	if strings.TrimSpace(m.EmailOrCode) == "" {
		return queryValidationError("email_or_code", "is required")
	}
	return nil
}

type ListBanksMessage struct {
	Filter client.BankFilter
}

func (ListBanksMessage) Type() string { return TypeListBanks }

func (m ListBanksMessage) Validate() error {
	if currency := strings.TrimSpace(m.Filter.Currency); currency != "" && len(currency) != 3 {
		return queryValidationError("currency", "must be a three letter code")
	}
	return nil
}

type ResolveAccountMessage struct {
	AccountNumber string
	BankCode      string
}

func (ResolveAccountMessage) Type() string { return TypeResolveAccount }

func (m ResolveAccountMessage) Validate() error {
	if strings.TrimSpace(m.AccountNumber) == "" {
		return queryValidationError("account_number", "is required")
	}
	if strings.TrimSpace(m.BankCode) == "" {
		return queryValidationError("bank_code", "is required")
	}
	return nil
}

type ListDedicatedAccountsMessage struct {
	Filter client.DedicatedAccountFilter
}

func (ListDedicatedAccountsMessage) Type() string { return TypeListDedicatedAccounts }

func (m ListDedicatedAccountsMessage) Validate() error {
	return nil
}

type GetDedicatedAccountMessage struct {
	AccountID string
}

func (GetDedicatedAccountMessage) Type() string { return TypeGetDedicatedAccount }

func (m GetDedicatedAccountMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return queryValidationError("account_id", "is required")
	}
	return nil
}
