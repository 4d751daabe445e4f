package command

import (
	"strings"

	"github.com/goliatone/go-paystack/client"
	"github.com/goliatone/go-paystack/core"
)

const (
	TypeInitializeTransaction       = "paystack.command.transaction.initialize"
	TypeChargeAuthorization         = "paystack.command.transaction.charge_authorization"
	TypeCreateCustomer              = "paystack.command.customer.create"
	TypeInitiateTransfer            = "paystack.command.transfer.initiate"
	TypeCreateTransferRecipient     = "paystack.command.transfer_recipient.create"
	TypeCreateDedicatedAccount      = "paystack.command.dedicated_account.create"
	TypeDeactivateDedicatedAccount  = "paystack.command.dedicated_account.deactivate"
	TypeSplitDedicatedAccount       = "paystack.command.dedicated_account.split"
	TypeRemoveDedicatedAccountSplit = "paystack.command.dedicated_account.remove_split"
	TypeProcessWebhook              = "paystack.command.webhook.process"
)

type InitializeTransactionMessage struct {
	Request client.InitializeTransactionRequest
}

func (InitializeTransactionMessage) Type() string { return TypeInitializeTransaction }

func (m InitializeTransactionMessage) Validate() error {
	if strings.TrimSpace(m.Request.Email) == "" {
		return commandValidationError("email", "is required")
	}
	if !m.Request.Amount.IsPositive() {
		return commandValidationError("amount", "must be greater than zero")
	}
	return nil
}

type ChargeAuthorizationMessage struct {
	Request client.ChargeAuthorizationRequest
}

func (ChargeAuthorizationMessage) Type() string { return TypeChargeAuthorization }

func (m ChargeAuthorizationMessage) Validate() error {
	if strings.TrimSpace(m.Request.AuthorizationCode) == "" {
		return commandValidationError("authorization_code", "is required")
	}
	if strings.TrimSpace(m.Request.Email) == "" {
		return commandValidationError("email", "is required")
	}
	if !m.Request.Amount.IsPositive() {
		return commandValidationError("amount", "must be greater than zero")
	}
	return nil
}

// CreateCustomerMessage creates a customer. With DedicatedAccount set, a
// dedicated virtual account is provisioned for the new customer as well and
// the account is stored as the result.
type CreateCustomerMessage struct {
	Request          client.CreateCustomerRequest
	DedicatedAccount bool
	PreferredBank    string
}

func (CreateCustomerMessage) Type() string { return TypeCreateCustomer }

func (m CreateCustomerMessage) Validate() error {
	if strings.TrimSpace(m.Request.Email) == "" {
		return commandValidationError("email", "is required")
	}
	return nil
}

type InitiateTransferMessage struct {
	Request client.InitiateTransferRequest
}

func (InitiateTransferMessage) Type() string { return TypeInitiateTransfer }

func (m InitiateTransferMessage) Validate() error {
	if strings.TrimSpace(m.Request.Recipient) == "" {
		return commandValidationError("recipient", "is required")
	}
	if !m.Request.Amount.IsPositive() {
		return commandValidationError("amount", "must be greater than zero")
	}
	return nil
}

type CreateTransferRecipientMessage struct {
	Request client.CreateTransferRecipientRequest
}

func (CreateTransferRecipientMessage) Type() string { return TypeCreateTransferRecipient }

func (m CreateTransferRecipientMessage) Validate() error {
	if strings.TrimSpace(m.Request.Type) == "" {
		return commandValidationError("type", "is required")
	}
	if strings.TrimSpace(m.Request.Name) == "" {
		return commandValidationError("name", "is required")
	}
	return nil
}

type CreateDedicatedAccountMessage struct {
	Request client.CreateDedicatedAccountRequest
}

func (CreateDedicatedAccountMessage) Type() string { return TypeCreateDedicatedAccount }

func (m CreateDedicatedAccountMessage) Validate() error {
	if strings.TrimSpace(m.Request.Customer) == "" {
		return commandValidationError("customer", "is required")
	}
	return nil
}

type DeactivateDedicatedAccountMessage struct {
	AccountNumber string
}

func (DeactivateDedicatedAccountMessage) Type() string { return TypeDeactivateDedicatedAccount }

func (m DeactivateDedicatedAccountMessage) Validate() error {
	if strings.TrimSpace(m.AccountNumber) == "" {
		return commandValidationError("account_number", "is required")
	}
	return nil
}

type SplitDedicatedAccountMessage struct {
	Request client.SplitDedicatedAccountRequest
}

func (SplitDedicatedAccountMessage) Type() string { return TypeSplitDedicatedAccount }

func (m SplitDedicatedAccountMessage) Validate() error {
	if strings.TrimSpace(m.Request.Customer) == "" {
		return commandValidationError("customer", "is required")
	}
	if strings.TrimSpace(m.Request.Subaccount) == "" && strings.TrimSpace(m.Request.SplitCode) == "" {
		return commandValidationError("subaccount", "subaccount or split_code is required")
	}
	return nil
}

type RemoveDedicatedAccountSplitMessage struct {
	AccountNumber string
}

func (RemoveDedicatedAccountSplitMessage) Type() string { return TypeRemoveDedicatedAccountSplit }

func (m RemoveDedicatedAccountSplitMessage) Validate() error {
	if strings.TrimSpace(m.AccountNumber) == "" {
		return commandValidationError("account_number", "is required")
	}
	return nil
}

// ProcessWebhookMessage carries one raw delivery. Body must be the exact
// bytes Paystack signed.
type ProcessWebhookMessage struct {
	Request core.InboundRequest
}

func (ProcessWebhookMessage) Type() string { return TypeProcessWebhook }

func (m ProcessWebhookMessage) Validate() error {
	if len(m.Request.Body) == 0 {
		return commandValidationError("body", "is required")
	}
	return nil
}
