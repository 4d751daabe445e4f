package client

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/goliatone/go-paystack/core"
)

// Response is the envelope every Paystack endpoint answers with.
type Response[T any] struct {
	Status  bool                 `json:"status"`
	Message string               `json:"message"`
	Data    T                    `json:"data"`
	Meta    *core.PaginationMeta `json:"meta,omitempty"`
}

// Amounts in requests are expressed in the currency subunit (kobo for NGN).
type InitializeTransactionRequest struct {
	Email             string           `json:"email" validate:"required,email"`
	Amount            decimal.Decimal  `json:"amount" validate:"gt=0"`
	Currency          string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Reference         string           `json:"reference,omitempty"`
	CallbackURL       string           `json:"callback_url,omitempty" validate:"omitempty,url"`
	Plan              string           `json:"plan,omitempty"`
	InvoiceLimit      *int             `json:"invoice_limit,omitempty" validate:"omitempty,gte=0"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
	Channels          []string         `json:"channels,omitempty"`
	SplitCode         string           `json:"split_code,omitempty"`
	Subaccount        string           `json:"subaccount,omitempty"`
	TransactionCharge *decimal.Decimal `json:"transaction_charge,omitempty"`
	Bearer            string           `json:"bearer,omitempty" validate:"omitempty,oneof=account subaccount"`
}

type Transaction struct {
	ID               int64               `json:"id,omitempty"`
	Domain           string              `json:"domain,omitempty"`
	AuthorizationURL string              `json:"authorization_url,omitempty"`
	AccessCode       string              `json:"access_code,omitempty"`
	Reference        string              `json:"reference"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency,omitempty"`
	Status           string              `json:"status,omitempty"`
	GatewayResponse  string              `json:"gateway_response,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CreatedAt        *time.Time          `json:"created_at,omitempty"`
	Channel          string              `json:"channel,omitempty"`
	Fees             *decimal.Decimal    `json:"fees,omitempty"`
	Metadata         core.Metadata       `json:"metadata,omitempty"`
	Customer         *core.Customer      `json:"customer,omitempty"`
	Authorization    *core.Authorization `json:"authorization,omitempty"`
}

type ChargeAuthorizationRequest struct {
	AuthorizationCode string           `json:"authorization_code" validate:"required"`
	Email             string           `json:"email" validate:"required,email"`
	Amount            decimal.Decimal  `json:"amount" validate:"gt=0"`
	Currency          string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Reference         string           `json:"reference,omitempty"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
	SplitCode         string           `json:"split_code,omitempty"`
	Subaccount        string           `json:"subaccount,omitempty"`
	TransactionCharge *decimal.Decimal `json:"transaction_charge,omitempty"`
	Bearer            string           `json:"bearer,omitempty" validate:"omitempty,oneof=account subaccount"`
	Queue             bool             `json:"queue,omitempty"`
}

type Charge struct {
	ID              int64               `json:"id"`
	Domain          string              `json:"domain"`
	Status          string              `json:"status"`
	Reference       string              `json:"reference"`
	Amount          decimal.Decimal     `json:"amount"`
	Message         *string             `json:"message,omitempty"`
	GatewayResponse string              `json:"gateway_response"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CreatedAt       *time.Time          `json:"created_at,omitempty"`
	Channel         string              `json:"channel"`
	Currency        string              `json:"currency"`
	IPAddress       *string             `json:"ip_address,omitempty"`
	Metadata        core.Metadata       `json:"metadata,omitempty"`
	Fees            *decimal.Decimal    `json:"fees,omitempty"`
	Customer        *core.Customer      `json:"customer,omitempty"`
	Authorization   *core.Authorization `json:"authorization,omitempty"`
}

type CreateCustomerRequest struct {
	Email     string         `json:"email" validate:"required,email"`
	FirstName string         `json:"first_name,omitempty"`
	LastName  string         `json:"last_name,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type InitiateTransferRequest struct {
	Source    string          `json:"source" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency  string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Recipient string          `json:"recipient" validate:"required"`
	Reason    string          `json:"reason,omitempty"`
	Reference string          `json:"reference,omitempty"`
}

type Transfer struct {
	ID            int64                   `json:"id"`
	Reference     string                  `json:"reference"`
	Source        string                  `json:"source"`
	SourceDetails any                     `json:"source_details,omitempty"`
	Amount        decimal.Decimal         `json:"amount"`
	Currency      string                  `json:"currency"`
	Status        string                  `json:"status"`
	Failures      any                     `json:"failures,omitempty"`
	TransferCode  string                  `json:"transfer_code"`
	Reason        *string                 `json:"reason,omitempty"`
	CreatedAt     *time.Time              `json:"created_at,omitempty"`
	UpdatedAt     *time.Time              `json:"updated_at,omitempty"`
	Recipient     *core.TransferRecipient `json:"recipient,omitempty"`
}

type CreateTransferRecipientRequest struct {
	Type          string         `json:"type" validate:"required,oneof=nuban mobile_money basa ghipss authorization"`
	Name          string         `json:"name" validate:"required"`
	AccountNumber string         `json:"account_number" validate:"required_unless=Type authorization"`
	BankCode      string         `json:"bank_code" validate:"required_unless=Type authorization"`
	Currency      string         `json:"currency,omitempty" validate:"omitempty,len=3"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type Bank struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Code        string     `json:"code"`
	LongCode    *string    `json:"longcode,omitempty"`
	Gateway     *string    `json:"gateway,omitempty"`
	PayWithBank bool       `json:"pay_with_bank"`
	Active      bool       `json:"active"`
	Country     string     `json:"country"`
	Currency    string     `json:"currency"`
	Type        string     `json:"type"`
	IsDeleted   bool       `json:"is_deleted"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// BankFilter narrows ListBanks. The zero value lists every bank.
type BankFilter struct {
	Country  string
	Currency string
	Type     string
}

type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankID        int64  `json:"bank_id"`
}

type CreateDedicatedAccountRequest struct {
	Customer      string `json:"customer" validate:"required"`
	PreferredBank string `json:"preferred_bank,omitempty"`
	Subaccount    string `json:"subaccount,omitempty"`
	SplitCode     string `json:"split_code,omitempty"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

type DedicatedAccountCustomer struct {
	ID           int64   `json:"id"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	Email        string  `json:"email"`
	CustomerCode string  `json:"customer_code"`
	Phone        *string `json:"phone,omitempty"`
	RiskAction   *string `json:"risk_action,omitempty"`
}

type DedicatedAccount struct {
	ID            int64                            `json:"id"`
	AccountName   string                           `json:"account_name"`
	AccountNumber string                           `json:"account_number"`
	CreatedAt     *time.Time                       `json:"created_at,omitempty"`
	UpdatedAt     *time.Time                       `json:"updated_at,omitempty"`
	Currency      string                           `json:"currency"`
	SplitCode     *string                          `json:"split_code,omitempty"`
	Active        bool                             `json:"active"`
	Assigned      bool                             `json:"assigned"`
	Assignment    *core.DedicatedAccountAssignment `json:"assignment,omitempty"`
	Bank          *core.DedicatedAccountBank       `json:"bank,omitempty"`
	Customer      *DedicatedAccountCustomer        `json:"customer,omitempty"`
}

// DedicatedAccountFilter narrows ListDedicatedAccounts. Nil or blank fields
// are left out of the query string.
type DedicatedAccountFilter struct {
	Active       *bool
	Currency     string
	ProviderBank string
	BankID       string
	Customer     string
}

type DeactivateDedicatedAccountRequest struct {
	AccountNumber string `json:"account_number" validate:"required"`
}

type SplitDedicatedAccountRequest struct {
	Customer      string `json:"customer" validate:"required"`
	Subaccount    string `json:"subaccount,omitempty" validate:"required_without=SplitCode"`
	SplitCode     string `json:"split_code,omitempty"`
	PreferredBank string `json:"preferred_bank,omitempty"`
}

type removeSplitRequest struct {
	AccountNumber string `json:"account_number" validate:"required"`
}
