package webhooks

import (
	"time"

	"github.com/goliatone/go-paystack/core"
	"github.com/shopspring/decimal"
)

// ChargeSuccessEvent is the data of charge.success and charge.failed.
// Amount and Fees are in the currency subunit.
type ChargeSuccessEvent struct {
	ID              int64               `json:"id"`
	Domain          string              `json:"domain"`
	Status          string              `json:"status"`
	Reference       string              `json:"reference"`
	Amount          decimal.Decimal     `json:"amount"`
	Message         *string             `json:"message,omitempty"`
	GatewayResponse string              `json:"gateway_response"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	Channel         string              `json:"channel"`
	Currency        string              `json:"currency"`
	IPAddress       *string             `json:"ip_address,omitempty"`
	Metadata        core.Metadata       `json:"metadata,omitempty"`
	Fees            *decimal.Decimal    `json:"fees,omitempty"`
	Customer        *core.Customer      `json:"customer,omitempty"`
	Authorization   *core.Authorization `json:"authorization,omitempty"`
	Plan            *core.Plan          `json:"plan,omitempty"`
}

type CustomerIdentificationEvent struct {
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customer_id"`
	CustomerCode string    `json:"customer_code"`
	Type         string    `json:"type"`
	Value        string    `json:"value"`
	Validated    bool      `json:"validated"`
	Country      string    `json:"country"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type DedicatedAccountAssignSuccessEvent struct {
	ID            int64                            `json:"id"`
	AccountName   string                           `json:"account_name"`
	AccountNumber string                           `json:"account_number"`
	CreatedAt     time.Time                        `json:"created_at"`
	UpdatedAt     time.Time                        `json:"updated_at"`
	Currency      string                           `json:"currency"`
	Active        bool                             `json:"active"`
	Assigned      bool                             `json:"assigned"`
	Assignment    *core.DedicatedAccountAssignment `json:"assignment,omitempty"`
	Bank          *core.DedicatedAccountBank       `json:"bank,omitempty"`
	Customer      *core.Customer                   `json:"customer,omitempty"`
}

// TransferSuccessEvent is the data of the transfer.* events.
type TransferSuccessEvent struct {
	ID           int64                   `json:"id"`
	Reference    string                  `json:"reference"`
	Source       string                  `json:"source"`
	Amount       decimal.Decimal         `json:"amount"`
	Currency     string                  `json:"currency"`
	Status       string                  `json:"status"`
	TransferCode string                  `json:"transfer_code"`
	Reason       *string                 `json:"reason,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	Recipient    *core.TransferRecipient `json:"recipient,omitempty"`
}

type LineItem struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity int             `json:"quantity"`
}

type TaxItem struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// InvoiceEvent is the data of the invoice.* and paymentrequest.* events.
type InvoiceEvent struct {
	ID            int64           `json:"id"`
	Domain        string          `json:"domain"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	HasInvoice    bool            `json:"has_invoice"`
	InvoiceNumber *int64          `json:"invoice_number,omitempty"`
	Description   *string         `json:"description,omitempty"`
	PDFURL        *string         `json:"pdf_url,omitempty"`
	LineItems     []LineItem      `json:"line_items,omitempty"`
	Tax           []TaxItem       `json:"tax,omitempty"`
	RequestCode   string          `json:"request_code"`
	Status        string          `json:"status"`
	Paid          bool            `json:"paid"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Customer      *core.Customer  `json:"customer,omitempty"`
}

// SubscriptionEvent is the data of the subscription.* events.
type SubscriptionEvent struct {
	ID               int64               `json:"id"`
	Domain           string              `json:"domain"`
	Status           string              `json:"status"`
	SubscriptionCode string              `json:"subscription_code"`
	EmailToken       string              `json:"email_token"`
	Amount           decimal.Decimal     `json:"amount"`
	CronExpression   string              `json:"cron_expression"`
	NextPaymentDate  *time.Time          `json:"next_payment_date,omitempty"`
	OpenInvoice      *string             `json:"open_invoice,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	Plan             *core.Plan          `json:"plan,omitempty"`
	Authorization    *core.Authorization `json:"authorization,omitempty"`
	Customer         *core.Customer      `json:"customer,omitempty"`
}
