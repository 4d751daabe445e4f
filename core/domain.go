package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency       = "NGN"
	DefaultTransferSource = "balance"
)

// MajorUnits converts an amount expressed in the currency subunit (kobo,
// pesewas, cents) into major units.
func MajorUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(-2)
}

// SubUnits converts a major-unit amount into the subunit Paystack expects.
func SubUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(2)
}

// Metadata is the free-form metadata object attached to Paystack resources.
// Paystack sometimes sends it as an empty string or as a JSON-encoded string;
// both decode into a map.
type Metadata map[string]any

func (m *Metadata) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = nil
		return nil
	}
	if trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return err
		}
		encoded = strings.TrimSpace(encoded)
		if encoded == "" {
			*m = nil
			return nil
		}
		trimmed = []byte(encoded)
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("core: metadata must be an object")
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	values := map[string]any{}
	if err := decoder.Decode(&values); err != nil {
		return err
	}
	*m = values
	return nil
}

type Customer struct {
	ID                       int64     `json:"id"`
	FirstName                *string   `json:"first_name,omitempty"`
	LastName                 *string   `json:"last_name,omitempty"`
	Email                    string    `json:"email"`
	CustomerCode             string    `json:"customer_code"`
	Phone                    *string   `json:"phone,omitempty"`
	Metadata                 Metadata  `json:"metadata,omitempty"`
	RiskAction               *string   `json:"risk_action,omitempty"`
	InternationalFormatPhone *string   `json:"international_format_phone,omitempty"`
	CreatedAt                time.Time `json:"created_at,omitempty"`
	UpdatedAt                time.Time `json:"updated_at,omitempty"`
}

type Authorization struct {
	AuthorizationCode string  `json:"authorization_code"`
	Bin               string  `json:"bin"`
	Last4             string  `json:"last4"`
	ExpMonth          string  `json:"exp_month"`
	ExpYear           string  `json:"exp_year"`
	Channel           string  `json:"channel"`
	CardType          string  `json:"card_type"`
	Bank              string  `json:"bank"`
	CountryCode       string  `json:"country_code"`
	Brand             string  `json:"brand"`
	Reusable          bool    `json:"reusable"`
	Signature         string  `json:"signature"`
	AccountName       *string `json:"account_name,omitempty"`
}

type Plan struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	PlanCode    string          `json:"plan_code"`
	Description *string         `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Interval    string          `json:"interval"`
	Currency    string          `json:"currency"`
}

type RecipientDetails struct {
	AuthorizationCode *string `json:"authorization_code,omitempty"`
	AccountNumber     *string `json:"account_number,omitempty"`
	AccountName       *string `json:"account_name,omitempty"`
	BankCode          *string `json:"bank_code,omitempty"`
	BankName          *string `json:"bank_name,omitempty"`
}

type TransferRecipient struct {
	ID            int64             `json:"id"`
	Active        bool              `json:"active"`
	Currency      string            `json:"currency"`
	Domain        string            `json:"domain"`
	Integration   int64             `json:"integration"`
	Name          string            `json:"name"`
	RecipientCode string            `json:"recipient_code"`
	Type          string            `json:"type"`
	Description   *string           `json:"description,omitempty"`
	IsDeleted     bool              `json:"is_deleted,omitempty"`
	Details       *RecipientDetails `json:"details,omitempty"`
	Metadata      Metadata          `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at,omitempty"`
}

type DedicatedAccountAssignment struct {
	Integration  int64     `json:"integration"`
	AssigneeID   int64     `json:"assignee_id"`
	AssigneeType string    `json:"assignee_type"`
	Expired      bool      `json:"expired"`
	AccountType  string    `json:"account_type"`
	AssignedAt   time.Time `json:"assigned_at"`
}

type DedicatedAccountBank struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type PaginationMeta struct {
	Total     int `json:"total"`
	Skipped   int `json:"skipped"`
	PerPage   int `json:"perPage"`
	Page      int `json:"page"`
	PageCount int `json:"pageCount"`
}
