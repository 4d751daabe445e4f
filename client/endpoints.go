package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-paystack/core"
)

const bankCacheKeyPrefix = "go-paystack::banks::v1"

func (c *Client) InitializeTransaction(ctx context.Context, req InitializeTransactionRequest) (Response[Transaction], error) {
	if strings.TrimSpace(req.Currency) == "" {
		req.Currency = core.DefaultCurrency
	}
	return call[Transaction](ctx, c, request{
		endpoint: "transaction.initialize",
		method:   http.MethodPost,
		path:     "/transaction/initialize",
		body:     req,
	})
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (Response[Transaction], error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Response[Transaction]{}, missingArgumentError("transaction.verify", "reference")
	}
	return call[Transaction](ctx, c, request{
		endpoint: "transaction.verify",
		method:   http.MethodGet,
		path:     "/transaction/verify/" + url.PathEscape(reference),
	})
}

func (c *Client) ChargeAuthorization(ctx context.Context, req ChargeAuthorizationRequest) (Response[Charge], error) {
	if strings.TrimSpace(req.Currency) == "" {
		req.Currency = core.DefaultCurrency
	}
	return call[Charge](ctx, c, request{
		endpoint: "transaction.charge_authorization",
		method:   http.MethodPost,
		path:     "/transaction/charge_authorization",
		body:     req,
	})
}

func (c *Client) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (Response[core.Customer], error) {
	return call[core.Customer](ctx, c, request{
		endpoint: "customer.create",
		method:   http.MethodPost,
		path:     "/customer",
		body:     req,
	})
}

// GetCustomer fetches a customer by email or customer code.
func (c *Client) GetCustomer(ctx context.Context, emailOrCode string) (Response[core.Customer], error) {
	emailOrCode = strings.TrimSpace(emailOrCode)
	if emailOrCode == "" {
		return Response[core.Customer]{}, missingArgumentError("customer.fetch", "customer_code")
	}
	return call[core.Customer](ctx, c, request{
		endpoint: "customer.fetch",
		method:   http.MethodGet,
		path:     "/customer/" + url.PathEscape(emailOrCode),
	})
}

func (c *Client) InitiateTransfer(ctx context.Context, req InitiateTransferRequest) (Response[Transfer], error) {
	if strings.TrimSpace(req.Source) == "" {
		req.Source = core.DefaultTransferSource
	}
	if strings.TrimSpace(req.Currency) == "" {
		req.Currency = core.DefaultCurrency
	}
	return call[Transfer](ctx, c, request{
		endpoint: "transfer.initiate",
		method:   http.MethodPost,
		path:     "/transfer",
		body:     req,
	})
}

func (c *Client) CreateTransferRecipient(ctx context.Context, req CreateTransferRecipientRequest) (Response[core.TransferRecipient], error) {
	if strings.TrimSpace(req.Currency) == "" {
		req.Currency = core.DefaultCurrency
	}
	return call[core.TransferRecipient](ctx, c, request{
		endpoint: "transferrecipient.create",
		method:   http.MethodPost,
		path:     "/transferrecipient",
		body:     req,
	})
}

// ListBanks lists the banks Paystack supports. With a bank cache configured,
// successful responses are served from the cache until they expire.
func (c *Client) ListBanks(ctx context.Context, filter BankFilter) (Response[[]Bank], error) {
	fetch := func(ctx context.Context) (Response[[]Bank], error) {
		return call[[]Bank](ctx, c, request{
			endpoint: "bank.list",
			method:   http.MethodGet,
			path:     "/bank",
			query:    filter.query(),
		})
	}
	if c == nil || c.bankCache == nil {
		return fetch(ctx)
	}
	return repositorycache.GetOrFetch(ctx, c.bankCache, BankCacheKey(filter), fetch)
}

// BankCacheKey returns the cache key for a bank listing:
// go-paystack::banks::v1::<country>::<currency>::<type>.
func BankCacheKey(filter BankFilter) string {
	segments := []string{bankCacheKeyPrefix}
	for _, value := range []string{filter.Country, filter.Currency, filter.Type} {
		segments = append(segments, url.PathEscape(strings.ToLower(strings.TrimSpace(value))))
	}
	return strings.Join(segments, "::")
}

func (f BankFilter) query() map[string]string {
	query := map[string]string{}
	if value := strings.TrimSpace(f.Country); value != "" {
		query["country"] = strings.ToLower(value)
	}
	if value := strings.TrimSpace(f.Currency); value != "" {
		query["currency"] = strings.ToUpper(value)
	}
	if value := strings.TrimSpace(f.Type); value != "" {
		query["type"] = value
	}
	return query
}

func (c *Client) ResolveAccountNumber(ctx context.Context, accountNumber, bankCode string) (Response[ResolvedAccount], error) {
	accountNumber = strings.TrimSpace(accountNumber)
	bankCode = strings.TrimSpace(bankCode)
	if accountNumber == "" {
		return Response[ResolvedAccount]{}, missingArgumentError("bank.resolve", "account_number")
	}
	if bankCode == "" {
		return Response[ResolvedAccount]{}, missingArgumentError("bank.resolve", "bank_code")
	}
	return call[ResolvedAccount](ctx, c, request{
		endpoint: "bank.resolve",
		method:   http.MethodGet,
		path:     "/bank/resolve",
		query:    map[string]string{"account_number": accountNumber, "bank_code": bankCode},
	})
}

func (c *Client) CreateDedicatedAccount(ctx context.Context, req CreateDedicatedAccountRequest) (Response[DedicatedAccount], error) {
	return call[DedicatedAccount](ctx, c, request{
		endpoint: "dedicated_account.create",
		method:   http.MethodPost,
		path:     "/dedicated_account",
		body:     req,
	})
}

// CreateDedicatedAccountForCustomer creates the customer first and then a
// dedicated account assigned to the new customer code.
func (c *Client) CreateDedicatedAccountForCustomer(ctx context.Context, customer CreateCustomerRequest, preferredBank string) (Response[DedicatedAccount], error) {
	created, err := c.CreateCustomer(ctx, customer)
	if err != nil {
		return Response[DedicatedAccount]{}, err
	}
	if strings.TrimSpace(created.Data.CustomerCode) == "" {
		return Response[DedicatedAccount]{}, clientError(
			"client: customer was not created",
			goerrors.CategoryExternal,
			map[string]any{"endpoint": "customer.create"},
		)
	}
	req := CreateDedicatedAccountRequest{
		Customer:      created.Data.CustomerCode,
		PreferredBank: strings.TrimSpace(preferredBank),
		FirstName:     customer.FirstName,
		LastName:      customer.LastName,
		Phone:         customer.Phone,
	}
	if created.Data.Phone != nil && strings.TrimSpace(*created.Data.Phone) != "" {
		req.Phone = *created.Data.Phone
	}
	return c.CreateDedicatedAccount(ctx, req)
}

func (c *Client) ListDedicatedAccounts(ctx context.Context, filter DedicatedAccountFilter) (Response[[]DedicatedAccount], error) {
	return call[[]DedicatedAccount](ctx, c, request{
		endpoint: "dedicated_account.list",
		method:   http.MethodGet,
		path:     "/dedicated_account",
		query:    filter.query(),
	})
}

func (f DedicatedAccountFilter) query() map[string]string {
	query := map[string]string{}
	if f.Active != nil {
		query["active"] = strconv.FormatBool(*f.Active)
	}
	for key, value := range map[string]string{
		"currency":      f.Currency,
		"provider_bank": f.ProviderBank,
		"bank_id":       f.BankID,
		"customer":      f.Customer,
	} {
		if value = strings.TrimSpace(value); value != "" {
			query[key] = value
		}
	}
	return query
}

func (c *Client) GetDedicatedAccount(ctx context.Context, accountID string) (Response[DedicatedAccount], error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Response[DedicatedAccount]{}, missingArgumentError("dedicated_account.fetch", "account_id")
	}
	return call[DedicatedAccount](ctx, c, request{
		endpoint: "dedicated_account.fetch",
		method:   http.MethodGet,
		path:     "/dedicated_account/" + url.PathEscape(accountID),
	})
}

func (c *Client) DeactivateDedicatedAccount(ctx context.Context, req DeactivateDedicatedAccountRequest) (Response[DedicatedAccount], error) {
	return call[DedicatedAccount](ctx, c, request{
		endpoint: "dedicated_account.deactivate",
		method:   http.MethodDelete,
		path:     "/dedicated_account/deactivate",
		body:     req,
	})
}

func (c *Client) SplitDedicatedAccountTransaction(ctx context.Context, req SplitDedicatedAccountRequest) (Response[DedicatedAccount], error) {
	return call[DedicatedAccount](ctx, c, request{
		endpoint: "dedicated_account.split",
		method:   http.MethodPost,
		path:     "/dedicated_account/split",
		body:     req,
	})
}

func (c *Client) RemoveSplitFromDedicatedAccount(ctx context.Context, accountNumber string) (Response[DedicatedAccount], error) {
	return call[DedicatedAccount](ctx, c, request{
		endpoint: "dedicated_account.remove_split",
		method:   http.MethodPost,
		path:     "/dedicated_account/remove_split",
		body:     removeSplitRequest{AccountNumber: strings.TrimSpace(accountNumber)},
	})
}
