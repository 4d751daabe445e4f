package query

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-paystack/client"
	"github.com/goliatone/go-paystack/core"
)

type TransactionReader interface {
	VerifyTransaction(ctx context.Context, reference string) (client.Response[client.Transaction], error)
}

type CustomerReader interface {
	GetCustomer(ctx context.Context, emailOrCode string) (client.Response[core.Customer], error)
}

type BankReader interface {
	ListBanks(ctx context.Context, filter client.BankFilter) (client.Response[[]client.Bank], error)
	ResolveAccountNumber(ctx context.Context, accountNumber, bankCode string) (client.Response[client.ResolvedAccount], error)
}

type DedicatedAccountReader interface {
	ListDedicatedAccounts(ctx context.Context, filter client.DedicatedAccountFilter) (client.Response[[]client.DedicatedAccount], error)
	GetDedicatedAccount(ctx context.Context, accountID string) (client.Response[client.DedicatedAccount], error)
}

type VerifyTransactionQuery struct {
	reader TransactionReader
}

func NewVerifyTransactionQuery(reader TransactionReader) *VerifyTransactionQuery {
	return &VerifyTransactionQuery{reader: reader}
}

func (q *VerifyTransactionQuery) Query(ctx context.Context, msg VerifyTransactionMessage) (client.Response[client.Transaction], error) {
	if q == nil || q.reader == nil {
		return client.Response[client.Transaction]{}, queryDependencyError("query: transaction reader is required")
	}
	return q.reader.VerifyTransaction(ctx, msg.Reference)
}

type GetCustomerQuery struct {
	reader CustomerReader
}

func NewGetCustomerQuery(reader CustomerReader) *GetCustomerQuery {
	return &GetCustomerQuery{reader: reader}
}

func (q *GetCustomerQuery) Query(ctx context.Context, msg GetCustomerMessage) (client.Response[core.Customer], error) {
	if q == nil || q.reader == nil {
		return client.Response[core.Customer]{}, queryDependencyError("query: customer reader is required")
	}
	return q.reader.GetCustomer(ctx, msg.EmailOrCode)
}

type ListBanksQuery struct {
	reader BankReader
}

func NewListBanksQuery(reader BankReader) *ListBanksQuery {
	return &ListBanksQuery{reader: reader}
}

func (q *ListBanksQuery) Query(ctx context.Context, msg ListBanksMessage) (client.Response[[]client.Bank], error) {
	if q == nil || q.reader == nil {
		return client.Response[[]client.Bank]{}, queryDependencyError("query: bank reader is required")
	}
	return q.reader.ListBanks(ctx, msg.Filter)
}

type ResolveAccountQuery struct {
	reader BankReader
}

func NewResolveAccountQuery(reader BankReader) *ResolveAccountQuery {
	return &ResolveAccountQuery{reader: reader}
}

func (q *ResolveAccountQuery) Query(ctx context.Context, msg ResolveAccountMessage) (client.Response[client.ResolvedAccount], error) {
	if q == nil || q.reader == nil {
		return client.Response[client.ResolvedAccount]{}, queryDependencyError("query: bank reader is required")
	}
	return q.reader.ResolveAccountNumber(ctx, msg.AccountNumber, msg.BankCode)
}

type ListDedicatedAccountsQuery struct {
	reader DedicatedAccountReader
}

func NewListDedicatedAccountsQuery(reader DedicatedAccountReader) *ListDedicatedAccountsQuery {
	return &ListDedicatedAccountsQuery{reader: reader}
}

func (q *ListDedicatedAccountsQuery) Query(
	ctx context.Context,
	msg ListDedicatedAccountsMessage,
) (client.Response[[]client.DedicatedAccount], error) {
	if q == nil || q.reader == nil {
		return client.Response[[]client.DedicatedAccount]{}, queryDependencyError("query: dedicated account reader is required")
	}
	return q.reader.ListDedicatedAccounts(ctx, msg.Filter)
}

type GetDedicatedAccountQuery struct {
	reader DedicatedAccountReader
}

func NewGetDedicatedAccountQuery(reader DedicatedAccountReader) *GetDedicatedAccountQuery {
	return &GetDedicatedAccountQuery{reader: reader}
}

func (q *GetDedicatedAccountQuery) Query(ctx context.Context, msg GetDedicatedAccountMessage) (client.Response[client.DedicatedAccount], error) {
	if q == nil || q.reader == nil {
		return client.Response[client.DedicatedAccount]{}, queryDependencyError("query: dedicated account reader is required")
	}
	return q.reader.GetDedicatedAccount(ctx, msg.AccountID)
}

var (
	_ gocmd.Querier[VerifyTransactionMessage, client.Response[client.Transaction]]            = (*VerifyTransactionQuery)(nil)
	_ gocmd.Querier[GetCustomerMessage, client.Response[core.Customer]]                       = (*GetCustomerQuery)(nil)
	_ gocmd.Querier[ListBanksMessage, client.Response[[]client.Bank]]                         = (*ListBanksQuery)(nil)
	_ gocmd.Querier[ResolveAccountMessage, client.Response[client.ResolvedAccount]]           = (*ResolveAccountQuery)(nil)
	_ gocmd.Querier[ListDedicatedAccountsMessage, client.Response[[]client.DedicatedAccount]] = (*ListDedicatedAccountsQuery)(nil)
	_ gocmd.Querier[GetDedicatedAccountMessage, client.Response[client.DedicatedAccount]]     = (*GetDedicatedAccountQuery)(nil)

	_ TransactionReader      = (*client.Client)(nil)
	_ CustomerReader         = (*client.Client)(nil)
	_ BankReader             = (*client.Client)(nil)
	_ DedicatedAccountReader = (*client.Client)(nil)
)
