package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-paystack/client"
	"github.com/goliatone/go-paystack/core"
)

// MutatingService is the write side of the Paystack API. *client.Client
// implements it.
type MutatingService interface {
	InitializeTransaction(ctx context.Context, req client.InitializeTransactionRequest) (client.Response[client.Transaction], error)
	ChargeAuthorization(ctx context.Context, req client.ChargeAuthorizationRequest) (client.Response[client.Charge], error)
	CreateCustomer(ctx context.Context, req client.CreateCustomerRequest) (client.Response[core.Customer], error)
	CreateDedicatedAccountForCustomer(ctx context.Context, customer client.CreateCustomerRequest, preferredBank string) (client.Response[client.DedicatedAccount], error)
	InitiateTransfer(ctx context.Context, req client.InitiateTransferRequest) (client.Response[client.Transfer], error)
	CreateTransferRecipient(ctx context.Context, req client.CreateTransferRecipientRequest) (client.Response[core.TransferRecipient], error)
	CreateDedicatedAccount(ctx context.Context, req client.CreateDedicatedAccountRequest) (client.Response[client.DedicatedAccount], error)
	DeactivateDedicatedAccount(ctx context.Context, req client.DeactivateDedicatedAccountRequest) (client.Response[client.DedicatedAccount], error)
	SplitDedicatedAccountTransaction(ctx context.Context, req client.SplitDedicatedAccountRequest) (client.Response[client.DedicatedAccount], error)
	RemoveSplitFromDedicatedAccount(ctx context.Context, accountNumber string) (client.Response[client.DedicatedAccount], error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type InitializeTransactionCommand struct {
	service MutatingService
}

func NewInitializeTransactionCommand(service MutatingService) *InitializeTransactionCommand {
	return &InitializeTransactionCommand{service: service}
}

func (c *InitializeTransactionCommand) Execute(ctx context.Context, msg InitializeTransactionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transaction service is required")
	}
	out, err := c.service.InitializeTransaction(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ChargeAuthorizationCommand struct {
	service MutatingService
}

func NewChargeAuthorizationCommand(service MutatingService) *ChargeAuthorizationCommand {
	return &ChargeAuthorizationCommand{service: service}
}

func (c *ChargeAuthorizationCommand) Execute(ctx context.Context, msg ChargeAuthorizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transaction service is required")
	}
	out, err := c.service.ChargeAuthorization(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateCustomerCommand struct {
	service MutatingService
}

func NewCreateCustomerCommand(service MutatingService) *CreateCustomerCommand {
	return &CreateCustomerCommand{service: service}
}

func (c *CreateCustomerCommand) Execute(ctx context.Context, msg CreateCustomerMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: customer service is required")
	}
	if msg.DedicatedAccount {
		out, err := c.service.CreateDedicatedAccountForCustomer(ctx, msg.Request, msg.PreferredBank)
		if err != nil {
			return err
		}
		storeResult(ctx, out)
		return nil
	}
	out, err := c.service.CreateCustomer(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type InitiateTransferCommand struct {
	service MutatingService
}

func NewInitiateTransferCommand(service MutatingService) *InitiateTransferCommand {
	return &InitiateTransferCommand{service: service}
}

func (c *InitiateTransferCommand) Execute(ctx context.Context, msg InitiateTransferMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transfer service is required")
	}
	out, err := c.service.InitiateTransfer(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateTransferRecipientCommand struct {
	service MutatingService
}

func NewCreateTransferRecipientCommand(service MutatingService) *CreateTransferRecipientCommand {
	return &CreateTransferRecipientCommand{service: service}
}

func (c *CreateTransferRecipientCommand) Execute(ctx context.Context, msg CreateTransferRecipientMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transfer service is required")
	}
	out, err := c.service.CreateTransferRecipient(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateDedicatedAccountCommand struct {
	service MutatingService
}

func NewCreateDedicatedAccountCommand(service MutatingService) *CreateDedicatedAccountCommand {
	return &CreateDedicatedAccountCommand{service: service}
}

func (c *CreateDedicatedAccountCommand) Execute(ctx context.Context, msg CreateDedicatedAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dedicated account service is required")
	}
	out, err := c.service.CreateDedicatedAccount(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeactivateDedicatedAccountCommand struct {
	service MutatingService
}

func NewDeactivateDedicatedAccountCommand(service MutatingService) *DeactivateDedicatedAccountCommand {
	return &DeactivateDedicatedAccountCommand{service: service}
}

func (c *DeactivateDedicatedAccountCommand) Execute(ctx context.Context, msg DeactivateDedicatedAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dedicated account service is required")
	}
	out, err := c.service.DeactivateDedicatedAccount(ctx, client.DeactivateDedicatedAccountRequest{
		AccountNumber: msg.AccountNumber,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SplitDedicatedAccountCommand struct {
	service MutatingService
}

func NewSplitDedicatedAccountCommand(service MutatingService) *SplitDedicatedAccountCommand {
	return &SplitDedicatedAccountCommand{service: service}
}

func (c *SplitDedicatedAccountCommand) Execute(ctx context.Context, msg SplitDedicatedAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dedicated account service is required")
	}
	out, err := c.service.SplitDedicatedAccountTransaction(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveDedicatedAccountSplitCommand struct {
	service MutatingService
}

func NewRemoveDedicatedAccountSplitCommand(service MutatingService) *RemoveDedicatedAccountSplitCommand {
	return &RemoveDedicatedAccountSplitCommand{service: service}
}

func (c *RemoveDedicatedAccountSplitCommand) Execute(ctx context.Context, msg RemoveDedicatedAccountSplitMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dedicated account service is required")
	}
	out, err := c.service.RemoveSplitFromDedicatedAccount(ctx, msg.AccountNumber)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// ProcessWebhookCommand runs a delivery through the webhook processor. The
// InboundResult is stored even when processing fails so callers can reply
// with its status code.
type ProcessWebhookCommand struct {
	processor WebhookProcessor
}

func NewProcessWebhookCommand(processor WebhookProcessor) *ProcessWebhookCommand {
	return &ProcessWebhookCommand{processor: processor}
}

func (c *ProcessWebhookCommand) Execute(ctx context.Context, msg ProcessWebhookMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: webhook processor is required")
	}
	out, err := c.processor.Process(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

var (
	_ gocmd.Commander[InitializeTransactionMessage]       = (*InitializeTransactionCommand)(nil)
	_ gocmd.Commander[ChargeAuthorizationMessage]         = (*ChargeAuthorizationCommand)(nil)
	_ gocmd.Commander[CreateCustomerMessage]              = (*CreateCustomerCommand)(nil)
	_ gocmd.Commander[InitiateTransferMessage]            = (*InitiateTransferCommand)(nil)
	_ gocmd.Commander[CreateTransferRecipientMessage]     = (*CreateTransferRecipientCommand)(nil)
	_ gocmd.Commander[CreateDedicatedAccountMessage]      = (*CreateDedicatedAccountCommand)(nil)
	_ gocmd.Commander[DeactivateDedicatedAccountMessage]  = (*DeactivateDedicatedAccountCommand)(nil)
	_ gocmd.Commander[SplitDedicatedAccountMessage]       = (*SplitDedicatedAccountCommand)(nil)
	_ gocmd.Commander[RemoveDedicatedAccountSplitMessage] = (*RemoveDedicatedAccountSplitCommand)(nil)
	_ gocmd.Commander[ProcessWebhookMessage]              = (*ProcessWebhookCommand)(nil)

	_ MutatingService = (*client.Client)(nil)
)
