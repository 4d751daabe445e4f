package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	paystackcommand "github.com/goliatone/go-paystack/command"
	paystackquery "github.com/goliatone/go-paystack/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler command.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func SubscribeQueryFunc[T any, R any](qry command.QueryFunc[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Reader is the read side of the Paystack client used by the query handlers.
type Reader interface {
	paystackquery.TransactionReader
	paystackquery.CustomerReader
	paystackquery.BankReader
	paystackquery.DedicatedAccountReader
}

// Subscriptions holds dispatcher subscriptions created together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterPaystack registers and subscribes every Paystack command and
// query. A nil service, reader or processor skips the handlers that need it.
// On error the subscriptions created so far are released.
func RegisterPaystack(
	adapter *RegistryAdapter,
	service paystackcommand.MutatingService,
	reader Reader,
	processor paystackcommand.WebhookProcessor,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	var subs Subscriptions
	steps := make([]func() (commanddispatcher.Subscription, error), 0, 16)
	if service != nil {
		steps = append(steps,
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.InitializeTransactionMessage](adapter, paystackcommand.NewInitializeTransactionCommand(service), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.ChargeAuthorizationMessage](adapter, paystackcommand.NewChargeAuthorizationCommand(service), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.CreateCustomerMessage](adapter, paystackcommand.NewCreateCustomerCommand(service), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.InitiateTransferMessage](adapter, paystackcommand.NewInitiateTransferCommand(service), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.CreateTransferRecipientMessage](adapter, paystackcommand.NewCreateTransferRecipientCommand(service), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.CreateDedicatedAccountMessage](adapter, paystackcommand.NewCreateDedicatedAccountCommand(service), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.DeactivateDedicatedAccountMessage](adapter, paystackcommand.NewDeactivateDedicatedAccountCommand(service), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.SplitDedicatedAccountMessage](adapter, paystackcommand.NewSplitDedicatedAccountCommand(service), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe[paystackcommand.RemoveDedicatedAccountSplitMessage](adapter, paystackcommand.NewRemoveDedicatedAccountSplitCommand(service), runnerOpts...)
			},
		)
	}
	if processor != nil {
		steps = append(steps, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[paystackcommand.ProcessWebhookMessage](adapter, paystackcommand.NewProcessWebhookCommand(processor), runnerOpts...)
		})
	}
	if reader != nil {
		steps = append(steps,
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, paystackquery.NewVerifyTransactionQuery(reader), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, paystackquery.NewGetCustomerQuery(reader), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, paystackquery.NewListBanksQuery(reader), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, paystackquery.NewResolveAccountQuery(reader), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, paystackquery.NewListDedicatedAccountsQuery(reader), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, paystackquery.NewGetDedicatedAccountQuery(reader), runnerOpts...)
			},
		)
	}
	for _, step := range steps {
		subscription, err := step()
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, subscription)
	}
	return subs, nil
}
