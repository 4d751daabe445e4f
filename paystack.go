package paystack

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-paystack/adapters/gologger"
	"github.com/goliatone/go-paystack/client"
	paystackcommand "github.com/goliatone/go-paystack/command"
	"github.com/goliatone/go-paystack/core"
	"github.com/goliatone/go-paystack/inbound"
	paystackquery "github.com/goliatone/go-paystack/query"
	"github.com/goliatone/go-paystack/ratelimit"
	"github.com/goliatone/go-paystack/transport"
	"github.com/goliatone/go-paystack/webhooks"
)

type Config = core.Config

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type Commands struct {
	InitializeTransaction       *paystackcommand.InitializeTransactionCommand
	ChargeAuthorization         *paystackcommand.ChargeAuthorizationCommand
	CreateCustomer              *paystackcommand.CreateCustomerCommand
	InitiateTransfer            *paystackcommand.InitiateTransferCommand
	CreateTransferRecipient     *paystackcommand.CreateTransferRecipientCommand
	CreateDedicatedAccount      *paystackcommand.CreateDedicatedAccountCommand
	DeactivateDedicatedAccount  *paystackcommand.DeactivateDedicatedAccountCommand
	SplitDedicatedAccount       *paystackcommand.SplitDedicatedAccountCommand
	RemoveDedicatedAccountSplit *paystackcommand.RemoveDedicatedAccountSplitCommand
	ProcessWebhook              *paystackcommand.ProcessWebhookCommand
}

type Queries struct {
	VerifyTransaction     *paystackquery.VerifyTransactionQuery
	GetCustomer           *paystackquery.GetCustomerQuery
	ListBanks             *paystackquery.ListBanksQuery
	ResolveAccount        *paystackquery.ResolveAccountQuery
	ListDedicatedAccounts *paystackquery.ListDedicatedAccountsQuery
	GetDedicatedAccount   *paystackquery.GetDedicatedAccountQuery
}

type Option func(*options)

type options struct {
	runtime        Config
	provider       core.ConfigProvider
	resolver       core.OptionsResolver
	loggerProvider core.LoggerProvider
	logger         core.Logger
	metrics        core.MetricsRecorder
	ledger         webhooks.DeliveryLedger
	rateLimitStore ratelimit.StateStore
	bankCache      repositorycache.CacheService
	httpClient     transport.HTTPDoer
	handlers       []webhooks.Handler
}

// WithConfig sets runtime overrides applied on top of loaded config.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.runtime = cfg
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *options) {
		o.resolver = resolver
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *options) {
		o.loggerProvider = provider
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithDeliveryLedger replaces the in-memory ledger, e.g. with the SQL store
// from store/sql.
func WithDeliveryLedger(ledger webhooks.DeliveryLedger) Option {
	return func(o *options) {
		o.ledger = ledger
	}
}

func WithRateLimitStateStore(store ratelimit.StateStore) Option {
	return func(o *options) {
		o.rateLimitStore = store
	}
}

func WithBankCache(cacheService repositorycache.CacheService) Option {
	return func(o *options) {
		o.bankCache = cacheService
	}
}

func WithHTTPClient(doer transport.HTTPDoer) Option {
	return func(o *options) {
		o.httpClient = doer
	}
}

// WithWebhookHandlers registers generic handlers while the service is built.
func WithWebhookHandlers(handlers ...webhooks.Handler) Option {
	return func(o *options) {
		o.handlers = append(o.handlers, handlers...)
	}
}

// Service wires the Paystack client and the webhook pipeline from one
// config.
type Service struct {
	config         Config
	loggerProvider core.LoggerProvider
	logger         core.Logger
	client         *client.Client
	registry       *webhooks.Registry
	dispatcher     *webhooks.Dispatcher
	processor      *webhooks.Processor
	handler        *inbound.Handler
	commands       Commands
	queries        Queries
}

func New(ctx context.Context, opts ...Option) (*Service, error) {
	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	config, err := core.LoadConfig(ctx, cfg.runtime, cfg.provider, cfg.resolver)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	loggerProvider, logger := gologger.Resolve(config.ServiceName, cfg.loggerProvider, cfg.logger)

	stateStore := cfg.rateLimitStore
	if stateStore == nil {
		stateStore = ratelimit.NewMemoryStateStore()
	}
	bankCache := cfg.bankCache
	if bankCache == nil && config.Cache.BanksTTLSeconds > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = time.Duration(config.Cache.BanksTTLSeconds) * time.Second
		bankCache, err = repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return nil, fmt.Errorf("paystack: bank cache: %w", err)
		}
	}

	clientOpts := []client.Option{
		client.WithRateLimitPolicy(ratelimit.NewPolicyFromConfig(config.RateLimit, stateStore)),
		client.WithLogger(gologger.ForComponent(loggerProvider, "client")),
		client.WithMetricsRecorder(cfg.metrics),
	}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(cfg.httpClient))
	}
	if bankCache != nil {
		clientOpts = append(clientOpts, client.WithBankCache(bankCache))
	}
	apiClient, err := client.New(config, clientOpts...)
	if err != nil {
		return nil, err
	}

	registry := webhooks.NewRegistry()
	for _, handler := range cfg.handlers {
		if err := registry.Register(handler); err != nil {
			return nil, err
		}
	}
	webhookLogger := gologger.ForComponent(loggerProvider, "webhooks")
	dispatcher := webhooks.NewDispatcher(registry,
		webhooks.WithLogger(webhookLogger),
		webhooks.WithMetricsRecorder(cfg.metrics),
	)

	verifier := webhooks.NewSignatureVerifier(config.ResolvedWebhookSecret())
	verifier.Header = config.SignatureHeader()
	ledger := cfg.ledger
	if ledger == nil {
		ledger = webhooks.NewInMemoryLedger(config.DedupeTTL())
	}
	processor := webhooks.NewProcessor(verifier, ledger, dispatcher)
	if config.Webhook.MaxAttempts > 0 {
		processor.MaxAttempts = config.Webhook.MaxAttempts
	}

	handler := inbound.NewHandler(processor, config.Webhook,
		inbound.WithProviderID(client.ProviderID),
		inbound.WithLogger(gologger.ForComponent(loggerProvider, "inbound")),
		inbound.WithMetricsRecorder(cfg.metrics),
	)

	return &Service{
		config:         config,
		loggerProvider: loggerProvider,
		logger:         logger,
		client:         apiClient,
		registry:       registry,
		dispatcher:     dispatcher,
		processor:      processor,
		handler:        handler,
		commands:       newCommands(apiClient, processor),
		queries:        newQueries(apiClient),
	}, nil
}

func newCommands(service paystackcommand.MutatingService, processor paystackcommand.WebhookProcessor) Commands {
	return Commands{
		InitializeTransaction:       paystackcommand.NewInitializeTransactionCommand(service),
		ChargeAuthorization:         paystackcommand.NewChargeAuthorizationCommand(service),
		CreateCustomer:              paystackcommand.NewCreateCustomerCommand(service),
		InitiateTransfer:            paystackcommand.NewInitiateTransferCommand(service),
		CreateTransferRecipient:     paystackcommand.NewCreateTransferRecipientCommand(service),
		CreateDedicatedAccount:      paystackcommand.NewCreateDedicatedAccountCommand(service),
		DeactivateDedicatedAccount:  paystackcommand.NewDeactivateDedicatedAccountCommand(service),
		SplitDedicatedAccount:       paystackcommand.NewSplitDedicatedAccountCommand(service),
		RemoveDedicatedAccountSplit: paystackcommand.NewRemoveDedicatedAccountSplitCommand(service),
		ProcessWebhook:              paystackcommand.NewProcessWebhookCommand(processor),
	}
}

func newQueries(reader *client.Client) Queries {
	return Queries{
		VerifyTransaction:     paystackquery.NewVerifyTransactionQuery(reader),
		GetCustomer:           paystackquery.NewGetCustomerQuery(reader),
		ListBanks:             paystackquery.NewListBanksQuery(reader),
		ResolveAccount:        paystackquery.NewResolveAccountQuery(reader),
		ListDedicatedAccounts: paystackquery.NewListDedicatedAccountsQuery(reader),
		GetDedicatedAccount:   paystackquery.NewGetDedicatedAccountQuery(reader),
	}
}

func (s *Service) Config() Config                   { return s.config }
func (s *Service) Client() *client.Client           { return s.client }
func (s *Service) Registry() *webhooks.Registry     { return s.registry }
func (s *Service) Dispatcher() *webhooks.Dispatcher { return s.dispatcher }
func (s *Service) Processor() *webhooks.Processor   { return s.processor }
func (s *Service) Commands() Commands               { return s.commands }
func (s *Service) Queries() Queries                 { return s.queries }
func (s *Service) Logger() core.Logger              { return s.logger }

// HTTPHandler receives webhook deliveries; mount it on the route configured
// in the Paystack dashboard.
func (s *Service) HTTPHandler() http.Handler {
	return s.handler
}

// JobLoggerProvider bridges the service logger to go-job workers.
func (s *Service) JobLoggerProvider() job.LoggerProvider {
	return gologger.ToJobProvider(s.loggerProvider)
}

// RegisterHandler adds a generic webhook handler. Handlers registered after
// deliveries started are seen by later deliveries only.
func (s *Service) RegisterHandler(handler webhooks.Handler) error {
	return s.registry.Register(handler)
}

func (s *Service) RegisterHandlerFunc(eventType string, fn webhooks.HandlerFunc) error {
	return s.registry.Register(webhooks.NewHandler(strings.TrimSpace(eventType), fn))
}

// RegisterTypedHandler adds a handler whose payload is decoded into T. Typed
// handlers cannot use the wildcard event.
func RegisterTypedHandler[T any](s *Service, handler webhooks.TypedHandler[T]) error {
	if s == nil {
		return fmt.Errorf("paystack: service is required")
	}
	return webhooks.RegisterTyped(s.registry, handler)
}

// Dispatch verifies payload against the configured webhook secret and fans it
// out to the generic handlers.
func (s *Service) Dispatch(ctx context.Context, payload []byte, signature string) bool {
	return s.dispatcher.Dispatch(ctx, webhooks.Delivery{
		Payload:   payload,
		Signature: signature,
		Secret:    s.config.ResolvedWebhookSecret(),
	})
}

// DispatchTyped is Dispatch for typed handlers of T.
func DispatchTyped[T any](ctx context.Context, s *Service, payload []byte, signature string) bool {
	if s == nil {
		return false
	}
	return webhooks.DispatchTyped[T](ctx, s.dispatcher, webhooks.Delivery{
		Payload:   payload,
		Signature: signature,
		Secret:    s.config.ResolvedWebhookSecret(),
	})
}
