package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-paystack/core"
	"github.com/goliatone/go-paystack/ratelimit"
	"github.com/goliatone/go-paystack/transport"
)

const ProviderID = "paystack"

// Client calls the Paystack REST API. It is safe for concurrent use.
type Client struct {
	transport  core.TransportAdapter
	rateLimit  core.RateLimitPolicy
	validate   *validator.Validate
	bankCache  repositorycache.CacheService
	telemetry  core.Telemetry
	httpClient transport.HTTPDoer
	logger     core.Logger
	metrics    core.MetricsRecorder
	timeout    time.Duration
	policySet  bool
}

type Option func(*Client)

// WithHTTPClient replaces the http.Client used by the default transport.
func WithHTTPClient(doer transport.HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithTransport replaces the transport entirely.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(c *Client) {
		c.transport = adapter
	}
}

// WithRateLimitPolicy replaces the in-memory adaptive policy. A nil policy
// disables client-side throttling.
func WithRateLimitPolicy(policy core.RateLimitPolicy) Option {
	return func(c *Client) {
		c.rateLimit = policy
		c.policySet = true
	}
}

// WithBankCache caches ListBanks results in the given cache service.
func WithBankCache(cacheService repositorycache.CacheService) Option {
	return func(c *Client) {
		c.bankCache = cacheService
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

func New(cfg core.Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, clientError("client: secret key is required", goerrors.CategoryBadInput, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, clientWrapError(err, goerrors.CategoryBadInput, "client: invalid config", nil)
	}

	c := &Client{
		validate: newValidator(),
		timeout:  cfg.Timeout(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.transport == nil {
		c.transport = transport.NewPaystackAdapter(cfg, c.httpClient)
	}
	if !c.policySet {
		c.rateLimit = ratelimit.NewPolicyFromConfig(cfg.RateLimit, ratelimit.NewMemoryStateStore())
	}
	c.telemetry = core.NewTelemetry(c.logger, c.metrics)
	return c, nil
}

// newValidator checks decimals by their float value so numeric tags such as
// gt=0 apply to amounts.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if amount, ok := field.Interface().(decimal.Decimal); ok {
			value, _ := amount.Float64()
			return value
		}
		return nil
	}, decimal.Decimal{})
	return v
}

type request struct {
	endpoint string
	method   string
	path     string
	query    map[string]string
	body     any
}

func call[T any](ctx context.Context, c *Client, req request) (res Response[T], err error) {
	if c == nil || c.transport == nil {
		return res, clientError("client: paystack client is not configured", goerrors.CategoryInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now().UTC()
	statusCode := 0
	defer func() {
		c.telemetry.Observe(ctx, startedAt, "api_call", err, map[string]any{
			"endpoint":    req.endpoint,
			"method":      req.method,
			"status_code": statusCode,
		})
	}()

	var payload []byte
	if req.body != nil {
		if err = c.validate.StructCtx(ctx, req.body); err != nil {
			return res, requestValidationError(req.endpoint, err)
		}
		payload, err = json.Marshal(req.body)
		if err != nil {
			return res, clientWrapError(err, goerrors.CategoryInternal, "client: encode request body", map[string]any{"endpoint": req.endpoint})
		}
	}

	key := core.RateLimitKey{ProviderID: ProviderID, BucketKey: ratelimit.BucketForPath(req.path)}
	if c.rateLimit != nil {
		if err = c.rateLimit.BeforeCall(ctx, key); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				err = throttled.ToServiceError()
			}
			return res, err
		}
	}

	response, err := c.transport.Do(ctx, core.TransportRequest{
		Method:   req.method,
		URL:      req.path,
		Query:    req.query,
		Body:     payload,
		Timeout:  c.timeout,
		Metadata: map[string]any{"endpoint": req.endpoint},
	})
	if err != nil {
		return res, err
	}
	statusCode = response.StatusCode

	if c.rateLimit != nil {
		if err = c.rateLimit.AfterCall(ctx, key, core.ProviderResponseMeta{
			StatusCode: response.StatusCode,
			Headers:    response.Headers,
			Metadata:   map[string]any{"endpoint": req.endpoint},
		}); err != nil {
			return res, err
		}
	}

	decodeErr := decodeResponse(response.Body, &res)
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		message := res.Message
		if decodeErr != nil {
			message = ""
		}
		err = providerError(req.endpoint, response.StatusCode, message)
		return res, err
	}
	if decodeErr != nil {
		err = clientWrapError(decodeErr, goerrors.CategoryExternal, "client: decode paystack response", map[string]any{
			"endpoint":        req.endpoint,
			"provider_status": response.StatusCode,
		})
		return res, err
	}
	if !res.Status {
		err = providerError(req.endpoint, response.StatusCode, res.Message)
		return res, err
	}
	return res, nil
}

func decodeResponse[T any](body []byte, out *Response[T]) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(body, out)
}
