package paystack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-paystack/core"
	paystackquery "github.com/goliatone/go-paystack/query"
	"github.com/goliatone/go-paystack/webhooks"
)

const (
	testSecretKey = "sk_test_facade"
	chargePayload = `{"event":"charge.success","data":{"id":302961,"status":"success","reference":"qTPrJoy9Bx","amount":10000,"currency":"NGN","created_at":"2026-03-01T12:00:00.000Z"}}`
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithConfig(Config{SecretKey: testSecretKey})}, opts...)
	svc, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNew_RequiresSecretKey(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatalf("expected missing secret key to fail")
	}
}

func TestNew_WiresCommandsAndQueries(t *testing.T) {
	svc := newTestService(t)

	commands := svc.Commands()
	if commands.InitializeTransaction == nil || commands.ProcessWebhook == nil || commands.RemoveDedicatedAccountSplit == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := svc.Queries()
	if queries.VerifyTransaction == nil || queries.GetDedicatedAccount == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if svc.Client() == nil || svc.Processor() == nil || svc.Dispatcher().Registry() != svc.Registry() {
		t.Fatalf("expected client and webhook pipeline to be wired")
	}
	if svc.Logger() == nil || svc.JobLoggerProvider() == nil {
		t.Fatalf("expected resolved loggers")
	}
	if svc.Processor().MaxAttempts != svc.Config().Webhook.MaxAttempts {
		t.Fatalf("expected processor attempts from config, got %d", svc.Processor().MaxAttempts)
	}
}

func TestService_DispatchUsesSecretKeyWhenNoWebhookSecret(t *testing.T) {
	svc := newTestService(t)
	var calls atomic.Int32
	if err := svc.RegisterHandlerFunc(webhooks.EventChargeSuccess, func(context.Context, webhooks.Envelope) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	signature := webhooks.ComputeSignature([]byte(chargePayload), testSecretKey)
	if !svc.Dispatch(context.Background(), []byte(chargePayload), signature) {
		t.Fatalf("expected dispatch to succeed")
	}
	if svc.Dispatch(context.Background(), []byte(chargePayload), webhooks.ComputeSignature([]byte(chargePayload), "other")) {
		t.Fatalf("expected dispatch with foreign signature to fail")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one handler call, got %d", calls.Load())
	}
}

func TestService_TypedHandlers(t *testing.T) {
	svc := newTestService(t)

	if err := RegisterTypedHandler[webhooks.ChargeSuccessEvent](svc, webhooks.NewTypedHandler(webhooks.WildcardEvent,
		func(context.Context, webhooks.TypedEnvelope[webhooks.ChargeSuccessEvent]) error { return nil },
	)); err == nil {
		t.Fatalf("expected typed wildcard registration to fail")
	}

	var reference string
	if err := RegisterTypedHandler(svc, webhooks.NewTypedHandler(webhooks.EventChargeSuccess,
		func(_ context.Context, envelope webhooks.TypedEnvelope[webhooks.ChargeSuccessEvent]) error {
			reference = envelope.Data.Reference
			return nil
		},
	)); err != nil {
		t.Fatalf("register typed handler: %v", err)
	}

	signature := webhooks.ComputeSignature([]byte(chargePayload), testSecretKey)
	if !DispatchTyped[webhooks.ChargeSuccessEvent](context.Background(), svc, []byte(chargePayload), signature) {
		t.Fatalf("expected typed dispatch to succeed")
	}
	if reference != "qTPrJoy9Bx" {
		t.Fatalf("expected typed payload reference, got %q", reference)
	}
}

func TestService_HTTPHandlerProcessesDeliveries(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t,
		WithConfig(Config{SecretKey: testSecretKey, WebhookSecret: "whsec_facade"}),
		WithWebhookHandlers(webhooks.NewHandler(webhooks.WildcardEvent, func(context.Context, webhooks.Envelope) error {
			calls.Add(1)
			return nil
		})),
	)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(chargePayload))
		req.Header.Set("X-Paystack-Signature", webhooks.ComputeSignature([]byte(chargePayload), "whsec_facade"))
		rec := httptest.NewRecorder()
		svc.HTTPHandler().ServeHTTP(rec, req)
		return rec
	}

	if rec := post(); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := post(); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"deduped":true`) {
		t.Fatalf("expected deduped redelivery, got %d (%s)", rec.Code, rec.Body.String())
	}
	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once, got %d", calls.Load())
	}
}

func TestService_QueriesReachPaystackAPI(t *testing.T) {
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		if r.URL.Path != "/transaction/verify/qTPrJoy9Bx" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"reference":"qTPrJoy9Bx","amount":10000,"status":"success"}}`))
	}))
	defer server.Close()

	svc := newTestService(t, WithConfig(Config{SecretKey: testSecretKey, BaseURL: server.URL}))
	res, err := svc.Queries().VerifyTransaction.Query(context.Background(), paystackquery.VerifyTransactionMessage{Reference: "qTPrJoy9Bx"})
	if err != nil {
		t.Fatalf("verify transaction: %v", err)
	}
	if res.Data.Status != "success" {
		t.Fatalf("unexpected transaction %+v", res.Data)
	}
	if authorization != "Bearer "+testSecretKey {
		t.Fatalf("expected bearer auth, got %q", authorization)
	}
}

func TestService_ConfigProviderLayer(t *testing.T) {
	provider := core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: map[string]any{
		"secret_key": "sk_test_from_config",
		"webhook": map[string]any{
			"max_attempts": 3,
		},
	}})
	svc, err := New(context.Background(), WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Config().SecretKey != "sk_test_from_config" {
		t.Fatalf("expected config layer secret, got %q", svc.Config().SecretKey)
	}
	if svc.Processor().MaxAttempts != 3 {
		t.Fatalf("expected processor attempts from config layer, got %d", svc.Processor().MaxAttempts)
	}
}
