package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL         = "https://api.paystack.co"
	DefaultSignatureHeader = "x-paystack-signature"
	DefaultUserAgent       = "go-paystack"

	TestSecretKeyPrefix = "sk_test_"
	LiveSecretKeyPrefix = "sk_live_"
)

// PaystackWebhookIPs are the source addresses Paystack documents for webhook
// deliveries.
var PaystackWebhookIPs = []string{
	"52.31.139.75",
	"52.49.173.169",
	"52.214.14.220",
}

type WebhookConfig struct {
	SignatureHeader   string   `koanf:"signature_header" mapstructure:"signature_header"`
	AllowedIPs        []string `koanf:"allowed_ips" mapstructure:"allowed_ips"`
	EnforceAllowedIPs bool     `koanf:"enforce_allowed_ips" mapstructure:"enforce_allowed_ips"`
	TrustForwardedFor bool     `koanf:"trust_forwarded_for" mapstructure:"trust_forwarded_for"`
	MaxBodyBytes      int64    `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
	DedupeTTLSeconds  int      `koanf:"dedupe_ttl_seconds" mapstructure:"dedupe_ttl_seconds"`
	MaxAttempts       int      `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type RateLimitConfig struct {
	InitialBackoffMS int `koanf:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `koanf:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

type CacheConfig struct {
	BanksTTLSeconds int `koanf:"banks_ttl_seconds" mapstructure:"banks_ttl_seconds"`
}

type Config struct {
	ServiceName    string          `koanf:"service_name" mapstructure:"service_name"`
	SecretKey      string          `koanf:"secret_key" mapstructure:"secret_key"`
	PublicKey      string          `koanf:"public_key" mapstructure:"public_key"`
	LiveMode       bool            `koanf:"live_mode" mapstructure:"live_mode"`
	WebhookSecret  string          `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	BaseURL        string          `koanf:"base_url" mapstructure:"base_url"`
	TimeoutSeconds int             `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	UserAgent      string          `koanf:"user_agent" mapstructure:"user_agent"`
	Webhook        WebhookConfig   `koanf:"webhook" mapstructure:"webhook"`
	RateLimit      RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
	Cache          CacheConfig     `koanf:"cache" mapstructure:"cache"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "paystack",
		BaseURL:        DefaultBaseURL,
		TimeoutSeconds: 30,
		UserAgent:      DefaultUserAgent,
		Webhook: WebhookConfig{
			SignatureHeader:  DefaultSignatureHeader,
			AllowedIPs:       append([]string(nil), PaystackWebhookIPs...),
			MaxBodyBytes:     1 << 20,
			DedupeTTLSeconds: 72 * 60 * 60,
			MaxAttempts:      8,
		},
		RateLimit: RateLimitConfig{
			InitialBackoffMS: 1000,
			MaxBackoffMS:     60000,
		},
		Cache: CacheConfig{
			BanksTTLSeconds: 3600,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	secret := strings.TrimSpace(c.SecretKey)
	if c.LiveMode && strings.HasPrefix(secret, TestSecretKeyPrefix) {
		return fmt.Errorf("core: live_mode is enabled but secret_key is a test key")
	}
	if !c.LiveMode && strings.HasPrefix(secret, LiveSecretKeyPrefix) {
		return fmt.Errorf("core: live_mode is disabled but secret_key is a live key")
	}
	if raw := strings.TrimSpace(c.BaseURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: base_url %q is invalid", raw)
		}
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("core: timeout_seconds must not be negative")
	}
	if c.Webhook.MaxBodyBytes < 0 || c.Webhook.DedupeTTLSeconds < 0 || c.Webhook.MaxAttempts < 0 {
		return fmt.Errorf("core: webhook limits must not be negative")
	}
	if c.RateLimit.InitialBackoffMS < 0 || c.RateLimit.MaxBackoffMS < 0 {
		return fmt.Errorf("core: rate_limit backoff must not be negative")
	}
	return nil
}

// ResolvedWebhookSecret returns the key used to sign webhook deliveries.
// Paystack signs with the account secret key unless a dedicated one is set.
func (c Config) ResolvedWebhookSecret() string {
	if secret := strings.TrimSpace(c.WebhookSecret); secret != "" {
		return secret
	}
	return strings.TrimSpace(c.SecretKey)
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) ResolvedBaseURL() string {
	if raw := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); raw != "" {
		return raw
	}
	return DefaultBaseURL
}

func (c Config) SignatureHeader() string {
	if header := strings.TrimSpace(c.Webhook.SignatureHeader); header != "" {
		return header
	}
	return DefaultSignatureHeader
}

func (c Config) DedupeTTL() time.Duration {
	if c.Webhook.DedupeTTLSeconds <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.Webhook.DedupeTTLSeconds) * time.Second
}
