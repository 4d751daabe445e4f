package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/goliatone/go-paystack/core"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Handler receives Paystack webhook deliveries over HTTP and hands the raw
// body to an InboundHandler, normally a *webhooks.Processor.
type Handler struct {
	processor         core.InboundHandler
	providerID        string
	maxBodyBytes      int64
	allowed           []netip.Prefix
	enforceAllowedIPs bool
	trustForwardedFor bool
	telemetry         core.Telemetry
	logger            core.Logger
	metrics           core.MetricsRecorder
}

type Option func(*Handler)

func WithProviderID(providerID string) Option {
	return func(h *Handler) {
		if providerID = strings.TrimSpace(providerID); providerID != "" {
			h.providerID = providerID
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// NewHandler builds a receiver from the webhook config block. Allowed IPs
// may be plain addresses or CIDR ranges; entries that parse as neither are
// ignored.
func NewHandler(processor core.InboundHandler, cfg core.WebhookConfig, opts ...Option) *Handler {
	h := &Handler{
		processor:         processor,
		providerID:        "paystack",
		maxBodyBytes:      cfg.MaxBodyBytes,
		allowed:           parseAllowed(cfg.AllowedIPs),
		enforceAllowedIPs: cfg.EnforceAllowedIPs,
		trustForwardedFor: cfg.TrustForwardedFor,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = defaultMaxBodyBytes
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.telemetry = core.NewTelemetry(h.logger, h.metrics)
	return h
}

type response struct {
	Accepted bool   `json:"accepted"`
	Deduped  bool   `json:"deduped,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startedAt := time.Now().UTC()
	remote := h.sourceAddress(r)
	fields := map[string]any{"remote_addr": remote}

	result, stage, err := h.receive(ctx, r, remote)
	fields["stage"] = stage
	fields["status_code"] = result.StatusCode
	if event, ok := result.Metadata["event"]; ok {
		fields["event"] = event
	}
	h.telemetry.Observe(ctx, startedAt, "webhook_receive", err, fields)

	if stage == "method" {
		w.Header().Set("Allow", http.MethodPost)
	}
	body := response{Accepted: result.Accepted}
	if deduped, _ := result.Metadata["deduped"].(bool); deduped {
		body.Deduped = true
	}
	if err != nil && !result.Accepted {
		mapped := core.MapError(err)
		body.Error = mapped.Message
		body.Code = mapped.TextCode
	}
	writeJSON(w, result.StatusCode, body)
}

func (h *Handler) receive(ctx context.Context, r *http.Request, remote string) (core.InboundResult, string, error) {
	if h == nil || h.processor == nil {
		return rejected(http.StatusInternalServerError), "setup", processorMissing()
	}
	if r.Method != http.MethodPost {
		return rejected(http.StatusMethodNotAllowed), "method", methodNotAllowed(r.Method)
	}
	if h.enforceAllowedIPs && !h.isAllowed(remote) {
		return rejected(http.StatusForbidden), "source", forbiddenSource(remote)
	}

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return rejected(http.StatusRequestEntityTooLarge), "body", bodyTooLarge(h.maxBodyBytes)
		}
		return rejected(http.StatusBadRequest), "body", readBodyError(err)
	}

	result, err := h.processor.Handle(ctx, core.InboundRequest{
		ProviderID: h.providerID,
		RemoteAddr: remote,
		Headers:    flattenHeaders(r.Header),
		Body:       body,
		Metadata: map[string]any{
			"path":       r.URL.Path,
			"user_agent": r.UserAgent(),
		},
	})
	if result.StatusCode == 0 {
		result.StatusCode = http.StatusOK
		if err != nil {
			result.StatusCode = core.MapError(err).Code
		}
	}
	return result, "process", err
}

func (h *Handler) sourceAddress(r *http.Request) string {
	if h != nil && h.trustForwardedFor {
		if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (h *Handler) isAllowed(address string) bool {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range h.allowed {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func parseAllowed(entries []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}

// flattenHeaders keeps the first value of each header under its lowercase name.
func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		out[strings.ToLower(key)] = values[0]
	}
	return out
}

func rejected(status int) core.InboundResult {
	return core.InboundResult{Accepted: false, StatusCode: status}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
