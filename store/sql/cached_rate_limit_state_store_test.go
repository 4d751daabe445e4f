package sqlstore

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-paystack/core"
	"github.com/goliatone/go-paystack/ratelimit"
)

type stubRateLimitStateStore struct {
	mu          sync.Mutex
	states      map[core.RateLimitKey]ratelimit.State
	getCalls    int
	upsertCalls int
	getErr      error
}

func (s *stubRateLimitStateStore) Get(_ context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return ratelimit.State{}, s.getErr
	}
	state, ok := s.states[key]
	if !ok {
		return ratelimit.State{}, ratelimit.ErrStateNotFound
	}
	return cloneRateLimitState(state), nil
}

func (s *stubRateLimitStateStore) Upsert(_ context.Context, state ratelimit.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.states == nil {
		s.states = map[core.RateLimitKey]ratelimit.State{}
	}
	s.states[state.Key] = cloneRateLimitState(state)
	return nil
}

var transferBucket = core.RateLimitKey{ProviderID: "paystack", BucketKey: "transfer"}

func TestCachedRateLimitStateStore_SecondReadIsCacheHit(t *testing.T) {
	base := &stubRateLimitStateStore{states: map[core.RateLimitKey]ratelimit.State{
		transferBucket: {Key: transferBucket, Limit: 100, Remaining: 99, UpdatedAt: time.Now().UTC()},
	}}
	store, err := NewCachedRateLimitStateStore(base, newTestRateLimitCacheService(t))
	if err != nil {
		t.Fatalf("new cached state store: %v", err)
	}

	for i := 0; i < 2; i++ {
		state, err := store.Get(context.Background(), transferBucket)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if state.Remaining != 99 {
			t.Fatalf("expected remaining 99, got %d", state.Remaining)
		}
	}
	if base.getCalls != 1 {
		t.Fatalf("expected one base read, got %d", base.getCalls)
	}
}

func TestCachedRateLimitStateStore_UpsertEvictsEntry(t *testing.T) {
	base := &stubRateLimitStateStore{states: map[core.RateLimitKey]ratelimit.State{
		transferBucket: {Key: transferBucket, Limit: 100, Remaining: 99},
	}}
	store, err := NewCachedRateLimitStateStore(base, newTestRateLimitCacheService(t))
	if err != nil {
		t.Fatalf("new cached state store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, transferBucket); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Upsert(ctx, ratelimit.State{Key: transferBucket, Limit: 100, Remaining: 10}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	state, err := store.Get(ctx, transferBucket)
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if base.getCalls != 2 || state.Remaining != 10 {
		t.Fatalf("expected fresh read with remaining 10, got calls=%d remaining=%d", base.getCalls, state.Remaining)
	}
}

func TestCachedRateLimitStateStore_PropagatesMissingState(t *testing.T) {
	base := &stubRateLimitStateStore{}
	store, err := NewCachedRateLimitStateStore(base, newTestRateLimitCacheService(t))
	if err != nil {
		t.Fatalf("new cached state store: %v", err)
	}
	if _, err := store.Get(context.Background(), transferBucket); !errors.Is(err, ratelimit.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
}

func TestCachedRateLimitStateStore_BacksAdaptivePolicy(t *testing.T) {
	base := &stubRateLimitStateStore{}
	store, err := NewCachedRateLimitStateStore(base, newTestRateLimitCacheService(t))
	if err != nil {
		t.Fatalf("new cached state store: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := ratelimit.NewAdaptivePolicy(store)
	policy.Now = func() time.Time { return now }
	ctx := context.Background()

	if err := policy.BeforeCall(ctx, transferBucket); err != nil {
		t.Fatalf("expected open bucket before any response, got %v", err)
	}
	if err := policy.AfterCall(ctx, transferBucket, core.ProviderResponseMeta{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "5"},
	}); err != nil {
		t.Fatalf("after call: %v", err)
	}

	err = policy.BeforeCall(ctx, transferBucket)
	var throttled ratelimit.ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error from cached state, got %v", err)
	}
	if throttled.BucketKey != "transfer" {
		t.Fatalf("unexpected bucket %q", throttled.BucketKey)
	}
}

func TestRateLimitStateCacheKey_Format(t *testing.T) {
	key, err := RateLimitStateCacheKey(core.RateLimitKey{ProviderID: " Paystack ", BucketKey: " Dedicated Account "})
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}
	const expected = "go-paystack::ratelimit_state::v1::paystack::dedicated%20account"
	if key != expected {
		t.Fatalf("unexpected cache key: got %q want %q", key, expected)
	}

	if _, err := RateLimitStateCacheKey(core.RateLimitKey{ProviderID: "paystack"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func newTestRateLimitCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
