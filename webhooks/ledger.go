package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// DeliveryRecord is the ledger entry for one delivery key. Payloads are
// never stored.
type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryKey   string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger tracks which deliveries were processed.
//
// Claim returns claimed=false with the current record when the key is
// processed, dead, in flight under a live lease, or waiting for its retry
// time. Complete and Fail ignore claim ids that are unknown or superseded.
type DeliveryLedger interface {
	Claim(ctx context.Context, providerID string, key string, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, key string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type ledgerEntry struct {
	record         DeliveryRecord
	leaseExpiresAt time.Time
	expiresAt      time.Time
}

// InMemoryLedger is a process-local DeliveryLedger. Processed and dead
// entries are evicted after TTL.
type InMemoryLedger struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]*ledgerEntry
	claims  map[string]string
	nextID  int
}

func NewInMemoryLedger(ttl time.Duration) *InMemoryLedger {
	return &InMemoryLedger{
		TTL:     ttl,
		entries: map[string]*ledgerEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *InMemoryLedger) Claim(
	_ context.Context,
	providerID string,
	key string,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, ledgerError(nil, "webhooks: delivery ledger is nil", nil)
	}
	providerID = strings.TrimSpace(providerID)
	key = strings.TrimSpace(key)
	if providerID == "" || key == "" {
		return DeliveryRecord{}, false, invalidDeliveryError("webhooks: provider id and delivery key are required", nil)
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.init()
	l.evictExpiredLocked(now)

	ledgerKey := providerID + ":" + key
	entry, exists := l.entries[ledgerKey]
	if !exists {
		l.nextID++
		entry = &ledgerEntry{record: DeliveryRecord{
			ID:          fmt.Sprintf("delivery_%d", l.nextID),
			ProviderID:  providerID,
			DeliveryKey: key,
			CreatedAt:   now,
		}}
		l.entries[ledgerKey] = entry
	} else {
		switch entry.record.Status {
		case DeliveryStatusProcessed, DeliveryStatusDead:
			return entry.record, false, nil
		case DeliveryStatusProcessing:
			if now.Before(entry.leaseExpiresAt) {
				return entry.record, false, nil
			}
		case DeliveryStatusRetryReady:
			if entry.record.NextAttemptAt != nil && now.Before(*entry.record.NextAttemptAt) {
				return entry.record, false, nil
			}
		}
		if entry.record.ClaimID != "" {
			delete(l.claims, entry.record.ClaimID)
		}
	}

	l.nextID++
	claimID := fmt.Sprintf("claim_%d", l.nextID)
	entry.record.ClaimID = claimID
	entry.record.Status = DeliveryStatusProcessing
	entry.record.Attempts++
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = now
	entry.leaseExpiresAt = now.Add(lease)
	entry.expiresAt = time.Time{}
	l.claims[claimID] = ledgerKey
	return entry.record, true, nil
}

func (l *InMemoryLedger) Get(_ context.Context, providerID string, key string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, ledgerError(nil, "webhooks: delivery ledger is nil", nil)
	}
	providerID = strings.TrimSpace(providerID)
	key = strings.TrimSpace(key)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.init()
	entry, ok := l.entries[providerID+":"+key]
	if !ok {
		return DeliveryRecord{}, DeliveryNotFoundError(providerID, key)
	}
	return entry.record, nil
}

func (l *InMemoryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return ledgerError(nil, "webhooks: delivery ledger is nil", nil)
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.claimedEntryLocked(claimID)
	if entry == nil {
		return nil
	}
	entry.record.Status = DeliveryStatusProcessed
	entry.record.LastError = ""
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = now
	entry.leaseExpiresAt = time.Time{}
	entry.expiresAt = l.expiry(now)
	return nil
}

func (l *InMemoryLedger) Fail(
	_ context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return ledgerError(nil, "webhooks: delivery ledger is nil", nil)
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.claimedEntryLocked(claimID)
	if entry == nil {
		return nil
	}
	if cause != nil {
		entry.record.LastError = cause.Error()
	}
	entry.record.UpdatedAt = now
	entry.leaseExpiresAt = time.Time{}
	if maxAttempts > 0 && entry.record.Attempts >= maxAttempts {
		entry.record.Status = DeliveryStatusDead
		entry.record.NextAttemptAt = nil
		entry.expiresAt = l.expiry(now)
		return nil
	}
	if nextAttemptAt.IsZero() {
		nextAttemptAt = now
	}
	retryAt := nextAttemptAt.UTC()
	entry.record.Status = DeliveryStatusRetryReady
	entry.record.NextAttemptAt = &retryAt
	return nil
}

// claimedEntryLocked releases claimID and returns its entry when the claim is
// still the current one.
func (l *InMemoryLedger) claimedEntryLocked(claimID string) *ledgerEntry {
	l.init()
	claimID = strings.TrimSpace(claimID)
	ledgerKey, ok := l.claims[claimID]
	if !ok {
		return nil
	}
	delete(l.claims, claimID)
	entry, exists := l.entries[ledgerKey]
	if !exists || entry.record.ClaimID != claimID || entry.record.Status != DeliveryStatusProcessing {
		return nil
	}
	entry.record.ClaimID = ""
	return entry
}

func (l *InMemoryLedger) evictExpiredLocked(now time.Time) {
	for ledgerKey, entry := range l.entries {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			continue
		}
		delete(l.entries, ledgerKey)
	}
}

func (l *InMemoryLedger) expiry(now time.Time) time.Time {
	if l.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(l.TTL)
}

func (l *InMemoryLedger) init() {
	if l.entries == nil {
		l.entries = map[string]*ledgerEntry{}
	}
	if l.claims == nil {
		l.claims = map[string]string{}
	}
}

func (l *InMemoryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

var _ DeliveryLedger = (*InMemoryLedger)(nil)
