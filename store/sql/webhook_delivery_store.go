package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-paystack/webhooks"
)

const (
	defaultDeliveryLease = 30 * time.Second
	maxClaimRetries      = 3
)

// WebhookDeliveryStore is a DeliveryLedger backed by the
// paystack_webhook_deliveries table. Processed and dead rows are treated as
// absent once expires_at has passed.
type WebhookDeliveryStore struct {
	TTL time.Duration
	Now func() time.Time

	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
}

func NewWebhookDeliveryStore(db *bun.DB, ttl time.Duration) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		TTL:  ttl,
		db:   db,
		repo: repo,
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	key string,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	key = strings.TrimSpace(key)
	if providerID == "" || key == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: provider id and delivery key are required")
	}
	if lease <= 0 {
		lease = defaultDeliveryLease
	}

	var lastErr error
	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		record, claimed, err := s.claimOnce(ctx, providerID, key, lease)
		if err == nil {
			return record, claimed, nil
		}
		if !isUniqueViolation(err) {
			return webhooks.DeliveryRecord{}, false, err
		}
		lastErr = err
	}
	return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: claim delivery %q: %w", key, lastErr)
}

func (s *WebhookDeliveryStore) claimOnce(
	ctx context.Context,
	providerID string,
	key string,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	now := s.now()
	var (
		result  webhooks.DeliveryRecord
		claimed bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findDeliveryTx(ctx, tx, providerID, key)
		if err != nil {
			return err
		}

		if record == nil {
			record = &webhookDeliveryRecord{
				ID:          uuid.NewString(),
				ProviderID:  providerID,
				DeliveryKey: key,
				CreatedAt:   now,
			}
			startClaim(record, now, lease)
			if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
				return err
			}
			result, claimed = webhookDeliveryToDomain(record), true
			return nil
		}

		if record.ExpiresAt != nil && !now.Before(*record.ExpiresAt) {
			record.Attempts = 0
			record.LastError = ""
			record.CreatedAt = now
		} else if busy(record, now) {
			result = webhookDeliveryToDomain(record)
			return nil
		}

		startClaim(record, now, lease)
		if _, err := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
		result, claimed = webhookDeliveryToDomain(record), true
		return nil
	})
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	return result, claimed, nil
}

func (s *WebhookDeliveryStore) Get(
	ctx context.Context,
	providerID string,
	key string,
) (webhooks.DeliveryRecord, error) {
	if s == nil || s.repo == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	key = strings.TrimSpace(key)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider_id", "=", providerID),
		repository.SelectBy("delivery_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	if len(records) == 0 {
		return webhooks.DeliveryRecord{}, webhooks.DeliveryNotFoundError(providerID, key)
	}
	record := records[0]
	if record.ExpiresAt != nil && !s.now().Before(*record.ExpiresAt) {
		return webhooks.DeliveryRecord{}, webhooks.DeliveryNotFoundError(providerID, key)
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	now := s.now()
	return s.releaseClaim(ctx, claimID, func(record *webhookDeliveryRecord) {
		record.Status = webhooks.DeliveryStatusProcessed
		record.LastError = ""
		record.NextAttemptAt = nil
		record.ExpiresAt = s.expiry(now)
		record.UpdatedAt = now
	})
}

func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	now := s.now()
	return s.releaseClaim(ctx, claimID, func(record *webhookDeliveryRecord) {
		if cause != nil {
			record.LastError = cause.Error()
		}
		record.UpdatedAt = now
		if maxAttempts > 0 && record.Attempts >= maxAttempts {
			record.Status = webhooks.DeliveryStatusDead
			record.NextAttemptAt = nil
			record.ExpiresAt = s.expiry(now)
			return
		}
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		retryAt := nextAttemptAt.UTC()
		record.Status = webhooks.DeliveryStatusRetryReady
		record.NextAttemptAt = &retryAt
	})
}

// releaseClaim applies mutate to the row currently held by claimID. Unknown
// or superseded claims are ignored.
func (s *WebhookDeliveryStore) releaseClaim(
	ctx context.Context,
	claimID string,
	mutate func(*webhookDeliveryRecord),
) error {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &webhookDeliveryRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.claim_id = ?", claimID).
			Where("?TableAlias.status = ?", webhooks.DeliveryStatusProcessing).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		mutate(record)
		record.ClaimID = ""
		record.LeaseExpiresAt = nil
		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func findDeliveryTx(ctx context.Context, tx bun.Tx, providerID string, key string) (*webhookDeliveryRecord, error) {
	record := &webhookDeliveryRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.delivery_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// busy reports whether a delivery cannot be claimed right now.
func busy(record *webhookDeliveryRecord, now time.Time) bool {
	switch record.Status {
	case webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead:
		return true
	case webhooks.DeliveryStatusProcessing:
		return record.LeaseExpiresAt != nil && now.Before(*record.LeaseExpiresAt)
	case webhooks.DeliveryStatusRetryReady:
		return record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt)
	default:
		return false
	}
}

func startClaim(record *webhookDeliveryRecord, now time.Time, lease time.Duration) {
	leaseExpiresAt := now.Add(lease)
	record.ClaimID = uuid.NewString()
	record.Status = webhooks.DeliveryStatusProcessing
	record.Attempts++
	record.NextAttemptAt = nil
	record.LeaseExpiresAt = &leaseExpiresAt
	record.ExpiresAt = nil
	record.UpdatedAt = now
}

func (s *WebhookDeliveryStore) expiry(now time.Time) *time.Time {
	if s.TTL <= 0 {
		return nil
	}
	value := now.Add(s.TTL)
	return &value
}

func (s *WebhookDeliveryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	return webhooks.DeliveryRecord{
		ID:            record.ID,
		ClaimID:       record.ClaimID,
		ProviderID:    record.ProviderID,
		DeliveryKey:   record.DeliveryKey,
		Status:        record.Status,
		Attempts:      record.Attempts,
		LastError:     record.LastError,
		NextAttemptAt: copyTimePointer(record.NextAttemptAt),
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
