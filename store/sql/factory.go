package sqlstore

import (
	"fmt"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL-backed stores over one bun database.
type RepositoryFactory struct {
	db          *bun.DB
	deliveryTTL time.Duration

	webhookDeliveryStore *WebhookDeliveryStore
	rateLimitStateStore  *RateLimitStateStore
}

func NewRepositoryFactory(deliveryTTL time.Duration) *RepositoryFactory {
	return &RepositoryFactory{deliveryTTL: deliveryTTL}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, deliveryTTL time.Duration) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(deliveryTTL)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, deliveryTTL time.Duration) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(deliveryTTL)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.webhookDeliveryStore != nil && f.rateLimitStateStore != nil {
		return nil
	}

	deliveries, err := NewWebhookDeliveryStore(f.db, f.deliveryTTL)
	if err != nil {
		return err
	}
	states, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.webhookDeliveryStore = deliveries
	f.rateLimitStateStore = states
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.webhookDeliveryStore
}

func (f *RepositoryFactory) RateLimitStateStore() *RateLimitStateStore {
	if f == nil {
		return nil
	}
	return f.rateLimitStateStore
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
