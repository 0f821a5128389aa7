package sqlstore

import (
	"fmt"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-outbound/core"
)

// RepositoryFactory wires every store in this package onto a shared bun
// handle.
type RepositoryFactory struct {
	db          *bun.DB
	secrets     core.SecretProvider
	dedupWindow time.Duration
	cache       repositorycache.CacheService

	submitterStore     *SubmitterStore
	eventStore         *NotificationEventStore
	encryptedStore     *EncryptedConfigStore
	accountConfigStore *AccountConfigStore
	cachedConfigStore  *CachedAccountConfigStore
	webhookTargetStore *WebhookTargetStore
}

func NewRepositoryFactory(secrets core.SecretProvider, dedupWindow time.Duration) *RepositoryFactory {
	return &RepositoryFactory{
		secrets:     secrets,
		dedupWindow: dedupWindow,
	}
}

func NewRepositoryFactoryFromPersistence(
	client *persistence.Client,
	secrets core.SecretProvider,
	dedupWindow time.Duration,
) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(secrets, dedupWindow)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(
	db *bun.DB,
	secrets core.SecretProvider,
	dedupWindow time.Duration,
) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(secrets, dedupWindow)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

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
	if f.submitterStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) SubmitterStore() *SubmitterStore {
	if f == nil {
		return nil
	}
	return f.submitterStore
}

func (f *RepositoryFactory) NotificationEventStore() *NotificationEventStore {
	if f == nil {
		return nil
	}
	return f.eventStore
}

func (f *RepositoryFactory) EncryptedConfigStore() *EncryptedConfigStore {
	if f == nil {
		return nil
	}
	return f.encryptedStore
}

func (f *RepositoryFactory) AccountConfigStore() *AccountConfigStore {
	if f == nil {
		return nil
	}
	return f.accountConfigStore
}

// WithCacheService fronts template-override reads with the given cache
// service. Call before BuildStores or after; an already-built factory gains
// the cached wrapper immediately.
func (f *RepositoryFactory) WithCacheService(cacheService repositorycache.CacheService) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if cacheService == nil {
		return fmt.Errorf("sqlstore: cache service is required")
	}
	f.cache = cacheService
	if f.accountConfigStore == nil {
		return nil
	}
	cached, err := NewCachedAccountConfigStore(f.accountConfigStore, cacheService)
	if err != nil {
		return err
	}
	f.cachedConfigStore = cached
	return nil
}

// TemplateStore returns the template-override reader: the cached wrapper when
// a cache service is attached, the plain account config store otherwise.
func (f *RepositoryFactory) TemplateStore() core.TemplateStore {
	if f == nil || f.accountConfigStore == nil {
		return nil
	}
	if f.cachedConfigStore != nil {
		return f.cachedConfigStore
	}
	return f.accountConfigStore
}

func (f *RepositoryFactory) WebhookTargetStore() *WebhookTargetStore {
	if f == nil {
		return nil
	}
	return f.webhookTargetStore
}

func (f *RepositoryFactory) initStores() error {
	submitterStore, err := NewSubmitterStore(f.db)
	if err != nil {
		return err
	}
	f.submitterStore = submitterStore

	eventStore, err := NewNotificationEventStore(f.db, f.dedupWindow)
	if err != nil {
		return err
	}
	f.eventStore = eventStore

	accountConfigStore, err := NewAccountConfigStore(f.db)
	if err != nil {
		return err
	}
	f.accountConfigStore = accountConfigStore

	if f.cache != nil {
		cached, err := NewCachedAccountConfigStore(accountConfigStore, f.cache)
		if err != nil {
			return err
		}
		f.cachedConfigStore = cached
	}

	if f.secrets != nil {
		encryptedStore, err := NewEncryptedConfigStore(f.db, f.secrets)
		if err != nil {
			return err
		}
		f.encryptedStore = encryptedStore
	}

	webhookTargetStore, err := NewWebhookTargetStore(f.db)
	if err != nil {
		return err
	}
	f.webhookTargetStore = webhookTargetStore

	return nil
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
