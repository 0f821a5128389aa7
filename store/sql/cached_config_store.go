package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-outbound/core"
)

const accountConfigCacheKeyPrefix = "go-outbound::account_config::v1"

type cachedTemplate struct {
	Body  string
	Found bool
}

// TemplateConfigStore is the read/write contract the cached wrapper fronts.
type TemplateConfigStore interface {
	core.TemplateStore
	SaveMessageTemplate(ctx context.Context, accountID string, key string, body string) error
}

// CachedAccountConfigStore fronts template-override reads with the shared
// cache service. Writes go through SaveMessageTemplate on the base store and
// invalidate the corresponding entry.
type CachedAccountConfigStore struct {
	base  TemplateConfigStore
	cache repositorycache.CacheService
}

func NewCachedAccountConfigStore(
	base TemplateConfigStore,
	cacheService repositorycache.CacheService,
) (*CachedAccountConfigStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base account config store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: account config cache service is required")
	}
	return &CachedAccountConfigStore{base: base, cache: cacheService}, nil
}

// AccountConfigCacheKey returns the deterministic cache key contract for
// template override reads:
// go-outbound::account_config::v1::<account_id>::<key> with each segment
// URL-path escaped.
func AccountConfigCacheKey(accountID string, key string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", fmt.Errorf("sqlstore: account id is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: config key is required")
	}
	segments := []string{url.PathEscape(accountID), url.PathEscape(key)}
	return strings.Join(append([]string{accountConfigCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedAccountConfigStore) MessageTemplate(ctx context.Context, accountID string, key string) (string, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", false, fmt.Errorf("sqlstore: cached account config store is not configured")
	}
	cacheKey, err := AccountConfigCacheKey(accountID, key)
	if err != nil {
		return "", false, err
	}

	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedTemplate, error) {
		body, found, fetchErr := s.base.MessageTemplate(ctx, accountID, key)
		if fetchErr != nil {
			return cachedTemplate{}, fetchErr
		}
		return cachedTemplate{Body: body, Found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	return entry.Body, entry.Found, nil
}

func (s *CachedAccountConfigStore) SaveMessageTemplate(ctx context.Context, accountID string, key string, body string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached account config store is not configured")
	}
	if err := s.base.SaveMessageTemplate(ctx, accountID, key, body); err != nil {
		return err
	}
	cacheKey, err := AccountConfigCacheKey(accountID, key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.TemplateStore = (*CachedAccountConfigStore)(nil)
