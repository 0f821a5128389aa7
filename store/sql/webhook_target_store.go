package sqlstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-outbound/core"
)

const signingKeyBytes = 32

// WebhookTargetStore resolves callback endpoints and owns signing-key
// lifecycle.
type WebhookTargetStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookTargetRecord]
	now  func() time.Time
}

type WebhookTargetStoreOption func(*WebhookTargetStore)

func WithWebhookTargetClock(now func() time.Time) WebhookTargetStoreOption {
	return func(s *WebhookTargetStore) {
		if s == nil || now == nil {
			return
		}
		s.now = now
	}
}

func NewWebhookTargetStore(db *bun.DB, opts ...WebhookTargetStoreOption) (*WebhookTargetStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookTargetRecord](db, webhookTargetHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook target repository wiring: %w", err)
		}
	}
	store := &WebhookTargetStore{db: db, repo: repo, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *WebhookTargetStore) Get(ctx context.Context, id string) (core.WebhookTarget, error) {
	if s == nil || s.db == nil {
		return core.WebhookTarget{}, fmt.Errorf("sqlstore: webhook target store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.WebhookTarget{}, fmt.Errorf("sqlstore: webhook target id is required")
	}

	record := &webhookTargetRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.WebhookTarget{}, core.ErrWebhookTargetNotFound
		}
		return core.WebhookTarget{}, err
	}
	return record.toDomain(), nil
}

// Create registers a callback endpoint for an account. The signing key is
// left empty; EnsureSigningKey mints one on first delivery.
func (s *WebhookTargetStore) Create(ctx context.Context, accountID string, rawURL string, extraHeaders map[string]string) (core.WebhookTarget, error) {
	if s == nil || s.repo == nil {
		return core.WebhookTarget{}, fmt.Errorf("sqlstore: webhook target store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return core.WebhookTarget{}, fmt.Errorf("sqlstore: account id is required")
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return core.WebhookTarget{}, fmt.Errorf("sqlstore: webhook url is required")
	}

	now := s.now().UTC()
	record := &webhookTargetRecord{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		URL:          rawURL,
		ExtraHeaders: copyStringMap(extraHeaders),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.WebhookTarget{}, err
	}
	return created.toDomain(), nil
}

// EnsureSigningKey returns the target's signing key, minting and persisting
// one when none exists. The conditional update only lands on rows that still
// have no key, so concurrent first deliveries converge on a single key.
func (s *WebhookTargetStore) EnsureSigningKey(ctx context.Context, id string) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: webhook target store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: webhook target id is required")
	}

	target, err := s.Get(ctx, trimmed)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(target.SigningKey) != "" {
		return target.SigningKey, nil
	}

	candidate, err := newSigningKey()
	if err != nil {
		return "", err
	}
	_, err = s.db.NewUpdate().
		Model((*webhookTargetRecord)(nil)).
		Set("signing_key = ?", candidate).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", trimmed).
		Where("signing_key IS NULL OR signing_key = ''").
		Exec(ctx)
	if err != nil {
		return "", err
	}

	// Re-read so a concurrent winner's key is the one we sign with.
	persisted, err := s.Get(ctx, trimmed)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(persisted.SigningKey) == "" {
		return "", fmt.Errorf("sqlstore: signing key was not persisted for target %s", trimmed)
	}
	return persisted.SigningKey, nil
}

func newSigningKey() (string, error) {
	buf := make([]byte, signingKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("sqlstore: generate signing key: %w", err)
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}

func (r *webhookTargetRecord) toDomain() core.WebhookTarget {
	if r == nil {
		return core.WebhookTarget{}
	}
	return core.WebhookTarget{
		ID:           r.ID,
		AccountID:    r.AccountID,
		URL:          r.URL,
		ExtraHeaders: copyStringMap(r.ExtraHeaders),
		SigningKey:   r.SigningKey,
	}
}

func copyStringMap(input map[string]string) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

var _ core.WebhookTargetStore = (*WebhookTargetStore)(nil)
