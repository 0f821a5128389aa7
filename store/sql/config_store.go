package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-outbound/core"
)

const (
	// ConfigKeySmsCredentials addresses the per-account gateway credential
	// blob in the encrypted config table.
	ConfigKeySmsCredentials = "sms_credentials"

	// accountConfigBodyField holds the template text inside the config value.
	accountConfigBodyField = "body"
)

// EncryptedConfigStore holds per-account secrets at rest. Values are sealed
// through the injected SecretProvider before they touch the database and
// opened on the way out.
type EncryptedConfigStore struct {
	db      *bun.DB
	repo    repository.Repository[*encryptedConfigRecord]
	secrets core.SecretProvider
	now     func() time.Time
}

type EncryptedConfigStoreOption func(*EncryptedConfigStore)

func WithEncryptedConfigClock(now func() time.Time) EncryptedConfigStoreOption {
	return func(s *EncryptedConfigStore) {
		if s == nil || now == nil {
			return
		}
		s.now = now
	}
}

func NewEncryptedConfigStore(db *bun.DB, secrets core.SecretProvider, opts ...EncryptedConfigStoreOption) (*EncryptedConfigStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	repo := repository.NewRepository[*encryptedConfigRecord](db, encryptedConfigHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid encrypted config repository wiring: %w", err)
		}
	}
	store := &EncryptedConfigStore{db: db, repo: repo, secrets: secrets, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Credentials loads and opens the SMS gateway credentials for an account.
// ok is false when the account has none, which disables SMS delivery rather
// than erroring.
func (s *EncryptedConfigStore) Credentials(ctx context.Context, accountID string) (core.SmsCredentials, bool, error) {
	if s == nil || s.db == nil {
		return core.SmsCredentials{}, false, fmt.Errorf("sqlstore: encrypted config store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return core.SmsCredentials{}, false, fmt.Errorf("sqlstore: account id is required")
	}

	record := &encryptedConfigRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.key = ?", ConfigKeySmsCredentials).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SmsCredentials{}, false, nil
		}
		return core.SmsCredentials{}, false, err
	}

	plaintext, err := s.secrets.Decrypt(ctx, record.EncryptedValue)
	if err != nil {
		return core.SmsCredentials{}, false, fmt.Errorf("sqlstore: open sms credentials: %w", err)
	}
	var creds core.SmsCredentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return core.SmsCredentials{}, false, fmt.Errorf("sqlstore: decode sms credentials: %w", err)
	}
	return creds, true, nil
}

// SaveCredentials seals and upserts the SMS gateway credentials for an
// account.
func (s *EncryptedConfigStore) SaveCredentials(ctx context.Context, accountID string, creds core.SmsCredentials) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: encrypted config store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("sqlstore: account id is required")
	}
	if !creds.Valid() {
		return fmt.Errorf("sqlstore: sms credentials are incomplete")
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("sqlstore: encode sms credentials: %w", err)
	}
	sealed, err := s.secrets.Encrypt(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("sqlstore: seal sms credentials: %w", err)
	}

	now := s.now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &encryptedConfigRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.account_id = ?", accountID).
			Where("?TableAlias.key = ?", ConfigKeySmsCredentials).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			record := &encryptedConfigRecord{
				ID:             uuid.NewString(),
				AccountID:      accountID,
				Key:            ConfigKeySmsCredentials,
				EncryptedValue: sealed,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}

		existing.EncryptedValue = sealed
		existing.UpdatedAt = now
		_, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx)
		return updateErr
	})
}

// AccountConfigStore resolves per-account message template overrides from the
// plain config table.
type AccountConfigStore struct {
	db   *bun.DB
	repo repository.Repository[*accountConfigRecord]
	now  func() time.Time
}

type AccountConfigStoreOption func(*AccountConfigStore)

func WithAccountConfigClock(now func() time.Time) AccountConfigStoreOption {
	return func(s *AccountConfigStore) {
		if s == nil || now == nil {
			return
		}
		s.now = now
	}
}

func NewAccountConfigStore(db *bun.DB, opts ...AccountConfigStoreOption) (*AccountConfigStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*accountConfigRecord](db, accountConfigHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid account config repository wiring: %w", err)
		}
	}
	store := &AccountConfigStore{db: db, repo: repo, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *AccountConfigStore) MessageTemplate(ctx context.Context, accountID string, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: account config store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", false, fmt.Errorf("sqlstore: account id is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("sqlstore: config key is required")
	}

	record := &accountConfigRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	body, _ := record.Value[accountConfigBodyField].(string)
	if strings.TrimSpace(body) == "" {
		return "", false, nil
	}
	return body, true, nil
}

// SaveMessageTemplate upserts an account template override. A blank body
// clears the override back to the built-in default.
func (s *AccountConfigStore) SaveMessageTemplate(ctx context.Context, accountID string, key string, body string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: account config store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("sqlstore: account id is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: config key is required")
	}

	now := s.now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &accountConfigRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.account_id = ?", accountID).
			Where("?TableAlias.key = ?", key).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			record := &accountConfigRecord{
				ID:        uuid.NewString(),
				AccountID: accountID,
				Key:       key,
				Value:     map[string]any{accountConfigBodyField: body},
				CreatedAt: now,
				UpdatedAt: now,
			}
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}

		existing.Value = map[string]any{accountConfigBodyField: body}
		existing.UpdatedAt = now
		_, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx)
		return updateErr
	})
}

var (
	_ core.SmsConfigStore = (*EncryptedConfigStore)(nil)
	_ core.TemplateStore  = (*AccountConfigStore)(nil)
)
