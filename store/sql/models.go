package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type submitterRecord struct {
	bun.BaseModel `bun:"table:outbound_submitters,alias:osub"`

	ID           string     `bun:"id,pk"`
	SubmissionID string     `bun:"submission_id,notnull"`
	AccountID    string     `bun:"account_id,notnull"`
	Slug         string     `bun:"slug,notnull"`
	Name         string     `bun:"name"`
	Email        string     `bun:"email"`
	Phone        string     `bun:"phone"`
	CompletedAt  *time.Time `bun:"completed_at,nullzero"`
	SentAt       *time.Time `bun:"sent_at,nullzero"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type submissionRecord struct {
	bun.BaseModel `bun:"table:outbound_submissions,alias:osm"`

	ID         string     `bun:"id,pk"`
	TemplateID string     `bun:"template_id,notnull"`
	AccountID  string     `bun:"account_id,notnull"`
	ArchivedAt *time.Time `bun:"archived_at,nullzero"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type templateRecord struct {
	bun.BaseModel `bun:"table:outbound_templates,alias:otp"`

	ID         string     `bun:"id,pk"`
	AccountID  string     `bun:"account_id,notnull"`
	Name       string     `bun:"name,notnull"`
	Slug       string     `bun:"slug,notnull"`
	ArchivedAt *time.Time `bun:"archived_at,nullzero"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type notificationEventRecord struct {
	bun.BaseModel `bun:"table:outbound_notification_events,alias:one"`

	ID          string         `bun:"id,pk"`
	SubmitterID string         `bun:"submitter_id,notnull"`
	EventType   string         `bun:"event_type,notnull"`
	Data        map[string]any `bun:"data,type:jsonb,notnull"`
	DedupBucket int64          `bun:"dedup_bucket,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type accountConfigRecord struct {
	bun.BaseModel `bun:"table:outbound_account_configs,alias:oac"`

	ID        string         `bun:"id,pk"`
	AccountID string         `bun:"account_id,notnull"`
	Key       string         `bun:"key,notnull"`
	Value     map[string]any `bun:"value,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type encryptedConfigRecord struct {
	bun.BaseModel `bun:"table:outbound_encrypted_configs,alias:oec"`

	ID             string    `bun:"id,pk"`
	AccountID      string    `bun:"account_id,notnull"`
	Key            string    `bun:"key,notnull"`
	EncryptedValue []byte    `bun:"encrypted_value,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookTargetRecord struct {
	bun.BaseModel `bun:"table:outbound_webhook_targets,alias:owt"`

	ID           string            `bun:"id,pk"`
	AccountID    string            `bun:"account_id,notnull"`
	URL          string            `bun:"url,notnull"`
	ExtraHeaders map[string]string `bun:"extra_headers,type:jsonb"`
	SigningKey   string            `bun:"signing_key"`
	CreatedAt    time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
