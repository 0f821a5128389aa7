package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

var (
	ErrSubmitterNotFound     = errors.New("core: submitter not found")
	ErrWebhookTargetNotFound = errors.New("core: webhook target not found")
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// SubmitterStore resolves recipients by opaque identifier and applies the
// set-once sent_at transition. The backing application owns the records; the
// dispatch subsystem only reads them and conditionally stamps sent_at.
type SubmitterStore interface {
	Get(ctx context.Context, id string) (Submitter, error)
	// MarkSent sets sent_at only when it is currently unset. It never
	// overwrites an earlier timestamp and reports no error when the column
	// was already populated.
	MarkSent(ctx context.Context, id string, at time.Time) error
}

type RecordEventInput struct {
	SubmitterID string
	EventType   string
	Data        map[string]any
	// OccurredAt derives the dedup bucket; a zero value means now.
	OccurredAt time.Time
}

// NotificationEventLedger is the append-only audit log that doubles as the
// dedup ledger. Record is a conditional insert: concurrent duplicates for the
// same (submitter, type, bucket) collapse onto the unique index instead of
// racing, and created reports whether this call won the insert.
type NotificationEventLedger interface {
	Record(ctx context.Context, input RecordEventInput) (created bool, err error)
	SeenWithin(ctx context.Context, submitterID string, eventType string, window time.Duration) (bool, error)
}

// SmsConfigStore retrieves per-account gateway credentials from the encrypted
// configuration store. ok is false when the account has no SMS configuration,
// which disables the feature rather than erroring.
type SmsConfigStore interface {
	Credentials(ctx context.Context, accountID string) (creds SmsCredentials, ok bool, err error)
}

// TemplateStore resolves per-account message template overrides. ok is false
// when the account carries no non-empty override and the caller should fall
// back to the built-in default.
type TemplateStore interface {
	MessageTemplate(ctx context.Context, accountID string, key string) (template string, ok bool, err error)
}

// WebhookTargetStore resolves callback endpoints and owns signing-key
// lifecycle. EnsureSigningKey is idempotent get-or-create: concurrent first
// uses must converge on a single persisted key for the target.
type WebhookTargetStore interface {
	Get(ctx context.Context, id string) (WebhookTarget, error)
	EnsureSigningKey(ctx context.Context, id string) (string, error)
}

// SmsGateway is the outbound SMS delivery port.
type SmsGateway interface {
	Send(ctx context.Context, to string, body string, creds SmsCredentials) (SmsReceipt, error)
}

// JobExecutionMessage is the enqueue contract shared with the queue adapters.
// Parameters is a flat map carrying at minimum the subject identifier, plus
// the attempt counter for self-rescheduling jobs. Delay postpones execution;
// the enqueuer must honor it without blocking the caller.
type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
	Delay          time.Duration
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}
