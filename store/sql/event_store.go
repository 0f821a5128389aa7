package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-outbound/core"
)

// NotificationEventStore persists delivery events and doubles as the dedup
// ledger. Duplicate suppression rides on the unique index over
// (submitter_id, event_type, dedup_bucket): concurrent writers race on the
// insert instead of on a read-then-write, and the loser observes the
// constraint violation.
type NotificationEventStore struct {
	db          *bun.DB
	repo        repository.Repository[*notificationEventRecord]
	dedupWindow time.Duration
	now         func() time.Time
}

type NotificationEventStoreOption func(*NotificationEventStore)

func WithNotificationEventClock(now func() time.Time) NotificationEventStoreOption {
	return func(s *NotificationEventStore) {
		if s == nil || now == nil {
			return
		}
		s.now = now
	}
}

func NewNotificationEventStore(db *bun.DB, dedupWindow time.Duration, opts ...NotificationEventStoreOption) (*NotificationEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if dedupWindow <= 0 {
		dedupWindow = core.DefaultConfig().SMS.DedupWindow
	}
	repo := repository.NewRepository[*notificationEventRecord](db, notificationEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid notification event repository wiring: %w", err)
		}
	}
	store := &NotificationEventStore{
		db:          db,
		repo:        repo,
		dedupWindow: dedupWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *NotificationEventStore) Record(ctx context.Context, input core.RecordEventInput) (bool, error) {
	if s == nil || s.repo == nil {
		return false, fmt.Errorf("sqlstore: notification event store is not configured")
	}
	submitterID := strings.TrimSpace(input.SubmitterID)
	if submitterID == "" {
		return false, fmt.Errorf("sqlstore: submitter id is required")
	}
	eventType := strings.TrimSpace(input.EventType)
	if eventType == "" {
		return false, fmt.Errorf("sqlstore: event type is required")
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	occurredAt = occurredAt.UTC()

	record := &notificationEventRecord{
		ID:          uuid.NewString(),
		SubmitterID: submitterID,
		EventType:   eventType,
		Data:        copyAnyMap(input.Data),
		DedupBucket: dedupBucket(occurredAt, s.dedupWindow),
		CreatedAt:   occurredAt,
	}
	_, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *NotificationEventStore) SeenWithin(ctx context.Context, submitterID string, eventType string, window time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: notification event store is not configured")
	}
	submitterID = strings.TrimSpace(submitterID)
	if submitterID == "" {
		return false, fmt.Errorf("sqlstore: submitter id is required")
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return false, fmt.Errorf("sqlstore: event type is required")
	}
	if window <= 0 {
		window = s.dedupWindow
	}
	cutoff := s.now().UTC().Add(-window)

	count, err := s.db.NewSelect().
		Model((*notificationEventRecord)(nil)).
		Where("?TableAlias.submitter_id = ?", submitterID).
		Where("?TableAlias.event_type = ?", eventType).
		Where("?TableAlias.created_at >= ?", cutoff).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// dedupBucket quantizes a timestamp onto the dedup window so every event
// inside the same window lands on the same unique-index tuple.
func dedupBucket(at time.Time, window time.Duration) int64 {
	seconds := int64(window / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return at.UTC().Unix() / seconds
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "unique") || strings.Contains(text, "duplicate")
}

func copyAnyMap(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

var _ core.NotificationEventLedger = (*NotificationEventStore)(nil)
