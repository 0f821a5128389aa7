package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-outbound/core"
)

// SubmitterStore resolves submitters together with the archival markers of
// their parent submission and template.
type SubmitterStore struct {
	db          *bun.DB
	submitters  repository.Repository[*submitterRecord]
	submissions repository.Repository[*submissionRecord]
	templates   repository.Repository[*templateRecord]
}

func NewSubmitterStore(db *bun.DB) (*SubmitterStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	submitters := repository.NewRepository[*submitterRecord](db, submitterHandlers())
	if validator, ok := submitters.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid submitter repository wiring: %w", err)
		}
	}
	submissions := repository.NewRepository[*submissionRecord](db, submissionHandlers())
	if validator, ok := submissions.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid submission repository wiring: %w", err)
		}
	}
	templates := repository.NewRepository[*templateRecord](db, templateHandlers())
	if validator, ok := templates.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid template repository wiring: %w", err)
		}
	}
	return &SubmitterStore{
		db:          db,
		submitters:  submitters,
		submissions: submissions,
		templates:   templates,
	}, nil
}

func (s *SubmitterStore) Get(ctx context.Context, id string) (core.Submitter, error) {
	if s == nil || s.db == nil {
		return core.Submitter{}, fmt.Errorf("sqlstore: submitter store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.Submitter{}, fmt.Errorf("sqlstore: submitter id is required")
	}

	record := &submitterRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Submitter{}, core.ErrSubmitterNotFound
		}
		return core.Submitter{}, err
	}

	submission := &submissionRecord{}
	err = s.db.NewSelect().
		Model(submission).
		Where("?TableAlias.id = ?", record.SubmissionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Submitter{}, core.ErrSubmitterNotFound
		}
		return core.Submitter{}, err
	}

	template := &templateRecord{}
	err = s.db.NewSelect().
		Model(template).
		Where("?TableAlias.id = ?", submission.TemplateID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Submitter{}, core.ErrSubmitterNotFound
		}
		return core.Submitter{}, err
	}

	return core.Submitter{
		ID:                   record.ID,
		AccountID:            record.AccountID,
		SubmissionID:         record.SubmissionID,
		TemplateID:           submission.TemplateID,
		Slug:                 record.Slug,
		Name:                 record.Name,
		Email:                record.Email,
		Phone:                record.Phone,
		CompletedAt:          copyTimePointer(record.CompletedAt),
		SentAt:               copyTimePointer(record.SentAt),
		SubmissionArchivedAt: copyTimePointer(submission.ArchivedAt),
		TemplateArchivedAt:   copyTimePointer(template.ArchivedAt),
		TemplateName:         template.Name,
	}, nil
}

// MarkSent stamps sent_at only on rows where it is still unset, so the first
// delivery wins and later calls are no-ops.
func (s *SubmitterStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: submitter store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: submitter id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	_, err := s.db.NewUpdate().
		Model((*submitterRecord)(nil)).
		Set("sent_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", trimmed).
		Where("sent_at IS NULL").
		Exec(ctx)
	return err
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

var _ core.SubmitterStore = (*SubmitterStore)(nil)
