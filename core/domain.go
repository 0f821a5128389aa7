package core

import (
	"strings"
	"time"
)

const (
	EventTypeSendSMS   = "send_sms"
	EventTypeSendEmail = "send_email"
)

const WebhookEventFormCompleted = "form.completed"

// Submitter is the delivery recipient as resolved from the surrounding
// application: the record itself plus the archival markers of its parent
// submission and template, flattened so dispatch jobs can run their
// precondition checks without further lookups.
type Submitter struct {
	ID                   string
	AccountID            string
	SubmissionID         string
	TemplateID           string
	Slug                 string
	Name                 string
	Email                string
	Phone                string
	CompletedAt          *time.Time
	SentAt               *time.Time
	SubmissionArchivedAt *time.Time
	TemplateArchivedAt   *time.Time
	TemplateName         string
	InvitationURL        string
}

// Completed reports whether the submitter already finished signing.
func (s Submitter) Completed() bool {
	return s.CompletedAt != nil
}

// Archived reports whether the parent submission or template was archived.
func (s Submitter) Archived() bool {
	return s.SubmissionArchivedAt != nil || s.TemplateArchivedAt != nil
}

// HasPhone reports whether the submitter can receive SMS at all.
func (s Submitter) HasPhone() bool {
	return strings.TrimSpace(s.Phone) != ""
}

// NotificationEvent is an append-only audit record of a confirmed delivery.
// Events double as the deduplication ledger: a send is suppressed when an
// event for the same (submitter, type) pair exists inside the dedup window.
type NotificationEvent struct {
	ID          string
	SubmitterID string
	EventType   string
	Data        map[string]any
	CreatedAt   time.Time
}

// SmsCredentials are the per-account gateway credentials held in the
// encrypted configuration store. A missing record disables SMS delivery for
// the account.
type SmsCredentials struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
}

func (c SmsCredentials) Valid() bool {
	return strings.TrimSpace(c.AccountSID) != "" &&
		strings.TrimSpace(c.AuthToken) != "" &&
		strings.TrimSpace(c.FromNumber) != ""
}

// SmsReceipt is the provider's acknowledgement of an accepted message. Some
// providers return empty bodies for accepted-but-unqueued states, so every
// field may be empty on a successful send.
type SmsReceipt struct {
	SID    string
	Status string
	Raw    map[string]any
}

// WebhookTarget is an outbound callback endpoint configured by an account.
// SigningKey is generated lazily on first delivery and persisted thereafter.
type WebhookTarget struct {
	ID           string
	AccountID    string
	URL          string
	ExtraHeaders map[string]string
	SigningKey   string
}
