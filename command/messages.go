package command

import (
	"fmt"
	"strings"
)

const (
	TypeSendSMS         = "outbound.command.sms.send"
	TypeSendTestWebhook = "outbound.command.webhook.send_test"
)

// SendSMSMessage requests an invitation SMS for a submitter on behalf of the
// acting user. The user id keys the per-sender rate limit window.
type SendSMSMessage struct {
	SubmitterID string
	UserID      string
}

func (SendSMSMessage) Type() string { return TypeSendSMS }

func (m SendSMSMessage) Validate() error {
	if strings.TrimSpace(m.SubmitterID) == "" {
		return fmt.Errorf("command: submitter id is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}

// SendTestWebhookMessage requests a one-off delivery of a completed-form
// payload to a configured webhook target, typically to verify its endpoint.
type SendTestWebhookMessage struct {
	WebhookTargetID string
	SubmitterID     string
}

func (SendTestWebhookMessage) Type() string { return TypeSendTestWebhook }

func (m SendTestWebhookMessage) Validate() error {
	if strings.TrimSpace(m.WebhookTargetID) == "" {
		return fmt.Errorf("command: webhook target id is required")
	}
	if strings.TrimSpace(m.SubmitterID) == "" {
		return fmt.Errorf("command: submitter id is required")
	}
	return nil
}
