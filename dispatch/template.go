package dispatch

import (
	"context"
	"strings"

	"github.com/goliatone/go-outbound/core"
)

const TemplateKeyInvitationSMS = "submitter_invitation_sms"

// DefaultInvitationSMSTemplate is the built-in fallback used when an account
// carries no override.
func DefaultInvitationSMSTemplate() string {
	return "Hi {{submitter.name}}, you are invited to sign {{template.name}}: {{submitter.link}}"
}

// ResolveTemplate implements two-tier resolution: the account override when
// present and non-empty, else the supplied default factory.
func ResolveTemplate(
	ctx context.Context,
	store core.TemplateStore,
	accountID string,
	key string,
	defaultTemplate func() string,
) (string, error) {
	if store != nil {
		override, ok, err := store.MessageTemplate(ctx, accountID, key)
		if err != nil {
			return "", err
		}
		if ok && strings.TrimSpace(override) != "" {
			return override, nil
		}
	}
	if defaultTemplate == nil {
		return "", nil
	}
	return defaultTemplate(), nil
}

// RenderTemplate substitutes submitter context into template placeholders.
// Unknown placeholders are left untouched.
func RenderTemplate(template string, submitter core.Submitter) string {
	replacer := strings.NewReplacer(
		"{{submitter.name}}", strings.TrimSpace(submitter.Name),
		"{{submitter.email}}", strings.TrimSpace(submitter.Email),
		"{{submitter.phone}}", strings.TrimSpace(submitter.Phone),
		"{{submitter.link}}", strings.TrimSpace(submitter.InvitationURL),
		"{{template.name}}", strings.TrimSpace(submitter.TemplateName),
	)
	return replacer.Replace(template)
}
