package sqlstore

import "github.com/goliatone/go-outbound/core"

var (
	_ core.SubmitterStore          = (*SubmitterStore)(nil)
	_ core.NotificationEventLedger = (*NotificationEventStore)(nil)
	_ core.SmsConfigStore          = (*EncryptedConfigStore)(nil)
	_ core.TemplateStore           = (*AccountConfigStore)(nil)
	_ TemplateConfigStore          = (*AccountConfigStore)(nil)
	_ core.TemplateStore           = (*CachedAccountConfigStore)(nil)
	_ core.WebhookTargetStore      = (*WebhookTargetStore)(nil)
)
