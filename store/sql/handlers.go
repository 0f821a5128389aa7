package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func submitterHandlers() repository.ModelHandlers[*submitterRecord] {
	return repository.ModelHandlers[*submitterRecord]{
		NewRecord: func() *submitterRecord {
			return &submitterRecord{}
		},
		GetID: func(record *submitterRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *submitterRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *submitterRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func submissionHandlers() repository.ModelHandlers[*submissionRecord] {
	return repository.ModelHandlers[*submissionRecord]{
		NewRecord: func() *submissionRecord {
			return &submissionRecord{}
		},
		GetID: func(record *submissionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *submissionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *submissionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func templateHandlers() repository.ModelHandlers[*templateRecord] {
	return repository.ModelHandlers[*templateRecord]{
		NewRecord: func() *templateRecord {
			return &templateRecord{}
		},
		GetID: func(record *templateRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *templateRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *templateRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func notificationEventHandlers() repository.ModelHandlers[*notificationEventRecord] {
	return repository.ModelHandlers[*notificationEventRecord]{
		NewRecord: func() *notificationEventRecord {
			return &notificationEventRecord{}
		},
		GetID: func(record *notificationEventRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *notificationEventRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *notificationEventRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func accountConfigHandlers() repository.ModelHandlers[*accountConfigRecord] {
	return repository.ModelHandlers[*accountConfigRecord]{
		NewRecord: func() *accountConfigRecord {
			return &accountConfigRecord{}
		},
		GetID: func(record *accountConfigRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *accountConfigRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *accountConfigRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func encryptedConfigHandlers() repository.ModelHandlers[*encryptedConfigRecord] {
	return repository.ModelHandlers[*encryptedConfigRecord]{
		NewRecord: func() *encryptedConfigRecord {
			return &encryptedConfigRecord{}
		},
		GetID: func(record *encryptedConfigRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *encryptedConfigRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *encryptedConfigRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func webhookTargetHandlers() repository.ModelHandlers[*webhookTargetRecord] {
	return repository.ModelHandlers[*webhookTargetRecord]{
		NewRecord: func() *webhookTargetRecord {
			return &webhookTargetRecord{}
		},
		GetID: func(record *webhookTargetRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *webhookTargetRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *webhookTargetRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
