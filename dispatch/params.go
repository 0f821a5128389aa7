package dispatch

import (
	"strconv"
	"strings"
)

const (
	ParamSubmitterID     = "submitter_id"
	ParamWebhookTargetID = "webhook_target_id"
	ParamAttempt         = "attempt"
)

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	value, ok := params[key]
	if !ok {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}

// intParam tolerates the numeric types a JSON round trip through the queue
// produces.
func intParam(params map[string]any, key string) int {
	if params == nil {
		return 0
	}
	switch value := params[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
