package validators

import (
	"strings"

	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
)

const maxIDLength = 128

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// PathID trims an identifier taken from the URL and rejects empty or oversized values.
func PathID(raw, field string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, field+" is required").WithDetails(map[string]any{"field": field})
	}
	if len(trimmed) > maxIDLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, field+" is too long").WithDetails(map[string]any{"field": field, "max": maxIDLength})
	}
	return trimmed, nil
}
