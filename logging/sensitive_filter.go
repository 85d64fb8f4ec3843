package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces sensitive values.
const RedactedPlaceholder = "[REDACTED]"

// Compiled once at init.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(csrf[_-]?token\s*[:=]\s*[^\s,;&]{8,})`),
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;&]{8,})`),
	regexp.MustCompile(`(?i)(seed\s*[:=]\s*[^,;&]{8,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;&]{8,})`),
	regexp.MustCompile(`(?i)(api_?key\s*[:=]\s*[^\s,;&]{8,})`),
}

// Field names that always carry secrets.
var sensitiveFieldNames = []string{
	"PASSWORD",
	"SEED",
	"SECRET",
	"TOKEN",
	"API_KEY",
	"APIKEY",
	"AUTHORIZATION",
}

// RedactSensitiveData replaces every detected secret in value.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// IsSensitiveField reports whether a field name indicates secret data.
//
// Example:
//
//	IsSensitiveField("wallet_seed")  // true
//	IsSensitiveField("block_height") // false
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}
