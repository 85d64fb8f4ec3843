package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingConfig     = "MISSING_CONFIG"
	ErrCodeInvalidNodeURL    = "INVALID_NODE_URL"
	ErrCodeInvalidValue      = "INVALID_VALUE"
	ErrCodeConfigFileMissing = "CONFIG_FILE_MISSING"
	ErrCodeInvalidConfigFile = "INVALID_CONFIG_FILE"
)

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file or environment", varName),
	}
}

// ErrInvalidNodeURL returns an error for a malformed node API URL
func ErrInvalidNodeURL(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidNodeURL,
		Message: fmt.Sprintf("Invalid NODE_API_URL '%s': %s", url, reason),
		Action:  "Set NODE_API_URL to the node's API base (e.g., http://127.0.0.1:8000/api/v1)",
	}
}

// ErrInvalidValue returns an error for an out-of-range setting
func ErrInvalidValue(varName string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid value for %s: %s", varName, reason),
		Action:  fmt.Sprintf("Correct %s in your .env file or config file", varName),
	}
}

// ErrConfigFileMissing returns an error when SYNCMON_CONFIG points nowhere
func ErrConfigFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Fix SYNCMON_CONFIG or unset it to use environment variables only",
	}
}

// ErrInvalidConfigFile returns an error for unparsable YAML
func ErrInvalidConfigFile(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidConfigFile,
		Message: fmt.Sprintf("Cannot parse configuration file %s: %s", path, reason),
		Action:  "Check the YAML syntax",
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
