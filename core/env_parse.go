package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookupEnv returns the trimmed value of key and whether it is non-empty.
func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// GetEnvOrDefault returns the value of key, or def when unset or blank.
func GetEnvOrDefault(key, def string) string {
	if v, ok := lookupEnv(key); ok {
		return v
	}
	return def
}

// ParseIntEnv parses key as an integer. Unset or malformed values yield def.
func ParseIntEnv(key string, def int) int {
	v, ok := lookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// ParseUint64Env parses key as a non-negative integer. Negative or
// malformed values yield def.
func ParseUint64Env(key string, def uint64) uint64 {
	v, ok := lookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// ParseBoolEnv accepts true/1/yes/on and false/0/no/off, case-insensitive.
// Anything else yields def.
func ParseBoolEnv(key string, def bool) bool {
	v, ok := lookupEnv(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}

// ParseDurationEnv reads key as whole seconds.
func ParseDurationEnv(key string, defSeconds int) time.Duration {
	return time.Duration(ParseIntEnv(key, defSeconds)) * time.Second
}

// ParseDurationMsEnv reads key as whole milliseconds.
func ParseDurationMsEnv(key string, defMs int) time.Duration {
	return time.Duration(ParseIntEnv(key, defMs)) * time.Millisecond
}
