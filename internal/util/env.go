// Package util provides small environment helpers shared across components.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable. An unset variable or an
// unrecognized value yields def; recognized values are true/1/yes/on and
// false/0/no/off, case-insensitive.
func ParseBoolEnv(key string, def bool) bool {
	val := os.Getenv(key)
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "":
		return def
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: unrecognized boolean value, using default", "key", key, "value", val, "default", def)
		return def
	}
}
