package env

import (
	"log/slog"
	"os"
	"strconv"
)

// Get returns the value of key, or def when it is unset or empty.
func Get(key string, def string) string {
	if res := os.Getenv(key); len(res) > 0 {
		return res
	}
	return def
}

// Int returns key parsed as an int, or def when it is unset or invalid.
func Int(key string, def int) int {
	res := os.Getenv(key)
	if len(res) == 0 {
		return def
	}
	i, err := strconv.Atoi(res)
	if err != nil {
		slog.Warn("env var is not an int, using default", "key", key, "value", res, "default", def)
		return def
	}
	return i
}
