package store

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tidwall/match"
)

// Match reports whether key matches a Redis style glob pattern
// ('*' and '?' wildcards, a backslash escapes the next character). Character
// classes are not supported, see CheckPattern.
func Match(pattern, key string) bool {
	return match.Match(key, pattern)
}

// CheckPattern rejects patterns Match cannot evaluate the way Redis does.
// Backends that filter keys themselves call it before listing.
func CheckPattern(pattern string) error {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '[':
			return fmt.Errorf("%w: character class in %q", ErrUnsupportedPattern, pattern)
		}
	}
	return nil
}

// LiteralPrefix returns the part of pattern before the first wildcard,
// suitable for a prefix seek.
func LiteralPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i > -1 {
		return pattern[:i]
	}
	return pattern
}

// EncodeCursor turns the last key of a page into a cursor for backends
// that walk keys in sorted order. The result is never CursorStart.
func EncodeCursor(key string) string {
	return "k" + base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor reverses EncodeCursor. ok is false for CursorStart.
func DecodeCursor(cursor string) (key string, ok bool, err error) {
	if cursor == CursorStart || cursor == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(cursor, "k") {
		return "", false, ErrInvalidCursor
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor[1:])
	if err != nil {
		return "", false, ErrInvalidCursor
	}
	return string(b), true, nil
}
