package store

import "errors"

var (
	ErrInvalidCursor      = errors.New("store: invalid cursor")
	ErrUnsupportedPattern = errors.New("store: unsupported pattern")
)
