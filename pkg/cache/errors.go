package cache

import (
	"errors"
	"fmt"
)

var (
	ErrTransport      = errors.New("cache: transport failure")
	ErrEncodeFailed   = errors.New("cache: encode failed")
	ErrDecodeFailed   = errors.New("cache: decode failed")
	ErrInvalidOptions = errors.New("cache: invalid options")
)

// TransportError wraps a failure reported by the backing store.
type TransportError struct {
	Op  string
	Key string
	Err error
}

func (e *TransportError) Error() string {
	if len(e.Key) > 0 {
		return fmt.Sprintf("cache: %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("cache: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

const (
	opEncode = "encode"
	opDecode = "decode"
)

// CodecError reports a value that could not be serialized or a stored
// record that could not be parsed.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("cache: %s entity: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func (e *CodecError) Is(target error) bool {
	switch e.Op {
	case opEncode:
		return target == ErrEncodeFailed
	case opDecode:
		return target == ErrDecodeFailed
	}
	return false
}
