package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
)

var errNullRecord = errors.New("null record")

// Encode serializes v as JSON.
func Encode[T any](v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &CodecError{Op: opEncode, Err: err}
	}
	return data, nil
}

// Decode parses a JSON record into a T. A top level null is rejected for
// struct types, it carries no entity.
func Decode[T any](data []byte) (T, error) {
	var v T
	if isStruct[T]() && bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return v, &CodecError{Op: opDecode, Err: errNullRecord}
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &CodecError{Op: opDecode, Err: err}
	}
	return v, nil
}

func isStruct[T any]() bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return t.Kind() == reflect.Struct
}
