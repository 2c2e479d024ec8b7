package library

import (
	"errors"
	"fmt"

	"example.com/druglib/internal/codec"
)

var (
	ErrMissingField = errors.New("required field missing")
	ErrUnknownMode  = errors.New("unknown delivery mode")
	ErrUnknownUnit  = codec.ErrUnknownUnit
	ErrUnknownRole  = errors.New("unknown role")
	ErrInvalidValue = codec.ErrInvalidValue
)

// ConfigError locates a malformed descriptor field. Any ConfigError aborts
// the whole encode.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("descriptor %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(path string, err error) error {
	return &ConfigError{Path: path, Err: err}
}

func missing(path string) error {
	return configErr(path, ErrMissingField)
}
