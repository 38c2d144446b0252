package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error codes for the three failure classes. ConfigError and WriteError
// are fatal to a run; APIError is always recovered by the rule-based
// fallback and never surfaces as a process failure.
const (
	ErrCodeConfig = "CONFIG_ERROR"
	ErrCodeAPI    = "API_ERROR"
	ErrCodeWrite  = "WRITE_ERROR"
)

// ConfigError covers bad or missing paths, malformed glossaries and
// invalid numeric ranges.
type ConfigError struct {
	Path    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", ErrCodeConfig, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", ErrCodeConfig, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError naming the offending path, which
// may be empty for non-path configuration problems.
func NewConfigError(path, message string, err error) *ConfigError {
	return &ConfigError{Path: path, Message: message, Err: err}
}

// APIError covers network, auth, rate-limit and parse failures from the
// external model. RequestID ties log lines to a single failed call.
type APIError struct {
	Provider  string
	Message   string
	RequestID string
	Err       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s: %s [request_id=%s]", ErrCodeAPI, e.Provider, e.Message, e.RequestID)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates an APIError with a fresh request identifier.
func NewAPIError(provider, message string, err error) *APIError {
	return &APIError{
		Provider:  provider,
		Message:   message,
		RequestID: uuid.NewString(),
		Err:       err,
	}
}

// WriteError covers an unwritable output directory or file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: cannot write %s: %v", ErrCodeWrite, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// NewWriteError creates a WriteError for the given output path.
func NewWriteError(path string, err error) *WriteError {
	return &WriteError{Path: path, Err: err}
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsAPIError reports whether err is or wraps an APIError.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// IsWriteError reports whether err is or wraps a WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
