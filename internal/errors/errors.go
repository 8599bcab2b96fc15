package errors

import (
	stderrors "errors"
	"fmt"
)

// Base error interface that all custom errors implement
type CorelynError interface {
	error
	Type() string
	Code() string
	Cause() error
}

// APIError represents a non-2xx answer from a provider API
type APIError struct {
	provider string
	code     int
	message  string
	cause    error
}

func (e *APIError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("%s API error (status %d)", e.provider, e.code)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.provider, e.code, e.message)
}

func (e *APIError) Type() string  { return "API" }
func (e *APIError) Code() string  { return fmt.Sprintf("API_%d", e.code) }
func (e *APIError) Cause() error  { return e.cause }
func (e *APIError) Unwrap() error { return e.cause }

// Status returns the HTTP status code reported by the provider.
func (e *APIError) Status() int { return e.code }

// ConfigError represents configuration-related errors
type ConfigError struct {
	field   string
	message string
	cause   error
}

func (e *ConfigError) Error() string {
	if e.field == "" {
		return "config error: " + e.message
	}
	if e.cause != nil {
		return fmt.Sprintf("config error in field %q: %s (caused by: %v)", e.field, e.message, e.cause)
	}
	return fmt.Sprintf("config error in field %q: %s", e.field, e.message)
}

func (e *ConfigError) Type() string  { return "Config" }
func (e *ConfigError) Code() string  { return "CONFIG_INVALID" }
func (e *ConfigError) Cause() error  { return e.cause }
func (e *ConfigError) Unwrap() error { return e.cause }

// ValidationError represents input validation errors
type ValidationError struct {
	field   string
	message string
	value   interface{}
	cause   error
}

func (e *ValidationError) Error() string {
	if e.value != nil {
		return fmt.Sprintf("validation error for field %q with value %v: %s", e.field, e.value, e.message)
	}
	return fmt.Sprintf("validation error for field %q: %s", e.field, e.message)
}

func (e *ValidationError) Type() string  { return "Validation" }
func (e *ValidationError) Code() string  { return "VALIDATION_FAILED" }
func (e *ValidationError) Cause() error  { return e.cause }
func (e *ValidationError) Unwrap() error { return e.cause }

// StorageError represents database/storage-related errors
type StorageError struct {
	operation string
	message   string
	cause     error
}

func (e *StorageError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("storage error during %s operation: %s (caused by: %v)", e.operation, e.message, e.cause)
	}
	return fmt.Sprintf("storage error during %s operation: %s", e.operation, e.message)
}

func (e *StorageError) Type() string  { return "Storage" }
func (e *StorageError) Code() string  { return fmt.Sprintf("STORAGE_%s", e.operation) }
func (e *StorageError) Cause() error  { return e.cause }
func (e *StorageError) Unwrap() error { return e.cause }

// NetworkError represents transport or decoding failures talking to a provider
type NetworkError struct {
	url     string
	message string
	cause   error
}

func (e *NetworkError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("network error to %s: %s: %v", e.url, e.message, e.cause)
	}
	return fmt.Sprintf("network error to %s: %s", e.url, e.message)
}

func (e *NetworkError) Type() string  { return "Network" }
func (e *NetworkError) Code() string  { return "NETWORK_ERROR" }
func (e *NetworkError) Cause() error  { return e.cause }
func (e *NetworkError) Unwrap() error { return e.cause }

// UnknownCommandError is reported for an embedded command that is not in the registry
type UnknownCommandError struct {
	command string
}

func (e *UnknownCommandError) Error() string { return "Unknown tool: " + e.command }
func (e *UnknownCommandError) Type() string  { return "Command" }
func (e *UnknownCommandError) Code() string  { return "CMD_UNKNOWN" }
func (e *UnknownCommandError) Cause() error  { return nil }

// CommandError represents a failure raised by a registered command
type CommandError struct {
	command string
	message string
	cause   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("Tool %s threw: %s", e.command, e.message)
}

func (e *CommandError) Type() string  { return "Command" }
func (e *CommandError) Code() string  { return fmt.Sprintf("CMD_%s", e.command) }
func (e *CommandError) Cause() error  { return e.cause }
func (e *CommandError) Unwrap() error { return e.cause }

// PatternError is reported when a trigger pattern does not compile
type PatternError struct {
	rule    int
	pattern string
	cause   error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("trigger #%d pattern %q: %v", e.rule, e.pattern, e.cause)
}

func (e *PatternError) Type() string  { return "Trigger" }
func (e *PatternError) Code() string  { return "TRIGGER_PATTERN" }
func (e *PatternError) Cause() error  { return e.cause }
func (e *PatternError) Unwrap() error { return e.cause }

// ActionError is reported when a trigger action fails to run
type ActionError struct {
	rule    int
	message string
	cause   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("trigger #%d action: %s", e.rule, e.message)
}

func (e *ActionError) Type() string  { return "Trigger" }
func (e *ActionError) Code() string  { return "TRIGGER_ACTION" }
func (e *ActionError) Cause() error  { return e.cause }
func (e *ActionError) Unwrap() error { return e.cause }

// Message returns the action failure text without the rule prefix.
func (e *ActionError) Message() string { return e.message }

// Convenience constructors

// NewAPIError creates a new API error
func NewAPIError(provider string, code int, msg string, cause error) *APIError {
	return &APIError{provider: provider, code: code, message: msg, cause: cause}
}

// NewConfigError creates a new configuration error
func NewConfigError(field, msg string, cause error) *ConfigError {
	return &ConfigError{field: field, message: msg, cause: cause}
}

// NewValidationError creates a new validation error
func NewValidationError(field, msg string, value interface{}, cause error) *ValidationError {
	return &ValidationError{field: field, message: msg, value: value, cause: cause}
}

// NewStorageError creates a new storage error
func NewStorageError(operation, msg string, cause error) *StorageError {
	return &StorageError{operation: operation, message: msg, cause: cause}
}

// NewNetworkError creates a new network error
func NewNetworkError(url, msg string, cause error) *NetworkError {
	return &NetworkError{url: url, message: msg, cause: cause}
}

// NewUnknownCommandError creates a new unknown command error
func NewUnknownCommandError(command string) *UnknownCommandError {
	return &UnknownCommandError{command: command}
}

// NewCommandError creates a new command error
func NewCommandError(command, msg string, cause error) *CommandError {
	return &CommandError{command: command, message: msg, cause: cause}
}

// NewPatternError creates a new trigger pattern error
func NewPatternError(rule int, pattern string, cause error) *PatternError {
	return &PatternError{rule: rule, pattern: pattern, cause: cause}
}

// NewActionError creates a new trigger action error
func NewActionError(rule int, msg string, cause error) *ActionError {
	return &ActionError{rule: rule, message: msg, cause: cause}
}

// IsProviderError reports whether err came from the provider boundary.
func IsProviderError(err error) bool {
	var apiErr *APIError
	var netErr *NetworkError
	return stderrors.As(err, &apiErr) || stderrors.As(err, &netErr)
}

// Error unwrapping helper - extracts the root cause
func Unwrap(err error) error {
	for {
		unwrapped, ok := err.(interface{ Cause() error })
		if !ok {
			break
		}
		cause := unwrapped.Cause()
		if cause == nil {
			break
		}
		err = cause
	}
	return err
}
