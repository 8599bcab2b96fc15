package errors

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// ErrorSecurityLevel defines the level of detail in error messages
type ErrorSecurityLevel int

const (
	// ErrorLevelDebug provides full error details for debugging
	ErrorLevelDebug ErrorSecurityLevel = iota
	// ErrorLevelInfo provides general error information
	ErrorLevelInfo
	// ErrorLevelProduction provides minimal, sanitized error messages
	ErrorLevelProduction
)

// Global error security level - set once at start-up from the logging level
var globalErrorSecurityLevel = ErrorLevelProduction

var (
	pathPattern       = regexp.MustCompile(`[a-zA-Z]:\\[^\s]+|(?:^|\s)/[^\s]+`)
	ipPattern         = regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`)
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	credentialPattern = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)["\s]*[:=]["\s]*[a-zA-Z0-9_-]+`)
	bearerPattern     = regexp.MustCompile(`(?i)(sk|key)-[a-zA-Z0-9_-]{8,}`)
)

// SetErrorSecurityLevel sets the global error security level
func SetErrorSecurityLevel(level ErrorSecurityLevel) {
	globalErrorSecurityLevel = level
}

// LevelForLogging maps a logging level name onto an error security level.
func LevelForLogging(level string) ErrorSecurityLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return ErrorLevelDebug
	case "info":
		return ErrorLevelInfo
	default:
		return ErrorLevelProduction
	}
}

// SecureError provides secure error handling with configurable detail levels
type SecureError struct {
	publicMessage string
	detailMessage string
	errorCode     string
	cause         error
	stackTrace    []string
}

// NewSecureError creates a new secure error
func NewSecureError(publicMsg, detailMsg, errorCode string, cause error) *SecureError {
	se := &SecureError{
		publicMessage: sanitizePublicMessage(publicMsg),
		detailMessage: detailMsg,
		errorCode:     errorCode,
		cause:         cause,
	}

	if globalErrorSecurityLevel == ErrorLevelDebug {
		se.captureStackTrace()
	}

	return se
}

// NewSecureProviderError wraps a provider failure for display to the user.
func NewSecureProviderError(cause error) *SecureError {
	code := "PROVIDER_ERROR"
	if ce, ok := cause.(CorelynError); ok {
		code = ce.Code()
	}
	return NewSecureError(cause.Error(), fmt.Sprintf("provider exchange failed: %v", cause), code, cause)
}

// Error returns the appropriate error message based on security level
func (se *SecureError) Error() string {
	switch globalErrorSecurityLevel {
	case ErrorLevelDebug:
		return se.getDebugMessage()
	case ErrorLevelInfo:
		return se.getInfoMessage()
	default:
		return se.getProductionMessage()
	}
}

func (se *SecureError) Unwrap() error { return se.cause }

func (se *SecureError) getProductionMessage() string {
	if se.publicMessage != "" {
		return se.publicMessage
	}
	return "An error occurred. Please try again."
}

func (se *SecureError) getInfoMessage() string {
	if se.errorCode != "" {
		return fmt.Sprintf("%s (Code: %s)", se.getProductionMessage(), se.errorCode)
	}
	return se.getProductionMessage()
}

func (se *SecureError) getDebugMessage() string {
	var parts []string

	if se.detailMessage != "" {
		parts = append(parts, se.detailMessage)
	} else if se.publicMessage != "" {
		parts = append(parts, se.publicMessage)
	}
	if se.errorCode != "" {
		parts = append(parts, fmt.Sprintf("Code: %s", se.errorCode))
	}
	if len(se.stackTrace) > 0 {
		parts = append(parts, fmt.Sprintf("Stack: %s", strings.Join(se.stackTrace, " -> ")))
	}

	if len(parts) > 0 {
		return strings.Join(parts, " | ")
	}
	return "Unknown error"
}

func (se *SecureError) captureStackTrace() {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)

	se.stackTrace = make([]string, 0, n)
	for i := 0; i < n; i++ {
		fn := runtime.FuncForPC(pc[i])
		if fn != nil {
			file, line := fn.FileLine(pc[i])
			se.stackTrace = append(se.stackTrace, fmt.Sprintf("%s:%d", file, line))
		}
	}
}

// sanitizePublicMessage strips paths, addresses and credentials from a message
func sanitizePublicMessage(msg string) string {
	if msg == "" {
		return ""
	}

	sanitized := credentialPattern.ReplaceAllString(msg, "[CREDENTIAL]")
	sanitized = bearerPattern.ReplaceAllString(sanitized, "[CREDENTIAL]")
	sanitized = emailPattern.ReplaceAllString(sanitized, "[EMAIL]")
	sanitized = ipPattern.ReplaceAllString(sanitized, "[IP]")
	sanitized = pathPattern.ReplaceAllString(sanitized, " [PATH]")

	return strings.TrimSpace(sanitized)
}
