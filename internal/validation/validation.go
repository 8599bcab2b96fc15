// Package validation checks values that cross from the user or the model into
// the filesystem, a subprocess or the REPL command table.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Validation constants
const (
	MaxCommandLength     = 1000
	MaxUserMessageLength = 50000
	MaxFilenameLength    = 255
	MaxURLLength         = 2048
)

var (
	// Slash command validation - only allow specific characters
	CommandPattern = regexp.MustCompile(`^/[a-zA-Z0-9\s\-_./:@#]+$`)

	CommandInjectionPattern = regexp.MustCompile(`(;|\|\||&&|\$\(|\$\{|<\(|>\(|\n|\r)`)

	reservedFilenames = map[string]bool{".": true, "..": true}
)

// ValidateCommand validates a REPL slash command line.
func ValidateCommand(input string) error {
	if input == "" {
		return errors.New("command cannot be empty")
	}

	if len(input) > MaxCommandLength {
		return fmt.Errorf("command too long (max %d characters)", MaxCommandLength)
	}

	if !CommandPattern.MatchString(input) {
		return errors.New("command contains invalid characters")
	}

	if CommandInjectionPattern.MatchString(input) {
		return errors.New("command appears to contain injection attempt")
	}

	return nil
}

// ValidateUserMessage checks a message before it is sent to the provider.
func ValidateUserMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message cannot be empty")
	}
	if len(message) > MaxUserMessageLength {
		return fmt.Errorf("message too long (max %d characters)", MaxUserMessageLength)
	}
	if strings.Contains(message, "\x00") {
		return errors.New("message contains null bytes")
	}
	return nil
}

// ValidateFilename accepts a bare file name: no directories, no traversal and
// no control characters.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("filename cannot be empty")
	}
	if len(name) > MaxFilenameLength {
		return fmt.Errorf("filename too long (max %d characters)", MaxFilenameLength)
	}
	if reservedFilenames[name] {
		return fmt.Errorf("filename %q is reserved", name)
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("filename %q must not contain a path", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.New("filename contains control characters")
		}
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return errors.New("URL cannot be empty")
	}

	if len(raw) > MaxURLLength {
		return errors.New("URL too long")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	for _, r := range raw {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errors.New("URL contains whitespace or control characters")
		}
	}

	return nil
}

// SanitizeInput trims input, drops NUL bytes and limits it to maxLength runes.
func SanitizeInput(input string, maxLength int) string {
	if input == "" {
		return ""
	}

	sanitized := strings.ReplaceAll(input, "\x00", "")
	sanitized = strings.TrimSpace(sanitized)

	runes := []rune(sanitized)
	if maxLength > 0 && len(runes) > maxLength {
		sanitized = string(runes[:maxLength])
	}

	return sanitized
}
