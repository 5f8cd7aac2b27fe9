// Package errors defines the error values returned when rule set
// configuration is rejected or a streamed document cannot be read.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a configuration failure.
type ErrorCode string

const (
	// CodeRootElement indicates the document root is not a Properties element.
	CodeRootElement ErrorCode = "xprop-root-element"
	// CodeDuplicateProperty indicates a property is declared more than once.
	CodeDuplicateProperty ErrorCode = "xprop-duplicate-property"
	// CodeUnresolvedPrefix indicates a property element prefix has no namespace binding.
	CodeUnresolvedPrefix ErrorCode = "xprop-unresolved-prefix"
	// CodeMissingMode indicates a property without value or xpath declares no mode.
	CodeMissingMode ErrorCode = "xprop-missing-mode"
	// CodeInvalidAttribute indicates an unknown keyword in a mode, precedence or qnameValue attribute.
	CodeInvalidAttribute ErrorCode = "xprop-invalid-attribute"
	// CodeInvalidXPath indicates an empty or unsupported xpath attribute.
	CodeInvalidXPath ErrorCode = "xprop-invalid-xpath"
	// CodeInvalidRule indicates a property whose attributes do not form a valid rule.
	CodeInvalidRule ErrorCode = "xprop-invalid-rule"
	// CodeInvalidDocument indicates the configuration is not well-formed XML.
	CodeInvalidDocument ErrorCode = "xprop-invalid-document"
)

// ErrDocument marks failures reading the streamed document.
var ErrDocument = errors.New("xml document error")

// Config describes a rejected rule set configuration.
//
//nolint:errname // public API name mirrors the configuration domain term.
type Config struct {
	Err       error
	Code      ErrorCode
	Element   string
	Attribute string
	Message   string
	Expected  []string
	Line      int
}

// Error formats the failure with its code and location.
func (c *Config) Error() string {
	if c == nil {
		return "config <nil>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", c.Code, c.Message)
	switch {
	case c.Element != "" && c.Attribute != "":
		fmt.Fprintf(&b, " at <%s @%s>", c.Element, c.Attribute)
	case c.Element != "":
		fmt.Fprintf(&b, " at <%s>", c.Element)
	}
	if c.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", c.Line)
	}
	if len(c.Expected) > 0 {
		fmt.Fprintf(&b, " (expected: %s)", strings.Join(c.Expected, ", "))
	}
	if c.Err != nil {
		fmt.Fprintf(&b, ": %v", c.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (c *Config) Unwrap() error {
	if c == nil {
		return nil
	}
	return c.Err
}

// NewConfig builds a Config with a code, message and element.
func NewConfig(code ErrorCode, element, msg string) *Config {
	return &Config{Code: code, Element: element, Message: msg}
}

// NewConfigf formats a message and builds a Config.
func NewConfigf(code ErrorCode, element, format string, args ...any) *Config {
	return NewConfig(code, element, fmt.Sprintf(format, args...))
}

// WithAttribute returns a copy naming the offending attribute.
func (c *Config) WithAttribute(attr string) *Config {
	out := *c
	out.Attribute = attr
	return &out
}

// WithCause returns a copy wrapping err.
func (c *Config) WithCause(err error) *Config {
	out := *c
	out.Err = err
	return &out
}

// AsConfig extracts a Config from an error chain.
func AsConfig(err error) (*Config, bool) {
	if err == nil {
		return nil, false
	}
	var cfg *Config
	if errors.As(err, &cfg) && cfg != nil {
		return cfg, true
	}
	return nil, false
}

// IsCode reports whether err carries a Config with the given code.
func IsCode(err error, code ErrorCode) bool {
	cfg, ok := AsConfig(err)
	return ok && cfg.Code == code
}
