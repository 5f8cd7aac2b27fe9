// Package xmlname validates and splits XML names.
package xmlname

import (
	"fmt"
	"strings"
)

// SplitQName splits a prefixed name into prefix and local part without validation.
func SplitQName(name string) (prefix, local string, hasPrefix bool) {
	prefix, local, hasPrefix = strings.Cut(name, ":")
	if !hasPrefix {
		return "", name, false
	}
	return prefix, local, true
}

// ParseQName trims and validates a QName, returning its prefix and local part.
func ParseQName(name string) (prefix, local string, hasPrefix bool, err error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", "", false, fmt.Errorf("empty qname")
	}
	if err := validateQName(trimmed); err != nil {
		return "", "", false, err
	}
	prefix, local, hasPrefix = SplitQName(trimmed)
	return prefix, local, hasPrefix, nil
}

// IsValidNCName reports whether s is a non-colonized XML name.
func IsValidNCName(s string) bool {
	return validateNCName(s) == nil
}

// IsValidQName reports whether s is an optionally prefixed XML name.
func IsValidQName(s string) bool {
	return validateQName(s) == nil
}

func validateNCName(value string) error {
	if value == "" {
		return fmt.Errorf("NCName cannot be empty")
	}
	if strings.Contains(value, ":") {
		return fmt.Errorf("NCName cannot contain colons")
	}
	for i, r := range value {
		if i == 0 {
			if !isNameStartChar(r) {
				return fmt.Errorf("invalid NCName start character: %c", r)
			}
			continue
		}
		if !isNameChar(r) {
			return fmt.Errorf("invalid NCName character: %c", r)
		}
	}
	return nil
}

func validateQName(value string) error {
	if value == "" {
		return fmt.Errorf("QName cannot be empty")
	}
	prefix, local, hasPrefix := SplitQName(value)
	if !hasPrefix {
		if err := validateNCName(value); err != nil {
			return fmt.Errorf("invalid QName '%s': %w", value, err)
		}
		return nil
	}
	if prefix == "xmlns" {
		return fmt.Errorf("QName cannot use reserved prefix 'xmlns'")
	}
	for _, part := range []string{prefix, local} {
		if err := validateNCName(part); err != nil {
			return fmt.Errorf("invalid QName part '%s': %w", part, err)
		}
	}
	return nil
}

func isNameStartChar(r rune) bool {
	return r == '_' ||
		(r >= 'A' && r <= 'Z') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 0xC0 && r <= 0xD6) ||
		(r >= 0xD8 && r <= 0xF6) ||
		(r >= 0xF8 && r <= 0x2FF) ||
		(r >= 0x370 && r <= 0x37D) ||
		(r >= 0x37F && r <= 0x1FFF) ||
		(r >= 0x200C && r <= 0x200D) ||
		(r >= 0x2070 && r <= 0x218F) ||
		(r >= 0x2C00 && r <= 0x2FEF) ||
		(r >= 0x3001 && r <= 0xD7FF) ||
		(r >= 0xF900 && r <= 0xFDCF) ||
		(r >= 0xFDF0 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0xEFFFF)
}

func isNameChar(r rune) bool {
	return isNameStartChar(r) ||
		r == '-' || r == '.' ||
		(r >= '0' && r <= '9') ||
		r == 0xB7 ||
		(r >= 0x0300 && r <= 0x036F) ||
		(r >= 0x203F && r <= 0x2040)
}
