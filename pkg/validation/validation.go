// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-treasury.
//
// go-treasury is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package validation checks the operator supplied identifiers that end up
// in storage keys, share records and log lines: sealed document names,
// split ids, network labels and custodian role names.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidInput is wrapped by every validation error.
var ErrInvalidInput = errors.New("validation: invalid input")

const (
	// MaxNameLength bounds sealed document names and split ids.
	MaxNameLength = 128

	// MaxLabelLength bounds network labels and role names.
	MaxLabelLength = 64
)

var (
	// namePattern matches names usable as a single storage path segment
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

	// labelPattern matches network labels and role names
	labelPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\.:]+$`)
)

func invalid(what, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, what, fmt.Sprintf(format, args...))
}

// checkCommon rejects empty, overlong and control character input. The
// length check runs before any pattern match.
func checkCommon(what, s string, max int) error {
	if s == "" {
		return invalid(what, "cannot be empty")
	}
	if strings.Contains(s, "\x00") {
		return invalid(what, "contains null byte")
	}
	if len(s) > max {
		return invalid(what, "too long (max %d characters)", max)
	}
	for _, r := range s {
		if r < 32 || r == 127 {
			return invalid(what, "contains control characters")
		}
	}
	return nil
}

// ValidateName validates a sealed document name or split id. Names become
// one segment of a storage key, so separators and dot-only names are
// rejected.
func ValidateName(name string) error {
	if err := checkCommon("name", name, MaxNameLength); err != nil {
		return err
	}
	if strings.Trim(name, ".") == "" {
		return invalid("name", "cannot consist of dots only")
	}
	if !namePattern.MatchString(name) {
		return invalid("name", "contains invalid characters (allowed: a-z, A-Z, 0-9, -, _, .)")
	}
	return nil
}

// ValidateLabel validates a network label or custodian role name.
func ValidateLabel(label string) error {
	if err := checkCommon("label", label, MaxLabelLength); err != nil {
		return err
	}
	if !labelPattern.MatchString(label) {
		return invalid("label", "contains invalid characters (allowed: a-z, A-Z, 0-9, -, _, ., :)")
	}
	return nil
}

// ValidateRoleCounts checks every role name and count and that the counts
// add up to totalShares.
func ValidateRoleCounts(roles map[string]int, totalShares int) error {
	if len(roles) == 0 {
		return nil
	}
	sum := 0
	for role, n := range roles {
		if err := ValidateLabel(role); err != nil {
			return fmt.Errorf("role %q: %w", SanitizeForLog(role), err)
		}
		if n < 1 {
			return invalid("role", "%s must hold at least one share", role)
		}
		sum += n
	}
	if sum != totalShares {
		return invalid("role", "counts add up to %d, expected %d shares", sum, totalShares)
	}
	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 256 {
		s = s[:256] + "...[truncated]"
	}

	return s
}
