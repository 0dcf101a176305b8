package library

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

var phonePattern = regexp.MustCompile(`^[\d\s\-()]+$`)

func requireNonBlank(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return newError(ErrValidation, "%s cannot be empty", field)
	}
	return nil
}

func requireMinLength(value string, n int, field string) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		return newError(ErrValidation, "%s must have at least %d characters", field, n)
	}
	return nil
}

func requirePositive(n int, field string) error {
	if n < 1 {
		return newError(ErrValidation, "%s must be at least 1, got %d", field, n)
	}
	return nil
}

func requireNonNegative(v float64, field string) error {
	if v < 0 {
		return newError(ErrValidation, "%s cannot be negative", field)
	}
	return nil
}

func requireOneOf(value string, allowed []string, field string) error {
	if !slices.Contains(allowed, value) {
		return newError(ErrValidation, "%s must be one of: %s", field, strings.Join(allowed, ", "))
	}
	return nil
}

// requirePhone accepts digits, spaces, dashes and parentheses with at least
// seven digits.
func requirePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return newError(ErrValidation, "phone contains invalid characters")
	}
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 {
		return newError(ErrValidation, "phone must have at least 7 digits")
	}
	return nil
}

// bcrypt refuses longer inputs.
const maxPasswordBytes = 72

func requirePassword(pw string) error {
	if err := requireNonBlank(pw, "password"); err != nil {
		return err
	}
	if len(pw) > maxPasswordBytes {
		return newError(ErrValidation, "password cannot exceed %d bytes", maxPasswordBytes)
	}
	return nil
}

// firstError returns the first non-nil error.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
