package middleware

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// ValidateRunID validates a run ID.
func ValidateRunID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid run ID format")
	}
	return nil
}

// ParseSequence parses an after_sequence cursor. Empty means from the start.
func ParseSequence(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("after_sequence must be a non-negative integer")
	}
	return seq, nil
}

// ParseLimit parses a page size. Empty means the default; values must lie
// in [1, 100].
func ParseLimit(s string) (int, error) {
	if s == "" {
		return defaultPageSize, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxPageSize {
		return 0, errors.New("limit must be between 1 and 100")
	}
	return n, nil
}
