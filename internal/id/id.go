// Package id formats and parses public journal entry identifiers.
//
// An entry ID is "YYYY-MM-NNN": the entry's posting month and its sequence
// within that month, starting at 1. Sequences wider than three digits are
// printed in full ("2025-01-1000").
package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatEntryID returns an entry ID like "2025-01-001".
func FormatEntryID(year, month, seq int) string {
	return fmt.Sprintf("%04d-%02d-%03d", year, month, seq)
}

// MonthKey returns the "YYYY-MM" bucket an entry dated d is numbered in.
func MonthKey(d time.Time) string {
	return d.Format("2006-01")
}

// ForDate returns the entry ID for sequence seq in d's month.
func ForDate(d time.Time, seq int) string {
	return FormatEntryID(d.Year(), int(d.Month()), seq)
}

// ParseEntryID parses "2025-01-001" into year, month, seq.
func ParseEntryID(id string) (year, month, seq int, err error) {
	parts := strings.SplitN(strings.TrimSpace(id), "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid entry ID format: %q", id)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in entry ID %q: %w", id, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in entry ID %q: %w", id, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("month out of range in entry ID %q", id)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in entry ID %q: %w", id, err)
	}
	if seq < 1 {
		return 0, 0, 0, fmt.Errorf("sequence must be positive in entry ID %q", id)
	}

	return year, month, seq, nil
}

// Valid reports whether s parses as an entry ID.
func Valid(s string) bool {
	_, _, _, err := ParseEntryID(s)
	return err == nil
}
