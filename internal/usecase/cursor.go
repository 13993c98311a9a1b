package usecase

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildCursor encodes the last delivered id as an opaque page cursor.
func BuildCursor(lastID int64) string {
	if lastID <= 0 {
		return ""
	}
	return fmt.Sprintf(":%d", lastID)
}

// ParseCursor returns the id boundary for the next page; empty means first page.
func ParseCursor(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if !strings.HasPrefix(s, ":") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, s)
	}
	id, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, s)
	}
	return id, nil
}
