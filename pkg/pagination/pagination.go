package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxLimit caps how many items any page can request.
	MaxLimit = 100

	cursorPrefix = "o:"
)

// Params holds pagination inputs from controllers. A zero Limit means no limit.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the position of the next page within a derived list.
type Cursor struct {
	Offset int
}

// NormalizeLimit clamps limit to MaxLimit; non-positive values mean unlimited.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 0
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor builds an opaque cursor string.
func EncodeCursor(cursor Cursor) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(cursor.Offset)))
}

// ParseCursor decodes a cursor string. An empty value is the first page.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	raw, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return nil, fmt.Errorf("invalid cursor offset")
	}
	return &Cursor{Offset: offset}, nil
}

// Page slices items per params and returns the cursor of the following page, if any.
func Page[T any](items []T, params Params) ([]T, string, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	start := 0
	if cursor != nil {
		start = min(cursor.Offset, len(items))
	}
	end := len(items)
	if limit := NormalizeLimit(params.Limit); limit > 0 && start+limit < end {
		end = start + limit
	}
	next := ""
	if end < len(items) {
		next = EncodeCursor(Cursor{Offset: end})
	}
	return items[start:end], next, nil
}
