// Package sequence allocates human-readable sequential identifiers such as
// SU001 or PAY-0001 for owning entities.
package sequence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

var (
	// ErrNegativeCounter is returned when rendering a counter below zero.
	ErrNegativeCounter = errors.New("sequence: counter must not be negative")
	// ErrMalformedIdentifier indicates an identifier without the expected prefix+digits shape.
	ErrMalformedIdentifier = errors.New("sequence: malformed identifier")
	// ErrNoIdentifier is returned by a Store when the scope holds no identifier yet.
	ErrNoIdentifier = errors.New("sequence: no identifier allocated")
	// ErrCollision is returned by entity writers when the allocated identifier
	// is already stored. Only the query-max strategy can produce it.
	ErrCollision = fmt.Errorf("sequence: identifier already taken: %w", shared.ErrDuplicate)
)

// Format describes how a counter is displayed.
type Format struct {
	Prefix string
	Width  int
}

// Render returns Prefix followed by n zero padded to Width. Values wider than
// Width are rendered in full.
func (f Format) Render(n int64) (string, error) {
	if n < 0 {
		return "", ErrNegativeCounter
	}
	width := f.Width
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s%0*d", f.Prefix, width, n), nil
}

// Parse returns the counter of id. id must be Prefix followed by one or more
// digits and nothing else.
func (f Format) Parse(id string) (int64, error) {
	if !strings.HasPrefix(id, f.Prefix) {
		return 0, fmt.Errorf("%w: %q lacks prefix %q", ErrMalformedIdentifier, id, f.Prefix)
	}
	digits := id[len(f.Prefix):]
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %q is not %s followed by digits", ErrMalformedIdentifier, id, f.Prefix)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedIdentifier, id, err)
	}
	return n, nil
}

// Parse extracts the trailing numeric run of id regardless of prefix.
func Parse(id string) (int64, error) {
	end := len(id)
	start := end
	for start > 0 && id[start-1] >= '0' && id[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, fmt.Errorf("%w: %q", ErrMalformedIdentifier, id)
	}
	n, err := strconv.ParseInt(id[start:end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedIdentifier, id, err)
	}
	return n, nil
}
