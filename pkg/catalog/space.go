package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Space is an ordering location, numbered from 1. Every product keeps a separate stock counter per space.
type Space int

// ParseSpace accepts "2", "Espacio 2" or "Space 2"; the number is the last word.
func ParseSpace(text string) (Space, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrUnknownSpace)
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpace, text)
	}
	return Space(n), nil
}

// Label renders the space the way the sales ledger names it.
func (s Space) Label(prefix string) string {
	if prefix == "" {
		return strconv.Itoa(int(s))
	}
	return prefix + " " + strconv.Itoa(int(s))
}

func (s Space) String() string { return strconv.Itoa(int(s)) }

// MarshalJSON writes the bare number.
func (s Space) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalJSON takes either a number or a label string.
func (s *Space) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 1 {
			return fmt.Errorf("%w: %d", ErrUnknownSpace, n)
		}
		*s = Space(n)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownSpace, data)
	}
	parsed, err := ParseSpace(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalText lets spaces be used as YAML and JSON map keys.
func (s *Space) UnmarshalText(text []byte) error {
	parsed, err := ParseSpace(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText pairs with UnmarshalText.
func (s Space) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
