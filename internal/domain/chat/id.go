package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is an opaque server-assigned identifier. The backend emits numeric ids,
// other deployments use strings; both decode into the same value.
type ID string

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

func (id ID) numeric() (uint64, bool) {
	if id == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil || strconv.FormatUint(n, 10) != string(id) {
		return 0, false
	}
	return n, true
}

// Compare orders ids numerically when both are canonical decimals, lexically
// otherwise. "007" and "7" are distinct ids.
func (id ID) Compare(other ID) int {
	a, aok := id.numeric()
	b, bok := other.numeric()
	if aok && bok {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(string(id), string(other))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("chat: decode id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chat: decode id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes canonical decimals as JSON numbers and everything else,
// including zero-padded digits, as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, ok := id.numeric(); ok {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}
