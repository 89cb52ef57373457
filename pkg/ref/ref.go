// Package ref decodes the backend's many-to-one reference fields.
package ref

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/opticalpos/opticalpos/pkg/opt"
)

// Many2One is a relational reference delivered as a two-element array
// [id, displayName]. Wrap it in opt.Value when the relation may be empty
// (the backend sends false).
type Many2One struct {
	ID   int64
	Name string
}

// New builds a reference.
func New(id int64, name string) Many2One {
	return Many2One{ID: id, Name: name}
}

// MarshalJSON writes [id, name].
func (m Many2One) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{m.ID, m.Name})
}

// UnmarshalJSON reads [id, name]. Anything else is an error, including a bare
// id: callers must never treat the field as a flat id.
func (m *Many2One) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("many2one: expected [id, name]: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("many2one: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &m.ID); err != nil {
		return fmt.Errorf("many2one id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &m.Name); err != nil {
		return fmt.Errorf("many2one name: %w", err)
	}
	return nil
}

// String renders the display name.
func (m Many2One) String() string {
	return m.Name
}

// ParseID reads an id from loosely typed form input: a number, a numeric
// string, or a [id, name] pair. Blank strings, false, null, zero and
// unparseable input are absent.
func ParseID(raw []byte) opt.Value[int64] {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return opt.None[int64]()
	}
	var id int64
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return opt.None[int64]()
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return opt.None[int64]()
		}
		id = n
	case '[':
		var m Many2One
		if err := m.UnmarshalJSON(raw); err != nil {
			return opt.None[int64]()
		}
		id = m.ID
	default:
		if err := json.Unmarshal(raw, &id); err != nil {
			return opt.None[int64]()
		}
	}
	if id <= 0 {
		return opt.None[int64]()
	}
	return opt.Some(id)
}
