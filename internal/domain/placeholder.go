package domain

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PlaceholderValueType tags the variant of a placeholder value.
type PlaceholderValueType string

const (
	PlaceholderValueTypeString    PlaceholderValueType = "STRING"
	PlaceholderValueTypeReference PlaceholderValueType = "SPREADSHEET_REFERENCE"
)

const (
	// DefaultOpenDelimiter and DefaultCloseDelimiter delimit placeholder
	// tokens in template subjects and bodies.
	DefaultOpenDelimiter  = "{"
	DefaultCloseDelimiter = "}"

	maxPlaceholderKeyLength   = 50
	maxPlaceholderValueLength = 500
)

var placeholderKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PlaceholderValue is either a literal string or a spreadsheet reference.
type PlaceholderValue struct {
	Type      PlaceholderValueType
	String    string
	Reference *SpreadsheetReference
}

// Text returns the textual form used during substitution: the literal string,
// or the raw column letter for column references.
func (v PlaceholderValue) Text() string {
	if v.Type == PlaceholderValueTypeString {
		return v.String
	}
	if v.Reference == nil {
		return ""
	}
	if letter, err := v.Reference.ColumnLetter(); err == nil {
		return letter
	}
	return v.Reference.Value
}

// PlaceholderStore maps placeholder keys to values. Keys are unique per
// store; the delimiter pair is fixed at construction.
type PlaceholderStore struct {
	openDelimiter  string
	closeDelimiter string
	values         map[string]PlaceholderValue
	order          []string
}

// NewPlaceholderStore creates a store with the default "{" "}" delimiters.
func NewPlaceholderStore() *PlaceholderStore {
	store, _ := NewPlaceholderStoreWithDelimiters(DefaultOpenDelimiter, DefaultCloseDelimiter)
	return store
}

// NewPlaceholderStoreWithDelimiters creates a store with a custom delimiter
// pair. Both delimiters must be single characters and must differ.
func NewPlaceholderStoreWithDelimiters(open, close string) (*PlaceholderStore, error) {
	if len(open) != 1 || len(close) != 1 {
		return nil, NewValidationError("delimiters must be single characters")
	}
	if open == close {
		return nil, NewValidationError("open and close delimiters must differ")
	}
	return &PlaceholderStore{
		openDelimiter:  open,
		closeDelimiter: close,
		values:         make(map[string]PlaceholderValue),
	}, nil
}

// OpenDelimiter returns the opening delimiter character.
func (s *PlaceholderStore) OpenDelimiter() string { return s.openDelimiter }

// CloseDelimiter returns the closing delimiter character.
func (s *PlaceholderStore) CloseDelimiter() string { return s.closeDelimiter }

func validatePlaceholderKey(key string) error {
	if key == "" || len(key) > maxPlaceholderKeyLength {
		return NewValidationError(fmt.Sprintf("placeholder key must be 1-%d characters", maxPlaceholderKeyLength))
	}
	if !placeholderKeyPattern.MatchString(key) {
		return NewValidationError("placeholder key may only contain letters, digits, underscores and hyphens")
	}
	return nil
}

// AddStringPlaceholder registers a literal string value under key.
func (s *PlaceholderStore) AddStringPlaceholder(key, value string) error {
	if err := validatePlaceholderKey(key); err != nil {
		return err
	}
	if value == "" || len(value) > maxPlaceholderValueLength {
		return NewValidationError(fmt.Sprintf("placeholder value must be 1-%d characters", maxPlaceholderValueLength))
	}
	if _, exists := s.values[key]; exists {
		return NewValidationError(fmt.Sprintf("placeholder key %q already exists", key))
	}
	s.values[key] = PlaceholderValue{Type: PlaceholderValueTypeString, String: value}
	s.order = append(s.order, key)
	return nil
}

// AddReferencePlaceholder registers a spreadsheet reference under key.
func (s *PlaceholderStore) AddReferencePlaceholder(key string, ref SpreadsheetReference) error {
	if err := validatePlaceholderKey(key); err != nil {
		return err
	}
	if _, exists := s.values[key]; exists {
		return NewValidationError(fmt.Sprintf("placeholder key %q already exists", key))
	}
	s.values[key] = PlaceholderValue{Type: PlaceholderValueTypeReference, Reference: &ref}
	s.order = append(s.order, key)
	return nil
}

// Update replaces the value of an existing key.
func (s *PlaceholderStore) Update(key string, value PlaceholderValue) error {
	if _, exists := s.values[key]; !exists {
		return &ErrNotFound{Entity: "placeholder", ID: key}
	}
	s.values[key] = value
	return nil
}

// Remove deletes a key from the store.
func (s *PlaceholderStore) Remove(key string) error {
	if _, exists := s.values[key]; !exists {
		return &ErrNotFound{Entity: "placeholder", ID: key}
	}
	delete(s.values, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the value stored under key.
func (s *PlaceholderStore) Get(key string) (PlaceholderValue, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys lists the stored keys in insertion order.
func (s *PlaceholderStore) Keys() []string {
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Len returns the number of stored placeholders.
func (s *PlaceholderStore) Len() int { return len(s.values) }

// ReferenceKeys lists the keys holding spreadsheet references, in insertion
// order. The order is the canonical batch-fetch request order.
func (s *PlaceholderStore) ReferenceKeys() []string {
	var keys []string
	for _, k := range s.order {
		if s.values[k].Type == PlaceholderValueTypeReference {
			keys = append(keys, k)
		}
	}
	return keys
}

// ReplaceInString substitutes every delimited placeholder token in input with
// its stored textual value. Matches are shortest non-greedy delimited
// substrings. An unknown key fails the entire operation.
func (s *PlaceholderStore) ReplaceInString(input string) (string, error) {
	return s.replace(input, func(key string) (string, error) {
		value, ok := s.values[key]
		if !ok {
			return "", NewValidationError(fmt.Sprintf("unknown placeholder key %q", key))
		}
		return value.Text(), nil
	})
}

// ReplaceWithValues substitutes delimited tokens using an explicit key-value
// map instead of the stored values. Used by the resolver once cell values
// have been fetched.
func (s *PlaceholderStore) ReplaceWithValues(input string, values map[string]string) (string, error) {
	return s.replace(input, func(key string) (string, error) {
		value, ok := values[key]
		if !ok {
			return "", NewValidationError(fmt.Sprintf("no value for placeholder key %q", key))
		}
		return value, nil
	})
}

func (s *PlaceholderStore) replace(input string, lookup func(string) (string, error)) (string, error) {
	if err := CheckDelimiterBalance(input, s.openDelimiter, s.closeDelimiter); err != nil {
		return "", err
	}

	var out strings.Builder
	rest := input
	for {
		open := strings.Index(rest, s.openDelimiter)
		if open < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		close := strings.Index(rest[open:], s.closeDelimiter)
		if close < 0 {
			// Unreachable after the balance check; keep the remainder intact.
			out.WriteString(rest)
			return out.String(), nil
		}
		close += open

		key := rest[open+1 : close]
		value, err := lookup(key)
		if err != nil {
			return "", err
		}
		out.WriteString(rest[:open])
		out.WriteString(value)
		rest = rest[close+1:]
	}
}

// CheckDelimiterBalance verifies that every opening delimiter in s is closed
// before the string ends and that pairs do not nest.
func CheckDelimiterBalance(s, open, close string) error {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i : i+1] {
		case open:
			if depth > 0 {
				return NewValidationError("nested placeholder delimiters are not allowed")
			}
			depth++
		case close:
			if depth == 0 {
				return NewValidationError("unmatched closing delimiter")
			}
			depth--
		}
	}
	if depth != 0 {
		return NewValidationError("unmatched opening delimiter")
	}
	return nil
}

// placeholderJSON is the wire form of a single placeholder value.
type placeholderJSON struct {
	Type  PlaceholderValueType `json:"type"`
	Value json.RawMessage      `json:"value"`
}

type referenceJSON struct {
	Column *string `json:"column,omitempty"`
	Row    *string `json:"row,omitempty"`
	Cell   *string `json:"cell,omitempty"`
}

// MarshalJSON serializes the store as a single object keyed by placeholder
// key; references carry exactly one of {column, row, cell}.
func (s *PlaceholderStore) MarshalJSON() ([]byte, error) {
	out := make(map[string]placeholderJSON, len(s.values))
	for key, value := range s.values {
		switch value.Type {
		case PlaceholderValueTypeString:
			raw, err := json.Marshal(value.String)
			if err != nil {
				return nil, err
			}
			out[key] = placeholderJSON{Type: PlaceholderValueTypeString, Value: raw}
		case PlaceholderValueTypeReference:
			if value.Reference == nil {
				return nil, NewValidationError(fmt.Sprintf("placeholder %q has no reference", key))
			}
			var ref referenceJSON
			v := value.Reference.Value
			switch value.Reference.Type {
			case ReferenceTypeColumn:
				ref.Column = &v
			case ReferenceTypeRow:
				ref.Row = &v
			case ReferenceTypeCell:
				ref.Cell = &v
			default:
				return nil, NewValidationError(fmt.Sprintf("placeholder %q holds an unsupported reference type %s", key, value.Reference.Type))
			}
			raw, err := json.Marshal(ref)
			if err != nil {
				return nil, err
			}
			out[key] = placeholderJSON{Type: PlaceholderValueTypeReference, Value: raw}
		default:
			return nil, NewValidationError(fmt.Sprintf("placeholder %q has unknown type %s", key, value.Type))
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a store serialized by MarshalJSON. The delimiter
// pair resets to the default.
func (s *PlaceholderStore) UnmarshalJSON(data []byte) error {
	var in map[string]placeholderJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to unmarshal placeholders: %w", err)
	}

	fresh := NewPlaceholderStore()
	for key, entry := range in {
		switch entry.Type {
		case PlaceholderValueTypeString:
			var value string
			if err := json.Unmarshal(entry.Value, &value); err != nil {
				return fmt.Errorf("failed to unmarshal placeholder %q: %w", key, err)
			}
			if err := fresh.AddStringPlaceholder(key, value); err != nil {
				return err
			}
		case PlaceholderValueTypeReference:
			var ref referenceJSON
			if err := json.Unmarshal(entry.Value, &ref); err != nil {
				return fmt.Errorf("failed to unmarshal placeholder %q: %w", key, err)
			}
			var (
				parsed SpreadsheetReference
				err    error
			)
			switch {
			case ref.Column != nil:
				parsed, err = NewColumnReference(*ref.Column)
			case ref.Row != nil:
				parsed, err = NewRowReference(*ref.Row)
			case ref.Cell != nil:
				parsed, err = NewCellReference(*ref.Cell)
			default:
				err = NewValidationError(fmt.Sprintf("placeholder %q reference carries no address", key))
			}
			if err != nil {
				return err
			}
			if err := fresh.AddReferencePlaceholder(key, parsed); err != nil {
				return err
			}
		default:
			return NewValidationError(fmt.Sprintf("placeholder %q has unknown type %s", key, entry.Type))
		}
	}

	*s = *fresh
	return nil
}

// Value implements driver.Valuer for database storage.
func (s PlaceholderStore) Value() (driver.Value, error) {
	return json.Marshal(&s)
}

// Scan implements sql.Scanner for database retrieval.
func (s *PlaceholderStore) Scan(value interface{}) error {
	if value == nil {
		*s = *NewPlaceholderStore()
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return sql.ErrNoRows
	}
	cloned := bytes.Clone(b)
	return json.Unmarshal(cloned, s)
}
