package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ReferenceType tags the variant of a SpreadsheetReference.
type ReferenceType string

const (
	ReferenceTypeColumn      ReferenceType = "COLUMN"
	ReferenceTypeRow         ReferenceType = "ROW"
	ReferenceTypeCell        ReferenceType = "CELL"
	ReferenceTypeColumnRange ReferenceType = "COLUMN_RANGE"
	ReferenceTypeRowRange    ReferenceType = "ROW_RANGE"
	ReferenceTypeRange       ReferenceType = "RANGE"
)

var (
	columnPattern = regexp.MustCompile(`^[A-Z]+$`)
	rowPattern    = regexp.MustCompile(`^[1-9][0-9]*$`)
	cellPattern   = regexp.MustCompile(`^([A-Z]+)([1-9][0-9]*)$`)
)

// SpreadsheetReference is a typed, validated spreadsheet address. The zero
// value is invalid; use the constructors.
type SpreadsheetReference struct {
	Type       ReferenceType `json:"type"`
	SheetTitle string        `json:"sheet_title,omitempty"`
	Value      string        `json:"value"`
}

// NewColumnReference creates a reference to a whole column ("A", "BC").
func NewColumnReference(column string) (SpreadsheetReference, error) {
	if !columnPattern.MatchString(column) {
		return SpreadsheetReference{}, &ErrInvalidReference{Input: column, Reason: "column must match [A-Z]+"}
	}
	return SpreadsheetReference{Type: ReferenceTypeColumn, Value: column}, nil
}

// NewRowReference creates a reference to a whole row ("3").
func NewRowReference(row string) (SpreadsheetReference, error) {
	if !rowPattern.MatchString(row) {
		return SpreadsheetReference{}, &ErrInvalidReference{Input: row, Reason: "row must be a positive integer"}
	}
	return SpreadsheetReference{Type: ReferenceTypeRow, Value: row}, nil
}

// NewRowReferenceFromNumber creates a row reference from a 1-based row number.
func NewRowReferenceFromNumber(row int) (SpreadsheetReference, error) {
	return NewRowReference(strconv.Itoa(row))
}

// NewCellReference creates a reference to a single cell ("B7").
func NewCellReference(cell string) (SpreadsheetReference, error) {
	if !cellPattern.MatchString(cell) {
		return SpreadsheetReference{}, &ErrInvalidReference{Input: cell, Reason: "cell must be a column letter followed by a row number"}
	}
	return SpreadsheetReference{Type: ReferenceTypeCell, Value: cell}, nil
}

// NewRangeReference creates a range reference ("A1:B2"). Ranges whose
// endpoints share a column letter classify as COLUMN_RANGE, ranges sharing a
// row number as ROW_RANGE, everything else as RANGE.
func NewRangeReference(rng string) (SpreadsheetReference, error) {
	parts := strings.Split(rng, ":")
	if len(parts) != 2 {
		return SpreadsheetReference{}, &ErrInvalidReference{Input: rng, Reason: "range must have exactly two endpoints"}
	}
	start := cellPattern.FindStringSubmatch(parts[0])
	end := cellPattern.FindStringSubmatch(parts[1])
	if start == nil || end == nil {
		return SpreadsheetReference{}, &ErrInvalidReference{Input: rng, Reason: "range endpoints must be well-formed cells"}
	}

	refType := ReferenceTypeRange
	if start[1] == end[1] {
		refType = ReferenceTypeColumnRange
	} else if start[2] == end[2] {
		refType = ReferenceTypeRowRange
	}
	return SpreadsheetReference{Type: refType, Value: rng}, nil
}

// WithSheet returns a copy of the reference bound to a sheet title.
func (r SpreadsheetReference) WithSheet(title string) SpreadsheetReference {
	r.SheetTitle = title
	return r
}

// ColumnLetter extracts the column letter. For ranges it returns the left
// endpoint's column.
func (r SpreadsheetReference) ColumnLetter() (string, error) {
	switch r.Type {
	case ReferenceTypeColumn:
		return r.Value, nil
	case ReferenceTypeCell:
		m := cellPattern.FindStringSubmatch(r.Value)
		return m[1], nil
	case ReferenceTypeColumnRange, ReferenceTypeRowRange, ReferenceTypeRange:
		m := cellPattern.FindStringSubmatch(strings.Split(r.Value, ":")[0])
		return m[1], nil
	default:
		return "", &ErrInvalidReference{Input: r.Value, Reason: "reference has no column component"}
	}
}

// RowNumber extracts the 1-based row number. For ranges it returns the left
// endpoint's row.
func (r SpreadsheetReference) RowNumber() (int, error) {
	switch r.Type {
	case ReferenceTypeRow:
		return strconv.Atoi(r.Value)
	case ReferenceTypeCell:
		m := cellPattern.FindStringSubmatch(r.Value)
		return strconv.Atoi(m[2])
	case ReferenceTypeColumnRange, ReferenceTypeRowRange, ReferenceTypeRange:
		m := cellPattern.FindStringSubmatch(strings.Split(r.Value, ":")[0])
		return strconv.Atoi(m[2])
	default:
		return 0, &ErrInvalidReference{Input: r.Value, Reason: "reference has no row component"}
	}
}

// ColumnIndex converts the column letter to a zero-based index (A=0, Z=25, AA=26).
func (r SpreadsheetReference) ColumnIndex() (int, error) {
	letter, err := r.ColumnLetter()
	if err != nil {
		return 0, err
	}
	index := 0
	for _, c := range letter {
		index = index*26 + int(c-'A') + 1
	}
	return index - 1, nil
}

// RowIndex converts the row number to a zero-based index.
func (r SpreadsheetReference) RowIndex() (int, error) {
	row, err := r.RowNumber()
	if err != nil {
		return 0, err
	}
	return row - 1, nil
}

// A1 renders the reference in A1 notation. Single columns and rows expand to
// self-ranges ("B" -> "B:B", "3" -> "3:3") so single selects address the full
// line; cells and ranges render as-is. A bound sheet title is prefixed.
func (r SpreadsheetReference) A1() string {
	var notation string
	switch r.Type {
	case ReferenceTypeColumn, ReferenceTypeRow:
		notation = r.Value + ":" + r.Value
	default:
		notation = r.Value
	}
	if r.SheetTitle == "" {
		return notation
	}
	title := r.SheetTitle
	if strings.ContainsAny(title, " !'") {
		title = "'" + strings.ReplaceAll(title, "'", "''") + "'"
	}
	return fmt.Sprintf("%s!%s", title, notation)
}

// String implements fmt.Stringer.
func (r SpreadsheetReference) String() string {
	return r.A1()
}
