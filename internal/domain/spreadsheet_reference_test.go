package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewColumnReference(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"A", false},
		{"Z", false},
		{"AB", false},
		{"a", true},
		{"1", true},
		{"A1", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := NewColumnReference(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.IsType(t, &ErrInvalidReference{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ReferenceTypeColumn, ref.Type)
			assert.Equal(t, tt.input, ref.Value)
		})
	}
}

func TestNewRowReference(t *testing.T) {
	_, err := NewRowReference("3")
	require.NoError(t, err)

	_, err = NewRowReference("0")
	require.Error(t, err)

	_, err = NewRowReference("-1")
	require.Error(t, err)

	ref, err := NewRowReferenceFromNumber(12)
	require.NoError(t, err)
	assert.Equal(t, "12", ref.Value)
}

func TestNewCellReference(t *testing.T) {
	ref, err := NewCellReference("B7")
	require.NoError(t, err)
	assert.Equal(t, ReferenceTypeCell, ref.Type)

	for _, invalid := range []string{"B", "7", "7B", "B0", "b7"} {
		_, err := NewCellReference(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestNewRangeReference(t *testing.T) {
	ref, err := NewRangeReference("A1:B2")
	require.NoError(t, err)
	assert.Equal(t, ReferenceTypeRange, ref.Type)

	// Missing row on the right endpoint fails.
	_, err = NewRangeReference("A1:B")
	require.Error(t, err)

	// Shared column letter classifies as a column range.
	ref, err = NewRangeReference("A1:A9")
	require.NoError(t, err)
	assert.Equal(t, ReferenceTypeColumnRange, ref.Type)

	// Shared row number classifies as a row range.
	ref, err = NewRangeReference("A3:D3")
	require.NoError(t, err)
	assert.Equal(t, ReferenceTypeRowRange, ref.Type)

	_, err = NewRangeReference("A1:B2:C3")
	require.Error(t, err)
}

func TestReferenceExtractors(t *testing.T) {
	cell, err := NewCellReference("BC12")
	require.NoError(t, err)

	letter, err := cell.ColumnLetter()
	require.NoError(t, err)
	assert.Equal(t, "BC", letter)

	row, err := cell.RowNumber()
	require.NoError(t, err)
	assert.Equal(t, 12, row)

	// Range extractors return the left endpoint's components.
	rng, err := NewRangeReference("B2:D9")
	require.NoError(t, err)

	letter, err = rng.ColumnLetter()
	require.NoError(t, err)
	assert.Equal(t, "B", letter)

	row, err = rng.RowNumber()
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	// A row reference has no column component.
	rowRef, err := NewRowReference("4")
	require.NoError(t, err)
	_, err = rowRef.ColumnLetter()
	assert.Error(t, err)

	colRef, err := NewColumnReference("D")
	require.NoError(t, err)
	_, err = colRef.RowNumber()
	assert.Error(t, err)
}

func TestReferenceIndices(t *testing.T) {
	tests := []struct {
		column string
		index  int
	}{
		{"A", 0},
		{"Z", 25},
		{"AA", 26},
		{"AZ", 51},
		{"BA", 52},
	}

	for _, tt := range tests {
		ref, err := NewColumnReference(tt.column)
		require.NoError(t, err)
		index, err := ref.ColumnIndex()
		require.NoError(t, err)
		assert.Equal(t, tt.index, index, tt.column)
	}

	row, err := NewRowReference("7")
	require.NoError(t, err)
	index, err := row.RowIndex()
	require.NoError(t, err)
	assert.Equal(t, 6, index)
}

func TestReferenceA1(t *testing.T) {
	col, _ := NewColumnReference("B")
	assert.Equal(t, "B:B", col.A1())

	row, _ := NewRowReference("3")
	assert.Equal(t, "3:3", row.A1())

	cell, _ := NewCellReference("B7")
	assert.Equal(t, "B7", cell.A1())

	rng, _ := NewRangeReference("A1:B2")
	assert.Equal(t, "A1:B2", rng.A1())

	assert.Equal(t, "Leads!B7", cell.WithSheet("Leads").A1())
	assert.Equal(t, "'My Leads'!B7", cell.WithSheet("My Leads").A1())
}
