package internal

import (
	"bytes"
	"testing"
)

func TestColumnToRow(t *testing.T) {
	// A 2x3 array holding its row-major index, stored column-major:
	// a[0][0] a[1][0] a[0][1] a[1][1] a[0][2] a[1][2]
	column := []byte{0, 3, 1, 4, 2, 5}
	row := ColumnToRow(column, []int{2, 3}, 1)
	want := []byte{0, 1, 2, 3, 4, 5}
	if !bytes.Equal(row, want) {
		t.Error("got", row, "want", want)
		return
	}
	back := RowToColumn(row, []int{2, 3}, 1)
	if !bytes.Equal(back, column) {
		t.Error("got", back, "want", column)
	}
}

func TestTransposeRecords(t *testing.T) {
	// Two records of a 2x2 array of 2 byte items.
	row := []byte{
		0, 0, 0, 1, 1, 0, 1, 1,
		2, 0, 2, 1, 3, 0, 3, 1,
	}
	column := RowToColumn(row, []int{2, 2}, 2)
	want := []byte{
		0, 0, 1, 0, 0, 1, 1, 1,
		2, 0, 3, 0, 2, 1, 3, 1,
	}
	if !bytes.Equal(column, want) {
		t.Error("got", column, "want", want)
		return
	}
	if !bytes.Equal(ColumnToRow(column, []int{2, 2}, 2), row) {
		t.Error("round trip failed")
	}
}

func TestTransposeRank3(t *testing.T) {
	dims := []int{2, 3, 4}
	row := make([]byte, Product(dims))
	for i := range row {
		row[i] = byte(i)
	}
	column := RowToColumn(row, dims, 1)
	// a[1][2][3] is row index 23 and column index 1 + 2*2 + 3*6 = 23.
	// a[1][0][0] is row index 12 and column index 1.
	if column[1] != 12 || column[23] != 23 {
		t.Error("bad transpose", column)
		return
	}
	if !bytes.Equal(ColumnToRow(column, dims, 1), row) {
		t.Error("round trip failed")
	}
}

func TestTransposeRank1(t *testing.T) {
	raw := []byte{1, 2, 3}
	if !bytes.Equal(ColumnToRow(raw, []int{3}, 1), raw) {
		t.Error("rank 1 should be unchanged")
	}
}
