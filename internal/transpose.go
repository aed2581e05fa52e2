package internal

// Product is the number of items in an array of the given dimensions.
func Product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// ColumnToRow reorders the items of each record in raw from column-major
// (first index fastest) to row-major (last index fastest) order.
func ColumnToRow(raw []byte, dims []int, itemSize int) []byte {
	return transpose(raw, dims, itemSize, false)
}

// RowToColumn is the inverse of ColumnToRow.
func RowToColumn(raw []byte, dims []int, itemSize int) []byte {
	return transpose(raw, dims, itemSize, true)
}

func transpose(raw []byte, dims []int, itemSize int, toColumn bool) []byte {
	if len(dims) < 2 || itemSize == 0 {
		return raw
	}
	n := Product(dims)
	recSize := n * itemSize
	if recSize == 0 {
		return raw
	}
	out := make([]byte, len(raw))
	idx := make([]int, len(dims))
	for r := 0; r+recSize <= len(raw); r += recSize {
		for c := 0; c < n; c++ {
			rem := c
			for d := range dims {
				idx[d] = rem % dims[d]
				rem /= dims[d]
			}
			row := 0
			for d := range dims {
				row = row*dims[d] + idx[d]
			}
			from, to := c, row
			if toColumn {
				from, to = row, c
			}
			copy(out[r+to*itemSize:r+(to+1)*itemSize], raw[r+from*itemSize:r+(from+1)*itemSize])
		}
	}
	return out
}
