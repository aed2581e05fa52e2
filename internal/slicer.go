package internal

import (
	"github.com/batchatco/go-native-cdf/cdf/api"
)

type slice struct {
	getSlice func(begin, end int64) (any, error)
	length   int64
	shape    []int64
	attrs    api.AttributeMap
	cdfType  string
	goType   string
}

func (sl *slice) GetSlice(begin, end int64) (any, error) {
	return sl.getSlice(begin, end)
}

func (sl *slice) Values() (any, error) {
	return sl.getSlice(0, sl.length)
}

func (sl *slice) Len() int64 {
	return sl.length
}

func (sl *slice) Shape() []int64 {
	shape := make([]int64, len(sl.shape)+1)
	shape[0] = sl.length
	copy(shape[1:], sl.shape)
	return shape
}

func (sl *slice) Attributes() api.AttributeMap {
	return sl.attrs
}

func (sl *slice) Type() string {
	return sl.cdfType
}

func (sl *slice) GoType() string {
	return sl.goType
}

// NewSlicer wraps a record-range getter. dims are the per-record dimensions.
func NewSlicer(getSlice func(begin, end int64) (any, error),
	length int64, dims []int64, attributes api.AttributeMap,
	cdfType string, goType string) api.VarGetter {
	return &slice{
		getSlice: getSlice,
		length:   length,
		shape:    dims,
		attrs:    attributes,
		cdfType:  cdfType,
		goType:   goType,
	}
}
