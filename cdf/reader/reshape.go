package reader

import (
	"reflect"

	"github.com/batchatco/go-native-cdf/internal"
)

func emptySlice(v any, dims []int) any {
	elemType := reflect.ValueOf(v).Type().Elem()
	var empty reflect.Value
	for range dims {
		empty = reflect.MakeSlice(reflect.SliceOf(elemType), 0, 0)
		elemType = empty.Type()
	}
	return empty.Interface()
}

// reshape turns a flat slice into nested slices of the given dimensions.
// With no dimensions it returns the first element.
func reshape(data any, dims []int) any {
	v := reflect.ValueOf(data)
	if len(dims) == 0 {
		if v.Len() == 0 {
			return nil
		}
		return v.Index(0).Interface()
	}
	if dims[0] == 0 {
		return emptySlice(data, dims)
	}
	length := dims[0]
	if len(dims) == 1 {
		return v.Slice(0, length).Interface()
	}
	inner := internal.Product(dims[1:])
	first := reshape(v.Slice(0, inner).Interface(), dims[1:])
	val := reflect.MakeSlice(reflect.SliceOf(reflect.TypeOf(first)), length, length)
	val.Index(0).Set(reflect.ValueOf(first))
	for i := 1; i < length; i++ {
		sub := reshape(v.Slice(i*inner, (i+1)*inner).Interface(), dims[1:])
		val.Index(i).Set(reflect.ValueOf(sub))
	}
	return val.Interface()
}
