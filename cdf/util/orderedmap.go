package util

import (
	"errors"
	"fmt"
	"sort"
)

// OrderedMap keeps attribute values in the order they were stored in the
// file, along with the CDF type each value was decoded from.
type OrderedMap struct {
	keys   []string
	values map[string]any
	types  map[string]string
}

var (
	ErrorKeysDontMatchValues = errors.New("keys don't match values")
)

func NewOrderedMap(keys []string, values map[string]any) (*OrderedMap, error) {
	if len(keys) != len(values) {
		return nil, ErrorKeysDontMatchValues
	}
	mapKeys := []string{}
	for k := range values {
		mapKeys = append(mapKeys, k)
	}
	sort.Strings(mapKeys)

	sortedKeys := make([]string, len(keys))
	copy(sortedKeys, keys)
	sort.Strings(sortedKeys)

	for i := range sortedKeys {
		if mapKeys[i] != sortedKeys[i] {
			return nil, ErrorKeysDontMatchValues
		}
	}
	if values == nil {
		values = map[string]any{}
	}
	ordered := []string{}
	ordered = append(ordered, keys...)

	return &OrderedMap{
		keys:   ordered,
		values: values,
		types:  map[string]string{}}, nil
}

// NewEmptyOrderedMap returns a map ready for Add.
func NewEmptyOrderedMap() *OrderedMap {
	om, _ := NewOrderedMap(nil, nil)
	return om
}

// Add stores val under name. A repeated name keeps its original position.
func (om *OrderedMap) Add(name string, val any) {
	if _, has := om.values[name]; !has {
		om.keys = append(om.keys, name)
	}
	om.values[name] = val
}

// AddTyped is like Add, but also records the CDF type name of the value.
func (om *OrderedMap) AddTyped(name string, val any, cdfType string) {
	om.Add(name, val)
	om.types[name] = cdfType
}

func (om *OrderedMap) Get(key string) (val any, has bool) {
	val, has = om.values[key]
	return
}

func (om *OrderedMap) GetType(key string) (string, bool) {
	ty, has := om.types[key]
	return ty, has
}

func (om *OrderedMap) GetGoType(key string) (string, bool) {
	val, has := om.values[key]
	if !has {
		return "", false
	}
	return fmt.Sprintf("%T", val), true
}

func (om *OrderedMap) Keys() []string {
	return om.keys
}

func (om *OrderedMap) Len() int {
	return len(om.keys)
}
