package writer

import (
	"fmt"
	"reflect"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-thrower"
)

// Entry is an attribute value with an explicit data type. Numbers are
// converted to the type and must fit in it.
type Entry struct {
	Type  types.DataType
	Value any
}

type entry struct {
	num        int32
	dataType   types.DataType
	numElems   int32
	numStrings int32
	value      []byte
}

type attribute struct {
	name   string
	global bool
	// Global entries in order, or one entry per variable numbered by the
	// variable.
	entries []*entry
	// nextNum numbers the next global entry.
	nextNum int32
}

func (a *attribute) entryFor(num int32) (int, *entry) {
	for i, e := range a.entries {
		if e.num == num {
			return i, e
		}
	}
	return -1, nil
}

func (w *Writer) attribute(name string, global bool) *attribute {
	if a, has := w.attrIndex[name]; has {
		assert(a.global == global, "scope conflict for attribute "+name,
			fmt.Errorf("%w: attribute %q", ErrScopeConflict, name))
		return a
	}
	assert(internal.IsValidCDFName(name), "invalid attribute name "+name,
		fmt.Errorf("%w: attribute %q", ErrInvalidName, name))
	a := &attribute{name: name, global: global}
	w.attrs = append(w.attrs, a)
	w.attrIndex[name] = a
	return a
}

// AddGlobalAttribute appends entries to a global attribute, creating it if
// needed. Each entry is a string, a []string, a number or slice of numbers,
// a time.Time, or an Entry. A nil entry skips an entry number.
func (w *Writer) AddGlobalAttribute(name string, entries ...any) (err error) {
	defer thrower.RecoverError(&err)
	encoded := make([]*entry, len(entries))
	for i, val := range entries {
		if val != nil {
			encoded[i] = w.encodeEntry(name, val)
		}
	}
	a := w.attribute(name, true)
	for _, e := range encoded {
		if e != nil {
			e.num = a.nextNum
			a.entries = append(a.entries, e)
		}
		a.nextNum++
	}
	return nil
}

// AddVariableAttribute sets the value of attribute attr for variable
// varName. Setting it again replaces the value, which must keep its type.
func (w *Writer) AddVariableAttribute(attr, varName string, value any) (err error) {
	defer thrower.RecoverError(&err)
	v, has := w.varByName[varName]
	assert(has, "no variable "+varName, fmt.Errorf("%w: variable %q", ErrNotFound, varName))
	e := w.encodeEntry(attr, value)
	e.num = v.num
	a := w.attribute(attr, false)
	i, old := a.entryFor(v.num)
	if old == nil {
		a.entries = append(a.entries, e)
		return nil
	}
	assert(old.dataType == e.dataType,
		fmt.Sprint(attr, " of ", varName, " was ", old.dataType, ", now ", e.dataType),
		fmt.Errorf("%w: attribute %q of variable %q is %v, given %v",
			ErrIncompatibleType, attr, varName, old.dataType, e.dataType))
	a.entries[i] = e
	return nil
}

// inferType picks the data type of a value given without an Entry.
func inferType(leaf reflect.Type) (types.DataType, bool) {
	if leaf == timeType {
		return types.TT2000, true
	}
	switch leaf.Kind() {
	case reflect.String:
		return types.Char, true
	case reflect.Int8:
		return types.Int1, true
	case reflect.Int16:
		return types.Int2, true
	case reflect.Int32:
		return types.Int4, true
	case reflect.Int64, reflect.Int:
		return types.Int8, true
	case reflect.Uint8:
		return types.UInt1, true
	case reflect.Uint16:
		return types.UInt2, true
	case reflect.Uint32:
		return types.UInt4, true
	case reflect.Float32:
		return types.Real4, true
	case reflect.Float64:
		return types.Real8, true
	}
	return 0, false
}

func (w *Writer) encodeEntry(name string, val any) *entry {
	var t types.DataType
	forced := false
	if e, ok := val.(Entry); ok {
		t, val, forced = e.Type, e.Value, true
		assert(t.Valid(), fmt.Sprint(name, " entry type ", t),
			fmt.Errorf("%w: attribute %q entry type %d", types.ErrUnsupportedType, name, int32(t)))
	}
	v := reflect.ValueOf(val)
	assert(v.IsValid(), name+" entry is nil",
		fmt.Errorf("%w: attribute %q entry is nil", ErrIncompatibleType, name))
	leaf := leafType(v.Type())
	if !forced {
		var ok bool
		t, ok = inferType(leaf)
		assert(ok, fmt.Sprint(name, " entry of type ", v.Type()),
			fmt.Errorf("%w: attribute %q entry of type %v", ErrIncompatibleType, name, v.Type()))
	}

	flat, err := flatten(v, shapeOf(v))
	thrower.ThrowIfError(err)
	assert(flat.Len() > 0, name+" entry is empty",
		fmt.Errorf("%w: attribute %q entry is empty", ErrDimensionMismatch, name))

	if leaf.Kind() == reflect.String {
		assert(t.IsString(), fmt.Sprint(name, " string entry typed ", t),
			fmt.Errorf("%w: attribute %q string entry typed %v", ErrIncompatibleType, name, t))
		strs := make([]string, flat.Len())
		for i := range strs {
			strs[i] = flat.Index(i).String()
		}
		value, err := latin1(record.JoinStrings(strs))
		thrower.ThrowIfError(err)
		if len(value) == 0 {
			// Entries hold at least one element.
			value = []byte{0}
		}
		return &entry{
			dataType:   t,
			numElems:   int32(len(value)),
			numStrings: int32(len(strs)),
			value:      value,
		}
	}

	assert(!t.IsString(), fmt.Sprint(name, " numeric entry typed ", t),
		fmt.Errorf("%w: attribute %q numeric entry typed %v", ErrIncompatibleType, name, t))
	flat, err = coerce(flat, t)
	thrower.ThrowIfError(err)
	value, err := encodeFlat(t, 1, flat, w.opts.order)
	thrower.ThrowIfError(err)
	width, err := t.Width()
	thrower.ThrowIfError(err)
	assert(len(value)%width == 0, fmt.Sprint(name, " entry of ", len(value), " bytes"),
		fmt.Errorf("%w: attribute %q entry of %d bytes for %v", ErrDimensionMismatch, name, len(value), t))
	return &entry{
		dataType: t,
		numElems: int32(len(value) / width),
		value:    value,
	}
}

// attributeLayout is an ADR and its entries with offsets assigned.
type attributeLayout struct {
	adr     *record.ADR
	entries []*record.AEDR
	end     int64
}

func (w *Writer) layoutAttribute(a *attribute, num int32, off int64) *attributeLayout {
	v := record.V3
	scope := record.ScopeVariable
	edrType := record.AzEDRType
	if a.global {
		scope = record.ScopeGlobal
		edrType = record.AgrEDRType
	}
	al := &attributeLayout{adr: &record.ADR{
		Header:     record.Header{Offset: off},
		Scope:      scope,
		Num:        num,
		MAXgrEntry: -1,
		MAXzEntry:  -1,
		Name:       a.name,
	}}
	off += al.adr.EncodedSize(v)
	var maxEntry int32 = -1
	for _, e := range a.entries {
		aedr := &record.AEDR{
			Header:     record.Header{Offset: off, Type: edrType},
			AttrNum:    num,
			DataType:   int32(e.dataType),
			Num:        e.num,
			NumElems:   e.numElems,
			NumStrings: e.numStrings,
			Value:      e.value,
		}
		off += aedr.EncodedSize(v)
		if n := len(al.entries); n > 0 {
			al.entries[n-1].Next = aedr.Offset
		}
		al.entries = append(al.entries, aedr)
		maxEntry = max(maxEntry, e.num)
	}
	var head int64
	if len(al.entries) > 0 {
		head = al.entries[0].Offset
	}
	if a.global {
		al.adr.AgrEDRHead = head
		al.adr.NgrEntries = int32(len(al.entries))
		al.adr.MAXgrEntry = maxEntry
	} else {
		al.adr.AzEDRHead = head
		al.adr.NzEntries = int32(len(al.entries))
		al.adr.MAXzEntry = maxEntry
	}
	al.end = off
	return al
}
