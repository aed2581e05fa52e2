package reader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/batchatco/go-native-cdf/cdf/api"
	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/util"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-thrower"
)

func (c *CDF) readAttributes() {
	c.globalAttrs = util.NewEmptyOrderedMap()
	seen := map[int64]bool{}
	for off := c.gdr.ADRHead; !c.endOfChain(off); {
		assert(!seen[off], fmt.Sprint("ADR chain loops at ", off),
			fmt.Errorf("%w: ADR chain loops at %d", record.ErrCorruptRecord, off))
		seen[off] = true
		adr, err := record.DecodeADR(c.buf, off, c.version)
		thrower.ThrowIfError(err)
		c.attrNames = append(c.attrNames, adr.Name)

		if adr.IsGlobal() {
			entries := c.readEntries(adr.AgrEDRHead)
			// Entry numbers index the values; missing entries stay nil.
			n := 0
			if len(entries) > 0 {
				lo, hi := entries[0].Num, entries[len(entries)-1].Num
				assert(lo >= 0 && int64(hi) < int64(len(c.buf)),
					fmt.Sprint(adr.Name, " entry numbers ", lo, "-", hi),
					fmt.Errorf("%w: attribute %q entry numbers %d-%d", record.ErrCorruptRecord, adr.Name, lo, hi))
				n = int(hi) + 1
			}
			vals := make([]any, n)
			cdfType := ""
			for i, e := range entries {
				val, t := c.entryValue(e)
				vals[e.Num] = splitJoined(val)
				if i == 0 {
					cdfType = t
				}
			}
			c.globalAttrs.AddTyped(adr.Name, vals, cdfType)
		} else {
			c.addVariableEntries(adr, c.readEntries(adr.AgrEDRHead), c.rVars)
			c.addVariableEntries(adr, c.readEntries(adr.AzEDRHead), c.zVars)
		}
		off = adr.Next
	}
}

// readEntries walks an AEDR chain and returns the entries by entry number.
func (c *CDF) readEntries(head int64) []*record.AEDR {
	var entries []*record.AEDR
	seen := map[int64]bool{}
	for off := head; !c.endOfChain(off); {
		assert(!seen[off], fmt.Sprint("AEDR chain loops at ", off),
			fmt.Errorf("%w: AEDR chain loops at %d", record.ErrCorruptRecord, off))
		seen[off] = true
		e, err := record.DecodeAEDR(c.buf, off, c.version)
		thrower.ThrowIfError(err)
		entries = append(entries, e)
		off = e.Next
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Num < entries[j].Num
	})
	return entries
}

func (c *CDF) addVariableEntries(adr *record.ADR, entries []*record.AEDR,
	vars map[int32]*variable) {
	for _, e := range entries {
		v, has := vars[e.Num]
		if !has {
			logger.With(internal.Fields{"attribute": adr.Name, "entry": e.Num}).
				Warn("attribute entry for unknown variable")
			continue
		}
		val, cdfType := c.entryValue(e)
		v.attrs.AddTyped(adr.Name, splitJoined(val), cdfType)
	}
}

// splitJoined turns a string entry written from several strings back into
// a []string.
func splitJoined(val any) any {
	if s, ok := val.(string); ok && strings.Contains(s, record.StringDelimiter) {
		return record.SplitStrings(s)
	}
	return val
}

// entryValue decodes an entry: a string for character types, []float64
// for floating point and EPOCH types, []int64 for the rest.
func (c *CDF) entryValue(e *record.AEDR) (any, string) {
	dt := types.DataType(e.DataType)
	cat, err := dt.Category()
	thrower.ThrowIfError(err)
	if dt.IsString() {
		return decodeString(e.Value), dt.String()
	}
	native := decodeNative(dt, e.Value, c.order, 1)
	var val any
	switch cat {
	case types.FloatingPoint, types.DoublePrecision:
		val, err = castSlice[float64](native, false)
	default:
		val, err = castSlice[int64](native, false)
	}
	thrower.ThrowIfError(err)
	return val, dt.String()
}

// Attributes returns the global attributes. Each value is a []any indexed
// by entry number, nil where the file has no entry. String entries written
// from several strings are []string.
func (c *CDF) Attributes() api.AttributeMap {
	return c.globalAttrs
}

// VariableAttributes returns the attributes of a variable. Strings that
// were stored as several values come back as []string.
func (c *CDF) VariableAttributes(name string) (attrs api.AttributeMap, err error) {
	defer thrower.RecoverError(&err)
	return c.lookup(name).attrs, nil
}

func (c *CDF) globalEntries(name string) []any {
	val, has := c.globalAttrs.Get(name)
	if !has {
		thrower.Throw(fmt.Errorf("%w: attribute %q", ErrNotFound, name))
	}
	return val.([]any)
}

// AttributeStrings returns the strings of every entry of a global string
// attribute, in order. Missing entries are skipped.
func (c *CDF) AttributeStrings(name string) (vals []string, err error) {
	defer thrower.RecoverError(&err)
	for _, e := range c.globalEntries(name) {
		switch x := e.(type) {
		case nil:
		case string:
			vals = append(vals, x)
		case []string:
			vals = append(vals, x...)
		default:
			fail(name+" has a non-string entry",
				fmt.Errorf("%w: attribute %q entry is %T", ErrIncompatibleType, name, e))
		}
	}
	return vals, nil
}

// AttributeFloat64s returns the values of every entry of a global numeric
// attribute, in order.
func (c *CDF) AttributeFloat64s(name string) (vals []float64, err error) {
	defer thrower.RecoverError(&err)
	for _, e := range c.globalEntries(name) {
		switch x := e.(type) {
		case nil:
		case []float64:
			vals = append(vals, x...)
		case []int64:
			f, err := castSlice[float64](x, false)
			thrower.ThrowIfError(err)
			vals = append(vals, f...)
		default:
			fail(name+" has a string entry",
				fmt.Errorf("%w: attribute %q entry is %T", ErrIncompatibleType, name, e))
		}
	}
	return vals, nil
}

// AttributeInt64s returns the values of every entry of a global integer
// attribute, in order.
func (c *CDF) AttributeInt64s(name string) (vals []int64, err error) {
	defer thrower.RecoverError(&err)
	for _, e := range c.globalEntries(name) {
		if e == nil {
			continue
		}
		x, ok := e.([]int64)
		assert(ok, name+" has a non-integer entry",
			fmt.Errorf("%w: attribute %q entry is %T", ErrIncompatibleType, name, e))
		vals = append(vals, x...)
	}
	return vals, nil
}
