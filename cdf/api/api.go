// Package api holds the interfaces shared by the CDF reader, the front door
// package and the command line tool.
package api

import (
	"context"
	"io"
)

type AttributeMap interface {
	// Ordered list of keys
	Keys() []string
	// Indexed lookup
	Get(key string) (val any, has bool)

	// GetType returns the CDF type name (e.g. "CDF_REAL8") of the value.
	GetType(key string) (string, bool)
	// GetGoType returns the Go type of the value.
	GetGoType(key string) (string, bool)
}

type Variable struct {
	Values     any
	Dimensions []int
	Attributes AttributeMap
}

type VarGetter interface {
	// Len() is the number of records of the variable.
	// Or returns 1 if the variable does not vary by record.
	Len() int64

	// Values returns all the records of the variable. For very large variables,
	// it may be more appropriate to call GetSlice instead.
	Values() (any, error)

	// GetSlice gets the records in [begin, end).
	GetSlice(begin, end int64) (any, error)

	// Shape returns the record count followed by the effective dimensions.
	Shape() []int64

	Attributes() AttributeMap

	// Type returns the CDF data type name, not including dimensions.
	Type() string
	// GoType returns the base type in Go format, not including dimensions.
	GoType() string
}

// Fetcher retrieves the bytes of a remote CDF. Implementations own the
// transport, retries and TLS setup.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}
