// Package htsmsg implements the HTSMSG binary message codec used by the
// Tvheadend HTSP wire protocol. The codec is pure: it has no knowledge of
// sockets, timeouts or framing beyond the single top-level length prefix
// defined by the wire grammar. Socket-attached framing lives in
// internal/transport.
package htsmsg

import "fmt"

// Kind identifies the wire type of a Value.
type Kind uint8

const (
	KindMap  Kind = 1
	KindS64  Kind = 2
	KindStr  Kind = 3
	KindBin  Kind = 4
	KindList Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindS64:
		return "s64"
	case KindStr:
		return "str"
	case KindBin:
		return "bin"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is the tagged union HTSMSG carries: a Map, a List, a signed 64-bit
// integer, UTF-8 text, or an opaque byte string. Only the field matching
// Kind is meaningful.
type Value struct {
	Kind Kind
	I64  int64
	Str  string
	Bin  []byte
	Map  *Map
	List *List
}

// Int64Value wraps a signed 64-bit integer. The sentinel all-ones pattern
// on the wire is reserved for -1; encode rejects anything outside
// [-1, 2^64-2].
func Int64Value(v int64) Value { return Value{Kind: KindS64, I64: v} }

// StrValue wraps UTF-8 text.
func StrValue(s string) Value { return Value{Kind: KindStr, Str: s} }

// BinValue wraps an opaque byte string, distinct from Str so binary fields
// (auth digest, file reads) round-trip without being reinterpreted as text.
func BinValue(b []byte) Value { return Value{Kind: KindBin, Bin: b} }

// MapValue wraps a nested Map.
func MapValue(m *Map) Value { return Value{Kind: KindMap, Map: m} }

// ListValue wraps a List.
func ListValue(l *List) Value { return Value{Kind: KindList, List: l} }

// List is an ordered, unnamed sequence of Value.
type List struct {
	items []Value
}

// NewList returns an empty List.
func NewList() *List { return &List{} }

// Append adds v to the end of the list.
func (l *List) Append(v Value) { l.items = append(l.items, v) }

// Len returns the number of entries.
func (l *List) Len() int { return len(l.items) }

// At returns the entry at index i.
func (l *List) At(i int) Value { return l.items[i] }

// Items returns the underlying slice of entries (read-only use expected).
func (l *List) Items() []Value { return l.items }
