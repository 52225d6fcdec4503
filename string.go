package hal

import "unicode/utf16"

// String is an immutable JavaScript string, as passed to property traps.
// It needs no context and is never freed.
type String struct {
	s string
}

// NewString returns a String holding s.
func NewString(s string) String {
	return String{s: s}
}

// String returns the Go form of the string.
func (s String) String() string {
	return s.s
}

// Len returns the length in UTF-16 code units, as String.prototype.length
// would report it.
func (s String) Len() int {
	n := 0
	for _, r := range s.s {
		if utf16.IsSurrogate(r) || r < 0x10000 {
			n++
		} else {
			n += 2
		}
	}
	return n
}

// Equal reports whether both strings hold the same code units.
func (s String) Equal(other String) bool {
	return s.s == other.s
}

// ToValue creates a string value in ctx.
func (s String) ToValue(ctx *Context) Value {
	return ctx.CreateString(s.s)
}
