package runtime

import (
	"sort"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wasmship/wasmship/errors"
)

// ValueType is the closed set of parameter and result types a backend
// can marshal. New numeric or reference types extend this list.
type ValueType uint8

const (
	// ValueTypeUnsupported marks an engine type with no wasmship mapping.
	// Functions using it are listed but cannot be invoked.
	ValueTypeUnsupported ValueType = iota
	ValueTypeI32
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	default:
		return "unsupported"
	}
}

// WIT returns the WIT type used to display t, or nil for unsupported types.
func (t ValueType) WIT() wit.Type {
	switch t {
	case ValueTypeI32:
		return wit.S32{}
	default:
		return nil
	}
}

// ParseValueType is the inverse of ValueType.String.
func ParseValueType(s string) ValueType {
	switch strings.ToLower(s) {
	case "i32":
		return ValueTypeI32
	default:
		return ValueTypeUnsupported
	}
}

// Parse converts a string parameter into a Value of type t.
func (t ValueType) Parse(s string) (Value, error) {
	switch t {
	case ValueTypeI32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, errors.ExecutionCause(errors.PhaseInvoke, "parse i32 parameter "+strconv.Quote(s), err)
		}
		return I32(int32(n)), nil
	default:
		return Value{}, errors.Execution("cannot parse parameter %q as %s", s, t)
	}
}

// Value is a tagged union over ValueType.
type Value struct {
	typ ValueType
	i32 int32
}

// I32 constructs a 32-bit integer value.
func I32(v int32) Value {
	return Value{typ: ValueTypeI32, i32: v}
}

func (v Value) Type() ValueType {
	return v.typ
}

// AsI32 returns the integer payload and whether v holds one.
func (v Value) AsI32() (int32, bool) {
	return v.i32, v.typ == ValueTypeI32
}

// String renders the value the way the daemon writes it to clients.
func (v Value) String() string {
	switch v.typ {
	case ValueTypeI32:
		return strconv.FormatInt(int64(v.i32), 10)
	default:
		return "<unsupported>"
	}
}

// FunctionExport describes one exported function's signature.
type FunctionExport struct {
	Name    string
	Params  []ValueType
	Results []ValueType
}

// Invokable reports whether every param and result type is supported.
func (f FunctionExport) Invokable() bool {
	for _, t := range f.Params {
		if t == ValueTypeUnsupported {
			return false
		}
	}
	for _, t := range f.Results {
		if t == ValueTypeUnsupported {
			return false
		}
	}
	return true
}

// Signature renders f as "name(i32, i32) -> i32".
func (f FunctionExport) Signature() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	switch len(f.Results) {
	case 0:
	case 1:
		b.WriteString(" -> ")
		b.WriteString(f.Results[0].String())
	default:
		b.WriteString(" -> (")
		for i, r := range f.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// FunctionExports maps export names to signatures.
type FunctionExports map[string]FunctionExport

// Names returns export names in sorted order.
func (e FunctionExports) Names() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sorted returns the exports ordered by name.
func (e FunctionExports) Sorted() []FunctionExport {
	out := make([]FunctionExport, 0, len(e))
	for _, name := range e.Names() {
		out = append(out, e[name])
	}
	return out
}

// ParseParams converts string parameters according to fn's declared types.
// Backends call it after arity has been checked.
func ParseParams(fn FunctionExport, params []string) ([]Value, error) {
	values := make([]Value, len(params))
	for i, p := range params {
		v, err := fn.Params[i].Parse(p)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
