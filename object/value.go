// Package object implements the value and heap-object model described
// by the core: a tagged Value union, the Obj header shared by every
// heap allocation, and the intern/globals tables keyed on it.
package object

import "fmt"

// ValueType discriminates the four cases a Value can hold.
type ValueType byte

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is a tagged union: exactly one of the fields below is
// meaningful, selected by Type. It is kept as a plain struct (not
// interface{}) so that nil/bool/number never allocate, matching the
// tagged-union Value the core's data model calls for.
type Value struct {
	Type   ValueType
	boolean bool
	number  float64
	obj     Obj
}

// Nil is the singular nil value.
var Nil = Value{Type: ValNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{Type: ValBool, boolean: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{Type: ValNumber, number: n} }

// ObjVal constructs an object-reference Value.
func ObjVal(o Obj) Value { return Value{Type: ValObj, obj: o} }

func (v Value) IsNil() bool    { return v.Type == ValNil }
func (v Value) IsBool() bool   { return v.Type == ValBool }
func (v Value) IsNumber() bool { return v.Type == ValNumber }
func (v Value) IsObj() bool    { return v.Type == ValObj }

// AsBool returns the boolean payload; callers must check IsBool first.
func (v Value) AsBool() bool { return v.boolean }

// AsNumber returns the numeric payload; callers must check IsNumber first.
func (v Value) AsNumber() float64 { return v.number }

// AsObj returns the object payload; callers must check IsObj first.
func (v Value) AsObj() Obj { return v.obj }

// IsString reports whether v holds an *ObjString.
func (v Value) IsString() bool {
	_, ok := v.obj.(*ObjString)
	return v.Type == ValObj && ok
}

// AsString returns the *ObjString payload; callers must check IsString first.
func (v Value) AsString() *ObjString { return v.obj.(*ObjString) }

// IsList reports whether v holds an *ObjList.
func (v Value) IsList() bool {
	if v.Type != ValObj {
		return false
	}
	_, ok := v.obj.(*ObjList)
	return ok
}

// AsList returns the *ObjList payload; callers must check IsList first.
func (v Value) AsList() *ObjList { return v.obj.(*ObjList) }

// IsFalsey implements the truthiness rule of §4.5: nil and false are
// falsey, everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	switch v.Type {
	case ValNil:
		return true
	case ValBool:
		return !v.boolean
	default:
		return false
	}
}

// Equal implements Value equality per §4.5/§3: same tag required, nil
// equals nil, bools and numbers compare structurally (NaN != NaN
// falls out of Go's float64 ==), objects compare by reference identity.
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValNil:
		return true
	case ValBool:
		return a.boolean == b.boolean
	case ValNumber:
		return a.number == b.number
	case ValObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders v for `print` and native diagnostics.
func (v Value) String() string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.number)
	case ValObj:
		return v.obj.String()
	default:
		return "<invalid value>"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// TypeName names v's runtime type, used by the `type` native.
func TypeName(v Value) string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	case ValObj:
		switch v.obj.(type) {
		case *ObjString:
			return "string"
		case *ObjFunction:
			return "function"
		case *ObjClosure:
			return "function"
		case *ObjNative:
			return "function"
		case *ObjList:
			return "list"
		default:
			return "object"
		}
	default:
		return "unknown"
	}
}
