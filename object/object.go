package object

import "strings"

// ObjKind tags the concrete type of a heap object (§3 Obj header).
// Only the six kinds the execution loop actually realizes are listed
// here — blang's header additionally carries class/instance/bound-method
// tags that no opcode ever switches on; this module leaves those out
// of scope, per spec's explicit non-goals.
type ObjKind byte

const (
	ObjKindString ObjKind = iota
	ObjKindFunction
	ObjKindNative
	ObjKindClosure
	ObjKindUpvalue
	ObjKindList
)

// Obj is the interface every heap-allocated object satisfies. Beyond
// the header fields (Kind, mark bit, intrusive next-link), Obj
// supplies String() for `print`/diagnostics.
type Obj interface {
	Kind() ObjKind
	String() string

	// marked/setMarked back the tracing collector's mark bit (§9).
	marked() bool
	setMarked(bool)
	// next/setNext thread the object into the VM's allocation list,
	// the sole root of reachable-object enumeration on teardown (§3).
	next() Obj
	setNext(Obj)
}

// header is embedded in every concrete Obj and implements the
// bookkeeping half of the Obj interface, mirroring the shared
// first-fields-of-a-struct trick C uses to lay out a common header.
type header struct {
	isMarked bool
	nextObj  Obj
}

func (h *header) marked() bool     { return h.isMarked }
func (h *header) setMarked(m bool) { h.isMarked = m }
func (h *header) next() Obj        { return h.nextObj }
func (h *header) setNext(o Obj)    { h.nextObj = o }

// Next exposes the intrusive allocation-list link for package vm's
// teardown walk and the tracing collector's sweep.
func Next(o Obj) Obj { return o.next() }

// SetNext is used only by the allocator when prepending a freshly
// created object to the VM's object list.
func SetNext(o Obj, n Obj) { o.setNext(n) }

// Marked/SetMarked expose the mark bit to the tracing collector (§9).
func Marked(o Obj) bool       { return o.marked() }
func SetMarked(o Obj, m bool) { o.setMarked(m) }

// ObjString is an immutable, interned character sequence (§3, §4.2).
type ObjString struct {
	header
	Chars string
	Hash  uint32
	// Owned marks strings whose bytes are not borrowed from another
	// allocation. Every string this VM creates owns its bytes; the
	// flag is kept, per spec, only so a future static-string
	// optimization has somewhere to record the distinction.
	Owned bool
}

func (s *ObjString) Kind() ObjKind  { return ObjKindString }
func (s *ObjString) String() string { return s.Chars }

// fnvOffsetBasis and fnvPrime are the 32-bit FNV-1a constants §4.2 specifies.
const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// HashString computes the FNV-1a hash of s, octet-wise, exactly as
// §4.2 specifies for copyString/takeString.
func HashString(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// Chunk is a compiled unit: bytecode bytes, constant pool, and a
// parallel line table mapping each bytecode offset to a source line
// (§6 compiler contract, GLOSSARY "Chunk").
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// Write appends a single bytecode byte, recording the source line it
// came from.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends v to the constant pool and returns its index.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// ObjFunction is a compiled callable: arity, upvalue count, an owned
// chunk, and an optional name (absent for the top-level script, §3).
type ObjFunction struct {
	header
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString
}

func (f *ObjFunction) Kind() ObjKind { return ObjKindFunction }
func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Chars + ">"
}

// NativeResult is the two-field outcome every native callable
// returns (§6): IsError selects whether Result carries a value or an
// error message string.
type NativeResult struct {
	IsError bool
	Result  Value
}

// NativeFn is a host-supplied callable: given the argument slice, it
// returns a NativeResult. Arity is checked by the VM before invoking,
// per the native-callable contract in §6.
type NativeFn func(args []Value) NativeResult

// ObjNative wraps a host function: Arity (−1 means variadic) plus the
// Go closure that implements it.
type ObjNative struct {
	header
	Name  string
	Arity int
	Fn    NativeFn
}

func (n *ObjNative) Kind() ObjKind  { return ObjKindNative }
func (n *ObjNative) String() string { return "<native fn " + n.Name + ">" }

// ObjUpvalue is a captured variable cell (§3, §4.4). It is always in
// exactly one of two states: OPEN, where StackSlot names a live stack
// index (tracked as an index rather than a raw pointer, since Go
// slices can be reallocated), or CLOSED, where Closed
// is true and Value holds the captured value.
type ObjUpvalue struct {
	header
	StackSlot int
	Closed    bool
	Value     Value
	// NextOpen threads this upvalue into the VM's open-upvalue list,
	// sorted by descending StackSlot (§3, §4.4).
	NextOpen *ObjUpvalue
}

func (u *ObjUpvalue) Kind() ObjKind  { return ObjKindUpvalue }
func (u *ObjUpvalue) String() string { return "<upvalue>" }

// ObjClosure pairs an ObjFunction with the upvalue array its captures
// resolve to; exactly function.UpvalueCount entries (§3).
type ObjClosure struct {
	header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Kind() ObjKind  { return ObjKindClosure }
func (c *ObjClosure) String() string { return c.Function.String() }

// ObjList is a growable array of Values (§3). Growth policy: when
// appending with no spare capacity, double (floor 8) exactly as §3
// specifies, via the manual Append helper below rather than relying
// on Go's own (unspecified) slice growth factor.
type ObjList struct {
	header
	Items []Value
}

func (l *ObjList) Kind() ObjKind { return ObjKindList }
func (l *ObjList) String() string {
	parts := make([]string, len(l.Items))
	for i, v := range l.Items {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Append adds v to the end of the list, growing Items geometrically
// (double the old capacity, floor 8) when no spare capacity remains.
func (l *ObjList) Append(v Value) {
	if len(l.Items) == cap(l.Items) {
		newCap := cap(l.Items) * 2
		if newCap < 8 {
			newCap = 8
		}
		grown := make([]Value, len(l.Items), newCap)
		copy(grown, l.Items)
		l.Items = grown
	}
	l.Items = append(l.Items, v)
}

// DeleteAt removes the item at index i, shifting the tail down and
// writing Nil into the vacated final slot (§3).
func (l *ObjList) DeleteAt(i int) {
	copy(l.Items[i:], l.Items[i+1:])
	l.Items[len(l.Items)-1] = Nil
	l.Items = l.Items[:len(l.Items)-1]
}
