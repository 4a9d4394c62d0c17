package object

// InternTable canonicalizes string content to a single *ObjString per
// distinct byte sequence (§3, §4.2). Go's map already gives us
// hash+equality lookup on the string key, so the "compare hash, length,
// content" dance §4.2 describes in C collapses to a native map lookup;
// the FNV-1a hash is still computed and stored on every ObjString so
// Hash matches the documented algorithm and is available to callers
// that want it (e.g. a future custom hash table).
type InternTable struct {
	strings map[string]*ObjString
}

// NewInternTable creates an empty intern table.
func NewInternTable() *InternTable {
	return &InternTable{strings: make(map[string]*ObjString)}
}

// Intern returns the canonical *ObjString for chars, allocating and
// registering a new one on first sight. Two calls with equal content
// always return the identical pointer (§4.2 invariant).
func (t *InternTable) Intern(chars string) *ObjString {
	if s, ok := t.strings[chars]; ok {
		return s
	}
	s := &ObjString{Chars: chars, Hash: HashString(chars), Owned: true}
	t.strings[chars] = s
	return s
}

// Delete removes a string from the intern table. Used by the tracing
// collector's sweep to drop entries whose strings were not marked
// (§9: "intern table must treat string keys as weak").
func (t *InternTable) Delete(chars string) {
	delete(t.strings, chars)
}

// Table is the globals table: an interned-string-keyed map to Value
// (§3, §4.3). Because every key is interned, lookups could in
// principle short-circuit on pointer identity; Go's map equality on
// the *ObjString pointer gives exactly that for free.
type Table struct {
	entries map[*ObjString]Value
}

// NewTable creates an empty globals table.
func NewTable() *Table {
	return &Table{entries: make(map[*ObjString]Value)}
}

// Get looks up name, reporting whether it was present.
func (t *Table) Get(name *ObjString) (Value, bool) {
	v, ok := t.entries[name]
	return v, ok
}

// Set inserts or overwrites name -> value, returning true if this was
// a new key (§4.3: "tableSet returns a boolean distinguishing
// insert-of-new-key from update-of-existing-key"). OP_SET_GLOBAL uses
// this to detect and reject assignment to an undefined global.
func (t *Table) Set(name *ObjString, value Value) bool {
	_, existed := t.entries[name]
	t.entries[name] = value
	return !existed
}

// Delete removes name from the table. Used by OP_SET_GLOBAL to roll
// back the insert it speculatively performed when the key turned out
// to be undefined.
func (t *Table) Delete(name *ObjString) {
	delete(t.entries, name)
}
