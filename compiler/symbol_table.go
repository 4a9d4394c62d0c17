package compiler

// local tracks one name declared in the current function's scope
// chain. depth is -1 between declaration and initialization (so a
// variable cannot resolve to itself mid-initializer, e.g. `var a =
// a;`), and isCaptured records whether any nested function closed
// over this slot, which decides whether leaving its scope emits
// OP_CLOSE_UPVALUE instead of a plain OP_POP (§4.4).
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueRef is one entry of a FunctionCompiler's upvalue array: the
// index it resolves to (either a slot in the immediately enclosing
// function's locals, or an index into the enclosing function's own
// upvalue array), and isLocal selecting which (§4.4).
type upvalueRef struct {
	index   byte
	isLocal bool
}

// FunctionCompiler is the per-function compilation activation: its
// own locals array and scope depth, the upvalues it has resolved so
// far, and a link to the enclosing function being compiled (nil for
// the top-level script). This mirrors clox's single global Compiler*
// current chain, just modeled as an explicit Go struct per the
// reimplementation note in §9 ("parameterize all operations on an
// explicit VM value").
type FunctionCompiler struct {
	enclosing  *FunctionCompiler
	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
}

func newFunctionCompiler(enclosing *FunctionCompiler) *FunctionCompiler {
	return &FunctionCompiler{enclosing: enclosing}
}

// declareLocal registers name as a new local in the current scope. It
// returns false if name is already declared at this exact depth
// (shadowing an outer scope is fine; redeclaring within the same
// block is a compile error).
func (fc *FunctionCompiler) declareLocal(name string) bool {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].depth != -1 && fc.locals[i].depth < fc.scopeDepth {
			break
		}
		if fc.locals[i].name == name {
			return false
		}
	}
	fc.locals = append(fc.locals, local{name: name, depth: -1})
	return true
}

// markInitialized makes the most recently declared local resolvable,
// setting its depth to the current scope depth. Called after the
// local's initializer expression has been compiled (or, for a
// function declaration, before its body, enabling recursion).
func (fc *FunctionCompiler) markInitialized() {
	fc.locals[len(fc.locals)-1].depth = fc.scopeDepth
}

// resolveLocal searches fc's own locals for name, most recently
// declared first so inner shadowing wins.
func resolveLocal(fc *FunctionCompiler, name string) (int, bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

// resolveUpvalue implements §4.4's capture search: if name is a local
// of the immediately enclosing function, capture it directly
// (isLocal=true); otherwise recurse outward and, if found, capture
// the enclosing function's own upvalue (isLocal=false). addUpvalue
// deduplicates so two references in the same function share one slot.
func resolveUpvalue(fc *FunctionCompiler, name string) (int, bool) {
	if fc.enclosing == nil {
		return 0, false
	}
	if idx, ok := resolveLocal(fc.enclosing, name); ok {
		fc.enclosing.locals[idx].isCaptured = true
		return addUpvalue(fc, byte(idx), true), true
	}
	if idx, ok := resolveUpvalue(fc.enclosing, name); ok {
		return addUpvalue(fc, byte(idx), false), true
	}
	return 0, false
}

func addUpvalue(fc *FunctionCompiler, index byte, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fc.upvalues) - 1
}
