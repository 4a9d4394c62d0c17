// Package compiler lowers a parsed ast.Program directly into bytecode
// chunks (object.Chunk) per function, the way the core's §6 "compiler
// contract" expects: it returns a fully populated top-level
// *object.ObjFunction with arity 0, upvalue count 0, no name. It is
// the part of the pipeline the core treats as an opaque black box
// (spec.md §1); everything downstream of Compile is package vm.
package compiler

import (
	"fmt"

	"github.com/kristofer/loxvm/ast"
	"github.com/kristofer/loxvm/object"
)

// Compiler walks an AST and emits bytecode into the chunk of whatever
// FunctionCompiler is current. current changes as nested function
// literals are entered and left; interns is shared across the whole
// compile so every string constant (including every identifier name
// used for globals) is canonicalized exactly as the heap would intern
// it at runtime (§4.2).
type Compiler struct {
	current *FunctionCompiler
	function *object.ObjFunction
	interns *object.InternTable
	errors  []string
}

// New creates a Compiler that interns identifier/string constants
// through table — normally the same *object.InternTable the VM that
// will run the result uses, so that constants and runtime-interned
// strings share identity.
func New(table *object.InternTable) *Compiler {
	fn := &object.ObjFunction{Arity: 0, Name: nil}
	c := &Compiler{interns: table, function: fn}
	c.current = newFunctionCompiler(nil)
	// Slot 0 is reserved for the running closure itself (§3 CallFrame
	// invariant: slots[0] of the top frame is the callee).
	c.current.locals = append(c.current.locals, local{name: "", depth: 0})
	return c
}

// Compile lowers program into the top-level script function. It
// returns an error aggregating every compile-time problem found,
// mirroring the compiler contract's "or nothing, to signal a compile
// error" (§6) — a non-nil error here is this reimplementation's
// sentinel for that case.
func Compile(program *ast.Program, table *object.InternTable) (*object.ObjFunction, error) {
	c := New(table)
	for _, stmt := range program.Statements {
		c.compileStatement(stmt)
	}
	c.emitReturn(0)
	if len(c.errors) > 0 {
		msg := "compile error:"
		for _, e := range c.errors {
			msg += "\n  " + e
		}
		return nil, fmt.Errorf(msg)
	}
	return c.function, nil
}

func (c *Compiler) errorf(format string, args ...interface{}) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *Compiler) chunk() *object.Chunk { return &c.function.Chunk }

func (c *Compiler) emitByte(b byte, line int) {
	c.chunk().Write(b, line)
}

func (c *Compiler) emit(op object.OpCode, line int) {
	c.emitByte(byte(op), line)
}

func (c *Compiler) emitBytes(op object.OpCode, operand byte, line int) {
	c.emitByte(byte(op), line)
	c.emitByte(operand, line)
}

func (c *Compiler) emitConstant(v object.Value, line int) {
	idx := c.chunk().AddConstant(v)
	if idx > 255 {
		c.errorf("too many constants in one chunk")
		idx = 0
	}
	c.emitBytes(object.OpConstant, byte(idx), line)
}

func (c *Compiler) emitReturn(line int) {
	c.emit(object.OpNil, line)
	c.emit(object.OpReturn, line)
}

func (c *Compiler) emitJump(op object.OpCode, line int) int {
	c.emit(op, line)
	c.emitByte(0xff, line)
	c.emitByte(0xff, line)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	code := c.chunk().Code
	jump := len(code) - offset - 2
	if jump > 0xffff {
		c.errorf("too much code to jump over")
	}
	code[offset] = byte((jump >> 8) & 0xff)
	code[offset+1] = byte(jump & 0xff)
}

func (c *Compiler) emitLoop(loopStart int, line int) {
	c.emit(object.OpLoop, line)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.errorf("loop body too large")
	}
	c.emitByte(byte((offset>>8)&0xff), line)
	c.emitByte(byte(offset&0xff), line)
}

// identifierConstant interns name and adds it to the current chunk's
// constant pool, returning its index — used for every global variable
// reference (§4.3: globals are keyed by interned-string identity).
func (c *Compiler) identifierConstant(name string) byte {
	s := c.interns.Intern(name)
	idx := c.chunk().AddConstant(object.ObjVal(s))
	if idx > 255 {
		c.errorf("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope(line int) {
	c.current.scopeDepth--
	for len(c.current.locals) > 0 && c.current.locals[len(c.current.locals)-1].depth > c.current.scopeDepth {
		last := c.current.locals[len(c.current.locals)-1]
		if last.isCaptured {
			c.emit(object.OpCloseUpvalue, line)
		} else {
			c.emit(object.OpPop, line)
		}
		c.current.locals = c.current.locals[:len(c.current.locals)-1]
	}
}

// compileStatement dispatches on the concrete ast.Statement type,
// following the same switch-on-node-type shape the teacher's
// Compile(node ast.Node) uses.
func (c *Compiler) compileStatement(stmt ast.Statement) {
	switch node := stmt.(type) {
	case *ast.VarStatement:
		c.compileVarStatement(node)
	case *ast.ReturnStatement:
		c.compileReturnStatement(node)
	case *ast.PrintStatement:
		c.compileExpression(node.Value)
		c.emit(object.OpPrint, node.Token.Line)
	case *ast.ExpressionStatement:
		if node.Expression == nil {
			return
		}
		c.compileExpression(node.Expression)
		c.emit(object.OpPop, node.Token.Line)
	case *ast.BlockStatement:
		c.beginScope()
		c.compileBlock(node)
		c.endScope(node.Token.Line)
	case *ast.IfStatement:
		c.compileIfStatement(node)
	case *ast.WhileStatement:
		c.compileWhileStatement(node)
	case *ast.ForStatement:
		c.compileForStatement(node)
	case *ast.FunctionStatement:
		c.compileFunctionStatement(node)
	default:
		c.errorf("unknown statement type %T", stmt)
	}
}

func (c *Compiler) compileBlock(block *ast.BlockStatement) {
	for _, stmt := range block.Statements {
		c.compileStatement(stmt)
	}
}

func (c *Compiler) compileVarStatement(vs *ast.VarStatement) {
	isLocal := c.current.scopeDepth > 0
	if isLocal {
		if !c.current.declareLocal(vs.Name.Value) {
			c.errorf("already a variable named %q in this scope", vs.Name.Value)
		}
	}

	if vs.Value != nil {
		c.compileExpression(vs.Value)
	} else {
		c.emit(object.OpNil, vs.Token.Line)
	}

	if isLocal {
		c.current.markInitialized()
		return
	}
	global := c.identifierConstant(vs.Name.Value)
	c.emitBytes(object.OpDefineGlobal, global, vs.Token.Line)
}

func (c *Compiler) compileReturnStatement(rs *ast.ReturnStatement) {
	if rs.ReturnValue == nil {
		c.emit(object.OpNil, rs.Token.Line)
	} else {
		c.compileExpression(rs.ReturnValue)
	}
	c.emit(object.OpReturn, rs.Token.Line)
}

func (c *Compiler) compileIfStatement(is *ast.IfStatement) {
	line := is.Token.Line
	c.compileExpression(is.Condition)

	thenJump := c.emitJump(object.OpJumpIfFalse, line)
	c.emit(object.OpPop, line)
	c.compileStatement(is.Consequence)

	elseJump := c.emitJump(object.OpJump, line)
	c.patchJump(thenJump)
	c.emit(object.OpPop, line)

	if is.Alternative != nil {
		c.compileStatement(is.Alternative)
	}
	c.patchJump(elseJump)
}

func (c *Compiler) compileWhileStatement(ws *ast.WhileStatement) {
	line := ws.Token.Line
	loopStart := len(c.chunk().Code)
	c.compileExpression(ws.Condition)

	exitJump := c.emitJump(object.OpJumpIfFalse, line)
	c.emit(object.OpPop, line)
	c.compileStatement(ws.Body)
	c.emitLoop(loopStart, line)

	c.patchJump(exitJump)
	c.emit(object.OpPop, line)
}

// compileForStatement desugars the three-clause `for` into the
// equivalent while-loop bytecode, following clox's compiler — there
// is no dedicated FOR/LOOP AST-level construct at runtime, only the
// JUMP/LOOP opcodes the while-loop already uses.
func (c *Compiler) compileForStatement(fs *ast.ForStatement) {
	line := fs.Token.Line
	c.beginScope()
	if fs.Init != nil {
		c.compileStatement(fs.Init)
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if fs.Condition != nil {
		c.compileExpression(fs.Condition)
		exitJump = c.emitJump(object.OpJumpIfFalse, line)
		c.emit(object.OpPop, line)
	}

	if fs.Post != nil {
		bodyJump := c.emitJump(object.OpJump, line)
		incrementStart := len(c.chunk().Code)
		c.compileExpression(fs.Post)
		c.emit(object.OpPop, line)
		c.emitLoop(loopStart, line)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.compileStatement(fs.Body)
	c.emitLoop(loopStart, line)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emit(object.OpPop, line)
	}
	c.endScope(line)
}

// compileFunctionStatement treats `fun name(...) {...}` as sugar for
// `var name = <function literal>`, but declares/marks the name
// initialized BEFORE compiling the body so the function can call
// itself by name (§8 scenario 2's makeCounter/inc rely on exactly
// this kind of self- and mutual-reference support).
func (c *Compiler) compileFunctionStatement(fs *ast.FunctionStatement) {
	isLocal := c.current.scopeDepth > 0
	if isLocal {
		if !c.current.declareLocal(fs.Name.Value) {
			c.errorf("already a variable named %q in this scope", fs.Name.Value)
		}
		c.current.markInitialized()
	}

	c.compileFunction(fs.Name.Value, fs.Parameters, fs.Body, fs.Token.Line)

	if isLocal {
		return
	}
	global := c.identifierConstant(fs.Name.Value)
	c.emitBytes(object.OpDefineGlobal, global, fs.Token.Line)
}

// compileFunction compiles a nested function body under its own
// FunctionCompiler, then emits OP_CLOSURE (plus its trailing
// (isLocal,index) upvalue pairs) into the enclosing function (§4.4,
// §4.6).
func (c *Compiler) compileFunction(name string, params []*ast.Identifier, body *ast.BlockStatement, line int) {
	enclosingFn := c.function
	enclosing := c.current

	var fnName *object.ObjString
	if name != "" {
		fnName = c.interns.Intern(name)
	}
	c.function = &object.ObjFunction{Arity: len(params), Name: fnName}
	c.current = newFunctionCompiler(enclosing)
	// Slot 0 holds the closure being called, mirroring the top-level
	// reservation in New.
	c.current.locals = append(c.current.locals, local{name: "", depth: 0})

	c.beginScope()
	for _, p := range params {
		if !c.current.declareLocal(p.Value) {
			c.errorf("duplicate parameter name %q", p.Value)
		}
		c.current.markInitialized()
	}
	c.compileBlock(body)
	c.emitReturn(line)

	fn := c.function
	fn.UpvalueCount = len(c.current.upvalues)
	upvalues := c.current.upvalues

	c.function = enclosingFn
	c.current = enclosing

	constIdx := c.chunk().AddConstant(object.ObjVal(fn))
	if constIdx > 255 {
		c.errorf("too many constants in one chunk")
		constIdx = 0
	}
	c.emitBytes(object.OpClosure, byte(constIdx), line)
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.isLocal {
			isLocal = 1
		}
		c.emitByte(isLocal, line)
		c.emitByte(uv.index, line)
	}
}

// compileExpression dispatches on the concrete ast.Expression type.
func (c *Compiler) compileExpression(expr ast.Expression) {
	switch node := expr.(type) {
	case *ast.NumberLiteral:
		c.emitConstant(object.Number(node.Value), node.Token.Line)
	case *ast.StringLiteral:
		s := c.interns.Intern(node.Value)
		c.emitConstant(object.ObjVal(s), node.Token.Line)
	case *ast.BooleanLiteral:
		if node.Value {
			c.emit(object.OpTrue, node.Token.Line)
		} else {
			c.emit(object.OpFalse, node.Token.Line)
		}
	case *ast.NilLiteral:
		c.emit(object.OpNil, node.Token.Line)
	case *ast.Identifier:
		c.compileVariableReference(node.Value, node.Token.Line)
	case *ast.ListLiteral:
		for _, el := range node.Elements {
			c.compileExpression(el)
		}
		if len(node.Elements) > 255 {
			c.errorf("too many elements in list literal")
		}
		c.emitBytes(object.OpBuildList, byte(len(node.Elements)), node.Token.Line)
	case *ast.IndexExpression:
		c.compileExpression(node.Left)
		c.compileExpression(node.Index)
		c.emit(object.OpIndexSubscr, node.Token.Line)
	case *ast.PrefixExpression:
		c.compileExpression(node.Right)
		switch node.Operator {
		case "-":
			c.emit(object.OpNegate, node.Token.Line)
		case "!":
			c.emit(object.OpNot, node.Token.Line)
		default:
			c.errorf("unknown prefix operator %q", node.Operator)
		}
	case *ast.InfixExpression:
		c.compileInfixExpression(node)
	case *ast.LogicalExpression:
		c.compileLogicalExpression(node)
	case *ast.AssignExpression:
		c.compileAssignExpression(node)
	case *ast.CallExpression:
		c.compileCallExpression(node)
	case *ast.FunctionLiteral:
		c.compileFunction(node.Name, node.Parameters, node.Body, node.Token.Line)
	default:
		c.errorf("unknown expression type %T", expr)
	}
}

func (c *Compiler) compileVariableReference(name string, line int) {
	if idx, ok := resolveLocal(c.current, name); ok {
		if c.current.locals[idx].depth == -1 {
			c.errorf("can't read local variable %q in its own initializer", name)
		}
		c.emitBytes(object.OpGetLocal, byte(idx), line)
		return
	}
	if idx, ok := resolveUpvalue(c.current, name); ok {
		c.emitBytes(object.OpGetUpvalue, byte(idx), line)
		return
	}
	global := c.identifierConstant(name)
	c.emitBytes(object.OpGetGlobal, global, line)
}

func (c *Compiler) compileInfixExpression(ie *ast.InfixExpression) {
	line := ie.Token.Line
	c.compileExpression(ie.Left)
	c.compileExpression(ie.Right)
	switch ie.Operator {
	case "+":
		c.emit(object.OpAdd, line)
	case "-":
		c.emit(object.OpSubtract, line)
	case "*":
		c.emit(object.OpMultiply, line)
	case "/":
		c.emit(object.OpDivide, line)
	case "==":
		c.emit(object.OpEqual, line)
	case "!=":
		c.emit(object.OpEqual, line)
		c.emit(object.OpNot, line)
	case "<":
		c.emit(object.OpLess, line)
	case ">":
		c.emit(object.OpGreater, line)
	case "<=":
		c.emit(object.OpGreater, line)
		c.emit(object.OpNot, line)
	case ">=":
		c.emit(object.OpLess, line)
		c.emit(object.OpNot, line)
	default:
		c.errorf("unknown infix operator %q", ie.Operator)
	}
}

// compileLogicalExpression emits short-circuiting jumps for `and`/`or`
// instead of a binary opcode, per §4.6's truthiness-driven control
// flow.
func (c *Compiler) compileLogicalExpression(le *ast.LogicalExpression) {
	line := le.Token.Line
	switch le.Operator {
	case "and":
		c.compileExpression(le.Left)
		endJump := c.emitJump(object.OpJumpIfFalse, line)
		c.emit(object.OpPop, line)
		c.compileExpression(le.Right)
		c.patchJump(endJump)
	case "or":
		c.compileExpression(le.Left)
		elseJump := c.emitJump(object.OpJumpIfFalse, line)
		endJump := c.emitJump(object.OpJump, line)
		c.patchJump(elseJump)
		c.emit(object.OpPop, line)
		c.compileExpression(le.Right)
		c.patchJump(endJump)
	default:
		c.errorf("unknown logical operator %q", le.Operator)
	}
}

func (c *Compiler) compileAssignExpression(ae *ast.AssignExpression) {
	line := ae.Token.Line
	switch target := ae.Target.(type) {
	case *ast.Identifier:
		c.compileExpression(ae.Value)
		c.compileVariableAssign(target.Value, line)
	case *ast.IndexExpression:
		c.compileExpression(target.Left)
		c.compileExpression(target.Index)
		c.compileExpression(ae.Value)
		c.emit(object.OpStoreSubscr, line)
	default:
		c.errorf("invalid assignment target %T", ae.Target)
	}
}

func (c *Compiler) compileVariableAssign(name string, line int) {
	if idx, ok := resolveLocal(c.current, name); ok {
		c.emitBytes(object.OpSetLocal, byte(idx), line)
		return
	}
	if idx, ok := resolveUpvalue(c.current, name); ok {
		c.emitBytes(object.OpSetUpvalue, byte(idx), line)
		return
	}
	global := c.identifierConstant(name)
	c.emitBytes(object.OpSetGlobal, global, line)
}

func (c *Compiler) compileCallExpression(ce *ast.CallExpression) {
	c.compileExpression(ce.Function)
	for _, arg := range ce.Arguments {
		c.compileExpression(arg)
	}
	if len(ce.Arguments) > 255 {
		c.errorf("too many arguments in call")
	}
	c.emitBytes(object.OpCall, byte(len(ce.Arguments)), ce.Token.Line)
}
