package object

import "fmt"

// OpCode is a single one-byte instruction tag (§4.6). The dispatch
// loop in package vm switches on these; package compiler is the only
// other place that emits them.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpDup
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpClosure
	OpCloseUpvalue
	OpBuildList
	OpIndexSubscr
	OpStoreSubscr
	OpReturn
)

// opInfo describes one opcode's name and the width, in bytes, of each
// of its fixed operands (CLOSURE's trailing (isLocal,index) pairs are
// variable-length and handled separately from this table, matching
// how the teacher's code.Definition models fixed-width operands).
type opInfo struct {
	name          string
	operandWidths []int
}

var opTable = map[OpCode]opInfo{
	OpConstant:      {"OP_CONSTANT", []int{1}},
	OpNil:           {"OP_NIL", nil},
	OpTrue:          {"OP_TRUE", nil},
	OpFalse:         {"OP_FALSE", nil},
	OpPop:           {"OP_POP", nil},
	OpDup:           {"OP_DUP", nil},
	OpGetLocal:      {"OP_GET_LOCAL", []int{1}},
	OpSetLocal:      {"OP_SET_LOCAL", []int{1}},
	OpGetGlobal:     {"OP_GET_GLOBAL", []int{1}},
	OpDefineGlobal:  {"OP_DEFINE_GLOBAL", []int{1}},
	OpSetGlobal:     {"OP_SET_GLOBAL", []int{1}},
	OpGetUpvalue:    {"OP_GET_UPVALUE", []int{1}},
	OpSetUpvalue:    {"OP_SET_UPVALUE", []int{1}},
	OpEqual:         {"OP_EQUAL", nil},
	OpGreater:       {"OP_GREATER", nil},
	OpLess:          {"OP_LESS", nil},
	OpAdd:           {"OP_ADD", nil},
	OpSubtract:      {"OP_SUBTRACT", nil},
	OpMultiply:      {"OP_MULTIPLY", nil},
	OpDivide:        {"OP_DIVIDE", nil},
	OpNot:           {"OP_NOT", nil},
	OpNegate:        {"OP_NEGATE", nil},
	OpPrint:         {"OP_PRINT", nil},
	OpJump:          {"OP_JUMP", []int{2}},
	OpJumpIfFalse:   {"OP_JUMP_IF_FALSE", []int{2}},
	OpLoop:          {"OP_LOOP", []int{2}},
	OpCall:          {"OP_CALL", []int{1}},
	OpClosure:       {"OP_CLOSURE", []int{1}},
	OpCloseUpvalue:  {"OP_CLOSE_UPVALUE", nil},
	OpBuildList:     {"OP_BUILD_LIST", []int{1}},
	OpIndexSubscr:   {"OP_INDEX_SUBSCR", nil},
	OpStoreSubscr:   {"OP_STORE_SUBSCR", nil},
	OpReturn:        {"OP_RETURN", nil},
}

// Name returns op's mnemonic, or a placeholder for an unknown byte.
func (op OpCode) Name() string {
	if info, ok := opTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", byte(op))
}

// Disassemble renders chunk in the teacher's disassembly style, one
// instruction per line, for debugging. It is not part of the core's six components (§1 names the
// disassembler as an external collaborator) but is useful enough to
// keep as a thin dev aid.
func Disassemble(c *Chunk, name string) string {
	out := fmt.Sprintf("== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		var line string
		line, offset = disassembleInstruction(c, offset)
		out += line
	}
	return out
}

func disassembleInstruction(c *Chunk, offset int) (string, int) {
	op := OpCode(c.Code[offset])
	info, ok := opTable[op]
	if !ok {
		return fmt.Sprintf("%04d unknown opcode %d\n", offset, op), offset + 1
	}

	switch op {
	case OpClosure:
		constIdx := int(c.Code[offset+1])
		line := fmt.Sprintf("%04d %-18s %4d %s\n", offset, info.name, constIdx, c.Constants[constIdx].String())
		next := offset + 2
		if fn, ok := c.Constants[constIdx].AsObj().(*ObjFunction); ok {
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := c.Code[next]
				index := c.Code[next+1]
				kind := "upvalue"
				if isLocal != 0 {
					kind = "local"
				}
				line += fmt.Sprintf("%04d      |                     %s %d\n", next, kind, index)
				next += 2
			}
		}
		return line, next
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		constIdx := int(c.Code[offset+1])
		return fmt.Sprintf("%04d %-18s %4d %s\n", offset, info.name, constIdx, c.Constants[constIdx].String()), offset + 2
	}

	switch len(info.operandWidths) {
	case 0:
		return fmt.Sprintf("%04d %s\n", offset, info.name), offset + 1
	case 1:
		operand := c.Code[offset+1]
		return fmt.Sprintf("%04d %-18s %4d\n", offset, info.name, operand), offset + 2
	case 2:
		operand := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
		return fmt.Sprintf("%04d %-18s %4d\n", offset, info.name, operand), offset + 3
	default:
		return fmt.Sprintf("%04d %s\n", offset, info.name), offset + 1
	}
}
