package stax

import (
	"fmt"
	"strings"
)

// Opcode tags a single instruction.
type Opcode int

const (
	OpConst Opcode = iota
	OpPop
	OpDup
	OpSwap
	OpOver
	OpAdd
	OpMinus
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpBitand
	OpBitor
	OpLand
	OpLor
	OpLnot
	OpEq
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpJmp
	OpJmpIf
	OpGlobalStore
	OpGlobalLoad
	OpBind
	OpUnbind
	OpPushBind
	OpBuildin
	OpPrint
	OpPrintln
	OpDebug
	OpNop
	OpHalt

	numOpcodes
)

func (o Opcode) String() string {
	names := map[Opcode]string{
		OpConst:       "OP_CONST",
		OpPop:         "OP_POP",
		OpDup:         "OP_DUP",
		OpSwap:        "OP_SWAP",
		OpOver:        "OP_OVER",
		OpAdd:         "OP_ADD",
		OpMinus:       "OP_MINUS",
		OpMul:         "OP_MUL",
		OpDiv:         "OP_DIV",
		OpMod:         "OP_MOD",
		OpShl:         "OP_SHL",
		OpShr:         "OP_SHR",
		OpBitand:      "OP_BITAND",
		OpBitor:       "OP_BITOR",
		OpLand:        "OP_LAND",
		OpLor:         "OP_LOR",
		OpLnot:        "OP_LNOT",
		OpEq:          "OP_EQ",
		OpNeq:         "OP_NEQ",
		OpGt:          "OP_GT",
		OpGte:         "OP_GTE",
		OpLt:          "OP_LT",
		OpLte:         "OP_LTE",
		OpJmp:         "OP_JMP",
		OpJmpIf:       "OP_JMP_IF",
		OpGlobalStore: "OP_GLOBAL_STORE",
		OpGlobalLoad:  "OP_GLOBAL_LOAD",
		OpBind:        "OP_BIND",
		OpUnbind:      "OP_UNBIND",
		OpPushBind:    "OP_PUSH_BIND",
		OpBuildin:     "OP_BUILDIN",
		OpPrint:       "OP_PRINT",
		OpPrintln:     "OP_PRINTLN",
		OpDebug:       "OP_DEBUG",
		OpNop:         "OP_NOP",
		OpHalt:        "OP_HALT",
	}
	if name, ok := names[o]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN_%d", int(o))
}

// Instruction is an opcode plus an optional integer operand (address, slot,
// constant index or count, depending on the opcode).
type Instruction struct {
	Op      Opcode
	Operand *int
}

func Inst(op Opcode) Instruction {
	return Instruction{Op: op}
}

func InstOp(op Opcode, operand int) Instruction {
	return Instruction{Op: op, Operand: &operand}
}

func (i Instruction) String() string {
	if i.Operand != nil {
		return fmt.Sprintf("%s %d", i.Op, *i.Operand)
	}
	return i.Op.String()
}

// Bytecode is the compiler's output: the instruction sequence plus the
// constant pool. Immutable after compilation finishes.
type Bytecode struct {
	Program []Instruction
	Consts  []Value
}

func Disassemble(bc *Bytecode) string {
	var parts []string

	parts = append(parts, "--------- Constants ---------\n")
	if len(bc.Consts) > 0 {
		for i, constVal := range bc.Consts {
			parts = append(parts, fmt.Sprintf("%04d: %s (%s)\n", i, constVal.String(), constVal.Type()))
		}
	} else {
		parts = append(parts, "Constants list is empty.\n")
	}

	parts = append(parts, "\n--------- Instructions ---------\n")
	for i, instr := range bc.Program {
		line := fmt.Sprintf("%04d: %-16s", i, instr.Op.String())
		if instr.Operand != nil {
			line += fmt.Sprintf(" %-5d", *instr.Operand)
			switch instr.Op {
			case OpConst:
				if *instr.Operand >= 0 && *instr.Operand < len(bc.Consts) {
					line += fmt.Sprintf(" (%s)", bc.Consts[*instr.Operand].String())
				} else {
					line += " (INVALID CONSTANT INDEX)"
				}
			case OpBuildin:
				if name, ok := BuiltinName(*instr.Operand); ok {
					line += fmt.Sprintf(" (%s)", name)
				}
			}
		}
		parts = append(parts, line+"\n")
	}

	return strings.Join(parts, "")
}
