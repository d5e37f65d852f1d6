package stax

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// StackCapacity is the fixed operand stack capacity.
const StackCapacity = 1024

// VM executes one Bytecode. One instance owns exactly one operand stack, one
// global slot table, one binding window and one instruction pointer; nothing
// is shared across concurrent runs.
type VM struct {
	program []Instruction
	consts  []Value

	stack  []Value
	sp     int // redundant depth counter, bounds-checked independently of the buffer
	ip     int
	halted bool

	globals []Value
	binds   []Value

	Stdout io.Writer
}

func NewVM(bc *Bytecode) *VM {
	return &VM{
		program: bc.Program,
		consts:  bc.Consts,
		stack:   make([]Value, 0, StackCapacity),
		Stdout:  os.Stdout,
	}
}

func (vm *VM) IsHalted() bool { return vm.halted }

// IP returns the current instruction pointer, for post-trap diagnostics.
func (vm *VM) IP() int { return vm.ip }

// Stack returns the live operand stack up to the current depth. Callers must
// treat it as read-only.
func (vm *VM) Stack() []Value { return vm.stack[:vm.sp] }

// Run steps the machine until it halts or a trap occurs. No instruction after
// a trap executes.
func (vm *VM) Run() error {
	for !vm.halted {
		if err := vm.ExecuteNext(); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteNext fetches, decodes and executes one instruction. The instruction
// pointer is advanced before decoding, so jumps overwrite the default next
// address. Walking past the end of the program without a Halt is a trap.
func (vm *VM) ExecuteNext() error {
	vm.ip++
	if vm.ip > len(vm.program) {
		return TrapProgramEndedWithoutHalt
	}
	instr := vm.program[vm.ip-1]

	switch instr.Op {
	case OpConst:
		idx, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(vm.consts) {
			return TrapAddersOutOfBounds
		}
		return vm.pushStack(vm.consts[idx])

	case OpPop:
		_, err := vm.popStack()
		return err

	case OpDup:
		// Operand is a relative offset from the stack top. The bounds-sanity
		// check against the program length runs before the depth check.
		offset, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if offset < 0 || offset > len(vm.program) {
			return TrapStackOverflow
		}
		if vm.sp-offset <= 0 {
			return TrapStackUnderflow
		}
		return vm.pushStack(vm.stack[vm.sp-1-offset])

	case OpSwap:
		op1, err := vm.popStack()
		if err != nil {
			return err
		}
		op2, err := vm.popStack()
		if err != nil {
			return err
		}
		if err := vm.pushStack(op1); err != nil {
			return err
		}
		return vm.pushStack(op2)

	case OpOver:
		if vm.sp < 2 {
			return TrapStackUnderflow
		}
		return vm.pushStack(vm.stack[vm.sp-2])

	case OpAdd, OpMinus, OpMul, OpDiv, OpMod, OpShl, OpShr, OpBitand, OpBitor, OpLand, OpLor:
		return vm.binaryOp(instr.Op)

	case OpLnot:
		value, err := vm.popInt()
		if err != nil {
			return err
		}
		return vm.pushStack(boolToInt(value == 0))

	case OpEq, OpNeq:
		op1, err := vm.popStack()
		if err != nil {
			return err
		}
		op2, err := vm.popStack()
		if err != nil {
			return err
		}
		eq := valueEquals(op1, op2)
		if instr.Op == OpNeq {
			eq = !eq
		}
		return vm.pushStack(boolToInt(eq))

	case OpGt, OpGte, OpLt, OpLte:
		return vm.compareOp(instr.Op)

	case OpJmp:
		target, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if target < 0 || target > len(vm.program) {
			return TrapAddersOutOfBounds
		}
		vm.ip = target
		return nil

	case OpJmpIf:
		cond, err := vm.popStack()
		if err != nil {
			return err
		}
		target, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if target < 0 || target > len(vm.program) {
			return TrapAddersOutOfBounds
		}
		if c, ok := cond.(IntObj); ok && c.Value == 1 {
			vm.ip = target
		}
		return nil

	case OpGlobalStore:
		slot, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if slot < 0 {
			return TrapAddersOutOfBounds
		}
		value, err := vm.popStack()
		if err != nil {
			return err
		}
		for len(vm.globals) <= slot {
			vm.globals = append(vm.globals, IntObj{})
		}
		vm.globals[slot] = value
		return nil

	case OpGlobalLoad:
		slot, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if slot < 0 || slot >= len(vm.globals) {
			return TrapAddersOutOfBounds
		}
		return vm.pushStack(vm.globals[slot])

	case OpBind:
		n, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if n < 0 || vm.sp < n {
			return TrapStackUnderflow
		}
		// Bound values stay on the stack; the window records them top-first
		// so nested windows extend it the way the compiler counts positions.
		for i := 1; i <= n; i++ {
			vm.binds = append(vm.binds, vm.stack[vm.sp-i])
		}
		return nil

	case OpUnbind:
		n, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if n < 0 || len(vm.binds) < n {
			return TrapStackUnderflow
		}
		vm.binds = vm.binds[:len(vm.binds)-n]
		return nil

	case OpPushBind:
		pos, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if pos < 0 || pos >= len(vm.binds) {
			return TrapStackUnderflow
		}
		return vm.pushStack(vm.binds[pos])

	case OpBuildin:
		id, err := vm.operand(instr)
		if err != nil {
			return err
		}
		if id < 0 || id >= len(BuiltinTable) {
			return TrapAddersOutOfBounds
		}
		return BuiltinTable[id].Fn(vm)

	case OpPrint:
		value, err := vm.popStack()
		if err != nil {
			return err
		}
		vm.write(value.String())
		return nil

	case OpPrintln:
		value, err := vm.popStack()
		if err != nil {
			return err
		}
		vm.write(value.String() + "\n")
		return nil

	case OpDebug:
		vm.debugDump()
		return nil

	case OpNop:
		return nil

	case OpHalt:
		vm.halted = true
		return nil

	default:
		// Opcode tag outside the instruction set; only reachable through a
		// malformed hand-built program.
		return TrapAddersOutOfBounds
	}
}

func (vm *VM) operand(instr Instruction) (int, error) {
	if instr.Operand == nil {
		return 0, TrapOperandNotProvided
	}
	return *instr.Operand, nil
}

func (vm *VM) pushStack(value Value) error {
	if vm.sp+1 > StackCapacity {
		return TrapStackOverflow
	}
	if vm.sp < len(vm.stack) {
		vm.stack[vm.sp] = value
	} else {
		vm.stack = append(vm.stack, value)
	}
	vm.sp++
	return nil
}

func (vm *VM) popStack() (Value, error) {
	if vm.sp == 0 {
		return nil, TrapStackUnderflow
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

func (vm *VM) popInt() (int64, error) {
	value, err := vm.popStack()
	if err != nil {
		return 0, err
	}
	n, ok := value.(IntObj)
	if !ok {
		return 0, TrapTypeMismatch
	}
	return n.Value, nil
}

// binaryOp pops op2 then op1, establishing `op1 OP op2` with op1 the operand
// pushed earlier.
func (vm *VM) binaryOp(op Opcode) error {
	op2, err := vm.popInt()
	if err != nil {
		return err
	}
	op1, err := vm.popInt()
	if err != nil {
		return err
	}

	var result int64
	switch op {
	case OpAdd:
		result = op1 + op2
	case OpMinus:
		result = op1 - op2
	case OpMul:
		result = op1 * op2
	case OpDiv:
		if op2 == 0 {
			return TrapDivByZero
		}
		result = op1 / op2
	case OpMod:
		if op2 == 0 {
			return TrapDivByZero
		}
		result = op1 % op2
	case OpShl:
		result = op1 << uint64(op2)
	case OpShr:
		result = op1 >> uint64(op2)
	case OpBitand:
		result = op1 & op2
	case OpBitor:
		result = op1 | op2
	case OpLand:
		return vm.pushStack(boolToInt(op1 != 0 && op2 != 0))
	case OpLor:
		return vm.pushStack(boolToInt(op1 != 0 || op2 != 0))
	}
	return vm.pushStack(IntObj{Value: result})
}

// compareOp compares op1 against op2 in the natural orientation: Gt pushes
// op1 > op2 where op1 was pushed earlier.
func (vm *VM) compareOp(op Opcode) error {
	op2, err := vm.popInt()
	if err != nil {
		return err
	}
	op1, err := vm.popInt()
	if err != nil {
		return err
	}

	var result bool
	switch op {
	case OpGt:
		result = op1 > op2
	case OpGte:
		result = op1 >= op2
	case OpLt:
		result = op1 < op2
	case OpLte:
		result = op1 <= op2
	}
	return vm.pushStack(boolToInt(result))
}

func (vm *VM) write(s string) {
	fmt.Fprint(vm.Stdout, s)
}

func (vm *VM) debugDump() {
	parts := make([]string, 0, vm.sp)
	for _, v := range vm.stack[:vm.sp] {
		parts = append(parts, v.String())
	}
	fmt.Fprintf(vm.Stdout, "VM: [%s] SP: %d IP: %d\n", strings.Join(parts, " "), vm.sp, vm.ip)
}
