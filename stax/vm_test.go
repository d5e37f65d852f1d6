package stax

import (
	"bytes"
	"errors"
	"testing"
)

// runProgram executes hand-built bytecode and returns the VM and its error.
func runProgram(t *testing.T, bc *Bytecode) (*VM, error) {
	t.Helper()
	vm := NewVM(bc)
	vm.Stdout = &bytes.Buffer{}
	return vm, vm.Run()
}

// runSource compiles and runs source text, returning the captured output.
func runSource(t *testing.T, source string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	err := RunSource("test.stax", source, out)
	return out.String(), err
}

func wantTrap(t *testing.T, err error, trap Trap) {
	t.Helper()
	if !errors.Is(err, trap) {
		t.Fatalf("got error %v, want trap %s", err, trap)
	}
}

func TestArithmeticPopOrder(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"10 3 - println", "7\n"},
		{"10 3 / println", "3\n"},
		{"10 3 % println", "1\n"},
		{"2 3 + println", "5\n"},
		{"4 5 * println", "20\n"},
		{"1 4 << println", "16\n"},
		{"16 2 >> println", "4\n"},
		{"6 3 & println", "2\n"},
		{"4 1 | println", "5\n"},
	}
	for _, tt := range tests {
		out, err := runSource(t, tt.source)
		if err != nil {
			t.Fatalf("%q: %v", tt.source, err)
		}
		if out != tt.want {
			t.Errorf("%q printed %q, want %q", tt.source, out, tt.want)
		}
	}
}

func TestComparisonOrientation(t *testing.T) {
	// The earlier-pushed operand is the left-hand side: `1 2 <` asks 1 < 2.
	tests := []struct {
		source string
		want   string
	}{
		{"1 2 < println", "1\n"},
		{"1 2 > println", "0\n"},
		{"2 2 >= println", "1\n"},
		{"3 2 <= println", "0\n"},
		{"2 2 == println", "1\n"},
		{"2 3 != println", "1\n"},
	}
	for _, tt := range tests {
		out, err := runSource(t, tt.source)
		if err != nil {
			t.Fatalf("%q: %v", tt.source, err)
		}
		if out != tt.want {
			t.Errorf("%q printed %q, want %q", tt.source, out, tt.want)
		}
	}
}

func TestLogicalOps(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"1 1 && println", "1\n"},
		{"1 0 && println", "0\n"},
		{"0 0 || println", "0\n"},
		{"0 5 || println", "1\n"},
		{"0 ! println", "1\n"},
		{"7 ! println", "0\n"},
	}
	for _, tt := range tests {
		out, err := runSource(t, tt.source)
		if err != nil {
			t.Fatalf("%q: %v", tt.source, err)
		}
		if out != tt.want {
			t.Errorf("%q printed %q, want %q", tt.source, out, tt.want)
		}
	}
}

func TestDivByZero(t *testing.T) {
	_, err := runSource(t, "1 0 /")
	wantTrap(t, err, TrapDivByZero)

	_, err = runSource(t, "1 0 %")
	wantTrap(t, err, TrapDivByZero)
}

func TestStackBounds(t *testing.T) {
	// Exactly at capacity: fine.
	program := []Instruction{}
	for i := 0; i < StackCapacity; i++ {
		program = append(program, InstOp(OpConst, 0))
	}
	program = append(program, Inst(OpHalt))
	bc := &Bytecode{Program: program, Consts: []Value{IntObj{Value: 1}}}
	vm, err := runProgram(t, bc)
	if err != nil {
		t.Fatalf("filling the stack to capacity: %v", err)
	}
	if len(vm.Stack()) != StackCapacity {
		t.Fatalf("stack depth = %d, want %d", len(vm.Stack()), StackCapacity)
	}

	// One more push faults.
	program = append(program[:len(program)-1], InstOp(OpConst, 0), Inst(OpHalt))
	_, err = runProgram(t, &Bytecode{Program: program, Consts: bc.Consts})
	wantTrap(t, err, TrapStackOverflow)
}

func TestStackUnderflow(t *testing.T) {
	_, err := runSource(t, "pop")
	wantTrap(t, err, TrapStackUnderflow)

	_, err = runSource(t, "1 +")
	wantTrap(t, err, TrapStackUnderflow)

	_, err = runSource(t, "1 swap")
	wantTrap(t, err, TrapStackUnderflow)

	_, err = runSource(t, "1 over")
	wantTrap(t, err, TrapStackUnderflow)
}

func TestStackShuffling(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"1 2 swap println println", "1\n2\n"},
		{"1 2 over println println println", "1\n2\n1\n"},
		{"5 dup 0 println println", "5\n5\n"},
		{"1 2 3 dup 2 println", "1\n"},
		{"1 2 pop println", "1\n"},
	}
	for _, tt := range tests {
		out, err := runSource(t, tt.source)
		if err != nil {
			t.Fatalf("%q: %v", tt.source, err)
		}
		if out != tt.want {
			t.Errorf("%q printed %q, want %q", tt.source, out, tt.want)
		}
	}
}

func TestDupBoundsCheckOrder(t *testing.T) {
	// An offset past the program length trips the sanity check before the
	// depth check is ever consulted.
	bc := &Bytecode{Program: []Instruction{InstOp(OpDup, 100), Inst(OpHalt)}}
	_, err := runProgram(t, bc)
	wantTrap(t, err, TrapStackOverflow)

	// Sane offset but not enough values underneath: underflow.
	bc = &Bytecode{Program: []Instruction{
		InstOp(OpConst, 0),
		InstOp(OpDup, 1),
		Inst(OpHalt),
	}, Consts: []Value{IntObj{Value: 1}}}
	_, err = runProgram(t, bc)
	wantTrap(t, err, TrapStackUnderflow)
}

func TestJumpBounds(t *testing.T) {
	bc := &Bytecode{Program: []Instruction{InstOp(OpJmp, 99)}}
	_, err := runProgram(t, bc)
	wantTrap(t, err, TrapAddersOutOfBounds)

	bc = &Bytecode{Program: []Instruction{
		InstOp(OpConst, 0),
		InstOp(OpJmpIf, 99),
	}, Consts: []Value{IntObj{Value: 1}}}
	_, err = runProgram(t, bc)
	wantTrap(t, err, TrapAddersOutOfBounds)
}

func TestJmpIfOnlyTransfersOnOne(t *testing.T) {
	// Any value other than the integer 1 falls through.
	for _, cond := range []Value{IntObj{Value: 0}, IntObj{Value: 2}, StrObj{Value: "1"}} {
		bc := &Bytecode{Program: []Instruction{
			InstOp(OpConst, 0),
			InstOp(OpJmpIf, 4),
			InstOp(OpConst, 1),
			Inst(OpPrintln),
			Inst(OpHalt),
		}, Consts: []Value{cond, IntObj{Value: 7}}}
		vm := NewVM(bc)
		out := &bytes.Buffer{}
		vm.Stdout = out
		if err := vm.Run(); err != nil {
			t.Fatalf("cond %v: %v", cond, err)
		}
		if out.String() != "7\n" {
			t.Errorf("cond %v: printed %q, want fall-through output", cond, out.String())
		}
	}

	// The integer 1 transfers.
	bc := &Bytecode{Program: []Instruction{
		InstOp(OpConst, 0),
		InstOp(OpJmpIf, 4),
		InstOp(OpConst, 1),
		Inst(OpPrintln),
		Inst(OpHalt),
	}, Consts: []Value{IntObj{Value: 1}, IntObj{Value: 7}}}
	vm := NewVM(bc)
	out := &bytes.Buffer{}
	vm.Stdout = out
	if err := vm.Run(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "" {
		t.Errorf("printed %q, want the branch skipped", out.String())
	}
}

func TestOperandNotProvided(t *testing.T) {
	for _, op := range []Opcode{OpConst, OpJmp, OpDup, OpGlobalStore, OpGlobalLoad, OpBind, OpUnbind, OpPushBind, OpBuildin} {
		bc := &Bytecode{Program: []Instruction{Inst(op)}, Consts: []Value{IntObj{}}}
		_, err := runProgram(t, bc)
		wantTrap(t, err, TrapOperandNotProvided)
	}
}

func TestProgramEndedWithoutHalt(t *testing.T) {
	bc := &Bytecode{Program: []Instruction{
		InstOp(OpConst, 0),
		Inst(OpPop),
	}, Consts: []Value{IntObj{Value: 1}}}
	_, err := runProgram(t, bc)
	wantTrap(t, err, TrapProgramEndedWithoutHalt)
}

func TestTrapStopsExecution(t *testing.T) {
	// Nothing after the faulting instruction runs.
	bc := &Bytecode{Program: []Instruction{
		InstOp(OpConst, 0),
		InstOp(OpConst, 1),
		Inst(OpDiv),
		InstOp(OpConst, 2),
		Inst(OpPrintln),
		Inst(OpHalt),
	}, Consts: []Value{IntObj{Value: 1}, IntObj{Value: 0}, IntObj{Value: 9}}}
	vm := NewVM(bc)
	out := &bytes.Buffer{}
	vm.Stdout = out
	err := vm.Run()
	wantTrap(t, err, TrapDivByZero)
	if out.String() != "" {
		t.Errorf("output after trap: %q", out.String())
	}
	if vm.IsHalted() {
		t.Error("trapped VM reports halted")
	}
}

func TestGlobalSlots(t *testing.T) {
	out, err := runSource(t, "var a = 1 ; var b = 2 ; a println b println 40 set a a println")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1\n2\n40\n" {
		t.Errorf("printed %q", out)
	}
}

func TestGlobalLoadOutOfBounds(t *testing.T) {
	bc := &Bytecode{Program: []Instruction{InstOp(OpGlobalLoad, 3), Inst(OpHalt)}}
	_, err := runProgram(t, bc)
	wantTrap(t, err, TrapAddersOutOfBounds)
}

func TestBindWindow(t *testing.T) {
	// Bind records without popping; the bound values stay on the stack.
	out, err := runSource(t, "10 20 peek a b { a println b println } + println")
	if err != nil {
		t.Fatal(err)
	}
	if out != "10\n20\n30\n" {
		t.Errorf("printed %q, want bindings then the undisturbed sum", out)
	}
}

func TestNestedBindWindows(t *testing.T) {
	out, err := runSource(t, "1 2 peek a { 3 4 peek b c { a println b println c println } pop pop } pop pop")
	if err != nil {
		t.Fatal(err)
	}
	if out != "2\n3\n4\n" {
		t.Errorf("printed %q", out)
	}
}

func TestShadowedBindRoundTrip(t *testing.T) {
	// The inner `a` wins inside its block; the outer resolution comes back
	// after it exits.
	out, err := runSource(t, "1 peek a { a println 2 peek a { a println } pop a println } pop")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1\n2\n1\n" {
		t.Errorf("printed %q", out)
	}
}

func TestBindUnderflow(t *testing.T) {
	_, err := runSource(t, "1 peek a b { }")
	wantTrap(t, err, TrapStackUnderflow)
}

func TestListBuiltins(t *testing.T) {
	out, err := runSource(t, `[ 10 20 30 ] 1 idxget println`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "20\n" {
		t.Errorf("idxget printed %q", out)
	}

	out, err = runSource(t, `[ 1 2 ] len println "abc" len println`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "2\n3\n" {
		t.Errorf("len printed %q", out)
	}
}

func TestListAliasing(t *testing.T) {
	// idxset mutates the one shared list value; the later read through the
	// same variable observes the write.
	out, err := runSource(t, "var xs = [ 1 2 3 ] ; xs 0 99 idxset xs 0 idxget println")
	if err != nil {
		t.Fatal(err)
	}
	if out != "99\n" {
		t.Errorf("printed %q, want the mutated element", out)
	}
}

func TestListIndexOutOfBounds(t *testing.T) {
	_, err := runSource(t, "[ 1 ] 5 idxget")
	wantTrap(t, err, TrapAddersOutOfBounds)

	_, err = runSource(t, "[ 1 ] 0 1 - 0 idxset")
	wantTrap(t, err, TrapAddersOutOfBounds) // negative index
}

func TestTypeMismatch(t *testing.T) {
	_, err := runSource(t, `"a" 1 +`)
	wantTrap(t, err, TrapTypeMismatch)

	_, err = runSource(t, "1 2 idxget")
	wantTrap(t, err, TrapTypeMismatch)

	_, err = runSource(t, "5 len")
	wantTrap(t, err, TrapTypeMismatch)
}

func TestInvalidBuiltinId(t *testing.T) {
	bc := &Bytecode{Program: []Instruction{InstOp(OpBuildin, 42), Inst(OpHalt)}}
	_, err := runProgram(t, bc)
	wantTrap(t, err, TrapAddersOutOfBounds)
}

func TestComputedCall(t *testing.T) {
	// call pops an absolute address; target past the end traps like Jmp.
	bc := &Bytecode{Program: []Instruction{
		InstOp(OpConst, 0),
		InstOp(OpBuildin, int(BuiltinFuncCall)),
		InstOp(OpConst, 1),
		Inst(OpPrintln),
		Inst(OpHalt),
	}, Consts: []Value{IntObj{Value: 4}, IntObj{Value: 9}}}
	vm := NewVM(bc)
	out := &bytes.Buffer{}
	vm.Stdout = out
	if err := vm.Run(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "" {
		t.Errorf("printed %q, want the print skipped by the computed jump", out.String())
	}

	bc = &Bytecode{Program: []Instruction{
		InstOp(OpConst, 0),
		InstOp(OpBuildin, int(BuiltinFuncCall)),
	}, Consts: []Value{IntObj{Value: 99}}}
	_, err := runProgram(t, bc)
	wantTrap(t, err, TrapAddersOutOfBounds)
}

func TestEndToEndVarArithmetic(t *testing.T) {
	out, err := runSource(t, "var x = 2 3 + ; x print")
	if err != nil {
		t.Fatal(err)
	}
	if out != "5" {
		t.Errorf("printed %q, want 5", out)
	}
}

func TestEndToEndIfElse(t *testing.T) {
	out, err := runSource(t, "if 1 1 == { 1 print } else { 0 print }")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1" {
		t.Errorf("printed %q, want exactly 1", out)
	}

	out, err = runSource(t, "if 1 2 == { 1 print } else { 0 print }")
	if err != nil {
		t.Fatal(err)
	}
	if out != "0" {
		t.Errorf("printed %q, want exactly 0", out)
	}
}

func TestEndToEndWhileCountdown(t *testing.T) {
	out, err := runSource(t, "var n = 3 ; while n 0 > { n println n 1 - set n }")
	if err != nil {
		t.Fatal(err)
	}
	if out != "3\n2\n1\n" {
		t.Errorf("printed %q, want the countdown", out)
	}
}

func TestWhileZeroIterations(t *testing.T) {
	out, err := runSource(t, "while 0 1 == { 1 println } 9 println")
	if err != nil {
		t.Fatal(err)
	}
	if out != "9\n" {
		t.Errorf("printed %q, want the body never entered", out)
	}
}

func TestDebugDump(t *testing.T) {
	out, err := runSource(t, "1 2 debug pop pop")
	if err != nil {
		t.Fatal(err)
	}
	want := "VM: [1 2] SP: 2 IP: 3\n"
	if out != want {
		t.Errorf("debug printed %q, want %q", out, want)
	}
}
