package stax

// BuiltinOp identifies one entry of the fixed builtin table. Builtins are
// invoked through the Buildin opcode with the numeric id as operand.
type BuiltinOp int

const (
	BuiltinIdxGet BuiltinOp = iota
	BuiltinIdxSet
	BuiltinLen
	BuiltinPrintln
	BuiltinPrint
	BuiltinDebug
	BuiltinFuncCall
)

func (b BuiltinOp) String() string {
	return []string{
		"idxget", "idxset", "len", "println", "print", "debug", "call",
	}[b]
}

type Builtin struct {
	Name  string
	Arity int
	Fn    func(vm *VM) error
}

// BuiltinTable is the fixed dispatch table, indexed by BuiltinOp.
var BuiltinTable = []Builtin{
	{Name: "idxget", Arity: 2, Fn: builtinIdxGet},
	{Name: "idxset", Arity: 3, Fn: builtinIdxSet},
	{Name: "len", Arity: 1, Fn: builtinLen},
	{Name: "println", Arity: 1, Fn: builtinPrintln},
	{Name: "print", Arity: 1, Fn: builtinPrint},
	{Name: "debug", Arity: 0, Fn: builtinDebug},
	{Name: "call", Arity: 1, Fn: builtinFuncCall},
}

// BuiltinWords maps surface words to their ids, for the parser and the LSP.
var BuiltinWords = map[string]BuiltinOp{
	"idxget":  BuiltinIdxGet,
	"idxset":  BuiltinIdxSet,
	"len":     BuiltinLen,
	"println": BuiltinPrintln,
	"print":   BuiltinPrint,
	"call":    BuiltinFuncCall,
}

func BuiltinName(id int) (string, bool) {
	if id < 0 || id >= len(BuiltinTable) {
		return "", false
	}
	return BuiltinTable[id].Name, true
}

// idxget: pops index then list, pushes the element. The list stays shared;
// the pushed element aliases it for list-valued elements.
func builtinIdxGet(vm *VM) error {
	idx, err := vm.popStack()
	if err != nil {
		return err
	}
	coll, err := vm.popStack()
	if err != nil {
		return err
	}
	list, ok := coll.(*ListObj)
	if !ok {
		return TrapTypeMismatch
	}
	i, ok := idx.(IntObj)
	if !ok {
		return TrapTypeMismatch
	}
	if i.Value < 0 || i.Value >= int64(len(list.Elements)) {
		return TrapAddersOutOfBounds
	}
	return vm.pushStack(list.Elements[i.Value])
}

// idxset: pops value, index, list and mutates the list in place. Every other
// reference to the same list observes the write.
func builtinIdxSet(vm *VM) error {
	value, err := vm.popStack()
	if err != nil {
		return err
	}
	idx, err := vm.popStack()
	if err != nil {
		return err
	}
	coll, err := vm.popStack()
	if err != nil {
		return err
	}
	list, ok := coll.(*ListObj)
	if !ok {
		return TrapTypeMismatch
	}
	i, ok := idx.(IntObj)
	if !ok {
		return TrapTypeMismatch
	}
	if i.Value < 0 || i.Value >= int64(len(list.Elements)) {
		return TrapAddersOutOfBounds
	}
	list.Elements[i.Value] = value
	return nil
}

func builtinLen(vm *VM) error {
	value, err := vm.popStack()
	if err != nil {
		return err
	}
	switch v := value.(type) {
	case *ListObj:
		return vm.pushStack(IntObj{Value: int64(len(v.Elements))})
	case StrObj:
		return vm.pushStack(IntObj{Value: int64(len(v.Value))})
	default:
		return TrapTypeMismatch
	}
}

func builtinPrintln(vm *VM) error {
	value, err := vm.popStack()
	if err != nil {
		return err
	}
	vm.write(value.String() + "\n")
	return nil
}

func builtinPrint(vm *VM) error {
	value, err := vm.popStack()
	if err != nil {
		return err
	}
	vm.write(value.String())
	return nil
}

func builtinDebug(vm *VM) error {
	vm.debugDump()
	return nil
}

// call: computed jump. Pops an absolute instruction address and transfers
// control there, validated like Jmp.
func builtinFuncCall(vm *VM) error {
	value, err := vm.popStack()
	if err != nil {
		return err
	}
	addr, ok := value.(IntObj)
	if !ok {
		return TrapTypeMismatch
	}
	if addr.Value < 0 || addr.Value > int64(len(vm.program)) {
		return TrapAddersOutOfBounds
	}
	vm.ip = int(addr.Value)
	return nil
}
