package stax

// Compiler lowers an ordered expression sequence into linear bytecode in a
// single forward pass. Jump placeholders are the only instructions ever
// rewritten, and only while compilation is still running.
type Compiler struct {
	instrs []Instruction
	consts []Value

	// Globals and local bindings are mutually exclusive namespaces: a name
	// registered in one may not be introduced in the other.
	globals     map[string]int
	locals      map[string]int
	globalCount int
}

func NewCompiler() *Compiler {
	return &Compiler{
		globals: map[string]int{},
		locals:  map[string]int{},
	}
}

// Compile consumes the expression sequence and returns the finished bytecode
// or the first compile error. A final Halt is appended so compiled programs
// terminate instead of running off the end.
func (c *Compiler) Compile(exprs []Expr) (*Bytecode, error) {
	c.instrs = []Instruction{}
	c.consts = []Value{}
	c.globals = map[string]int{}
	c.locals = map[string]int{}
	c.globalCount = 0

	for _, e := range exprs {
		if err := c.compileExpr(e); err != nil {
			return nil, err
		}
	}
	c.emit(Inst(OpHalt))

	return &Bytecode{
		Program: c.instrs,
		Consts:  c.consts,
	}, nil
}

func (c *Compiler) emit(instr Instruction) int {
	idx := len(c.instrs)
	c.instrs = append(c.instrs, instr)
	return idx
}

// emitPlaceholder emits a jump with no target yet; the returned index must be
// patched before compilation finishes.
func (c *Compiler) emitPlaceholder(op Opcode) int {
	return c.emit(Inst(op))
}

// patchJump rewrites the recorded placeholder in place. Out-of-range patch
// indices fail loudly instead of corrupting the program.
func (c *Compiler) patchJump(idx, target int, loc Loc) error {
	if idx < 0 || idx >= len(c.instrs) {
		return CompileErrorf(loc, "internal: jump patch index %d outside program of length %d", idx, len(c.instrs))
	}
	instr := &c.instrs[idx]
	if instr.Op != OpJmp && instr.Op != OpJmpIf {
		return CompileErrorf(loc, "internal: patch target %d holds %s, not a jump", idx, instr.Op)
	}
	instr.Operand = &target
	return nil
}

func (c *Compiler) addConstant(value Value) int {
	c.consts = append(c.consts, value)
	return len(c.consts) - 1
}

func (c *Compiler) compileExpr(expr Expr) error {
	switch e := expr.(type) {
	case *IfExpr:
		return c.visitIf(e)
	case *WhileExpr:
		return c.visitWhile(e)
	case *VarExpr:
		return c.visitVar(e)
	case *PeekExpr:
		return c.visitPeek(e)
	case *AssignExpr:
		return c.visitAssign(e)
	default:
		return c.simpleExpr(expr)
	}
}

func (c *Compiler) compileAll(exprs []Expr) error {
	for _, e := range exprs {
		if err := c.compileExpr(e); err != nil {
			return err
		}
	}
	return nil
}

// condition compiles a structured-control condition. JmpIf transfers on the
// truthy sentinel 1, so the condition is negated to make the emitted jump a
// jump-past-branch.
func (c *Compiler) condition(exprs []Expr) error {
	if err := c.compileAll(exprs); err != nil {
		return err
	}
	c.emit(Inst(OpLnot))
	return nil
}

func (c *Compiler) visitIf(expr *IfExpr) error {
	if err := c.condition(expr.Cond); err != nil {
		return err
	}

	skipThenIdx := c.emitPlaceholder(OpJmpIf)
	if err := c.compileAll(expr.Then); err != nil {
		return err
	}

	if expr.Else == nil {
		return c.patchJump(skipThenIdx, len(c.instrs), expr.Token.Loc)
	}

	skipElseIdx := c.emitPlaceholder(OpJmp)
	// The conditional jump lands on the first else instruction, one past the
	// unconditional jump that closes the then-branch.
	if err := c.patchJump(skipThenIdx, skipElseIdx+1, expr.Token.Loc); err != nil {
		return err
	}
	if err := c.compileAll(expr.Else); err != nil {
		return err
	}
	return c.patchJump(skipElseIdx, len(c.instrs), expr.Token.Loc)
}

func (c *Compiler) visitWhile(expr *WhileExpr) error {
	loopStart := len(c.instrs)
	if err := c.condition(expr.Cond); err != nil {
		return err
	}

	exitIdx := c.emitPlaceholder(OpJmpIf)
	if err := c.compileAll(expr.Body); err != nil {
		return err
	}

	c.emit(InstOp(OpJmp, loopStart))
	return c.patchJump(exitIdx, len(c.instrs), expr.Token.Loc)
}

func (c *Compiler) visitVar(expr *VarExpr) error {
	name := expr.Name.Value
	if _, ok := c.locals[name]; ok {
		return CompileErrorf(expr.Name.Loc, "variable '%s' is already a peek binding", name)
	}

	slot, ok := c.globals[name]
	if !ok {
		slot = c.globalCount
		c.globalCount++
		// Registered before the initializer compiles, like assignment to a
		// fresh name; redeclaration reuses the slot.
		c.globals[name] = slot
	}

	for _, e := range expr.Value {
		if err := c.simpleExpr(e); err != nil {
			return err
		}
	}
	c.emit(InstOp(OpGlobalStore, slot))
	return nil
}

func (c *Compiler) visitAssign(expr *AssignExpr) error {
	name := expr.Name.Value
	if _, ok := c.locals[name]; ok {
		return CompileErrorf(expr.Name.Loc, "cannot assign to peek binding '%s'", name)
	}

	slot, ok := c.globals[name]
	if !ok {
		slot = c.globalCount
		c.globalCount++
		c.globals[name] = slot
	}
	c.emit(InstOp(OpGlobalStore, slot))
	return nil
}

// visitPeek binds N names over the top N stack values for the extent of the
// block. Names are registered in reverse declaration order so the
// last-declared name sits at the lowest free window position (the stack top).
// Shadowed bindings are saved and restored exactly.
func (c *Compiler) visitPeek(expr *PeekExpr) error {
	n := len(expr.Names)
	c.emit(InstOp(OpBind, n))

	type shadow struct {
		name string
		pos  int
	}
	var shadows []shadow

	for i := n - 1; i >= 0; i-- {
		tok := expr.Names[i]
		name := tok.Value
		if _, ok := c.globals[name]; ok {
			return CompileErrorf(tok.Loc, "peek binding '%s' is already a variable name", name)
		}
		if prev, ok := c.locals[name]; ok {
			shadows = append(shadows, shadow{name: name, pos: prev})
		}
		c.locals[name] = len(c.locals)
	}

	if err := c.compileAll(expr.Body); err != nil {
		return err
	}

	c.emit(InstOp(OpUnbind, n))
	for _, tok := range expr.Names {
		delete(c.locals, tok.Value)
	}
	for _, s := range shadows {
		c.locals[s.name] = s.pos
	}
	return nil
}

// simpleExpr lowers a node that must produce (or consume) values in a flat
// expression position. Structured nodes are rejected here.
func (c *Compiler) simpleExpr(expr Expr) error {
	switch e := expr.(type) {
	case *IntExpr:
		idx := c.addConstant(IntObj{Value: e.Value})
		c.emit(InstOp(OpConst, idx))

	case *StrExpr:
		idx := c.addConstant(StrObj{Value: e.Value})
		c.emit(InstOp(OpConst, idx))

	case *ListExpr:
		list, err := c.listConstant(e)
		if err != nil {
			return err
		}
		idx := c.addConstant(list)
		c.emit(InstOp(OpConst, idx))

	case *OpExpr:
		return c.emitOperation(e)

	case *BuiltinExpr:
		c.emit(InstOp(OpBuildin, int(e.Op)))

	case *IdentExpr:
		if pos, ok := c.locals[e.Name]; ok {
			c.emit(InstOp(OpPushBind, pos))
		} else if slot, ok := c.globals[e.Name]; ok {
			c.emit(InstOp(OpGlobalLoad, slot))
		} else {
			return CompileErrorf(e.Token.Loc, "'%s' is not defined", e.Name)
		}

	case *AssignExpr:
		return c.visitAssign(e)

	default:
		return CompileErrorf(locOf(expr), "%s is not a simple expression", expr.String())
	}
	return nil
}

// listConstant folds a literal-only list node into one shared runtime value.
func (c *Compiler) listConstant(expr *ListExpr) (*ListObj, error) {
	list := &ListObj{Elements: make([]Value, 0, len(expr.Elements))}
	for _, e := range expr.Elements {
		switch elem := e.(type) {
		case *IntExpr:
			list.Elements = append(list.Elements, IntObj{Value: elem.Value})
		case *StrExpr:
			list.Elements = append(list.Elements, StrObj{Value: elem.Value})
		case *ListExpr:
			nested, err := c.listConstant(elem)
			if err != nil {
				return nil, err
			}
			list.Elements = append(list.Elements, nested)
		default:
			return nil, CompileErrorf(locOf(e), "%s is not a list literal element", e.String())
		}
	}
	return list, nil
}

var operationOpcodes = map[Operation]Opcode{
	OperPop:    OpPop,
	OperDup:    OpDup,
	OperSwap:   OpSwap,
	OperOver:   OpOver,
	OperAdd:    OpAdd,
	OperMinus:  OpMinus,
	OperMul:    OpMul,
	OperDiv:    OpDiv,
	OperMod:    OpMod,
	OperShl:    OpShl,
	OperShr:    OpShr,
	OperBitand: OpBitand,
	OperBitor:  OpBitor,
	OperLand:   OpLand,
	OperLor:    OpLor,
	OperLnot:   OpLnot,
	OperEq:     OpEq,
	OperNeq:    OpNeq,
	OperGt:     OpGt,
	OperGte:    OpGte,
	OperLt:     OpLt,
	OperLte:    OpLte,
}

func (c *Compiler) emitOperation(expr *OpExpr) error {
	op, ok := operationOpcodes[expr.Op]
	if !ok {
		return CompileErrorf(locOf(expr), "unsupported operation '%s'", expr.Op)
	}
	if expr.Op == OperDup {
		if expr.Arg == nil {
			return CompileErrorf(locOf(expr), "dup requires an offset operand")
		}
		c.emit(InstOp(op, *expr.Arg))
		return nil
	}
	c.emit(Inst(op))
	return nil
}

func locOf(expr Expr) Loc {
	if tok := expr.GetToken(); tok != nil {
		return tok.Loc
	}
	return Loc{}
}
