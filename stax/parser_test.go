package stax

import "testing"

func parse(t *testing.T, source string) []Expr {
	t.Helper()
	exprs, err := ParseSource("test.stax", source)
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	return exprs
}

func wantParseError(t *testing.T, source string) {
	t.Helper()
	if _, err := ParseSource("test.stax", source); err == nil {
		t.Fatalf("parse %q succeeded, want error", source)
	}
}

func TestParseVar(t *testing.T) {
	exprs := parse(t, "var total = 1 2 + ;")
	if len(exprs) != 1 {
		t.Fatalf("expr count = %d, want 1", len(exprs))
	}
	decl, ok := exprs[0].(*VarExpr)
	if !ok {
		t.Fatalf("got %T, want *VarExpr", exprs[0])
	}
	if decl.Name.Value != "total" {
		t.Errorf("name = %q", decl.Name.Value)
	}
	if len(decl.Value) != 3 {
		t.Errorf("initializer length = %d, want 3", len(decl.Value))
	}
}

func TestParseIfElse(t *testing.T) {
	exprs := parse(t, "if 1 2 < { 1 pop } else { 2 pop }")
	ifExpr, ok := exprs[0].(*IfExpr)
	if !ok {
		t.Fatalf("got %T, want *IfExpr", exprs[0])
	}
	if len(ifExpr.Cond) != 3 {
		t.Errorf("condition length = %d, want 3", len(ifExpr.Cond))
	}
	if len(ifExpr.Then) != 2 || len(ifExpr.Else) != 2 {
		t.Errorf("then/else lengths = %d/%d, want 2/2", len(ifExpr.Then), len(ifExpr.Else))
	}

	exprs = parse(t, "if 1 { 2 pop }")
	if exprs[0].(*IfExpr).Else != nil {
		t.Error("if without else carries an else body")
	}
}

func TestParsePeek(t *testing.T) {
	exprs := parse(t, "peek a b c { a b + c + println }")
	peek, ok := exprs[0].(*PeekExpr)
	if !ok {
		t.Fatalf("got %T, want *PeekExpr", exprs[0])
	}
	if len(peek.Names) != 3 {
		t.Fatalf("name count = %d, want 3", len(peek.Names))
	}
	if peek.Names[0].Value != "a" || peek.Names[2].Value != "c" {
		t.Errorf("names = %v", peek.Names)
	}
}

func TestParseDupOperand(t *testing.T) {
	exprs := parse(t, "dup 2")
	op, ok := exprs[0].(*OpExpr)
	if !ok || op.Op != OperDup {
		t.Fatalf("got %T %v, want a dup operation", exprs[0], exprs[0])
	}
	if op.Arg == nil || *op.Arg != 2 {
		t.Errorf("dup operand = %v, want 2", op.Arg)
	}

	wantParseError(t, "dup")
	wantParseError(t, "dup -1")
}

func TestParseBuiltinWords(t *testing.T) {
	exprs := parse(t, "idxget idxset len print println call unknownword")
	wantOps := []BuiltinOp{BuiltinIdxGet, BuiltinIdxSet, BuiltinLen, BuiltinPrint, BuiltinPrintln, BuiltinFuncCall}
	for i, wantOp := range wantOps {
		b, ok := exprs[i].(*BuiltinExpr)
		if !ok {
			t.Fatalf("expr %d: got %T, want *BuiltinExpr", i, exprs[i])
		}
		if b.Op != wantOp {
			t.Errorf("expr %d: op = %s, want %s", i, b.Op, wantOp)
		}
	}
	if _, ok := exprs[len(wantOps)].(*IdentExpr); !ok {
		t.Errorf("unknown word parsed as %T, want *IdentExpr", exprs[len(wantOps)])
	}
}

func TestParseNestedList(t *testing.T) {
	exprs := parse(t, `[ 1 "two" [ 3 4 ] ]`)
	list, ok := exprs[0].(*ListExpr)
	if !ok {
		t.Fatalf("got %T, want *ListExpr", exprs[0])
	}
	if len(list.Elements) != 3 {
		t.Fatalf("element count = %d, want 3", len(list.Elements))
	}
	nested, ok := list.Elements[2].(*ListExpr)
	if !ok || len(nested.Elements) != 2 {
		t.Errorf("nested element = %T, want a two-element list", list.Elements[2])
	}
}

func TestParseErrors(t *testing.T) {
	sources := []string{
		"var = 1 ;",          // missing name
		"var x 1 ;",          // missing '='
		"var x = ;",          // empty initializer
		"var x = 1",          // missing ';'
		"if 1 { 2",           // unterminated block
		"while 1",            // missing block
		"peek { 1 }",         // no binding names
		"else { 1 }",         // dangling else
		"set 5",              // non-identifier target
		"[ 1 2",              // unterminated list
		"[ pop ]",            // non-literal element
		"}",                  // stray brace
	}
	for _, source := range sources {
		wantParseError(t, source)
	}
}
