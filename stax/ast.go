package stax

import (
	"fmt"
	"strings"
)

// Operation is a plain stack operator word. Dup carries its offset operand.
type Operation int

const (
	OperPop Operation = iota
	OperDup
	OperSwap
	OperOver
	OperAdd
	OperMinus
	OperMul
	OperDiv
	OperMod
	OperShl
	OperShr
	OperBitand
	OperBitor
	OperLand
	OperLor
	OperLnot
	OperEq
	OperNeq
	OperGt
	OperGte
	OperLt
	OperLte
)

func (o Operation) String() string {
	return []string{
		"pop", "dup", "swap", "over",
		"+", "-", "*", "/", "%", "<<", ">>", "&", "|",
		"&&", "||", "!",
		"==", "!=", ">", ">=", "<", "<=",
	}[o]
}

// Expr is one node of the expression tree handed to the compiler. The
// compiler consumes the sequence in one forward pass and never retains it.
type Expr interface {
	GetToken() *Token
	String() string
}

type OpExpr struct {
	Token *Token
	Op    Operation
	// Arg is only meaningful for OperDup (relative stack offset).
	Arg *int
}

func (e *OpExpr) GetToken() *Token { return e.Token }
func (e *OpExpr) String() string {
	if e.Arg != nil {
		return fmt.Sprintf("Op(%s %d)", e.Op, *e.Arg)
	}
	return fmt.Sprintf("Op(%s)", e.Op)
}

type BuiltinExpr struct {
	Token *Token
	Op    BuiltinOp
}

func (e *BuiltinExpr) GetToken() *Token { return e.Token }
func (e *BuiltinExpr) String() string   { return fmt.Sprintf("Builtin(%s)", e.Op) }

type IntExpr struct {
	Token *Token
	Value int64
}

func (e *IntExpr) GetToken() *Token { return e.Token }
func (e *IntExpr) String() string   { return fmt.Sprintf("Int(%d)", e.Value) }

type StrExpr struct {
	Token *Token
	Value string
}

func (e *StrExpr) GetToken() *Token { return e.Token }
func (e *StrExpr) String() string   { return fmt.Sprintf("Str(%q)", e.Value) }

type ListExpr struct {
	Token *Token
	// Elements are restricted to literal nodes; the whole list becomes one
	// constant-pool entry.
	Elements []Expr
}

func (e *ListExpr) GetToken() *Token { return e.Token }
func (e *ListExpr) String() string   { return fmt.Sprintf("List(%d elems)", len(e.Elements)) }

type IdentExpr struct {
	Token *Token
	Name  string
}

func (e *IdentExpr) GetToken() *Token { return e.Token }
func (e *IdentExpr) String() string   { return fmt.Sprintf("Ident(%s)", e.Name) }

type IfExpr struct {
	Token *Token
	Cond  []Expr
	Then  []Expr
	Else  []Expr
}

func (e *IfExpr) GetToken() *Token { return e.Token }
func (e *IfExpr) String() string   { return "If" }

type WhileExpr struct {
	Token *Token
	Cond  []Expr
	Body  []Expr
}

func (e *WhileExpr) GetToken() *Token { return e.Token }
func (e *WhileExpr) String() string   { return "While" }

type VarExpr struct {
	Token *Token
	Name  *Token
	Value []Expr
}

func (e *VarExpr) GetToken() *Token { return e.Token }
func (e *VarExpr) String() string   { return fmt.Sprintf("Var(%s)", e.Name.Value) }

type PeekExpr struct {
	Token *Token
	Names []*Token
	Body  []Expr
}

func (e *PeekExpr) GetToken() *Token { return e.Token }
func (e *PeekExpr) String() string {
	names := make([]string, len(e.Names))
	for i, n := range e.Names {
		names[i] = n.Value
	}
	return fmt.Sprintf("Peek(%s)", strings.Join(names, " "))
}

type AssignExpr struct {
	Token *Token
	Name  *Token
}

func (e *AssignExpr) GetToken() *Token { return e.Token }
func (e *AssignExpr) String() string   { return fmt.Sprintf("Assign(%s)", e.Name.Value) }

// SetExpr is a bare "set" marker. Front ends that resolve their own
// assignment targets never produce it; in a value position it is a compile
// error.
type SetExpr struct {
	Token *Token
}

func (e *SetExpr) GetToken() *Token { return e.Token }
func (e *SetExpr) String() string   { return "Set" }

// IndexMarkerExpr is the index marker counterpart of SetExpr.
type IndexMarkerExpr struct {
	Token *Token
}

func (e *IndexMarkerExpr) GetToken() *Token { return e.Token }
func (e *IndexMarkerExpr) String() string   { return "IndexMarker" }

// Visitor pattern for traversing the expression tree (used by the LSP).
type Visitor interface {
	Visit(node Expr)
}

type WalkFunc func(node Expr)

func (f WalkFunc) Visit(node Expr) {
	f(node)
}

func walkAll(nodes []Expr, visitor Visitor) {
	for _, n := range nodes {
		Walk(n, visitor)
	}
}

func Walk(node Expr, visitor Visitor) {
	if node == nil {
		return
	}

	visitor.Visit(node)

	switch n := node.(type) {
	case *ListExpr:
		walkAll(n.Elements, visitor)
	case *IfExpr:
		walkAll(n.Cond, visitor)
		walkAll(n.Then, visitor)
		walkAll(n.Else, visitor)
	case *WhileExpr:
		walkAll(n.Cond, visitor)
		walkAll(n.Body, visitor)
	case *VarExpr:
		walkAll(n.Value, visitor)
	case *PeekExpr:
		walkAll(n.Body, visitor)
	}
}
