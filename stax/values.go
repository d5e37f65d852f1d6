package stax

import (
	"strconv"
	"strings"
)

// Value is a runtime value: a 64-bit integer, a string, or a list. Lists are
// held behind a pointer so every stack slot, binding and constant that refers
// to one observes in-place mutation through any other reference.
type Value interface {
	String() string
	Type() string
}

type IntObj struct {
	Value int64
}

func (n IntObj) String() string { return strconv.FormatInt(n.Value, 10) }
func (n IntObj) Type() string   { return "int" }

type StrObj struct {
	Value string
}

func (s StrObj) String() string { return s.Value }
func (s StrObj) Type() string   { return "string" }

type ListObj struct {
	Elements []Value
}

func (l *ListObj) String() string {
	var elements []string
	for _, e := range l.Elements {
		elements = append(elements, e.String())
	}
	return "[" + strings.Join(elements, " ") + "]"
}
func (l *ListObj) Type() string { return "list" }

func CreateInt(val int64) IntObj {
	return IntObj{Value: val}
}

func CreateString(val string) StrObj {
	return StrObj{Value: val}
}

func CreateList(elements ...Value) *ListObj {
	return &ListObj{Elements: elements}
}

func boolToInt(b bool) IntObj {
	if b {
		return IntObj{Value: 1}
	}
	return IntObj{Value: 0}
}

// valueEquals compares ints and strings by value; lists compare by identity,
// matching their shared-mutable ownership.
func valueEquals(a, b Value) bool {
	switch av := a.(type) {
	case IntObj:
		bv, ok := b.(IntObj)
		return ok && av.Value == bv.Value
	case StrObj:
		bv, ok := b.(StrObj)
		return ok && av.Value == bv.Value
	case *ListObj:
		bv, ok := b.(*ListObj)
		return ok && av == bv
	}
	return false
}
