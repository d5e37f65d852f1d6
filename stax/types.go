package stax

import (
	"fmt"
	"slices"
)

type TokenType int

var KeywordConsts = []string{
	"var", "set", "if", "else", "while", "peek",
	"dup", "swap", "over", "pop", "debug",
}

func IsKeyword(s string) bool {
	return slices.Contains(KeywordConsts, s)
}

func GetAllKeywords() []string {
	return KeywordConsts
}

const (
	TokenInt TokenType = iota
	TokenString
	TokenIdent
	TokenKeyword
	TokenLCurlyBrace
	TokenRCurlyBrace
	TokenLSqBracket
	TokenRSqBracket
	TokenSemiColon
	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenMod
	TokenShl
	TokenShr
	TokenAmp
	TokenPipe
	TokenLAnd
	TokenLOr
	TokenBang
	TokenGT
	TokenGTE
	TokenLT
	TokenLTE
	TokenEQ
	TokenNEQ
	TokenAssign
	TokenEOF
)

func (t TokenType) String() string {
	return []string{
		"TokenInt",
		"TokenString",
		"TokenIdent",
		"TokenKeyword",
		"TokenLCurlyBrace",
		"TokenRCurlyBrace",
		"TokenLSqBracket",
		"TokenRSqBracket",
		"TokenSemiColon",
		"TokenPlus",
		"TokenMinus",
		"TokenMul",
		"TokenDiv",
		"TokenMod",
		"TokenShl",
		"TokenShr",
		"TokenAmp",
		"TokenPipe",
		"TokenLAnd",
		"TokenLOr",
		"TokenBang",
		"TokenGT",
		"TokenGTE",
		"TokenLT",
		"TokenLTE",
		"TokenEQ",
		"TokenNEQ",
		"TokenAssign",
		"TokenEOF",
	}[t]
}

type Loc struct {
	FileName string `json:"fileName"`
	Line     int    `json:"line"`
	ColStart int    `json:"colStart"`
	ColEnd   *int   `json:"colEnd,omitempty"`
}

func NewLoc(fileName string, line, colStart int, colEnd *int) Loc {
	return Loc{
		FileName: fileName,
		Line:     line,
		ColStart: colStart,
		ColEnd:   colEnd,
	}
}

func (l Loc) String() string {
	if l.ColEnd != nil {
		return fmt.Sprintf("%d:%d-%d", l.Line, l.ColStart, *l.ColEnd)
	}
	return fmt.Sprintf("%d:%d", l.Line, l.ColStart)
}

type Token struct {
	Kind  TokenType `json:"kind"`
	Value string    `json:"value"`
	Loc   Loc       `json:"loc"`
}

func (t Token) GetFileLoc() string {
	return fmt.Sprintf("%s:%s", t.Loc.FileName, t.Loc.String())
}

func (t Token) IsKeyword(value string) bool {
	return t.Kind == TokenKeyword && t.Value == value
}

func (t Token) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Value)
}
