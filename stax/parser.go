package stax

import (
	"fmt"
	"strconv"
)

// Parser turns a token stream into the flat expression sequence the compiler
// consumes. There is no precedence to resolve: words apply to the stack in the
// order written, so parsing is a single forward walk with nesting only for
// blocks and list literals.
type Parser struct {
	tokens  []Token
	currIdx int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) current() *Token {
	if p.currIdx < len(p.tokens) {
		return &p.tokens[p.currIdx]
	}
	return &p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() *Token {
	tok := p.current()
	if p.currIdx < len(p.tokens)-1 {
		p.currIdx++
	}
	return tok
}

func (p *Parser) expect(kind TokenType, what string) (*Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return nil, NewParserError(
			fmt.Sprintf("Expected %s but got '%s'", what, tok.Value),
			tok.Loc,
		)
	}
	return p.advance(), nil
}

// Parse consumes the whole token stream and returns the top-level expression
// sequence.
func (p *Parser) Parse() ([]Expr, error) {
	exprs := []Expr{}
	for p.current().Kind != TokenEOF {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

// parseBlock parses `{ ... }` and returns the enclosed sequence.
func (p *Parser) parseBlock() ([]Expr, error) {
	if _, err := p.expect(TokenLCurlyBrace, "'{'"); err != nil {
		return nil, err
	}
	exprs := []Expr{}
	for p.current().Kind != TokenRCurlyBrace {
		if p.current().Kind == TokenEOF {
			return nil, NewParserError("Unexpected end of input, expected '}'", p.current().Loc)
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	p.advance()
	return exprs, nil
}

// parseUntilBlock parses the expressions preceding a block, the condition
// position of if and while.
func (p *Parser) parseUntilBlock() ([]Expr, error) {
	exprs := []Expr{}
	for p.current().Kind != TokenLCurlyBrace {
		if p.current().Kind == TokenEOF {
			return nil, NewParserError("Unexpected end of input, expected '{'", p.current().Loc)
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

var symbolOperations = map[TokenType]Operation{
	TokenPlus:  OperAdd,
	TokenMinus: OperMinus,
	TokenMul:   OperMul,
	TokenDiv:   OperDiv,
	TokenMod:   OperMod,
	TokenShl:   OperShl,
	TokenShr:   OperShr,
	TokenAmp:   OperBitand,
	TokenPipe:  OperBitor,
	TokenLAnd:  OperLand,
	TokenLOr:   OperLor,
	TokenBang:  OperLnot,
	TokenEQ:    OperEq,
	TokenNEQ:   OperNeq,
	TokenGT:    OperGt,
	TokenGTE:   OperGte,
	TokenLT:    OperLt,
	TokenLTE:   OperLte,
}

func (p *Parser) parseExpr() (Expr, error) {
	tok := p.current()

	if op, ok := symbolOperations[tok.Kind]; ok {
		p.advance()
		return &OpExpr{Token: tok, Op: op}, nil
	}

	switch tok.Kind {
	case TokenInt:
		p.advance()
		value, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, NewParserError(
				fmt.Sprintf("Invalid integer literal '%s'", tok.Value),
				tok.Loc,
			)
		}
		return &IntExpr{Token: tok, Value: value}, nil

	case TokenString:
		p.advance()
		return &StrExpr{Token: tok, Value: tok.Value}, nil

	case TokenLSqBracket:
		return p.parseList()

	case TokenIdent:
		p.advance()
		if op, ok := BuiltinWords[tok.Value]; ok {
			return &BuiltinExpr{Token: tok, Op: op}, nil
		}
		return &IdentExpr{Token: tok, Name: tok.Value}, nil

	case TokenKeyword:
		return p.parseKeyword()

	default:
		return nil, NewParserError(
			fmt.Sprintf("Unexpected token '%s'", tok.Value),
			tok.Loc,
		)
	}
}

// parseList parses a literal-only list: `[ 1 2 "three" [ 4 ] ]`.
func (p *Parser) parseList() (Expr, error) {
	startTok := p.advance()
	elems := []Expr{}

	for p.current().Kind != TokenRSqBracket {
		tok := p.current()
		switch tok.Kind {
		case TokenInt:
			p.advance()
			value, err := strconv.ParseInt(tok.Value, 10, 64)
			if err != nil {
				return nil, NewParserError(
					fmt.Sprintf("Invalid integer literal '%s'", tok.Value),
					tok.Loc,
				)
			}
			elems = append(elems, &IntExpr{Token: tok, Value: value})
		case TokenString:
			p.advance()
			elems = append(elems, &StrExpr{Token: tok, Value: tok.Value})
		case TokenLSqBracket:
			nested, err := p.parseList()
			if err != nil {
				return nil, err
			}
			elems = append(elems, nested)
		case TokenEOF:
			return nil, NewParserError("Unexpected end of input, expected ']'", tok.Loc)
		default:
			return nil, NewParserError(
				fmt.Sprintf("Lists may only hold literals, got '%s'", tok.Value),
				tok.Loc,
			)
		}
	}

	p.advance()
	return &ListExpr{Token: startTok, Elements: elems}, nil
}

func (p *Parser) parseKeyword() (Expr, error) {
	tok := p.advance()

	switch tok.Value {
	case "var":
		return p.parseVar(tok)
	case "set":
		name, err := p.expect(TokenIdent, "a variable name after 'set'")
		if err != nil {
			return nil, err
		}
		return &AssignExpr{Token: tok, Name: name}, nil
	case "if":
		return p.parseIf(tok)
	case "while":
		return p.parseWhile(tok)
	case "peek":
		return p.parsePeek(tok)
	case "dup":
		arg, err := p.expect(TokenInt, "an offset after 'dup'")
		if err != nil {
			return nil, err
		}
		offset, err := strconv.Atoi(arg.Value)
		if err != nil || offset < 0 {
			return nil, NewParserError(
				fmt.Sprintf("Invalid dup offset '%s'", arg.Value),
				arg.Loc,
			)
		}
		return &OpExpr{Token: tok, Op: OperDup, Arg: &offset}, nil
	case "swap":
		return &OpExpr{Token: tok, Op: OperSwap}, nil
	case "over":
		return &OpExpr{Token: tok, Op: OperOver}, nil
	case "pop":
		return &OpExpr{Token: tok, Op: OperPop}, nil
	case "debug":
		return &BuiltinExpr{Token: tok, Op: BuiltinDebug}, nil
	case "else":
		return nil, NewParserError("'else' without a matching 'if'", tok.Loc)
	default:
		return nil, NewParserError(
			fmt.Sprintf("Unexpected keyword '%s'", tok.Value),
			tok.Loc,
		)
	}
}

// parseVar parses `var name = expr... ;`.
func (p *Parser) parseVar(varTok *Token) (Expr, error) {
	name, err := p.expect(TokenIdent, "a variable name after 'var'")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenAssign, "'='"); err != nil {
		return nil, err
	}

	value := []Expr{}
	for p.current().Kind != TokenSemiColon {
		if p.current().Kind == TokenEOF {
			return nil, NewParserError("Unexpected end of input, expected ';'", p.current().Loc)
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		value = append(value, expr)
	}
	p.advance()

	if len(value) == 0 {
		return nil, NewParserError(
			fmt.Sprintf("Variable '%s' needs an initializer", name.Value),
			name.Loc,
		)
	}
	return &VarExpr{Token: varTok, Name: name, Value: value}, nil
}

// parseIf parses `if cond... { then } [ else { else } ]`.
func (p *Parser) parseIf(ifTok *Token) (Expr, error) {
	cond, err := p.parseUntilBlock()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	expr := &IfExpr{Token: ifTok, Cond: cond, Then: then}
	if p.current().IsKeyword("else") {
		p.advance()
		elseBody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		expr.Else = elseBody
	}
	return expr, nil
}

// parseWhile parses `while cond... { body }`.
func (p *Parser) parseWhile(whileTok *Token) (Expr, error) {
	cond, err := p.parseUntilBlock()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileExpr{Token: whileTok, Cond: cond, Body: body}, nil
}

// parsePeek parses `peek a b c { body }`. At least one name is required.
func (p *Parser) parsePeek(peekTok *Token) (Expr, error) {
	names := []*Token{}
	for p.current().Kind == TokenIdent {
		names = append(names, p.advance())
	}
	if len(names) == 0 {
		return nil, NewParserError("'peek' needs at least one binding name", peekTok.Loc)
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &PeekExpr{Token: peekTok, Names: names, Body: body}, nil
}
