package stax

import (
	"fmt"
	"unicode"
)

type Lexer struct {
	source   string
	srcName  string
	currIdx  int
	currChar rune
	line     int
	col      int
	tokens   []Token
}

func NewLexer(srcName, source string) *Lexer {
	l := &Lexer{
		source:  source,
		srcName: srcName,
		currIdx: 0,
		line:    1,
		col:     1,
		tokens:  make([]Token, 0),
	}

	if len(source) > 0 {
		l.currChar = rune(source[0])
	}
	return l
}

func (l *Lexer) advance() {
	if l.currChar == '\n' {
		l.line++
		l.col = 0
	}
	l.currIdx++
	if l.currIdx < len(l.source) {
		l.currChar = rune(l.source[l.currIdx])
	} else {
		l.currChar = 0
	}
	l.col++
}

func (l *Lexer) hasChar() bool {
	return l.currChar != 0
}

func (l *Lexer) peek(offset int) rune {
	peekIdx := l.currIdx + offset
	if peekIdx < len(l.source) {
		return rune(l.source[peekIdx])
	}
	return 0
}

func (l *Lexer) getLoc() Loc {
	return Loc{FileName: l.srcName, Line: l.line, ColStart: l.col}
}

func (l *Lexer) addToken(kind TokenType, value string, loc Loc) {
	l.tokens = append(l.tokens, Token{Kind: kind, Value: value, Loc: loc})
}

func (l *Lexer) skipComment() (skipped bool, err error) {
	if l.currChar == '/' && l.peek(1) == '/' {
		l.advance()
		l.advance()
		for l.hasChar() && l.currChar != '\n' {
			l.advance()
		}
		return true, nil
	} else if l.currChar == '/' && l.peek(1) == '*' {
		startLoc := l.getLoc()
		l.advance()
		l.advance()

		for l.hasChar() {
			if l.currChar == '*' && l.peek(1) == '/' {
				l.advance()
				l.advance()
				return true, nil
			}
			l.advance()
		}
		return true, NewLexerError("Unterminated comment", startLoc)
	}
	return false, nil
}

var singleSymbols = map[rune]TokenType{
	'{': TokenLCurlyBrace,
	'}': TokenRCurlyBrace,
	'[': TokenLSqBracket,
	']': TokenRSqBracket,
	';': TokenSemiColon,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMul,
	'%': TokenMod,
}

func (l *Lexer) Tokenize() ([]Token, error) {
	for l.hasChar() {
		if unicode.IsSpace(l.currChar) {
			l.advance()
			continue
		}

		if skipped, err := l.skipComment(); skipped || err != nil {
			if err != nil {
				return nil, err
			}
			continue
		}

		if tokType, ok := singleSymbols[l.currChar]; ok {
			// A minus glued to a digit is a negative literal.
			if l.currChar == '-' && unicode.IsDigit(l.peek(1)) {
				tok, err := l.parseNumber()
				if err != nil {
					return nil, err
				}
				l.tokens = append(l.tokens, tok)
				continue
			}
			l.addToken(tokType, string(l.currChar), l.getLoc())
			l.advance()
			continue
		}

		switch l.currChar {
		case '/':
			l.addToken(TokenDiv, "/", l.getLoc())
			l.advance()
		case '>':
			startLoc := l.getLoc()
			l.advance()
			if l.currChar == '=' {
				l.advance()
				l.addToken(TokenGTE, ">=", startLoc)
			} else if l.currChar == '>' {
				l.advance()
				l.addToken(TokenShr, ">>", startLoc)
			} else {
				l.addToken(TokenGT, ">", startLoc)
			}
		case '<':
			startLoc := l.getLoc()
			l.advance()
			if l.currChar == '=' {
				l.advance()
				l.addToken(TokenLTE, "<=", startLoc)
			} else if l.currChar == '<' {
				l.advance()
				l.addToken(TokenShl, "<<", startLoc)
			} else {
				l.addToken(TokenLT, "<", startLoc)
			}
		case '=':
			startLoc := l.getLoc()
			l.advance()
			if l.currChar == '=' {
				l.advance()
				l.addToken(TokenEQ, "==", startLoc)
			} else {
				l.addToken(TokenAssign, "=", startLoc)
			}
		case '!':
			startLoc := l.getLoc()
			l.advance()
			if l.currChar == '=' {
				l.advance()
				l.addToken(TokenNEQ, "!=", startLoc)
			} else {
				l.addToken(TokenBang, "!", startLoc)
			}
		case '&':
			startLoc := l.getLoc()
			l.advance()
			if l.currChar == '&' {
				l.advance()
				l.addToken(TokenLAnd, "&&", startLoc)
			} else {
				l.addToken(TokenAmp, "&", startLoc)
			}
		case '|':
			startLoc := l.getLoc()
			l.advance()
			if l.currChar == '|' {
				l.advance()
				l.addToken(TokenLOr, "||", startLoc)
			} else {
				l.addToken(TokenPipe, "|", startLoc)
			}
		default:
			if unicode.IsDigit(l.currChar) {
				tok, err := l.parseNumber()
				if err != nil {
					return nil, err
				}
				l.tokens = append(l.tokens, tok)
			} else if l.currChar == '"' || l.currChar == '\'' {
				tok, err := l.parseString()
				if err != nil {
					return nil, err
				}
				l.tokens = append(l.tokens, tok)
			} else if unicode.IsLetter(l.currChar) || l.currChar == '_' {
				l.tokens = append(l.tokens, l.parseIdent())
			} else {
				return nil, NewLexerError(
					fmt.Sprintf("Unexpected character '%c'", l.currChar),
					l.getLoc(),
				)
			}
		}
	}

	l.tokens = append(l.tokens, Token{
		Kind: TokenEOF,
		Loc:  Loc{FileName: l.srcName, Line: l.line, ColStart: l.col},
	})
	return l.tokens, nil
}

func (l *Lexer) parseNumber() (Token, error) {
	nums := []rune{}
	startCol := l.col
	startLine := l.line

	if l.currChar == '-' {
		nums = append(nums, l.currChar)
		l.advance()
	}

	for l.hasChar() && (unicode.IsDigit(l.currChar) || l.currChar == '_') {
		if l.currChar == '_' {
			if len(nums) == 0 || !unicode.IsDigit(nums[len(nums)-1]) {
				return Token{}, NewLexerError(
					"Invalid number format: '_' must be between digits",
					Loc{FileName: l.srcName, Line: l.line, ColStart: l.col},
				)
			}
			l.advance()
			continue
		}
		nums = append(nums, l.currChar)
		l.advance()
	}

	colEnd := l.col - 1
	loc := NewLoc(l.srcName, startLine, startCol, &colEnd)
	return Token{Kind: TokenInt, Value: string(nums), Loc: loc}, nil
}

func (l *Lexer) parseString() (Token, error) {
	strs := []rune{}
	startCol := l.col
	startLine := l.line
	startQuote := l.currChar

	l.advance()

	for l.hasChar() && l.currChar != startQuote {
		if l.currChar == '\\' {
			switch l.peek(1) {
			case 'n':
				strs = append(strs, '\n')
				l.advance()
			case 't':
				strs = append(strs, '\t')
				l.advance()
			case '\\', '"', '\'':
				strs = append(strs, l.peek(1))
				l.advance()
			default:
				strs = append(strs, l.currChar)
			}
			l.advance()
			continue
		}
		strs = append(strs, l.currChar)
		l.advance()
	}

	if !l.hasChar() {
		return Token{}, NewLexerError(
			"Unterminated string literal",
			Loc{FileName: l.srcName, Line: startLine, ColStart: startCol},
		)
	}

	l.advance()
	colEnd := l.col - 1
	loc := NewLoc(l.srcName, startLine, startCol, &colEnd)
	return Token{Kind: TokenString, Value: string(strs), Loc: loc}, nil
}

func (l *Lexer) parseIdent() Token {
	identChars := []rune{l.currChar}
	startCol := l.col
	l.advance()

	for l.hasChar() && (unicode.IsLetter(l.currChar) || unicode.IsDigit(l.currChar) || l.currChar == '_') {
		identChars = append(identChars, l.currChar)
		l.advance()
	}

	identStr := string(identChars)
	colEnd := l.col - 1
	loc := NewLoc(l.srcName, l.line, startCol, &colEnd)

	kind := TokenIdent
	if IsKeyword(identStr) {
		kind = TokenKeyword
	}
	return Token{Kind: kind, Value: identStr, Loc: loc}
}
