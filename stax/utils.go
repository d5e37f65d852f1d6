package stax

import "io"

// CompileSource runs the whole front half of the pipeline: source text to
// bytecode.
func CompileSource(srcName, source string) (*Bytecode, error) {
	lexer := NewLexer(srcName, source)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}

	parser := NewParser(tokens)
	exprs, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	return NewCompiler().Compile(exprs)
}

// ParseSource stops after parsing, for tooling that works on the expression
// tree.
func ParseSource(srcName, source string) ([]Expr, error) {
	lexer := NewLexer(srcName, source)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// RunSource compiles and executes source text, writing program output to
// stdout.
func RunSource(srcName, source string, stdout io.Writer) error {
	bc, err := CompileSource(srcName, source)
	if err != nil {
		return err
	}
	vm := NewVM(bc)
	if stdout != nil {
		vm.Stdout = stdout
	}
	return vm.Run()
}
