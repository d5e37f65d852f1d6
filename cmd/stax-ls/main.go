package main

import (
	"fmt"
	"sync"

	"staxvm/stax"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "stax-ls"

var (
	version string = "0.1.0"
	handler protocol.Handler

	documentsMutex sync.RWMutex
	documents      = make(map[string]string)
)

func main() {
	commonlog.Configure(1, nil)

	handler = protocol.Handler{
		Initialize:             initialize,
		Initialized:            initialized,
		Shutdown:               shutdown,
		SetTrace:               setTrace,
		TextDocumentDidOpen:    textDocumentDidOpen,
		TextDocumentDidChange:  textDocumentDidChange,
		TextDocumentDidClose:   textDocumentDidClose,
		TextDocumentDidSave:    textDocumentDidSave,
		TextDocumentCompletion: textDocumentCompletion,
	}

	s := server.NewServer(&handler, lsName, false)
	s.RunStdio()
}

func initialize(context *glsp.Context, params *protocol.InitializeParams) (interface{}, error) {
	capabilities := handler.CreateServerCapabilities()
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &[]bool{true}[0],
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &[]bool{false}[0]},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func initialized(context *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func shutdown(context *glsp.Context) error {
	return nil
}

func setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func textDocumentDidOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	documentsMutex.Lock()
	defer documentsMutex.Unlock()
	documents[params.TextDocument.URI] = params.TextDocument.Text
	go publishDiagnostics(context, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func textDocumentDidChange(context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}

	content := params.ContentChanges[0].(protocol.TextDocumentContentChangeEventWhole).Text

	documentsMutex.Lock()
	documents[params.TextDocument.URI] = content
	documentsMutex.Unlock()

	go publishDiagnostics(context, params.TextDocument.URI, content)
	return nil
}

func textDocumentDidClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	documentsMutex.Lock()
	defer documentsMutex.Unlock()
	delete(documents, params.TextDocument.URI)
	return nil
}

func textDocumentDidSave(context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	return nil
}

func textDocumentCompletion(context *glsp.Context, params *protocol.CompletionParams) (interface{}, error) {
	documentsMutex.RLock()
	content, ok := documents[params.TextDocument.URI]
	documentsMutex.RUnlock()

	if !ok {
		return protocol.CompletionList{IsIncomplete: false, Items: []protocol.CompletionItem{}}, nil
	}

	items := []protocol.CompletionItem{}
	seen := make(map[string]bool)

	kindFunc := protocol.CompletionItemKindFunction
	detailFunc := "built-in word"
	for name := range stax.BuiltinWords {
		if !seen[name] {
			items = append(items, protocol.CompletionItem{
				Label:  name,
				Kind:   &kindFunc,
				Detail: &detailFunc,
			})
			seen[name] = true
		}
	}

	kindKeyword := protocol.CompletionItemKindKeyword
	detailKeyword := "keyword"
	for _, keyword := range stax.GetAllKeywords() {
		if !seen[keyword] {
			items = append(items, protocol.CompletionItem{
				Label:  keyword,
				Kind:   &kindKeyword,
				Detail: &detailKeyword,
			})
			seen[keyword] = true
		}
	}

	exprs, err := stax.ParseSource(params.TextDocument.URI, content)
	if err != nil {
		return protocol.CompletionList{IsIncomplete: false, Items: items}, nil
	}

	kindVar := protocol.CompletionItemKindVariable
	detailVar := "variable"
	detailBind := "peek binding"
	for _, root := range exprs {
		stax.Walk(root, stax.WalkFunc(func(node stax.Expr) {
			switch n := node.(type) {
			case *stax.VarExpr:
				if !seen[n.Name.Value] {
					items = append(items, protocol.CompletionItem{
						Label:  n.Name.Value,
						Kind:   &kindVar,
						Detail: &detailVar,
						Documentation: protocol.MarkupContent{
							Kind:  protocol.MarkupKindMarkdown,
							Value: fmt.Sprintf("```stax\nvar %s\n```", n.Name.Value),
						},
					})
					seen[n.Name.Value] = true
				}
			case *stax.PeekExpr:
				for _, name := range n.Names {
					if !seen[name.Value] {
						items = append(items, protocol.CompletionItem{
							Label:  name.Value,
							Kind:   &kindVar,
							Detail: &detailBind,
						})
						seen[name.Value] = true
					}
				}
			}
		}))
	}

	return protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

func publishDiagnostics(context *glsp.Context, uri string, content string) {
	diagnostics := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError

	addError := func(err error, origin string) {
		staxErr, ok := err.(*stax.StaxError)
		if !ok {
			return
		}
		source := lsName + " (" + origin + ")"
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    lspRangeFromLoc(staxErr.GetLocation()),
			Severity: &severity,
			Source:   &source,
			Message:  staxErr.Msg,
		})
	}

	exprs, err := stax.ParseSource(uri, content)
	if err != nil {
		addError(err, "parser")
	} else if _, err := stax.NewCompiler().Compile(exprs); err != nil {
		addError(err, "compiler")
	}

	context.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func lspRangeFromLoc(loc stax.Loc) protocol.Range {
	startChar := loc.ColStart - 1
	if startChar < 0 {
		startChar = 0
	}
	endChar := startChar + 1
	if loc.ColEnd != nil {
		endChar = *loc.ColEnd
	}
	line := loc.Line - 1
	if line < 0 {
		line = 0
	}

	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(startChar)},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(endChar)},
	}
}
