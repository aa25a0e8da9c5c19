package lsp

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"gbe/internal/compiler"
	"gbe/internal/config"
	"gbe/internal/ir"
	"gbe/internal/irtext"
)

var log = commonlog.GetLogger("gbe.lsp")

// SemanticTokenTypes is the legend advertised to clients. Token kinds from
// the IR lexer map onto it by name.
var SemanticTokenTypes = []string{
	"macro",
	"keyword",
	"function",
	"type",
	"variable",
	"enumMember",
	"number",
	"property",
	"comment",
}

// SemanticTokenModifiers tags register declarations and label definitions
var SemanticTokenModifiers = []string{
	"declaration",
	"definition",
}

var directives = []string{".constant", ".decl_function", ".end_function"}

var declKeywords = []string{"decl_reg", "decl_input", "decl_output", "decl_pushed", "decl_loop", "kernel", "uniform"}

// GirHandler implements the LSP server handlers for textual IR files
type GirHandler struct {
	mu      sync.RWMutex
	content map[string]string
	config  *config.Config
}

// NewGirHandler creates a handler compiling with cfg, or the defaults
// when cfg is nil
func NewGirHandler(cfg *config.Config) *GirHandler {
	if cfg == nil {
		cfg = config.Default()
	}
	return &GirHandler{
		content: make(map[string]string),
		config:  cfg,
	}
}

// Initialize advertises the server's capabilities
func (h *GirHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initialize")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: ptrBool(false),
			},
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

// Initialized is called once the client has the capabilities
func (h *GirHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Info("initialized")
	return nil
}

// Shutdown handles the LSP shutdown request
func (h *GirHandler) Shutdown(ctx *glsp.Context) error {
	log.Info("shutdown")
	return nil
}

// SetTrace updates the protocol trace level
func (h *GirHandler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// TextDocumentDidOpen compiles the opened document and publishes its diagnostics
func (h *GirHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Debugf("opened %s", params.TextDocument.URI)

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	h.store(path, params.TextDocument.Text)
	return h.publish(ctx, params.TextDocument.URI, path)
}

// TextDocumentDidClose forgets the document
func (h *GirHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	log.Debugf("closed %s", params.TextDocument.URI)

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.content, path)
	return nil
}

// TextDocumentDidChange takes the last full-text change and recompiles
func (h *GirHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	log.Debugf("changed %s", params.TextDocument.URI)

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			h.store(path, whole.Text)
		}
	}
	return h.publish(ctx, params.TextDocument.URI, path)
}

// TextDocumentCompletion offers directives, declaration keywords and opcodes
func (h *GirHandler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (interface{}, error) {
	var items []protocol.CompletionItem

	keywordKind := protocol.CompletionItemKindKeyword
	for _, d := range directives {
		items = append(items, protocol.CompletionItem{Label: d, Kind: &keywordKind})
	}
	for _, k := range declKeywords {
		items = append(items, protocol.CompletionItem{Label: k, Kind: &keywordKind})
	}

	opKind := protocol.CompletionItemKindFunction
	for _, op := range ir.Opcodes() {
		detail := op.Class().String()
		items = append(items, protocol.CompletionItem{Label: op.String(), Kind: &opKind, Detail: &detail})
	}

	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

// TextDocumentSemanticTokensFull highlights the whole document
func (h *GirHandler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	source, err := h.source(path)
	if err != nil {
		return nil, err
	}

	lexed, err := irtext.Tokens(source)
	if err != nil {
		return nil, fmt.Errorf("failed to lex %s: %w", path, err)
	}
	tokens := collectSemanticTokens(lexed)

	var data []uint32
	var prevLine, prevStart uint32

	// delta-line, delta-start encoding
	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		var deltaStart uint32
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		} else {
			deltaStart = token.StartChar
		}

		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))

		prevLine = token.Line
		prevStart = token.StartChar
	}

	return &protocol.SemanticTokens{
		Data: data,
	}, nil
}

func (h *GirHandler) store(path, text string) {
	h.mu.Lock()
	h.content[path] = text
	h.mu.Unlock()
}

// source returns the editor's copy of path, falling back to disk
func (h *GirHandler) source(path string) (string, error) {
	h.mu.RLock()
	text, ok := h.content[path]
	h.mu.RUnlock()
	if ok {
		return text, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	h.store(path, string(raw))
	return string(raw), nil
}

// publish compiles path and always sends a diagnostics notification, so
// fixed errors are cleared in the editor
func (h *GirHandler) publish(ctx *glsp.Context, uri protocol.DocumentUri, path string) error {
	source, err := h.source(path)
	if err != nil {
		return err
	}

	result, err := compiler.Compile(h.config, path, source)
	diagnostics := []protocol.Diagnostic{}
	if err != nil {
		log.Errorf("compiling %s: %s", path, err)
		diagnostics = append(diagnostics, internalDiagnostic(err))
	} else {
		diagnostics = append(diagnostics, ConvertDiagnostics(result.Diagnostics)...)
	}

	sendDiagnosticNotification(ctx, uri, diagnostics)
	return nil
}

// Convert URI to platform-local file path
func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path

	// /C:/... on Windows
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path), nil
}

func sendDiagnosticNotification(ctx *glsp.Context, uri protocol.URI, diagnostics []protocol.Diagnostic) {
	log.Debugf("sending %d diagnostics for %s", len(diagnostics), uri)

	if ctx == nil || ctx.Notify == nil {
		return
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool {
	return &b
}

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
