package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"gbe/internal/config"
	"gbe/internal/lsp"
)

const lsName = "gbe"

var (
	version = "0.1.0"
	handler protocol.Handler
)

func main() {
	configPath := flag.String("config", "", "YAML configuration used to compile open documents")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	commonlog.Configure(cfg.LogVerbosity, nil)
	log := commonlog.GetLogger("gbe.lsp")

	girHandler := lsp.NewGirHandler(cfg)

	handler = protocol.Handler{
		Initialize:                     girHandler.Initialize,
		Initialized:                    girHandler.Initialized,
		Shutdown:                       girHandler.Shutdown,
		SetTrace:                       girHandler.SetTrace,
		TextDocumentDidOpen:            girHandler.TextDocumentDidOpen,
		TextDocumentDidClose:           girHandler.TextDocumentDidClose,
		TextDocumentDidChange:          girHandler.TextDocumentDidChange,
		TextDocumentCompletion:         girHandler.TextDocumentCompletion,
		TextDocumentSemanticTokensFull: girHandler.TextDocumentSemanticTokensFull,
	}

	// no glsp debug output; it would mix with our own log
	s := server.NewServer(&handler, lsName, false)

	log.Infof("starting %s language server %s", lsName, version)
	if err := s.RunStdio(); err != nil {
		log.Errorf("language server stopped: %s", err)
		os.Exit(1)
	}
}
