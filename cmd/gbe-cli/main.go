package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gbe/internal/compiler"
	"gbe/internal/config"
	"gbe/internal/errors"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	output := flag.String("o", "", "write the constant blob of each input to this directory")
	dumpIR := flag.Bool("dump-ir", false, "print the lowered IR")
	dumpLiveness := flag.Bool("dump-liveness", false, "print liveness sets")
	cfgDir := flag.String("cfg-dir", "", "write one DOT graph per function to this directory")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gbe version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gbe [options] <file.gir>...")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.DumpIR = cfg.DumpIR || *dumpIR
	cfg.DumpLiveness = cfg.DumpLiveness || *dumpLiveness
	if *cfgDir != "" {
		cfg.DumpCFGDir = *cfgDir
	}

	commonlog.Configure(cfg.LogVerbosity, nil)

	failed := false
	for _, path := range args {
		if !compileFile(cfg, path, *output) {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// compileFile reports diagnostics and dumps for one input and returns
// whether it compiled without errors
func compileFile(cfg *config.Config, path, output string) bool {
	startTime := time.Now()

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read file: %v\n", err)
		return false
	}
	reporter := errors.NewErrorReporter(path, string(source))

	result, err := compiler.Compile(cfg, path, string(source))
	if err != nil {
		if ice, ok := err.(*errors.InternalError); ok {
			fmt.Print(reporter.FormatInternal(ice))
		} else {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		}
		color.Red("Compilation of %s aborted after %s", path, formatDuration(time.Since(startTime)))
		return false
	}

	for _, diag := range result.Diagnostics {
		fmt.Print(reporter.FormatError(diag))
	}

	if result.IRDump != "" {
		fmt.Print(result.IRDump)
	}
	if result.LivenessDump != "" {
		fmt.Print(result.LivenessDump)
	}
	for _, file := range result.CFGFiles {
		fmt.Printf("wrote %s\n", file)
	}

	if output != "" && !result.HasErrors() {
		if err := writeConstants(output, path, result.Constants); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return false
		}
	}

	duration := formatDuration(time.Since(startTime))
	if result.HasErrors() {
		color.Red("Compilation of %s failed after %s", path, duration)
		return false
	}
	color.Green("Successfully processed %s in %s (%d functions, %d kernels)",
		path, duration, len(result.Unit.Functions()), len(result.Epilogues))
	return true
}

func writeConstants(dir, input string, blob []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".const"
	if err := os.WriteFile(filepath.Join(dir, name), blob, 0o644); err != nil {
		return fmt.Errorf("write constants: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
