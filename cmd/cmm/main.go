package main

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/cmm-lang/cmm/pkg/ast"
	"github.com/cmm-lang/cmm/pkg/cli"
	"github.com/cmm-lang/cmm/pkg/codegen"
	"github.com/cmm-lang/cmm/pkg/config"
	"github.com/cmm-lang/cmm/pkg/lexer"
	"github.com/cmm-lang/cmm/pkg/parser"
	"github.com/cmm-lang/cmm/pkg/util"
)

func main() {
	app := cli.NewApp("cmm")
	app.Synopsis = "[options] <input.cmm>"
	app.Description = "A single-pass compiler for the cmm language, emitting NASM assembly for x86-64 Linux."

	var (
		outFile      string
		backendName  string
		maxStringLen string
	)

	cfg := config.NewConfig()

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", config.DefaultOutputPath, "Place the assembly output into <file>.", "file")
	fs.String(&backendName, "target", "t", "nasm", "Select the code generation backend (nasm, qbe).", "backend")
	fs.String(&maxStringLen, "max-string-len", "", strconv.Itoa(config.DefaultMaxStringLen), "String literal byte limit.", "bytes")
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		cfg.OutputPath = outFile
		cfg.BackendName = backendName
		if n, err := strconv.Atoi(maxStringLen); err == nil && n > 0 {
			cfg.MaxStringLen = n
		}

		if len(args) != 1 {
			util.Fatal(util.ErrInvalidUsage, "")
		}

		source, err := os.ReadFile(args[0])
		if err != nil {
			util.Fatal(util.ErrOpenFileError, ": "+args[0])
		}

		tokens := lexer.NewLexer(source, cfg).Tokenize()

		alloc := ast.NewAllocator(cfg.ArenaSize)
		root := parser.NewParser(tokens, alloc).Parse()

		backend, err := codegen.Select(cfg.BackendName)
		if err != nil {
			util.Fatal(util.ErrInvalidProgram, ": "+err.Error())
		}
		output, err := backend.Generate(root, cfg)
		if err != nil {
			util.Fatal(util.ErrInvalidProgram, ": "+err.Error())
		}

		if dir := filepath.Dir(cfg.OutputPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				util.Fatal(util.ErrOpenFileError, ": "+cfg.OutputPath)
			}
		}
		if err := os.WriteFile(cfg.OutputPath, output, 0644); err != nil {
			util.Fatal(util.ErrOpenFileError, ": "+cfg.OutputPath)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
