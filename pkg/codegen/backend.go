package codegen

import (
	"fmt"

	"github.com/cmm-lang/cmm/pkg/ast"
	"github.com/cmm-lang/cmm/pkg/config"
)

// Backend turns a parsed program into assembly text.
type Backend interface {
	Generate(root *ast.Node, cfg *config.Config) ([]byte, error)
}

func Select(name string) (Backend, error) {
	switch name {
	case "nasm":
		return &nasmBackend{}, nil
	case "qbe":
		return &qbeBackend{}, nil
	}
	return nil, fmt.Errorf("unsupported backend '%s'", name)
}

// nasmBackend is the stock generator: NASM syntax, x86-64 Linux, no
// external toolchain involved.
type nasmBackend struct{}

func (b *nasmBackend) Generate(root *ast.Node, cfg *config.Config) ([]byte, error) {
	return []byte(NewGenerator(cfg).Generate(root)), nil
}
