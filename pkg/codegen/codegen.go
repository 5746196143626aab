// Package codegen lowers the AST to x86-64 assembly in NASM syntax. The
// generator simulates a stack machine on the machine stack: every
// expression pushes exactly one 8-byte value and consumers pop their
// operands.
package codegen

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/cmm-lang/cmm/pkg/ast"
	"github.com/cmm-lang/cmm/pkg/config"
	"github.com/cmm-lang/cmm/pkg/token"
	"github.com/cmm-lang/cmm/pkg/util"
)

type variable struct {
	Name       string
	IsMutable  bool
	StackSlot  int // stack_depth at declaration; the push of the initializer is the storage
	ScopeIndex int
}

type Generator struct {
	cfg *config.Config

	stackDepth  int
	vars        []variable
	scopeFrames []int
	labelCount  int
	stringCount int

	// Interning table: digest of the literal body to its data label, so
	// identical literals share one datum.
	strings map[uint64]string

	data strings.Builder
	bss  strings.Builder
	text strings.Builder
}

func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg, strings: make(map[uint64]string)}
}

// Generate walks the program once in source order and returns the complete
// assembly source.
func (g *Generator) Generate(root *ast.Node) string {
	g.data.WriteString("section .data\n")
	g.data.WriteString("    newline db 10\n")

	fmt.Fprintf(&g.bss, "section .bss\n")
	fmt.Fprintf(&g.bss, "    print_buffer resb %d\n", g.cfg.PrintBufferSize)
	g.bss.WriteString("    buffer_used resq 1\n")

	g.text.WriteString("section .text\n")
	g.text.WriteString("global _start\n")
	g.text.WriteString("\n_start:\n")
	g.emit("call initialize_buffer")

	prog := root.Data.(*ast.ProgramNode)
	for _, stmt := range prog.Stmts {
		g.genStmt(stmt)
	}

	// A program that does not end in exit still terminates cleanly with
	// status 0 after draining the print buffer.
	if n := len(prog.Stmts); n == 0 || prog.Stmts[n-1].Type != ast.ExitStmt {
		if g.cfg.IsWarningEnabled(config.WarnNoExit) {
			util.Warn(root.Tok, "program does not end with an 'exit' statement")
		}
		g.emit("call print_chars")
		g.emit("mov rdi, 0")
		g.emit("mov rax, 60")
		g.emit("syscall")
	}

	var out strings.Builder
	out.WriteString(g.data.String())
	out.WriteString("\n")
	out.WriteString(g.bss.String())
	out.WriteString("\n")
	out.WriteString(g.text.String())
	out.WriteString("\n")
	out.WriteString(runtimeTrailer(g.cfg.PrintBufferSize))
	return out.String()
}

func (g *Generator) emit(format string, args ...interface{}) {
	g.text.WriteString("    ")
	fmt.Fprintf(&g.text, format, args...)
	g.text.WriteString("\n")
}

func (g *Generator) emitLabel(label string) {
	g.text.WriteString(label + ":\n")
}

func (g *Generator) push(reg string) {
	g.emit("push %s", reg)
	g.stackDepth++
}

func (g *Generator) pop(reg string) {
	g.emit("pop %s", reg)
	g.stackDepth--
}

func (g *Generator) newLabel() string {
	label := fmt.Sprintf(".L%d", g.labelCount)
	g.labelCount++
	return label
}

// findVar scans newest-first so inner declarations shadow outer ones.
func (g *Generator) findVar(name string) (variable, bool) {
	for i := len(g.vars) - 1; i >= 0; i-- {
		if g.vars[i].Name == name {
			return g.vars[i], true
		}
	}
	return variable{}, false
}

// slotOffset is the byte offset from rsp of the slot holding the variable,
// given the current stack depth.
func (g *Generator) slotOffset(v variable) int {
	return (g.stackDepth - v.StackSlot - 1) * 8
}

func (g *Generator) genExpr(node *ast.Node) {
	switch d := node.Data.(type) {
	case *ast.IntLitNode:
		g.emit("mov rax, %s", d.Value)
		g.push("rax")

	case *ast.IdentNode:
		v, ok := g.findVar(d.Name)
		if !ok {
			util.ErrorDetail(util.ErrVariableNotDeclared, d.Name, node.Tok)
		}
		offset := g.slotOffset(v)
		g.emit("push QWORD [rsp + %d]", offset)
		g.stackDepth++

	case *ast.ParenNode:
		g.genExpr(d.Expr)

	case *ast.BinaryOpNode:
		g.genBinaryOp(node.Tok, d)

	default:
		util.Error(util.ErrExpectedExpression, node.Tok)
	}
}

// genBinaryOp lowers one operator. The evaluation order differs between the
// additive and multiplicative operators so the popped registers land in the
// operand positions the x86 instructions require.
func (g *Generator) genBinaryOp(tok token.Token, d *ast.BinaryOpNode) {
	switch d.Op {
	case token.Plus:
		g.genExpr(d.Right)
		g.genExpr(d.Left)
		g.pop("rax")
		g.pop("rbx")
		g.emit("add rax, rbx")
		g.push("rax")
	case token.Minus:
		g.genExpr(d.Right)
		g.genExpr(d.Left)
		g.pop("rax")
		g.pop("rbx")
		g.emit("sub rax, rbx")
		g.push("rax")
	case token.Star:
		g.genExpr(d.Left)
		g.genExpr(d.Right)
		g.pop("rax")
		g.pop("rbx")
		g.emit("xor rdx, rdx")
		g.emit("mul rbx")
		g.push("rax")
	case token.Slash:
		g.genExpr(d.Left)
		g.genExpr(d.Right)
		g.pop("rbx")
		g.pop("rax")
		g.emit("cqo")
		g.emit("idiv rbx")
		g.push("rax")
	default:
		util.Error(util.ErrUnknownOperator, tok)
	}
}

func (g *Generator) genStmt(node *ast.Node) {
	switch d := node.Data.(type) {
	case *ast.ExitNode:
		g.genExpr(d.Expr)
		g.emit("call flush_buffer")
		g.emit("mov rax, 60")
		g.pop("rdi")
		g.emit("syscall")

	case *ast.PrintNode:
		if d.Arg.Type == ast.String {
			g.genPrintString(d.Arg)
			return
		}
		g.genExpr(d.Arg)
		g.emit("mov rsi, QWORD [rsp]")
		g.emit("call print_int")
		g.emit("call print_newline")
		if g.cfg.IsFeatureEnabled(config.FeatPrintPop) {
			g.pop("rax")
		}

	case *ast.LetNode:
		scopeStart := 0
		if len(g.scopeFrames) > 0 {
			scopeStart = g.scopeFrames[len(g.scopeFrames)-1]
		}
		for _, v := range g.vars[scopeStart:] {
			if v.Name == d.Name {
				util.Error(util.ErrVariableAlreadyDeclared, node.Tok)
			}
		}
		if g.cfg.IsWarningEnabled(config.WarnShadow) {
			for _, v := range g.vars[:scopeStart] {
				if v.Name == d.Name {
					util.Warn(node.Tok, "declaration of '%s' shadows an outer binding", d.Name)
					break
				}
			}
		}
		g.vars = append(g.vars, variable{
			Name:       d.Name,
			IsMutable:  d.IsMutable,
			StackSlot:  g.stackDepth,
			ScopeIndex: len(g.scopeFrames),
		})
		// The initializer's push is the variable's storage.
		g.genExpr(d.Expr)

	case *ast.AssignNode:
		v, ok := g.findVar(d.Name)
		if !ok {
			util.ErrorDetail(util.ErrVariableNotDeclared, d.Name, node.Tok)
		}
		if !v.IsMutable {
			util.Error(util.ErrVariableNotMutable, node.Tok)
		}
		g.genExpr(d.Expr)
		g.pop("rax")
		g.emit("mov QWORD [rsp + %d], rax", g.slotOffset(v))

	case *ast.BlockNode:
		g.beginScope()
		for _, stmt := range d.Stmts {
			g.genStmt(stmt)
		}
		g.endScope()

	case *ast.IfNode:
		g.genIf(d)

	case *ast.ProgramNode:
		for _, stmt := range d.Stmts {
			g.genStmt(stmt)
		}

	default:
		util.Error(util.ErrInvalidProgram, node.Tok)
	}
}

func (g *Generator) beginScope() {
	g.scopeFrames = append(g.scopeFrames, len(g.vars))
}

func (g *Generator) endScope() {
	frame := g.scopeFrames[len(g.scopeFrames)-1]
	g.scopeFrames = g.scopeFrames[:len(g.scopeFrames)-1]
	if n := len(g.vars) - frame; n > 0 {
		g.emit("add rsp, %d", n*8)
		g.stackDepth -= n
		g.vars = g.vars[:frame]
	}
}

func (g *Generator) genIf(d *ast.IfNode) {
	endLabel := g.newLabel()

	branch := func(cond, body *ast.Node) {
		g.genExpr(cond)
		g.pop("rax")
		g.emit("test rax, rax")
		falseLabel := g.newLabel()
		g.emit("jz %s", falseLabel)
		g.genStmt(body)
		g.emit("jmp %s", endLabel)
		g.emitLabel(falseLabel)
	}

	branch(d.Cond, d.Then)
	for _, br := range d.Elifs {
		branch(br.Cond, br.Body)
	}
	if d.Else != nil {
		g.genStmt(d.Else)
	}
	g.emitLabel(endLabel)
}

// genPrintString emits the literal into .data (once per distinct body) and
// queues it into the runtime print buffer.
func (g *Generator) genPrintString(node *ast.Node) {
	value := node.Data.(*ast.StringNode).Value
	label, ok := g.strings[xxhash.Sum64String(value)]
	if !ok {
		label = fmt.Sprintf("string%d", g.stringCount)
		g.stringCount++
		g.strings[xxhash.Sum64String(value)] = label
		fmt.Fprintf(&g.data, "    %s db %s\n", label, dbOperand(value))
		fmt.Fprintf(&g.data, "    %s_len equ %d\n", label, len(value)+1)
	}
	g.emit("lea rsi, [%s]", label)
	g.emit("mov rcx, %s_len", label)
	g.emit("call check_and_add_to_buffer")
}

// dbOperand renders a literal body as a NASM db operand list: quoted runs
// with newlines broken out as ', 10, ', quotes as byte 39, and a
// terminating 0.
func dbOperand(value string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\n':
			sb.WriteString("', 10, '")
		case '\'':
			sb.WriteString("', 39, '")
		default:
			sb.WriteByte(value[i])
		}
	}
	sb.WriteString("', 0")
	return sb.String()
}
