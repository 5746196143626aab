package codegen

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"modernc.org/libqbe"

	"github.com/cmm-lang/cmm/pkg/ast"
	"github.com/cmm-lang/cmm/pkg/config"
	"github.com/cmm-lang/cmm/pkg/token"
	"github.com/cmm-lang/cmm/pkg/util"
)

// qbeBackend lowers the program to QBE IR and compiles it in-process with
// libqbe. The output is GNU assembler text for a libc-hosted main, so the
// result is linked with cc rather than bare ld. The NASM generator remains
// the stock backend; this one exists for targets where an assembler-level
// runtime is not wanted.
type qbeBackend struct{}

func (b *qbeBackend) Generate(root *ast.Node, cfg *config.Config) ([]byte, error) {
	g := &qbeGen{cfg: cfg, strings: make(map[uint64]string)}
	qbeIR := g.gen(root)

	var asmBuf bytes.Buffer
	if err := libqbe.Main(cfg.BackendTarget, "input.ssa", strings.NewReader(qbeIR), &asmBuf, nil); err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\nlibqbe error: %w", qbeIR, err)
	}
	return asmBuf.Bytes(), nil
}

type qbeVar struct {
	Name      string
	Temp      string
	IsMutable bool
}

type qbeGen struct {
	cfg *config.Config

	body strings.Builder
	data strings.Builder

	vars   []qbeVar
	frames []int

	tempCount   int
	labelCount  int
	stringCount int
	strings     map[uint64]string

	needsIntFmt bool
	needsStrFmt bool
}

func (g *qbeGen) gen(root *ast.Node) string {
	prog := root.Data.(*ast.ProgramNode)
	for _, stmt := range prog.Stmts {
		g.genStmt(stmt)
	}

	var out strings.Builder
	if g.needsIntFmt {
		fmt.Fprintf(&out, "data $fmt_int = { b %s, b 0 }\n", strconv.Quote("%ld\n"))
	}
	if g.needsStrFmt {
		fmt.Fprintf(&out, "data $fmt_str = { b %s, b 0 }\n", strconv.Quote("%s"))
	}
	out.WriteString(g.data.String())
	out.WriteString("\nexport function w $main() {\n@start\n")
	out.WriteString(g.body.String())
	out.WriteString("\tret 0\n}\n")
	return out.String()
}

func (g *qbeGen) newTemp() string {
	t := fmt.Sprintf("%%t%d", g.tempCount)
	g.tempCount++
	return t
}

func (g *qbeGen) newLabel(hint string) string {
	l := fmt.Sprintf("@%s%d", hint, g.labelCount)
	g.labelCount++
	return l
}

func (g *qbeGen) findVar(name string) (qbeVar, bool) {
	for i := len(g.vars) - 1; i >= 0; i-- {
		if g.vars[i].Name == name {
			return g.vars[i], true
		}
	}
	return qbeVar{}, false
}

// genExpr returns the QBE value (constant or temporary) holding the result.
func (g *qbeGen) genExpr(node *ast.Node) string {
	switch d := node.Data.(type) {
	case *ast.IntLitNode:
		return d.Value
	case *ast.IdentNode:
		v, ok := g.findVar(d.Name)
		if !ok {
			util.ErrorDetail(util.ErrVariableNotDeclared, d.Name, node.Tok)
		}
		return v.Temp
	case *ast.ParenNode:
		return g.genExpr(d.Expr)
	case *ast.BinaryOpNode:
		left := g.genExpr(d.Left)
		right := g.genExpr(d.Right)
		var op string
		switch d.Op {
		case token.Plus:
			op = "add"
		case token.Minus:
			op = "sub"
		case token.Star:
			op = "mul"
		case token.Slash:
			op = "div"
		default:
			util.Error(util.ErrUnknownOperator, node.Tok)
		}
		t := g.newTemp()
		fmt.Fprintf(&g.body, "\t%s =l %s %s, %s\n", t, op, left, right)
		return t
	}
	util.Error(util.ErrExpectedExpression, node.Tok)
	return ""
}

func (g *qbeGen) genStmt(node *ast.Node) {
	switch d := node.Data.(type) {
	case *ast.ExitNode:
		v := g.genExpr(d.Expr)
		fmt.Fprintf(&g.body, "\tcall $exit(w %s)\n", v)

	case *ast.PrintNode:
		if d.Arg.Type == ast.String {
			label := g.internString(d.Arg.Data.(*ast.StringNode).Value)
			g.needsStrFmt = true
			fmt.Fprintf(&g.body, "\tcall $printf(l $fmt_str, ..., l $%s)\n", label)
			return
		}
		v := g.genExpr(d.Arg)
		g.needsIntFmt = true
		fmt.Fprintf(&g.body, "\tcall $printf(l $fmt_int, ..., l %s)\n", v)

	case *ast.LetNode:
		scopeStart := 0
		if len(g.frames) > 0 {
			scopeStart = g.frames[len(g.frames)-1]
		}
		for _, v := range g.vars[scopeStart:] {
			if v.Name == d.Name {
				util.Error(util.ErrVariableAlreadyDeclared, node.Tok)
			}
		}
		temp := fmt.Sprintf("%%%s.%d", d.Name, g.tempCount)
		g.tempCount++
		val := g.genExpr(d.Expr)
		fmt.Fprintf(&g.body, "\t%s =l copy %s\n", temp, val)
		g.vars = append(g.vars, qbeVar{Name: d.Name, Temp: temp, IsMutable: d.IsMutable})

	case *ast.AssignNode:
		v, ok := g.findVar(d.Name)
		if !ok {
			util.ErrorDetail(util.ErrVariableNotDeclared, d.Name, node.Tok)
		}
		if !v.IsMutable {
			util.Error(util.ErrVariableNotMutable, node.Tok)
		}
		val := g.genExpr(d.Expr)
		fmt.Fprintf(&g.body, "\t%s =l copy %s\n", v.Temp, val)

	case *ast.BlockNode:
		g.frames = append(g.frames, len(g.vars))
		for _, stmt := range d.Stmts {
			g.genStmt(stmt)
		}
		frame := g.frames[len(g.frames)-1]
		g.frames = g.frames[:len(g.frames)-1]
		g.vars = g.vars[:frame]

	case *ast.IfNode:
		end := g.newLabel("end")
		branch := func(cond, body *ast.Node) {
			c := g.genExpr(cond)
			cw := g.newTemp()
			fmt.Fprintf(&g.body, "\t%s =w copy %s\n", cw, c)
			then := g.newLabel("then")
			next := g.newLabel("next")
			fmt.Fprintf(&g.body, "\tjnz %s, %s, %s\n", cw, then, next)
			fmt.Fprintf(&g.body, "%s\n", then)
			g.genStmt(body)
			fmt.Fprintf(&g.body, "\tjmp %s\n", end)
			fmt.Fprintf(&g.body, "%s\n", next)
		}
		branch(d.Cond, d.Then)
		for _, br := range d.Elifs {
			branch(br.Cond, br.Body)
		}
		if d.Else != nil {
			g.genStmt(d.Else)
		}
		fmt.Fprintf(&g.body, "%s\n", end)

	case *ast.ProgramNode:
		for _, stmt := range d.Stmts {
			g.genStmt(stmt)
		}

	default:
		util.Error(util.ErrInvalidProgram, node.Tok)
	}
}

func (g *qbeGen) internString(value string) string {
	key := xxhash.Sum64String(value)
	if label, ok := g.strings[key]; ok {
		return label
	}
	label := fmt.Sprintf("str%d", g.stringCount)
	g.stringCount++
	g.strings[key] = label
	fmt.Fprintf(&g.data, "data $%s = { b %s, b 0 }\n", label, strconv.Quote(value))
	return label
}
