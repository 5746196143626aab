package ast

import (
	"strings"

	"github.com/cmm-lang/cmm/pkg/token"
)

// Dump renders a tree back to source text with canonical parentheses:
// every binary expression is parenthesized, redundant source parentheses
// are not reproduced. Re-parsing the output yields a tree that dumps to
// the same text, which is the property the parser tests lean on.
func Dump(n *Node) string {
	var sb strings.Builder
	dumpNode(&sb, n, 0)
	return sb.String()
}

func dumpNode(sb *strings.Builder, n *Node, depth int) {
	if n == nil {
		return
	}
	switch d := n.Data.(type) {
	case *IntLitNode:
		sb.WriteString(d.Value)
	case *IdentNode:
		sb.WriteString(d.Name)
	case *ParenNode:
		dumpNode(sb, d.Expr, depth)
	case *BinaryOpNode:
		sb.WriteString("(")
		dumpNode(sb, d.Left, depth)
		sb.WriteString(" " + opLexeme(d.Op) + " ")
		dumpNode(sb, d.Right, depth)
		sb.WriteString(")")
	case *StringNode:
		sb.WriteString("\"")
		sb.WriteString(escapeString(d.Value))
		sb.WriteString("\"")
	case *ExitNode:
		indent(sb, depth)
		sb.WriteString("exit(")
		dumpNode(sb, d.Expr, depth)
		sb.WriteString(");\n")
	case *PrintNode:
		indent(sb, depth)
		sb.WriteString("print(")
		dumpNode(sb, d.Arg, depth)
		sb.WriteString(");\n")
	case *LetNode:
		indent(sb, depth)
		sb.WriteString("let ")
		if d.IsMutable {
			sb.WriteString("mut ")
		}
		sb.WriteString(d.Name + " = ")
		dumpNode(sb, d.Expr, depth)
		sb.WriteString(";\n")
	case *AssignNode:
		indent(sb, depth)
		sb.WriteString(d.Name + " = ")
		dumpNode(sb, d.Expr, depth)
		sb.WriteString(";\n")
	case *BlockNode:
		indent(sb, depth)
		sb.WriteString("{\n")
		for _, s := range d.Stmts {
			dumpNode(sb, s, depth+1)
		}
		indent(sb, depth)
		sb.WriteString("}\n")
	case *IfNode:
		indent(sb, depth)
		sb.WriteString("if (")
		dumpNode(sb, d.Cond, depth)
		sb.WriteString(") ")
		dumpBraced(sb, d.Then, depth)
		for _, br := range d.Elifs {
			indent(sb, depth)
			sb.WriteString("elif (")
			dumpNode(sb, br.Cond, depth)
			sb.WriteString(") ")
			dumpBraced(sb, br.Body, depth)
		}
		if d.Else != nil {
			indent(sb, depth)
			sb.WriteString("else ")
			dumpBraced(sb, d.Else, depth)
		}
	case *ProgramNode:
		for _, s := range d.Stmts {
			dumpNode(sb, s, depth)
		}
	}
}

// dumpBraced prints a block whose opening brace hangs on the current line.
func dumpBraced(sb *strings.Builder, block *Node, depth int) {
	d := block.Data.(*BlockNode)
	sb.WriteString("{\n")
	for _, s := range d.Stmts {
		dumpNode(sb, s, depth+1)
	}
	indent(sb, depth)
	sb.WriteString("}\n")
}

func indent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString("    ")
	}
}

func opLexeme(op token.Type) string {
	switch op {
	case token.Plus:
		return "+"
	case token.Minus:
		return "-"
	case token.Star:
		return "*"
	case token.Slash:
		return "/"
	}
	return "?"
}

func escapeString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			sb.WriteString("\\n")
		case '"':
			sb.WriteString("\\\"")
		case '\\':
			sb.WriteString("\\\\")
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
