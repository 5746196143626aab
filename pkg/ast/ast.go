// Package ast defines the abstract syntax tree produced by the parser and
// consumed by the code generator. Nodes are tagged variants allocated from
// bump arenas that live for the whole compilation.
package ast

import (
	"github.com/cmm-lang/cmm/pkg/arena"
	"github.com/cmm-lang/cmm/pkg/token"
)

type NodeType int

const (
	// Terms and expressions
	IntLit NodeType = iota
	Ident
	Paren
	BinaryOp
	String

	// Statements
	ExitStmt
	PrintStmt
	LetStmt
	AssignStmt
	Block
	IfStmt

	Program
)

// Node is a node in the tree. Type discriminates the variant held in Data.
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
}

type IntLitNode struct{ Value string }
type IdentNode struct{ Name string }
type ParenNode struct{ Expr *Node }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type StringNode struct{ Value string }
type ExitNode struct{ Expr *Node }
type PrintNode struct{ Arg *Node } // expression or String
type LetNode struct {
	Name      string
	Expr      *Node
	IsMutable bool
}
type AssignNode struct {
	Name string
	Expr *Node
}
type BlockNode struct{ Stmts []*Node }

type ElifBranch struct {
	Cond *Node
	Body *Node // always a Block
}

type IfNode struct {
	Cond   *Node
	Then   *Node // always a Block
	Elifs  []ElifBranch
	Else   *Node // Block or nil
}

type ProgramNode struct{ Stmts []*Node }

// Allocator owns the bump arenas backing every node of one compilation.
// Constructor methods allocate and initialize in a single call; nothing is
// freed until the whole allocator is dropped.
type Allocator struct {
	node     *arena.Arena[Node]
	intLit   *arena.Arena[IntLitNode]
	ident    *arena.Arena[IdentNode]
	paren    *arena.Arena[ParenNode]
	binary   *arena.Arena[BinaryOpNode]
	str      *arena.Arena[StringNode]
	exitStmt *arena.Arena[ExitNode]
	print    *arena.Arena[PrintNode]
	let      *arena.Arena[LetNode]
	assign   *arena.Arena[AssignNode]
	block    *arena.Arena[BlockNode]
	ifStmt   *arena.Arena[IfNode]
	prog     *arena.Arena[ProgramNode]
}

// NewAllocator sizes the arenas to span roughly sizeBytes in total. Nodes
// and the high-volume expression variants get most of the space.
func NewAllocator(sizeBytes int) *Allocator {
	return &Allocator{
		node:     arena.NewBytes[Node](sizeBytes / 2),
		intLit:   arena.NewBytes[IntLitNode](sizeBytes / 16),
		ident:    arena.NewBytes[IdentNode](sizeBytes / 16),
		paren:    arena.NewBytes[ParenNode](sizeBytes / 32),
		binary:   arena.NewBytes[BinaryOpNode](sizeBytes / 8),
		str:      arena.NewBytes[StringNode](sizeBytes / 32),
		exitStmt: arena.NewBytes[ExitNode](sizeBytes / 64),
		print:    arena.NewBytes[PrintNode](sizeBytes / 64),
		let:      arena.NewBytes[LetNode](sizeBytes / 32),
		assign:   arena.NewBytes[AssignNode](sizeBytes / 64),
		block:    arena.NewBytes[BlockNode](sizeBytes / 64),
		ifStmt:   arena.NewBytes[IfNode](sizeBytes / 64),
		prog:     arena.New[ProgramNode](1),
	}
}

func (a *Allocator) newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	n := a.node.Make()
	n.Type = nodeType
	n.Tok = tok
	n.Data = data
	return n
}

func (a *Allocator) NewIntLit(tok token.Token) *Node {
	d := a.intLit.Make()
	d.Value = tok.Value
	return a.newNode(tok, IntLit, d)
}

func (a *Allocator) NewIdent(tok token.Token) *Node {
	d := a.ident.Make()
	d.Name = tok.Value
	return a.newNode(tok, Ident, d)
}

func (a *Allocator) NewParen(tok token.Token, expr *Node) *Node {
	d := a.paren.Make()
	d.Expr = expr
	return a.newNode(tok, Paren, d)
}

func (a *Allocator) NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	d := a.binary.Make()
	d.Op, d.Left, d.Right = op, left, right
	return a.newNode(tok, BinaryOp, d)
}

func (a *Allocator) NewString(tok token.Token) *Node {
	d := a.str.Make()
	d.Value = tok.Value
	return a.newNode(tok, String, d)
}

func (a *Allocator) NewExit(tok token.Token, expr *Node) *Node {
	d := a.exitStmt.Make()
	d.Expr = expr
	return a.newNode(tok, ExitStmt, d)
}

func (a *Allocator) NewPrint(tok token.Token, arg *Node) *Node {
	d := a.print.Make()
	d.Arg = arg
	return a.newNode(tok, PrintStmt, d)
}

func (a *Allocator) NewLet(tok token.Token, name string, expr *Node, isMutable bool) *Node {
	d := a.let.Make()
	d.Name, d.Expr, d.IsMutable = name, expr, isMutable
	return a.newNode(tok, LetStmt, d)
}

func (a *Allocator) NewAssign(tok token.Token, name string, expr *Node) *Node {
	d := a.assign.Make()
	d.Name, d.Expr = name, expr
	return a.newNode(tok, AssignStmt, d)
}

func (a *Allocator) NewBlock(tok token.Token, stmts []*Node) *Node {
	d := a.block.Make()
	d.Stmts = stmts
	return a.newNode(tok, Block, d)
}

func (a *Allocator) NewIf(tok token.Token, cond, then *Node, elifs []ElifBranch, elseBody *Node) *Node {
	d := a.ifStmt.Make()
	d.Cond, d.Then, d.Elifs, d.Else = cond, then, elifs, elseBody
	return a.newNode(tok, IfStmt, d)
}

func (a *Allocator) NewProgram(tok token.Token, stmts []*Node) *Node {
	d := a.prog.Make()
	d.Stmts = stmts
	return a.newNode(tok, Program, d)
}

// NodeCount reports how many nodes have been allocated, for diagnostics.
func (a *Allocator) NodeCount() int { return a.node.Len() }
