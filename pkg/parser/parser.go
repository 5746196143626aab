// Package parser turns the token stream into an AST. It is a recursive
// descent parser with Pratt-style precedence climbing for expressions and
// no error recovery: the first syntax error is fatal.
package parser

import (
	"github.com/cmm-lang/cmm/pkg/ast"
	"github.com/cmm-lang/cmm/pkg/token"
	"github.com/cmm-lang/cmm/pkg/util"
)

type Parser struct {
	tokens []token.Token
	pos    int
	alloc  *ast.Allocator
}

// NewParser wraps a token stream that ends with an EOF token. All nodes are
// allocated from alloc and live until the compilation ends.
func NewParser(tokens []token.Token, alloc *ast.Allocator) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	return &Parser{tokens: tokens, alloc: alloc}
}

func (p *Parser) current() token.Token { return p.peek(0) }

func (p *Parser) peek(offset int) token.Token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) consume() token.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) check(tokType token.Type) bool { return p.current().Type == tokType }

func (p *Parser) tryConsume(tokType token.Type) (token.Token, bool) {
	if !p.check(tokType) {
		return token.Token{}, false
	}
	return p.consume(), true
}

func (p *Parser) expect(tokType token.Type, code util.ErrCode) token.Token {
	if p.check(tokType) {
		return p.consume()
	}
	util.Error(code, p.current())
	return token.Token{}
}

// Parse consumes the whole stream and returns the Program root.
func (p *Parser) Parse() *ast.Node {
	tok := p.current()
	var stmts []*ast.Node
	for !p.check(token.EOF) {
		stmt := p.parseStmt()
		if stmt == nil {
			util.Error(util.ErrInvalidProgram, p.current())
		}
		stmts = append(stmts, stmt)
	}
	return p.alloc.NewProgram(tok, stmts)
}

// parseStmt parses one statement, or returns nil without consuming anything
// when the current token cannot begin one. Scope parsing relies on the
// nil-without-consuming contract to find its closing brace.
func (p *Parser) parseStmt() *ast.Node {
	tok := p.current()
	switch {
	case p.check(token.Exit):
		p.consume()
		p.expect(token.LParen, util.ErrExpectedOpenParenthesis)
		expr := p.parseExpr(1)
		p.expect(token.RParen, util.ErrExpectedCloseParenthesis)
		p.expect(token.Semi, util.ErrExpectedEndOfLine)
		return p.alloc.NewExit(tok, expr)

	case p.check(token.Print):
		p.consume()
		p.expect(token.LParen, util.ErrExpectedOpenParenthesis)
		var arg *ast.Node
		if strTok, ok := p.tryConsume(token.StringLit); ok {
			arg = p.alloc.NewString(strTok)
		} else {
			arg = p.parseExpr(1)
		}
		p.expect(token.RParen, util.ErrExpectedCloseParenthesis)
		p.expect(token.Semi, util.ErrExpectedEndOfLine)
		return p.alloc.NewPrint(tok, arg)

	case p.check(token.Let):
		p.consume()
		_, isMutable := p.tryConsume(token.Mut)
		identTok, ok := p.tryConsume(token.Ident)
		if !ok {
			util.Error(util.ErrExpectedExpression, p.current())
		}
		p.expect(token.Eq, util.ErrUnknownOperator)
		expr := p.parseExpr(1)
		p.expect(token.Semi, util.ErrExpectedEndOfLine)
		return p.alloc.NewLet(tok, identTok.Value, expr, isMutable)

	case p.check(token.Ident) && p.peek(1).Type == token.Eq:
		identTok := p.consume()
		p.consume() // '='
		expr := p.parseExpr(1)
		p.expect(token.Semi, util.ErrExpectedEndOfLine)
		return p.alloc.NewAssign(tok, identTok.Value, expr)

	case p.check(token.LBrace):
		return p.parseScope()

	case p.check(token.If):
		return p.parseIf()
	}
	return nil
}

// parseScope parses '{' Stmt* '}'. Statements are collected until an
// attempt declines without consuming, which leaves the closing brace (or an
// offending token) for the expect below.
func (p *Parser) parseScope() *ast.Node {
	tok := p.expect(token.LBrace, util.ErrExpectedOpenCurly)
	var stmts []*ast.Node
	for {
		stmt := p.parseStmt()
		if stmt == nil {
			break
		}
		stmts = append(stmts, stmt)
	}
	p.expect(token.RBrace, util.ErrExpectedCloseCurly)
	return p.alloc.NewBlock(tok, stmts)
}

func (p *Parser) parseIf() *ast.Node {
	tok := p.consume() // 'if'
	p.expect(token.LParen, util.ErrExpectedOpenParenthesis)
	cond := p.parseExpr(1)
	p.expect(token.RParen, util.ErrExpectedCloseParenthesis)
	then := p.parseIfBody()

	var elifs []ast.ElifBranch
	for {
		if _, ok := p.tryConsume(token.Elif); !ok {
			break
		}
		p.expect(token.LParen, util.ErrExpectedOpenParenthesis)
		elifCond := p.parseExpr(1)
		p.expect(token.RParen, util.ErrExpectedCloseParenthesis)
		elifs = append(elifs, ast.ElifBranch{Cond: elifCond, Body: p.parseIfBody()})
	}

	var elseBody *ast.Node
	if _, ok := p.tryConsume(token.Else); ok {
		elseBody = p.parseIfBody()
	}
	return p.alloc.NewIf(tok, cond, then, elifs, elseBody)
}

func (p *Parser) parseIfBody() *ast.Node {
	if !p.check(token.LBrace) {
		util.Error(util.ErrExpectedScope, p.current())
	}
	return p.parseScope()
}

// binaryPrecedence returns the binding power of a binary operator, or 0 for
// tokens that are not one. Higher binds tighter.
func binaryPrecedence(op token.Type) int {
	switch op {
	case token.Plus, token.Minus:
		return 1
	case token.Star, token.Slash:
		return 2
	}
	return 0
}

// parseExpr is the precedence climber. The prec+1 in the recursive call
// makes every operator left-associative.
func (p *Parser) parseExpr(minPrec int) *ast.Node {
	lhs := p.parseTerm()
	for {
		prec := binaryPrecedence(p.current().Type)
		if prec == 0 || prec < minPrec {
			break
		}
		opTok := p.consume()
		rhs := p.parseExpr(prec + 1)
		lhs = p.alloc.NewBinaryOp(opTok, opTok.Type, lhs, rhs)
	}
	return lhs
}

func (p *Parser) parseTerm() *ast.Node {
	tok := p.current()
	switch tok.Type {
	case token.IntLit:
		return p.alloc.NewIntLit(p.consume())
	case token.Ident:
		return p.alloc.NewIdent(p.consume())
	case token.LParen:
		p.consume()
		expr := p.parseExpr(1)
		p.expect(token.RParen, util.ErrExpectedCloseParenthesis)
		return p.alloc.NewParen(tok, expr)
	}
	util.Error(util.ErrExpectedExpression, tok)
	return nil
}
