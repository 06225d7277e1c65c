// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser
//
// A recursive descent parser is a top-down parser: it starts from the
// top grammar rule and works its way down into the nested
// sub-expressions before reaching the leaves of the syntax tree.
//
// Every non-terminal returns a single expression node; the top level
// returns the first node of a sibling-linked expression list.
package parser

import (
	"github.com/hashicorp/go-multierror"

	"vela/ast"
	"vela/lexer"
	"vela/token"
)

type Parser struct {
	lexer  *lexer.Lexer
	source string

	currToken token.Token

	// cycled guards error recovery: when a full precedence descent
	// reaches the primary rule a second time without consuming a
	// token, the parser reports and skips the offending token so a
	// malformed input can never stall progress.
	cycled bool

	errors *multierror.Error
}

// Make initializes a parser over the given source text.
func Make(source string) *Parser {
	parser := &Parser{
		lexer:  lexer.New(source),
		source: source,
	}
	parser.advance()
	return parser
}

// Parse parses the entire token stream into an expression list,
// continuing until the end of input. Errors during parsing are
// collected but parsing continues to find additional errors where
// possible; a non-nil error renders the tree unusable.
func (parser *Parser) Parse() (ast.Expr, error) {
	first := parser.parseExprList(false)
	return first, parser.errors.ErrorOrNil()
}

func (parser *Parser) parsingError(message string) {
	err := CreateSyntaxError(message, parser.currToken.CharIdx, parser.source)
	parser.errors = multierror.Append(parser.errors, err)
}

// advance pulls the next token from the lexer. Malformed lexemes are
// reported here and skipped so the grammar rules only ever see
// well-formed tokens.
func (parser *Parser) advance() {
	parser.currToken = parser.lexer.NextToken()
	parser.cycled = false
	for parser.currToken.TokenType == token.ERROR {
		parser.parsingError("Malformed token.")
		parser.currToken = parser.lexer.NextToken()
	}
}

// Determines if the provided tokenType matches the current token.
func (parser *Parser) checkType(tokenType token.TokenType) bool {
	return parser.currToken.TokenType == tokenType
}

// skipNewlines discards newline tokens when an expression is required.
//
// The reqExpr parameter decides whether newlines are significant. In a
// case like
//
//	4 +
//	2
//
// the newline is not treated as significant, because an expression is
// required after the plus. In a case like
//
//	4
//	-3
//
// the newline terminates the first expression, because nothing is
// required after the 4.
func (parser *Parser) skipNewlines(reqExpr bool) {
	if reqExpr {
		for parser.checkType(token.NEWLINE) {
			parser.advance()
		}
	}
}

// parseExprList parses expressions until end of input (or a closing
// brace, when allowRightBrace is set), linking them through their
// next-sibling pointers. Expressions in list position are not required
// to yield a value; the compiler discards their results, except for the
// last expression of a block, whose value is the block's value.
func (parser *Parser) parseExprList(allowRightBrace bool) ast.Expr {
	var first ast.Expr
	var curr ast.Expr

	for parser.checkType(token.NEWLINE) {
		parser.advance()
	}

	for !parser.checkType(token.EOF) && (!allowRightBrace || !parser.checkType(token.RCUR)) {
		node := parser.parseExpr(false)
		for parser.checkType(token.NEWLINE) {
			parser.advance()
		}

		if node != nil {
			if first == nil {
				first = node
			}
			if curr != nil {
				curr.SetNext(node)
			}
			curr = node
		}
	}
	return first
}

// parseLiteral handles the primary rule: literals, fn literals,
// parenthesised expressions and blocks. On a malformed primary it
// reports once the descent has cycled, then advances past the
// offending token.
func (parser *Parser) parseLiteral(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	switch parser.currToken.TokenType {
	case token.NUM, token.STRING, token.TRUE, token.FALSE, token.NIL:
		literal := ast.NewLiteral(parser.currToken)
		parser.advance()
		return literal

	case token.LPA:
		parser.advance()
		value := parser.parseExpr(true)

		for parser.checkType(token.NEWLINE) {
			parser.advance()
		}
		if parser.checkType(token.RPA) {
			parser.advance()
		} else {
			parser.parsingError("Expected ).")
		}
		return value

	case token.LCUR:
		charIdx := parser.currToken.CharIdx
		parser.advance()
		exprs := parser.parseExprList(true)
		if parser.checkType(token.RCUR) {
			parser.advance()
		} else {
			parser.parsingError("Expected }.")
		}
		return ast.NewBlock(exprs, charIdx)

	case token.FUNC:
		return parser.parseFunction()
	}

	if parser.cycled {
		parser.parsingError("Expected expression.")
		parser.advance()
	} else {
		parser.cycled = true
		return parser.parseExpr(false)
	}
	return nil
}

// parseFunction parses a fn literal: fn(a, b) body. The body is a
// single required expression, usually a block.
func (parser *Parser) parseFunction() ast.Expr {
	fn := ast.NewFunction(parser.currToken.CharIdx)
	parser.advance()

	if parser.checkType(token.LPA) {
		parser.advance()
	} else {
		parser.parsingError("Expected (.")
	}

	for !parser.checkType(token.RPA) {
		if parser.checkType(token.EOF) {
			parser.parsingError("Expected ).")
			return nil
		}
		if parser.checkType(token.IDENTIFIER) {
			fn.Params = append(fn.Params, parser.currToken)
			parser.advance()
		} else {
			parser.parsingError("Expected parameter name.")
			parser.advance()
			continue
		}

		if parser.checkType(token.COMMA) {
			parser.advance()
			if parser.checkType(token.RPA) {
				parser.parsingError("Expected parameter name.")
			}
		} else if !parser.checkType(token.RPA) {
			parser.parsingError("Expected comma.")
			return nil
		}
	}
	parser.advance()

	fn.Body = parser.parseExpr(true)
	return fn
}

// parseVar handles variable references and assignments.
func (parser *Parser) parseVar(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	if parser.checkType(token.IDENTIFIER) {
		varName := parser.currToken
		parser.advance()
		if parser.checkType(token.ASSIGN) {
			varAssign := ast.NewVarAssign(varName)
			parser.advance()
			varAssign.Value = parser.parseExpr(true)
			return varAssign
		}
		return ast.NewVariable(varName)
	}
	return parser.parseLiteral(reqExpr)
}

// parseImport handles import expressions: import "name", optionally
// bound with as, which desugars to an immutable declaration.
func (parser *Parser) parseImport(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	if parser.checkType(token.IMPORT) {
		charIdx := parser.currToken.CharIdx
		parser.advance()
		if !parser.checkType(token.STRING) {
			parser.parsingError("Expected package name.")
			return nil
		}
		importExpr := ast.NewImport(parser.currToken)
		parser.advance()

		if parser.checkType(token.AS) {
			parser.advance()
			importAs := ast.NewVarDecl(charIdx)
			importAs.Name = parser.currToken
			if !parser.checkType(token.IDENTIFIER) {
				parser.parsingError("Expected identifier.")
			}
			parser.advance()
			importAs.Value = importExpr
			importAs.Mutable = false
			return importAs
		}
		return importExpr
	}
	return parser.parseVar(reqExpr)
}

// parseSubscript handles chained member access and member assignment.
func (parser *Parser) parseSubscript(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	value := parser.parseImport(reqExpr)
	for parser.checkType(token.DOT) {
		parser.advance()
		if !parser.checkType(token.IDENTIFIER) {
			parser.parsingError("Expected name.")
			continue
		}
		subscript := parser.currToken
		parser.advance()
		if parser.checkType(token.ASSIGN) {
			parser.advance()
			subscriptSet := ast.NewSubscriptSet(value, subscript)
			subscriptSet.Value = parser.parseExpr(true)
			return subscriptSet
		}
		value = ast.NewSubscript(value, subscript)
	}
	return value
}

// parseCall handles call expressions, including chained calls like
// f(1)(2). Arguments are required expressions separated by commas.
func (parser *Parser) parseCall(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	function := parser.parseSubscript(reqExpr)
	for parser.checkType(token.LPA) {
		charIdx := parser.currToken.CharIdx
		parser.advance()

		var firstArg ast.Expr
		var curr ast.Expr
		for !parser.checkType(token.RPA) {
			if parser.checkType(token.EOF) {
				parser.parsingError("Expected ).")
				return nil
			}
			arg := parser.parseExpr(true)
			if curr == nil {
				firstArg = arg
			} else {
				curr.SetNext(arg)
			}
			curr = arg

			if parser.checkType(token.COMMA) {
				parser.advance()
				if parser.checkType(token.RPA) {
					parser.parsingError("Expected argument.")
					parser.advance()
					return function
				}
			} else if !parser.checkType(token.RPA) {
				parser.parsingError("Expected comma.")
				return nil
			}
		}
		parser.advance()

		functionCall := ast.NewCall(function, charIdx)
		functionCall.FirstArg = firstArg
		function = functionCall
	}
	return function
}

// parseUnary handles the prefix operators ! and -.
func (parser *Parser) parseUnary(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	if parser.checkType(token.SUB) || parser.checkType(token.BANG) {
		unary := ast.NewUnary(parser.currToken)
		parser.advance()
		unary.Value = parser.parseUnary(true)
		return unary
	}
	return parser.parseCall(reqExpr)
}

// parseMultiplicative handles *, / and %, left-associative.
func (parser *Parser) parseMultiplicative(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	expr := parser.parseUnary(reqExpr)
	for parser.checkType(token.MULT) || parser.checkType(token.DIV) || parser.checkType(token.MOD) {
		binary := ast.NewBinary(expr, parser.currToken)
		parser.advance()
		binary.Right = parser.parseUnary(true)
		expr = binary
	}
	return expr
}

// parseAdditive handles + and -, left-associative.
func (parser *Parser) parseAdditive(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	expr := parser.parseMultiplicative(reqExpr)
	for parser.checkType(token.ADD) || parser.checkType(token.SUB) {
		binary := ast.NewBinary(expr, parser.currToken)
		parser.advance()
		binary.Right = parser.parseMultiplicative(true)
		expr = binary
	}
	return expr
}

// parseComparison handles <, >, <= and >=, left-associative.
func (parser *Parser) parseComparison(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	expr := parser.parseAdditive(reqExpr)
	for parser.checkType(token.LESS) || parser.checkType(token.LARGER) ||
		parser.checkType(token.LESS_EQUAL) || parser.checkType(token.LARGER_EQUAL) {
		binary := ast.NewBinary(expr, parser.currToken)
		parser.advance()
		binary.Right = parser.parseAdditive(true)
		expr = binary
	}
	return expr
}

// parseEquality handles == and !=, left-associative.
func (parser *Parser) parseEquality(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	expr := parser.parseComparison(reqExpr)
	for parser.checkType(token.EQUAL_EQUAL) || parser.checkType(token.NOT_EQUAL) {
		binary := ast.NewBinary(expr, parser.currToken)
		parser.advance()
		binary.Right = parser.parseComparison(true)
		expr = binary
	}
	return expr
}

// parseVarDecl handles var and const declarations. Both forms require
// an initializer; const produces an immutable binding.
func (parser *Parser) parseVarDecl(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	if parser.checkType(token.VAR) || parser.checkType(token.CONST) {
		varDecl := ast.NewVarDecl(parser.currToken.CharIdx)
		varDecl.Mutable = parser.checkType(token.VAR)
		parser.advance()

		if parser.checkType(token.IDENTIFIER) {
			varDecl.Name = parser.currToken
			parser.advance()
		} else {
			parser.parsingError("Expected variable name.")
		}

		if parser.checkType(token.ASSIGN) {
			parser.advance()
		} else {
			parser.parsingError("Expected =.")
		}

		varDecl.Value = parser.parseExpr(true)
		return varDecl
	}
	return parser.parseEquality(reqExpr)
}

// parseIf handles conditional expressions: if cond then-expr, with an
// optional else arm. Both arms are single expressions.
func (parser *Parser) parseIf(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)

	if parser.checkType(token.IF) {
		charIdx := parser.currToken.CharIdx
		parser.advance()

		ifExpr := ast.NewIf(charIdx)
		ifExpr.Condition = parser.parseExpr(true)
		ifExpr.Then = parser.parseExpr(true)
		for parser.checkType(token.NEWLINE) {
			parser.advance()
		}
		if parser.checkType(token.ELSE) {
			parser.advance()
			ifExpr.Else = parser.parseExpr(true)
		}
		return ifExpr
	}
	return parser.parseVarDecl(reqExpr)
}

// parseExpr parses one expression starting from the lowest-precedence
// rule and records on the node whether its value was required.
func (parser *Parser) parseExpr(reqExpr bool) ast.Expr {
	parser.skipNewlines(reqExpr)
	expr := parser.parseIf(reqExpr)
	if expr != nil {
		expr.SetReqEval(reqExpr)
	}
	return expr
}
