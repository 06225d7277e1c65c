// interfaces.go contains the visitor interface that any code traversing
// expression nodes must implement, and the interface all expression
// nodes satisfy. Vela has no statements: every construct is an
// expression that yields a value, so a single visitor covers the tree.

package ast

// ExprVisitor is the interface for operating on all expression AST
// nodes. Any type that wants to perform an operation on expressions
// (e.g., the bytecode compiler or the AST printer) must implement this
// interface.
//
// Each Visit method corresponds to a distinct expression type.
type ExprVisitor interface {
	// VisitLiteral is called when visiting a literal (number, string,
	// true, false, nil).
	VisitLiteral(literal *Literal) any

	// VisitVariable is called when visiting a variable reference.
	VisitVariable(variable *Variable) any

	// VisitVarAssign is called when visiting an assignment (e.g. "x = 1").
	VisitVarAssign(assign *VarAssign) any

	// VisitVarDecl is called when visiting a var or const declaration.
	VisitVarDecl(decl *VarDecl) any

	// VisitSubscript is called when visiting a member access (e.g. "io.print").
	VisitSubscript(subscript *Subscript) any

	// VisitSubscriptSet is called when visiting a member assignment.
	VisitSubscriptSet(subscriptSet *SubscriptSet) any

	// VisitCall is called when visiting a call expression.
	VisitCall(call *Call) any

	// VisitUnary is called when visiting a unary expression ("!a", "-b").
	VisitUnary(unary *Unary) any

	// VisitBinary is called when visiting a binary expression ("a + b").
	VisitBinary(binary *Binary) any

	// VisitIf is called when visiting an if expression with optional else.
	VisitIf(ifExpr *If) any

	// VisitBlock is called when visiting a block expression "{ ... }".
	VisitBlock(block *Block) any

	// VisitImport is called when visiting an import expression.
	VisitImport(importExpr *Import) any

	// VisitFunction is called when visiting a fn literal.
	VisitFunction(fn *Function) any
}

// Expr is the core interface for all expression nodes in the AST.
// The Accept method enables the visitor design pattern so that
// operations can be performed on expressions without the expression
// types needing to know the details of those operations.
//
// Beyond dispatch, every node carries two pieces of bookkeeping:
// a next-sibling link chaining expression sequences (top level, block
// bodies, argument lists), and a ReqEval flag recording whether the
// surrounding context required a value. The compiler does not read the
// flag: it balances the value stack by position, discarding the value
// of every top-level expression and of every block expression except
// the last, which becomes the block's value.
type Expr interface {
	// Accept dispatches the node to the appropriate Visit method of
	// the provided visitor implementation.
	Accept(v ExprVisitor) any

	// Next returns the next sibling in an expression sequence, or nil.
	Next() Expr
	SetNext(next Expr)

	// ReqEval reports whether the context that parsed this node
	// required its value.
	ReqEval() bool
	SetReqEval(req bool)

	// CharIdx returns the source character offset the node is anchored
	// at, for diagnostics.
	CharIdx() int
}

// node is the bookkeeping every expression struct embeds.
type node struct {
	next    Expr
	reqEval bool
	charIdx int
}

func (n *node) Next() Expr          { return n.next }
func (n *node) SetNext(next Expr)   { n.next = next }
func (n *node) ReqEval() bool       { return n.reqEval }
func (n *node) SetReqEval(req bool) { n.reqEval = req }
func (n *node) CharIdx() int        { return n.charIdx }
