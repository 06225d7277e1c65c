package parser

import (
	"encoding/json"
	"fmt"
	"os"

	"vela/ast"
)

// astPrinter implements the visitor interface and builds a
// JSON-friendly representation of the AST using maps and slices.
// Each Visit method returns an object that can be marshaled to JSON.
type astPrinter struct{}

func nilOrAccept(expr ast.Expr, p astPrinter) any {
	if expr == nil {
		return nil
	}
	return expr.Accept(p)
}

func acceptList(first ast.Expr, p astPrinter) []any {
	exprs := make([]any, 0)
	for curr := first; curr != nil; curr = curr.Next() {
		exprs = append(exprs, curr.Accept(p))
	}
	return exprs
}

func (p astPrinter) VisitLiteral(literal *ast.Literal) any {
	return map[string]any{
		"type":  "Literal",
		"value": literal.Token.Lexeme,
	}
}

func (p astPrinter) VisitVariable(variable *ast.Variable) any {
	return map[string]any{
		"type": "Variable",
		"name": variable.Name.Lexeme,
	}
}

func (p astPrinter) VisitVarAssign(assign *ast.VarAssign) any {
	return map[string]any{
		"type":  "VarAssign",
		"name":  assign.Name.Lexeme,
		"value": nilOrAccept(assign.Value, p),
	}
}

func (p astPrinter) VisitVarDecl(decl *ast.VarDecl) any {
	return map[string]any{
		"type":    "VarDecl",
		"name":    decl.Name.Lexeme,
		"mutable": decl.Mutable,
		"value":   nilOrAccept(decl.Value, p),
	}
}

func (p astPrinter) VisitSubscript(subscript *ast.Subscript) any {
	return map[string]any{
		"type":   "Subscript",
		"target": nilOrAccept(subscript.Target, p),
		"name":   subscript.Name.Lexeme,
	}
}

func (p astPrinter) VisitSubscriptSet(subscriptSet *ast.SubscriptSet) any {
	return map[string]any{
		"type":   "SubscriptSet",
		"target": nilOrAccept(subscriptSet.Target, p),
		"name":   subscriptSet.Name.Lexeme,
		"value":  nilOrAccept(subscriptSet.Value, p),
	}
}

func (p astPrinter) VisitCall(call *ast.Call) any {
	return map[string]any{
		"type":   "Call",
		"callee": nilOrAccept(call.Callee, p),
		"args":   acceptList(call.FirstArg, p),
	}
}

func (p astPrinter) VisitUnary(unary *ast.Unary) any {
	return map[string]any{
		"type":     "Unary",
		"operator": unary.Op.Lexeme,
		"value":    nilOrAccept(unary.Value, p),
	}
}

func (p astPrinter) VisitBinary(binary *ast.Binary) any {
	return map[string]any{
		"type":     "Binary",
		"operator": binary.Op.Lexeme,
		"left":     nilOrAccept(binary.Left, p),
		"right":    nilOrAccept(binary.Right, p),
	}
}

func (p astPrinter) VisitIf(ifExpr *ast.If) any {
	return map[string]any{
		"type":      "If",
		"condition": nilOrAccept(ifExpr.Condition, p),
		"then":      nilOrAccept(ifExpr.Then, p),
		"else":      nilOrAccept(ifExpr.Else, p),
	}
}

func (p astPrinter) VisitBlock(block *ast.Block) any {
	return map[string]any{
		"type":        "Block",
		"expressions": acceptList(block.First, p),
	}
}

func (p astPrinter) VisitImport(importExpr *ast.Import) any {
	return map[string]any{
		"type":    "Import",
		"package": importExpr.PackageName.Lexeme,
	}
}

func (p astPrinter) VisitFunction(fn *ast.Function) any {
	params := make([]string, 0, len(fn.Params))
	for _, param := range fn.Params {
		params = append(params, param.Lexeme)
	}
	return map[string]any{
		"type":   "Function",
		"params": params,
		"body":   nilOrAccept(fn.Body, p),
	}
}

// ASTJSON renders an expression list as prettified JSON.
func ASTJSON(first ast.Expr) (string, error) {
	printer := astPrinter{}
	data, err := json.MarshalIndent(acceptList(first, printer), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PrintASTJSON prints the AST as prettified JSON to standard output.
func PrintASTJSON(first ast.Expr) error {
	data, err := ASTJSON(first)
	if err != nil {
		return err
	}
	fmt.Println(data)
	return nil
}

// WriteASTJSONToFile writes the AST for the provided expressions to a
// JSON file at the given path.
func WriteASTJSONToFile(first ast.Expr, path string) error {
	data, err := ASTJSON(first)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(data), 0o644)
}
