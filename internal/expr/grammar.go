// Package expr implements the scripting expression language used by behavior
// nodes. Source text is parsed with Participle into a small AST which is then
// evaluated against a Context of named bindings.
package expr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

type programAST struct {
	Statements []*statementAST `@@ ( ";" @@ )*`
}

type statementAST struct {
	Assign *assignAST `  @@`
	Expr   *exprAST   `| @@`
}

type assignAST struct {
	Name  string   `@Ident`
	Op    string   `@("=" | "+=" | "-=" | "*=" | "/=")`
	Value *exprAST `@@`
}

type exprAST struct {
	Left *andAST   `@@`
	Rest []*andAST `( "||" @@ )*`
}

type andAST struct {
	Left *equalityAST   `@@`
	Rest []*equalityAST `( "&&" @@ )*`
}

type equalityAST struct {
	Left *comparisonAST `@@`
	Rest []*equalityOp  `@@*`
}

type equalityOp struct {
	Op    string         `@("==" | "!=")`
	Right *comparisonAST `@@`
}

type comparisonAST struct {
	Left *additiveAST    `@@`
	Rest []*comparisonOp `@@*`
}

type comparisonOp struct {
	Op    string       `@("<=" | ">=" | "<" | ">")`
	Right *additiveAST `@@`
}

type additiveAST struct {
	Left *termAST      `@@`
	Rest []*additiveOp `@@*`
}

type additiveOp struct {
	Op    string   `@("+" | "-")`
	Right *termAST `@@`
}

type termAST struct {
	Left *unaryAST `@@`
	Rest []*termOp `@@*`
}

type termOp struct {
	Op    string    `@("*" | "/" | "%")`
	Right *unaryAST `@@`
}

type unaryAST struct {
	Op      string      `  @("-" | "!")`
	Operand *unaryAST   `  @@`
	Primary *primaryAST `| @@`
}

type primaryAST struct {
	Number *float64 `  @Number`
	Bool   *string  `| @("true" | "false")`
	Call   *callAST `| @@`
	Ident  *string  `| @Ident`
	Sub    *exprAST `| "(" @@ ")"`
}

type callAST struct {
	Name string     `@Ident "("`
	Args []*exprAST `( @@ ( "," @@ )* )? ")"`
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Number", Pattern: `[0-9]+(\.[0-9]+)?|\.[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `\|\||&&|==|!=|<=|>=|\+=|-=|\*=|/=|[-+*/%<>=!(),;]`},
})

var parser = participle.MustBuild[programAST](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)
