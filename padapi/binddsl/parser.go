package binddsl

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	ruleIdent      = lexer.SimpleRule{Name: "Ident", Pattern: `[a-zA-Z][\w\-]*`}
	ruleString     = lexer.SimpleRule{Name: "String", Pattern: `"(\\"|[^"])*"`}
	ruleNumber     = lexer.SimpleRule{Name: "Number", Pattern: `[-+]?(\d*\.)?\d+`}
	rulePunct      = lexer.SimpleRule{Name: "Punct", Pattern: `[[\].,()]`}
	ruleWhitespace = lexer.SimpleRule{Name: "Whitespace", Pattern: `[ \t]+`}
)

var bindingLexer = lexer.MustSimple([]lexer.SimpleRule{
	ruleWhitespace,
	ruleString,
	ruleNumber,
	ruleIdent,
	rulePunct,
})

var bindingParser = participle.MustBuild[Binding](
	participle.Lexer(bindingLexer),
	participle.UseLookahead(2),
	participle.Elide(ruleWhitespace.Name),
	participle.Unquote("String"),
)

// Binding is one parsed binding expression, e.g.
//
//	t300rs.axis[0] invert range(0.05, 0.95) sens(1.8)
//	"046d:c24f:0".button[3] threshold(0.6) label("shift up")
type Binding struct {
	Source    Source     `parser:"@@"`
	Modifiers []Modifier `parser:"@@*"`
}

type Source struct {
	Device string `parser:"(@String | @Ident) '.'"`
	Kind   string `parser:"@Ident"`
	Index  int    `parser:"'[' @Number ']'"`
}

type Modifier struct {
	Name      string     `parser:"@Ident"`
	Arguments []Argument `parser:"('(' @@? (',' @@)* ')')?"`
}

type Argument struct {
	Number *float64 `parser:"@Number |"`
	String *string  `parser:"@String"`
}
