package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

var (
	// insertLexer defines the lexer for INSERT ... VALUES statements.
	insertLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `--[^\r\n]*`},
		{Name: "MultilineComment", Pattern: `/\*[^*]*\*+([^/*][^*]*\*+)*/`},
		{Name: "String", Pattern: `'([^']|'')*'`},
		{Name: "QuotedIdent", Pattern: `"([^"]|"")*"`},
		{Name: "Number", Pattern: `(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_$]*`},
		{Name: "Concat", Pattern: `\|\|`},
		{Name: "Cast", Pattern: `::`},
		{Name: "Punct", Pattern: `[(),.;=+\-*/%<>\[\]]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	// insertParser is the participle parser instance for INSERT statements.
	insertParser = participle.MustBuild[InsertStmt](
		participle.Lexer(insertLexer),
		participle.Elide("Comment", "MultilineComment", "Whitespace"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(4),
	)
)

type (
	// InsertStmt is the parsed form of a plain INSERT ... VALUES statement.
	//
	// The grammar intentionally covers only the convertible shape plus enough
	// surrounding structure (function calls, casts, operators) to explain why
	// a statement is not convertible. INSERT variants with SELECT sources,
	// CTEs, ON CONFLICT, or RETURNING are screened out before parsing by
	// ScanShape.
	InsertStmt struct {
		Table   TableRef `parser:"'INSERT' 'INTO' @@"`
		Columns []Column `parser:"('(' @@ (',' @@)* ')')?"`
		Rows    []*Row   `parser:"'VALUES' @@ (',' @@)* ';'?"`
	}

	// TableRef is a possibly schema-qualified table name.
	TableRef struct {
		Parts []string `parser:"@(QuotedIdent | Ident) ('.' @(QuotedIdent | Ident))*"`
	}

	// Column is a single column name in the INSERT column list.
	Column struct {
		Name string `parser:"@(QuotedIdent | Ident)"`
	}

	// Row is a single parenthesized tuple in the VALUES clause.
	Row struct {
		Values []*Expr `parser:"'(' @@ (',' @@)* ')'"`
	}

	// Expr is a value expression. A convertible expression is a bare literal:
	// any operator chain or cast marks the statement as non-convertible.
	Expr struct {
		Left  *Value    `parser:"@@"`
		Casts []string  `parser:"(Cast @Ident)*"`
		Ops   []*OpTail `parser:"@@*"`
	}

	// OpTail is a trailing operator applied to a value, e.g. the "+ 1" in
	// "2 + 1" or the "|| 'x'" in "'a' || 'x'".
	OpTail struct {
		Op    string `parser:"@(Concat | '+' | '-' | '*' | '/' | '%')"`
		Right *Value `parser:"@@"`
	}

	// Value is a single scalar in a value position.
	Value struct {
		Null    bool    `parser:"@'NULL'"`
		True    bool    `parser:"| @'TRUE'"`
		False   bool    `parser:"| @'FALSE'"`
		Func    *Func   `parser:"| @@"`
		String  *string `parser:"| @String"`
		Number  *string `parser:"| @(('-' | '+')? Number)"`
		Default bool    `parser:"| @'DEFAULT'"`
	}

	// Func is a function call in a value position, e.g. NOW() or
	// uuid_generate_v4(). Its presence makes the INSERT non-convertible.
	Func struct {
		Name string  `parser:"@Ident '('"`
		Args []*Expr `parser:"(@@ (',' @@)*)? ')'"`
	}
)

// ParseInsert parses a single INSERT ... VALUES statement.
//
// Callers are expected to have screened the statement with ScanShape first;
// this function returns an error for any input outside the supported INSERT
// shape (including INSERT ... SELECT, which the grammar does not cover).
//
// Example:
//
//	stmt, err := parser.ParseInsert("INSERT INTO users (id, name) VALUES (1, 'Alice');")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(stmt.Table.Name())   // "users"
//	fmt.Println(len(stmt.Rows))      // 1
func ParseInsert(sql string) (*InsertStmt, error) {
	stmt, err := insertParser.ParseString("", sql)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse INSERT statement")
	}

	return stmt, nil
}

// Name returns the possibly schema-qualified table name with identifier
// quoting stripped from each part.
func (t TableRef) Name() string {
	parts := make([]string, len(t.Parts))
	for i, p := range t.Parts {
		parts[i] = unquoteIdent(p)
	}

	return strings.Join(parts, ".")
}

// ColumnNames returns the column list with identifier quoting stripped.
func (s *InsertStmt) ColumnNames() []string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = unquoteIdent(c.Name)
	}

	return cols
}

// IsLiteral reports whether the expression is a bare literal with no casts
// or operators applied.
func (e *Expr) IsLiteral() bool {
	return len(e.Casts) == 0 && len(e.Ops) == 0
}

// FindFunc returns the first function call in the expression tree, or nil.
func (e *Expr) FindFunc() *Func {
	if e.Left != nil && e.Left.Func != nil {
		return e.Left.Func
	}
	for _, tail := range e.Ops {
		if tail.Right != nil && tail.Right.Func != nil {
			return tail.Right.Func
		}
	}

	return nil
}

// Literal returns the decoded scalar value and whether it is SQL NULL.
// Strings have their quotes stripped and doubled quotes collapsed; numbers
// and booleans are returned as written.
func (v *Value) Literal() (string, bool) {
	switch {
	case v.Null, v.Default:
		return "", true
	case v.True:
		return "true", false
	case v.False:
		return "false", false
	case v.String != nil:
		return unquoteString(*v.String), false
	case v.Number != nil:
		return strings.TrimPrefix(*v.Number, "+"), false
	}

	return "", true
}

// unquoteString strips the enclosing single quotes from a string literal and
// collapses doubled quotes.
func unquoteString(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = s[1 : len(s)-1]
	}

	return strings.ReplaceAll(s, "''", "'")
}

// unquoteIdent strips the enclosing double quotes from an identifier and
// collapses doubled quotes.
func unquoteIdent(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		return strings.ReplaceAll(s, `""`, `"`)
	}

	return s
}
