package parser

import (
	"strings"
	"unicode"
)

// StatementKind identifies the structural shape of a SQL statement. Kinds
// cover exactly the shapes the analyzers reason about; anything else is
// KindUnknown and is treated conservatively by callers.
type StatementKind string

const (
	KindSelect      StatementKind = "select"
	KindInsert      StatementKind = "insert"
	KindUpdate      StatementKind = "update"
	KindDelete      StatementKind = "delete"
	KindCreateTable StatementKind = "create_table"
	KindCreateIndex StatementKind = "create_index"
	KindAlterTable  StatementKind = "alter_table"
	KindDropTable   StatementKind = "drop_table"
	KindDropIndex   StatementKind = "drop_index"
	KindDropSchema  StatementKind = "drop_schema"
	KindTruncate    StatementKind = "truncate"
	KindUnknown     StatementKind = "unknown"
)

type (
	// Shape describes the structural properties of a single SQL statement
	// that the classifier, analyzers, and COPY converter need. It is produced
	// by ScanShape without ever raising: malformed input yields KindUnknown.
	Shape struct {
		// Kind is the statement's structural category.
		Kind StatementKind

		// Table is the statement's primary target table (possibly
		// schema-qualified), or "" when no single target applies.
		Table string

		// HasWhere reports whether a top-level WHERE clause is present.
		HasWhere bool

		// WherePredicate holds the raw predicate text following WHERE, used
		// as a selectivity proxy by impact analysis. Empty when !HasWhere.
		WherePredicate string

		// HasCTE reports a leading WITH clause.
		HasCTE bool

		// HasSelectSource reports a SELECT keyword in source position
		// (INSERT ... SELECT or similar).
		HasSelectSource bool

		// HasSubquery reports a parenthesized SELECT anywhere in the
		// statement.
		HasSubquery bool

		// HasOnConflict and HasReturning report the respective INSERT
		// clauses.
		HasOnConflict bool
		HasReturning  bool
	}

	// token is a single lexical unit with string/comment content removed.
	token struct {
		text  string // original text (identifiers keep their case)
		upper string // upper-cased text for keyword comparison
		depth int    // parenthesis nesting depth at the token
	}
)

// Split breaks a SQL script into individual statements on semicolon
// boundaries, respecting single-quoted strings, double-quoted identifiers,
// dollar-quoted strings, and both comment forms. Empty and comment-only
// fragments are dropped; each returned statement is trimmed.
func Split(script string) []string {
	var (
		stmts   []string
		current strings.Builder
	)

	i := 0
	for i < len(script) {
		switch {
		case strings.HasPrefix(script[i:], "--"):
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				end = len(script) - i
			}
			current.WriteString(script[i : i+end])
			i += end

		case strings.HasPrefix(script[i:], "/*"):
			end := strings.Index(script[i:], "*/")
			if end < 0 {
				end = len(script) - i
			} else {
				end += 2
			}
			current.WriteString(script[i : i+end])
			i += end

		case script[i] == '\'':
			n := scanQuoted(script[i:], '\'')
			current.WriteString(script[i : i+n])
			i += n

		case script[i] == '"':
			n := scanQuoted(script[i:], '"')
			current.WriteString(script[i : i+n])
			i += n

		case script[i] == '$':
			n := scanDollarQuoted(script[i:])
			current.WriteString(script[i : i+n])
			i += n

		case script[i] == ';':
			if s := strings.TrimSpace(current.String()); s != "" && !commentOnly(s) {
				stmts = append(stmts, s)
			}
			current.Reset()
			i++

		default:
			current.WriteByte(script[i])
			i++
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" && !commentOnly(s) {
		stmts = append(stmts, s)
	}

	return stmts
}

// ScanShape determines the structural shape of a single statement. It never
// returns an error: input it cannot make sense of is reported as KindUnknown
// so that callers err toward caution.
func ScanShape(stmt string) Shape {
	toks := tokenize(stmt)
	if len(toks) == 0 {
		return Shape{Kind: KindUnknown}
	}

	shape := Shape{Kind: KindUnknown}

	// Clause detection is independent of the statement kind.
	for i, t := range toks {
		switch t.upper {
		case "SELECT":
			if i == 0 {
				continue
			}
			if t.depth > 0 {
				shape.HasSubquery = true
			} else {
				shape.HasSelectSource = true
			}
		case "RETURNING":
			if t.depth == 0 {
				shape.HasReturning = true
			}
		case "CONFLICT":
			if i > 0 && toks[i-1].upper == "ON" && t.depth == 0 {
				shape.HasOnConflict = true
			}
		case "WHERE":
			if t.depth == 0 && !shape.HasWhere {
				shape.HasWhere = true
				shape.WherePredicate = predicateText(stmt, toks, i)
			}
		}
	}

	switch toks[0].upper {
	case "WITH":
		shape.HasCTE = true
		shape.Kind = kindAfterCTE(toks)
	case "SELECT":
		shape.Kind = KindSelect
	case "INSERT":
		shape.Kind = KindInsert
		shape.Table = tableAfter(toks, "INTO")
	case "UPDATE":
		shape.Kind = KindUpdate
		shape.Table = identAt(toks, 1)
	case "DELETE":
		shape.Kind = KindDelete
		shape.Table = tableAfter(toks, "FROM")
	case "TRUNCATE":
		shape.Kind = KindTruncate
		if t := tableAfter(toks, "TABLE"); t != "" {
			shape.Table = t
		} else {
			shape.Table = identAt(toks, 1)
		}
	case "CREATE":
		switch keywordAfterModifiers(toks, 1) {
		case "TABLE":
			shape.Kind = KindCreateTable
			shape.Table = tableAfter(toks, "TABLE")
		case "INDEX":
			shape.Kind = KindCreateIndex
			shape.Table = tableAfter(toks, "ON")
		}
	case "ALTER":
		if keywordAfterModifiers(toks, 1) == "TABLE" {
			shape.Kind = KindAlterTable
			shape.Table = tableAfter(toks, "TABLE")
		}
	case "DROP":
		switch keywordAfterModifiers(toks, 1) {
		case "TABLE":
			shape.Kind = KindDropTable
			shape.Table = tableAfter(toks, "TABLE")
		case "INDEX":
			shape.Kind = KindDropIndex
		case "SCHEMA":
			shape.Kind = KindDropSchema
		}
	}

	return shape
}

// kindAfterCTE resolves the statement kind that follows a WITH clause by
// finding the first top-level DML keyword after the CTE definitions.
func kindAfterCTE(toks []token) StatementKind {
	for _, t := range toks[1:] {
		if t.depth != 0 {
			continue
		}
		switch t.upper {
		case "SELECT":
			return KindSelect
		case "INSERT":
			return KindInsert
		case "UPDATE":
			return KindUpdate
		case "DELETE":
			return KindDelete
		}
	}

	return KindUnknown
}

// tableAfter returns the identifier sequence (a.b.c) that follows the first
// top-level occurrence of the given keyword.
func tableAfter(toks []token, keyword string) string {
	for i, t := range toks {
		if t.depth == 0 && t.upper == keyword {
			return identAt(toks, i+1)
		}
	}

	return ""
}

// identAt assembles a possibly qualified identifier starting at index i,
// skipping IF [NOT] EXISTS and ONLY modifiers.
func identAt(toks []token, i int) string {
	for i < len(toks) && isModifier(toks[i].upper) {
		i++
	}

	if i >= len(toks) || !isIdentToken(toks[i].text) {
		return ""
	}

	var parts []string
	parts = append(parts, unquoteIdent(toks[i].text))
	for i+2 < len(toks) && toks[i+1].text == "." && isIdentToken(toks[i+2].text) {
		parts = append(parts, unquoteIdent(toks[i+2].text))
		i += 2
	}

	return strings.Join(parts, ".")
}

// keywordAfterModifiers returns the first keyword at or after index i that is
// not an object modifier (UNIQUE, TEMPORARY, etc).
func keywordAfterModifiers(toks []token, i int) string {
	for ; i < len(toks); i++ {
		switch toks[i].upper {
		case "UNIQUE", "TEMP", "TEMPORARY", "UNLOGGED", "OR", "REPLACE", "CONCURRENTLY", "MATERIALIZED":
			continue
		default:
			return toks[i].upper
		}
	}

	return ""
}

// predicateText extracts the raw predicate following the WHERE token,
// stopping at a top-level clause keyword.
func predicateText(stmt string, toks []token, whereIdx int) string {
	var b strings.Builder
	for _, t := range toks[whereIdx+1:] {
		if t.depth == 0 {
			switch t.upper {
			case "RETURNING", "ORDER", "LIMIT", "GROUP":
				return strings.TrimSpace(b.String())
			}
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}

	return strings.TrimSpace(b.String())
}

// tokenize splits a statement into tokens, eliding comments and replacing
// string literals with a placeholder so keyword scanning never matches text
// inside quotes.
func tokenize(stmt string) []token {
	var (
		toks  []token
		depth int
	)

	emit := func(text string, d int) {
		toks = append(toks, token{text: text, upper: strings.ToUpper(text), depth: d})
	}

	i := 0
	for i < len(stmt) {
		c := stmt[i]
		switch {
		case strings.HasPrefix(stmt[i:], "--"):
			end := strings.IndexByte(stmt[i:], '\n')
			if end < 0 {
				end = len(stmt) - i
			}
			i += end

		case strings.HasPrefix(stmt[i:], "/*"):
			end := strings.Index(stmt[i:], "*/")
			if end < 0 {
				end = len(stmt) - i
			} else {
				end += 2
			}
			i += end

		case c == '\'':
			n := scanQuoted(stmt[i:], '\'')
			emit(stmt[i:i+n], depth)
			i += n

		case c == '"':
			n := scanQuoted(stmt[i:], '"')
			emit(stmt[i:i+n], depth)
			i += n

		case c == '$':
			n := scanDollarQuoted(stmt[i:])
			emit(stmt[i:i+n], depth)
			i += n

		case c == '(':
			depth++
			emit("(", depth)
			i++

		case c == ')':
			emit(")", depth)
			if depth > 0 {
				depth--
			}
			i++

		case isWordByte(c):
			j := i
			for j < len(stmt) && isWordByte(stmt[j]) {
				j++
			}
			emit(stmt[i:j], depth)
			i = j

		case unicode.IsSpace(rune(c)):
			i++

		default:
			emit(string(c), depth)
			i++
		}
	}

	return toks
}

// scanQuoted returns the length of a quoted region starting at s[0]==quote,
// treating doubled quote characters as escapes.
func scanQuoted(s string, quote byte) int {
	i := 1
	for i < len(s) {
		if s[i] == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}

	return len(s)
}

// scanDollarQuoted returns the length of a dollar-quoted region ($tag$...$tag$)
// starting at s[0]=='$'. If no valid opening tag is present, 1 is returned so
// the caller consumes the '$' as an ordinary character.
func scanDollarQuoted(s string) int {
	end := strings.IndexByte(s[1:], '$')
	if end < 0 {
		return 1
	}

	tag := s[:end+2]
	for _, r := range tag[1 : len(tag)-1] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return 1
		}
	}

	close := strings.Index(s[len(tag):], tag)
	if close < 0 {
		return len(s)
	}

	return len(tag) + close + len(tag)
}

func isModifier(upper string) bool {
	switch upper {
	case "IF", "NOT", "EXISTS", "ONLY", "CONCURRENTLY":
		return true
	}

	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isIdentToken(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '"' {
		return true
	}
	c := s[0]

	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func commentOnly(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}

	return true
}
