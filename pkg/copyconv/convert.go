package copyconv

import (
	"strings"

	"github.com/confiture/confiture/pkg/parser"
)

// Reason is a machine-readable code explaining why an INSERT statement could
// not be rewritten as a COPY bulk load.
type Reason string

const (
	ReasonNotInsert       Reason = "not_insert"
	ReasonHasCTE          Reason = "has_cte"
	ReasonHasSelectSource Reason = "has_select_source"
	ReasonHasOnConflict   Reason = "has_on_conflict"
	ReasonHasReturning    Reason = "has_returning"
	ReasonHasSubquery     Reason = "has_subquery"
	ReasonFunctionCall    Reason = "function_call_in_values"
	ReasonExpression      Reason = "expression_in_values"
	ReasonDefaultValue    Reason = "default_in_values"
	ReasonParseError      Reason = "parse_error"
)

type (
	// Payload is a COPY FROM STDIN bulk load: the target table, its column
	// list, and one pre-encoded COPY TEXT line per row.
	Payload struct {
		Table   string   `json:"table"`
		Columns []string `json:"columns"`
		Rows    []string `json:"rows"`
	}

	// Result is the outcome of a single conversion attempt. Statement always
	// holds the original SQL so callers can fall back to executing it when
	// Convertible is false.
	Result struct {
		Convertible   bool     `json:"convertible"`
		Statement     string   `json:"statement"`
		Payload       *Payload `json:"payload,omitempty"`
		Reason        Reason   `json:"reason,omitempty"`
		RowsConverted int      `json:"rows_converted"`
	}
)

// Convert attempts to rewrite a single INSERT ... VALUES statement as a COPY
// payload. It is a pure structural transform: the input statement is never
// modified, and a non-convertible statement is a normal outcome carrying a
// reason code, not an error.
//
// Example:
//
//	result := copyconv.Convert("INSERT INTO users (id, name) VALUES (1, 'Alice');")
//	if result.Convertible {
//	    fmt.Println(result.Payload.Rows[0]) // "1\tAlice"
//	}
func Convert(stmt string) Result {
	res := Result{Statement: stmt}

	shape := parser.ScanShape(stmt)
	switch {
	case shape.HasCTE:
		res.Reason = ReasonHasCTE
		return res
	case shape.Kind != parser.KindInsert:
		res.Reason = ReasonNotInsert
		return res
	case shape.HasSelectSource:
		res.Reason = ReasonHasSelectSource
		return res
	case shape.HasOnConflict:
		res.Reason = ReasonHasOnConflict
		return res
	case shape.HasReturning:
		res.Reason = ReasonHasReturning
		return res
	case shape.HasSubquery:
		res.Reason = ReasonHasSubquery
		return res
	}

	ast, err := parser.ParseInsert(stmt)
	if err != nil {
		res.Reason = ReasonParseError
		return res
	}

	columns := ast.ColumnNames()
	rows := make([]string, 0, len(ast.Rows))

	arity := len(columns)
	for _, row := range ast.Rows {
		if arity == 0 {
			arity = len(row.Values)
		}
		if len(row.Values) != arity {
			res.Reason = ReasonParseError
			return res
		}

		fields := make([]string, 0, len(row.Values))
		for _, expr := range row.Values {
			if reason, ok := nonLiteral(expr); !ok {
				res.Reason = reason
				return res
			}

			lit, null := expr.Left.Literal()
			fields = append(fields, EncodeField(lit, null))
		}
		rows = append(rows, strings.Join(fields, "\t"))
	}

	res.Convertible = true
	res.RowsConverted = len(rows)
	res.Payload = &Payload{
		Table:   ast.Table.Name(),
		Columns: columns,
		Rows:    rows,
	}

	return res
}

// nonLiteral reports whether the expression blocks conversion and with which
// reason. Function calls are reported ahead of the generic expression reason
// so that NOW() in an operator chain still surfaces as a function call.
func nonLiteral(expr *parser.Expr) (Reason, bool) {
	if expr.FindFunc() != nil {
		return ReasonFunctionCall, false
	}
	if !expr.IsLiteral() {
		return ReasonExpression, false
	}
	if expr.Left == nil {
		return ReasonParseError, false
	}
	if expr.Left.Default {
		// DEFAULT needs the table definition to resolve, which a pure
		// rewrite does not have.
		return ReasonDefaultValue, false
	}

	return "", true
}

// CopyStatement returns the COPY command that introduces this payload's rows
// on a wire protocol connection, e.g. `COPY users (id, name) FROM STDIN`.
func (p *Payload) CopyStatement() string {
	var b strings.Builder
	b.WriteString("COPY ")
	b.WriteString(p.Table)
	if len(p.Columns) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(p.Columns, ", "))
		b.WriteString(")")
	}
	b.WriteString(" FROM STDIN")

	return b.String()
}

// String renders the payload as a complete COPY block in psql script form,
// terminated by the \. end-of-data marker.
func (p *Payload) String() string {
	var b strings.Builder
	b.WriteString(p.CopyStatement())
	b.WriteString(";\n")
	for _, row := range p.Rows {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	b.WriteString(`\.`)

	return b.String()
}

// Records decodes the payload's rows back into driver-level values, with nil
// for NULL fields. This is the form pq.CopyIn expects.
func (p *Payload) Records() ([][]any, error) {
	records := make([][]any, 0, len(p.Rows))
	for _, row := range p.Rows {
		values, err := DecodeLine(row)
		if err != nil {
			return nil, err
		}
		records = append(records, values)
	}

	return records, nil
}
