package copyconv

import (
	"strings"

	"github.com/pkg/errors"
)

// NullField is the COPY TEXT encoding of SQL NULL.
const NullField = `\N`

// copyEscaper escapes the characters with special meaning in COPY TEXT
// fields. Backslash must be listed first conceptually; strings.Replacer
// applies replacements in a single pass, so ordering is safe here.
var copyEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
	"\b", `\b`,
	"\f", `\f`,
)

// EncodeField encodes a single scalar for a COPY TEXT field. null encodes
// as the two-character literal \N; all other values have backslash, tab,
// newline, carriage return, backspace, and form feed escaped.
func EncodeField(value string, null bool) string {
	if null {
		return NullField
	}

	return copyEscaper.Replace(value)
}

// EncodeLine encodes one row as a tab-delimited COPY TEXT line. nulls marks
// which positions are SQL NULL.
func EncodeLine(values []string, nulls []bool) string {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = EncodeField(v, len(nulls) > i && nulls[i])
	}

	return strings.Join(fields, "\t")
}

// DecodeLine splits a COPY TEXT line back into scalar values; nil elements
// are SQL NULL. It is the inverse of EncodeLine and is used when feeding
// rows to the driver's bulk-load interface.
func DecodeLine(line string) ([]any, error) {
	var out []any

	flush := func(raw string) {
		if raw == NullField {
			out = append(out, nil)
			return
		}
		out = append(out, unescapeField(raw))
	}

	start := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '\\':
			if i+1 >= len(line) {
				return nil, errors.Errorf("dangling escape at end of COPY line: %q", line)
			}
			i += 2
		case '\t':
			flush(line[start:i])
			i++
			start = i
		default:
			i++
		}
	}
	flush(line[start:])

	return out, nil
}

// unescapeField reverses EncodeField's escaping for a single field.
func unescapeField(raw string) string {
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))

	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			b.WriteByte(raw[i])
			continue
		}

		i++
		switch raw[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(raw[i])
		}
	}

	return b.String()
}
