// Package format renders engine output (dry-run reports, migration status,
// state diffs, run results) as human-readable text, JSON, or CSV.
package format

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Format selects the output encoding.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	CSV  Format = "csv"
)

// Parse resolves a --format flag value. The empty string means Text.
func Parse(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return Text, nil
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	}

	return "", errors.Errorf("unknown output format %q (want text, json, or csv)", s)
}

// writeJSON is the shared JSON encoder used by every renderer.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return errors.Wrap(enc.Encode(v), "failed to encode JSON output")
}

// truncate trims long statements for tabular output.
func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
