package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/confiture/confiture/pkg/executor"
	"github.com/pkg/errors"
)

// Status renders migration status entries in the selected format.
func Status(w io.Writer, f Format, entries []executor.StatusEntry) error {
	switch f {
	case JSON:
		return writeJSON(w, entries)
	case CSV:
		return statusCSV(w, entries)
	default:
		return statusText(w, entries)
	}
}

func statusText(w io.Writer, entries []executor.StatusEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE\tAPPLIED AT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Version, e.Name, statusState(e), appliedAt(e.AppliedAt))
	}

	return errors.Wrap(tw.Flush(), "failed to flush status table")
}

func statusCSV(w io.Writer, entries []executor.StatusEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"version", "name", "applied", "applied_at", "drifted", "missing"}); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for _, e := range entries {
		row := []string{
			e.Version,
			e.Name,
			strconv.FormatBool(e.Applied),
			appliedAt(e.AppliedAt),
			strconv.FormatBool(e.Drifted),
			strconv.FormatBool(e.Missing),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}

	cw.Flush()

	return errors.Wrap(cw.Error(), "failed to flush CSV output")
}

// DiffState renders a pending/missing/drifted summary.
func DiffState(w io.Writer, f Format, diff *executor.Diff) error {
	switch f {
	case JSON:
		return writeJSON(w, diff)
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"state", "migration"}); err != nil {
			return errors.Wrap(err, "failed to write CSV header")
		}
		for _, group := range []struct {
			state string
			ids   []string
		}{
			{"pending", diff.Pending},
			{"drifted", diff.Drifted},
			{"missing", diff.Missing},
		} {
			for _, id := range group.ids {
				if err := cw.Write([]string{group.state, id}); err != nil {
					return errors.Wrap(err, "failed to write CSV row")
				}
			}
		}
		cw.Flush()
		return errors.Wrap(cw.Error(), "failed to flush CSV output")
	default:
		if len(diff.Pending)+len(diff.Missing)+len(diff.Drifted) == 0 {
			fmt.Fprintln(w, "migrations are in sync")
			return nil
		}
		for _, id := range diff.Pending {
			fmt.Fprintf(w, "pending: %s\n", id)
		}
		for _, id := range diff.Drifted {
			fmt.Fprintf(w, "drifted: %s\n", id)
		}
		for _, id := range diff.Missing {
			fmt.Fprintf(w, "missing: %s\n", id)
		}
		return nil
	}
}

// Run renders the per-unit outcome of an executed run.
func Run(w io.Writer, f Format, run *executor.RunResult) error {
	switch f {
	case JSON:
		return writeJSON(w, run)
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"unit", "status", "statements_applied", "total_statements", "rows_copied", "duration_ms", "error"}); err != nil {
			return errors.Wrap(err, "failed to write CSV header")
		}
		for _, u := range run.Units {
			row := []string{
				u.Unit,
				string(u.Status),
				strconv.Itoa(u.StatementsApplied),
				strconv.Itoa(u.TotalStatements),
				strconv.FormatInt(u.RowsCopied, 10),
				strconv.FormatFloat(float64(u.Duration)/float64(time.Millisecond), 'f', 2, 64),
				u.Error,
			}
			if err := cw.Write(row); err != nil {
				return errors.Wrap(err, "failed to write CSV row")
			}
		}
		cw.Flush()
		return errors.Wrap(cw.Error(), "failed to flush CSV output")
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "UNIT\tSTATUS\tSTATEMENTS\tDURATION")
		for _, u := range run.Units {
			fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", u.Unit, u.Status, u.StatementsApplied, u.TotalStatements, u.Duration.Round(time.Millisecond))
		}
		if err := tw.Flush(); err != nil {
			return errors.Wrap(err, "failed to flush run table")
		}
		fmt.Fprintf(w, "%d applied, %d failed\n", run.Applied, run.Failed)
		return nil
	}
}

func statusState(e executor.StatusEntry) string {
	switch {
	case e.Missing:
		return "missing"
	case e.Drifted:
		return "drifted"
	case e.Applied:
		return "applied"
	}

	return "pending"
}

func appliedAt(t *time.Time) string {
	if t == nil {
		return "-"
	}

	return t.UTC().Format(time.RFC3339)
}
