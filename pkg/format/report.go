package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/confiture/confiture/pkg/analyzer"
	"github.com/pkg/errors"
)

// Reports renders one or more dry-run reports in the selected format.
func Reports(w io.Writer, f Format, reports []*analyzer.Report) error {
	switch f {
	case JSON:
		return writeJSON(w, reports)
	case CSV:
		return reportsCSV(w, reports)
	default:
		return reportsText(w, reports)
	}
}

func reportsText(w io.Writer, reports []*analyzer.Report) error {
	for _, report := range reports {
		fmt.Fprintf(w, "Migration %s: %d statements analyzed", report.MigrationID, report.StatementsAnalyzed)
		if report.UnsafeCount > 0 {
			fmt.Fprintf(w, ", %d UNSAFE", report.UnsafeCount)
		}
		fmt.Fprintf(w, "\n  estimated: %.1fms, %.1fMB disk\n", report.TotalEstimatedTimeMS, report.TotalEstimatedDiskMB)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tCLASS\tLOCK\tRISK\tEST MS\tEXEC MS\tSTATEMENT")
		for i, a := range report.Analyses {
			lock, risk := "-", "-"
			if a.Concurrency != nil {
				lock, risk = string(a.Concurrency.LockMode), string(a.Concurrency.RiskLevel)
			}
			estMS := "-"
			if a.Cost != nil {
				estMS = fmt.Sprintf("%.1f", a.Cost.EstimatedDurationMS)
			}
			execMS := "-"
			if a.ExecutionTimeMS != nil {
				execMS = fmt.Sprintf("%.1f", *a.ExecutionTimeMS)
			}

			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				i+1, a.Classification, lock, risk, estMS, execMS, truncate(a.Statement, 60))
		}
		if err := tw.Flush(); err != nil {
			return errors.Wrap(err, "failed to flush report table")
		}

		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func reportsCSV(w io.Writer, reports []*analyzer.Report) error {
	cw := csv.NewWriter(w)
	header := []string{
		"migration_id", "statement", "classification", "lock_mode", "risk_level",
		"estimated_duration_ms", "estimated_disk_mb", "estimated_cpu_percent",
		"is_expensive", "execution_time_ms", "rows_affected", "error",
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for _, report := range reports {
		for _, a := range report.Analyses {
			row := []string{report.MigrationID, a.Statement, string(a.Classification)}

			if a.Concurrency != nil {
				row = append(row, string(a.Concurrency.LockMode), string(a.Concurrency.RiskLevel))
			} else {
				row = append(row, "", "")
			}

			if a.Cost != nil {
				row = append(row,
					strconv.FormatFloat(a.Cost.EstimatedDurationMS, 'f', 2, 64),
					strconv.FormatFloat(a.Cost.EstimatedDiskUsageMB, 'f', 2, 64),
					strconv.FormatFloat(a.Cost.EstimatedCPUPercent, 'f', 2, 64),
					strconv.FormatBool(a.Cost.IsExpensive),
				)
			} else {
				row = append(row, "", "", "", "")
			}

			if a.ExecutionTimeMS != nil {
				row = append(row, strconv.FormatFloat(*a.ExecutionTimeMS, 'f', 2, 64))
			} else {
				row = append(row, "")
			}
			if a.RowsAffected != nil {
				row = append(row, strconv.FormatInt(*a.RowsAffected, 10))
			} else {
				row = append(row, "")
			}
			row = append(row, a.Err)

			if err := cw.Write(row); err != nil {
				return errors.Wrap(err, "failed to write CSV row")
			}
		}
	}

	cw.Flush()

	return errors.Wrap(cw.Error(), "failed to flush CSV output")
}
