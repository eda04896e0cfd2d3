package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/confiture/confiture/pkg/copyconv"
	"github.com/pkg/errors"
)

// Conversion renders a COPY conversion report in the selected format.
func Conversion(w io.Writer, f Format, report *copyconv.ConversionReport) error {
	switch f {
	case JSON:
		return writeJSON(w, report)
	case CSV:
		return conversionCSV(w, report)
	default:
		return conversionText(w, report)
	}
}

func conversionText(w io.Writer, report *copyconv.ConversionReport) error {
	fmt.Fprintf(w, "COPY conversion: %d statements, %d converted, %d fallback\n",
		report.TotalStatements, report.Converted, report.Fallback)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tFORMAT\tROWS\tEST MS\tSELECTED\tSTATEMENT")
	for i, r := range report.Results {
		loadFormat, estimate, selected := "-", "-", "-"
		if r.Reason != "" {
			selected = string(r.Reason)
		}
		if i < len(report.Batches) {
			b := report.Batches[i]
			loadFormat = string(b.Format)
			estimate = strconv.FormatFloat(b.EstimatedLoadTimeMS, 'f', 1, 64)
			selected = b.SelectedBecause
		}

		fmt.Fprintf(tw, "  %d\t%s\t%d\t%s\t%s\t%s\n",
			i+1, loadFormat, r.RowsConverted, estimate, selected, truncate(r.Statement, 60))
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush conversion table")
	}

	fmt.Fprintln(w)

	return nil
}

func conversionCSV(w io.Writer, report *copyconv.ConversionReport) error {
	cw := csv.NewWriter(w)
	header := []string{"statement", "convertible", "rows_converted", "reason",
		"format", "estimated_load_time_ms", "selected_because"}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for i, r := range report.Results {
		loadFormat, estimate, selected := "", "", ""
		if i < len(report.Batches) {
			b := report.Batches[i]
			loadFormat = string(b.Format)
			estimate = strconv.FormatFloat(b.EstimatedLoadTimeMS, 'f', 1, 64)
			selected = b.SelectedBecause
		}

		row := []string{
			r.Statement,
			strconv.FormatBool(r.Convertible),
			strconv.Itoa(r.RowsConverted),
			string(r.Reason),
			loadFormat,
			estimate,
			selected,
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}

	cw.Flush()

	return errors.Wrap(cw.Error(), "failed to flush CSV output")
}
