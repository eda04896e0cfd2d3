package copyconv

import "fmt"

// BatchFormat selects how a seed batch is loaded.
type BatchFormat string

const (
	FormatCopy   BatchFormat = "COPY"
	FormatValues BatchFormat = "VALUES"
)

// Load time heuristics in milliseconds per thousand rows, used for the
// estimate surfaced in seed reports. COPY's streaming protocol is roughly an
// order of magnitude faster than multi-row VALUES.
const (
	copyTimePer1KRows   = 10
	valuesTimePer1KRows = 100
)

type (
	// SeedBatch is one table's worth of seed rows with the load format chosen
	// and a rough time estimate attached.
	SeedBatch struct {
		Table               string      `json:"table"`
		Format              BatchFormat `json:"format"`
		Payload             *Payload    `json:"payload,omitempty"`
		Statement           string      `json:"statement,omitempty"`
		RowCount            int         `json:"row_count"`
		SelectedBecause     string      `json:"selected_because"`
		EstimatedLoadTimeMS float64     `json:"estimated_load_time_ms"`
	}

	// SeedBatchBuilder chooses between COPY and VALUES per batch based on row
	// count. Small batches stay as plain INSERTs; batches above the threshold
	// are loaded through the COPY protocol.
	SeedBatchBuilder struct {
		threshold int
	}
)

// NewSeedBatchBuilder returns a builder using the given row-count threshold.
// A non-positive threshold falls back to 1000 rows.
func NewSeedBatchBuilder(threshold int) *SeedBatchBuilder {
	if threshold <= 0 {
		threshold = 1000
	}

	return &SeedBatchBuilder{threshold: threshold}
}

// Build turns a conversion result into a seed batch. Non-convertible results
// always load as VALUES (the original statement executes unchanged);
// convertible results load as COPY only when the row count exceeds the
// threshold.
func (b *SeedBatchBuilder) Build(result Result) SeedBatch {
	batch := SeedBatch{
		Statement: result.Statement,
		Format:    FormatValues,
	}

	if !result.Convertible {
		batch.SelectedBecause = fmt.Sprintf("not convertible (%s)", result.Reason)
		return batch
	}

	batch.Table = result.Payload.Table
	batch.RowCount = result.RowsConverted

	if result.RowsConverted > b.threshold {
		batch.Format = FormatCopy
		batch.Payload = result.Payload
		batch.SelectedBecause = fmt.Sprintf("large dataset (%d > %d rows)", result.RowsConverted, b.threshold)
	} else {
		batch.SelectedBecause = fmt.Sprintf("small dataset (%d <= %d rows)", result.RowsConverted, b.threshold)
	}

	batch.EstimatedLoadTimeMS = estimateLoadTime(batch.RowCount, batch.Format)

	return batch
}

// estimateLoadTime estimates load duration in milliseconds for a batch.
func estimateLoadTime(rows int, format BatchFormat) float64 {
	if rows == 0 {
		return 0
	}

	perK := float64(valuesTimePer1KRows)
	if format == FormatCopy {
		perK = copyTimePer1KRows
	}

	return float64(rows) / 1000 * perK
}
