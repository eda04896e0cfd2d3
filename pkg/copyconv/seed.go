package copyconv

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/confiture/confiture/pkg/parser"
	"github.com/pkg/errors"
)

type (
	// SeedFile is one on-disk seed script.
	SeedFile struct {
		Name string
		Path string
		SQL  string
	}

	// ConversionReport aggregates conversion outcomes across the statements
	// of one or more seed scripts. Batches, populated by AttachBatches, holds
	// the chosen load format and time estimate for each result, index-aligned
	// with Results.
	ConversionReport struct {
		TotalStatements int         `json:"total_statements"`
		Converted       int         `json:"converted"`
		Fallback        int         `json:"fallback"`
		Results         []Result    `json:"results"`
		Batches         []SeedBatch `json:"batches,omitempty"`
	}
)

// LoadSeedDir reads every .sql file directly under dir, sorted by filename so
// that seeds apply in a stable lexicographic order.
func LoadSeedDir(fsys fs.FS, dir string) ([]SeedFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read seed directory %q", dir)
	}

	var files []SeedFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		p := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read seed file %q", p)
		}

		files = append(files, SeedFile{
			Name: entry.Name(),
			Path: p,
			SQL:  string(data),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return files, nil
}

// AttachBatches runs every result through a batch builder with the given
// row-count threshold, recording the load format each statement would use and
// its estimated load time. The same builder decides the COPY-vs-VALUES path
// during execution, so the report reflects what a real run would do.
func (r *ConversionReport) AttachBatches(threshold int) {
	builder := NewSeedBatchBuilder(threshold)

	r.Batches = make([]SeedBatch, len(r.Results))
	for i, result := range r.Results {
		r.Batches[i] = builder.Build(result)
	}
}

// ConvertScript splits a seed script into statements and attempts COPY
// conversion on each, returning the per-statement results and counts.
func ConvertScript(script string) ConversionReport {
	var report ConversionReport

	for _, stmt := range parser.Split(script) {
		result := Convert(stmt)
		report.TotalStatements++
		if result.Convertible {
			report.Converted++
		} else {
			report.Fallback++
		}
		report.Results = append(report.Results, result)
	}

	return report
}
