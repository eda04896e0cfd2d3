package format_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/confiture/confiture/pkg/analyzer"
	"github.com/confiture/confiture/pkg/executor"
	. "github.com/confiture/confiture/pkg/format"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func sampleReports() []*analyzer.Report {
	execMS := 12.3
	rows := int64(1)

	return []*analyzer.Report{{
		MigrationID:          "001_create_users",
		StatementsAnalyzed:   2,
		UnsafeCount:          1,
		HasUnsafeStatements:  true,
		TotalEstimatedTimeMS: 110,
		TotalEstimatedDiskMB: 5.5,
		Warnings:             []string{"unsafe statement: DROP TABLE users (destructive DDL)"},
		Analyses: []analyzer.StatementAnalysis{
			{
				Statement:      "INSERT INTO users (id) VALUES (1)",
				Classification: analyzer.Safe,
				Concurrency:    &analyzer.Concurrency{LockMode: analyzer.RowLock, RiskLevel: analyzer.RiskLow},
				Cost:           &analyzer.Cost{EstimatedDurationMS: 10, EstimatedDiskUsageMB: 0.5, EstimatedCPUPercent: 25},
				ExecutionTimeMS: &execMS,
				RowsAffected:    &rows,
			},
			{
				Statement:      "DROP TABLE users",
				Classification: analyzer.Unsafe,
				Note:           "destructive DDL",
				Concurrency:    &analyzer.Concurrency{LockMode: analyzer.ExclusiveLock, RiskLevel: analyzer.RiskHigh},
				Cost:           &analyzer.Cost{EstimatedDurationMS: 100, EstimatedDiskUsageMB: 5, EstimatedCPUPercent: 15},
			},
		},
	}}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: Text},
		{in: "text", want: Text},
		{in: "JSON", want: JSON},
		{in: "csv", want: CSV},
		{in: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestReports(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Reports(&buf, Text, sampleReports()))
		golden.Assert(t, buf.String(), "report.txt")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Reports(&buf, CSV, sampleReports()))
		golden.Assert(t, buf.String(), "report.csv")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Reports(&buf, JSON, sampleReports()))

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 1)
		require.Equal(t, "001_create_users", decoded[0]["migration_id"])
	})
}

func TestStatus(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entries := []executor.StatusEntry{
		{Version: "001", Name: "create_users", Applied: true, AppliedAt: &at},
		{Version: "002", Name: "add_email"},
		{Version: "003", Name: "ghost", Applied: true, AppliedAt: &at, Missing: true},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Status(&buf, Text, entries))
		golden.Assert(t, buf.String(), "status.txt")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Status(&buf, CSV, entries))
		golden.Assert(t, buf.String(), "status.csv")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Status(&buf, JSON, entries))

		var decoded []executor.StatusEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Equal(t, entries[0].Version, decoded[0].Version)
	})
}

func TestDiffState(t *testing.T) {
	diff := &executor.Diff{
		Pending: []string{"002_add_email"},
		Drifted: []string{"001_create_users"},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, DiffState(&buf, Text, diff))
		require.Contains(t, buf.String(), "pending: 002_add_email")
		require.Contains(t, buf.String(), "drifted: 001_create_users")
	})

	t.Run("text_in_sync", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, DiffState(&buf, Text, &executor.Diff{}))
		require.Contains(t, buf.String(), "in sync")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, DiffState(&buf, CSV, diff))
		require.Equal(t, "state,migration\npending,002_add_email\ndrifted,001_create_users\n", buf.String())
	})
}

func TestRun(t *testing.T) {
	run := &executor.RunResult{
		Applied: 1,
		Failed:  1,
		Units: []*executor.UnitResult{
			{Unit: "001_create_users", Status: executor.UnitSuccess, StatementsApplied: 2, TotalStatements: 2, Duration: 20 * time.Millisecond},
			{Unit: "002_add_email", Status: executor.UnitFailed, TotalStatements: 1, Error: "boom"},
		},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Run(&buf, Text, run))
		require.Contains(t, buf.String(), "001_create_users")
		require.Contains(t, buf.String(), "1 applied, 1 failed")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Run(&buf, CSV, run))
		require.Contains(t, buf.String(), "001_create_users,success,2,2,0,20.00,\n")
		require.Contains(t, buf.String(), "002_add_email,failed,0,1,0,0.00,boom\n")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Run(&buf, JSON, run))

		var decoded executor.RunResult
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Equal(t, 1, decoded.Applied)
	})
}
