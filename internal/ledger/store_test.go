package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/resultsync/internal/models"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{
			name:   "creates database successfully",
			dbPath: filepath.Join(t.TempDir(), "ledger.db"),
		},
		{
			name:   "handles in-memory database",
			dbPath: ":memory:",
		},
		{
			name:   "creates parent directories if needed",
			dbPath: filepath.Join(t.TempDir(), "nested", "dir", "ledger.db"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			var version int
			require.NoError(t, store.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
			assert.Equal(t, schemaVersion, version)
			assert.Equal(t, tt.dbPath, store.Path())
		})
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, &models.ExportSummary{PageID: "42", ExportedAt: time.Now()}))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecordAndList(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	first := &models.ExportSummary{
		PageID:       "42",
		PageTitle:    "Results",
		SourceFile:   "2024-03-05 09-00-00 smoke.csv",
		Created:      2,
		Updated:      3,
		Skipped:      1,
		Requirements: 4,
		Initialized:  true,
		Duration:     1500 * time.Millisecond,
		ExportedAt:   base,
	}
	require.NoError(t, store.Record(ctx, first))
	assert.NotEmpty(t, first.RunID, "a run id is assigned")

	require.NoError(t, store.Record(ctx, &models.ExportSummary{RunID: "fixed", PageID: "42", Updated: 5, ExportedAt: base.Add(time.Hour)}))
	require.NoError(t, store.Record(ctx, &models.ExportSummary{PageID: "43", ExportedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, store.Record(ctx, &models.ExportSummary{PageID: "42", DryRun: true, ExportedAt: base.Add(3 * time.Hour)}))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3, "dry runs are hidden by default")
	assert.Equal(t, "43", all[0].PageID, "newest first")

	page, err := store.List(ctx, Filter{PageID: "42"})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "fixed", page[0].RunID)

	got := page[1]
	assert.Equal(t, first.RunID, got.RunID)
	assert.Equal(t, "Results", got.PageTitle)
	assert.Equal(t, first.SourceFile, got.SourceFile)
	assert.Equal(t, 2, got.Created)
	assert.Equal(t, 3, got.Updated)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 4, got.Requirements)
	assert.True(t, got.Initialized)
	assert.False(t, got.DryRun)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, base.Equal(got.ExportedAt))

	limited, err := store.List(ctx, Filter{Limit: 1, IncludeDryRuns: true})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.True(t, limited[0].DryRun)
}

func TestRecordDuplicateRunID(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, &models.ExportSummary{RunID: "same", PageID: "1"}))
	assert.Error(t, store.Record(ctx, &models.ExportSummary{RunID: "same", PageID: "1"}))
}
