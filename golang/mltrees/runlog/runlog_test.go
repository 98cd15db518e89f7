package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, log.Close()) }()

	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, kind := range []string{"dtrees", "boost", "rtrees"} {
		require.NoError(t, log.Record(ctx, Run{
			ModelKind:  kind,
			ModelFile:  kind + ".json",
			Samples:    100 * (i + 1),
			Trees:      i + 1,
			Nodes:      7,
			TrainError: 0.5,
			TestError:  1.5,
			Duration:   1500 * time.Millisecond,
			TrainedAt:  start.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "rtrees", runs[0].ModelKind)
	assert.Equal(t, "boost", runs[1].ModelKind)
	assert.Equal(t, 300, runs[0].Samples)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.True(t, runs[0].TrainedAt.Equal(start.Add(2*time.Hour)))
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Record(context.Background(), Run{ModelKind: "dtrees", ModelFile: "tree.json"}))
	require.NoError(t, log.Close())

	log, err = Open(path)
	require.NoError(t, err)
	defer log.Close()
	runs, err := log.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].TrainedAt.IsZero())
}
