package txn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EnvCapturer_AllowList(t *testing.T) {
	t.Setenv("SHIPSTREAM_TEST_ALLOWED", "yes")
	t.Setenv("SHIPSTREAM_TEST_SECRET", "hunter2")

	capturer := &EnvCapturer{
		Dir:       "/work/repo",
		AllowList: []string{"SHIPSTREAM_TEST_ALLOWED", "SHIPSTREAM_TEST_UNSET"},
	}

	snap, err := capturer.Capture(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "/work/repo", snap.WorkingDirectory)
	assert.Equal(t, map[string]string{"SHIPSTREAM_TEST_ALLOWED": "yes"}, snap.Environment,
		"only allow-listed and set variables are captured")
	assert.False(t, snap.Timestamp.IsZero())
}

func Test_EnvCapturer_DefaultsToProcessDir(t *testing.T) {
	t.Parallel()

	capturer := &EnvCapturer{}

	snap, err := capturer.Capture(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, snap.WorkingDirectory)
}

func Test_Snapshot_Summary(t *testing.T) {
	t.Parallel()

	snap := &Snapshot{
		Timestamp:        time.Now(),
		WorkingDirectory: "/work/repo",
		CurrentReference: "main",
		PendingChanges:   "2 files changed",
		Environment:      map[string]string{"B": "2", "A": "1"},
	}

	summary := snap.Summary()

	assert.Contains(t, summary, "ref=main")
	assert.Contains(t, summary, `pending="2 files changed"`)
	assert.Contains(t, summary, "A=1 B=2", "environment keys are sorted for determinism")
}

func Test_Snapshot_Summary_Nil(t *testing.T) {
	t.Parallel()

	var snap *Snapshot
	assert.Equal(t, "<no snapshot>", snap.Summary())
}
