package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstream/shipstream/pkg/logger"
)

func Test_Registry_CreateAndGet(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Test(t))

	tx := reg.Create("patch", WithID("tx-1"))

	got, ok := reg.Get("tx-1")
	require.True(t, ok)
	assert.Same(t, tx, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func Test_Registry_Active(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Test(t))

	live := reg.Create("live")
	done := reg.Create("done")
	require.NoError(t, done.Abort())

	active := reg.Active()
	require.Len(t, active, 1)
	assert.Same(t, live, active[0])
}

func Test_Registry_Dispose(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Test(t))

	tx := reg.Create("tx", WithID("tx-1"))

	err := reg.Dispose("tx-1")
	require.ErrorContains(t, err, "still Initializing")

	require.NoError(t, tx.Abort())
	require.NoError(t, reg.Dispose("tx-1"))

	_, ok := reg.Get("tx-1")
	assert.False(t, ok)

	require.ErrorContains(t, reg.Dispose("tx-1"), "not found")
}

func Test_Registry_IndependentTransactions(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Test(t))

	a := reg.Create("a")
	b := reg.Create("b")
	require.NoError(t, a.AddOperation(op("x")))
	require.NoError(t, a.Prepare(context.Background()))
	require.NoError(t, a.Execute(context.Background()))

	// One transaction reaching a terminal state leaves the other untouched.
	assert.Equal(t, StateCommitted, a.State())
	assert.Equal(t, StateInitializing, b.State())
	assert.Len(t, reg.List(), 2)
}
