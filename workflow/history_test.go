package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstream/shipstream/pkg/logger"
	"github.com/shipstream/shipstream/txn"
)

func Test_History(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lggr := logger.Test(t)

	committedTxn := func(t *testing.T, id string) *txn.Transaction {
		t.Helper()

		tx := txn.New("record me", lggr, txn.WithID(id))
		require.NoError(t, tx.AddOperation(txn.NewOperation("noop", txn.KindConfiguration, "no-op",
			func(context.Context) error { return nil },
			func(context.Context) error { return nil },
		)))
		require.NoError(t, tx.Prepare(ctx))
		require.NoError(t, tx.Execute(ctx))

		return tx
	}

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		h, err := NewHistory(t.TempDir())
		require.NoError(t, err)

		tx := committedTxn(t, "txn-1")
		require.NoError(t, h.Save(tx))

		rec, err := h.Load("txn-1")
		require.NoError(t, err)
		assert.Equal(t, "txn-1", rec.ID)
		assert.Equal(t, "record me", rec.Description)
		assert.Equal(t, txn.StateCommitted.String(), rec.State)
		assert.Equal(t, 1, rec.Metrics.Succeeded)
		assert.NotEmpty(t, rec.AuditTrail)
		assert.Empty(t, rec.Error)
	})

	t.Run("live transaction is rejected", func(t *testing.T) {
		t.Parallel()

		h, err := NewHistory(t.TempDir())
		require.NoError(t, err)

		tx := txn.New("still running", lggr)

		require.ErrorContains(t, h.Save(tx), "only terminal transactions")
	})

	t.Run("list returns every record", func(t *testing.T) {
		t.Parallel()

		h, err := NewHistory(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, h.Save(committedTxn(t, "txn-a")))
		require.NoError(t, h.Save(committedTxn(t, "txn-b")))

		records, err := h.List()
		require.NoError(t, err)
		require.Len(t, records, 2)

		ids := []string{records[0].ID, records[1].ID}
		assert.ElementsMatch(t, []string{"txn-a", "txn-b"}, ids)
	})

	t.Run("missing record", func(t *testing.T) {
		t.Parallel()

		h, err := NewHistory(t.TempDir())
		require.NoError(t, err)

		_, err = h.Load("nope")
		require.ErrorContains(t, err, "read history record")
	})
}
