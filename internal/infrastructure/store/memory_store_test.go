package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/product"
	"github.com/example/ec-reservation/internal/outbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStock(t *testing.T, s *MemoryStore, qty int) *inventory.StockItem {
	t.Helper()
	p, err := product.New("Keyboard", decimal.RequireFromString("49.99"))
	require.NoError(t, err)
	si, err := inventory.NewStockItem(p.ID, qty)
	require.NoError(t, err)
	require.NoError(t, s.Do(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.SaveProduct(ctx, p); err != nil {
			return err
		}
		return tx.SaveStockItem(ctx, si)
	}))
	return si
}

// ============================================
// Unit of Work Tests
// ============================================

func TestMemoryStore_CommitPublishesWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	si := seedStock(t, s, 10)

	err := s.Do(ctx, func(ctx context.Context, tx Tx) error {
		item, err := tx.GetStockItem(ctx, si.ProductID)
		if err != nil {
			return err
		}
		if err := item.Reserve(4); err != nil {
			return err
		}
		return tx.SaveStockItem(ctx, item)
	})
	require.NoError(t, err)

	got, err := s.FindStockItem(ctx, si.ProductID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.ReservedQuantity)
	assert.Equal(t, 6, got.AvailableQuantity)
}

func TestMemoryStore_ErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	si := seedStock(t, s, 10)
	boom := errors.New("boom")

	err := s.Do(ctx, func(ctx context.Context, tx Tx) error {
		item, _ := tx.GetStockItem(ctx, si.ProductID)
		_ = item.Reserve(4)
		_ = tx.SaveStockItem(ctx, item)
		_ = tx.AppendOutbox(ctx, outbox.Message{ID: "m1"})
		return boom
	})

	assert.ErrorIs(t, err, boom)
	got, _ := s.FindStockItem(ctx, si.ProductID)
	assert.Equal(t, *si, *got)
	assert.Empty(t, s.OutboxMessages())
}

func TestMemoryStore_FailNextCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.FailNextCommit()

	err := s.Do(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SaveCart(ctx, cart.New("user-1"))
	})
	assert.ErrorIs(t, err, ErrCommitAborted)
	_, err = s.FindCart(ctx, "user-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// only the next commit is affected
	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SaveCart(ctx, cart.New("user-1"))
	}))
	_, err = s.FindCart(ctx, "user-1")
	assert.NoError(t, err)
}

func TestMemoryStore_CancelledBeforeCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()

	err := s.Do(ctx, func(ctx context.Context, tx Tx) error {
		_ = tx.SaveCart(ctx, cart.New("user-1"))
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.FindCart(context.Background(), "user-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryStore_GettersReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx Tx) error {
		c := cart.New("user-1")
		_, _ = c.AddItem("prod-1", "Keyboard", 1)
		return tx.SaveCart(ctx, c)
	}))

	_ = s.Do(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.GetCart(ctx, "user-1")
		require.NoError(t, err)
		c.Clear()
		return nil
	})

	c, err := s.FindCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
}

func TestMemoryStore_NotFoundMessages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.Do(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.GetProduct(ctx, "prod-9")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Equal(t, "Product with ID prod-9 not found.", err.Error())
		_, err = tx.GetStockItem(ctx, "prod-9")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = tx.GetOrder(ctx, "order-9")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		return nil
	})
}

// ============================================
// Outbox Repository Tests
// ============================================

func TestMemoryStore_OutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now().UTC()
	require.NoError(t, s.Do(ctx, func(ctx context.Context, tx Tx) error {
		_ = tx.AppendOutbox(ctx, outbox.Message{ID: "b", QueueName: outbox.QueueCart, CreatedAt: base.Add(time.Second)})
		return tx.AppendOutbox(ctx, outbox.Message{ID: "a", QueueName: outbox.QueueCart, CreatedAt: base})
	}))

	pending, err := s.Pending(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)

	require.NoError(t, s.MarkProcessed(ctx, "a", base))
	for i := 0; i < 3; i++ {
		_, err := s.MarkFailed(ctx, "b", "timeout")
		require.NoError(t, err)
	}

	pending, _ = s.Pending(ctx, 10, 3)
	assert.Empty(t, pending)
	stats, _ := s.Stats(ctx, 3)
	assert.Equal(t, outbox.Stats{Processed: 1, DeadLettered: 1}, stats)
	dead, _ := s.DeadLettered(ctx, 3, 10)
	require.Len(t, dead, 1)
	assert.Equal(t, "timeout", *dead[0].LastError)

	n, err := s.PruneProcessed(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, s.OutboxMessages(), 1)

	assert.ErrorIs(t, s.MarkProcessed(ctx, "zzz", base), apperr.ErrNotFound)
}
