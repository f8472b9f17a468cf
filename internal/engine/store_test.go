package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admitcast/internal/models"
)

func newTestItem(id string, recipientID int) models.QueueItem {
	return models.QueueItem{
		ID:             id,
		RecipientID:    recipientID,
		DisplayName:    fmt.Sprintf("Student %d", recipientID),
		RawPhone:       "9876543210",
		CanonicalPhone: "919876543210",
		FinalMessage:   fmt.Sprintf("Hello student %d", recipientID),
		MessageHash:    fmt.Sprintf("hash-%s", id),
	}
}

func TestStore_EnqueuePreservesOrder(t *testing.T) {
	store := NewStore()

	for i := 1; i <= 3; i++ {
		item := newTestItem(fmt.Sprintf("item-%d", i), i)
		require.NoError(t, store.Enqueue(item))
	}

	now := time.Now()
	for i := 1; i <= 3; i++ {
		popped, ok := store.PopEligible(now)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("item-%d", i), popped.ID)
	}

	_, ok := store.PopEligible(now)
	assert.False(t, ok)
}

func TestStore_EnqueueRejectsDuplicateHash(t *testing.T) {
	store := NewStore()

	first := newTestItem("item-1", 1)
	second := newTestItem("item-2", 2)
	second.MessageHash = first.MessageHash

	require.NoError(t, store.Enqueue(first))
	err := store.Enqueue(second)
	assert.ErrorIs(t, err, ErrDuplicateItem)

	stats := store.Stats()
	assert.Equal(t, 1, stats.Total)
}

func TestStore_PopEligibleSkipsBackedOffItems(t *testing.T) {
	store := NewStore()
	now := time.Now()

	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))
	require.NoError(t, store.Enqueue(newTestItem("item-2", 2)))

	// Put item-1 through a failed attempt so it is requeued with a
	// backoff gate in the future.
	first, ok := store.PopEligible(now)
	require.True(t, ok)
	require.NoError(t, store.MarkSending(first.ID))
	require.NoError(t, store.Requeue(first.ID, "timeout", now.Add(4*time.Second)))

	// item-2 is eligible right away; item-1 must wait out its backoff.
	popped, ok := store.PopEligible(now)
	require.True(t, ok)
	assert.Equal(t, "item-2", popped.ID)

	_, ok = store.PopEligible(now)
	assert.False(t, ok)

	popped, ok = store.PopEligible(now.Add(5 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "item-1", popped.ID)
}

func TestStore_NextEligibleAt(t *testing.T) {
	store := NewStore()
	now := time.Now()

	_, found := store.NextEligibleAt()
	assert.False(t, found)

	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))
	item, ok := store.PopEligible(now)
	require.True(t, ok)
	require.NoError(t, store.MarkSending(item.ID))

	gate := now.Add(8 * time.Second)
	require.NoError(t, store.Requeue(item.ID, "timeout", gate))

	earliest, found := store.NextEligibleAt()
	require.True(t, found)
	assert.Equal(t, gate, earliest)
}

func TestStore_SendLifecycle(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))

	require.NoError(t, store.MarkSending("item-1"))
	snapshot, ok := store.Item("item-1")
	require.True(t, ok)
	assert.Equal(t, models.ItemStatusSending, snapshot.Status)
	assert.Equal(t, 1, snapshot.Attempts)

	require.NoError(t, store.MarkSent("item-1"))
	snapshot, _ = store.Item("item-1")
	assert.Equal(t, models.ItemStatusSent, snapshot.Status)
	assert.Empty(t, snapshot.Error)
}

func TestStore_MarkFailedRecordsError(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))
	require.NoError(t, store.MarkSending("item-1"))
	require.NoError(t, store.MarkFailed("item-1", "recipient unreachable"))

	snapshot, ok := store.Item("item-1")
	require.True(t, ok)
	assert.Equal(t, models.ItemStatusFailed, snapshot.Status)
	assert.Equal(t, "recipient unreachable", snapshot.Error)
}

func TestStore_TransitionErrors(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))

	assert.ErrorIs(t, store.MarkSending("missing"), ErrUnknownItem)
	assert.ErrorIs(t, store.MarkSent("item-1"), ErrBadTransition)

	require.NoError(t, store.MarkSending("item-1"))
	assert.ErrorIs(t, store.MarkSending("item-1"), ErrItemNotQueued)
}

func TestStore_RequeueGoesToBack(t *testing.T) {
	store := NewStore()
	now := time.Now()

	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))
	require.NoError(t, store.Enqueue(newTestItem("item-2", 2)))

	first, ok := store.PopEligible(now)
	require.True(t, ok)
	require.Equal(t, "item-1", first.ID)
	require.NoError(t, store.MarkSending(first.ID))
	require.NoError(t, store.Requeue(first.ID, "timeout", now))

	// item-2 was never touched and keeps its place at the head.
	popped, ok := store.PopEligible(now)
	require.True(t, ok)
	assert.Equal(t, "item-2", popped.ID)

	popped, ok = store.PopEligible(now)
	require.True(t, ok)
	assert.Equal(t, "item-1", popped.ID)
	assert.Equal(t, 1, popped.Attempts)
}

func TestStore_MarkSkipped(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))
	require.NoError(t, store.Enqueue(newTestItem("item-2", 2)))

	skipped, err := store.MarkSkipped("item-1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusSkipped, skipped.Status)

	// A skipped item leaves the dispatch queue entirely.
	popped, ok := store.PopEligible(time.Now())
	require.True(t, ok)
	assert.Equal(t, "item-2", popped.ID)

	_, err = store.MarkSkipped("missing")
	assert.ErrorIs(t, err, ErrUnknownItem)

	_, err = store.MarkSkipped("item-1")
	assert.ErrorIs(t, err, ErrItemNotQueued)
}

func TestStore_CancelRemaining(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))
	require.NoError(t, store.Enqueue(newTestItem("item-2", 2)))
	require.NoError(t, store.Enqueue(newTestItem("item-3", 3)))

	item, ok := store.PopEligible(time.Now())
	require.True(t, ok)
	require.NoError(t, store.MarkSending(item.ID))
	require.NoError(t, store.MarkSent(item.ID))

	cancelled := store.CancelRemaining()
	require.Len(t, cancelled, 2)
	assert.Equal(t, "item-2", cancelled[0].ID)
	assert.Equal(t, "item-3", cancelled[1].ID)

	assert.Zero(t, store.QueuedCount())

	stats := store.Stats()
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 2, stats.Cancelled)
	assert.Equal(t, 3, stats.Processed)
	assert.Zero(t, stats.Remaining)
}

func TestStore_StatsInvariants(t *testing.T) {
	store := NewStore()
	now := time.Now()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Enqueue(newTestItem(fmt.Sprintf("item-%d", i), i)))
	}

	// item-1 sent, item-2 failed, item-3 skipped, item-4/5 still queued.
	item, _ := store.PopEligible(now)
	require.NoError(t, store.MarkSending(item.ID))
	require.NoError(t, store.MarkSent(item.ID))

	item, _ = store.PopEligible(now)
	require.NoError(t, store.MarkSending(item.ID))
	require.NoError(t, store.MarkFailed(item.ID, "bounced"))

	_, err := store.MarkSkipped("item-3")
	require.NoError(t, err)

	stats := store.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Cancelled)
	assert.Equal(t, stats.Sent+stats.Failed+stats.Skipped+stats.Cancelled, stats.Processed)
	assert.Equal(t, stats.Total-stats.Processed, stats.Remaining)

	// Stats is a pure fold: calling it again changes nothing.
	assert.Equal(t, stats, store.Stats())
}

func TestStore_Reset(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))
	store.SetState(models.BroadcastCompleted)

	store.Reset()

	assert.Equal(t, models.BroadcastIdle, store.State())
	assert.Zero(t, store.Stats().Total)
	assert.Zero(t, store.QueuedCount())

	// Hashes from the previous run no longer block re-enqueueing.
	assert.NoError(t, store.Enqueue(newTestItem("item-1", 1)))
}

func TestStore_RestoreReturnsUnprocessedItem(t *testing.T) {
	store := NewStore()
	now := time.Now()
	require.NoError(t, store.Enqueue(newTestItem("item-1", 1)))

	item, ok := store.PopEligible(now)
	require.True(t, ok)
	require.Zero(t, store.QueuedCount())

	store.Restore(item.ID)
	assert.Equal(t, 1, store.QueuedCount())

	popped, ok := store.PopEligible(now)
	require.True(t, ok)
	assert.Equal(t, "item-1", popped.ID)
	assert.Zero(t, popped.Attempts)
}
