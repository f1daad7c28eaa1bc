// ABOUTME: Tests for the optimistic outbox state machine.
// ABOUTME: Covers staging, confirmation, rollback-to-draft, and forward-only states.

package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_StageAndConfirm(t *testing.T) {
	outbox := NewOutbox()

	localID := outbox.Stage("batch 12 ready")
	require.NotEmpty(t, localID)

	snapshot := outbox.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, StateSending, snapshot[0].State)
	assert.Equal(t, "batch 12 ready", snapshot[0].Body)

	outbox.Confirm(localID, "msg-1")

	snapshot = outbox.Snapshot()
	assert.Equal(t, StateSent, snapshot[0].State)
	assert.Equal(t, "msg-1", snapshot[0].MessageID)
}

func TestOutbox_FailRestoresDraft(t *testing.T) {
	outbox := NewOutbox()

	localID := outbox.Stage("offer: 40 crates at spot price")
	draft := outbox.Fail(localID)

	assert.Equal(t, "offer: 40 crates at spot price", draft)
	assert.Empty(t, outbox.Snapshot(), "failed entry must disappear from the outbox")
}

func TestOutbox_FailAfterConfirmIsNoop(t *testing.T) {
	outbox := NewOutbox()

	localID := outbox.Stage("hello")
	outbox.Confirm(localID, "msg-1")

	assert.Equal(t, "", outbox.Fail(localID))
	require.Len(t, outbox.Snapshot(), 1)
}

func TestOutbox_FailUnknownID(t *testing.T) {
	outbox := NewOutbox()
	assert.Equal(t, "", outbox.Fail("no-such-id"))
}

func TestOutbox_StatesOnlyAdvance(t *testing.T) {
	outbox := NewOutbox()

	localID := outbox.Stage("hello")
	outbox.Confirm(localID, "msg-1")
	outbox.MarkRead("msg-1")

	// A late delivery acknowledgement must not regress read back to delivered
	outbox.MarkDelivered("msg-1")

	snapshot := outbox.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, StateRead, snapshot[0].State)
}

func TestOutbox_MarkDelivered(t *testing.T) {
	outbox := NewOutbox()

	localID := outbox.Stage("hello")
	outbox.Confirm(localID, "msg-1")
	outbox.MarkDelivered("msg-1")

	snapshot := outbox.Snapshot()
	assert.Equal(t, StateDelivered, snapshot[0].State)
}

func TestOutbox_MarkRead_OnlyNamedMessage(t *testing.T) {
	outbox := NewOutbox()

	confirmed := outbox.Stage("first")
	outbox.Confirm(confirmed, "msg-1")
	other := outbox.Stage("second")
	outbox.Confirm(other, "msg-2")
	outbox.Stage("still in flight")

	outbox.MarkRead("msg-1")

	snapshot := outbox.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, StateRead, snapshot[0].State)
	assert.Equal(t, StateSent, snapshot[1].State, "other entries keep their state")
	assert.Equal(t, StateSending, snapshot[2].State, "unconfirmed entries keep their state")
}

func TestOutbox_SnapshotKeepsStagingOrder(t *testing.T) {
	outbox := NewOutbox()

	outbox.Stage("one")
	outbox.Stage("two")
	outbox.Stage("three")

	snapshot := outbox.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "one", snapshot[0].Body)
	assert.Equal(t, "two", snapshot[1].Body)
	assert.Equal(t, "three", snapshot[2].Body)
}

func TestOutbox_Drop(t *testing.T) {
	outbox := NewOutbox()

	localID := outbox.Stage("hello")
	outbox.Confirm(localID, "msg-1")
	outbox.Drop(localID)

	assert.Empty(t, outbox.Snapshot())
}

func TestOutbox_ConcurrentUse(t *testing.T) {
	outbox := NewOutbox()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				localID := outbox.Stage("concurrent")
				outbox.Confirm(localID, "msg-"+localID)
				outbox.MarkDelivered("msg-" + localID)
			}
		}()
	}
	wg.Wait()

	snapshot := outbox.Snapshot()
	assert.Len(t, snapshot, 200)
	for _, entry := range snapshot {
		assert.Equal(t, StateDelivered, entry.State)
	}
}

func TestSendState_String(t *testing.T) {
	assert.Equal(t, "composing", StateComposing.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "sent", StateSent.String())
	assert.Equal(t, "delivered", StateDelivered.String())
	assert.Equal(t, "read", StateRead.String())
}

func TestOutbox_ComposeThenSubmit(t *testing.T) {
	outbox := NewOutbox()

	localID := outbox.Compose("counter-offer: 35 crates")

	snapshot := outbox.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, StateComposing, snapshot[0].State)

	outbox.Submit(localID)
	assert.Equal(t, StateSending, outbox.Snapshot()[0].State)

	// Submit is a no-op once past composing
	outbox.Confirm(localID, "msg-1")
	outbox.Submit(localID)
	assert.Equal(t, StateSent, outbox.Snapshot()[0].State)
}

func TestOutbox_FailComposedDraft(t *testing.T) {
	outbox := NewOutbox()

	localID := outbox.Compose("abandoned draft")
	assert.Equal(t, "abandoned draft", outbox.Fail(localID))
	assert.Empty(t, outbox.Snapshot())
}
