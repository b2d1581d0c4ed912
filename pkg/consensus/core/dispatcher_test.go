package core

import (
	"testing"
	"time"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/definition"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

// drainQueue moves any mailbox-pending messages into the queue and returns
// it, since Enqueue only ever appends to the mutex-protected mailbox -
// tests that enqueue directly (bypassing Run's own drain-on-step) need this
// to see what landed.
func drainQueue(d *Dispatcher) []types.Message {
	d.drain()
	return d.queue
}

func testConfig(systemId string) *types.InstanceConfiguration {
	logger := definition.NewDefaultLogger()
	return &types.InstanceConfiguration{
		SystemId:         systemId,
		Logger:           logger,
		DispatchInterval: time.Millisecond,
	}
}

// claimOnce is a minimal Abstraction that claims exactly one MessageType and
// records every message it was handed.
type claimOnce struct {
	claims types.MessageType
	seen   []types.Message
}

func (c *claimOnce) Handle(m types.Message) bool {
	if m.Type != c.claims {
		return false
	}
	c.seen = append(c.seen, m)
	return true
}

func TestDispatcher_FirstMatchClaims(t *testing.T) {
	d := NewDispatcher(testConfig("sys-1"))
	first := &claimOnce{claims: types.AppPropose}
	second := &claimOnce{claims: types.AppPropose}
	d.Register(first)
	d.Register(second)

	d.Enqueue(types.Message{Type: types.AppPropose})
	if !d.step() {
		t.Fatalf("expected step to make progress")
	}
	if len(first.seen) != 1 {
		t.Fatalf("expected the first registered abstraction to claim the message, got %d claims", len(first.seen))
	}
	if len(second.seen) != 0 {
		t.Fatalf("expected the second abstraction to never see an already-claimed message")
	}
}

func TestDispatcher_SkipNotRemoveOnNoMatch(t *testing.T) {
	d := NewDispatcher(testConfig("sys-2"))
	never := &claimOnce{claims: types.UcDecide}
	d.Register(never)

	d.Enqueue(types.Message{Type: types.AppPropose})
	if d.step() {
		t.Fatalf("expected step to report no progress when nothing claims the message")
	}
	if d.QueueDepth() != 1 {
		t.Fatalf("expected the unclaimed message to remain queued, depth=%d", d.QueueDepth())
	}
}

func TestDispatcher_LaterMessageCanBeClaimedAheadOfEarlierUnclaimed(t *testing.T) {
	d := NewDispatcher(testConfig("sys-3"))
	claimer := &claimOnce{claims: types.UcDecide}
	d.Register(claimer)

	d.Enqueue(types.Message{Type: types.AppPropose})
	d.Enqueue(types.Message{Type: types.UcDecide})

	if !d.step() {
		t.Fatalf("expected the second message to be claimed even though the first wasn't")
	}
	if len(claimer.seen) != 1 {
		t.Fatalf("expected exactly one claim, got %d", len(claimer.seen))
	}
	if d.QueueDepth() != 1 {
		t.Fatalf("expected the unclaimed first message to remain, depth=%d", d.QueueDepth())
	}
}

func TestDispatcher_EnqueueStampsSystemId(t *testing.T) {
	d := NewDispatcher(testConfig("sys-4"))
	claimer := &claimOnce{claims: types.AppPropose}
	d.Register(claimer)

	d.Enqueue(types.Message{Type: types.AppPropose})
	d.step()

	if len(claimer.seen) != 1 || claimer.seen[0].SystemId != "sys-4" {
		t.Fatalf("expected enqueued message to carry the dispatcher's system id, got %+v", claimer.seen)
	}
}

func TestDispatcher_RunStopsOnStop(t *testing.T) {
	d := NewDispatcher(testConfig("sys-5"))
	done := make(chan struct{})
	go func() {
		d.Run()
		close(done)
	}()
	d.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Run to return after Stop")
	}
}
