package core

import (
	"testing"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/definition"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

func lastNewEpochTs(d *Dispatcher) (int, bool) {
	ts, found := -1, false
	for _, m := range drainQueue(d) {
		if m.Type == types.BebBroadcast {
			inner := m.Payload.(types.BebBroadcastPayload).Inner
			if inner.Type == types.EcNewEpoch {
				ts = inner.Payload.(types.EcNewEpochPayload).Ets
				found = true
			}
		}
	}
	return ts, found
}

func TestEpochChange_BecomingTrustedBroadcastsNewEpoch(t *testing.T) {
	members := threeMemberMembership()
	self := members.Processes[2]
	d := NewDispatcher(testConfig("ec-1"))
	ec := NewEpochChange(self, members, d, definition.NewDefaultLogger())

	ec.Handle(types.Message{Type: types.EldTrust, Payload: types.EldTrustPayload{Process: self}})

	ts, found := lastNewEpochTs(d)
	if !found {
		t.Fatalf("expected a broadcast EC_NEW_EPOCH once self becomes trusted")
	}
	if ts != self.Rank+members.N() {
		t.Fatalf("expected ts=%d (rank + N), got %d", self.Rank+members.N(), ts)
	}
	if ec.EpochsStarted() != 1 {
		t.Fatalf("expected EpochsStarted()=1, got %d", ec.EpochsStarted())
	}
}

func TestEpochChange_TimestampsStrictlyIncreaseAcrossRounds(t *testing.T) {
	members := threeMemberMembership()
	self := members.Processes[2]
	d := NewDispatcher(testConfig("ec-2"))
	ec := NewEpochChange(self, members, d, definition.NewDefaultLogger())

	ec.Handle(types.Message{Type: types.EldTrust, Payload: types.EldTrustPayload{Process: self}})
	firstTs, _ := lastNewEpochTs(d)

	d.drain(); d.queue = nil
	// A NACK while still trusted re-broadcasts with a strictly larger ts.
	ec.Handle(types.Message{
		Type: types.PlDeliver,
		Payload: types.PlDeliverPayload{
			Sender: members.Processes[0],
			Inner:  types.Message{Type: types.EcNack, Payload: types.EcNackPayload{}},
		},
	})
	secondTs, found := lastNewEpochTs(d)
	if !found || secondTs <= firstTs {
		t.Fatalf("expected second round's ts (%d) to exceed the first (%d)", secondTs, firstTs)
	}
	if ec.EpochsStarted() != 2 {
		t.Fatalf("expected EpochsStarted()=2 after two rounds, got %d", ec.EpochsStarted())
	}
}

func TestEpochChange_NewEpochFromNonTrustedSenderIsNacked(t *testing.T) {
	members := threeMemberMembership()
	self := members.Processes[0]
	d := NewDispatcher(testConfig("ec-3"))
	ec := NewEpochChange(self, members, d, definition.NewDefaultLogger())
	// Default trusted is MinRank() == self in this membership, so reassign
	// trust to the real highest-rank process first, as ELD normally would.
	ec.Handle(types.Message{Type: types.EldTrust, Payload: types.EldTrustPayload{Process: members.Processes[2]}})
	d.drain(); d.queue = nil

	claimed := ec.Handle(types.Message{
		Type: types.BebDeliver,
		Payload: types.BebDeliverPayload{
			Sender: members.Processes[1],
			Inner:  types.Message{Type: types.EcNewEpoch, Payload: types.EcNewEpochPayload{Ets: 999}},
		},
	})
	if !claimed {
		t.Fatalf("expected EC to claim a BEB_DELIVER carrying EC_NEW_EPOCH")
	}

	nacked := false
	for _, m := range drainQueue(d) {
		if m.Type == types.PlSend {
			p := m.Payload.(types.PlSendPayload)
			if p.Inner.Type == types.EcNack && p.Destination.Equals(members.Processes[1]) {
				nacked = true
			}
		}
	}
	if !nacked {
		t.Fatalf("expected a NACK sent back to a non-trusted sender's EC_NEW_EPOCH")
	}
}

func TestEpochChange_NewEpochFromTrustedSenderStartsEpoch(t *testing.T) {
	members := threeMemberMembership()
	self := members.Processes[0]
	d := NewDispatcher(testConfig("ec-4"))
	ec := NewEpochChange(self, members, d, definition.NewDefaultLogger())
	ec.Handle(types.Message{Type: types.EldTrust, Payload: types.EldTrustPayload{Process: members.Processes[2]}})
	d.drain(); d.queue = nil

	ec.Handle(types.Message{
		Type: types.BebDeliver,
		Payload: types.BebDeliverPayload{
			Sender: members.Processes[2],
			Inner:  types.Message{Type: types.EcNewEpoch, Payload: types.EcNewEpochPayload{Ets: 42}},
		},
	})

	started := false
	for _, m := range drainQueue(d) {
		if m.Type == types.EcStartEpoch {
			p := m.Payload.(types.EcStartEpochPayload)
			if p.NewTs == 42 && p.NewL.Equals(members.Processes[2]) {
				started = true
			}
		}
	}
	if !started {
		t.Fatalf("expected EC_START_EPOCH(ts=42, leader=highest) from a trusted sender")
	}
}
