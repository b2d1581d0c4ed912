package core

import (
	"testing"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

func lastTrusted(d *Dispatcher) (types.ProcessId, bool) {
	var last types.ProcessId
	found := false
	for _, m := range drainQueue(d) {
		if m.Type == types.EldTrust {
			last = m.Payload.(types.EldTrustPayload).Process
			found = true
		}
	}
	return last, found
}

func TestELD_InitiallyTrustsHighestRank(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("eld-1"))
	NewEventualLeaderDetector(members, d)

	trusted, found := lastTrusted(d)
	if !found || !trusted.Equals(members.Processes[2]) {
		t.Fatalf("expected highest-rank process trusted on construction, got %v found=%v", trusted, found)
	}
}

func TestELD_SwitchesTrustWhenLeaderSuspected(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("eld-2"))
	eld := NewEventualLeaderDetector(members, d)
	d.drain(); d.queue = nil

	eld.Handle(types.Message{Type: types.EpfdSuspect, Payload: types.EpfdSuspectPayload{Process: members.Processes[2]}})

	trusted, found := lastTrusted(d)
	if !found || !trusted.Equals(members.Processes[1]) {
		t.Fatalf("expected second-highest trusted once the leader is suspected, got %v found=%v", trusted, found)
	}
}

func TestELD_RestoringLeaderSwitchesTrustBack(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("eld-3"))
	eld := NewEventualLeaderDetector(members, d)

	eld.Handle(types.Message{Type: types.EpfdSuspect, Payload: types.EpfdSuspectPayload{Process: members.Processes[2]}})
	d.drain(); d.queue = nil
	eld.Handle(types.Message{Type: types.EpfdRestore, Payload: types.EpfdRestorePayload{Process: members.Processes[2]}})

	trusted, found := lastTrusted(d)
	if !found || !trusted.Equals(members.Processes[2]) {
		t.Fatalf("expected the highest-rank process trusted again after it's restored, got %v found=%v", trusted, found)
	}
}

func TestELD_NoEmissionWhenTrustUnchanged(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("eld-4"))
	eld := NewEventualLeaderDetector(members, d)

	// Suspecting the lowest-rank process changes nothing about who's trusted.
	d.drain(); d.queue = nil
	eld.Handle(types.Message{Type: types.EpfdSuspect, Payload: types.EpfdSuspectPayload{Process: members.Processes[0]}})

	if _, found := lastTrusted(d); found {
		t.Fatalf("expected no ELD_TRUST emitted when the trusted process doesn't change")
	}
}
