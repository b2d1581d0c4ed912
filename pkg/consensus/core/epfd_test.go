package core

import (
	"testing"
	"time"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/definition"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

func threeMemberMembership() types.Membership {
	return types.Membership{Processes: []types.ProcessId{
		{Host: "127.0.0.1", Port: 9001, Rank: 0},
		{Host: "127.0.0.1", Port: 9002, Rank: 1},
		{Host: "127.0.0.1", Port: 9003, Rank: 2},
	}}
}

func TestEPFD_TickSendsHeartbeatRequestsToEveryMember(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("epfd-1"))
	e := NewEventuallyPerfectFailureDetector(members, time.Hour, d, definition.NewDefaultLogger())
	defer e.Stop()

	e.tick()

	sent := 0
	for _, m := range drainQueue(d) {
		if m.Type == types.PlSend {
			p := m.Payload.(types.PlSendPayload)
			if p.Inner.Type == types.EpfdHeartbeatRequest {
				sent++
			}
		}
	}
	if sent != members.N() {
		t.Fatalf("expected %d heartbeat requests, got %d", members.N(), sent)
	}
}

func TestEPFD_SuspectsSilentMember(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("epfd-2"))
	e := NewEventuallyPerfectFailureDetector(members, time.Hour, d, definition.NewDefaultLogger())
	defer e.Stop()

	// First tick: nobody has replied yet, so alive (seeded at construction)
	// is non-empty and no one gets suspected on this pass.
	e.tick()
	// Drain the heartbeat requests this tick produced.
	d.drain(); d.queue = nil

	// Second tick: alive is now empty (cleared at the end of the first
	// tick), so everyone should be suspected.
	e.tick()

	suspectCount := 0
	for _, m := range drainQueue(d) {
		if m.Type == types.EpfdSuspect {
			suspectCount++
		}
	}
	if suspectCount != members.N() {
		t.Fatalf("expected all %d members suspected after a silent round, got %d", members.N(), suspectCount)
	}
	if e.SuspectedCount() != members.N() {
		t.Fatalf("expected SuspectedCount to report %d, got %d", members.N(), e.SuspectedCount())
	}
}

func TestEPFD_DelayGrowsOnContradiction(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("epfd-3"))
	e := NewEventuallyPerfectFailureDetector(members, 10*time.Millisecond, d, definition.NewDefaultLogger())
	defer e.Stop()

	initial := e.Delay()

	e.tick()
	d.drain(); d.queue = nil
	e.tick() // everyone now suspected, alive empty

	// Simulate a late reply from a suspected process arriving before the
	// next tick: this puts that port in both alive and suspected,
	// triggering the Delta growth rule.
	e.Handle(types.Message{
		Type: types.PlDeliver,
		Payload: types.PlDeliverPayload{
			Sender: members.Processes[0],
			Inner:  types.Message{Type: types.EpfdHeartbeatReply, Payload: types.EpfdHeartbeatReplyPayload{}},
		},
	})
	d.drain(); d.queue = nil
	e.tick()

	if e.Delay() <= initial {
		t.Fatalf("expected delay to grow past %s after a contradiction, got %s", initial, e.Delay())
	}
}

func TestEPFD_RestoresOnReply(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("epfd-4"))
	e := NewEventuallyPerfectFailureDetector(members, time.Hour, d, definition.NewDefaultLogger())
	defer e.Stop()

	e.tick()
	d.drain(); d.queue = nil
	e.tick() // everyone suspected now
	d.drain(); d.queue = nil

	e.Handle(types.Message{
		Type: types.PlDeliver,
		Payload: types.PlDeliverPayload{
			Sender: members.Processes[0],
			Inner:  types.Message{Type: types.EpfdHeartbeatReply, Payload: types.EpfdHeartbeatReplyPayload{}},
		},
	})
	e.tick()

	restored := false
	for _, m := range drainQueue(d) {
		if m.Type == types.EpfdRestore {
			p := m.Payload.(types.EpfdRestorePayload).Process
			if p.Equals(members.Processes[0]) {
				restored = true
			}
		}
	}
	if !restored {
		t.Fatalf("expected an EPFD_RESTORE for the process that replied")
	}
}

func TestEPFD_HeartbeatRequestGetsReplied(t *testing.T) {
	members := threeMemberMembership()
	d := NewDispatcher(testConfig("epfd-5"))
	e := NewEventuallyPerfectFailureDetector(members, time.Hour, d, definition.NewDefaultLogger())
	defer e.Stop()

	claimed := e.Handle(types.Message{
		Type: types.PlDeliver,
		Payload: types.PlDeliverPayload{
			Sender: members.Processes[1],
			Inner:  types.Message{Type: types.EpfdHeartbeatRequest, Payload: types.EpfdHeartbeatRequestPayload{}},
		},
	})
	if !claimed {
		t.Fatalf("expected EPFD to claim an inbound heartbeat request")
	}

	replied := false
	for _, m := range drainQueue(d) {
		if m.Type == types.PlSend {
			p := m.Payload.(types.PlSendPayload)
			if p.Destination.Equals(members.Processes[1]) && p.Inner.Type == types.EpfdHeartbeatReply {
				replied = true
			}
		}
	}
	if !replied {
		t.Fatalf("expected a heartbeat reply sent back to the requester")
	}
}
