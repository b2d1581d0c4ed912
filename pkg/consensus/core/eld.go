package core

import "github.com/jabolina/go-epoch-consensus/pkg/consensus/types"

// EventualLeaderDetector tracks, from suspicions reported
// by EPFD, maintains the max-rank non-suspected process as the trusted
// leader.
type EventualLeaderDetector struct {
	members    types.Membership
	dispatcher *Dispatcher
	suspected  map[int]struct{}
	leader     *types.ProcessId
}

func NewEventualLeaderDetector(members types.Membership, dispatcher *Dispatcher) *EventualLeaderDetector {
	e := &EventualLeaderDetector{
		members:    members,
		dispatcher: dispatcher,
		suspected:  make(map[int]struct{}),
	}
	e.reevaluate()
	return e
}

// Handle implements Abstraction.
func (e *EventualLeaderDetector) Handle(message types.Message) bool {
	switch message.Type {
	case types.EpfdSuspect:
		p := message.Payload.(types.EpfdSuspectPayload).Process
		e.suspected[p.Port] = struct{}{}
		e.reevaluate()
		return true
	case types.EpfdRestore:
		p := message.Payload.(types.EpfdRestorePayload).Process
		delete(e.suspected, p.Port)
		e.reevaluate()
		return true
	}
	return false
}

func (e *EventualLeaderDetector) reevaluate() {
	trusted, found := e.members.MaxRank(e.suspected)
	if !found {
		// Every process is suspected: keep emitting the previous leader
		// rather than trusting nobody.
		return
	}
	if e.leader != nil && e.leader.Equals(trusted) {
		return
	}
	e.leader = &trusted
	e.dispatcher.Enqueue(types.Message{Type: types.EldTrust, Payload: types.EldTrustPayload{Process: trusted}})
}
