package core

import "github.com/jabolina/go-epoch-consensus/pkg/consensus/types"

// EpochChange implements a NEWEPOCH/NACK exchange, producing a
// monotonically increasing (timestamp, leader) pair for Uniform Consensus.
type EpochChange struct {
	self       types.ProcessId
	members    types.Membership
	dispatcher *Dispatcher
	logger     types.Logger

	lastTs  int
	ts      int
	trusted types.ProcessId

	epochsStarted int
}

func NewEpochChange(self types.ProcessId, members types.Membership, dispatcher *Dispatcher, logger types.Logger) *EpochChange {
	return &EpochChange{
		self:       self,
		members:    members,
		dispatcher: dispatcher,
		logger:     logger,
		lastTs:     0,
		ts:         self.Rank,
		trusted:    members.MinRank(),
	}
}

// Handle implements Abstraction.
func (e *EpochChange) Handle(message types.Message) bool {
	switch message.Type {
	case types.EldTrust:
		p, ok := message.Payload.(types.EldTrustPayload)
		if !ok {
			return false
		}
		e.trusted = p.Process
		if p.Process.Equals(e.self) {
			e.ts += e.members.N()
			e.broadcastNewEpoch()
		}
		return true
	case types.BebDeliver:
		payload, ok := message.Payload.(types.BebDeliverPayload)
		if !ok || payload.Inner.Type != types.EcNewEpoch {
			return false
		}
		newTs := payload.Inner.Payload.(types.EcNewEpochPayload).Ets
		if payload.Sender.Equals(e.trusted) && newTs > e.lastTs {
			e.lastTs = newTs
			e.dispatcher.Enqueue(types.Message{
				Type:    types.EcStartEpoch,
				Payload: types.EcStartEpochPayload{NewTs: newTs, NewL: payload.Sender},
			})
		} else {
			e.dispatcher.Enqueue(types.Message{
				Type:          types.PlSend,
				AbstractionId: "ec",
				Payload: types.PlSendPayload{
					Destination: payload.Sender,
					Inner:       types.Message{Type: types.EcNack, Payload: types.EcNackPayload{}},
				},
			})
		}
		return true
	case types.PlDeliver:
		payload, ok := message.Payload.(types.PlDeliverPayload)
		if !ok || payload.Inner.Type != types.EcNack {
			return false
		}
		if e.trusted.Equals(e.self) {
			e.ts += e.members.N()
			e.broadcastNewEpoch()
		}
		return true
	}
	return false
}

// EpochsStarted counts how many EC_NEW_EPOCH rounds this process has
// originated, used by the metrics package as a proxy for epoch churn.
func (e *EpochChange) EpochsStarted() int {
	return e.epochsStarted
}

func (e *EpochChange) broadcastNewEpoch() {
	e.epochsStarted++
	e.dispatcher.Enqueue(types.Message{
		Type:          types.BebBroadcast,
		AbstractionId: "ec",
		Payload: types.BebBroadcastPayload{
			Inner: types.Message{Type: types.EcNewEpoch, Payload: types.EcNewEpochPayload{Ets: e.ts}},
		},
	})
}
