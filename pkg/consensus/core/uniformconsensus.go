package core

import "github.com/jabolina/go-epoch-consensus/pkg/consensus/types"

// UniformConsensus sequences EpochConsensus
// instances and produces the final UcDecide. It owns the current
// EpochConsensus instance directly -- that instance never registers itself
// with the dispatcher, so UniformConsensus must forward the message types
// EpochConsensus cares about (see EpochConsensus.Concerns) after handling
// its own concerns.
type UniformConsensus struct {
	self       types.ProcessId
	members    types.Membership
	dispatcher *Dispatcher
	logger     types.Logger

	val      types.Value
	proposed bool
	decided  bool
	ets      int
	l        types.ProcessId
	newts    int
	newl     types.ProcessId

	currentEP *EpochConsensus
}

// NewUniformConsensus constructs UC and starts the initial epoch-consensus
// instance at ets=0 with the zero state.
func NewUniformConsensus(self types.ProcessId, members types.Membership, dispatcher *Dispatcher, logger types.Logger) *UniformConsensus {
	u := &UniformConsensus{
		self:       self,
		members:    members,
		dispatcher: dispatcher,
		logger:     logger,
		val:        types.Undefined,
		ets:        0,
		l:          members.MinRank(),
	}
	u.startEP(0, u.l, types.ZeroState)
	return u
}

func (u *UniformConsensus) startEP(ets int, leader types.ProcessId, initial types.EpState) {
	u.currentEP = NewEpochConsensus(ets, leader, u.self, u.members, initial, u.dispatcher, u.logger)
}

// Handle implements Abstraction.
func (u *UniformConsensus) Handle(message types.Message) bool {
	switch message.Type {
	case types.UcPropose:
		payload, ok := message.Payload.(types.UcProposePayload)
		if !ok {
			return false
		}
		u.val = payload.Value
		u.attemptPropose()
		return true

	case types.EcStartEpoch:
		payload, ok := message.Payload.(types.EcStartEpochPayload)
		if !ok {
			return false
		}
		u.newts = payload.NewTs
		u.newl = payload.NewL
		if u.currentEP != nil {
			u.currentEP.Handle(types.Message{Type: types.EpAbort, Payload: types.EpAbortPayload{}})
		}
		return true

	case types.EpAborted:
		payload, ok := message.Payload.(types.EpAbortedPayload)
		if !ok {
			return false
		}
		if payload.Ets != u.ets {
			// Stale abort from a superseded epoch instance; silently ignored
			// superseded by a later epoch.
			return true
		}
		u.ets = u.newts
		u.l = u.newl
		u.proposed = false
		carried := types.EpState{ValueTimestamp: payload.ValueTimestamp, Value: payload.Value}
		u.startEP(u.ets, u.l, carried)
		u.attemptPropose()
		return true

	case types.EpDecide:
		payload, ok := message.Payload.(types.EpDecidePayload)
		if !ok {
			return false
		}
		if payload.Ets != u.ets {
			return true
		}
		if !u.decided {
			u.decided = true
			u.dispatcher.Enqueue(types.Message{Type: types.UcDecide, Payload: types.UcDecidePayload{Value: payload.Value}})
		}
		return true
	}

	if u.currentEP != nil && u.currentEP.Concerns(message) {
		return u.currentEP.Handle(message)
	}
	return false
}

func (u *UniformConsensus) attemptPropose() {
	if u.l.Equals(u.self) && u.val.Defined && !u.proposed && u.currentEP != nil {
		u.proposed = true
		u.currentEP.Handle(types.Message{Type: types.EpPropose, Payload: types.EpProposePayload{Value: u.val}})
	}
}
