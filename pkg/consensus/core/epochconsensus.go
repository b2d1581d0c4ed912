package core

import "github.com/jabolina/go-epoch-consensus/pkg/consensus/types"

// EpochConsensus implements one read/write two-phase agreement
// per (system, ets) pair. It is constructed and privately owned by
// UniformConsensus for the lifetime of one epoch; it never registers itself
// with the dispatcher directly, which is also why halted instances never
// accumulate -- once UC moves its
// currentEP pointer to the successor, the halted instance is simply
// unreferenced and collected.
type EpochConsensus struct {
	ets        int
	leader     types.ProcessId
	self       types.ProcessId
	members    types.Membership
	dispatcher *Dispatcher
	logger     types.Logger

	state  types.EpState
	halted bool

	// Leader-only bookkeeping; harmless but unused on non-leader replicas.
	tmpVal   types.Value
	states   map[int]types.EpState
	accepted int
}

// NewEpochConsensus constructs one epoch-consensus instance, starting from
// the state carried over from the previous aborted epoch (or the zero state
// for the very first epoch).
func NewEpochConsensus(ets int, leader, self types.ProcessId, members types.Membership, initial types.EpState, dispatcher *Dispatcher, logger types.Logger) *EpochConsensus {
	return &EpochConsensus{
		ets:        ets,
		leader:     leader,
		self:       self,
		members:    members,
		dispatcher: dispatcher,
		logger:     logger,
		state:      initial,
		tmpVal:     types.Undefined,
		states:     make(map[int]types.EpState),
	}
}

func (ep *EpochConsensus) isLeader() bool {
	return ep.self.Equals(ep.leader)
}

// Concerns reports whether message belongs to this epoch instance's handled
// variants, so UniformConsensus knows whether to forward it.
func (ep *EpochConsensus) Concerns(message types.Message) bool {
	switch message.Type {
	case types.EpPropose, types.EpAbort:
		return true
	case types.BebDeliver:
		payload, ok := message.Payload.(types.BebDeliverPayload)
		if !ok {
			return false
		}
		switch payload.Inner.Type {
		case types.EpRead, types.EpWrite, types.EpDecided:
			return true
		}
	case types.PlDeliver:
		payload, ok := message.Payload.(types.PlDeliverPayload)
		if !ok {
			return false
		}
		switch payload.Inner.Type {
		case types.EpState, types.EpAccept:
			return true
		}
	}
	return false
}

// Handle processes one message belonging to this epoch. Once halted is set,
// every further message is claimed and dropped without any side effect or
// state change, the idempotence every halted epoch instance must keep.
func (ep *EpochConsensus) Handle(message types.Message) bool {
	if ep.halted {
		return true
	}

	switch message.Type {
	case types.EpPropose:
		if !ep.isLeader() {
			return true
		}
		payload := message.Payload.(types.EpProposePayload)
		ep.tmpVal = payload.Value
		ep.broadcast(types.EpRead, types.EpReadPayload{})
		return true

	case types.EpAbort:
		ep.dispatcher.Enqueue(types.Message{
			Type: types.EpAborted,
			Payload: types.EpAbortedPayload{
				Ets:            ep.ets,
				ValueTimestamp: ep.state.ValueTimestamp,
				Value:          ep.state.Value,
			},
		})
		ep.halted = true
		return true

	case types.BebDeliver:
		payload := message.Payload.(types.BebDeliverPayload)
		switch payload.Inner.Type {
		case types.EpRead:
			if !payload.Sender.Equals(ep.leader) {
				return true
			}
			ep.sendTo(payload.Sender, types.EpState, types.EpStatePayload{
				ValueTimestamp: ep.state.ValueTimestamp,
				Value:          ep.state.Value,
			})
			return true
		case types.EpWrite:
			if !payload.Sender.Equals(ep.leader) {
				return true
			}
			v := payload.Inner.Payload.(types.EpWritePayload).Value
			ep.state = types.EpState{ValueTimestamp: ep.ets, Value: v}
			ep.sendTo(payload.Sender, types.EpAccept, types.EpAcceptPayload{})
			return true
		case types.EpDecided:
			if !payload.Sender.Equals(ep.leader) {
				return true
			}
			v := payload.Inner.Payload.(types.EpDecidedPayload).Value
			ep.dispatcher.Enqueue(types.Message{
				Type:    types.EpDecide,
				Payload: types.EpDecidePayload{Ets: ep.ets, Value: v},
			})
			return true
		}
		return true

	case types.PlDeliver:
		payload := message.Payload.(types.PlDeliverPayload)
		switch payload.Inner.Type {
		case types.EpState:
			if !ep.isLeader() {
				return true
			}
			st := payload.Inner.Payload.(types.EpStatePayload)
			ep.states[payload.Sender.Port] = types.EpState{ValueTimestamp: st.ValueTimestamp, Value: st.Value}
			if len(ep.states) > ep.members.N()/2 {
				collected := make([]types.EpState, 0, len(ep.states))
				for _, s := range ep.states {
					collected = append(collected, s)
				}
				highest := types.HighestState(collected)
				if highest.Value.Defined {
					ep.tmpVal = highest.Value
				}
				ep.states = make(map[int]types.EpState)
				ep.broadcast(types.EpWrite, types.EpWritePayload{Value: ep.tmpVal})
			}
			return true
		case types.EpAccept:
			if !ep.isLeader() {
				return true
			}
			ep.accepted++
			if ep.accepted > ep.members.N()/2 {
				ep.accepted = 0
				ep.broadcast(types.EpDecided, types.EpDecidedPayload{Value: ep.tmpVal})
			}
			return true
		}
		return true
	}

	return false
}

func (ep *EpochConsensus) broadcast(t types.MessageType, payload interface{}) {
	ep.dispatcher.Enqueue(types.Message{
		Type:          types.BebBroadcast,
		AbstractionId: "ep",
		Payload:       types.BebBroadcastPayload{Inner: types.Message{Type: t, Payload: payload}},
	})
}

func (ep *EpochConsensus) sendTo(dest types.ProcessId, t types.MessageType, payload interface{}) {
	ep.dispatcher.Enqueue(types.Message{
		Type:          types.PlSend,
		AbstractionId: "ep",
		Payload:       types.PlSendPayload{Destination: dest, Inner: types.Message{Type: t, Payload: payload}},
	})
}
