package core

import "github.com/jabolina/go-epoch-consensus/pkg/consensus/types"

// broadcastCarried is the set of message types that only ever travel through
// best-effort broadcast. The abstraction-id
// tag BEB attaches to its outgoing PL_SEND is observability-only; receiving
// code, including this abstraction on the inbound side, disambiguates by
// message type instead.
var broadcastCarried = map[types.MessageType]bool{
	types.EcNewEpoch: true,
	types.EpRead:     true,
	types.EpWrite:    true,
	types.EpDecided:  true,
}

// BestEffortBroadcast fans a broadcast out to every member over PerfectLink.
type BestEffortBroadcast struct {
	members    types.Membership
	dispatcher *Dispatcher
}

func NewBestEffortBroadcast(members types.Membership, dispatcher *Dispatcher) *BestEffortBroadcast {
	return &BestEffortBroadcast{members: members, dispatcher: dispatcher}
}

// Handle implements Abstraction.
func (b *BestEffortBroadcast) Handle(message types.Message) bool {
	switch message.Type {
	case types.BebBroadcast:
		payload, ok := message.Payload.(types.BebBroadcastPayload)
		if !ok {
			return false
		}
		for _, p := range b.members.Processes {
			b.dispatcher.Enqueue(types.Message{
				Type:          types.PlSend,
				AbstractionId: "beb",
				Payload:       types.PlSendPayload{Destination: p, Inner: payload.Inner},
			})
		}
		return true
	case types.PlDeliver:
		payload, ok := message.Payload.(types.PlDeliverPayload)
		if !ok || !broadcastCarried[payload.Inner.Type] {
			return false
		}
		b.dispatcher.Enqueue(types.Message{
			Type:    types.BebDeliver,
			Payload: types.BebDeliverPayload{Sender: payload.Sender, Inner: payload.Inner},
		})
		return true
	}
	return false
}
