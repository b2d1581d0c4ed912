package core

import "github.com/jabolina/go-epoch-consensus/pkg/consensus/types"

// PerfectLink claims PlSend going out, handing
// the destination and message off to Network, and is also the Inbox Network
// delivers into, translating every inbound envelope into a PlDeliver.
// Failures of the underlying send are logged but never propagated -- retries
// are the responsibility of higher layers (EPFD's heartbeats, EC's NACKs).
type PerfectLink struct {
	systemId   string
	network    Network
	dispatcher *Dispatcher
	logger     types.Logger
}

// NewPerfectLink constructs the link and registers it with network as the
// Inbox for systemId.
func NewPerfectLink(systemId string, network Network, dispatcher *Dispatcher, logger types.Logger) *PerfectLink {
	pl := &PerfectLink{
		systemId:   systemId,
		network:    network,
		dispatcher: dispatcher,
		logger:     logger,
	}
	network.Register(systemId, pl)
	return pl
}

// Handle implements Abstraction.
func (p *PerfectLink) Handle(message types.Message) bool {
	if message.Type != types.PlSend {
		return false
	}
	payload, ok := message.Payload.(types.PlSendPayload)
	if !ok {
		return false
	}
	if err := p.network.Send(payload.Destination, p.systemId, message.AbstractionId, payload.Inner); err != nil {
		p.logger.Errorf("pl: failed sending %s to %s: %v", payload.Inner.Type, payload.Destination, err)
	}
	return true
}

// Deliver implements Inbox. Called from the network listener goroutine.
func (p *PerfectLink) Deliver(sender types.ProcessId, message types.Message) {
	p.dispatcher.Enqueue(types.Message{
		Type:          types.PlDeliver,
		AbstractionId: message.AbstractionId,
		Payload:       types.PlDeliverPayload{Sender: sender, Inner: message},
	})
}
