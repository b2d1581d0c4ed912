package core

import "github.com/jabolina/go-epoch-consensus/pkg/consensus/types"

// Instance bundles the dispatcher and every abstraction wired for one
// system-id, plus the means to shut it all down cleanly.
type Instance struct {
	SystemId   string
	Dispatcher *Dispatcher

	network Network
	epfd    *EventuallyPerfectFailureDetector
	ec      *EpochChange
}

// StartInstance wires PL, BEB, EPFD, ELD, EC, UC, APP in dependency order
// for one system-id, starts the dispatcher loop, and
// posts the initial AppPropose. The stack itself is plain Go construction --
// registering abstractions at runtime in response to a generic bus message
// isn't meaningful in a statically typed host language, so "construct the
// stack in dependency order" happens here, before the dispatcher starts;
// Application.Handle still literally reacts to the AppPropose message for
// the UcPropose hand-off.
func StartInstance(cfg *types.InstanceConfiguration, network Network, value types.Value, onDecide func(types.Value)) *Instance {
	dispatcher := NewDispatcher(cfg)

	pl := NewPerfectLink(cfg.SystemId, network, dispatcher, cfg.Logger)
	beb := NewBestEffortBroadcast(cfg.Members, dispatcher)
	epfd := NewEventuallyPerfectFailureDetector(cfg.Members, cfg.HeartbeatDelay, dispatcher, cfg.Logger)
	eld := NewEventualLeaderDetector(cfg.Members, dispatcher)
	ec := NewEpochChange(cfg.Self, cfg.Members, dispatcher, cfg.Logger)
	uc := NewUniformConsensus(cfg.Self, cfg.Members, dispatcher, cfg.Logger)
	app := NewApplication(cfg.SystemId, dispatcher, cfg.Logger, onDecide)

	dispatcher.Register(pl)
	dispatcher.Register(beb)
	dispatcher.Register(epfd)
	dispatcher.Register(eld)
	dispatcher.Register(ec)
	dispatcher.Register(uc)
	dispatcher.Register(app)

	InvokerInstance().Spawn(dispatcher.Run)

	dispatcher.Enqueue(types.Message{
		Type: types.AppPropose,
		Payload: types.AppProposePayload{
			SystemId: cfg.SystemId,
			Members:  cfg.Members,
			Value:    value,
		},
	})

	return &Instance{SystemId: cfg.SystemId, Dispatcher: dispatcher, network: network, epfd: epfd, ec: ec}
}

// Stop tears down the instance's timer and dispatch loop and unregisters it
// from the shared network.
func (i *Instance) Stop() {
	i.epfd.Stop()
	i.Dispatcher.Stop()
	i.network.Unregister(i.SystemId)
}

// SuspectedCount exposes EPFD's current suspected-set size, polled by the
// metrics collector.
func (i *Instance) SuspectedCount() int {
	return i.epfd.SuspectedCount()
}

// EpochsStarted exposes how many epochs EC has originated locally, polled by
// the metrics collector.
func (i *Instance) EpochsStarted() int {
	return i.ec.EpochsStarted()
}
