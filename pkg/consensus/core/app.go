package core

import "github.com/jabolina/go-epoch-consensus/pkg/consensus/types"

// Application reacts to AppPropose by posting the initial
// UcPropose, and on UcDecide it hands the decided value to whatever sink the
// instance was wired with (the hub client, in production; a channel in
// tests).
type Application struct {
	systemId     string
	dispatcher   *Dispatcher
	logger       types.Logger
	onDecide     func(types.Value)
	bootstrapped bool
}

func NewApplication(systemId string, dispatcher *Dispatcher, logger types.Logger, onDecide func(types.Value)) *Application {
	return &Application{systemId: systemId, dispatcher: dispatcher, logger: logger, onDecide: onDecide}
}

// Handle implements Abstraction.
func (a *Application) Handle(message types.Message) bool {
	switch message.Type {
	case types.AppPropose:
		if a.bootstrapped {
			return true
		}
		a.bootstrapped = true
		payload, ok := message.Payload.(types.AppProposePayload)
		if !ok {
			return false
		}
		a.logger.Infof("system %s bootstrapped, proposing", a.systemId)
		a.dispatcher.Enqueue(types.Message{Type: types.UcPropose, Payload: types.UcProposePayload{Value: payload.Value}})
		return true
	case types.UcDecide:
		payload, ok := message.Payload.(types.UcDecidePayload)
		if !ok {
			return false
		}
		a.logger.Infof("system %s decided", a.systemId)
		if a.onDecide != nil {
			a.onDecide(payload.Value)
		}
		return true
	}
	return false
}
