package core

import (
	"sync"
	"time"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

// EventuallyPerfectFailureDetector implements heartbeat
// request/reply, an adaptive timeout, and alive/suspected bookkeeping. The
// timer callback never touches this state directly -- it only enqueues an
// EPFD_TIMEOUT marker, so every transition stays serialized by the
// dispatcher.
type EventuallyPerfectFailureDetector struct {
	members    types.Membership
	dispatcher *Dispatcher
	logger     types.Logger

	alive     map[int]struct{}
	suspected map[int]struct{}
	delay     time.Duration
	delta     time.Duration

	timerMutex sync.Mutex
	timer      *time.Timer
	stopped    bool
}

// NewEventuallyPerfectFailureDetector builds the detector and starts its
// timer immediately; delta is the reference Delta for the adaptive timeout.
func NewEventuallyPerfectFailureDetector(members types.Membership, delta time.Duration, dispatcher *Dispatcher, logger types.Logger) *EventuallyPerfectFailureDetector {
	e := &EventuallyPerfectFailureDetector{
		members:    members,
		dispatcher: dispatcher,
		logger:     logger,
		alive:      make(map[int]struct{}),
		suspected:  make(map[int]struct{}),
		delay:      delta,
		delta:      delta,
	}
	for _, p := range members.Processes {
		e.alive[p.Port] = struct{}{}
	}
	e.scheduleNext()
	return e
}

func (e *EventuallyPerfectFailureDetector) scheduleNext() {
	e.timerMutex.Lock()
	defer e.timerMutex.Unlock()
	if e.stopped {
		return
	}
	e.timer = time.AfterFunc(e.delay, func() {
		e.timerMutex.Lock()
		defer e.timerMutex.Unlock()
		if e.stopped {
			return
		}
		e.dispatcher.Enqueue(types.Message{Type: types.EpfdTimeout, Payload: types.EpfdTimeoutPayload{}})
	})
}

// Stop cancels the pending timer. No further EPFD_TIMEOUT markers are
// enqueued after this returns.
func (e *EventuallyPerfectFailureDetector) Stop() {
	e.timerMutex.Lock()
	defer e.timerMutex.Unlock()
	e.stopped = true
	if e.timer != nil {
		e.timer.Stop()
	}
}

// Delay exposes the current adaptive timeout; used by tests that verify
// EPFD's adaptivity property.
func (e *EventuallyPerfectFailureDetector) Delay() time.Duration {
	return e.delay
}

// SuspectedCount exposes the size of the suspected set, used by the metrics
// package.
func (e *EventuallyPerfectFailureDetector) SuspectedCount() int {
	return len(e.suspected)
}

// Handle implements Abstraction.
func (e *EventuallyPerfectFailureDetector) Handle(message types.Message) bool {
	switch message.Type {
	case types.EpfdTimeout:
		e.tick()
		return true
	case types.PlDeliver:
		payload, ok := message.Payload.(types.PlDeliverPayload)
		if !ok {
			return false
		}
		switch payload.Inner.Type {
		case types.EpfdHeartbeatRequest:
			e.dispatcher.Enqueue(types.Message{
				Type:          types.PlSend,
				AbstractionId: "epfd",
				Payload: types.PlSendPayload{
					Destination: payload.Sender,
					Inner:       types.Message{Type: types.EpfdHeartbeatReply, Payload: types.EpfdHeartbeatReplyPayload{}},
				},
			})
			return true
		case types.EpfdHeartbeatReply:
			e.alive[payload.Sender.Port] = struct{}{}
			return true
		}
	}
	return false
}

func (e *EventuallyPerfectFailureDetector) tick() {
	intersectionNonEmpty := false
	for port := range e.alive {
		if _, ok := e.suspected[port]; ok {
			intersectionNonEmpty = true
			break
		}
	}
	if intersectionNonEmpty {
		e.delay += e.delta
		e.logger.Debugf("epfd: increasing delay to %s", e.delay)
	}

	for _, p := range e.members.Processes {
		_, isAlive := e.alive[p.Port]
		_, isSuspected := e.suspected[p.Port]
		if !isAlive && !isSuspected {
			e.suspected[p.Port] = struct{}{}
			e.dispatcher.Enqueue(types.Message{Type: types.EpfdSuspect, Payload: types.EpfdSuspectPayload{Process: p}})
		} else if isAlive && isSuspected {
			delete(e.suspected, p.Port)
			e.dispatcher.Enqueue(types.Message{Type: types.EpfdRestore, Payload: types.EpfdRestorePayload{Process: p}})
		}

		e.dispatcher.Enqueue(types.Message{
			Type:          types.PlSend,
			AbstractionId: "epfd",
			Payload: types.PlSendPayload{
				Destination: p,
				Inner:       types.Message{Type: types.EpfdHeartbeatRequest, Payload: types.EpfdHeartbeatRequestPayload{}},
			},
		})
	}

	e.alive = make(map[int]struct{})
	e.scheduleNext()
}
