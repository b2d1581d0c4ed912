package types

import "time"

// InstanceConfiguration carries everything a dispatcher needs to wire up one
// consensus instance: the system-id the hub assigned it, the fixed
// membership, which process among that membership is the local one, the
// logger every abstraction shares, and the initial EPFD heartbeat delay.
type InstanceConfiguration struct {
	SystemId string
	Members  Membership
	Self     ProcessId
	Logger   Logger

	// HeartbeatDelay is EPFD's initial Delta, reference value 100ms.
	HeartbeatDelay time.Duration

	// DispatchInterval is how long the dispatcher sleeps between sweeps
	// when nothing made progress (reference value ~10ms).
	DispatchInterval time.Duration
}

// DefaultHeartbeatDelay is the reference Delta for the failure detector's
// adaptive timeout.
const DefaultHeartbeatDelay = 100 * time.Millisecond

// DefaultDispatchInterval is the reference dispatcher idle-sleep from
// the dispatcher idles between sweeps that made no progress.
const DefaultDispatchInterval = 10 * time.Millisecond

// DefaultInstanceConfiguration builds an InstanceConfiguration with the
// reference timing constants, for callers that have no reason to deviate.
func DefaultInstanceConfiguration(systemId string, members Membership, self ProcessId, logger Logger) *InstanceConfiguration {
	return &InstanceConfiguration{
		SystemId:         systemId,
		Members:          members,
		Self:             self,
		Logger:           logger,
		HeartbeatDelay:   DefaultHeartbeatDelay,
		DispatchInterval: DefaultDispatchInterval,
	}
}
