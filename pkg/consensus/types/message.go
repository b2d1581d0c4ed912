package types

import "encoding/json"

// MessageType enumerates the complete recognized set of message variants
// exchanged internally between abstractions and, for NetworkMessage, over
// the wire between nodes.
type MessageType string

const (
	NetworkMessage MessageType = "NETWORK_MESSAGE"

	AppRegistration MessageType = "APP_REGISTRATION"
	AppPropose      MessageType = "APP_PROPOSE"
	AppDecide       MessageType = "APP_DECIDE"

	UcPropose MessageType = "UC_PROPOSE"
	UcDecide  MessageType = "UC_DECIDE"

	EcNewEpoch   MessageType = "EC_NEW_EPOCH"
	EcNack       MessageType = "EC_NACK"
	EcStartEpoch MessageType = "EC_START_EPOCH"

	EpPropose MessageType = "EP_PROPOSE"
	EpRead    MessageType = "EP_READ"
	EpState   MessageType = "EP_STATE"
	EpWrite   MessageType = "EP_WRITE"
	EpAccept  MessageType = "EP_ACCEPT"
	EpDecided MessageType = "EP_DECIDED"
	EpDecide  MessageType = "EP_DECIDE"
	EpAbort   MessageType = "EP_ABORT"
	EpAborted MessageType = "EP_ABORTED"

	BebBroadcast MessageType = "BEB_BROADCAST"
	BebDeliver   MessageType = "BEB_DELIVER"

	PlSend    MessageType = "PL_SEND"
	PlDeliver MessageType = "PL_DELIVER"

	EldTrust MessageType = "ELD_TRUST"

	EpfdTimeout         MessageType = "EPFD_TIMEOUT"
	EpfdHeartbeatRequest MessageType = "EPFD_HEARTBEAT_REQUEST"
	EpfdHeartbeatReply   MessageType = "EPFD_HEARTBEAT_REPLY"
	EpfdSuspect          MessageType = "EPFD_SUSPECT"
	EpfdRestore          MessageType = "EPFD_RESTORE"
)

// Message is the tagged union every abstraction enqueues onto the
// dispatcher's FIFO queue. Only Type and Payload are mandatory. SystemId
// names the owning instance; the network routes inbound envelopes by it.
// AbstractionId is a routing hint carried for observability only -- it is
// never used to disambiguate dispatch, only message-type is.
type Message struct {
	Type          MessageType
	SystemId      string
	AbstractionId string
	Payload       interface{}
}

// --- payload structs, one per MessageType above that carries data ---

type AppRegistrationPayload struct {
	Owner string
	Index int
}

type AppProposePayload struct {
	SystemId string
	Members  Membership
	Value    Value
}

type AppDecidePayload struct {
	SystemId string
	Value    Value
}

type UcProposePayload struct {
	Value Value
}

type UcDecidePayload struct {
	Value Value
}

type EcNewEpochPayload struct {
	Ets int
}

type EcNackPayload struct{}

type EcStartEpochPayload struct {
	NewTs int
	NewL  ProcessId
}

type EpProposePayload struct {
	Value Value
}

type EpReadPayload struct{}

type EpStatePayload struct {
	ValueTimestamp int
	Value          Value
}

type EpWritePayload struct {
	Value Value
}

type EpAcceptPayload struct{}

type EpDecidedPayload struct {
	Value Value
}

type EpDecidePayload struct {
	Ets   int
	Value Value
}

type EpAbortPayload struct{}

type EpAbortedPayload struct {
	Ets            int
	ValueTimestamp int
	Value          Value
}

type BebBroadcastPayload struct {
	Inner Message
}

type BebDeliverPayload struct {
	Sender ProcessId
	Inner  Message
}

type PlSendPayload struct {
	Destination ProcessId
	Inner       Message
}

type PlDeliverPayload struct {
	Sender ProcessId
	Inner  Message
}

type EldTrustPayload struct {
	Process ProcessId
}

type EpfdTimeoutPayload struct{}

type EpfdHeartbeatRequestPayload struct{}

type EpfdHeartbeatReplyPayload struct{}

type EpfdSuspectPayload struct {
	Process ProcessId
}

type EpfdRestorePayload struct {
	Process ProcessId
}

// NetworkEnvelope is the wire-format counterpart of a NetworkMessage: every
// outbound TCP payload is a 4-byte big-endian length prefix followed by one
// json-encoded NetworkEnvelope. The receiver builds the sender's ProcessId
// from SenderHost/SenderListeningPort alone; it does not look the sender up
// in the membership list, so that ProcessId carries a zero Rank.
type NetworkEnvelope struct {
	Type                 MessageType
	SystemId             string
	AbstractionId        string
	SenderHost           string
	SenderListeningPort  int
	ProtocolVersion      string
	Payload              json.RawMessage
}
