package core

import (
	"encoding/json"
	"fmt"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

// decodePayload reconstructs the concrete payload struct for every message
// type that actually travels over the wire. Everything else (BEB_BROADCAST,
// PL_SEND, UC_*, APP internals, ...) is local to one node and never
// serialized.
func decodePayload(t types.MessageType, raw json.RawMessage) (interface{}, error) {
	switch t {
	case types.EpfdHeartbeatRequest:
		var p types.EpfdHeartbeatRequestPayload
		return p, json.Unmarshal(raw, &p)
	case types.EpfdHeartbeatReply:
		var p types.EpfdHeartbeatReplyPayload
		return p, json.Unmarshal(raw, &p)
	case types.EcNewEpoch:
		var p types.EcNewEpochPayload
		return p, json.Unmarshal(raw, &p)
	case types.EcNack:
		var p types.EcNackPayload
		return p, json.Unmarshal(raw, &p)
	case types.EpRead:
		var p types.EpReadPayload
		return p, json.Unmarshal(raw, &p)
	case types.EpState:
		var p types.EpStatePayload
		return p, json.Unmarshal(raw, &p)
	case types.EpWrite:
		var p types.EpWritePayload
		return p, json.Unmarshal(raw, &p)
	case types.EpAccept:
		var p types.EpAcceptPayload
		return p, json.Unmarshal(raw, &p)
	case types.EpDecided:
		var p types.EpDecidedPayload
		return p, json.Unmarshal(raw, &p)
	default:
		return nil, fmt.Errorf("unrecognized wire message type %q", t)
	}
}
