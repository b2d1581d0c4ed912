// Package hub implements the node-side half of the external hub protocol
// described only at the interface level: on startup a node
// registers with the hub, the hub streams one AppPropose per instance it
// wants the node to run, and the node reports back one AppDecide per
// decision. The hub process itself -- what assigns system-ids, how it picks
// a proposal value -- is out of scope; only the wire contract lives here.
package hub

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

// frame is the hub-facing counterpart of types.NetworkEnvelope: every value
// exchanged with the hub is one length-prefixed, JSON-encoded frame.
type frame struct {
	Type    types.MessageType
	Payload json.RawMessage
}

// Proposal is one AppPropose instance the hub asked this node to run.
type Proposal struct {
	SystemId string
	Members  types.Membership
	Value    types.Value
}

// Client is the node-side hub connection.
type Client struct {
	conn   net.Conn
	logger types.Logger

	writeMutex sync.Mutex
}

// Dial connects to the hub and registers this node under owner/index, as
// required before anything else happens.
func Dial(hubHost string, hubPort int, owner string, index int, logger types.Logger) (*Client, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", hubHost, hubPort))
	if err != nil {
		return nil, fmt.Errorf("dial hub %s:%d: %w", hubHost, hubPort, err)
	}
	c := &Client{conn: conn, logger: logger}
	body, err := json.Marshal(types.AppRegistrationPayload{Owner: owner, Index: index})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("marshal registration: %w", err)
	}
	if err := c.write(frame{Type: types.AppRegistration, Payload: body}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register with hub: %w", err)
	}
	return c, nil
}

func (c *Client) write(f frame) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	lengthBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBuf, uint32(len(data)))
	if _, err := c.conn.Write(lengthBuf); err != nil {
		return err
	}
	_, err = c.conn.Write(data)
	return err
}

func (c *Client) readFrame() (frame, error) {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, lengthBuf); err != nil {
		return frame{}, err
	}
	length := binary.BigEndian.Uint32(lengthBuf)
	body := make([]byte, length)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return frame{}, err
	}
	var f frame
	if err := json.Unmarshal(body, &f); err != nil {
		return frame{}, err
	}
	return f, nil
}

// Proposals streams one Proposal per AppPropose frame the hub sends, until
// the connection closes or a malformed frame is seen.
func (c *Client) Proposals() <-chan Proposal {
	out := make(chan Proposal)
	go func() {
		defer close(out)
		for {
			f, err := c.readFrame()
			if err != nil {
				if err != io.EOF {
					c.logger.Warnf("hub: connection read failed: %v", err)
				}
				return
			}
			if f.Type != types.AppPropose {
				c.logger.Warnf("hub: unexpected frame type %s, dropping", f.Type)
				continue
			}
			var payload types.AppProposePayload
			if err := json.Unmarshal(f.Payload, &payload); err != nil {
				c.logger.Warnf("hub: malformed propose frame: %v", err)
				continue
			}
			out <- Proposal{SystemId: payload.SystemId, Members: payload.Members, Value: payload.Value}
		}
	}()
	return out
}

// Decide reports a decision back to the hub as an AppDecide frame.
func (c *Client) Decide(systemId string, value types.Value) error {
	body, err := json.Marshal(types.AppDecidePayload{SystemId: systemId, Value: value})
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	return c.write(frame{Type: types.AppDecide, Payload: body})
}

// Close closes the hub connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
