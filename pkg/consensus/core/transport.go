package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

// Inbox is how Network hands a decoded message, along with the resolved
// sender identity, to the instance that owns it.
type Inbox interface {
	Deliver(sender types.ProcessId, message types.Message)
}

// Network is the per-node transport shared by every consensus instance this
// process hosts. It owns the single listening socket, parses the
// length-prefixed wire envelope, and routes each decoded
// message to the instance identified by system-id. Outbound sends open one
// short-lived TCP connection each, the reference strategy for a perfect
// link.
type Network interface {
	Send(dest types.ProcessId, systemId, abstractionId string, inner types.Message) error
	Register(systemId string, inbox Inbox)
	Unregister(systemId string)
	Close() error
}

type tcpNetwork struct {
	host     string
	port     int
	logger   types.Logger
	listener net.Listener
	invoker  Invoker

	mutex   sync.RWMutex
	inboxes map[string]Inbox
}

// NewTCPNetwork binds the node's single listening socket and starts
// accepting connections on a dedicated goroutine.
func NewTCPNetwork(host string, port int, logger types.Logger) (Network, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("bind %s:%d: %w", host, port, err)
	}
	n := &tcpNetwork{
		host:     host,
		port:     port,
		logger:   logger,
		listener: listener,
		invoker:  InvokerInstance(),
		inboxes:  make(map[string]Inbox),
	}
	n.invoker.Spawn(n.acceptLoop)
	return n, nil
}

func (n *tcpNetwork) Register(systemId string, inbox Inbox) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.inboxes[systemId] = inbox
}

func (n *tcpNetwork) Unregister(systemId string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	delete(n.inboxes, systemId)
}

func (n *tcpNetwork) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			return
		}
		n.invoker.Spawn(func() { n.handleConn(conn) })
	}
}

func (n *tcpNetwork) handleConn(conn net.Conn) {
	defer conn.Close()

	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lengthBuf); err != nil {
		return
	}
	length := binary.BigEndian.Uint32(lengthBuf)
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		n.logger.Warnf("failed reading envelope body: %v", err)
		return
	}

	var env types.NetworkEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		n.logger.Warnf("malformed envelope: %v", err)
		return
	}

	if !types.CompatibleVersion(env.ProtocolVersion) {
		n.logger.Warnf("dropping message on incompatible protocol version %s", env.ProtocolVersion)
		return
	}

	decoded, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		n.logger.Warnf("dropping unrecognized message: %v", err)
		return
	}

	n.mutex.RLock()
	inbox, ok := n.inboxes[env.SystemId]
	n.mutex.RUnlock()
	if !ok {
		n.logger.Debugf("no instance registered for system %s, dropping", env.SystemId)
		return
	}

	sender := types.ProcessId{Host: env.SenderHost, Port: env.SenderListeningPort}
	inbox.Deliver(sender, types.Message{
		Type:          env.Type,
		SystemId:      env.SystemId,
		AbstractionId: env.AbstractionId,
		Payload:       decoded,
	})
}

func (n *tcpNetwork) Send(dest types.ProcessId, systemId, abstractionId string, inner types.Message) error {
	body, err := json.Marshal(inner.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	env := types.NetworkEnvelope{
		Type:                inner.Type,
		SystemId:            systemId,
		AbstractionId:       abstractionId,
		SenderHost:          n.host,
		SenderListeningPort: n.port,
		ProtocolVersion:     types.ProtocolVersion,
		Payload:             body,
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", dest.Host, dest.Port))
	if err != nil {
		return fmt.Errorf("dial %s: %w", dest, err)
	}
	defer conn.Close()

	lengthBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBuf, uint32(len(envBytes)))
	if _, err := conn.Write(lengthBuf); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := conn.Write(envBytes); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

func (n *tcpNetwork) Close() error {
	return n.listener.Close()
}
