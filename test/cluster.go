// Package test provides a cluster harness for exercising a full stack of
// consensus instances over real loopback TCP: goleak verification at
// teardown, a bounded wait before failing and dumping goroutine stacks, and
// one core.StartInstance per node.
package test

import (
	"fmt"
	"net"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/core"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/definition"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

// Node bundles one process's network and instance, enough to start, decide,
// and stop.
type Node struct {
	Self     types.ProcessId
	Network  core.Network
	Instance *core.Instance
}

// Cluster drives N nodes bound to free loopback ports, all participating in
// a single system-id.
type Cluster struct {
	T        *testing.T
	SystemId string
	Members  types.Membership
	Nodes    []*Node

	decisions []chan types.Value
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed reserving a free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// NewCluster binds size nodes and returns the harness without proposing
// anything yet; call Propose to start the instances for c.SystemId.
func NewCluster(t *testing.T, systemId string, size int) *Cluster {
	members := types.Membership{}
	ports := make([]int, size)
	for i := 0; i < size; i++ {
		ports[i] = freePort(t)
		members.Processes = append(members.Processes, types.ProcessId{Host: "127.0.0.1", Port: ports[i], Rank: i})
	}

	c := &Cluster{T: t, SystemId: systemId, Members: members}
	for i := 0; i < size; i++ {
		logger := definition.NewDefaultLogger()
		logger.ToggleDebug(false)
		network, err := core.NewTCPNetwork("127.0.0.1", ports[i], logger)
		if err != nil {
			t.Fatalf("failed binding node %d: %v", i, err)
		}
		c.Nodes = append(c.Nodes, &Node{Self: members.Processes[i], Network: network})
	}
	return c
}

// Propose starts one consensus instance per node, all proposing the same
// value, and keeps one channel per node that receives its decided value;
// AwaitAllDecide reads them.
func (c *Cluster) Propose(value []byte) {
	c.decisions = make([]chan types.Value, len(c.Nodes))
	for i, n := range c.Nodes {
		ch := make(chan types.Value, 1)
		c.decisions[i] = ch
		cfg := types.DefaultInstanceConfiguration(c.SystemId, c.Members, n.Self, definition.NewDefaultLogger())
		n.Instance = core.StartInstance(cfg, n.Network, types.NewValue(value), func(v types.Value) {
			ch <- v
		})
	}
}

// AwaitAllDecide blocks until every node has decided or the timeout elapses,
// and asserts every decided value matches.
func (c *Cluster) AwaitAllDecide(timeout time.Duration) {
	var first types.Value
	for i, ch := range c.decisions {
		select {
		case v := <-ch:
			if i == 0 {
				first = v
			} else if string(v.V) != string(first.V) {
				c.T.Errorf("node %d decided %q, expected %q to match node 0", i, v.V, first.V)
			}
		case <-time.After(timeout):
			c.T.Errorf("node %d never decided within %s", i, timeout)
		}
	}
}

// Shutdown stops every instance and closes every network, waiting up to 10
// seconds before failing and dumping goroutine stacks.
func (c *Cluster) Shutdown() {
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, n := range c.Nodes {
			wg.Add(1)
			go func(n *Node) {
				defer wg.Done()
				if n.Instance != nil {
					n.Instance.Stop()
				}
				n.Network.Close()
			}(n)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		c.T.Error("cluster failed to shut down in time")
		printStackTrace(c.T)
	}
}

func printStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Logf("%s", buf[:n])
}

// LabelFor returns a human-readable id for node i, used in test failure
// messages.
func (c *Cluster) LabelFor(i int) string {
	return fmt.Sprintf("%s/node-%d(:%d)", c.SystemId, i, c.Nodes[i].Self.Port)
}
