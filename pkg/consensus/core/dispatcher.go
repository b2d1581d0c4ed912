package core

import (
	"context"
	"sync"
	"time"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

// Abstraction is the capability every layer of the stack implements: given
// the head of the queue, claim it and return true, or leave it untouched and
// return false. The dispatcher tries every registered abstraction in
// registration order and stops at the first claim.
type Abstraction interface {
	Handle(message types.Message) bool
}

// Dispatcher drives a single consensus instance: one FIFO queue, one list of
// abstractions, one single-threaded step loop. Abstractions never call each other directly -- the only way to
// communicate is by enqueueing a new Message here.
type Dispatcher struct {
	systemId string
	logger   types.Logger

	mutex   sync.Mutex
	mailbox []types.Message

	// queue is only ever touched by the goroutine running Run, so it needs
	// no locking of its own.
	queue []types.Message

	abstractions []Abstraction

	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewDispatcher builds a dispatcher for one instance. Abstractions must be
// registered with Register before Run is called.
func NewDispatcher(cfg *types.InstanceConfiguration) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	interval := cfg.DispatchInterval
	if interval <= 0 {
		interval = types.DefaultDispatchInterval
	}
	return &Dispatcher{
		systemId: cfg.SystemId,
		logger:   cfg.Logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register appends an abstraction to the dispatch order. Abstractions
// register in dependency order -- PL first, APP/UC last -- so the
// first-match rule behaves like dispatch-by-type without the dispatcher
// needing to know about any type table.
func (d *Dispatcher) Register(a Abstraction) {
	d.abstractions = append(d.abstractions, a)
}

// Enqueue appends a message to the tail of the queue. Safe to call from any
// goroutine: the network listener and the EPFD timer both call this from
// outside the dispatch loop.
func (d *Dispatcher) Enqueue(message types.Message) {
	message.SystemId = d.systemId
	d.mutex.Lock()
	d.mailbox = append(d.mailbox, message)
	d.mutex.Unlock()
}

func (d *Dispatcher) drain() {
	d.mutex.Lock()
	if len(d.mailbox) > 0 {
		d.queue = append(d.queue, d.mailbox...)
		d.mailbox = d.mailbox[:0]
	}
	d.mutex.Unlock()
}

// step offers the queue's messages, in order, to every abstraction. The
// first claim removes that message and reports progress; an unclaimed
// message is skipped in place so the next message gets a chance.
func (d *Dispatcher) step() bool {
	d.drain()
	for i, m := range d.queue {
		for _, a := range d.abstractions {
			if a.Handle(m) {
				d.queue = append(d.queue[:i:i], d.queue[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Run is the single per-instance loop. It blocks until Stop is called.
func (d *Dispatcher) Run() {
	defer d.logger.Debugf("dispatcher for %s stopped", d.systemId)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}
		if !d.step() {
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(d.interval):
			}
		}
	}
}

// Stop tears down the dispatch loop. It does not drain pending messages.
func (d *Dispatcher) Stop() {
	d.cancel()
}

// QueueDepth reports the current number of undelivered messages, used by the
// metrics package.
func (d *Dispatcher) QueueDepth() int {
	d.mutex.Lock()
	pending := len(d.mailbox)
	d.mutex.Unlock()
	return len(d.queue) + pending
}
