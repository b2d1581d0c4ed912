package core

import "sync"

// Invoker abstracts how goroutines get spawned. The process-wide instance
// returned by InvokerInstance tracks them in a WaitGroup, so Stop blocks
// until every spawned function returns.
type Invoker interface {
	// Spawn runs f on its own goroutine.
	Spawn(f func())

	// Stop blocks until every spawned goroutine has returned.
	Stop()
}

// defaultInvoker is the process-wide Invoker used outside of tests.
type defaultInvoker struct {
	group sync.WaitGroup
}

func (d *defaultInvoker) Spawn(f func()) {
	d.group.Add(1)
	go func() {
		defer d.group.Done()
		f()
	}()
}

func (d *defaultInvoker) Stop() {
	d.group.Wait()
}

var (
	instance     Invoker
	instanceOnce sync.Once
)

// InvokerInstance returns the process-wide singleton Invoker.
func InvokerInstance() Invoker {
	instanceOnce.Do(func() {
		instance = &defaultInvoker{}
	})
	return instance
}
