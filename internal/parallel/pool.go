// Package parallel runs the invocations of an emulated compute workgroup
// on a pool of goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed set of worker goroutines executing workgroup phases.
//
// Each worker owns a queue and steals from the others when its own queue
// is empty, so uneven invocations still spread across all workers.
//
// A call to Phase returns only after every invocation of the phase has
// finished. Consecutive phases therefore behave like code separated by a
// workgroup barrier: writes of one phase are visible to the next.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int

	// queues holds per-worker work queues.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to exit.
	wg sync.WaitGroup

	// mu makes enqueueing a phase and closing the pool exclusive, so a
	// chunk is either queued before done closes (and drained) or not at all.
	mu sync.RWMutex

	running atomic.Bool
}

// NewPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func (p *Pool) drain(q chan func()) {
	for {
		select {
		case work := <-q:
			work()
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue, or returns nil.
func (p *Pool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// Phase runs fn for every invocation id in [0, invocations) and waits for
// all of them. Invocations are split into one contiguous chunk per worker.
// It reports false without running anything if the pool is closed; when
// it reports true every invocation has run.
func (p *Pool) Phase(invocations int, fn func(id int)) bool {
	p.mu.RLock()
	if !p.running.Load() {
		p.mu.RUnlock()
		return false
	}
	if invocations <= 0 {
		p.mu.RUnlock()
		return true
	}

	chunks := min(p.workers, invocations)
	per := (invocations + chunks - 1) / chunks

	var phase sync.WaitGroup
	for c := range chunks {
		lo := c * per
		hi := min(lo+per, invocations)
		if lo >= hi {
			break
		}
		phase.Add(1)
		work := func() {
			defer phase.Done()
			for id := lo; id < hi; id++ {
				fn(id)
			}
		}
		p.queues[c%p.workers] <- work
	}
	p.mu.RUnlock()

	phase.Wait()
	return true
}

// Close stops the pool after queued work has drained. It is safe to call
// more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still accepts phases.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}
