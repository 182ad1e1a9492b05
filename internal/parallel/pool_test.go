package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestPool_Create(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after creation")
	}
}

func TestPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -3} {
		pool := NewPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewPool(%d).Workers() = %d, want %d", n, got, want)
		}
		pool.Close()
	}
}

func TestPool_PhaseRunsEveryInvocationOnce(t *testing.T) {
	tests := []struct {
		name        string
		workers     int
		invocations int
	}{
		{"one worker", 1, 256},
		{"even split", 4, 256},
		{"uneven split", 3, 64},
		{"more workers than work", 16, 5},
		{"single invocation", 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(tt.workers)
			defer pool.Close()

			hits := make([]atomic.Int32, tt.invocations)
			if !pool.Phase(tt.invocations, func(id int) { hits[id].Add(1) }) {
				t.Fatal("Phase returned false on a running pool")
			}
			for i := range hits {
				if n := hits[i].Load(); n != 1 {
					t.Errorf("invocation %d ran %d times, want 1", i, n)
				}
			}
		})
	}
}

func TestPool_PhasesAreOrdered(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	const n = 256
	shared := make([]int, n)
	pool.Phase(n, func(id int) { shared[id] = id })

	// Every invocation reads a slot written by a different invocation in
	// the previous phase.
	sums := make([]int, n)
	pool.Phase(n, func(id int) { sums[id] = shared[(id+1)%n] })

	for i := range sums {
		if want := (i + 1) % n; sums[i] != want {
			t.Fatalf("sums[%d] = %d, want %d", i, sums[i], want)
		}
	}
}

func TestPool_PhaseEmpty(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	if !pool.Phase(0, func(int) { t.Error("must not run") }) {
		t.Error("empty phase on running pool should report true")
	}
}

func TestPool_Close(t *testing.T) {
	pool := NewPool(2)
	pool.Close()
	pool.Close() // idempotent

	if pool.IsRunning() {
		t.Error("pool should not be running after Close")
	}
	if pool.Phase(8, func(int) { t.Error("must not run after Close") }) {
		t.Error("Phase after Close should report false")
	}
}

func TestPool_PhaseRacingClose(t *testing.T) {
	const n = 256
	for round := range 200 {
		pool := NewPool(4)
		hits := make([]atomic.Int32, n)

		result := make(chan bool, 1)
		go func() {
			result <- pool.Phase(n, func(id int) { hits[id].Add(1) })
		}()
		pool.Close()

		if !<-result {
			continue
		}
		for i := range hits {
			if got := hits[i].Load(); got != 1 {
				t.Fatalf("round %d: Phase reported true but invocation %d ran %d times", round, i, got)
			}
		}
	}
}
