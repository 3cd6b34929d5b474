package active

import (
	"runtime"
	"sync"

	"github.com/devitrification/hoomd-blue/neighbor"
)

// serialThreshold is the minimum group size to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const serialThreshold = 64

// scratch holds per-worker reusable buffers.
type scratch struct {
	neighbors []neighbor.Neighbor
}

// chunk is a range of group members for one worker, with the kernel to run.
type chunk struct {
	start, end int
	fn         func(start, end int, sc *scratch)
}

// pool runs per-particle kernels over the group with persistent workers.
// Kernels read snapshots and write intents only, so chunk boundaries and
// completion order cannot affect the result.
type pool struct {
	numWorkers int
	scratches  []scratch

	workChan chan chunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newPool() *pool {
	numWorkers := runtime.GOMAXPROCS(0)
	scratches := make([]scratch, numWorkers)
	for i := range scratches {
		scratches[i].neighbors = make([]neighbor.Neighbor, 0, 64)
	}
	return &pool{numWorkers: numWorkers, scratches: scratches}
}

func (p *pool) start() {
	if p.running {
		return
	}
	p.workChan = make(chan chunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *pool) stop() {
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *pool) worker(id int) {
	defer p.wg.Done()
	sc := &p.scratches[id]

	for {
		select {
		case <-p.stopChan:
			return
		case c, ok := <-p.workChan:
			if !ok {
				return
			}
			c.fn(c.start, c.end, sc)
			p.doneChan <- struct{}{}
		}
	}
}

// run applies fn over [0, n), serial below the threshold.
func (p *pool) run(n int, fn func(start, end int, sc *scratch)) {
	if n == 0 {
		return
	}
	if n < serialThreshold || p.numWorkers < 2 {
		fn(0, n, &p.scratches[0])
		return
	}
	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- chunk{start: start, end: end, fn: fn}
		dispatched++
	}
	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
