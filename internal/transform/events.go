package transform

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/graphloom/pkg/models"
)

// Emitter delivers ordered events for one run. Delivery is serialised: the
// sink is never invoked concurrently, and sequence numbers are strictly
// monotonic per run.
type Emitter struct {
	runID string
	sink  models.EventSink
	seq   atomic.Uint64
	mu    sync.Mutex

	nowFunc func() time.Time
}

// NewEmitter creates an emitter for one run. A nil sink discards events.
func NewEmitter(runID string, sink models.EventSink) *Emitter {
	return &Emitter{runID: runID, sink: sink, nowFunc: time.Now}
}

// Emit stamps the event with the run id, a monotonic sequence number, and
// the current time, then delivers it.
func (e *Emitter) Emit(event models.Event) {
	if e.sink == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	event.RunID = e.runID
	event.Sequence = e.seq.Add(1)
	event.Time = e.nowFunc()
	e.sink(event)
}

// RunID returns the run this emitter stamps onto events.
func (e *Emitter) RunID() string { return e.runID }
