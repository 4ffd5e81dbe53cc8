package orchestrator

import (
	"sync"

	"github.com/finchley/skilldock/internal/core"
)

// EventType discriminates operation events.
type EventType string

const (
	EventStarted        EventType = "started"
	EventProgress       EventType = "progress"
	EventCompleted      EventType = "completed"
	EventBatchCompleted EventType = "batchCompleted"
)

// Metadata correlates a job with the user intent that produced it. Used
// purely for presentation; the queue never inspects it.
type Metadata struct {
	BatchID    string
	BatchSize  int
	SkillNames []string
	Scope      core.Scope
	Agents     []string
	// Source records which surface initiated the batch ("registry",
	// "catalog", "auto-repair"). Presentation only.
	Source string
}

// Event is one entry in the operation event stream.
type Event struct {
	Type        EventType
	OperationID string
	Operation   core.OperationKind
	SkillName   string
	Metadata    *Metadata

	// Progress payload.
	Message string

	// Completed payload.
	Success      bool
	ErrorMessage string
	Cancelled    bool

	// BatchCompleted payload.
	Batch *BatchResult
}

// BatchResult aggregates the outcome of all jobs sharing a batch id.
type BatchResult struct {
	BatchID      string
	Total        int
	Success      bool
	FailedSkills []string
}

// Subscription is a handle to an event stream registration.
type Subscription struct {
	once    sync.Once
	dispose func()
}

// Dispose unregisters the subscriber. Safe to call more than once.
func (s *Subscription) Dispose() {
	s.once.Do(s.dispose)
}

// emitter fans events out to independently-disposable subscribers.
type emitter struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[int]func(Event))}
}

func (e *emitter) subscribe(fn func(Event)) *Subscription {
	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = fn
	e.mu.Unlock()

	return &Subscription{dispose: func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}}
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
