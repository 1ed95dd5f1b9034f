package interpreter

// Listener receives events.
type Listener func(Event)

// Emitter is a deferred publish/subscribe queue. Emit only enqueues; events
// reach listeners when Flush runs, after the interpreter has finished its
// current step. An Emitter is not safe for concurrent use.
type Emitter struct {
	listeners map[EventKind][]Listener
	wildcard  []Listener
	queue     []Event
	draining  bool
}

// NewEmitter creates an Emitter with no listeners.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[EventKind][]Listener)}
}

// On registers fn for events of one kind.
func (e *Emitter) On(kind EventKind, fn Listener) {
	e.listeners[kind] = append(e.listeners[kind], fn)
}

// OnAny registers fn for every event.
func (e *Emitter) OnAny(fn Listener) {
	e.wildcard = append(e.wildcard, fn)
}

// Emit queues ev for delivery on the next Flush.
func (e *Emitter) Emit(ev Event) {
	e.queue = append(e.queue, ev)
}

// Pending returns the number of queued events.
func (e *Emitter) Pending() int {
	return len(e.queue)
}

// Flush delivers queued events in order, including events queued by the
// listeners themselves. A Flush started from inside a listener returns
// immediately; the outer Flush delivers whatever it queued.
func (e *Emitter) Flush() {
	if e.draining {
		return
	}
	e.draining = true
	defer func() { e.draining = false }()

	for len(e.queue) > 0 {
		ev := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]

		for _, fn := range e.listeners[ev.Kind()] {
			fn(ev)
		}
		for _, fn := range e.wildcard {
			fn(ev)
		}
	}
	e.queue = nil
}
