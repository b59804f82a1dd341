package sim

// VTimeInSec is a simulated timestamp, measured in seconds.
type VTimeInSec float64

// An Event is a state change scheduled to happen at a future simulated time.
type Event interface {
	// Time returns the time at which the event takes place.
	Time() VTimeInSec

	// Handler returns the handler that processes the event.
	Handler() Handler

	// IsSecondary marks events that run only after all primary events
	// scheduled at the same time have been processed.
	IsSecondary() bool
}

// A Handler processes events.
//
// An event belongs to exactly one handler: it is scheduled by that handler
// and may only mutate that handler's state when processed. The one exception
// is the kick-start of a simulation, where a driver schedules the first
// event of each component.
type Handler interface {
	Handle(e Event) error
}

// EventBase carries the fields shared by all concrete event types. Concrete
// events embed it and add their payload.
type EventBase struct {
	ID        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// NewEventBase creates an EventBase with a freshly generated ID.
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	return &EventBase{
		ID:      GetIDGenerator().Generate(),
		time:    t,
		handler: handler,
	}
}

// Time returns the time at which the event takes place.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler that processes the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns whether the event yields to same-time primary events.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}
