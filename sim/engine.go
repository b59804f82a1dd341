package sim

// A TimeTeller reports the current simulated time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// An EventScheduler schedules future events.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler runs cleanup or reporting actions after the
// simulation completes.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine drives a discrete-event simulation by processing scheduled
// events in time order.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run processes events until none remain or the engine is terminated.
	Run() error

	// Pause suspends event processing until Continue is called.
	Pause()

	// Continue resumes a paused engine.
	Continue()

	// RegisterSimulationEndHandler adds a handler to run when the
	// simulation finishes.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished invokes all registered SimulationEndHandlers.
	Finished()
}
