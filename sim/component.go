package sim

import "sync"

// A Named object carries a name. Names are hierarchical, with levels
// separated by dots.
type Named interface {
	Name() string
}

// A Component is a simulated element that can handle events and exchange
// messages with other components through its ports.
type Component interface {
	Named
	Handler
	Hookable
	PortOwner

	// NotifyRecv is called when a message lands in the incoming buffer of
	// one of the component's ports.
	NotifyRecv(port Port)

	// NotifyPortFree is called when one of the component's ports frees a
	// slot in its outgoing buffer.
	NotifyPortFree(port Port)
}

// ComponentBase provides the shared fields and methods of components.
type ComponentBase struct {
	HookableBase
	*PortOwnerBase

	sync.Mutex
	name string
}

// NewComponentBase creates a new ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	NameMustBeValid(name)

	return &ComponentBase{
		name:          name,
		PortOwnerBase: NewPortOwnerBase(),
	}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
