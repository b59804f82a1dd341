package sim

// A Domain is a group of tightly connected components that expose a set of
// ports to the outside.
type Domain struct {
	*PortOwnerBase

	name string
}

// NewDomain creates a new Domain.
func NewDomain(name string) *Domain {
	NameMustBeValid(name)

	return &Domain{
		name:          name,
		PortOwnerBase: NewPortOwnerBase(),
	}
}

// Name returns the name of the domain.
func (d Domain) Name() string {
	return d.name
}
