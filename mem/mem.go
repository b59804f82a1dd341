// Package mem defines the protocol that memory components communicate with.
package mem

// Capacity units.
const (
	B = 1 << (10 * iota)
	KB
	MB
	GB
)
