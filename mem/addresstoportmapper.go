package mem

import "github.com/hachisim/hachi/sim"

// AddressToPortMapper helps a cache or an agent find the low module that
// holds the data at a certain address.
type AddressToPortMapper interface {
	Find(address uint64) sim.RemotePort
}

// SinglePortMapper is used when a unit is connected to only one low module.
type SinglePortMapper struct {
	Port sim.RemotePort
}

// Find simply returns the only low module connected.
func (f *SinglePortMapper) Find(address uint64) sim.RemotePort {
	return f.Port
}

// InterleavedAddressPortMapper helps find the low module when the low
// modules maintain an interleaved address space.
type InterleavedAddressPortMapper struct {
	UseAddressSpaceLimitation bool
	LowAddress                uint64
	HighAddress               uint64
	InterleavingSize          uint64
	LowModules                []sim.RemotePort
	ModuleForOtherAddresses   sim.RemotePort
}

// NewInterleavedAddressPortMapper creates a mapper for interleaved low
// modules.
func NewInterleavedAddressPortMapper(
	interleavingSize uint64,
) *InterleavedAddressPortMapper {
	return &InterleavedAddressPortMapper{
		InterleavingSize: interleavingSize,
		LowModules:       make([]sim.RemotePort, 0),
	}
}

// Find returns the low module that holds the data at the given address.
func (f *InterleavedAddressPortMapper) Find(address uint64) sim.RemotePort {
	if f.UseAddressSpaceLimitation &&
		(address >= f.HighAddress || address < f.LowAddress) {
		return f.ModuleForOtherAddresses
	}

	number := address / f.InterleavingSize % uint64(len(f.LowModules))

	return f.LowModules[number]
}

// BankedAddressPortMapper assigns low modules to equally sized, contiguous
// address banks.
type BankedAddressPortMapper struct {
	BankSize   uint64
	LowModules []sim.RemotePort
}

// NewBankedAddressPortMapper creates a mapper for banked low modules.
func NewBankedAddressPortMapper(bankSize uint64) *BankedAddressPortMapper {
	return &BankedAddressPortMapper{
		BankSize:   bankSize,
		LowModules: make([]sim.RemotePort, 0),
	}
}

// Find returns the low module that holds the data at the given address.
func (f *BankedAddressPortMapper) Find(address uint64) sim.RemotePort {
	i := address / f.BankSize

	return f.LowModules[i]
}
