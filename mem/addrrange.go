package mem

// An AddrRange is a contiguous range of addresses. Low is inclusive, High is
// exclusive.
type AddrRange struct {
	Low, High uint64
}

// Contains returns true if the address falls in the range.
func (r AddrRange) Contains(addr uint64) bool {
	return addr >= r.Low && addr < r.High
}

// A LowModule is a device that serves memory accesses, such as a cache or a
// memory controller.
type LowModule interface {
	// AddressRanges returns the address ranges the device currently serves.
	AddressRanges() []AddrRange

	// AccessFunctional performs the access immediately, without modeling
	// timing.
	AccessFunctional(req AccessReq) AccessRsp
}

// An AddressRangeListener is notified when the address ranges served by a
// low module change. Devices that sit between a low module and its users,
// such as caches, must pass the notification on to their own listeners.
type AddressRangeListener interface {
	NotifyAddressRangesChanged(lm LowModule)
}
