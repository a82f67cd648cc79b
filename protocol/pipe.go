package protocol

import "bytes"

// Pipe is a logical channel: a prefix byte in front of one of the two base addresses.
type Pipe struct {
	Index  uint8
	Prefix byte
	Base   [BaseAddressSize]byte
}

// Address returns the full on-air address, prefix first.
func (p Pipe) Address() []byte {
	addr := make([]byte, 0, AddressSize)
	addr = append(addr, p.Prefix)
	return append(addr, p.Base[:]...)
}

func (p Pipe) Matches(addr []byte) bool { return bytes.Equal(p.Address(), addr) }
