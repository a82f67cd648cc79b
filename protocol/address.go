package protocol

import "fmt"

// AddressSlot names one of the address registers of the transceiver.
type AddressSlot uint8

const (
	SlotBase0 AddressSlot = iota
	SlotBase1
	SlotPrefixes
)

func (s AddressSlot) String() string {
	switch s {
	case SlotBase0:
		return "base0"
	case SlotBase1:
		return "base1"
	case SlotPrefixes:
		return "prefixes"
	}
	return fmt.Sprintf("slot(%d)", uint8(s))
}

// AddressSetter is the part of a transceiver the address table is applied to.
type AddressSetter interface {
	SetAddress(slot AddressSlot, addr []byte) error
}

// AddressTable holds the two base addresses and the eight pipe prefixes.
// Pipe 0 uses Base0, pipes 1-7 share Base1.
type AddressTable struct {
	base0      [BaseAddressSize]byte
	base1      [BaseAddressSize]byte
	prefixes   [PipeCount]byte
	configured bool
}

// NewAddressTable is a convenience wrapper around Configure.
func NewAddressTable(base0, base1, prefixes []byte) (*AddressTable, error) {
	t := &AddressTable{}
	if err := t.Configure(base0, base1, prefixes); err != nil {
		return nil, err
	}
	return t, nil
}

// Configure validates and stores the addresses. No transceiver is touched.
func (t *AddressTable) Configure(base0, base1, prefixes []byte) error {
	if len(base0) != BaseAddressSize {
		return &AddrError{Slot: SlotBase0, Err: ErrInvalidAddressLength}
	}
	if len(base1) != BaseAddressSize {
		return &AddrError{Slot: SlotBase1, Err: ErrInvalidAddressLength}
	}
	if len(prefixes) != PipeCount {
		return &AddrError{Slot: SlotPrefixes, Err: ErrInvalidAddressLength}
	}

	// Pipes 1-7 share a base, so a repeated prefix makes two pipes indistinguishable.
	// Pipe 0 only aliases another pipe when both bases are equal too.
	sameBase := string(base0) == string(base1)
	for i := 0; i < PipeCount; i++ {
		for j := i + 1; j < PipeCount; j++ {
			if prefixes[i] != prefixes[j] {
				continue
			}
			if i == 0 && !sameBase {
				continue
			}
			return &AddrError{Slot: SlotPrefixes, Err: fmt.Errorf("%w: pipes %d and %d", ErrAddressAlias, i, j)}
		}
	}

	copy(t.base0[:], base0)
	copy(t.base1[:], base1)
	copy(t.prefixes[:], prefixes)
	t.configured = true
	return nil
}

func (t *AddressTable) Configured() bool { return t.configured }

func (t *AddressTable) Base0() []byte { return append([]byte(nil), t.base0[:]...) }

func (t *AddressTable) Base1() []byte { return append([]byte(nil), t.base1[:]...) }

func (t *AddressTable) Prefixes() []byte { return append([]byte(nil), t.prefixes[:]...) }

// Apply pushes base0, base1 and the prefixes to the transceiver in that order.
// The first rejected slot stops the sequence.
func (t *AddressTable) Apply(s AddressSetter) error {
	if !t.configured {
		return ErrAddressNotConfigured
	}
	steps := []struct {
		slot AddressSlot
		addr []byte
	}{
		{SlotBase0, t.Base0()},
		{SlotBase1, t.Base1()},
		{SlotPrefixes, t.Prefixes()},
	}
	for _, st := range steps {
		if err := s.SetAddress(st.slot, st.addr); err != nil {
			return &AddrError{Slot: st.slot, Err: err}
		}
	}
	return nil
}

// Pipe returns the addressing view of a single pipe.
func (t *AddressTable) Pipe(index uint8) (Pipe, error) {
	if !t.configured {
		return Pipe{}, ErrAddressNotConfigured
	}
	if index >= PipeCount {
		return Pipe{}, ErrInvalidPipe
	}
	p := Pipe{Index: index, Prefix: t.prefixes[index]}
	if index == 0 {
		p.Base = t.base0
	} else {
		p.Base = t.base1
	}
	return p, nil
}

// PipeFor finds the pipe whose on-air address matches addr.
func (t *AddressTable) PipeFor(addr []byte) (Pipe, bool) {
	if !t.configured || len(addr) != AddressSize {
		return Pipe{}, false
	}
	for i := uint8(0); i < PipeCount; i++ {
		p, _ := t.Pipe(i)
		if p.Matches(addr) {
			return p, true
		}
	}
	return Pipe{}, false
}
