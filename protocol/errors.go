package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrQueueFull            = errors.New("transmit queue full")
	ErrEmpty                = errors.New("no buffered payload")
	ErrInvalidAddressLength = errors.New("invalid address length")
	ErrAddressAlias         = errors.New("pipe prefixes alias each other")
	ErrAddressNotConfigured = errors.New("address table not configured")
	ErrInvalidPipe          = errors.New("invalid pipe (valid range: 0-7)")
	ErrInvalidConfig        = errors.New("invalid link configuration")
	ErrInvalidChannel       = errors.New("invalid channel (valid range: 0-125)")
	ErrInvalidFrame         = errors.New("invalid frame")
	ErrTimeout              = errors.New("operation timed out")
	ErrNotInitialised       = errors.New("transceiver not initialised")
)

// AddrError reports which address slot was rejected, either by validation or by the transceiver.
type AddrError struct {
	Slot AddressSlot
	Err  error
}

func (e *AddrError) Error() string {
	return fmt.Sprintf("address %s: %v", e.Slot, e.Err)
}

func (e *AddrError) Unwrap() error { return e.Err }

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
