package protocol

import "fmt"

type EventID uint8

const (
	EventTxSuccess EventID = iota
	EventTxFailed
	EventRxReceived
)

func (id EventID) String() string {
	switch id {
	case EventTxSuccess:
		return "tx_success"
	case EventTxFailed:
		return "tx_failed"
	case EventRxReceived:
		return "rx_received"
	}
	return fmt.Sprintf("event(%d)", uint8(id))
}

// Event is raised by the transceiver from its interrupt context.
// TxAttempts counts the on-air attempts of the last transmission, retransmissions included.
type Event struct {
	ID         EventID
	TxAttempts uint32
}
