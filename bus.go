package twowire

import (
	"context"
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C controller is busy (transaction in flight)")

var (
	// ErrBusTimeout signals that a bounded status poll ran out before the awaited flag showed up.
	ErrBusTimeout = errors.New("bus timeout")
	// ErrOverflowRequest signals that a read asked for more bytes than the sink can take.
	ErrOverflowRequest = errors.New("read request exceeds sink capacity")
	// ErrProtocolViolation signals that the controller reported status flags out of the expected order.
	ErrProtocolViolation = errors.New("protocol violation")
	ErrInvalidAddress    = errors.New("invalid 7-bit address")
	ErrInvalidLength     = errors.New("invalid transfer length")
	// ErrNACK signals that the peer did not acknowledge a data byte.
	ErrNACK = errors.New("NACK received")
	// ErrNoSuchDevice signals that no device acknowledged the address phase.
	ErrNoSuchDevice = errors.New("no such device")
)

// ByteSink is the destination of received bytes. The sequencer only pushes;
// draining is someone else's business.
type ByteSink interface {
	Push(b byte) error
	// Space returns how many more bytes the sink accepts right now.
	Space() int
}

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// Bus is implemented by every backend able to run addressed transactions:
// the register-level master, the host kernel bus and the USB bridge.
type Bus interface {
	AddressableReader
	AddressableWriter
}
