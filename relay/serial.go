package relay

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// OpenSerial opens the host side of the relay link.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        port,
		Baud:        baud,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return p, nil
}
