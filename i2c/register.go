package i2c

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/mklimuk/twowire/master"
)

// masterCloser lets a Master be handed out by the registry. Closing it
// releases the bus but leaves the controller enabled for the next opener.
type masterCloser struct {
	*master.Master
}

func (c masterCloser) Close() error {
	return c.Master.Release(context.Background())
}

// Register publishes m in the periph registry under name, so periph device
// drivers and Open can reach it.
func Register(name string, m *master.Master) error {
	err := i2creg.Register(name, nil, -1, func() (i2c.BusCloser, error) {
		return masterCloser{Master: m}, nil
	})
	if err != nil {
		return fmt.Errorf("could not register %s: %w", name, err)
	}
	return nil
}

func Unregister(name string) error {
	return i2creg.Unregister(name)
}
