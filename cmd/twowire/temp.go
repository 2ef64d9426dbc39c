package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"tinygo.org/x/drivers/tmp102"

	"github.com/mklimuk/twowire/cmd/twowire/console"
	"github.com/mklimuk/twowire/sensor"
)

var tempCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "read a temperature sensor (tmp102, tc74, shtc3, hih6021)",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "sensor",
			Aliases: []string{"s"},
			Value:   "tmp102",
		},
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "sensor address, defaults to the part's fixed address",
		},
	},
	Action: func(c *cli.Context) error {
		s, err := openSession(settings)
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		defer s.Close()
		kind := c.String("sensor")
		if kind == "tmp102" {
			addr := uint8(tmp102.Address)
			if c.IsSet("addr") {
				if addr, err = parseAddress(c.String("addr")); err != nil {
					return console.Exit(1, "%s", err)
				}
			}
			milli, err := readTemperature(s, addr)
			if err != nil {
				return console.Exit(1, "error getting temperature read: %s", console.Red(err))
			}
			console.PInfof(console.PictoThermometer, "%s", console.White(formatMilli(milli)))
			return nil
		}
		th, err := thermometer(s, kind, c.String("addr"))
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		temp, err := th.Temperature(c.Context)
		if err != nil {
			return console.Exit(1, "error getting temperature read: %s", console.Red(err))
		}
		console.PInfof(console.PictoThermometer, "%s", console.White(fmt.Sprintf("%.2f°C", temp)))
		return nil
	},
}

func readTemperature(s *session, addr uint8) (int32, error) {
	dev := tmp102.New(s.bus)
	dev.Configure(tmp102.Config{Address: addr})
	if !dev.Connected() {
		return 0, fmt.Errorf("no TMP102 at 0x%02x", addr)
	}
	return dev.ReadTemperature()
}

// thermometer builds a driver for the named part. Only the TC74 comes in
// several address variants.
func thermometer(s *session, kind, addr string) (sensor.Thermometer, error) {
	switch kind {
	case "tc74":
		if addr == "" {
			return sensor.NewTC74(s.bus), nil
		}
		a, err := parseAddress(addr)
		if err != nil {
			return nil, err
		}
		return sensor.NewTC74(s.bus, sensor.WithAddress(a)), nil
	case "shtc3":
		return sensor.NewSHTC3(s.bus), nil
	case "hih6021":
		return sensor.NewHIH6021(s.bus), nil
	}
	return nil, fmt.Errorf("unknown sensor %q", kind)
}

func measure(ctx context.Context, s *session, kind string) (string, error) {
	th, err := thermometer(s, kind, "")
	if err != nil {
		return "", err
	}
	temp, err := th.Temperature(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%.2f°C", temp), nil
}

func formatMilli(milli int32) string {
	return fmt.Sprintf("%.2f°C", float64(milli)/1000)
}
