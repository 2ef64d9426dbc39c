// Package adapter drives I2C buses through USB bridges, so the tool can talk
// to real devices from a workstation.
package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/twowire"
	"github.com/mklimuk/twowire/busctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const (
	reportSize = 64
	// largest transfer carried by a single report
	maxTransfer = 60
	// internal clock the speed divider applies to
	bridgeClockHz = 12_000_000
)

const (
	cmdStatusSetParams = 0x10
	cmdWriteData       = 0x90
	cmdReadData        = 0x91
	cmdGetReadData     = 0x40
)

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")

var _ twowire.Bus = &MCP2221{}

// Device is an opened HID interface of the bridge.
type Device interface {
	io.ReadWriteCloser
}

// Opener opens the index-th bridge connected to the host.
type Opener func(index int) (Device, error)

type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	index        int
	open         Opener
	log          *slog.Logger
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"address"`
	LastWriteRequestedSize uint16 `yaml:"requested"`
	LastWriteSentSize      uint16 `yaml:"sent"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Opt func(*MCP2221)

// WithDeviceIndex selects a bridge when more than one is plugged in.
func WithDeviceIndex(i int) MCP2221Opt {
	return func(d *MCP2221) {
		d.index = i
	}
}

func WithOpener(o Opener) MCP2221Opt {
	return func(d *MCP2221) {
		d.open = o
	}
}

// WithResponseWait sets how long the bridge gets to prepare a response report.
func WithResponseWait(wait time.Duration) MCP2221Opt {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func WithLogger(l *slog.Logger) MCP2221Opt {
	return func(d *MCP2221) {
		d.log = l
	}
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	d := &MCP2221{
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
		index:        -1,
		open:         openHID,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enumerate lists the bridges connected to the host.
func Enumerate() []hid.DeviceInfo {
	return hid.Enumerate(VendorID, ProductID)
}

func openHID(index int) (Device, error) {
	devs := Enumerate()
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	if index < 0 {
		if len(devs) > 1 {
			return nil, fmt.Errorf("ambiguous device identification: %d bridges connected", len(devs))
		}
		index = 0
	}
	if index >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", index)
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

func (d *MCP2221) String() string {
	if d.index < 0 {
		return "mcp2221"
	}
	return fmt.Sprintf("mcp2221-%d", d.index)
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := checkTransfer(address, len(buffer)); err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		d.log.Debug("adapter busy")
		return twowire.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) == 0 {
		return fmt.Errorf("read from %x: %w", address, twowire.ErrInvalidLength)
	}
	if err := checkTransfer(address, len(buffer)); err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdReadData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		return twowire.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetReadData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("reading from %x: %w", address, twowire.ErrNoSuchDevice)
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d: %w", len(buffer), d.response[3], twowire.ErrProtocolViolation)
	}
	copy(buffer, d.response[4:])
	return nil
}

// Tx makes the bridge usable as a periph bus. The bridge has no combined
// transfer, so a write and a read run as two transactions.
func (d *MCP2221) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("tx to %#x: %w", addr, twowire.ErrInvalidAddress)
	}
	ctx := context.Background()
	if len(w) > 0 || len(r) == 0 {
		if err := d.WriteToAddr(ctx, byte(addr), w); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	return d.ReadFromAddr(ctx, byte(addr), r)
}

// SetSpeed programs the bridge clock divider.
func (d *MCP2221) SetSpeed(f physic.Frequency) error {
	divider, err := speedDivider(f)
	if err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	d.request[3] = 0x20
	d.request[4] = divider
	if err := d.send(context.Background()); err != nil {
		return fmt.Errorf("set speed command failed: %w", err)
	}
	if d.response[3] != 0x20 {
		return fmt.Errorf("speed %s not accepted (bus transfer in progress): %w", f, ErrCommandFailed)
	}
	return nil
}

func speedDivider(f physic.Frequency) (byte, error) {
	hz := int64(f / physic.Hertz)
	if hz < 47_000 || hz > 400_000 {
		return 0, fmt.Errorf("speed %s out of the bridge range 47kHz..400kHz: %w", f, ErrCommandUnsupported)
	}
	return byte(bridgeClockHz/hz - 3), nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels whatever transfer the bridge engine is stuck in.
func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	d.request[2] = 0x10
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("cancel request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev, err := d.open(d.index)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			d.log.Warn("could not close adapter", "error", err)
		}
	}()
	verbose := busctx.IsVerbose(ctx)
	if verbose {
		d.log.Debug("sending message to adapter", "report", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if d.responseWait > 0 {
		time.Sleep(d.responseWait)
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		d.log.Debug("read message from adapter", "report", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

func checkTransfer(address byte, n int) error {
	if address > 0x7F {
		return fmt.Errorf("address %#x: %w", address, twowire.ErrInvalidAddress)
	}
	if n > maxTransfer {
		return fmt.Errorf("%d bytes exceed a single bridge transfer: %w", n, twowire.ErrInvalidLength)
	}
	return nil
}
