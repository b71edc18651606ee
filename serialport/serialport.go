package serialport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/openprop/go-proploader/loader"
)

// peekTimeout bounds the short look-ahead read behind Available.
const peekTimeout = time.Millisecond

// Device is a serial device implementing loader.Port.
type Device struct {
	name string

	mu     sync.Mutex
	port   serial.Port
	mode   serial.Mode
	active loader.AccessClient

	readTimeout time.Duration

	// lookahead buffers bytes pulled off the wire by Available so Read can
	// serve them in order.
	lookahead []byte
}

// New returns a device handle for the named serial port (e.g. "/dev/ttyUSB0"
// or "COM3"). No I/O happens until Open. The device starts configured for
// the booter: 115200 bps, 8 data bits, no parity, one stop bit.
func New(name string) *Device {
	return &Device{
		name: name,
		mode: serial.Mode{
			BaudRate: 115200,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		readTimeout: 100 * time.Millisecond,
	}
}

// Name returns the device name the handle was created with.
func (d *Device) Name() string {
	return d.name
}

// MakeActive grants client exclusive access to the device, consulting the
// current holder's WillMakeInactive veto first.
func (d *Device) MakeActive(client loader.AccessClient) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active == client {
		return nil
	}
	if d.active != nil {
		if err := d.active.WillMakeInactive(); err != nil {
			return fmt.Errorf("port %s is held by another controller: %w", d.name, err)
		}
	}
	d.active = client
	return nil
}

// RemoveFromAccess releases client's claim on the device. It is a no-op if
// client is not the current holder.
func (d *Device) RemoveFromAccess(client loader.AccessClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == client {
		d.active = nil
	}
}

// Open opens the underlying serial port with the cached configuration. It is
// a no-op if the port is already open.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port != nil {
		return nil
	}

	port, err := serial.Open(d.name, &d.mode)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.name, err)
	}
	if err := port.SetReadTimeout(d.readTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", d.name, err)
	}

	d.port = port
	d.lookahead = nil
	return nil
}

// Close closes the underlying serial port.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.lookahead = nil
	return err
}

// Available returns the number of bytes that can be read without blocking.
//
// The underlying library has no input-queue query, so Available performs a
// short bounded read into an internal buffer; Read drains that buffer before
// touching the wire again.
func (d *Device) Available() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return 0, fmt.Errorf("port %s is not open", d.name)
	}
	if len(d.lookahead) > 0 {
		return len(d.lookahead), nil
	}

	if err := d.port.SetReadTimeout(peekTimeout); err != nil {
		return 0, err
	}
	scratch := make([]byte, 64)
	n, readErr := d.port.Read(scratch)
	if err := d.port.SetReadTimeout(d.readTimeout); err != nil {
		return 0, err
	}
	if readErr != nil {
		return 0, readErr
	}

	d.lookahead = append(d.lookahead, scratch[:n]...)
	return len(d.lookahead), nil
}

func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.port == nil {
		d.mu.Unlock()
		return 0, fmt.Errorf("port %s is not open", d.name)
	}
	if len(d.lookahead) > 0 {
		n := copy(p, d.lookahead)
		d.lookahead = d.lookahead[n:]
		d.mu.Unlock()
		return n, nil
	}
	port := d.port
	d.mu.Unlock()

	return port.Read(p)
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()

	if port == nil {
		return 0, fmt.Errorf("port %s is not open", d.name)
	}
	return port.Write(p)
}

// ResetInputBuffer discards unread input, including any look-ahead bytes.
func (d *Device) ResetInputBuffer() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return fmt.Errorf("port %s is not open", d.name)
	}
	d.lookahead = nil
	return d.port.ResetInputBuffer()
}

// ResetOutputBuffer discards buffered, unsent output.
func (d *Device) ResetOutputBuffer() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return fmt.Errorf("port %s is not open", d.name)
	}
	return d.port.ResetOutputBuffer()
}

func (d *Device) SetBaudrate(baudrate uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode.BaudRate = int(baudrate)
	return d.applyModeLocked()
}

// SetTimeout configures the device-level read timeout. The underlying
// library offers no write timeout; see the package documentation.
func (d *Device) SetTimeout(readWrite time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.readTimeout = readWrite
	if d.port != nil {
		return d.port.SetReadTimeout(readWrite)
	}
	return nil
}

func (d *Device) SetBytesize(bits int) error {
	if bits < 5 || bits > 8 {
		return fmt.Errorf("unsupported byte size: %d bits", bits)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode.DataBits = bits
	return d.applyModeLocked()
}

func (d *Device) SetParity(parity loader.Parity) error {
	var p serial.Parity
	switch parity {
	case loader.ParityNone:
		p = serial.NoParity
	case loader.ParityOdd:
		p = serial.OddParity
	case loader.ParityEven:
		p = serial.EvenParity
	default:
		return fmt.Errorf("unsupported parity: %d", int(parity))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode.Parity = p
	return d.applyModeLocked()
}

func (d *Device) SetStopbits(bits int) error {
	var s serial.StopBits
	switch bits {
	case 1:
		s = serial.OneStopBit
	case 2:
		s = serial.TwoStopBits
	default:
		return fmt.Errorf("unsupported stop bits: %d", bits)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode.StopBits = s
	return d.applyModeLocked()
}

// SetFlowcontrol accepts only loader.FlowControlNone; the underlying library
// always runs without flow control.
func (d *Device) SetFlowcontrol(fc loader.FlowControl) error {
	if fc != loader.FlowControlNone {
		return fmt.Errorf("flow control is not supported")
	}
	return nil
}

func (d *Device) SetDTR(asserted bool) error {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()

	if port == nil {
		return fmt.Errorf("port %s is not open", d.name)
	}
	return port.SetDTR(asserted)
}

func (d *Device) SetRTS(asserted bool) error {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()

	if port == nil {
		return fmt.Errorf("port %s is not open", d.name)
	}
	return port.SetRTS(asserted)
}

// applyModeLocked pushes the cached mode to the port when it is open.
func (d *Device) applyModeLocked() error {
	if d.port == nil {
		return nil
	}
	return d.port.SetMode(&d.mode)
}
