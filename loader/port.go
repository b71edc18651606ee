package loader

import "time"

// Parity values for Port.SetParity.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// FlowControl values for Port.SetFlowcontrol.
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlHardware
	FlowControlSoftware
)

// AccessClient is a party holding exclusive access to a Port.
type AccessClient interface {
	// WillMakeInactive is consulted when another client requests the port.
	// Returning a non-nil error refuses the transition and keeps the
	// current client active.
	WillMakeInactive() error
}

// Port is the serial device capability the loader consumes.
//
// Read and Write block no longer than the timeout configured with
// SetTimeout; a timed-out Read returns (0, nil). The loader keeps that
// timeout at protocol.CancellationCheckInterval so device calls stay
// preemptible.
//
// The serialport package provides the production implementation.
type Port interface {
	// MakeActive grants client exclusive access, consulting the current
	// holder's WillMakeInactive veto first.
	MakeActive(client AccessClient) error

	// RemoveFromAccess releases client's exclusive access. It is a no-op if
	// client is not the current holder.
	RemoveFromAccess(client AccessClient)

	Open() error
	Close() error

	// Available returns the number of bytes that can be read without
	// blocking.
	Available() (int, error)

	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	ResetInputBuffer() error
	ResetOutputBuffer() error

	SetBaudrate(baudrate uint32) error
	SetTimeout(readWrite time.Duration) error
	SetBytesize(bits int) error
	SetParity(parity Parity) error
	SetStopbits(bits int) error
	SetFlowcontrol(fc FlowControl) error

	// SetDTR asserts (line low) or releases the DTR control line.
	SetDTR(asserted bool) error

	// SetRTS asserts (line low) or releases the RTS control line.
	SetRTS(asserted bool) error
}
