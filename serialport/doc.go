// Package serialport implements the loader.Port capability on top of
// go.bug.st/serial.
//
// # Usage
//
//	dev := serialport.New("/dev/ttyUSB0")
//	ldr, err := loader.New(dev)
//
// A Device opens lazily: New performs no I/O, and the loader opens the port
// at the start of each action. Framing and baudrate setters may be called
// while the port is closed; the cached configuration is applied on open and
// re-applied immediately when the port is already open.
//
// # Exclusivity
//
// Devices arbitrate exclusive access between controllers. MakeActive hands
// the port to a client after consulting the current holder's
// WillMakeInactive veto; a loader refuses the veto while an action is in
// progress.
//
// # Limitations
//
// The underlying library exposes no hardware or software flow control, which
// matches the booter's requirement of none; SetFlowcontrol therefore accepts
// only loader.FlowControlNone. Write calls have no device-level timeout, so
// the configured timeout bounds reads only; the loader's own responsiveness
// accounting covers the write side.
package serialport
