// Package loader programs and controls a Parallax Propeller P8X32A
// microcontroller over an asynchronous serial link.
//
// # Overview
//
// The Loader drives the chip's on-die booter through a fixed multi-stage
// sequence: hardware reset, handshake and authentication, command and image
// delivery, and polled status collection. Five actions are supported:
//   - Restart: toggle the reset line and let the Propeller boot from EEPROM
//   - Shutdown: reset, then command the booter into shutdown mode
//   - LoadRAM: load an image into hub RAM and run it
//   - ProgramEEPROM (then shutdown or then run)
//
// # Basic Usage
//
//	dev := serialport.New("/dev/ttyUSB0")
//	ldr, err := loader.New(dev)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ldr.Close()
//
//	if err := ldr.LoadRAM(image); err != nil {
//	    log.Fatal(err)
//	}
//	ldr.WaitUntilFinished(0)
//
// # Asynchronous Model
//
// Actions run on a worker goroutine, one per action; the starting call
// returns as soon as the action is underway. At most one action runs at a
// time -- starting while busy fails with *BusyError. Use IsBusy, Cancel,
// CancelAndWait and WaitUntilFinished to control the in-flight action, and a
// StatusMonitor to follow it.
//
// Cancellation is cooperative: Cancel sets a flag the worker observes at its
// next checkpoint, within roughly protocol.CancellationCheckInterval.
//
// # Status Monitoring
//
//	ldr, err := loader.New(dev, loader.WithStatusMonitor(monitor))
//
// For every started action the monitor sees LoaderWillBegin, zero or more
// LoaderUpdate calls, and exactly one LoaderHasFinished. Callbacks across
// consecutive actions are totally ordered: the next action's LoaderWillBegin
// is not called until the previous action's LoaderHasFinished has returned.
// Callbacks run on the action's worker goroutine and must not panic. Do not
// call CancelAndWait or WaitUntilFinished from a callback -- it would block
// the worker; Cancel is safe.
//
// # Settings
//
// Settings may be changed at any time but are snapshotted when an action
// starts; changing a setting never affects an in-flight action, only the
// next one.
//
// # Error Reporting
//
// Input errors (invalid argument, invalid image, busy) are returned
// synchronously from the starting call. Everything that goes wrong during
// the action itself is reported asynchronously through LoaderHasFinished as
// an ErrorCode plus a human-readable detail string; the ActionSummary
// carries per-stage timings for both outcomes.
//
// # Hardware Independence
//
// The Loader does not touch hardware directly; it drives the Port capability.
// The serialport package provides the production implementation; tests use
// scripted in-memory ports.
package loader
