package loader

import (
	"fmt"
	"time"

	"github.com/openprop/go-proploader/threebit"
)

// MaxBaudrate is the maximum baudrate the loader will operate at.
//
// Analysis of the booter program determined that 115200 bps is the fastest
// commonly supported baudrate that can be used reliably over the entire
// RCFAST frequency range, given a large allowance for jitter (±10%). Even
// though exceeding it might appear to work, the booter uses a relatively
// weak error detection mechanism (a one byte checksum for a 32 KiB image);
// if faster loading is desired a bootstrapping loader should be used.
//
// This limit must not exceed the assumed limit used to prepare
// protocol.InitBytes.
const MaxBaudrate = threebit.MaxBaudrate

// Settings bounds and defaults.
const (
	DefaultBaudrate = uint32(MaxBaudrate)

	DefaultResetDuration = 10 * time.Millisecond
	MinResetDuration     = 1 * time.Millisecond
	MaxResetDuration     = 100 * time.Millisecond

	DefaultBootWaitDuration = 100 * time.Millisecond
	MinBootWaitDuration     = 50 * time.Millisecond
	MaxBootWaitDuration     = 150 * time.Millisecond
)

// ResetLine identifies the control line the loader uses to trigger a
// Propeller reset. The Callback option defers toggling the line to user
// code.
type ResetLine int

const (
	ResetLineDTR ResetLine = iota
	ResetLineRTS
	ResetLineCallback
)

// Valid reports whether the reset line has a valid value.
func (r ResetLine) Valid() bool {
	return r == ResetLineDTR || r == ResetLineRTS || r == ResetLineCallback
}

func (r ResetLine) String() string {
	switch r {
	case ResetLineDTR:
		return "DTR"
	case ResetLineRTS:
		return "RTS"
	case ResetLineCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// settings are the loader's tunables. Live settings may change at any time;
// an action works from a snapshot taken when it starts.
type settings struct {
	baudrate         uint32
	resetLine        ResetLine
	resetCallback    ResetCallback
	resetDuration    time.Duration
	bootWaitDuration time.Duration
	monitor          StatusMonitor
}

func defaultSettings() settings {
	return settings{
		baudrate:         DefaultBaudrate,
		resetLine:        ResetLineDTR,
		resetDuration:    DefaultResetDuration,
		bootWaitDuration: DefaultBootWaitDuration,
	}
}

// Baudrate returns the configured baudrate.
func (l *Loader) Baudrate() uint32 {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	return l.settings.baudrate
}

// SetBaudrate sets the baudrate for subsequent actions.
//
// Since the booter communicates using the 3-Bit-Protocol the actual
// throughput is lower than the baudrate suggests. The default is 115200
// bps, which is also the maximum the booter supports.
func (l *Loader) SetBaudrate(baudrate uint32) error {
	if baudrate < 1 || baudrate > MaxBaudrate {
		return &InvalidArgumentError{
			Argument: "baudrate",
			Reason:   fmt.Sprintf("must be in [1, %d], got %d", MaxBaudrate, baudrate),
		}
	}
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	l.settings.baudrate = baudrate
	return nil
}

// ResetLine returns the control line used to reset the Propeller.
func (l *Loader) ResetLine() ResetLine {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	return l.settings.resetLine
}

// SetResetLine sets the control line used to reset the Propeller. The
// default is ResetLineDTR.
func (l *Loader) SetResetLine(line ResetLine) error {
	if !line.Valid() {
		return &InvalidArgumentError{
			Argument: "reset line",
			Reason:   fmt.Sprintf("unknown value %d", int(line)),
		}
	}
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	l.settings.resetLine = line
	return nil
}

// ResetCallback returns the user reset callback.
func (l *Loader) ResetCallback() ResetCallback {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	return l.settings.resetCallback
}

// SetResetCallback sets the function the loader calls to reset the
// Propeller when ResetLineCallback is selected. The default is nil; it must
// not be nil when ResetLineCallback is in effect at action start.
func (l *Loader) SetResetCallback(cb ResetCallback) {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	l.settings.resetCallback = cb
}

// ResetDuration returns the reset hold duration.
func (l *Loader) ResetDuration() time.Duration {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	return l.settings.resetDuration
}

// SetResetDuration sets approximately how long the loader holds the reset
// line low to initiate a reset. The default is 10 milliseconds.
func (l *Loader) SetResetDuration(d time.Duration) error {
	if d < MinResetDuration || d > MaxResetDuration {
		return &InvalidArgumentError{
			Argument: "reset duration",
			Reason:   fmt.Sprintf("must be in [%v, %v], got %v", MinResetDuration, MaxResetDuration, d),
		}
	}
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	l.settings.resetDuration = d
	return nil
}

// BootWaitDuration returns the boot wait duration.
func (l *Loader) BootWaitDuration() time.Duration {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	return l.settings.bootWaitDuration
}

// SetBootWaitDuration sets approximately how long the loader waits between
// raising the reset line and initiating communications, while the Propeller
// restarts and begins its booter program. The default is 100 milliseconds.
func (l *Loader) SetBootWaitDuration(d time.Duration) error {
	if d < MinBootWaitDuration || d > MaxBootWaitDuration {
		return &InvalidArgumentError{
			Argument: "boot wait duration",
			Reason:   fmt.Sprintf("must be in [%v, %v], got %v", MinBootWaitDuration, MaxBootWaitDuration, d),
		}
	}
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	l.settings.bootWaitDuration = d
	return nil
}

// StatusMonitor returns the configured status monitor.
func (l *Loader) StatusMonitor() StatusMonitor {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	return l.settings.monitor
}

// SetStatusMonitor sets the monitor used to follow the loader's progress.
// The default is nil.
func (l *Loader) SetStatusMonitor(m StatusMonitor) {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	l.settings.monitor = m
}

// snapshotSettings copies the live settings for an action.
func (l *Loader) snapshotSettings() settings {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	return l.settings
}
