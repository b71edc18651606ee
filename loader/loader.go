package loader

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openprop/go-proploader/protocol"
	"github.com/openprop/go-proploader/threebit"
)

// Loader programs and controls a Parallax Propeller P8X32A over a serial
// Port. See the package documentation for the asynchronous model.
//
// A Loader is safe for concurrent use.
type Loader struct {
	port Port

	// mu is the primary mutex protecting loader state and coordinating
	// actions. It guards counter, done, action transitions and cancelled
	// writes.
	mu sync.Mutex

	// counter uniquely identifies each action; incremented under mu on
	// every start.
	counter uint32

	// done is closed when the current action finishes. Replaced under mu on
	// every start, so a waiter that captured it observes exactly the action
	// it was waiting on even if another action starts immediately after.
	done chan struct{}

	// action is the action being performed; ActionNone means idle.
	// Transitions happen under mu, reads are lock-free.
	action atomic.Int32

	// cancelled is meaningful only while an action runs. It is set under mu
	// and read lock-free at cancellation checkpoints.
	cancelled atomic.Bool

	// lastCheckpoint is a free-form label describing what the worker was
	// last doing. Stored without mu; a slightly out-of-date value is
	// acceptable for diagnostics.
	lastCheckpoint atomic.Value

	// callbackOrderMu prevents the next action's LoaderWillBegin callback
	// from being called until the previous action's LoaderHasFinished has
	// returned. The coordination is required since each action runs on its
	// own goroutine.
	callbackOrderMu sync.Mutex

	settingsMu sync.Mutex
	settings   settings

	// enc holds the 3BP encoded image between start and worker. Reserved to
	// the worst case once so encoding never reallocates during an action.
	enc *threebit.Encoder

	logger Logger
}

// New creates a loader that uses the given serial port.
//
// Example:
//
//	dev := serialport.New("/dev/ttyUSB0")
//	ldr, err := loader.New(dev,
//	    loader.WithResetLine(loader.ResetLineDTR),
//	    loader.WithStatusMonitor(monitor),
//	)
func New(port Port, opts ...Option) (*Loader, error) {
	if port == nil {
		panic("port cannot be nil")
	}

	l := &Loader{
		port:     port,
		settings: defaultSettings(),
		enc:      threebit.NewEncoder(threebit.WorstCaseEncodedSize),
	}
	l.action.Store(int32(ActionNone))
	l.lastCheckpoint.Store("no action performed yet")

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Close cancels any in-flight action, waits for it to terminate and releases
// the loader's claim on the port.
func (l *Loader) Close() error {
	_ = l.CancelAndWait(0)
	l.port.RemoveFromAccess(l)
	return nil
}

// Restart restarts the Propeller.
//
// This action just toggles the reset control line and finishes. The
// Propeller still needs some time to go through its boot process before it
// starts running the code on the EEPROM.
func (l *Loader) Restart() error {
	return l.startAction(ActionRestart, nil)
}

// Shutdown shuts down the Propeller by resetting it and issuing a command
// for it to enter its shutdown mode.
func (l *Loader) Shutdown() error {
	return l.startAction(ActionShutdown, nil)
}

// LoadRAM loads the given image into hub RAM and runs it.
//
// The image data is fully consumed before LoadRAM returns; the caller may
// reuse the slice.
func (l *Loader) LoadRAM(image []byte) error {
	return l.startAction(ActionLoadRAM, image)
}

// ProgramEEPROM programs the EEPROM with the given image. The runAfterwards
// flag selects whether to run the image or to shutdown after programming.
//
// The image data is fully consumed before ProgramEEPROM returns; the caller
// may reuse the slice.
func (l *Loader) ProgramEEPROM(image []byte, runAfterwards bool) error {
	if runAfterwards {
		return l.startAction(ActionProgramEEPROMThenRun, image)
	}
	return l.startAction(ActionProgramEEPROMThenShutdown, image)
}

// IsBusy reports whether an action is in progress.
func (l *Loader) IsBusy() bool {
	return Action(l.action.Load()) != ActionNone
}

// Cancel cancels the in-flight action and returns without waiting for the
// cancellation to go into effect. It does nothing if no action is in
// progress.
func (l *Loader) Cancel() {
	l.mu.Lock()
	// Setting cancelled when not busy is meaningless but not harmful.
	l.cancelled.Store(true)
	l.mu.Unlock()
}

// CancelAndWait cancels the in-flight action and waits for the cancellation
// to go into effect, or until timeout. It returns immediately if no action
// is being performed. A timeout of 0 waits indefinitely.
//
// Returns *TimeoutError if the timeout expires first.
func (l *Loader) CancelAndWait(timeout time.Duration) error {
	// Cancelling and capturing the done channel happen under one lock so
	// the action being waited on is the action just cancelled.
	l.mu.Lock()
	if !l.IsBusy() {
		l.mu.Unlock()
		return nil
	}
	l.cancelled.Store(true)
	done := l.done
	l.mu.Unlock()

	return waitClosed(done, timeout)
}

// WaitUntilFinished blocks until the in-flight action finishes or until
// timeout. It returns immediately if no action is being performed. A
// timeout of 0 waits indefinitely.
//
// Returns *TimeoutError if the timeout expires first.
func (l *Loader) WaitUntilFinished(timeout time.Duration) error {
	l.mu.Lock()
	if !l.IsBusy() {
		l.mu.Unlock()
		return nil
	}
	done := l.done
	l.mu.Unlock()

	return waitClosed(done, timeout)
}

func waitClosed(done <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-done
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return &TimeoutError{}
	}
}

// CurrentActivity describes what the loader is currently doing, for busy
// diagnostics and error messages.
func (l *Loader) CurrentActivity() string {
	action := Action(l.action.Load())
	checkpoint, _ := l.lastCheckpoint.Load().(string)
	if action == ActionNone {
		return "Loader is idle."
	}
	return fmt.Sprintf("Action: %s. Last checkpoint: %s.", action, checkpoint)
}

// WillMakeInactive implements AccessClient: it refuses to give up the port
// while an action is in progress. If an action starts after the port has
// been handed over, its MakeActive call in stage 1 either reclaims the port
// or fails the action.
func (l *Loader) WillMakeInactive() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.IsBusy() {
		return &BusyError{Activity: l.CurrentActivity()}
	}
	return nil
}

// startAction validates the request, locks in the settings, encodes the
// image if the action needs one, and launches the worker goroutine. It is
// the only place a synchronous error can come from.
func (l *Loader) startAction(action Action, image []byte) error {
	if !action.Valid() {
		return &InvalidArgumentError{
			Argument: "action",
			Reason:   fmt.Sprintf("invalid action specified (%d)", int(action)),
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsBusy() {
		return &BusyError{Activity: l.CurrentActivity()}
	}

	snap := l.snapshotSettings()
	l.counter++

	prof := &profiler{}
	prof.start(action, snap)

	r := &run{
		loader:   l,
		port:     l.port,
		settings: snap,
		action:   action,
		prof:     prof,
	}

	if action.RequiresImage() {
		prof.willStartEncodingImage(len(image))
		longs, err := protocol.VerifyAndEncodeImage(image, l.enc)
		if err != nil {
			return err
		}
		r.imageSizeInLongs = longs
		r.encodedImage = l.enc.Bytes()
		prof.finishedEncodingImage(len(r.encodedImage))
	}

	// The action will proceed -- no errors from this point on. Marking the
	// loader busy before the worker's MakeActive call ensures that once the
	// port is made active it cannot be taken away until the action finishes
	// (see WillMakeInactive).
	l.cancelled.Store(false)
	l.lastCheckpoint.Store("launching worker")
	l.action.Store(int32(action))
	l.done = make(chan struct{})

	l.logDebug("action starting", "action", action.String(), "baudrate", snap.baudrate)

	go l.actionWorker(r)
	return nil
}

// actionWorker is the entry function of the goroutine created to perform the
// action.
func (l *Loader) actionWorker(r *run) {
	l.actionWillBegin(r)

	code := ErrorCodeNone
	details := ""
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				// Failures are supposed to surface as ActionError well
				// before this point; a panic here is a loader bug.
				code = ErrorCodeUnhandledException
				details = fmt.Sprintf("%s Panic: %v.", l.CurrentActivity(), rec)
			}
		}()
		if aerr := r.perform(); aerr != nil {
			code = aerr.Code
			details = aerr.Details
		}
	}()

	l.actionWillFinish(r, code, details)
}

// actionWillBegin notifies the monitor that the action will begin. Acquiring
// callbackOrderMu blocks this worker until the previous action's
// LoaderHasFinished callback has returned.
func (l *Loader) actionWillBegin(r *run) {
	l.callbackOrderMu.Lock()
	defer l.callbackOrderMu.Unlock()
	if m := r.settings.monitor; m != nil {
		m.LoaderWillBegin(l, r.action, r.prof.summary.TotalTime, r.prof.estimatedTotalTime())
	}
}

// actionWillFinish completes the profiling record, officially finishes the
// action and notifies the monitor. Holding callbackOrderMu across both steps
// keeps LoaderWillBegin of the next action from overlapping LoaderHasFinished
// of this one.
func (l *Loader) actionWillFinish(r *run, code ErrorCode, details string) {
	if code == ErrorCodeNone {
		r.prof.endOK()
	} else {
		r.prof.endWithError(code)
	}
	summary := r.prof.summary

	l.callbackOrderMu.Lock()
	defer l.callbackOrderMu.Unlock()

	l.finishAction()

	if code == ErrorCodeNone {
		l.logInfo("action finished", "action", summary.Action.String(), "elapsed", summary.TotalTime.String())
	} else {
		l.logError("action failed", "action", summary.Action.String(), "code", code.String(), "details", details)
	}

	if m := r.settings.monitor; m != nil {
		m.LoaderHasFinished(l, code, details, summary)
	}
}

// finishAction returns the loader to idle and unblocks waiters. After this
// returns a new action may begin immediately.
func (l *Loader) finishAction() {
	l.mu.Lock()
	l.lastCheckpoint.Store("finished")
	l.action.Store(int32(ActionNone))
	done := l.done
	l.mu.Unlock()

	close(done)
}
