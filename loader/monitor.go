package loader

import "time"

// StatusMonitor follows the activity of a Loader through callbacks.
//
// All callbacks run on the worker goroutine created for the action -- not
// the caller's goroutine -- and must not panic. They should return quickly:
// while a callback executes the loader is idle, and if the loader is idle
// for too long (approximately 100 milliseconds) the Propeller will reboot.
// Redispatch heavy work to another goroutine.
//
// Do not call CancelAndWait or WaitUntilFinished from a callback -- it would
// block the worker the callback runs on. Calling Cancel is OK.
//
// Embed BaseMonitor to implement only the callbacks of interest.
type StatusMonitor interface {
	// LoaderWillBegin is called when an action is about to begin.
	//
	// Guarantee: if LoaderWillBegin is called then LoaderHasFinished will be
	// called. LoaderUpdate might never be called.
	LoaderWillBegin(ldr *Loader, action Action, elapsed, estimatedTotal time.Duration)

	// LoaderUpdate is called when the status of the loader has changed.
	// estimatedTotal may change between calls; it is always greater than
	// elapsed.
	LoaderUpdate(ldr *Loader, status Status, elapsed, estimatedTotal time.Duration)

	// LoaderHasFinished is called when the action has finished. If the
	// action finished properly, code is ErrorCodeNone and details is empty.
	//
	// When this callback is called the action is over: IsBusy reports false
	// (unless another action has already begun) and any goroutines blocked
	// in CancelAndWait or WaitUntilFinished have been unblocked.
	//
	// Guarantee: LoaderWillBegin for subsequent actions is not called until
	// this callback returns.
	LoaderHasFinished(ldr *Loader, code ErrorCode, details string, summary ActionSummary)
}

// BaseMonitor is a StatusMonitor with empty callbacks, for embedding.
type BaseMonitor struct{}

func (BaseMonitor) LoaderWillBegin(*Loader, Action, time.Duration, time.Duration) {}
func (BaseMonitor) LoaderUpdate(*Loader, Status, time.Duration, time.Duration)    {}
func (BaseMonitor) LoaderHasFinished(*Loader, ErrorCode, string, ActionSummary)   {}

// ResetCallback performs a user implemented Propeller reset.
//
// This is useful where user code can drive a reset line the serial port
// cannot, such as a GPIO pin on a single-board computer. The callback must
// drop the reset line low, hold it low for resetDuration, then raise the
// line and return. It is called on the action's worker goroutine; a non-nil
// error or a panic aborts the action with ErrorCodeFailedToReset.
type ResetCallback func(resetDuration time.Duration) error
