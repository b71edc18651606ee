package loader

import "time"

// ActionSummary contains performance information about an action. A summary
// is passed to StatusMonitor.LoaderHasFinished for both successful and
// failed actions.
type ActionSummary struct {
	// Action is the action performed.
	Action Action

	// WasSuccessful indicates if the action was successful.
	WasSuccessful bool

	// ErrorCode identifies the type of error if the action was unsuccessful.
	ErrorCode ErrorCode

	// Baudrate is the baudrate used when performing the action.
	Baudrate uint32

	// ResetDuration is the reset duration used when performing the action.
	ResetDuration time.Duration

	// BootWaitDuration is the boot wait duration used when performing the
	// action.
	BootWaitDuration time.Duration

	// ImageSize is the size of the image in bytes.
	ImageSize int

	// EncodedImageSize is the number of bytes required to transmit the
	// 3BP encoded image.
	EncodedImageSize int

	// TotalTime is the sum of all stage times.
	TotalTime time.Duration

	Stage1Time  time.Duration // Stage 1: Preparation
	Stage2Time  time.Duration // Stage 2: Reset and Wait
	Stage2aTime time.Duration //      2a: Reset
	Stage2bTime time.Duration //      2b: Wait
	Stage3Time  time.Duration // Stage 3: Establish Communications
	Stage4Time  time.Duration // Stage 4: Send Command and Image
	Stage4aTime time.Duration //      4a: Send Command

	// Stage4bTime is the time for Stage 4b: Send Image.
	//
	// Stage 5 actually begins while some of the image is still being sent
	// over the wire (but all of it has been buffered), so Stage4bTime is
	// slightly shorter than the true time and Stage5Time slightly longer.
	// The deviation is approximately protocol.EarlyStage4Return.
	Stage4bTime time.Duration

	// Stage5Time is the time for Stage 5: Wait for Checksum Status. See the
	// note on Stage4bTime.
	Stage5Time time.Duration

	Stage6Time time.Duration // Stage 6: Wait for EEPROM Programming Status
	Stage7Time time.Duration // Stage 7: Wait for EEPROM Verification Status

	// EncodingTime is the time spent 3BP encoding the image. Encoding
	// happens before stage 1 starts, on the caller's goroutine.
	EncodingTime time.Duration
}
