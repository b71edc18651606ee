package loader

import (
	"time"

	"github.com/openprop/go-proploader/protocol"
)

// The stages of an action, in execution order.
type stage int

const (
	stage1  stage = iota // Preparation
	stage2a              // Reset
	stage2b              // Wait After Reset
	stage3               // Establish Communications
	stage4a              // Send Command
	stage4b              // Send Image
	stage5               // Wait for Checksum Status
	stage6               // Wait for EEPROM Programming Status
	stage7               // Wait for EEPROM Verification Status
	stageFinished
)

// profiler tracks the performance of an action and provides timing estimates
// of future stages. Stage times are measured with the monotonic clock.
type profiler struct {
	summary ActionSummary

	curr          stage
	encodingStart time.Time
	stageStart    time.Time
}

func (p *profiler) start(action Action, snap settings) {
	p.curr = stage1
	p.stageStart = time.Now()
	p.summary = ActionSummary{
		Action:           action,
		Baudrate:         snap.baudrate,
		ResetDuration:    snap.resetDuration,
		BootWaitDuration: snap.bootWaitDuration,
	}
}

// willStartEncodingImage is called before encoding when the action requires
// an image.
func (p *profiler) willStartEncodingImage(imageSize int) {
	p.summary.ImageSize = imageSize
	p.encodingStart = time.Now()
}

// finishedEncodingImage records the encoding time and the size of the byte
// buffer holding the encoded image -- not the size of the original image.
func (p *profiler) finishedEncodingImage(encodedImageSize int) {
	p.summary.EncodingTime = time.Since(p.encodingStart)
	p.summary.EncodedImageSize = encodedImageSize
}

// endStage records the elapsed time of the given stage and advances to the
// next one.
func (p *profiler) endStage(s stage) {
	t := p.lap()
	switch s {
	case stage1:
		p.summary.Stage1Time = t
	case stage2a:
		p.summary.Stage2aTime = t
		p.summary.Stage2Time = t
	case stage2b:
		p.summary.Stage2bTime = t
		p.summary.Stage2Time += t
	case stage3:
		p.summary.Stage3Time = t
	case stage4a:
		p.summary.Stage4aTime = t
		p.summary.Stage4Time = t
	case stage4b:
		p.summary.Stage4bTime = t
		p.summary.Stage4Time += t
	case stage5:
		p.summary.Stage5Time = t
	case stage6:
		p.summary.Stage6Time = t
	case stage7:
		p.summary.Stage7Time = t
	}
	p.summary.TotalTime += t
	if s < stage7 {
		p.curr = s + 1
	} else {
		p.curr = stageFinished
	}
}

// endOK or endWithError must be called exactly once per action.
func (p *profiler) endOK() {
	p.curr = stageFinished
	p.summary.WasSuccessful = true
}

func (p *profiler) endWithError(code ErrorCode) {
	if p.curr < stageFinished {
		p.endStage(p.curr)
	}
	p.curr = stageFinished
	p.summary.WasSuccessful = false
	p.summary.ErrorCode = code
}

// estimatedTotalTime is the estimated total time for completing the action.
// The estimate is incomplete until finishedEncodingImage has been called
// (assuming the action requires an image). It is always greater than the
// elapsed time reported alongside it.
func (p *profiler) estimatedTotalTime() time.Duration {
	est := p.summary.TotalTime
	if p.curr <= stage1 {
		est += 100 * time.Millisecond // keeps the estimate non-zero
	}
	if p.curr <= stage2a {
		est += p.summary.ResetDuration
	}
	if p.summary.Action == ActionRestart {
		return est
	}
	if p.curr <= stage2b {
		est += p.summary.BootWaitDuration
	}
	if p.curr <= stage3 {
		est += protocol.TransitDuration(len(protocol.InitBytes), p.summary.Baudrate)
	}
	// Stage 4a is short: the command is a handful of bytes.
	if p.curr <= stage4a {
		est += protocol.TransitDuration(len(protocol.EncodedShutdown), p.summary.Baudrate)
	}
	if p.summary.Action == ActionShutdown {
		return est
	}
	if p.curr <= stage4b {
		est += protocol.TransitDuration(p.summary.EncodedImageSize, p.summary.Baudrate)
	}
	if p.curr <= stage5 {
		est += 100 * time.Millisecond // approx at 12 MHz
	}
	if p.summary.Action == ActionLoadRAM {
		return est
	}
	if p.curr <= stage6 {
		est += 3700 * time.Millisecond // approx at 12 MHz
	}
	if p.curr <= stage7 {
		est += 1300 * time.Millisecond // approx at 12 MHz
	}
	return est
}

// lap reports the time since the last lap or start call, like the lap
// feature of a stopwatch.
func (p *profiler) lap() time.Duration {
	now := time.Now()
	t := now.Sub(p.stageStart)
	p.stageStart = now
	return t
}
