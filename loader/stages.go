package loader

import (
	"bytes"
	"fmt"
	"time"

	"github.com/openprop/go-proploader/protocol"
	"github.com/openprop/go-proploader/threebit"
)

// run carries the state of one action: the settings snapshot, the encoded
// image and the stage bookkeeping. It lives on the worker goroutine; only
// the cancellation flag and checkpoint label are shared with the outside.
type run struct {
	loader   *Loader
	port     Port
	settings settings
	action   Action
	prof     *profiler

	encodedImage     []byte
	imageSizeInLongs int

	// buf is a multipurpose receive buffer reused across stages.
	buf []byte

	// stage4Drain is the estimated time the stage 4 transmission has left
	// the wire, set when the command is sent and extended by the image.
	stage4Drain time.Time
}

// perform runs the stages in order. A nil return indicates success.
func (r *run) perform() *ActionError {
	if err := r.stage1Preparation(); err != nil {
		return err
	}

	r.update(StatusResetting)
	if err := r.stage2aReset(); err != nil {
		return err
	}
	if r.action == ActionRestart {
		return nil
	}
	if err := r.stage2bWaitAfterReset(); err != nil {
		return err
	}

	r.update(StatusEstablishingCommunications)
	if err := r.stage3EstablishComms(); err != nil {
		return err
	}

	r.update(StatusSendingCommandAndImage)
	if err := r.stage4aSendCommand(); err != nil {
		return err
	}
	if r.action == ActionShutdown {
		return nil
	}
	if err := r.stage4bSendImage(); err != nil {
		return err
	}

	r.update(StatusWaitingForChecksumStatus)
	if err := r.stage5WaitForChecksumStatus(); err != nil {
		return err
	}
	if r.action == ActionLoadRAM {
		return nil
	}

	r.update(StatusWaitingForEEPROMProgrammingStatus)
	if err := r.stage6WaitForEEPROMProgrammingStatus(); err != nil {
		return err
	}

	r.update(StatusWaitingForEEPROMVerificationStatus)
	return r.stage7WaitForEEPROMVerificationStatus()
}

func (r *run) stage1Preparation() *ActionError {
	if err := r.checkpoint("obtaining serial port access"); err != nil {
		return err
	}
	if err := r.port.MakeActive(r.loader); err != nil {
		return newActionError(ErrorCodeFailedToObtainPortAccess, "%v", err)
	}

	if err := r.checkpoint("opening port"); err != nil {
		return err
	}
	if err := r.port.Open(); err != nil {
		return newActionError(ErrorCodeFailedToOpenPort, "%v", err)
	}

	if err := r.checkpoint("flushing output buffer"); err != nil {
		return err
	}
	if err := r.port.ResetOutputBuffer(); err != nil {
		return newActionError(ErrorCodeFailedToFlushOutput, "%v", err)
	}

	if err := r.checkpoint("updating port settings"); err != nil {
		return err
	}
	if err := r.updatePortSettings(); err != nil {
		return err
	}

	r.prof.endStage(stage1)
	return nil
}

func (r *run) stage2aReset() *ActionError {
	if err := r.checkpoint("resetting the Propeller"); err != nil {
		return err
	}
	if err := r.doReset(); err != nil {
		return err
	}
	r.prof.endStage(stage2a)
	return nil
}

func (r *run) stage2bWaitAfterReset() *ActionError {
	if err := r.checkpoint("waiting for Propeller to boot up"); err != nil {
		return err
	}

	// The maximum boot wait is around 150 ms, so this sleep is not broken
	// into smaller sleeps for cancellation checks.
	time.Sleep(r.settings.bootWaitDuration)

	if err := r.checkpoint("flushing input buffer"); err != nil {
		return err
	}
	if err := r.port.ResetInputBuffer(); err != nil {
		return newActionError(ErrorCodeFailedToFlushInput, "%v", err)
	}

	r.prof.endStage(stage2b)
	return nil
}

func (r *run) stage3EstablishComms() *ActionError {
	if err := r.checkpoint("sending initial bytes"); err != nil {
		return err
	}

	// InitBytes includes calibration, host auth, and the transmission
	// prompts for prop auth and chip version.
	drain, aerr := r.sendBytes(protocol.InitBytes, ErrorCodeFailedToSendInitialBytes)
	if aerr != nil {
		return aerr
	}

	if err := r.checkpoint("authenticating Propeller chip"); err != nil {
		return err
	}

	// The prop auth bytes and version should be available immediately after
	// the drain time for InitBytes, plus some margin.
	deadline := drain.Add(protocol.InitBytesTimeout)

	auth, aerr := r.receiveBytes(len(protocol.PropAuthBytes), deadline, ErrorCodeFailedToReceivePropAuthentication)
	if aerr != nil {
		return aerr
	}
	if !bytes.Equal(auth, protocol.PropAuthBytes) {
		return newActionError(ErrorCodeFailedToAuthenticateProp, "unexpected bytes received from the Propeller")
	}

	if err := r.checkpoint("verifying Propeller chip version"); err != nil {
		return err
	}

	quad, aerr := r.receiveBytes(4, deadline, ErrorCodeFailedToReceiveChipVersion)
	if aerr != nil {
		return aerr
	}
	version, err := threebit.DecodeByte(quad)
	if err != nil {
		return newActionError(ErrorCodeFailedToDecodeChipVersion, "%v", err)
	}
	if version != protocol.SupportedChipVersion {
		return newActionError(ErrorCodeUnsupportedChipVersion, "unrecognized chip version: %d", version)
	}

	r.prof.endStage(stage3)
	return nil
}

func (r *run) stage4aSendCommand() *ActionError {
	if err := r.checkpoint("sending command"); err != nil {
		return err
	}

	encodedCommand := r.action.encodedCommand()
	if encodedCommand == nil {
		// Program logic prevents such actions from reaching this stage.
		return newActionError(ErrorCodeFailedToSendCommand, "the action %s is invalid at this stage", r.action)
	}

	// Sending for stage 4 starts with this call; the drain time is set here
	// and extended as additional bytes are sent.
	drain, aerr := r.sendBytes(encodedCommand, ErrorCodeFailedToSendCommand)
	if aerr != nil {
		return aerr
	}
	r.stage4Drain = drain

	r.prof.endStage(stage4a)
	return nil
}

func (r *run) stage4bSendImage() *ActionError {
	if err := r.checkpoint("sending image size"); err != nil {
		return err
	}

	sizeEnc := threebit.NewEncoder(16)
	sizeEnc.EncodeLong(uint32(r.imageSizeInLongs))
	encodedSize := sizeEnc.Bytes()

	if _, aerr := r.sendBytes(encodedSize, ErrorCodeFailedToSendImageSize); aerr != nil {
		return aerr
	}

	if err := r.checkpoint("sending image"); err != nil {
		return err
	}

	if _, aerr := r.sendBytes(r.encodedImage, ErrorCodeFailedToSendImage); aerr != nil {
		return aerr
	}

	// stage4Drain was set when the command was sent at the start of this
	// stage; add the transit time of the encoded size and the encoded image
	// to get the full drain time.
	r.stage4Drain = r.stage4Drain.Add(
		protocol.TransitDuration(len(encodedSize)+len(r.encodedImage), r.settings.baudrate))

	// Wait until most of the image has been sent. This avoids buffering an
	// excessive number of checksum status transmission prompts.
	if aerr := r.waitUntil(r.stage4Drain.Add(-protocol.EarlyStage4Return)); aerr != nil {
		return aerr
	}

	r.prof.endStage(stage4b)
	return nil
}

func (r *run) stage5WaitForChecksumStatus() *ActionError {
	if err := r.checkpoint("waiting for checksum status"); err != nil {
		return err
	}

	failed, aerr := r.receiveStatus(protocol.ChecksumStatusTimeout, ErrorCodeFailedToReceiveChecksumStatus)
	if aerr != nil {
		return aerr
	}

	if err := r.checkpoint("checking checksum status"); err != nil {
		return err
	}
	if failed {
		return newActionError(ErrorCodePropReportsChecksumError, "data may have been corrupted in transmission")
	}

	r.prof.endStage(stage5)
	return nil
}

func (r *run) stage6WaitForEEPROMProgrammingStatus() *ActionError {
	if err := r.checkpoint("waiting for EEPROM programming status"); err != nil {
		return err
	}

	failed, aerr := r.receiveStatus(protocol.EEPROMProgrammingStatusTimeout, ErrorCodeFailedToReceiveEEPROMProgrammingStatus)
	if aerr != nil {
		return aerr
	}

	if err := r.checkpoint("checking EEPROM programming status"); err != nil {
		return err
	}
	if failed {
		return newActionError(ErrorCodePropReportsEEPROMProgrammingError, "EEPROM may be absent or incorrectly connected")
	}

	r.prof.endStage(stage6)
	return nil
}

func (r *run) stage7WaitForEEPROMVerificationStatus() *ActionError {
	if err := r.checkpoint("waiting for EEPROM verification status"); err != nil {
		return err
	}

	failed, aerr := r.receiveStatus(protocol.EEPROMVerificationStatusTimeout, ErrorCodeFailedToReceiveEEPROMVerificationStatus)
	if aerr != nil {
		return aerr
	}

	if err := r.checkpoint("checking EEPROM verification status"); err != nil {
		return err
	}
	if failed {
		return newActionError(ErrorCodePropReportsEEPROMVerificationError, "EEPROM may be read-only or malfunctioning")
	}

	if err := r.checkpoint("finishing up"); err != nil {
		return err
	}

	r.prof.endStage(stage7)
	return nil
}

// sendBytes writes data in a loop, checking cancellation before every write
// call. Each write has the device-level CancellationCheckInterval timeout;
// if the writes stop keeping pace with the baudrate the port is declared
// unresponsive.
//
// The returned time is the estimated drain time, assuming transmission
// starts immediately and continues uninterrupted.
func (r *run) sendBytes(data []byte, potential ErrorCode) (time.Time, *ActionError) {
	if len(data) == 0 {
		return time.Time{}, newActionError(potential, "BUG: sendBytes called with no data")
	}

	transit := protocol.TransitDuration(len(data), r.settings.baudrate)
	now := time.Now()
	drain := now.Add(transit)
	responsivenessDeadline := now.Add(protocol.ResponsivenessTimeout(transit))

	sent := 0
	for {
		if aerr := r.checkCancelled(); aerr != nil {
			return time.Time{}, aerr
		}

		n, err := r.port.Write(data[sent:])
		if err != nil {
			return time.Time{}, newActionError(potential, "writing to the port failed: %v", err)
		}
		sent += n

		if sent >= len(data) {
			break
		}
		if time.Now().After(responsivenessDeadline) {
			return time.Time{}, newActionError(potential, "the port was unresponsive")
		}
	}
	return drain, nil
}

// receiveBytes reads exactly total bytes before the deadline, checking
// cancellation before every read call. The first deadline check happens
// after the first read; the overshoot is bounded by the device-level read
// timeout (CancellationCheckInterval).
func (r *run) receiveBytes(total int, deadline time.Time, potential ErrorCode) ([]byte, *ActionError) {
	if total == 0 {
		return nil, newActionError(potential, "BUG: receiveBytes called with nothing to receive")
	}

	buf := r.scratch(total)
	received := 0
	for {
		if aerr := r.checkCancelled(); aerr != nil {
			return nil, aerr
		}

		n, err := r.port.Read(buf[received:])
		if err != nil {
			return nil, newActionError(potential, "reading from the port failed: %v", err)
		}
		received += n

		if received >= total {
			break
		}
		if time.Now().After(deadline) {
			return nil, newActionError(potential, "timeout occurred")
		}
	}
	return buf, nil
}

// receiveStatus pulls one status code from the Propeller by sending
// transmission prompts at StatusPromptInterval. The prompt cadence matters:
// the Propeller aborts the load if it is ready to answer and gets no prompt
// within about 100 ms.
//
// The Propeller reports 0 for success and 1 for failure, so the returned
// flag is the inversion of success.
func (r *run) receiveStatus(timeout time.Duration, potential ErrorCode) (bool, *ActionError) {
	// TODO: flag an impossibly early status code on the EEPROM stages.
	// Receiving a status too early probably means the Propeller rebooted,
	// and it might even answer the first prompt with a success code.
	deadline := time.Now().Add(timeout)

	prompt := []byte{protocol.StatusPrompt}
	one := make([]byte, 1)

	for {
		if aerr := r.checkCancelled(); aerr != nil {
			return false, aerr
		}

		if _, err := r.port.Write(prompt); err != nil {
			return false, newActionError(ErrorCodeFailedToSendStatusPrompt, "writing to the port failed: %v", err)
		}

		time.Sleep(protocol.StatusPromptInterval)

		available, err := r.port.Available()
		if err != nil {
			return false, newActionError(potential, "getting available bytes failed: %v", err)
		}

		if available > 0 {
			n, err := r.port.Read(one)
			if err != nil {
				return false, newActionError(potential, "reading from the port failed: %v", err)
			}
			if n != 1 {
				// The read has presumably timed out, which at the default
				// setting means the Propeller might have rebooted already.
				return false, newActionError(potential, "port reported bytes available but returned none")
			}
			switch one[0] {
			case protocol.StatusFailureByte:
				return true, nil
			case protocol.StatusSuccessByte:
				return false, nil
			default:
				return false, newActionError(potential, "received unexpected byte: 0x%02X", one[0])
			}
		}

		if time.Now().After(deadline) {
			return false, newActionError(potential, "timeout occurred")
		}
	}
}

// waitUntil sleeps until the given time, checking cancellation every
// CancellationCheckInterval.
func (r *run) waitUntil(deadline time.Time) *ActionError {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		if aerr := r.checkCancelled(); aerr != nil {
			return aerr
		}

		if remaining < protocol.CancellationCheckInterval {
			time.Sleep(remaining)
			return r.checkCancelled()
		}
		time.Sleep(protocol.CancellationCheckInterval)
	}
}

// updatePortSettings applies the action's settings to the serial port:
// 8 data bits, no parity, one stop bit, no flow control, read/write timeout
// of CancellationCheckInterval, and the snapshotted baudrate.
func (r *run) updatePortSettings() *ActionError {
	if err := r.port.SetBaudrate(r.settings.baudrate); err != nil {
		return newActionError(ErrorCodeFailedToSetBaudrate, "%v", err)
	}
	if err := r.port.SetTimeout(protocol.CancellationCheckInterval); err != nil {
		return newActionError(ErrorCodeFailedToSetTimeout, "%v", err)
	}
	if err := r.port.SetBytesize(8); err != nil {
		return newActionError(ErrorCodeFailedToSetBytesize, "%v", err)
	}
	if err := r.port.SetParity(ParityNone); err != nil {
		return newActionError(ErrorCodeFailedToSetParity, "%v", err)
	}
	if err := r.port.SetStopbits(1); err != nil {
		return newActionError(ErrorCodeFailedToSetStopbits, "%v", err)
	}
	if err := r.port.SetFlowcontrol(FlowControlNone); err != nil {
		return newActionError(ErrorCodeFailedToSetFlowcontrol, "%v", err)
	}
	return nil
}

// doReset performs the hardware reset using the snapshotted reset line.
func (r *run) doReset() *ActionError {
	switch r.settings.resetLine {
	case ResetLineDTR:
		if err := r.port.SetDTR(true); err != nil {
			return newActionError(ErrorCodeFailedToReset, "asserting DTR failed: %v", err)
		}
		time.Sleep(r.settings.resetDuration)
		if err := r.port.SetDTR(false); err != nil {
			return newActionError(ErrorCodeFailedToReset, "releasing DTR failed: %v", err)
		}
		return nil

	case ResetLineRTS:
		if err := r.port.SetRTS(true); err != nil {
			return newActionError(ErrorCodeFailedToReset, "asserting RTS failed: %v", err)
		}
		time.Sleep(r.settings.resetDuration)
		if err := r.port.SetRTS(false); err != nil {
			return newActionError(ErrorCodeFailedToReset, "releasing RTS failed: %v", err)
		}
		return nil

	case ResetLineCallback:
		cb := r.settings.resetCallback
		if cb == nil {
			return newActionError(ErrorCodeFailedToReset, "reset callback option selected, but no callback provided")
		}
		if err := callResetCallback(cb, r.settings.resetDuration); err != nil {
			return newActionError(ErrorCodeFailedToReset, "%v", err)
		}
		return nil

	default:
		return newActionError(ErrorCodeFailedToReset, "invalid reset line specified (%d)", int(r.settings.resetLine))
	}
}

// callResetCallback invokes the user callback, converting a panic into an
// error so a misbehaving callback aborts only the action.
func callResetCallback(cb ResetCallback, resetDuration time.Duration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reset callback panicked: %v", rec)
		}
	}()
	return cb(resetDuration)
}

// update notifies the monitor of a status change.
func (r *run) update(status Status) {
	if m := r.settings.monitor; m != nil {
		m.LoaderUpdate(r.loader, status, r.prof.summary.TotalTime, r.prof.estimatedTotalTime())
	}
}

// checkpoint does a cancellation check and registers a checkpoint label.
func (r *run) checkpoint(label string) *ActionError {
	if aerr := r.checkCancelled(); aerr != nil {
		return aerr
	}
	r.loader.lastCheckpoint.Store(label)
	return nil
}

// checkCancelled fails with Cancelled if the action has been cancelled. The
// details carry the current checkpoint label.
func (r *run) checkCancelled() *ActionError {
	if r.loader.cancelled.Load() {
		return &ActionError{Code: ErrorCodeCancelled, Details: r.loader.CurrentActivity()}
	}
	return nil
}

// scratch returns the reusable receive buffer sized to n bytes.
func (r *run) scratch(n int) []byte {
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	return r.buf[:n]
}
