package protocol

import "time"

// Fixed intervals and timeouts of the loading sequence.
const (
	// CancellationCheckInterval is approximately how often the loader checks
	// whether the action has been cancelled. It doubles as the device-level
	// read/write timeout so that blocking port calls stay preemptible.
	CancellationCheckInterval = 100 * time.Millisecond

	// InitBytesTimeout is the margin for receiving the Propeller
	// authentication and version bytes after InitBytes has drained. The
	// Propeller sends that data simultaneously with the transmission
	// prompts, so it should be available almost immediately; the margin
	// covers hardware and driver latency.
	InitBytesTimeout = 1000 * time.Millisecond

	// EarlyStage4Return determines when the image-sending stage ends
	// relative to its estimated drain time. Returning slightly before the
	// drain time is insurance against the estimate being too high; sending
	// timely status prompts is critical, since the Propeller waits only
	// about 100 ms for a prompt once it is ready to answer.
	EarlyStage4Return = 100 * time.Millisecond

	// StatusPromptInterval is approximately how long to wait between status
	// transmission prompts. The Propeller must receive a prompt within about
	// 100 ms of being ready to send a status code, otherwise it aborts the
	// serial loading process and attempts to boot from EEPROM.
	StatusPromptInterval = 10 * time.Millisecond

	// ChecksumStatusTimeout is the timeout for receiving a checksum status
	// code. 84 ms was observed from the last encoded image bit to the
	// checksum status at 13 MHz, implying a minimum safe timeout of 140 ms
	// at 8 MHz; extra time covers the drain-time estimate and
	// EarlyStage4Return.
	ChecksumStatusTimeout = 1500 * time.Millisecond

	// EEPROMProgrammingStatusTimeout is the timeout for receiving an EEPROM
	// programming status code. 3.4 s was observed at 13 MHz, implying a
	// minimum safe timeout of 5.6 s at 8 MHz.
	EEPROMProgrammingStatusTimeout = 6000 * time.Millisecond

	// EEPROMVerificationStatusTimeout is the timeout for receiving an EEPROM
	// verification status code. 1.2 s was observed at 13 MHz, implying a
	// minimum safe timeout of 2.0 s at 8 MHz.
	EEPROMVerificationStatusTimeout = 2500 * time.Millisecond
)

// Write responsiveness bounds. If write calls to the serial port aren't
// keeping pace with the baudrate then the port is unresponsive.
const (
	ResponsivenessMultiplier = 1.5

	MinResponsivenessTimeout = 1000 * time.Millisecond
)

// TransitDuration returns the time taken to transmit numBytes at the given
// baudrate, assuming 8N1 framing (ten bit times per byte). The result is
// never less than one microsecond.
func TransitDuration(numBytes int, baudrate uint32) time.Duration {
	us := int64(numBytes) * 10_000_000 / int64(baudrate)
	if us < 1 {
		us = 1
	}
	return time.Duration(us) * time.Microsecond
}

// ResponsivenessTimeout returns the write-side stall budget for a
// transmission with the given transit duration.
func ResponsivenessTimeout(transit time.Duration) time.Duration {
	t := time.Duration(ResponsivenessMultiplier * float64(transit))
	if t < MinResponsivenessTimeout {
		t = MinResponsivenessTimeout
	}
	return t
}
