package protocol

// Status bytes returned by the booter in response to a transmission prompt.
const (
	// StatusPrompt is the single byte sent repeatedly to cue the Propeller to
	// transmit its next status code.
	StatusPrompt = 0x29

	// StatusSuccessByte encodes a status code of 0 (success).
	StatusSuccessByte = 0xFE

	// StatusFailureByte encodes a status code of 1 (failure).
	StatusFailureByte = 0xFF
)

// SupportedChipVersion is the only chip version the loader accepts.
const SupportedChipVersion = 1

// InitBytes is the prepared data for initiating communications with the
// booter.
//
// It includes the calibration pulses, the 250 encoded host authentication
// bits, the transmission prompts (0xAD) to receive the 250 Propeller
// authentication bits, and the transmission prompts to receive the 8 chip
// version bits.
//
// This prepared data must not be transmitted at baudrates faster than
// threebit.MaxBaudrate.
var InitBytes = []byte{
	0xF9, 0x4A, 0x25, 0xD5, 0x4A, 0xD5, 0x92, 0x95, 0x4A, 0x92, 0xD5, 0x92, 0xCA, 0xCA, 0x4A,
	0x95, 0xCA, 0xD2, 0x92, 0xA5, 0xA9, 0xC9, 0x4A, 0x49, 0x49, 0x2A, 0x25, 0x49, 0xA5, 0x4A,
	0xAA, 0x2A, 0xA9, 0xCA, 0xAA, 0x55, 0x52, 0xAA, 0xA9, 0x29, 0x92, 0x92, 0x29, 0x25, 0x2A,
	0xAA, 0x92, 0x92, 0x55, 0xCA, 0x4A, 0xCA, 0xCA, 0x92, 0xCA, 0x92, 0x95, 0x55, 0xA9, 0x92,
	0x2A, 0xD2, 0x52, 0x92, 0x52, 0xCA, 0xD2, 0xCA, 0x2A, 0xFF, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD, 0xAD,
	0xAD, 0xAD, 0xAD, 0xAD,
}

// PropAuthBytes contains the encoded Propeller authentication bits that must
// be received in response to sending InitBytes. After receiving these 125
// authentication bytes, 4 more bytes follow that encode the 8-bit chip
// version number.
var PropAuthBytes = []byte{
	0xEE, 0xCE, 0xCE, 0xCF, 0xEF, 0xCF, 0xEE, 0xEF, 0xCF, 0xCF, 0xEF, 0xEF, 0xCF, 0xCE, 0xEF,
	0xCF, 0xEE, 0xEE, 0xCE, 0xEE, 0xEF, 0xCF, 0xCE, 0xEE, 0xCE, 0xCF, 0xEE, 0xEE, 0xEF, 0xCF,
	0xEE, 0xCE, 0xEE, 0xCE, 0xEE, 0xCF, 0xEF, 0xEE, 0xEF, 0xCE, 0xEE, 0xEE, 0xCF, 0xEE, 0xCF,
	0xEE, 0xEE, 0xCF, 0xEF, 0xCE, 0xCF, 0xEE, 0xEF, 0xEE, 0xEE, 0xEE, 0xEE, 0xEF, 0xEE, 0xCF,
	0xCF, 0xEF, 0xEE, 0xCE, 0xEF, 0xEF, 0xEF, 0xEF, 0xCE, 0xEF, 0xEE, 0xEF, 0xCF, 0xEF, 0xCF,
	0xCF, 0xCE, 0xCE, 0xCE, 0xCF, 0xCF, 0xEF, 0xCE, 0xEE, 0xCF, 0xEE, 0xEF, 0xCE, 0xCE, 0xCE,
	0xEF, 0xEF, 0xCF, 0xCF, 0xEE, 0xEE, 0xEE, 0xCE, 0xCF, 0xCE, 0xCE, 0xCF, 0xCE, 0xEE, 0xEF,
	0xEE, 0xEF, 0xEF, 0xCF, 0xEF, 0xCE, 0xCE, 0xEF, 0xCE, 0xEE, 0xCE, 0xEF, 0xCE, 0xCE, 0xEE,
	0xCF, 0xCF, 0xCE, 0xCF, 0xCF,
}

// Pre-encoded booter commands. Each is the 3BP encoding of one command long;
// the final frame's terminator byte carries the last bit with the wider
// inter-long idle.
var (
	// EncodedShutdown is the encoded command to shutdown (command 0).
	EncodedShutdown = []byte{0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0xF2}

	// EncodedLoadRAM is the encoded command to load the image into RAM and
	// then run it (command 1).
	EncodedLoadRAM = []byte{0xC9, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0xF2}

	// EncodedProgramEEPROMThenShutdown is the encoded command to program the
	// EEPROM and then shutdown (command 2).
	EncodedProgramEEPROMThenShutdown = []byte{0xCA, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0xF2}

	// EncodedProgramEEPROMThenRun is the encoded command to program the
	// EEPROM and then run (command 3).
	EncodedProgramEEPROMThenRun = []byte{0x25, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0x92, 0xFE}
)
