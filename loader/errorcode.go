package loader

import "fmt"

// ErrorCode identifies the primary reason an action has failed. An error
// code is passed to StatusMonitor.LoaderHasFinished and recorded in the
// ActionSummary; secondary information travels in the details string.
//
// The String form of each code is a stable name suitable for logs and
// programmatic matching.
type ErrorCode int

const (
	ErrorCodeNone ErrorCode = iota
	ErrorCodeCancelled

	// ErrorCodeFailedToObtainPortAccess means another controller is using
	// the port and refuses to relinquish it.
	ErrorCodeFailedToObtainPortAccess
	ErrorCodeFailedToOpenPort
	ErrorCodeFailedToFlushOutput
	ErrorCodeFailedToSetBaudrate

	// ErrorCodeFailedToSetTimeout refers specifically to the serial port's
	// read and write timeouts.
	ErrorCodeFailedToSetTimeout
	ErrorCodeFailedToSetBytesize
	ErrorCodeFailedToSetParity
	ErrorCodeFailedToSetStopbits
	ErrorCodeFailedToSetFlowcontrol
	ErrorCodeFailedToReset
	ErrorCodeFailedToFlushInput
	ErrorCodeFailedToSendInitialBytes

	// ErrorCodeFailedToReceivePropAuthentication means the authentication
	// data was not received.
	ErrorCodeFailedToReceivePropAuthentication

	// ErrorCodeFailedToAuthenticateProp means the authentication data was
	// received but was not correct.
	ErrorCodeFailedToAuthenticateProp

	// ErrorCodeFailedToReceiveChipVersion means the chip version was not
	// received.
	ErrorCodeFailedToReceiveChipVersion

	// ErrorCodeFailedToDecodeChipVersion means the chip version was received
	// but was not encoded in valid 3BP.
	ErrorCodeFailedToDecodeChipVersion

	// ErrorCodeUnsupportedChipVersion means the chip version was received
	// but is not supported.
	ErrorCodeUnsupportedChipVersion
	ErrorCodeFailedToSendCommand
	ErrorCodeFailedToEncodeImageSize
	ErrorCodeFailedToSendImageSize
	ErrorCodeFailedToSendImage

	// ErrorCodeFailedToSendStatusPrompt means a transmission prompt
	// necessary to get a status code could not be sent.
	ErrorCodeFailedToSendStatusPrompt
	ErrorCodeFailedToReceiveChecksumStatus
	ErrorCodePropReportsChecksumError
	ErrorCodeFailedToReceiveEEPROMProgrammingStatus
	ErrorCodePropReportsEEPROMProgrammingError
	ErrorCodeFailedToReceiveEEPROMVerificationStatus
	ErrorCodePropReportsEEPROMVerificationError

	// ErrorCodeUnhandledException indicates a bug in the loader itself.
	ErrorCodeUnhandledException
)

var errorCodeNames = [...]string{
	ErrorCodeNone:                                    "None",
	ErrorCodeCancelled:                               "Cancelled",
	ErrorCodeFailedToObtainPortAccess:                "FailedToObtainPortAccess",
	ErrorCodeFailedToOpenPort:                        "FailedToOpenPort",
	ErrorCodeFailedToFlushOutput:                     "FailedToFlushOutput",
	ErrorCodeFailedToSetBaudrate:                     "FailedToSetBaudrate",
	ErrorCodeFailedToSetTimeout:                      "FailedToSetTimeout",
	ErrorCodeFailedToSetBytesize:                     "FailedToSetBytesize",
	ErrorCodeFailedToSetParity:                       "FailedToSetParity",
	ErrorCodeFailedToSetStopbits:                     "FailedToSetStopbits",
	ErrorCodeFailedToSetFlowcontrol:                  "FailedToSetFlowcontrol",
	ErrorCodeFailedToReset:                           "FailedToReset",
	ErrorCodeFailedToFlushInput:                      "FailedToFlushInput",
	ErrorCodeFailedToSendInitialBytes:                "FailedToSendInitialBytes",
	ErrorCodeFailedToReceivePropAuthentication:       "FailedToReceivePropAuthentication",
	ErrorCodeFailedToAuthenticateProp:                "FailedToAuthenticateProp",
	ErrorCodeFailedToReceiveChipVersion:              "FailedToReceiveChipVersion",
	ErrorCodeFailedToDecodeChipVersion:               "FailedToDecodeChipVersion",
	ErrorCodeUnsupportedChipVersion:                  "UnsupportedChipVersion",
	ErrorCodeFailedToSendCommand:                     "FailedToSendCommand",
	ErrorCodeFailedToEncodeImageSize:                 "FailedToEncodeImageSize",
	ErrorCodeFailedToSendImageSize:                   "FailedToSendImageSize",
	ErrorCodeFailedToSendImage:                       "FailedToSendImage",
	ErrorCodeFailedToSendStatusPrompt:                "FailedToSendStatusPrompt",
	ErrorCodeFailedToReceiveChecksumStatus:           "FailedToReceiveChecksumStatus",
	ErrorCodePropReportsChecksumError:                "PropReportsChecksumError",
	ErrorCodeFailedToReceiveEEPROMProgrammingStatus:  "FailedToReceiveEEPROMProgrammingStatus",
	ErrorCodePropReportsEEPROMProgrammingError:       "PropReportsEEPROMProgrammingError",
	ErrorCodeFailedToReceiveEEPROMVerificationStatus: "FailedToReceiveEEPROMVerificationStatus",
	ErrorCodePropReportsEEPROMVerificationError:      "PropReportsEEPROMVerificationError",
	ErrorCodeUnhandledException:                      "UnhandledException",
}

func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(errorCodeNames) {
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
	return errorCodeNames[c]
}
