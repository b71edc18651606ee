// Package protocol holds the wire-level constants and helpers for talking to
// the Parallax Propeller P8X32A booter program over an asynchronous serial
// link.
//
// # Protocol Overview
//
// The booter speaks the 3-Bit-Protocol (see the threebit package) over 8N1
// serial at up to 115200 bps. A loading session has a fixed shape:
//
//	host: calibration + host authentication + transmission prompts (InitBytes)
//	prop: 125 authentication bytes (PropAuthBytes) + 4 chip version bytes
//	host: pre-encoded command long (EncodedShutdown, EncodedLoadRAM, ...)
//	host: encoded image size in longs, then the encoded image
//	prop: one status byte per stage, each pulled with a StatusPrompt byte
//
// # Prepared Data
//
// InitBytes, PropAuthBytes and the Encoded* command tables are protocol
// constants, prepared for transmission at up to 115200 bps. They are
// reproduced bit-exact; do not regenerate them at other baudrates.
//
// # Image Handling
//
// VerifyAndEncodeImage validates image size bounds against the Propeller's
// 32 KiB hub RAM and produces the 3BP encoding consumed by stage 4 of the
// loading sequence.
//
// # Timing
//
// TransitDuration and ResponsivenessTimeout provide the baudrate arithmetic
// used for drain-time accounting, and the package defines the fixed intervals
// and timeouts of the loading sequence.
package protocol
