// Package threebit implements the 3-Bit-Protocol (3BP) line encoding used by
// the Parallax Propeller's booter program.
//
// In 3BP a 1 is encoded as a short low pulse and a 0 is encoded as a long low
// pulse. When idle -- not transmitting encoded bits -- the line stays high.
// The Propeller distinguishes short from long pulses using two calibration
// pulses sent at the beginning of communications.
//
// # Encoding
//
// The Encoder packs encoded pulses into bytes suitable for 8N1 asynchronous
// serial transmission. A short pulse occupies a single 0 bit and a long pulse
// two consecutive 0 bits. The implied start bit of each frame is used as the
// first pulse slot, and bits are packed as tightly as the booter's recovery
// timing allows. A longer high idle is used between bits of different longs
// (four byte values) since the Propeller does extra work after receiving a
// long; this is what supports reliable communications at 115200 bps while the
// booter runs in RCFAST clock mode (8 MHz - 20 MHz).
//
//	var enc threebit.Encoder
//	longs := enc.EncodeBytesAsLongs(image)
//	transmit(enc.Bytes())
//
// # Decoding
//
// The booter answers transmission prompts with one response byte per two data
// bits. DecodeByte recovers one data byte from four such response bytes; the
// loader uses it to decode the chip version.
//
// Encoder output must not be transmitted faster than MaxBaudrate.
package threebit
