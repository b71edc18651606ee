package threebit

import (
	"errors"
	"fmt"
)

// Response byte values the booter produces under 0xAD transmission prompts.
// Each response byte carries two decoded data bits (LSB-first).
const (
	responseBits00 = 0xCE
	responseBits01 = 0xCF
	responseBits10 = 0xEE
	responseBits11 = 0xEF
)

// ErrInsufficientBytes indicates the response stream ended before a full data
// byte could be decoded.
var ErrInsufficientBytes = errors.New("insufficient bytes")

// UnexpectedByteError indicates a response byte outside the 3BP response
// alphabet.
type UnexpectedByteError struct {
	Byte byte
}

func (e *UnexpectedByteError) Error() string {
	return fmt.Sprintf("unexpected byte: 0x%02X", e.Byte)
}

// DecodeByte decodes one data byte from the first four bytes of quad.
//
// The bytes are assumed to be from the Propeller in response to four 0xAD
// transmission prompts; each carries two data bits, LSB-first. The loader
// uses this to decode the chip version.
func DecodeByte(quad []byte) (byte, error) {
	var decoded byte
	for i := 0; i < 4; i++ {
		if i >= len(quad) {
			return 0, ErrInsufficientBytes
		}
		decoded >>= 2
		switch quad[i] {
		case responseBits00:
		case responseBits01:
			decoded |= 0x40
		case responseBits10:
			decoded |= 0x80
		case responseBits11:
			decoded |= 0xC0
		default:
			return 0, &UnexpectedByteError{Byte: quad[i]}
		}
	}
	return decoded, nil
}
