// Package propimage reads Propeller application image files.
//
// # File Format
//
// A Propeller application image is the raw binary the booter loads into hub
// RAM (conventionally a .binary or .eeprom file). The first 16 bytes form a
// header describing the program:
//
//	offset  size  field
//	0       4     clock frequency in Hz (little-endian)
//	4       1     clock mode register value
//	5       1     checksum byte
//	6       2     pbase: start of the program
//	8       2     vbase: start of the variable space
//	10      2     dbase: start of the stack space
//	12      2     pcurr: initial program counter
//	14      2     dcurr: initial stack pointer
//
// All multi-byte fields are little-endian.
//
// # Checksum
//
// The booter validates an image with a one-byte rule: the modular sum of all
// image bytes, plus the initial stack longs the booter appends automatically,
// must be zero. ValidateChecksum applies this rule. The loader itself does
// not enforce it -- any image within size bounds is sent -- so callers that
// want the check apply it before loading:
//
//	img, err := propimage.Load("blinker.binary")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := img.ValidateChecksum(); err != nil {
//	    log.Fatal(err)
//	}
//	err = ldr.LoadRAM(img.Data)
package propimage
