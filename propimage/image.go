package propimage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/openprop/go-proploader/protocol"
)

// HeaderSize is the size of the application image header in bytes.
const HeaderSize = 16

// checksumTarget is the modular sum an image's bytes must have to be valid.
// It accounts for the two initial stack longs (FF FF F9 FF FF FF F9 FF) the
// booter appends automatically: their sum is 0xEC modulo 256, so the image
// bytes must sum to 0x14 for the total to be zero.
const checksumTarget = 0x14

// Header describes a Propeller application image.
type Header struct {
	// ClkFreq is the system clock frequency in Hz.
	ClkFreq uint32

	// ClkMode is the clock mode register value.
	ClkMode byte

	// Checksum is the checksum byte stored in the image.
	Checksum byte

	// PBase is the start of the program.
	PBase uint16

	// VBase is the start of the variable space.
	VBase uint16

	// DBase is the start of the stack space.
	DBase uint16

	// PCurr is the initial program counter.
	PCurr uint16

	// DCurr is the initial stack pointer.
	DCurr uint16
}

// Image is a Propeller application image.
type Image struct {
	// Data is the raw image, as loaded into hub RAM.
	Data []byte

	// Header is the decoded image header.
	Header Header
}

// Size returns the image size in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// ChecksumError indicates an image whose byte sum violates the booter's
// checksum rule.
type ChecksumError struct {
	// Sum is the modular sum of the image bytes.
	Sum byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("image checksum mismatch: byte sum is 0x%02X, want 0x%02X", e.Sum, checksumTarget)
}

// ValidateChecksum applies the booter's one-byte checksum rule to the image.
// Returns a *ChecksumError if the image would be rejected by the Propeller.
func (img *Image) ValidateChecksum() error {
	var sum byte
	for _, b := range img.Data {
		sum += b
	}
	if sum != checksumTarget {
		return &ChecksumError{Sum: sum}
	}
	return nil
}

// Load reads a Propeller application image from the given file path.
//
// Example:
//
//	img, err := propimage.Load("blinker.binary")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("clkfreq: %d Hz\n", img.Header.ClkFreq)
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Read(f)
}

// Read reads a Propeller application image from any io.Reader. This is
// useful for testing and reading from non-file sources.
func Read(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(data)
}

// FromBytes wraps raw image bytes, validating size bounds and decoding the
// header.
func FromBytes(data []byte) (*Image, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("image is %d bytes, smaller than the %d byte header", len(data), HeaderSize)
	}
	if len(data) > protocol.MaxImageSize {
		return nil, fmt.Errorf("image is %d bytes, exceeding the Propeller's hub RAM size (%d)",
			len(data), protocol.MaxImageSize)
	}

	img := &Image{Data: data}
	img.Header = Header{
		ClkFreq:  binary.LittleEndian.Uint32(data[0:4]),
		ClkMode:  data[4],
		Checksum: data[5],
		PBase:    binary.LittleEndian.Uint16(data[6:8]),
		VBase:    binary.LittleEndian.Uint16(data[8:10]),
		DBase:    binary.LittleEndian.Uint16(data[10:12]),
		PCurr:    binary.LittleEndian.Uint16(data[12:14]),
		DCurr:    binary.LittleEndian.Uint16(data[14:16]),
	}
	return img, nil
}
