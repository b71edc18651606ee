package protocol

import (
	"fmt"

	"github.com/openprop/go-proploader/threebit"
)

// MaxImageSize is the Propeller's hub RAM size in bytes, the upper bound on a
// loadable image.
const MaxImageSize = 32768

// InvalidImageError indicates an image that cannot be sent to the booter.
type InvalidImageError struct {
	Size   int
	Reason string
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image (%d bytes): %s", e.Size, e.Reason)
}

// VerifyAndEncodeImage verifies that image is valid and encodes it in 3BP
// format using enc. The encoder is reset first; its output afterwards holds
// the encoded image.
//
// The return value is the number of longs in the encoded image. If the image
// size is not a multiple of four it is padded at the end with NUL bytes.
//
// TODO: verify the image checksum here. Remember to account for the booter's
// automatic stack bottom. The propimage package offers the checksum rule as
// an opt-in helper in the meantime.
func VerifyAndEncodeImage(image []byte, enc *threebit.Encoder) (int, error) {
	if len(image) == 0 {
		return 0, &InvalidImageError{Size: 0, Reason: "image is too small to be valid"}
	}
	if len(image) > MaxImageSize {
		return 0, &InvalidImageError{
			Size:   len(image),
			Reason: fmt.Sprintf("image exceeds the Propeller's hub RAM size (%d)", MaxImageSize),
		}
	}

	enc.Reset()
	return enc.EncodeBytesAsLongs(image), nil
}
