package propimage

import (
	"bytes"
	"errors"
	"testing"

	"github.com/openprop/go-proploader/protocol"
)

// buildImage returns a minimal header-only image with the given field values
// and a checksum byte adjusted so the booter's rule holds.
func buildImage(clkFreq uint32, clkMode byte) []byte {
	data := make([]byte, HeaderSize)
	data[0] = byte(clkFreq)
	data[1] = byte(clkFreq >> 8)
	data[2] = byte(clkFreq >> 16)
	data[3] = byte(clkFreq >> 24)
	data[4] = clkMode
	data[6] = 0x10  // pbase
	data[8] = 0x20  // vbase
	data[10] = 0x30 // dbase
	data[12] = 0x18 // pcurr
	data[14] = 0x38 // dcurr

	var sum byte
	for _, b := range data {
		sum += b
	}
	data[5] = checksumTarget - sum
	return data
}

func TestFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{
			name:    "smaller than header",
			data:    make([]byte, HeaderSize-1),
			wantErr: true,
		},
		{
			name:    "oversized",
			data:    make([]byte, protocol.MaxImageSize+1),
			wantErr: true,
		},
		{
			name: "header-only image",
			data: buildImage(80_000_000, 0x6F),
		},
		{
			name: "maximum size",
			data: append(buildImage(12_000_000, 0x00), make([]byte, protocol.MaxImageSize-HeaderSize)...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := FromBytes(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.Size() != len(tt.data) {
				t.Errorf("Size() = %d, want %d", img.Size(), len(tt.data))
			}
		})
	}
}

func TestHeaderDecoding(t *testing.T) {
	img, err := FromBytes(buildImage(80_000_000, 0x6F))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := img.Header
	if h.ClkFreq != 80_000_000 {
		t.Errorf("ClkFreq = %d, want 80000000", h.ClkFreq)
	}
	if h.ClkMode != 0x6F {
		t.Errorf("ClkMode = 0x%02X, want 0x6F", h.ClkMode)
	}
	if h.PBase != 0x10 || h.VBase != 0x20 || h.DBase != 0x30 {
		t.Errorf("bases = %04X/%04X/%04X, want 0010/0020/0030", h.PBase, h.VBase, h.DBase)
	}
	if h.PCurr != 0x18 || h.DCurr != 0x38 {
		t.Errorf("pcurr/dcurr = %04X/%04X, want 0018/0038", h.PCurr, h.DCurr)
	}
}

func TestValidateChecksum(t *testing.T) {
	good, err := FromBytes(buildImage(12_000_000, 0x00))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := good.ValidateChecksum(); err != nil {
		t.Errorf("valid image rejected: %v", err)
	}

	bad := append([]byte(nil), good.Data...)
	bad[5]++ // corrupt the checksum byte
	img, err := FromBytes(bad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = img.ValidateChecksum()
	if err == nil {
		t.Fatal("corrupted image passed checksum validation")
	}
	var cerr *ChecksumError
	if !errors.As(err, &cerr) {
		t.Errorf("error type = %T, want *ChecksumError", err)
	}
}

func TestRead(t *testing.T) {
	data := buildImage(12_000_000, 0x00)
	img, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("Read() did not preserve image bytes")
	}
}
