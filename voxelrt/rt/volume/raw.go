package volume

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	rawMagic   = "VXVOLRAW"
	rawVersion = uint8(1)
	// magic + version + resolution + fingerprint + checksum
	rawHeaderSize = 8 + 1 + 4 + 8 + 8
)

var ErrRawChecksum = errors.New("raw volume checksum mismatch")

// MarshalRaw serialises the full-precision tiled pixels as little-endian
// float32, zstd-compressed behind a small header.
func (v *Volume) MarshalRaw() ([]byte, error) {
	if v.Empty() {
		return nil, errors.New("marshal raw: empty volume")
	}
	payload := make([]byte, len(v.Pix)*4)
	for i, f := range v.Pix {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(f))
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	var out bytes.Buffer
	out.WriteString(rawMagic)
	_ = binary.Write(&out, binary.LittleEndian, rawVersion)
	_ = binary.Write(&out, binary.LittleEndian, uint32(v.Resolution))
	_ = binary.Write(&out, binary.LittleEndian, v.SourceFingerprint)
	_ = binary.Write(&out, binary.LittleEndian, xxhash.Sum64(payload))
	out.Write(enc.EncodeAll(payload, nil))
	return out.Bytes(), nil
}

// UnmarshalRaw parses data written by MarshalRaw.
func UnmarshalRaw(data []byte) (*Volume, error) {
	if len(data) < rawHeaderSize || string(data[:8]) != rawMagic {
		return nil, errors.New("not a raw volume")
	}
	if data[8] != rawVersion {
		return nil, fmt.Errorf("raw volume version %d not supported", data[8])
	}
	resolution := int(binary.LittleEndian.Uint32(data[9:]))
	fingerprint := binary.LittleEndian.Uint64(data[13:])
	checksum := binary.LittleEndian.Uint64(data[21:])
	want, ok := PixBytes(resolution)
	if !ok {
		return nil, fmt.Errorf("raw volume: %w", CheckResolution(resolution))
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(want)))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	payload, err := dec.DecodeAll(data[rawHeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decompress raw volume: %w", err)
	}
	if len(payload) != want {
		return nil, fmt.Errorf("raw volume holds %d bytes, resolution %d needs %d", len(payload), resolution, want)
	}
	if xxhash.Sum64(payload) != checksum {
		return nil, ErrRawChecksum
	}

	v := New(resolution)
	for i := range v.Pix {
		v.Pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	v.SourceFingerprint = fingerprint
	return v, nil
}
