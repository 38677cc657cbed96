package index

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes a float32 vector to little-endian bytes.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes little-endian bytes into a new float32 slice.
func DecodeVector(b []byte) ([]float32, error) {
	return DecodeVectorInto(nil, b)
}

// DecodeVectorInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans. An input
// length that is not a multiple of 4 indicates a corrupt blob.
func DecodeVectorInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}
