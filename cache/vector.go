package cache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/embermind/recall/storage"
)

// NewVectorCache creates a two-tier cache for embedding vectors with a
// compact binary codec for the durable tier.
func NewVectorCache(capacity int, backend storage.Backend) (*Cache[[]float32], error) {
	return New(capacity, backend, EncodeVector, DecodeVector)
}

// EncodeVector serializes a float32 vector as little-endian bytes.
func EncodeVector(vec []float32) ([]byte, error) {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf, nil
}

// DecodeVector deserializes bytes produced by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector payload length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
