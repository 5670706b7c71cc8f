// Package encoding provides the little-endian vector and JSON metadata
// codecs shared by the document and vector stores.
package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector is returned when vector data is malformed or empty.
var ErrInvalidVector = errors.New("invalid vector")

// EncodeVector serializes a float32 vector to bytes: a little-endian
// int32 length prefix followed by the raw little-endian float32 values.
func EncodeVector(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}

	if len(vector) > math.MaxInt32 {
		return nil, fmt.Errorf("vector too large: %d elements exceeds maximum", len(vector))
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(vector))); err != nil {
		return nil, fmt.Errorf("encode vector length: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("encode vector values: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}

	buf := bytes.NewReader(data)

	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("decode vector length: %w", err)
	}
	if length < 0 {
		return nil, ErrInvalidVector
	}
	if length == 0 {
		return []float32{}, nil
	}

	if buf.Len() < int(length)*4 {
		return nil, ErrInvalidVector
	}

	vector := make([]float32, length)
	if err := binary.Read(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("decode vector values: %w", err)
	}

	return vector, nil
}

// EncodeMetadata marshals a string metadata map to JSON; a nil map
// encodes to the empty string so the column can stay NULL-free.
func EncodeMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		return "", nil
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	return string(data), nil
}

// DecodeMetadata is the inverse of EncodeMetadata.
func DecodeMetadata(jsonStr string) (map[string]string, error) {
	if jsonStr == "" {
		return nil, nil
	}

	var metadata map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	return metadata, nil
}

// ValidateVector rejects nil, empty, NaN, or infinite vectors.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}

	for _, val := range vector {
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidVector
		}
	}

	return nil
}
