package store

import "fmt"

// VectorBackend selects the dense index implementation.
type VectorBackend string

const (
	// VectorBackendFlat scores every row exactly (default).
	VectorBackendFlat VectorBackend = "flat"

	// VectorBackendHNSW uses an approximate coder/hnsw graph. Useful once the
	// corpus grows past a few hundred thousand passages.
	VectorBackendHNSW VectorBackend = "hnsw"
)

// ParseVectorBackend validates a backend name. Empty selects flat.
func ParseVectorBackend(s string) (VectorBackend, error) {
	switch VectorBackend(s) {
	case VectorBackendFlat, "":
		return VectorBackendFlat, nil
	case VectorBackendHNSW:
		return VectorBackendHNSW, nil
	default:
		return "", fmt.Errorf("unknown vector backend: %s (valid options: flat, hnsw)", s)
	}
}

// NewVectorIndex wraps the loaded matrix with the given backend.
func NewVectorIndex(backend string, m *Matrix) (VectorIndex, error) {
	b, err := ParseVectorBackend(backend)
	if err != nil {
		return nil, err
	}
	if b == VectorBackendHNSW {
		return NewHNSWIndex(m, DefaultHNSWConfig()), nil
	}
	return NewFlatIndex(m), nil
}
