// Package serialization implements the .gan checkpoint format for network
// weights.
//
// Layout:
//
//	0x00  magic "GANC"
//	0x04  format version (uint32 LE)
//	0x08  flags (uint32 LE)
//	0x0C  reserved
//	0x10  header size (uint64 LE)
//	0x18  data size (uint64 LE)
//	0x20  SHA-256 checksum of the data section (32 bytes)
//	0x40  JSON header, then padding to a 64-byte boundary, then tensor data
//
// Tensor data is 64-byte aligned so volumes can be read straight into
// aligned buffers. The checksum covers the concatenated tensor data in
// header order.
package serialization

import (
	"time"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "GANC"
	FormatVersion   = 1
	HeaderAlignment = 64
	FixedHeaderSize = 64
	ChecksumSize    = 32
	ChecksumOffset  = 0x20
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeUint8   = "uint8"
)

// Flags for the .gan format.
const (
	FlagHasMetadata uint32 = 1 << 0
)

// Header is the JSON header in a .gan file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ToolVersion   string            `json:"gancer_version"`
	Network       string            `json:"network"` // "G" or "D"
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Uint8:
		return DTypeUint8
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeUint8:
		return tensor.Uint8, true
	default:
		return 0, false
	}
}
