// Package loader reads and writes SafeTensors weight files and copies their
// tensors into a module tree by fully-qualified parameter name.
//
// SafeTensors layout:
//
//	[8 bytes: header size, uint64 little-endian]
//	[header: JSON object name -> {dtype, shape, data_offsets}]
//	[tensor data: raw little-endian bytes]
//
// Only F32 tensors are supported; the engine is float32 throughout.
package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/tensor"
)

// DType is a SafeTensors dtype tag.
type DType string

// Supported and recognized dtypes.
const (
	F32  DType = "F32"
	F16  DType = "F16"
	BF16 DType = "BF16"
	F64  DType = "F64"
)

// maxHeaderSize bounds the JSON header read from disk.
const maxHeaderSize = 100 * 1024 * 1024

const metadataKey = "__metadata__"

// TensorInfo describes one tensor entry of the header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Header is the parsed JSON header.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits the optional __metadata__ entry from the tensor entries.
func (h *Header) UnmarshalJSON(data []byte) error {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	h.Tensors = make(map[string]TensorInfo, len(entries))
	for key, value := range entries {
		if key == metadataKey {
			if err := json.Unmarshal(value, &h.Metadata); err != nil {
				return fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// Reader reads tensors from a SafeTensors file.
type Reader struct {
	file       *os.File
	header     Header
	dataOffset int64
}

// Open opens path and parses its header.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: weight path comes from the caller
	if err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeUnavailable, "failed to open weights", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close()
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest, "failed to read header size", err)
	}
	if headerSize > maxHeaderSize {
		_ = file.Close()
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid header size: %d (too large)", headerSize))
	}

	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(file, raw); err != nil {
		_ = file.Close()
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest, "failed to read header", err)
	}

	var header Header
	if err := json.Unmarshal(raw, &header); err != nil {
		_ = file.Close()
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest, "failed to parse header JSON", err)
	}

	return &Reader{
		file:       file,
		header:     header,
		dataOffset: int64(8 + headerSize), //nolint:gosec // G115: bounded by maxHeaderSize
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the header's __metadata__ map, possibly nil.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// Names returns the tensor names in sorted order.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the header entry for name.
func (r *Reader) Info(name string) (TensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return TensorInfo{}, cnserrors.New(cnserrors.ErrCodeNameMismatch,
			fmt.Sprintf("tensor %s not found", name))
	}
	return info, nil
}

// ReadF32 reads the tensor stored under name.
func (r *Reader) ReadF32(name string) (*tensor.RawTensor, error) {
	info, err := r.Info(name)
	if err != nil {
		return nil, err
	}
	if info.DType != F32 {
		return nil, cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("tensor %s has unsupported dtype %s", name, info.DType),
			map[string]any{"name": name, "dtype": string(info.DType)})
	}

	shape := tensor.Shape(info.Shape)
	size := info.DataOffsets[1] - info.DataOffsets[0]
	if size < 0 || size != int64(shape.NumElements()*4) {
		return nil, cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid data offsets for tensor %s: [%d, %d]",
				name, info.DataOffsets[0], info.DataOffsets[1]))
	}

	if _, err := r.file.Seek(r.dataOffset+info.DataOffsets[0], io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor %s: %w", name, err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.file, buf); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}

	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return tensor.RawFromSlice(data, shape)
}
