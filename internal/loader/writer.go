package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/born-ml/metakit/internal/tensor"
)

// Write stores tensors as F32 entries in a new SafeTensors file at path.
// Entries are laid out in name order.
func Write(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	var offset int64
	for _, name := range names {
		raw := tensors[name]
		size := int64(raw.NumElements() * 4)
		header[name] = TensorInfo{
			DType:       F32,
			Shape:       raw.Shape(),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	file, err := os.Create(path) //nolint:gosec // G304: caller-chosen output path
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	if err := binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, name := range names {
		data := tensors[name].Data()
		buf := make([]byte, len(data)*4)
		for i, v := range data {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := file.Write(buf); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}
