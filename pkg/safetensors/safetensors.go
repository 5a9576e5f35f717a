// Package safetensors reads the safetensors weight-file format.
//
// The format is a single file laid out as:
//
//	[8B little-endian header length N]
//	[N bytes JSON header: name → {dtype, shape, data_offsets}]
//	[raw tensor data, offsets relative to the end of the header]
//
// Only F32 tensors are materialized; other dtypes are skipped. The reader
// loads the whole file into memory, which is acceptable for the classifier
// head and transformer weights this project ships (tens of megabytes).
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// Tensor is one named weight tensor.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NumElements returns the product of the shape dimensions.
func (t Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type headerEntry struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// ReadFile parses the safetensors file at path and returns all F32 tensors
// keyed by name.
func ReadFile(path string) (map[string]Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses in-memory safetensors data.
func Parse(data []byte) (map[string]Tensor, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors: file too short")
	}
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("safetensors: header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	payload := data[8+headerLen:]
	tensors := make(map[string]Tensor, len(header))
	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}
		var e headerEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("safetensors: parse entry %q: %w", name, err)
		}
		if !strings.EqualFold(e.DType, "F32") {
			continue
		}
		start, end := e.DataOffsets[0], e.DataOffsets[1]
		if start < 0 || end > len(payload) || start > end {
			return nil, fmt.Errorf("safetensors: entry %q has bad offsets [%d, %d)", name, start, end)
		}

		n := (end - start) / 4
		values := make([]float32, n)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(payload[start+4*i:])
			values[i] = math.Float32frombits(bits)
		}

		t := Tensor{Shape: e.Shape, Data: values}
		if t.NumElements() != n {
			return nil, fmt.Errorf("safetensors: entry %q shape %v does not match %d elements", name, e.Shape, n)
		}
		tensors[name] = t
	}
	return tensors, nil
}

// Marshal encodes tensors into the safetensors format, all as F32.
// Names are emitted in sorted order so output is deterministic.
func Marshal(tensors map[string]Tensor) ([]byte, error) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]headerEntry, len(tensors))
	offset := 0
	for _, name := range names {
		t := tensors[name]
		if t.NumElements() != len(t.Data) {
			return nil, fmt.Errorf("safetensors: tensor %q shape %v does not match %d elements", name, t.Shape, len(t.Data))
		}
		size := len(t.Data) * 4
		header[name] = headerEntry{
			DType:       "F32",
			Shape:       t.Shape,
			DataOffsets: [2]int{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: encode header: %w", err)
	}

	out := make([]byte, 0, 8+len(headerJSON)+offset)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(headerJSON)))
	out = append(out, headerJSON...)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out, nil
}

// WriteFile marshals tensors and writes them to path.
func WriteFile(path string, tensors map[string]Tensor) error {
	data, err := Marshal(tensors)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}
	return nil
}

// Filter returns the tensors whose name contains any of the given
// substrings, with the optional prefix stripped from the kept names.
func Filter(tensors map[string]Tensor, stripPrefix string, substrings ...string) map[string]Tensor {
	out := make(map[string]Tensor)
	for name, t := range tensors {
		for _, sub := range substrings {
			if strings.Contains(name, sub) {
				out[strings.TrimPrefix(name, stripPrefix)] = t
				break
			}
		}
	}
	return out
}
