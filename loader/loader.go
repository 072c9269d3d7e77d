// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader reads and writes float32 safetensors weights.
//
// Example:
//
//	report, err := loader.LoadInto(model, "resnet18.safetensors", loader.WithSkipPrefix("fc."))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(report.Loaded), "tensors loaded")
package loader

import (
	"github.com/born-ml/metakit/internal/loader"
	"github.com/born-ml/metakit/nn"
	"github.com/born-ml/metakit/tensor"
)

// Reader gives access to the tensors of a safetensors file.
type Reader = loader.Reader

// TensorInfo describes one tensor entry.
type TensorInfo = loader.TensorInfo

// Report lists what LoadInto did with each entry.
type Report = loader.Report

// Option configures LoadInto.
type Option = loader.Option

// Open reads the header of a safetensors file.
func Open(path string) (*Reader, error) {
	return loader.Open(path)
}

// WithSkipPrefix ignores entries whose name starts with any prefix.
func WithSkipPrefix(prefixes ...string) Option {
	return loader.WithSkipPrefix(prefixes...)
}

// LoadInto copies every matching entry of path into the slots of root.
func LoadInto[B tensor.Backend](root nn.Module[B], path string, opts ...Option) (Report, error) {
	return loader.LoadInto(root, path, opts...)
}

// Save writes every parameter and buffer of root to path.
func Save[B tensor.Backend](root nn.Module[B], path string, metadata map[string]string) error {
	return loader.Save(root, path, metadata)
}

// Write writes raw tensors to path as F32 entries.
func Write(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	return loader.Write(path, tensors, metadata)
}
