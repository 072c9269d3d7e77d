// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Convolution and pooling split work across goroutines per batch element
// and channel; NewSequential keeps everything on the calling goroutine.
package cpu

import (
	internalcpu "github.com/born-ml/metakit/internal/backend/cpu"
	"github.com/born-ml/metakit/tensor"
)

// Backend is the CPU backend.
type Backend = internalcpu.CPUBackend

var _ tensor.Backend = (*Backend)(nil)

// New returns a CPU backend that parallelizes large kernels.
func New() *Backend {
	return internalcpu.New()
}

// NewSequential returns a CPU backend that never spawns goroutines.
func NewSequential() *Backend {
	return internalcpu.NewSequential()
}
