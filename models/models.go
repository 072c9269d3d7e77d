// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package models provides the Feature-Critic networks.
//
// Example:
//
//	extractor, err := models.NewFeatureExtractor(models.FeatureWidth, backend,
//	    models.ExtractorOptions{Weights: "resnet18.safetensors"})
//	classifier := models.NewClassifier(7, backend)
//	critic := models.NewCriticMLP(models.FeatureWidth, 64, backend)
package models

import (
	"github.com/born-ml/metakit/internal/models"
	"github.com/born-ml/metakit/nn"
	"github.com/born-ml/metakit/tensor"
)

// Feature widths and extractor input size.
const (
	FeatureWidth       = models.FeatureWidth
	HomoFeatureWidth   = models.HomoFeatureWidth
	ExtractorInputSize = models.ExtractorInputSize
)

// Critic scores features with a two-layer MLP and a softplus head.
type Critic[B tensor.Backend] = models.Critic[B]

// FeatureExtractor is a ResNet-18 trunk with a replaceable fc layer.
type FeatureExtractor[B tensor.Backend] = models.FeatureExtractor[B]

// ExtractorOptions configures NewFeatureExtractor.
type ExtractorOptions = models.ExtractorOptions

// NewCriticMLP builds a critic over [N, h] features.
func NewCriticMLP[B tensor.Backend](h, hh int, backend B) *Critic[B] {
	return models.NewCriticMLP(h, hh, backend)
}

// NewCriticFlattenFTF builds a critic that flattens [N, a, b] input with a·b = h.
func NewCriticFlattenFTF[B tensor.Backend](h, hh int, backend B) *Critic[B] {
	return models.NewCriticFlattenFTF(h, hh, backend)
}

// NewClassifier builds a single linear head over FeatureWidth features.
func NewClassifier[B tensor.Backend](classNum int, backend B) *nn.Sequential[B] {
	return models.NewClassifier(classNum, backend)
}

// NewClassifierHomo builds a ReLU + linear head over HomoFeatureWidth features.
func NewClassifierHomo[B tensor.Backend](classNum int, backend B) *nn.Sequential[B] {
	return models.NewClassifierHomo(classNum, backend)
}

// NewFeatureExtractor builds a ResNet-18 feature extractor.
func NewFeatureExtractor[B tensor.Backend](outputChannel int, backend B, opts ExtractorOptions) (*FeatureExtractor[B], error) {
	return models.NewFeatureExtractor(outputChannel, backend, opts)
}
