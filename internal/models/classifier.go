package models

import (
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
)

// FeatureWidth is the width of the ResNet-18 pooled features.
const FeatureWidth = 512

// HomoFeatureWidth is the input width of the homogeneous classifier head.
const HomoFeatureWidth = 4096

// NewClassifier returns Sequential(Linear(512, classNum)) initialized with
// nn.ClassifierInit. Its parameters are "0.weight" and "0.bias".
func NewClassifier[B tensor.Backend](classNum int, backend B) *nn.Sequential[B] {
	model := nn.NewSequential[B](nn.NewLinear(FeatureWidth, classNum, backend))
	nn.Initialize[B](model, nn.ClassifierInit)
	return model
}

// NewClassifierHomo returns Sequential(ReLU, Linear(4096, classNum))
// initialized with nn.ClassifierInit. Its parameters are "1.weight" and
// "1.bias".
func NewClassifierHomo[B tensor.Backend](classNum int, backend B) *nn.Sequential[B] {
	model := nn.NewSequential[B](
		nn.NewReLU[B](),
		nn.NewLinear(HomoFeatureWidth, classNum, backend),
	)
	nn.Initialize[B](model, nn.ClassifierInit)
	return model
}
