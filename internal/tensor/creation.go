package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return New(MustRaw(shape), b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with value.
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn fills a tensor with N(0, 1) samples using the Box-Muller transform.
func Randn[B Backend](shape Shape, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := 0; i < len(data); i += 2 {
		u1 := 1 - rand.Float64() //nolint:gosec // G404: weight init does not need crypto randomness
		u2 := rand.Float64()     //nolint:gosec // G404: weight init does not need crypto randomness
		r := math.Sqrt(-2 * math.Log(u1))
		data[i] = float32(r * math.Cos(2*math.Pi*u2))
		if i+1 < len(data) {
			data[i+1] = float32(r * math.Sin(2*math.Pi*u2))
		}
	}
	return t
}

// Rand fills a tensor with samples from U[0, 1).
func Rand[B Backend](shape Shape, b B) *Tensor[B] {
	return Uniform(shape, 0, 1, b)
}

// Uniform fills a tensor with samples from U[low, high).
func Uniform[B Backend](shape Shape, low, high float64, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(low + rand.Float64()*(high-low)) //nolint:gosec // G404: see Randn
	}
	return t
}
