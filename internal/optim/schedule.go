package optim

import "math"

// Step-decay boundaries of LearningRate, in epochs.
const (
	firstDecayEpoch  = 60
	secondDecayEpoch = 120
	thirdDecayEpoch  = 160

	decayFactor = 0.2
)

// LearningRate returns initLR * 0.2^k where k counts the boundaries (60, 120,
// 160) that epoch is strictly past:
//
//	LearningRate(0.1, 60)  == 0.1
//	LearningRate(0.1, 61)  == 0.02
//	LearningRate(0.1, 121) == 0.004
//	LearningRate(0.1, 161) == 0.0008
func LearningRate(initLR float64, epoch int) float64 {
	k := 0
	switch {
	case epoch > thirdDecayEpoch:
		k = 3
	case epoch > secondDecayEpoch:
		k = 2
	case epoch > firstDecayEpoch:
		k = 1
	}
	return initLR * math.Pow(decayFactor, float64(k))
}
