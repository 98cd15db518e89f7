package ml

import (
	"math"
)

//SetTrainTestSplit makes the first count usable samples the train subset and the rest the test subset.
//With shuffle the usable samples are first permuted by a Fisher-Yates pass driven by the seeded generator.
func (td *TrainData) SetTrainTestSplit(count int, shuffle bool) error {
	n := len(td.sampleIdx)
	if count < 0 || count > n {
		return InvalidArgf("train sample count %d outside [0, %d]", count, n)
	}

	order := append([]int(nil), td.sampleIdx...)
	if shuffle {
		td.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	td.trainIdx = order[:count:count]
	td.testIdx = order[count:]
	return nil
}

//SetTrainTestSplitRatio moves the share ratio of the usable samples (rounded) to the test subset.
//With 10 samples and ratio 0.3 the train subset is samples 0..6 and the test subset 7..9.
func (td *TrainData) SetTrainTestSplitRatio(ratio float64, shuffle bool) error {
	if !(ratio > 0 && ratio < 1) {
		return InvalidArgf("split ratio %g outside (0, 1)", ratio)
	}
	n := len(td.sampleIdx)
	testCount := int(math.Round(ratio * float64(n)))
	return td.SetTrainTestSplit(n-testCount, shuffle)
}

//ShuffleTrainTest reshuffles the usable samples keeping the current train subset size.
func (td *TrainData) ShuffleTrainTest() {
	_ = td.SetTrainTestSplit(len(td.trainIdx), true)
}

//SetSeed restarts the shuffling generator.
func (td *TrainData) SetSeed(seed uint64) {
	td.seed = seed
	td.rng = NewRand(seed)
}
