package ml

import (
	"golang.org/x/exp/rand"
)

//NewRand returns a generator backed by the PCG source of x/exp/rand.
//Equal seeds produce equal streams on every platform.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

//DeriveSeed mixes a stream number into seed with the splitmix64 finalizer,
//giving independent generators for trees, folds and the like.
func DeriveSeed(seed, stream uint64) uint64 {
	z := seed + (stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
