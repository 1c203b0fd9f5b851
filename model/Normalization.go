/*
Copyright 2021-2024 The entropic-go authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package model provides the concrete entropy models of the engine: the
// leaky quantizer that discretizes continuous distributions, categorical
// models built from explicit probabilities, the lookup table that makes
// quantile inversion O(1), and an explicit model cache.
package model

import (
	"container/heap"
	"math"

	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
)

type binAdjustData struct {
	probs  []uint64
	symbol int
}

// binPriorityQueue orders bins most significant first, so that the
// rounding deviation is absorbed where it distorts the distribution the
// least (one unit on a large probability).
type binPriorityQueue []*binAdjustData

func (this binPriorityQueue) Len() int {
	return len(this)
}

func (this binPriorityQueue) Less(i, j int) bool {
	di := this[i]
	dj := this[j]

	// Decreasing probability
	if di.probs[di.symbol] != dj.probs[dj.symbol] {
		return di.probs[di.symbol] > dj.probs[dj.symbol]
	}

	// Increasing symbol
	return di.symbol < dj.symbol
}

func (this binPriorityQueue) Swap(i, j int) {
	this[i], this[j] = this[j], this[i]
}

func (this *binPriorityQueue) Push(data interface{}) {
	*this = append(*this, data.(*binAdjustData))
}

func (this *binPriorityQueue) Pop() interface{} {
	old := *this
	n := len(old)
	data := old[n-1]
	*this = old[0 : n-1]
	return data
}

// normalizeMasses scales the given nonnegative masses to integer
// probabilities that sum to exactly 1<<precision, with a floor of 1 per
// bin (the leak). Non-finite or negative masses count as zero. The
// result is deterministic for identical inputs.
func normalizeMasses(masses []float64, precision uint) ([]uint64, error) {
	n := len(masses)

	if n == 0 {
		return nil, errors.New("Invalid empty mass parameter")
	}

	if precision < entropic.MIN_PRECISION || precision > entropic.MAX_PRECISION {
		return nil, errors.Errorf("Invalid precision: %v (must be in [%v..%v])",
			precision, entropic.MIN_PRECISION, entropic.MAX_PRECISION)
	}

	total := uint64(1) << precision

	if uint64(n) > total {
		return nil, errors.Wrapf(entropic.ErrPrecisionOverflow,
			"%v bins but only %v quantile slots", n, total)
	}

	sumMass := float64(0)

	for _, m := range masses {
		if math.IsInf(m, 0) || math.IsNaN(m) || m < 0 {
			continue
		}

		sumMass += m
	}

	if sumMass <= 0 {
		return nil, errors.New("Invalid masses: total mass is zero")
	}

	// Scale, round to nearest and clamp to the leak floor
	probs := make([]uint64, n)
	sum := uint64(0)

	for i, m := range masses {
		if math.IsInf(m, 0) || math.IsNaN(m) || m < 0 {
			m = 0
		}

		p := uint64(math.Round(m / sumMass * float64(total)))

		if p == 0 {
			p = 1
		}

		probs[i] = p
		sum += p
	}

	if sum == total {
		return probs, nil
	}

	// Redistribute the rounding deviation one unit at a time, largest
	// bins first, never pushing a bin below its floor of 1.
	var inc uint64 = 1
	shrink := sum > total

	queue := make(binPriorityQueue, 0, n)

	for i := range probs {
		if !shrink || probs[i] > 1 {
			heap.Push(&queue, &binAdjustData{probs: probs, symbol: i})
		}
	}

	for sum != total && len(queue) > 0 {
		bin := heap.Pop(&queue).(*binAdjustData)

		if shrink {
			if probs[bin.symbol] <= 1 {
				continue
			}

			probs[bin.symbol] -= inc
			sum -= inc
		} else {
			probs[bin.symbol] += inc
			sum += inc
		}

		heap.Push(&queue, bin)
	}

	if sum != total {
		// Unreachable while n <= total: growing always succeeds, and
		// shrinking can stop only at the all-ones floor, whose sum n
		// never exceeds total.
		return nil, errors.Errorf("Cannot normalize masses: sum %v != %v", sum, total)
	}

	return probs, nil
}

// cumulativeFromProbs computes the exclusive prefix sums, with a final
// entry equal to the full fixed-point total.
func cumulativeFromProbs(probs []uint64) []uint64 {
	cdf := make([]uint64, len(probs)+1)
	sum := uint64(0)

	for i, p := range probs {
		cdf[i] = sum
		sum += p
	}

	cdf[len(probs)] = sum
	return cdf
}
