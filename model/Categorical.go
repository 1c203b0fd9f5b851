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

package model

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
)

// Categorical is a fixed-point categorical distribution over a
// contiguous range of integer symbols [offset, offset+n). It is the
// concrete entropy model produced both by NewCategorical (offset 0) and
// by LeakyQuantizer.Quantize (offset = support minimum).
//
// A Categorical is immutable after construction and may be shared
// freely across coder instances and goroutines.
type Categorical struct {
	offset    int
	precision uint
	cdf       []uint64 // exclusive prefix sums; cdf[n] == 1<<precision
}

// NewCategorical builds a model over the symbols 0..len(probabilities)-1
// from floating-point probabilities. The probabilities need not sum to
// one; they are scaled to integers summing exactly to 1<<precision, and
// every listed symbol keeps a probability of at least 1 (the leak), even
// when its floating-point probability is zero.
func NewCategorical(probabilities []float64, precision uint) (*Categorical, error) {
	probs, err := normalizeMasses(probabilities, precision)

	if err != nil {
		return nil, err
	}

	return newCategorical(0, precision, probs), nil
}

func newCategorical(offset int, precision uint, probs []uint64) *Categorical {
	this := &Categorical{}
	this.offset = offset
	this.precision = precision
	this.cdf = cumulativeFromProbs(probs)
	return this
}

// Precision implements entropic.EntropyModel.
func (this *Categorical) Precision() uint {
	return this.precision
}

// Support returns the inclusive symbol range of the model.
func (this *Categorical) Support() (int, int) {
	return this.offset, this.offset + len(this.cdf) - 2
}

// ProbabilityOf implements entropic.EntropyModel.
func (this *Categorical) ProbabilityOf(symbol int) (uint64, uint64, error) {
	i := symbol - this.offset

	if i < 0 || i >= len(this.cdf)-1 {
		min, max := this.Support()
		return 0, 0, errors.Wrapf(entropic.ErrInvalidSymbol,
			"symbol %v outside the support [%v..%v]", symbol, min, max)
	}

	return this.cdf[i], this.cdf[i+1] - this.cdf[i], nil
}

// QuantileToSymbol implements entropic.EntropyModel with a binary
// search over the cumulative sums.
func (this *Categorical) QuantileToSymbol(quantile uint64) (int, uint64, uint64) {
	n := len(this.cdf) - 1
	i := sort.Search(n, func(i int) bool { return this.cdf[i+1] > quantile })

	if i == n {
		// Quantiles at or above 1<<precision violate the caller-side
		// contract; clamp to keep the mapping total.
		i = n - 1
	}

	return this.offset + i, this.cdf[i], this.cdf[i+1] - this.cdf[i]
}

// Entropy returns the model entropy in bits per symbol, computed from
// the fixed-point probabilities (not from the continuous distribution a
// quantized model approximates).
func (this *Categorical) Entropy() float64 {
	total := float64(this.cdf[len(this.cdf)-1])
	h := float64(0)

	for i := 0; i < len(this.cdf)-1; i++ {
		p := float64(this.cdf[i+1]-this.cdf[i]) / total
		h -= p * math.Log2(p)
	}

	return h
}
