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
	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
)

// ContinuousDistribution is the cumulative distribution function of a
// one-dimensional continuous distribution. The distribution types of
// gonum's stat/distuv package satisfy this interface directly.
type ContinuousDistribution interface {
	CDF(x float64) float64
}

// LeakyQuantizer discretizes continuous distributions onto a bounded
// integer support so that every symbol in the support keeps a nonzero
// probability. Without the leak, encoding a tail symbol whose
// probability rounds to zero would be impossible; with it, every symbol
// of the support stays encodable at a worst-case cost of precision bits.
//
// A quantizer holds only the support and precision; each call to
// Quantize builds an independent, immutable model for one set of
// distribution parameters.
type LeakyQuantizer struct {
	supportMin int
	supportMax int
	precision  uint
}

// NewLeakyQuantizer creates a quantizer for the inclusive integer
// support [supportMin..supportMax] at the given fixed-point precision.
func NewLeakyQuantizer(supportMin, supportMax int, precision uint) (*LeakyQuantizer, error) {
	if supportMax < supportMin {
		return nil, errors.Wrapf(entropic.ErrDegenerateSupport,
			"support [%v..%v]", supportMin, supportMax)
	}

	if precision < entropic.MIN_PRECISION || precision > entropic.MAX_PRECISION {
		return nil, errors.Errorf("Invalid precision: %v (must be in [%v..%v])",
			precision, entropic.MIN_PRECISION, entropic.MAX_PRECISION)
	}

	size := int64(supportMax) - int64(supportMin) + 1

	if size > int64(1)<<precision {
		return nil, errors.Wrapf(entropic.ErrPrecisionOverflow,
			"support of %v symbols exceeds %v quantile slots", size, int64(1)<<precision)
	}

	this := &LeakyQuantizer{}
	this.supportMin = supportMin
	this.supportMax = supportMax
	this.precision = precision
	return this, nil
}

// Support returns the inclusive support bounds.
func (this *LeakyQuantizer) Support() (int, int) {
	return this.supportMin, this.supportMax
}

// Precision returns the fixed-point precision of quantized models.
func (this *LeakyQuantizer) Precision() uint {
	return this.precision
}

// Quantize builds the entropy model of the given distribution over the
// quantizer's support. Each interior symbol x receives the mass
// F(x+0.5) - F(x-0.5); the outermost symbols also absorb the tail mass
// beyond the support. Masses are scaled to integers summing exactly to
// 1<<precision with a floor of 1 per symbol. Construction is
// deterministic for identical parameters.
func (this *LeakyQuantizer) Quantize(dist ContinuousDistribution) (*Categorical, error) {
	n := int(int64(this.supportMax) - int64(this.supportMin) + 1)
	masses := make([]float64, n)

	if n == 1 {
		masses[0] = 1
	} else {
		masses[0] = dist.CDF(float64(this.supportMin) + 0.5)

		for i := 1; i < n-1; i++ {
			x := float64(this.supportMin + i)
			masses[i] = dist.CDF(x+0.5) - dist.CDF(x-0.5)
		}

		masses[n-1] = 1 - dist.CDF(float64(this.supportMax)-0.5)
	}

	probs, err := normalizeMasses(masses, this.precision)

	if err != nil {
		return nil, errors.Wrap(err, "quantizing distribution")
	}

	return newCategorical(this.supportMin, this.precision, probs), nil
}
