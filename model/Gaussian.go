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

	"gonum.org/v1/gonum/stat/distuv"
)

// QuantizeGaussian quantizes a normal distribution with the given mean
// and standard deviation. This is the most common model in learned
// compression codecs, where a density estimator predicts (mean, stddev)
// per symbol.
func (this *LeakyQuantizer) QuantizeGaussian(mean, stddev float64) (*Categorical, error) {
	if stddev <= 0 {
		return nil, errors.Errorf("Invalid standard deviation: %v (must be positive)", stddev)
	}

	return this.Quantize(distuv.Normal{Mu: mean, Sigma: stddev})
}
