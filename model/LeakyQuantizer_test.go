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
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	entropic "github.com/entropiq/entropic-go"
)

// checkModel verifies the fixed-point model contract: probabilities of
// at least 1 summing to exactly 1<<precision, and QuantileToSymbol the
// exact left inverse of ProbabilityOf over all quantiles.
func checkModel(t *testing.T, m *Categorical) {
	t.Helper()
	total := uint64(1) << m.Precision()
	min, max := m.Support()
	var sum uint64

	for s := min; s <= max; s++ {
		cumulative, probability, err := m.ProbabilityOf(s)
		require.NoError(t, err)
		require.GreaterOrEqual(t, probability, uint64(1), "symbol %v lost its leak", s)
		require.Equal(t, sum, cumulative, "symbol %v", s)
		sum += probability
	}

	require.Equal(t, total, sum, "probabilities must sum to 1<<precision")

	for q := uint64(0); q < total; q++ {
		symbol, cumulative, probability := m.QuantileToSymbol(q)
		require.GreaterOrEqual(t, q, cumulative)
		require.Less(t, q-cumulative, probability)

		c2, p2, err := m.ProbabilityOf(symbol)
		require.NoError(t, err)
		require.Equal(t, cumulative, c2)
		require.Equal(t, probability, p2)
	}
}

func TestQuantizeGaussianContract(t *testing.T) {
	quantizer, err := NewLeakyQuantizer(-50, 50, 10)
	require.NoError(t, err)

	params := []struct {
		mean, stddev float64
	}{
		{0, 10},
		{22.5, 0.1},
		{-40, 100},
		{500, 3}, // far outside the support, all mass in the edge bin
	}

	for _, p := range params {
		m, err := quantizer.QuantizeGaussian(p.mean, p.stddev)
		require.NoError(t, err, "mean %v stddev %v", p.mean, p.stddev)
		checkModel(t, m)

		min, max := m.Support()
		require.Equal(t, -50, min)
		require.Equal(t, 50, max)
	}
}

func TestQuantizeTailCapture(t *testing.T) {
	quantizer, err := NewLeakyQuantizer(-5, 5, 12)
	require.NoError(t, err)

	// Mean far to the right: the top bin absorbs nearly all mass.
	m, err := quantizer.QuantizeGaussian(100, 1)
	require.NoError(t, err)

	_, probability, err := m.ProbabilityOf(5)
	require.NoError(t, err)
	require.Greater(t, probability, uint64(1)<<11, "edge bin should hold most of the mass")

	// And the far tail still gets its leak.
	_, probability, err = m.ProbabilityOf(-5)
	require.NoError(t, err)
	require.GreaterOrEqual(t, probability, uint64(1))
}

func TestQuantizeDeterministic(t *testing.T) {
	quantizer, err := NewLeakyQuantizer(-100, 100, 24)
	require.NoError(t, err)

	a, err := quantizer.Quantize(distuv.Normal{Mu: 3.5, Sigma: 7})
	require.NoError(t, err)
	b, err := quantizer.Quantize(distuv.Normal{Mu: 3.5, Sigma: 7})
	require.NoError(t, err)

	require.Equal(t, a.cdf, b.cdf)
}

func TestQuantizeSingleSymbol(t *testing.T) {
	quantizer, err := NewLeakyQuantizer(7, 7, 8)
	require.NoError(t, err)

	m, err := quantizer.QuantizeGaussian(0, 1)
	require.NoError(t, err)

	cumulative, probability, err := m.ProbabilityOf(7)
	require.NoError(t, err)
	require.Equal(t, uint64(0), cumulative)
	require.Equal(t, uint64(256), probability)

	symbol, _, _ := m.QuantileToSymbol(123)
	require.Equal(t, 7, symbol)
}

func TestQuantizerConstructionErrors(t *testing.T) {
	_, err := NewLeakyQuantizer(5, 4, 8)
	require.ErrorIs(t, err, entropic.ErrDegenerateSupport)

	_, err = NewLeakyQuantizer(0, 10, 0)
	require.Error(t, err)

	_, err = NewLeakyQuantizer(0, 10, 33)
	require.Error(t, err)

	// 2^8 slots cannot host 257 symbols at one slot each.
	_, err = NewLeakyQuantizer(0, 256, 8)
	require.ErrorIs(t, err, entropic.ErrPrecisionOverflow)

	quantizer, err := NewLeakyQuantizer(0, 1, 8)
	require.NoError(t, err)
	_, err = quantizer.QuantizeGaussian(0, -1)
	require.Error(t, err)
}

func TestCategoricalFromFloats(t *testing.T) {
	m, err := NewCategorical([]float64{0.5, 0.25, 0.125, 0.125}, 8)
	require.NoError(t, err)
	checkModel(t, m)

	cumulative, probability, err := m.ProbabilityOf(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), cumulative)
	require.Equal(t, uint64(128), probability)

	cumulative, probability, err = m.ProbabilityOf(3)
	require.NoError(t, err)
	require.Equal(t, uint64(224), cumulative)
	require.Equal(t, uint64(32), probability)

	_, _, err = m.ProbabilityOf(4)
	require.ErrorIs(t, err, entropic.ErrInvalidSymbol)
	_, _, err = m.ProbabilityOf(-1)
	require.ErrorIs(t, err, entropic.ErrInvalidSymbol)
}

func TestCategoricalLeak(t *testing.T) {
	// A zero floating-point probability still yields an encodable symbol.
	m, err := NewCategorical([]float64{1, 0, 1}, 16)
	require.NoError(t, err)
	checkModel(t, m)

	_, probability, err := m.ProbabilityOf(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), probability)
}

func TestCategoricalErrors(t *testing.T) {
	_, err := NewCategorical(nil, 8)
	require.Error(t, err)

	_, err = NewCategorical([]float64{0, 0}, 8)
	require.Error(t, err)

	// 300 symbols do not fit 2^8 slots.
	probs := make([]float64, 300)
	for i := range probs {
		probs[i] = 1
	}
	_, err = NewCategorical(probs, 8)
	require.ErrorIs(t, err, entropic.ErrPrecisionOverflow)
}

func TestCategoricalEntropy(t *testing.T) {
	m, err := NewCategorical([]float64{0.25, 0.25, 0.25, 0.25}, 16)
	require.NoError(t, err)
	require.InDelta(t, 2.0, m.Entropy(), 1e-9)

	m, err = NewCategorical([]float64{0.5, 0.25, 0.125, 0.125}, 16)
	require.NoError(t, err)
	require.InDelta(t, 1.75, m.Entropy(), 1e-9)
}
