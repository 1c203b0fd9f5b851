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

package queue

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	entropic "github.com/entropiq/entropic-go"
	"github.com/entropiq/entropic-go/model"
)

func sampleSymbols(t *testing.T, n int, m *model.Categorical, seed int64) []int {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	symbols := make([]int, n)

	for i := range symbols {
		q := uint64(r.Int63n(int64(1) << m.Precision()))
		symbols[i], _, _ = m.QuantileToSymbol(q)
	}

	return symbols
}

func TestFIFOOrder(t *testing.T) {
	m, err := model.NewCategorical([]float64{1, 1, 1, 1, 1, 1, 1, 1}, 8)
	require.NoError(t, err)

	enc, err := NewEncoder(16, 8)
	require.NoError(t, err)

	for _, s := range []int{3, 1, 4, 1, 5} {
		require.NoError(t, enc.EncodeSymbol(s, m))
	}

	dec, err := NewDecoder(enc.FinishEncoding(), 16, 8)
	require.NoError(t, err)

	// Symbols decode in encoding order.
	for _, want := range []int{3, 1, 4, 1, 5} {
		got, err := dec.DecodeSymbol(m)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	require.True(t, dec.MaybeEmpty())
}

func TestRoundTripAllWordWidths(t *testing.T) {
	cases := []struct {
		wordBits  uint
		precision uint
	}{
		{8, 4}, {8, 8},
		{16, 8}, {16, 16},
		{32, 16}, {32, 24}, {32, 32},
	}

	for _, tc := range cases {
		m, err := model.NewCategorical([]float64{0.4, 0.3, 0.2, 0.1}, tc.precision)
		require.NoError(t, err)
		symbols := sampleSymbols(t, 500, m, int64(tc.wordBits*100+tc.precision))

		enc, err := NewEncoder(tc.wordBits, tc.precision)
		require.NoError(t, err)
		require.NoError(t, enc.EncodeAllIID(symbols, m))
		words := enc.FinishEncoding()
		require.Equal(t, len(words), enc.NumWords())

		dec, err := NewDecoder(words, tc.wordBits, tc.precision)
		require.NoError(t, err)
		decoded, err := dec.DecodeAllIID(len(symbols), m)
		require.NoError(t, err, "word width %v, precision %v", tc.wordBits, tc.precision)
		require.Equal(t, symbols, decoded, "word width %v, precision %v", tc.wordBits, tc.precision)
		require.True(t, dec.MaybeEmpty())
	}
}

func TestRoundTripPerSymbolModels(t *testing.T) {
	quantizer, err := model.NewLeakyQuantizer(-64, 63, 16)
	require.NoError(t, err)

	wide, err := quantizer.QuantizeGaussian(0, 20)
	require.NoError(t, err)
	narrow, err := quantizer.QuantizeGaussian(17, 1.5)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(21))
	n := 300
	symbols := make([]int, n)
	models := make([]entropic.EntropyModel, n)

	for i := 0; i < n; i++ {
		m := wide
		if i%2 == 1 {
			m = narrow
		}

		models[i] = m
		symbols[i], _, _ = m.QuantileToSymbol(uint64(r.Int63n(1 << 16)))
	}

	enc, err := NewEncoder(32, 16)
	require.NoError(t, err)
	require.NoError(t, enc.EncodeAll(symbols, models))

	dec, err := NewDecoder(enc.FinishEncoding(), 32, 16)
	require.NoError(t, err)
	decoded, err := dec.DecodeAll(models)
	require.NoError(t, err)
	require.Equal(t, symbols, decoded)
	require.True(t, dec.MaybeEmpty())
}

func TestEmptyEncoderSealsEmpty(t *testing.T) {
	enc, err := NewEncoder(32, 24)
	require.NoError(t, err)
	require.True(t, enc.IsEmpty())
	require.Equal(t, 0, enc.NumWords())

	words := enc.FinishEncoding()
	require.Empty(t, words)

	dec, err := NewDecoder(words, 32, 24)
	require.NoError(t, err)
	require.True(t, dec.MaybeEmpty())
}

func TestSingleSymbolSingleWord(t *testing.T) {
	quantizer, err := model.NewLeakyQuantizer(-100, 100, 24)
	require.NoError(t, err)
	m, err := quantizer.QuantizeGaussian(0, 10)
	require.NoError(t, err)

	enc, err := NewEncoder(32, 24)
	require.NoError(t, err)
	require.NoError(t, enc.EncodeSymbol(0, m))
	require.Equal(t, 1, enc.NumWords())

	words := enc.FinishEncoding()
	require.Len(t, words, 1)

	dec, err := NewDecoder(words, 32, 24)
	require.NoError(t, err)
	got, err := dec.DecodeSymbol(m)
	require.NoError(t, err)
	require.Equal(t, 0, got)
	require.True(t, dec.MaybeEmpty())
}

func TestCarryPropagation(t *testing.T) {
	// A long skewed stream drives low close to the wrap point often
	// enough to exercise the held-back word runs on every width.
	for _, wordBits := range []uint{8, 16, 32} {
		precision := wordBits
		m, err := model.NewCategorical([]float64{0.97, 0.01, 0.01, 0.01}, precision)
		require.NoError(t, err)
		symbols := sampleSymbols(t, 5000, m, int64(wordBits))

		enc, err := NewEncoder(wordBits, precision)
		require.NoError(t, err)
		require.NoError(t, enc.EncodeAllIID(symbols, m))

		dec, err := NewDecoder(enc.FinishEncoding(), wordBits, precision)
		require.NoError(t, err)
		decoded, err := dec.DecodeAllIID(len(symbols), m)
		require.NoError(t, err, "word width %v", wordBits)
		require.Equal(t, symbols, decoded, "word width %v", wordBits)
		require.True(t, dec.MaybeEmpty())
	}
}

func TestTruncationDetected(t *testing.T) {
	// With probability 1 per symbol the range shrinks to the
	// renormalization bound on every encode, so each symbol costs
	// exactly one word and any truncation starves the decoder.
	probs := make([]float64, 1<<16)
	for i := range probs {
		probs[i] = 1
	}

	m, err := model.NewCategorical(probs, 16)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(17))
	symbols := make([]int, 64)

	for i := range symbols {
		symbols[i] = r.Intn(1 << 16)
	}

	enc, err := NewEncoder(16, 16)
	require.NoError(t, err)
	require.NoError(t, enc.EncodeAllIID(symbols, m))
	words := enc.FinishEncoding()
	require.Equal(t, len(symbols)+1, len(words))

	for _, cut := range []int{1, 5, 30} {
		dec, err := NewDecoder(words[:len(words)-cut], 16, 16)
		require.NoError(t, err)

		decoded := 0
		var decodeErr error

		for decoded < len(symbols) {
			if _, decodeErr = dec.DecodeSymbol(m); decodeErr != nil {
				break
			}

			decoded++
		}

		// The starved decoder reports exhaustion, unless the zero-filled
		// read-ahead word already trips the interval consistency check.
		require.True(t,
			errors.Is(decodeErr, entropic.ErrExhaustedBackend) ||
				errors.Is(decodeErr, entropic.ErrCorruptedData),
			"cut %v: got %v", cut, decodeErr)
		require.Less(t, decoded, len(symbols), "cut %v", cut)
	}
}

func TestShortStreamTruncationDetected(t *testing.T) {
	m, err := model.NewCategorical([]float64{1, 1, 1, 1}, 16)
	require.NoError(t, err)

	// 17 quarter-probability symbols renormalize exactly once, so the
	// sealed stream is two words; dropping the first leaves a stream
	// one word short of anything the encoder can produce.
	r := rand.New(rand.NewSource(29))
	symbols := make([]int, 17)

	for i := range symbols {
		symbols[i] = r.Intn(4)
	}

	enc, err := NewEncoder(32, 16)
	require.NoError(t, err)
	require.NoError(t, enc.EncodeAllIID(symbols, m))
	words := enc.FinishEncoding()
	require.Len(t, words, 2)

	dec, err := NewDecoder(words[:1], 32, 16)
	require.NoError(t, err)

	decoded := 0
	var decodeErr error

	for decoded < len(symbols) {
		if _, decodeErr = dec.DecodeSymbol(m); decodeErr != nil {
			break
		}

		decoded++
	}

	require.ErrorIs(t, decodeErr, entropic.ErrExhaustedBackend)
	require.Less(t, decoded, len(symbols))

	// A single-symbol stream truncated to nothing must error on the
	// first decode, not hand back a symbol.
	enc, err = NewEncoder(32, 16)
	require.NoError(t, err)
	require.NoError(t, enc.EncodeSymbol(symbols[0], m))
	require.Len(t, enc.FinishEncoding(), 1)

	dec, err = NewDecoder(nil, 32, 16)
	require.NoError(t, err)
	_, decodeErr = dec.DecodeSymbol(m)
	require.ErrorIs(t, decodeErr, entropic.ErrExhaustedBackend)
}

func TestNearOptimalCompression(t *testing.T) {
	m, err := model.NewCategorical([]float64{0.5, 0.25, 0.125, 0.0625, 0.0625}, 16)
	require.NoError(t, err)

	const n = 20000
	symbols := sampleSymbols(t, n, m, 4321)

	enc, err := NewEncoder(32, 16)
	require.NoError(t, err)
	require.NoError(t, enc.EncodeAllIID(symbols, m))
	words := enc.FinishEncoding()

	entropyBits := float64(n) * m.Entropy()
	gotBits := float64(len(words) * 32)

	require.Less(t, gotBits, entropyBits*1.02+64,
		"compressed size %.0f bits vs entropy %.0f bits", gotBits, entropyBits)
	require.Greater(t, gotBits, entropyBits*0.95)

	dec, err := NewDecoder(words, 32, 16)
	require.NoError(t, err)
	decoded, err := dec.DecodeAllIID(n, m)
	require.NoError(t, err)
	require.Equal(t, symbols, decoded)
}

func TestEncoderErrors(t *testing.T) {
	_, err := NewEncoder(64, 32)
	require.Error(t, err)

	_, err = NewEncoder(16, 17)
	require.Error(t, err)

	m8, err := model.NewCategorical([]float64{1, 1}, 8)
	require.NoError(t, err)
	m4, err := model.NewCategorical([]float64{1, 1}, 4)
	require.NoError(t, err)

	enc, err := NewEncoder(16, 8)
	require.NoError(t, err)

	err = enc.EncodeSymbol(0, m4)
	require.ErrorIs(t, err, entropic.ErrPrecisionMismatch)

	err = enc.EncodeSymbol(-1, m8)
	require.ErrorIs(t, err, entropic.ErrInvalidSymbol)

	err = enc.EncodeAll([]int{0}, nil)
	require.ErrorIs(t, err, entropic.ErrSequenceLength)

	enc.FinishEncoding()
	require.Error(t, enc.EncodeSymbol(0, m8))
}

func TestDecoderErrors(t *testing.T) {
	_, err := NewDecoder(nil, 24, 8)
	require.Error(t, err)

	m4, err := model.NewCategorical([]float64{1, 1}, 4)
	require.NoError(t, err)

	dec, err := NewDecoder([]uint32{42}, 16, 8)
	require.NoError(t, err)
	_, err = dec.DecodeSymbol(m4)
	require.ErrorIs(t, err, entropic.ErrPrecisionMismatch)
}
