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

// Package stack implements the LIFO entropy coder: a range variant of
// an Asymmetric Numeral System (rANS).
// See "Asymmetric Numeral System" by Jarek Duda at http://arxiv.org/abs/0902.0271
//
// The coder keeps one integer state of twice the word width. Encoding
// amortizes each symbol's information onto the state and spills a word
// whenever the state would outgrow its range; decoding reads the spilled
// words back in reverse. The discipline is a stack: the last symbol
// encoded is the first symbol decoded, so callers encode in the reverse
// of the intended decode order (EncodeAll does the reversal).
package stack

import (
	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
	"github.com/entropiq/entropic-go/backend"
)

// Encoder is the write half of the stack coder. One encoder exclusively
// owns its state and backend; it is not safe for concurrent use.
type Encoder struct {
	buf        *backend.Buffer
	state      uint64
	wordBits   uint
	stateBits  uint
	wordMask   uint64
	lowerBound uint64
	precision  uint
	finished   bool
}

// NewEncoder creates an empty encoder. The word width must be 8, 16 or
// 32 bits and the precision must be in [1..wordBits]; every model used
// with the encoder must carry exactly this precision.
func NewEncoder(wordBits, precision uint) (*Encoder, error) {
	if err := entropic.CheckCoderParams(wordBits, precision); err != nil {
		return nil, err
	}

	this := &Encoder{}
	this.buf = backend.NewBuffer()
	this.wordBits = wordBits
	this.stateBits = 2 * wordBits
	this.wordMask = entropic.WordMask(wordBits)
	this.lowerBound = uint64(1) << wordBits
	this.precision = precision
	this.state = this.lowerBound
	return this, nil
}

// EncodeSymbol encodes one symbol against the given model. Symbols must
// be encoded in the reverse of the intended decode order.
func (this *Encoder) EncodeSymbol(symbol int, m entropic.EntropyModel) error {
	if this.finished {
		return errors.New("ANS encoder: already finished")
	}

	if m.Precision() != this.precision {
		return errors.Wrapf(entropic.ErrPrecisionMismatch,
			"model precision %v, coder precision %v", m.Precision(), this.precision)
	}

	cumulative, probability, err := m.ProbabilityOf(symbol)

	if err != nil {
		return err
	}

	if probability == 0 {
		return errors.Wrapf(entropic.ErrZeroProbability, "symbol %v", symbol)
	}

	// Renormalize before the update. The check is written as a shift of
	// the state rather than of the probability so that it cannot
	// overflow even for probability == 1<<precision. One flush always
	// suffices: afterwards state < 2^w <= probability << (2w-P) since
	// probability >= 1 and P <= w.
	if this.state>>(this.stateBits-this.precision) >= probability {
		this.buf.Push(uint32(this.state & this.wordMask))
		this.state >>= this.wordBits
	}

	// C(s,x) = (x/p)*2^P + (x%p) + c.
	// The quotient is below 2^(2w-P) after renormalization, so the
	// shifted quotient fits the state width; the remainder plus the
	// cumulative stays below 2^P.
	this.state = (this.state/probability)<<this.precision + this.state%probability + cumulative
	return nil
}

// EncodeAll encodes the sequences back to front, so that DecodeAll on
// the matching decoder returns the symbols in their original order. The
// sequences must have equal length.
func (this *Encoder) EncodeAll(symbols []int, models []entropic.EntropyModel) error {
	if len(symbols) != len(models) {
		return errors.Wrapf(entropic.ErrSequenceLength,
			"%v symbols, %v models", len(symbols), len(models))
	}

	for i := len(symbols) - 1; i >= 0; i-- {
		if err := this.EncodeSymbol(symbols[i], models[i]); err != nil {
			return errors.Wrapf(err, "encoding symbol at index %v", i)
		}
	}

	return nil
}

// EncodeAllIID encodes the symbols back to front against one shared
// model.
func (this *Encoder) EncodeAllIID(symbols []int, m entropic.EntropyModel) error {
	for i := len(symbols) - 1; i >= 0; i-- {
		if err := this.EncodeSymbol(symbols[i], m); err != nil {
			return errors.Wrapf(err, "encoding symbol at index %v", i)
		}
	}

	return nil
}

// FinishEncoding flushes the remaining state (low word first, then high
// word) and returns the compressed sequence in push order. The encoder
// accepts no further symbols. A finished stream is always at least two
// words.
func (this *Encoder) FinishEncoding() []uint32 {
	if !this.finished {
		this.buf.Push(uint32(this.state & this.wordMask))
		this.buf.Push(uint32((this.state >> this.wordBits) & this.wordMask))
		this.finished = true
	}

	return this.buf.Words()
}

// NumWords returns the length FinishEncoding would return now.
func (this *Encoder) NumWords() int {
	if this.finished {
		return this.buf.Len()
	}

	return this.buf.Len() + 2
}

// State returns the coder state, which lies in [2^w, 2^2w) after every
// operation.
func (this *Encoder) State() uint64 {
	return this.state
}

// Decoder is the read half of the stack coder. It pops words from the
// end of the compressed sequence, so decoding returns symbols in the
// reverse of the order they were encoded.
type Decoder struct {
	buf        *backend.Buffer
	state      uint64
	wordBits   uint
	lowerBound uint64
	precision  uint
}

// NewDecoder creates a decoder over a compressed sequence produced by
// FinishEncoding with the same word width and precision. The decoder
// takes ownership of the slice.
func NewDecoder(words []uint32, wordBits, precision uint) (*Decoder, error) {
	if err := entropic.CheckCoderParams(wordBits, precision); err != nil {
		return nil, err
	}

	this := &Decoder{}
	this.buf = backend.BufferFromWords(words)
	this.wordBits = wordBits
	this.lowerBound = uint64(1) << wordBits
	this.precision = precision

	high, err := this.buf.Pop()

	if err != nil {
		return nil, errors.Wrap(err, "reading initial state")
	}

	low, err := this.buf.Pop()

	if err != nil {
		return nil, errors.Wrap(err, "reading initial state")
	}

	this.state = uint64(high)<<wordBits | uint64(low)

	if this.state < this.lowerBound {
		return nil, errors.Wrapf(entropic.ErrCorruptedData,
			"initial state %#x below the renormalization bound", this.state)
	}

	return this, nil
}

// DecodeSymbol decodes one symbol against the given model, which must
// match the model the symbol was encoded with.
func (this *Decoder) DecodeSymbol(m entropic.EntropyModel) (int, error) {
	if m.Precision() != this.precision {
		return 0, errors.Wrapf(entropic.ErrPrecisionMismatch,
			"model precision %v, coder precision %v", m.Precision(), this.precision)
	}

	quantile := this.state & (uint64(1)<<this.precision - 1)
	symbol, cumulative, probability := m.QuantileToSymbol(quantile)

	if probability == 0 {
		return 0, errors.Wrapf(entropic.ErrZeroProbability, "symbol %v", symbol)
	}

	if cumulative > quantile || quantile-cumulative >= probability {
		return 0, errors.Wrapf(entropic.ErrMalformedModel,
			"quantile %v outside the interval (%v, %v)", quantile, cumulative, probability)
	}

	// D(x) = (s, p*(x/2^P) + x%2^P - c)
	this.state = probability*(this.state>>this.precision) + quantile - cumulative

	for this.state < this.lowerBound {
		word, err := this.buf.Pop()

		if err != nil {
			return 0, errors.Wrap(err, "refilling state")
		}

		this.state = this.state<<this.wordBits | uint64(word)
	}

	return symbol, nil
}

// DecodeAll decodes one symbol per model, in order. The result is the
// original symbol order when the encoder used EncodeAll with the same
// model sequence.
func (this *Decoder) DecodeAll(models []entropic.EntropyModel) ([]int, error) {
	symbols := make([]int, len(models))

	for i, m := range models {
		symbol, err := this.DecodeSymbol(m)

		if err != nil {
			return symbols[:i], errors.Wrapf(err, "decoding symbol at index %v", i)
		}

		symbols[i] = symbol
	}

	return symbols, nil
}

// DecodeAllIID decodes count symbols against one shared model.
func (this *Decoder) DecodeAllIID(count int, m entropic.EntropyModel) ([]int, error) {
	symbols := make([]int, count)

	for i := 0; i < count; i++ {
		symbol, err := this.DecodeSymbol(m)

		if err != nil {
			return symbols[:i], errors.Wrapf(err, "decoding symbol at index %v", i)
		}

		symbols[i] = symbol
	}

	return symbols, nil
}

// MaybeEmpty reports whether every encoded symbol has been decoded: all
// words are consumed and the state is back at the encoder's seed.
func (this *Decoder) MaybeEmpty() bool {
	return this.buf.Len() == 0 && this.state == this.lowerBound
}

// State returns the coder state.
func (this *Decoder) State() uint64 {
	return this.state
}
