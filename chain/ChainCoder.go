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

// Package chain implements a coder for bits-back style algorithms that
// need decoding to be a local function of the entropy models: changing
// the model of one symbol never changes any other decoded symbol.
//
// A plain stack coder amortizes information across symbols, so a small
// model change shifts every later symbol. The chain coder prevents that
// by splitting the data into two streams: decoding consumes a full
// quantile of precision bits per symbol from the compressed words and
// pushes the leftover information (the position of the quantile within
// the symbol's probability interval) onto a separate remainders stream.
// Encoding runs the exact inverse, consuming remainders and rebuilding
// the compressed words.
package chain

import (
	"math/bits"

	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
	"github.com/entropiq/entropic-go/backend"
)

// Coder holds the two word streams and their partially filled heads.
// The same instance decodes and encodes; which direction is meaningful
// depends on the constructor (CoderFromQuantiles and CoderFromBinary
// start a decoding pass, CoderFromRemainders starts the inverse
// encoding pass).
//
// The quantiles head holds up to wordBits-1 leftover quantile bits
// below a marker bit, so it is never zero; the value 1 means no
// leftover bits. The remainders head stays in
// [1<<(wordBits-precision), 1<<(2*wordBits-precision)) between
// operations.
type Coder struct {
	quantiles  *backend.Buffer
	remainders *backend.Buffer

	quantilesHead  uint64
	remaindersHead uint64

	wordBits  uint
	stateBits uint
	wordMask  uint64
	precision uint
}

func newCoder(wordBits, precision uint) (*Coder, error) {
	if err := entropic.CheckCoderParams(wordBits, precision); err != nil {
		return nil, err
	}

	this := &Coder{}
	this.wordBits = wordBits
	this.stateBits = 2 * wordBits
	this.wordMask = entropic.WordMask(wordBits)
	this.precision = precision
	this.quantilesHead = 1
	return this, nil
}

// initRemaindersHead fills the remainders head from the given stack
// until it reaches its lower invariant bound. A sentinel head of 1 is
// used where the source carries no head of its own.
func (this *Coder) initRemaindersHead(src *backend.Buffer, sentinel bool) error {
	if sentinel {
		this.remaindersHead = 1
	} else {
		word, err := src.Pop()

		if err != nil {
			return errors.Wrap(err, "reading remainders head")
		}

		if word == 0 {
			return errors.Wrap(entropic.ErrCorruptedData, "remainders head starts with a zero word")
		}

		this.remaindersHead = uint64(word)
	}

	threshold := uint64(1) << (this.wordBits - this.precision)

	for this.remaindersHead < threshold {
		word, err := src.Pop()

		if err != nil {
			return errors.Wrap(err, "reading remainders head")
		}

		this.remaindersHead = this.remaindersHead<<this.wordBits | uint64(word)
	}

	return nil
}

// CoderFromQuantiles creates a coder that decodes the given compressed
// words. The sequence must be long enough to seed the remainders head
// and its last word must be nonzero, which IntoQuantiles guarantees.
// The coder takes ownership of the slice.
func CoderFromQuantiles(words []uint32, wordBits, precision uint) (*Coder, error) {
	this, err := newCoder(wordBits, precision)

	if err != nil {
		return nil, err
	}

	this.quantiles = backend.BufferFromWords(words)
	this.remainders = backend.NewBuffer()

	if err := this.initRemaindersHead(this.quantiles, false); err != nil {
		return nil, err
	}

	return this, nil
}

// CoderFromBinary creates a coder that decodes arbitrary binary data,
// with no constraints on the words. A marker is placed above the data
// so that IntoBinary can restore it exactly.
func CoderFromBinary(words []uint32, wordBits, precision uint) (*Coder, error) {
	this, err := newCoder(wordBits, precision)

	if err != nil {
		return nil, err
	}

	this.quantiles = backend.BufferFromWords(words)
	this.remainders = backend.NewBuffer()

	if err := this.initRemaindersHead(this.quantiles, true); err != nil {
		return nil, err
	}

	return this, nil
}

// CoderFromRemainders creates a coder that encodes symbols against the
// remainder data produced by a previous decoding pass (the
// concatenation returned by IntoRemainders, or just its second part).
// The coder takes ownership of the slice.
func CoderFromRemainders(words []uint32, wordBits, precision uint) (*Coder, error) {
	this, err := newCoder(wordBits, precision)

	if err != nil {
		return nil, err
	}

	this.quantiles = backend.NewBuffer()
	this.remainders = backend.BufferFromWords(words)

	head, err := this.remainders.Pop()

	if err != nil {
		return nil, errors.Wrap(err, "reading quantiles head")
	}

	if head == 0 {
		return nil, errors.Wrap(entropic.ErrCorruptedData, "quantiles head is zero")
	}

	if err := this.initRemaindersHead(this.remainders, false); err != nil {
		return nil, err
	}

	this.quantilesHead = uint64(head)
	return this, nil
}

// IsWhole reports whether an integer number of words has been consumed
// from the quantiles stream, i.e. no leftover quantile bits are held in
// the head. Only a whole coder can be turned back into compressed
// words.
func (this *Coder) IsWhole() bool {
	return this.quantilesHead == 1
}

// DecodeSymbol decodes one symbol against the given model, consuming
// precision bits from the quantiles stream and pushing the leftover
// position within the symbol's interval onto the remainders stream.
func (this *Coder) DecodeSymbol(m entropic.EntropyModel) (int, error) {
	if m.Precision() != this.precision {
		return 0, errors.Wrapf(entropic.ErrPrecisionMismatch,
			"model precision %v, coder precision %v", m.Precision(), this.precision)
	}

	var word uint64

	if this.precision == this.wordBits || this.quantilesHead < uint64(1)<<this.precision {
		popped, err := this.quantiles.Pop()

		if err != nil {
			return 0, errors.Wrap(err, "reading quantile")
		}

		word = uint64(popped)

		if this.precision != this.wordBits {
			// The head keeps the marker bit and the bits of this word
			// above the quantile; both shifts stay within the word
			// width because the head was below 1<<precision.
			this.quantilesHead = this.quantilesHead<<(this.wordBits-this.precision) | word>>this.precision
		}
	} else {
		word = this.quantilesHead
		this.quantilesHead >>= this.precision
	}

	quantile := word & (uint64(1)<<this.precision - 1)
	symbol, cumulative, probability := m.QuantileToSymbol(quantile)

	if probability == 0 {
		return 0, errors.Wrapf(entropic.ErrZeroProbability, "symbol %v", symbol)
	}

	if cumulative > quantile || quantile-cumulative >= probability {
		return 0, errors.Wrapf(entropic.ErrMalformedModel,
			"quantile %v outside the interval (%v, %v)", quantile, cumulative, probability)
	}

	// The product cannot overflow: the head is below
	// 1<<(stateBits-precision) and probability is at most 1<<precision.
	this.remaindersHead = this.remaindersHead*probability + (quantile - cumulative)

	if this.remaindersHead >= uint64(1)<<(this.stateBits-this.precision) {
		this.remainders.Push(uint32(this.remaindersHead & this.wordMask))
		this.remaindersHead >>= this.wordBits
	}

	return symbol, nil
}

// EncodeSymbol encodes one symbol, the exact inverse of DecodeSymbol:
// it rebuilds the symbol's quantile from the remainders stream and
// appends it to the quantiles stream. Symbols must be encoded in the
// reverse of the order they were decoded.
func (this *Coder) EncodeSymbol(symbol int, m entropic.EntropyModel) error {
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

	if this.remaindersHead < probability<<(this.wordBits-this.precision) {
		word, err := this.remainders.Pop()

		if err != nil {
			return errors.Wrap(err, "out of remainder data")
		}

		// The head now temporarily exceeds its upper invariant bound,
		// which is exactly the situation DecodeSymbol resolves by
		// flushing a word.
		this.remaindersHead = this.remaindersHead<<this.wordBits | uint64(word)
	}

	quantile := cumulative + this.remaindersHead%probability
	this.remaindersHead /= probability

	if this.precision != this.wordBits && this.quantilesHead < uint64(1)<<(this.wordBits-this.precision) {
		this.quantilesHead = this.quantilesHead<<this.precision | quantile
	} else {
		word := quantile

		if this.precision != this.wordBits {
			word = (this.quantilesHead<<this.precision | quantile) & this.wordMask
			this.quantilesHead >>= this.wordBits - this.precision
		}

		this.quantiles.Push(uint32(word))
	}

	return nil
}

// DecodeAll decodes one symbol per model, in order.
func (this *Coder) DecodeAll(models []entropic.EntropyModel) ([]int, error) {
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
func (this *Coder) DecodeAllIID(count int, m entropic.EntropyModel) ([]int, error) {
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

// EncodeAll encodes the sequences back to front, undoing a DecodeAll
// with the same model sequence. The sequences must have equal length.
func (this *Coder) EncodeAll(symbols []int, models []entropic.EntropyModel) error {
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
func (this *Coder) EncodeAllIID(symbols []int, m entropic.EntropyModel) error {
	for i := len(symbols) - 1; i >= 0; i-- {
		if err := this.EncodeSymbol(symbols[i], m); err != nil {
			return errors.Wrapf(err, "encoding symbol at index %v", i)
		}
	}

	return nil
}

// IntoRemainders flushes both heads onto the remainders stream and
// returns the unread rest of the quantiles stream followed by the
// remainders stream. Concatenating the two (or using only the second
// part, if it is long enough) yields valid input for
// CoderFromRemainders. The coder must not be used afterwards.
func (this *Coder) IntoRemainders() ([]uint32, []uint32) {
	for this.remaindersHead != 0 {
		this.remainders.Push(uint32(this.remaindersHead & this.wordMask))
		this.remaindersHead >>= this.wordBits
	}

	this.remainders.Push(uint32(this.quantilesHead))
	return this.quantiles.Words(), this.remainders.Words()
}

// IntoQuantiles flushes the remainders head onto the quantiles stream
// and returns the unread rest of the remainders stream followed by the
// quantiles stream. Concatenating the two yields valid input for
// CoderFromQuantiles. Fails when leftover quantile bits are held in the
// head, which means the encoded symbols do not amount to a whole number
// of words. The coder must not be used afterwards.
func (this *Coder) IntoQuantiles() ([]uint32, []uint32, error) {
	if !this.IsWhole() {
		return nil, nil, errors.New("Cannot seal chain coder: fractional word of quantile bits")
	}

	for this.remaindersHead != 0 {
		this.quantiles.Push(uint32(this.remaindersHead & this.wordMask))
		this.remaindersHead >>= this.wordBits
	}

	return this.remainders.Words(), this.quantiles.Words(), nil
}

// IntoBinary strips the marker placed by CoderFromBinary and returns
// the unread rest of the remainders stream followed by the restored
// binary words. Fails when the held bits do not line up with a word
// boundary below the marker.
func (this *Coder) IntoBinary() ([]uint32, []uint32, error) {
	if !this.IsWhole() || uint(bits.Len64(this.remaindersHead)-1)%this.wordBits != 0 {
		return nil, nil, errors.New("Cannot restore binary data: bits do not align with a word boundary")
	}

	for this.remaindersHead > 1 {
		this.quantiles.Push(uint32(this.remaindersHead & this.wordMask))
		this.remaindersHead >>= this.wordBits
	}

	return this.remainders.Words(), this.quantiles.Words(), nil
}

// ChangePrecision adjusts the coder so that subsequent operations
// accept models of the new precision, shifting the remainders head to
// keep decode and encode exact inverses across the change. A pass that
// changes precision mid-stream must be undone with the same changes in
// reverse order.
func (this *Coder) ChangePrecision(precision uint) error {
	if err := entropic.CheckCoderParams(this.wordBits, precision); err != nil {
		return err
	}

	if precision > this.precision {
		if this.remaindersHead >= uint64(1)<<(this.stateBits-precision) {
			this.remainders.Push(uint32(this.remaindersHead & this.wordMask))
			this.remaindersHead >>= this.wordBits
		}
	} else if precision < this.precision {
		if this.remaindersHead < uint64(1)<<(this.stateBits-precision-this.wordBits) {
			word, err := this.remainders.Pop()

			if err != nil {
				return errors.Wrap(err, "out of remainder data")
			}

			this.remaindersHead = this.remaindersHead<<this.wordBits | uint64(word)
		}
	}

	this.precision = precision
	return nil
}
