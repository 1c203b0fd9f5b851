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

// Package queue implements the FIFO entropy coder: a range coder in the
// tradition of Pasco and Rissanen, with arithmetic performed on an
// interval (low, range) of twice the word width.
//
// The discipline is a queue: symbols decode in the same order they were
// encoded, which makes the coder suitable for streaming across a
// machine boundary. Carry propagation is resolved by holding back a run
// of words whose final value depends on a carry that has not resolved
// yet, rather than by the classic bit-stuffing trick.
package queue

import (
	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
	"github.com/entropiq/entropic-go/backend"
)

// Encoder is the write half of the queue coder. One encoder exclusively
// owns its state and backend; it is not safe for concurrent use.
//
// The encoder maintains the invariant range >= 1<<wordBits between
// operations. A fresh encoder marks itself with range == stateMask so
// that an empty sequence of symbols seals to an empty sequence of
// words.
type Encoder struct {
	buf       *backend.Buffer
	low       uint64
	rng       uint64
	wordBits  uint
	wordMask  uint64
	stateMask uint64
	precision uint

	// A nonzero numInverted means the low end of the interval sits just
	// below a word boundary while the high end sits just above it, so
	// the words already shifted out cannot be emitted yet: a later
	// carry would increment all of them. The run consists of
	// firstInverted followed by numInverted-1 all-ones words; if the
	// carry fires, it becomes firstInverted+1 followed by zeros.
	numInverted   int
	firstInverted uint32

	finished bool
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
	this.wordMask = entropic.WordMask(wordBits)
	this.stateMask = entropic.StateMask(wordBits)
	this.precision = precision
	this.low = 0
	this.rng = this.stateMask
	return this, nil
}

// IsEmpty reports whether no symbol has been encoded yet.
func (this *Encoder) IsEmpty() bool {
	return this.rng == this.stateMask && this.buf.Len() == 0
}

// EncodeSymbol encodes one symbol against the given model. Symbols are
// encoded front to back and decode in the same order.
func (this *Encoder) EncodeSymbol(symbol int, m entropic.EntropyModel) error {
	if this.finished {
		return errors.New("range encoder: already finished")
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

	scale := this.rng >> this.precision

	// scale * probability <= (range >> P) << P <= range, so no overflow.
	this.rng = scale * probability
	newLow := (this.low + scale*cumulative) & this.stateMask

	if this.numInverted != 0 {
		if (newLow+this.rng)&this.stateMask > newLow {
			// The interval no longer straddles the word boundary, so
			// the held-back run can be materialized. A wrapped newLow
			// means the carry fired.
			this.flushInverted(newLow < this.low)
		}
	}

	this.low = newLow

	if this.rng < uint64(1)<<this.wordBits {
		// probability >= 1 implies range >= old range >> precision
		// >= old range >> wordBits, so one shift restores the
		// invariant range >= 1<<wordBits.
		this.rng <<= this.wordBits
		lowWord := uint32(this.low >> this.wordBits)
		this.low = (this.low << this.wordBits) & this.stateMask

		if this.numInverted != 0 {
			this.numInverted++
		} else if (this.low+this.rng)&this.stateMask > this.low {
			this.buf.Push(lowWord)
		} else {
			this.numInverted = 1
			this.firstInverted = lowWord
		}
	}

	return nil
}

func (this *Encoder) flushInverted(carry bool) {
	first := this.firstInverted
	consecutive := uint32(0)

	if !carry {
		consecutive = uint32(this.wordMask)
	} else {
		// firstInverted cannot be the all-ones word here: if it were,
		// incrementing it would propagate the carry into words that
		// were already emitted, which the inverted situation exists to
		// prevent.
		first++
	}

	this.buf.Push(first)

	for i := 1; i < this.numInverted; i++ {
		this.buf.Push(consecutive)
	}

	this.numInverted = 0
}

// EncodeAll encodes the sequences front to back. The sequences must
// have equal length.
func (this *Encoder) EncodeAll(symbols []int, models []entropic.EntropyModel) error {
	if len(symbols) != len(models) {
		return errors.Wrapf(entropic.ErrSequenceLength,
			"%v symbols, %v models", len(symbols), len(models))
	}

	for i, symbol := range symbols {
		if err := this.EncodeSymbol(symbol, models[i]); err != nil {
			return errors.Wrapf(err, "encoding symbol at index %v", i)
		}
	}

	return nil
}

// EncodeAllIID encodes the symbols front to back against one shared
// model.
func (this *Encoder) EncodeAllIID(symbols []int, m entropic.EntropyModel) error {
	for i, symbol := range symbols {
		if err := this.EncodeSymbol(symbol, m); err != nil {
			return errors.Wrapf(err, "encoding symbol at index %v", i)
		}
	}

	return nil
}

// FinishEncoding materializes any held-back run, emits one final word
// that pins the interval, and returns the compressed sequence. The
// encoder accepts no further symbols. An encoder that never encoded a
// symbol seals to an empty sequence.
func (this *Encoder) FinishEncoding() []uint32 {
	if !this.finished {
		if this.rng != this.stateMask {
			// Any state in [low, low+range) identifies the interval;
			// low + (range-1) maximizes the number of trailing bits
			// that can be discarded, leaving a single word.
			point := (this.low + this.rng - 1) & this.stateMask

			if this.numInverted != 0 {
				this.flushInverted(point < this.low)
			}

			this.buf.Push(uint32(point >> this.wordBits))
		}

		this.finished = true
	}

	return this.buf.Words()
}

// NumWords returns the length FinishEncoding would return now.
func (this *Encoder) NumWords() int {
	if this.finished {
		return this.buf.Len()
	}

	if this.IsEmpty() {
		return 0
	}

	return this.buf.Len() + this.numInverted + 1
}

// State returns the current interval as (low, range).
func (this *Encoder) State() (uint64, uint64) {
	return this.low, this.rng
}

// Decoder is the read half of the queue coder. It tracks the encoder's
// (low, range) interval and a point inside it read ahead from the
// compressed words.
//
// Identifying the interval needs up to wordBits more bits than the
// stream stores per symbol, so decoding a valid stream legitimately
// reads one word past its end; that read is zero-filled. A second read
// past the end cannot happen on data produced by FinishEncoding and
// reports ErrExhaustedBackend.
type Decoder struct {
	cur       *backend.Cursor
	low       uint64
	rng       uint64
	point     uint64
	wordBits  uint
	stateMask uint64
	precision uint
	overreads int
}

// NewDecoder creates a decoder over a compressed sequence produced by
// FinishEncoding with the same word width and precision. The decoder
// takes ownership of the slice.
func NewDecoder(words []uint32, wordBits, precision uint) (*Decoder, error) {
	if err := entropic.CheckCoderParams(wordBits, precision); err != nil {
		return nil, err
	}

	this := &Decoder{}
	this.cur = backend.NewCursor(words)
	this.wordBits = wordBits
	this.stateMask = entropic.StateMask(wordBits)
	this.precision = precision
	this.low = 0
	this.rng = this.stateMask

	// The point is the first two words; a shorter sequence pads with
	// zeros on the right, matching the trailing zeros the encoder's
	// seal discarded. Each padded word spends part of the overread
	// budget, so a stream missing more than the one word the seal is
	// allowed to drop still errors instead of decoding garbage.
	numRead := 0

	for numRead < 2 {
		word, err := this.cur.Read()

		if err != nil {
			break
		}

		this.point = this.point<<wordBits | uint64(word)
		numRead++
	}

	this.point = (this.point << (uint(2-numRead) * wordBits)) & this.stateMask
	this.overreads = 2 - numRead
	return this, nil
}

// DecodeSymbol decodes one symbol against the given model, which must
// match the model the symbol was encoded with.
func (this *Decoder) DecodeSymbol(m entropic.EntropyModel) (int, error) {
	if m.Precision() != this.precision {
		return 0, errors.Wrapf(entropic.ErrPrecisionMismatch,
			"model precision %v, coder precision %v", m.Precision(), this.precision)
	}

	if this.overreads > 1 {
		return 0, errors.Wrap(entropic.ErrExhaustedBackend,
			"compressed data ends before the sequence does")
	}

	// Invariant between operations: (point - low) mod 2^stateBits < range.
	scale := this.rng >> this.precision
	quantile := ((this.point - this.low) & this.stateMask) / scale

	if quantile >= uint64(1)<<this.precision {
		// Unreachable on well-formed data: the invariant bounds the
		// quotient by range/scale, which only exceeds 2^precision when
		// the stream was produced with a different precision or
		// corrupted.
		return 0, errors.Wrapf(entropic.ErrCorruptedData,
			"quantile %v exceeds precision %v", quantile, this.precision)
	}

	symbol, cumulative, probability := m.QuantileToSymbol(quantile)

	if probability == 0 {
		return 0, errors.Wrapf(entropic.ErrZeroProbability, "symbol %v", symbol)
	}

	// Mirror the encoder's interval update.
	this.low = (this.low + scale*cumulative) & this.stateMask
	this.rng = scale * probability

	if this.rng < uint64(1)<<this.wordBits {
		this.low = (this.low << this.wordBits) & this.stateMask
		this.rng <<= this.wordBits
		this.point = (this.point << this.wordBits) & this.stateMask

		word, err := this.cur.Read()

		if err == nil {
			this.point |= uint64(word)
		} else {
			this.overreads++

			if this.overreads > 1 {
				return 0, errors.Wrap(entropic.ErrExhaustedBackend,
					"compressed data ends before the sequence does")
			}
		}
	}

	return symbol, nil
}

// DecodeAll decodes one symbol per model, in order.
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

// MaybeEmpty reports whether every encoded symbol may have been
// decoded: all words are consumed and the point sits close enough to
// the top of the interval that only the seal word separates them.
func (this *Decoder) MaybeEmpty() bool {
	if this.cur.Remaining() != 0 {
		return false
	}

	if this.rng == this.stateMask {
		// Nothing was ever decoded from an empty sequence.
		return true
	}

	return ((this.low+this.rng-this.point)&this.stateMask) <= uint64(1)<<this.wordBits
}

// State returns the current interval as (low, range).
func (this *Decoder) State() (uint64, uint64) {
	return this.low, this.rng
}
