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

// Package entropic defines the shared contracts of the entropy-coding
// engine: the entropy-model interface consumed by both coder disciplines
// (the LIFO ANS coder in package stack and the FIFO range coder in
// package queue) and the error values every layer reports through.
//
// Probabilities are fixed-point integers: a model of precision P assigns
// each symbol a positive probability such that all probabilities sum to
// exactly 1<<P. The coders move compressed words of 8, 16 or 32 bits and
// keep an internal state of twice the word width.
package entropic

import (
	"errors"
	"fmt"
)

const (
	// MIN_PRECISION is the smallest usable fixed-point precision.
	MIN_PRECISION = 1

	// MAX_PRECISION is the largest fixed-point precision supported by
	// any model. A coder further restricts precision to its word width.
	MAX_PRECISION = 32
)

// EntropyModel maps symbols to fixed-point probability intervals and
// back. Implementations must be immutable once constructed so that one
// instance can be shared across coder instances and goroutines.
//
// Writing T = 1<<Precision(), the contract is:
//   - ProbabilityOf returns the exclusive prefix sum ("cumulative") and
//     the probability of the symbol, with probability >= 1, or an error
//     wrapping ErrInvalidSymbol for symbols outside the model's domain.
//   - QuantileToSymbol is total on [0, T) and is the exact left inverse
//     of ProbabilityOf: every quantile in [cumulative,
//     cumulative+probability) maps back to the same symbol.
type EntropyModel interface {
	// Precision returns the number of fixed-point bits P, with
	// probabilities summing to exactly 1<<P.
	Precision() uint

	// ProbabilityOf returns (cumulative, probability) for the symbol.
	ProbabilityOf(symbol int) (uint64, uint64, error)

	// QuantileToSymbol returns (symbol, cumulative, probability) for
	// the symbol whose interval contains the quantile.
	QuantileToSymbol(quantile uint64) (int, uint64, uint64)
}

// Model-contract violations. These indicate a bug in model construction
// or usage, not bad compressed data.
var (
	// ErrInvalidSymbol reports a symbol outside a model's domain.
	ErrInvalidSymbol = errors.New("symbol outside the model domain")

	// ErrZeroProbability reports a symbol whose model probability is
	// zero. A leaky model can never produce this; it means the model
	// violates its contract.
	ErrZeroProbability = errors.New("symbol has zero probability")

	// ErrMalformedModel reports cumulative sums that are not the exact
	// exclusive prefix sums of the probabilities.
	ErrMalformedModel = errors.New("malformed model cumulative sums")

	// ErrPrecisionMismatch reports a model whose precision differs from
	// the coder it is used with.
	ErrPrecisionMismatch = errors.New("model precision does not match coder precision")
)

// Stream-integrity errors. These indicate corrupted or truncated
// compressed data and are always surfaced, never papered over.
var (
	// ErrExhaustedBackend reports a read from a drained word backend.
	ErrExhaustedBackend = errors.New("compressed word backend exhausted")

	// ErrCorruptedData reports compressed data that cannot have been
	// produced by a matching encoder.
	ErrCorruptedData = errors.New("corrupted compressed data")
)

// Construction errors. Reported at model-construction time so that
// encode and decode can assume a valid model.
var (
	// ErrDegenerateSupport reports a quantizer support with max < min.
	ErrDegenerateSupport = errors.New("degenerate support: max < min")

	// ErrPrecisionOverflow reports a domain too large for the requested
	// precision: with fewer than one quantile slot per symbol the leak
	// floor of 1 cannot be honored.
	ErrPrecisionOverflow = errors.New("domain larger than the number of quantile slots")

	// ErrSequenceLength reports bulk symbol and model sequences of
	// different lengths.
	ErrSequenceLength = errors.New("symbol and model sequences have different lengths")
)

// ValidWordBits reports whether the word width is one of the supported
// widths. The coder state is twice the word width and all arithmetic is
// carried out in 64 bits, which caps words at 32 bits.
func ValidWordBits(wordBits uint) bool {
	switch wordBits {
	case 8, 16, 32:
		return true
	}

	return false
}

// CheckCoderParams validates a (word width, precision) pair the way both
// coder constructors require: a supported word width and a precision in
// [1..wordBits]. Keeping precision at or below the word width guarantees
// that one renormalization step per symbol always suffices.
func CheckCoderParams(wordBits, precision uint) error {
	if !ValidWordBits(wordBits) {
		return fmt.Errorf("Invalid word width: %v (must be 8, 16 or 32)", wordBits)
	}

	if precision < MIN_PRECISION || precision > wordBits {
		return fmt.Errorf("Invalid precision: %v (must be in [%v..%v])", precision, MIN_PRECISION, wordBits)
	}

	return nil
}

// WordMask returns the mask of a word of the given width.
func WordMask(wordBits uint) uint64 {
	return (uint64(1) << wordBits) - 1
}

// StateMask returns the mask of a coder state, which holds twice the
// word width in significant bits.
func StateMask(wordBits uint) uint64 {
	if wordBits >= 32 {
		return ^uint64(0)
	}

	return (uint64(1) << (2 * wordBits)) - 1
}
