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

// MAX_LOOKUP_PRECISION caps the precision of lookup tables. A table
// holds one entry per quantile, so memory is 1<<precision entries;
// 16 bits (65536 entries) is the largest configuration worth the trade.
const MAX_LOOKUP_PRECISION = 16

type lookupSlot struct {
	symbol      int
	cumulative  uint64
	probability uint64
}

// LookupTable is a precomputed realization of one entropy model's
// inverse mapping: QuantileToSymbol becomes a direct index instead of a
// binary search. It is derived from exactly one model snapshot. Models
// are immutable, so a table never goes stale; if a caller rebuilds a
// model with new parameters it must also build a new table.
type LookupTable struct {
	source    entropic.EntropyModel
	precision uint
	slotIndex []uint16
	slots     []lookupSlot
}

// NewLookupTable builds the table by walking the model's quantile
// intervals, one jump per symbol, so construction is
// O(domain + 1<<precision).
func NewLookupTable(m entropic.EntropyModel) (*LookupTable, error) {
	precision := m.Precision()

	if precision > MAX_LOOKUP_PRECISION {
		return nil, errors.Wrapf(entropic.ErrPrecisionOverflow,
			"lookup table precision %v exceeds %v", precision, MAX_LOOKUP_PRECISION)
	}

	total := uint64(1) << precision
	this := &LookupTable{}
	this.source = m
	this.precision = precision
	this.slotIndex = make([]uint16, total)
	this.slots = make([]lookupSlot, 0, 16)

	for q := uint64(0); q < total; {
		symbol, cumulative, probability := m.QuantileToSymbol(q)

		if probability == 0 || cumulative != q || cumulative+probability > total {
			return nil, errors.Wrapf(entropic.ErrMalformedModel,
				"interval (%v, %v) at quantile %v", cumulative, probability, q)
		}

		this.slots = append(this.slots, lookupSlot{symbol, cumulative, probability})
		index := uint16(len(this.slots) - 1)

		for ; q < cumulative+probability; q++ {
			this.slotIndex[q] = index
		}
	}

	return this, nil
}

// Precision implements entropic.EntropyModel.
func (this *LookupTable) Precision() uint {
	return this.precision
}

// QuantileToSymbol implements entropic.EntropyModel in O(1).
func (this *LookupTable) QuantileToSymbol(quantile uint64) (int, uint64, uint64) {
	if quantile >= uint64(len(this.slotIndex)) {
		quantile = uint64(len(this.slotIndex)) - 1
	}

	slot := this.slots[this.slotIndex[quantile]]
	return slot.symbol, slot.cumulative, slot.probability
}

// ProbabilityOf implements entropic.EntropyModel by delegating to the
// source model; the table only accelerates the decode direction.
func (this *LookupTable) ProbabilityOf(symbol int) (uint64, uint64, error) {
	return this.source.ProbabilityOf(symbol)
}
