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

package backend

import (
	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
)

// Cursor is a fixed, dequeue-only view over a word sequence: words are
// consumed in the order they were produced. It backs the queue (range
// coding) decoder.
type Cursor struct {
	words []uint32
	off   int
}

// NewCursor creates a cursor over the given sequence. The cursor does
// not copy the slice; the caller must not mutate it while decoding.
func NewCursor(words []uint32) *Cursor {
	this := &Cursor{}
	this.words = words
	return this
}

// Read returns the next word. Returns an error wrapping
// entropic.ErrExhaustedBackend once all words have been consumed.
func (this *Cursor) Read() (uint32, error) {
	if this.off >= len(this.words) {
		return 0, errors.Wrap(entropic.ErrExhaustedBackend, "read past end of word sequence")
	}

	word := this.words[this.off]
	this.off++
	return word, nil
}

// Remaining returns the number of unconsumed words.
func (this *Cursor) Remaining() int {
	return len(this.words) - this.off
}
