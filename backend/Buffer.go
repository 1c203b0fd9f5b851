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

// Package backend provides the word-level storage the coders write to
// and read from: a growable push/pop buffer for the stack discipline and
// a fixed dequeue-only cursor for the queue discipline, plus the byte
// serialization of word sequences.
package backend

import (
	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
)

// Buffer is a growable stack of compressed words. The last word pushed
// is the first word popped. A Buffer is owned by exactly one coder; it
// is never shared. Most coders use it in one direction only, while the
// chain coder pushes and pops the same buffer.
type Buffer struct {
	words []uint32
}

// NewBuffer creates an empty write-mode buffer.
func NewBuffer() *Buffer {
	this := &Buffer{}
	this.words = make([]uint32, 0, 16)
	return this
}

// BufferFromWords creates a read-mode buffer over an existing word
// sequence. The buffer takes ownership of the slice.
func BufferFromWords(words []uint32) *Buffer {
	this := &Buffer{}
	this.words = words
	return this
}

// Push appends a word.
func (this *Buffer) Push(word uint32) {
	this.words = append(this.words, word)
}

// Pop removes and returns the most recently pushed word. Returns an
// error wrapping entropic.ErrExhaustedBackend when the buffer is empty.
func (this *Buffer) Pop() (uint32, error) {
	n := len(this.words)

	if n == 0 {
		return 0, errors.Wrap(entropic.ErrExhaustedBackend, "pop from empty buffer")
	}

	word := this.words[n-1]
	this.words = this.words[:n-1]
	return word, nil
}

// Len returns the number of words currently held.
func (this *Buffer) Len() int {
	return len(this.words)
}

// Words returns the held words in push order. The slice aliases the
// buffer's storage; callers must not keep using the buffer afterwards.
func (this *Buffer) Words() []uint32 {
	return this.words
}
