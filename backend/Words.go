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
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	entropic "github.com/entropiq/entropic-go"
)

// Byte layout of a word sequence: each word occupies exactly
// wordBits/8 bytes in the chosen byte order, and the array order of the
// sequence is preserved. The byte order is a per-call configuration; it
// never changes mid-stream.

// WriteWords serializes a word sequence. Words whose value does not fit
// the width are rejected.
func WriteWords(w io.Writer, words []uint32, wordBits uint, order binary.ByteOrder) error {
	if !entropic.ValidWordBits(wordBits) {
		return errors.Errorf("Invalid word width: %v (must be 8, 16 or 32)", wordBits)
	}

	mask := uint32(entropic.WordMask(wordBits))
	var scratch [4]byte

	for i, word := range words {
		if word&^mask != 0 {
			return errors.Errorf("Word %v at index %v exceeds the %v-bit width", word, i, wordBits)
		}

		switch wordBits {
		case 8:
			scratch[0] = byte(word)
		case 16:
			order.PutUint16(scratch[:2], uint16(word))
		default:
			order.PutUint32(scratch[:4], word)
		}

		if _, err := w.Write(scratch[:wordBits/8]); err != nil {
			return errors.Wrap(err, "writing word sequence")
		}
	}

	return nil
}

// ReadWords deserializes a word sequence until EOF. A trailing partial
// word surfaces entropic.ErrCorruptedData.
func ReadWords(r io.Reader, wordBits uint, order binary.ByteOrder) ([]uint32, error) {
	if !entropic.ValidWordBits(wordBits) {
		return nil, errors.Errorf("Invalid word width: %v (must be 8, 16 or 32)", wordBits)
	}

	words := make([]uint32, 0, 16)
	var scratch [4]byte
	size := int(wordBits / 8)

	for {
		n, err := io.ReadFull(r, scratch[:size])

		if err == io.EOF {
			return words, nil
		}

		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(entropic.ErrCorruptedData, "trailing partial word of %v bytes", n)
		}

		if err != nil {
			return nil, errors.Wrap(err, "reading word sequence")
		}

		switch wordBits {
		case 8:
			words = append(words, uint32(scratch[0]))
		case 16:
			words = append(words, uint32(order.Uint16(scratch[:2])))
		default:
			words = append(words, order.Uint32(scratch[:4]))
		}
	}
}
