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
	"github.com/golang/groupcache/lru"
)

// Cache is an explicit, bounded cache of quantized models keyed by
// distribution parameters, for hosts that repeatedly quantize the same
// parameter sets. Eviction is least-recently-used at a fixed capacity.
//
// The cache is deliberately an object the caller passes around, not
// process-wide state. Like a coder it is single-threaded; models it
// returns are immutable and may be shared, the cache itself may not.
type Cache struct {
	cache *lru.Cache
}

// NewCache creates a cache holding at most maxEntries models;
// maxEntries <= 0 means unbounded.
func NewCache(maxEntries int) *Cache {
	if maxEntries < 0 {
		maxEntries = 0
	}

	this := &Cache{}
	this.cache = lru.New(maxEntries)
	return this
}

// Quantized returns the cached model for the key, or quantizes the
// distribution, stores the result under the key and returns it. The key
// must identify the distribution parameters and the quantizer
// configuration; distinct quantizers must not share a key.
func (this *Cache) Quantized(quantizer *LeakyQuantizer, key lru.Key, dist ContinuousDistribution) (*Categorical, error) {
	if cached, ok := this.cache.Get(key); ok {
		return cached.(*Categorical), nil
	}

	m, err := quantizer.Quantize(dist)

	if err != nil {
		return nil, err
	}

	this.cache.Add(key, m)
	return m, nil
}

// Len returns the number of cached models.
func (this *Cache) Len() int {
	return this.cache.Len()
}
