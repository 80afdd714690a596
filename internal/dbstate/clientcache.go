/*
Copyright 2026 The HLQL Compiler Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dbstate

import (
	"sync/atomic"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// ClientSchemaCache is the per-client cache of compiled type
// descriptors: concurrent compiler goroutines for
// different clients must never block each other on it, and a cache
// refresh must never be visible half-written to a reader mid-lookup.
// It is a copy-on-write wrapper over an immutable radix tree: readers
// take an atomic snapshot of the whole tree and never see a partial
// update, writers build a new tree and swap the pointer in one CAS.
type ClientSchemaCache struct {
	tree atomic.Pointer[iradix.Tree]
}

// NewClientSchemaCache returns an empty cache.
func NewClientSchemaCache() *ClientSchemaCache {
	c := &ClientSchemaCache{}
	c.tree.Store(iradix.New())
	return c
}

// Get returns the cached descriptor bytes for key, if present. Safe to
// call concurrently with Put from any number of goroutines.
func (c *ClientSchemaCache) Get(key string) ([]byte, bool) {
	v, ok := c.tree.Load().Get([]byte(key))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Put installs value under key, retrying the compare-and-swap against
// concurrent writers. The tree itself is immutable, so a retry only
// has to redo the Insert against the latest root, not replay any
// caller-visible work.
func (c *ClientSchemaCache) Put(key string, value []byte) {
	for {
		old := c.tree.Load()
		next, _, _ := old.Insert([]byte(key), value)
		if c.tree.CompareAndSwap(old, next) {
			return
		}
	}
}

// Invalidate clears every entry — called when the schema the cache
// was keyed against has been superseded (e.g. after a DDL commit).
func (c *ClientSchemaCache) Invalidate() {
	c.tree.Store(iradix.New())
}

// Len reports the number of cached entries as of the moment of the
// call.
func (c *ClientSchemaCache) Len() int {
	return c.tree.Load().Len()
}
