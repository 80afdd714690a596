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

// Package dbstate holds the per-connection and per-transaction state
// machine: TransactionState, Transaction, CompilerConnectionState, and
// MigrationState. Modaliases, session/database config, and the
// reflection-helper cache are all persistent maps with structural
// sharing, so branching a transaction (a savepoint) or rolling one
// back is an O(1) pointer swap rather than a deep copy.
package dbstate

import (
	"strings"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// StringMap is a persistent string-to-string map, used for Modaliases
// (alias name -> module name; the empty key is the default module).
type StringMap struct {
	tree *iradix.Tree
}

// NewStringMap returns an empty StringMap.
func NewStringMap() StringMap {
	return StringMap{tree: iradix.New()}
}

// Get returns the value for key, if present.
func (m StringMap) Get(key string) (string, bool) {
	if m.tree == nil {
		return "", false
	}
	v, ok := m.tree.Get([]byte(key))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Set returns a new StringMap with key bound to value; m is untouched.
func (m StringMap) Set(key, value string) StringMap {
	base := m.tree
	if base == nil {
		base = iradix.New()
	}
	next, _, _ := base.Insert([]byte(key), value)
	return StringMap{tree: next}
}

// Delete returns a new StringMap without key; m is untouched.
func (m StringMap) Delete(key string) StringMap {
	if m.tree == nil {
		return m
	}
	next, _, ok := m.tree.Delete([]byte(key))
	if !ok {
		return m
	}
	return StringMap{tree: next}
}

// Len returns the number of entries.
func (m StringMap) Len() int {
	if m.tree == nil {
		return 0
	}
	return m.tree.Len()
}

// ForEach calls fn for every entry in key order, stopping early if fn
// returns false.
func (m StringMap) ForEach(fn func(key, value string) bool) {
	if m.tree == nil {
		return
	}
	m.tree.Root().Walk(func(k []byte, v interface{}) bool {
		return !fn(string(k), v.(string))
	})
}

// ConfigMap is a persistent string-to-value map used for session,
// database, and system CONFIGURE state. Values are whatever the
// setting's declared type holds — a scalar, or a slice for a set-of
// setting.
type ConfigMap struct {
	tree *iradix.Tree
}

// NewConfigMap returns an empty ConfigMap.
func NewConfigMap() ConfigMap {
	return ConfigMap{tree: iradix.New()}
}

// Get returns the value bound to setting, if any.
func (m ConfigMap) Get(setting string) (interface{}, bool) {
	if m.tree == nil {
		return nil, false
	}
	return m.tree.Get([]byte(setting))
}

// Set returns a new ConfigMap with setting bound to value.
func (m ConfigMap) Set(setting string, value interface{}) ConfigMap {
	base := m.tree
	if base == nil {
		base = iradix.New()
	}
	next, _, _ := base.Insert([]byte(setting), value)
	return ConfigMap{tree: next}
}

// Reset returns a new ConfigMap with setting unbound (CONFIGURE RESET).
func (m ConfigMap) Reset(setting string) ConfigMap {
	if m.tree == nil {
		return m
	}
	next, _, ok := m.tree.Delete([]byte(setting))
	if !ok {
		return m
	}
	return ConfigMap{tree: next}
}

// Len returns the number of bound settings.
func (m ConfigMap) Len() int {
	if m.tree == nil {
		return 0
	}
	return m.tree.Len()
}

// ForEach calls fn for every bound setting in key order.
func (m ConfigMap) ForEach(fn func(setting string, value interface{}) bool) {
	if m.tree == nil {
		return
	}
	m.tree.Root().Walk(func(k []byte, v interface{}) bool {
		return !fn(string(k), v)
	})
}

// ReflectionCache is a persistent map from the sha1 hex digest of a
// canonical reflection fragment to the argument names of the helper
// function generated for it. The DDL path consults it to decide
// whether a schema-storage block can call an existing helper or must
// create one first; newly created helpers accumulate into the current
// transaction frame.
type ReflectionCache struct {
	tree *iradix.Tree
}

// NewReflectionCache returns an empty ReflectionCache.
func NewReflectionCache() ReflectionCache {
	return ReflectionCache{tree: iradix.New()}
}

// Get returns the helper argument names recorded for digest, if any.
func (c ReflectionCache) Get(digest string) ([]string, bool) {
	if c.tree == nil {
		return nil, false
	}
	v, ok := c.tree.Get([]byte(digest))
	if !ok {
		return nil, false
	}
	return v.([]string), true
}

// Set returns a new ReflectionCache with digest bound to argNames.
func (c ReflectionCache) Set(digest string, argNames []string) ReflectionCache {
	base := c.tree
	if base == nil {
		base = iradix.New()
	}
	next, _, _ := base.Insert([]byte(digest), argNames)
	return ReflectionCache{tree: next}
}

// Len returns the number of cached helpers.
func (c ReflectionCache) Len() int {
	if c.tree == nil {
		return 0
	}
	return c.tree.Len()
}

// Serialize renders the cache as one "digest:arg,arg,..." line per
// helper in digest order — a deterministic post-state blob a compiled
// unit can carry back to the server's state store.
func (c ReflectionCache) Serialize() []byte {
	if c.tree == nil {
		return nil
	}
	var b strings.Builder
	c.tree.Root().Walk(func(k []byte, v interface{}) bool {
		b.Write(k)
		b.WriteByte(':')
		b.WriteString(strings.Join(v.([]string), ","))
		b.WriteByte('\n')
		return false
	})
	return []byte(b.String())
}
