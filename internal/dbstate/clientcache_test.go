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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSchemaCacheGetPut(t *testing.T) {
	c := NewClientSchemaCache()
	_, ok := c.Get("q1")
	assert.False(t, ok)

	c.Put("q1", []byte("descriptor-bytes"))
	v, ok := c.Get("q1")
	require.True(t, ok)
	assert.Equal(t, []byte("descriptor-bytes"), v)
}

func TestClientSchemaCacheInvalidate(t *testing.T) {
	c := NewClientSchemaCache()
	c.Put("q1", []byte("x"))
	c.Invalidate()
	_, ok := c.Get("q1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestClientSchemaCacheConcurrentWrites(t *testing.T) {
	c := NewClientSchemaCache()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put(fmt.Sprintf("q%d", i), []byte{byte(i)})
		}()
	}
	wg.Wait()
	assert.Equal(t, 64, c.Len())
}
