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

package dump

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCompatFlagsOldDump(t *testing.T) {
	flags := DeriveCompatFlags(Version{Major: 1, Minor: 0})
	assert.True(t, flags.DumpWithExtraneousComputables)
	assert.True(t, flags.DumpWithPtrItemID)
}

func TestDeriveCompatFlagsCurrentDump(t *testing.T) {
	flags := DeriveCompatFlags(Version{Major: 2, Minor: 0})
	assert.False(t, flags.DumpWithExtraneousComputables)
	assert.False(t, flags.DumpWithPtrItemID)
}

func TestDeriveCompatFlagsMidRange(t *testing.T) {
	flags := DeriveCompatFlags(Version{Major: 1, Minor: 5})
	assert.True(t, flags.DumpWithExtraneousComputables, "still before the major-2 cutover")
	assert.False(t, flags.DumpWithPtrItemID, "past the 1.2 cutover")
}
